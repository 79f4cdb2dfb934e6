package scraper

import (
	"context"
	"errors"
	"time"
)

// ErrPageUnavailable is returned when a page cannot be opened or rendered
var ErrPageUnavailable = errors.New("page unavailable")

// Node is a queryable element of a rendered page
type Node interface {
	// Find returns descendants matching a CSS selector. No match is an
	// empty slice, not an error.
	Find(selector string) ([]Node, error)
	Text() (string, error)
	// Attr returns the attribute value and whether it was present
	Attr(name string) (string, bool, error)
}

// Page is a rendered document. Close releases its browsing context.
type Page interface {
	Node
	Close() error
}

// PageRequest describes one navigation
type PageRequest struct {
	URL           string
	ReadySelector string
	ReadyTimeout  time.Duration
	Settle        time.Duration
}

// Renderer opens pages. A Renderer may be shared by concurrent adapters.
type Renderer interface {
	Open(ctx context.Context, req PageRequest) (Page, error)
}

// Session is a Renderer bound to resources that must be released
type Session interface {
	Renderer
	Close() error
}

// SessionFactory acquires one Session per query batch
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory
type SessionFactoryFunc func(ctx context.Context) (Session, error)

func (f SessionFactoryFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
