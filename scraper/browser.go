package scraper

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// dockerChromium is the system browser shipped in the container image
const dockerChromium = "/usr/bin/chromium-browser"

// BrowserOptions configures the headless browser
type BrowserOptions struct {
	Bin       string
	Headless  bool
	UserAgent string
}

// BrowserSession is a headless Chromium shared by the adapters of one query.
// Each page gets its own incognito context.
type BrowserSession struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	userAgent string
}

// NewBrowserFactory returns a SessionFactory that launches a fresh browser per query
func NewBrowserFactory(opts BrowserOptions) SessionFactory {
	return SessionFactoryFunc(func(ctx context.Context) (Session, error) {
		return NewBrowserSession(ctx, opts)
	})
}

// NewBrowserSession launches and connects to a headless browser
func NewBrowserSession(ctx context.Context, opts BrowserOptions) (*BrowserSession, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(true).
		Leakless(false)

	// Use system Chromium in Docker, auto-detect locally
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	} else if _, err := os.Stat(dockerChromium); err == nil {
		l = l.Bin(dockerChromium)
		log.Printf("Using system Chromium in Docker environment")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to launch browser: %w", ErrPageUnavailable, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: failed to connect to browser: %w", ErrPageUnavailable, err)
	}

	return &BrowserSession{
		launcher:  l,
		browser:   browser,
		userAgent: opts.UserAgent,
	}, nil
}

// Open navigates an isolated page and waits for it to settle
func (s *BrowserSession) Open(ctx context.Context, req PageRequest) (Page, error) {
	incognito, err := s.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create browser context: %w", ErrPageUnavailable, err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		incognito.Close()
		return nil, fmt.Errorf("%w: failed to create page: %w", ErrPageUnavailable, err)
	}
	rp := &rodPage{page: page.Context(ctx), incognito: incognito}

	if s.userAgent != "" {
		if err := rp.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
			rp.Close()
			return nil, fmt.Errorf("%w: failed to set user agent: %w", ErrPageUnavailable, err)
		}
	}

	wait := rp.page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := rp.page.Navigate(req.URL); err != nil {
		rp.Close()
		return nil, fmt.Errorf("%w: failed to navigate to %s: %w", ErrPageUnavailable, req.URL, err)
	}
	wait()

	if req.ReadySelector != "" {
		if _, err := rp.page.Timeout(req.ReadyTimeout).Element(req.ReadySelector); err != nil {
			log.Printf("⚠️  Ready selector %q not found on %s: %v", req.ReadySelector, req.URL, err)
		}
	}

	if err := sleepCtx(ctx, req.Settle); err != nil {
		rp.Close()
		return nil, err
	}

	return rp, nil
}

// Close closes the browser and kills the launcher process
func (s *BrowserSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return err
}

type rodPage struct {
	page      *rod.Page
	incognito *rod.Browser
}

func (p *rodPage) Find(selector string) ([]Node, error) {
	elements, err := p.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(elements), nil
}

func (p *rodPage) Text() (string, error) {
	body, err := p.page.Element("body")
	if err != nil {
		return "", err
	}
	return body.Text()
}

func (p *rodPage) Attr(string) (string, bool, error) {
	return "", false, nil
}

func (p *rodPage) Close() error {
	err := p.page.Close()
	if cerr := p.incognito.Close(); err == nil {
		err = cerr
	}
	return err
}

type rodNode struct {
	el *rod.Element
}

func wrapElements(elements rod.Elements) []Node {
	nodes := make([]Node, 0, len(elements))
	for _, el := range elements {
		nodes = append(nodes, rodNode{el: el})
	}
	return nodes
}

func (n rodNode) Find(selector string) ([]Node, error) {
	elements, err := n.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(elements), nil
}

func (n rodNode) Text() (string, error) {
	return n.el.Text()
}

func (n rodNode) Attr(name string) (string, bool, error) {
	value, err := n.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}
