package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxDocumentBytes caps how much of a search page is parsed
const maxDocumentBytes = 8 << 20

// HTTPSession fetches pages with a plain GET and queries them with goquery.
// Script-rendered content is not available.
type HTTPSession struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFactory returns a SessionFactory for the http engine
func NewHTTPFactory(userAgent string, timeout time.Duration) SessionFactory {
	session := NewHTTPSession(userAgent, timeout)
	return SessionFactoryFunc(func(ctx context.Context) (Session, error) {
		return session, nil
	})
}

// NewHTTPSession creates an HTTP session
func NewHTTPSession(userAgent string, timeout time.Duration) *HTTPSession {
	return &HTTPSession{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Open fetches and parses the document at req.URL
func (s *HTTPSession) Open(ctx context.Context, req PageRequest) (Page, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageUnavailable, err)
	}
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml")
	httpReq.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %w", ErrPageUnavailable, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrPageUnavailable, req.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrPageUnavailable, req.URL, err)
	}

	if err := sleepCtx(ctx, req.Settle); err != nil {
		return nil, err
	}

	return &documentPage{doc: doc}, nil
}

// Close is a no-op; the HTTP client holds no per-query resources
func (s *HTTPSession) Close() error {
	return nil
}

// StaticRenderer serves in-memory HTML keyed by URL
type StaticRenderer struct {
	mu     sync.Mutex
	pages  map[string]string
	errors map[string]error
	opened []string
	closed int
}

// NewStaticRenderer creates a renderer over the given URL to HTML map
func NewStaticRenderer(pages map[string]string) *StaticRenderer {
	return &StaticRenderer{pages: pages, errors: make(map[string]error)}
}

// FailOn makes Open return err for url
func (r *StaticRenderer) FailOn(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[url] = err
}

func (r *StaticRenderer) Open(ctx context.Context, req PageRequest) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, req.URL)

	if err, ok := r.errors[req.URL]; ok {
		return nil, err
	}
	html, ok := r.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("%w: no page for %s", ErrPageUnavailable, req.URL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageUnavailable, err)
	}
	return &documentPage{doc: doc, onClose: r.markClosed}, nil
}

// Close satisfies Session
func (r *StaticRenderer) Close() error {
	return nil
}

// Opened returns the URLs requested so far
func (r *StaticRenderer) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// ClosedPages returns how many pages were closed
func (r *StaticRenderer) ClosedPages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *StaticRenderer) markClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

type documentPage struct {
	doc     *goquery.Document
	onClose func()
}

func (p *documentPage) Find(selector string) ([]Node, error) {
	return wrapSelection(p.doc.Find(selector)), nil
}

func (p *documentPage) Text() (string, error) {
	return p.doc.Find("body").Text(), nil
}

func (p *documentPage) Attr(string) (string, bool, error) {
	return "", false, nil
}

func (p *documentPage) Close() error {
	if p.onClose != nil {
		p.onClose()
	}
	return nil
}

type selectionNode struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) Find(selector string) ([]Node, error) {
	return wrapSelection(n.sel.Find(selector)), nil
}

func (n selectionNode) Text() (string, error) {
	return n.sel.Text(), nil
}

func (n selectionNode) Attr(name string) (string, bool, error) {
	value, ok := n.sel.Attr(name)
	return value, ok, nil
}
