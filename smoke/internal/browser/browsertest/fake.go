// Package browsertest provides an in-memory browser.Session for tests of
// code that drives a browser. Pages are described declaratively by route.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
)

// PNG is the screenshot payload returned by the fake.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Page describes how a route renders.
type Page struct {
	// ScrollWidth returns body.scrollWidth for a viewport width. Nil means
	// the page fits exactly.
	ScrollWidth func(viewportWidth int) int

	// Elements maps selectors to query results. Unknown selectors match
	// nothing. Text-filtered queries are keyed by TextKey.
	Elements map[string]browser.Match

	// Events are pushed into the collector when the page loads.
	Events browser.Events

	// Responses maps URLs to the HTTP status they answered with.
	Responses map[string]int

	// GotoErr makes navigation to this route fail.
	GotoErr error

	// RedirectTo makes navigation end up on another route.
	RedirectTo string
}

// Session is a scripted browser.Session. Safe for use from one goroutine
// plus the Drain/inspection helpers.
type Session struct {
	Base  string
	Pages map[string]*Page

	// OnClick runs after a click; use it to simulate form submission.
	OnClick func(s *Session, selector string)

	mu        sync.Mutex
	current   string
	width     int
	height    int
	collector browser.Collector
	closed    bool

	Visits      []string
	Viewports   [][2]int
	Filled      map[string]string
	Clicked     []string
	Screenshots int
}

// New returns a Session serving pages relative to base.
func New(base string, pages map[string]*Page) *Session {
	if pages == nil {
		pages = make(map[string]*Page)
	}
	return &Session{Base: strings.TrimRight(base, "/"), Pages: pages, Filled: make(map[string]string)}
}

// Navigate moves the fake to route without recording a visit, as a
// client-side redirect would.
func (s *Session) Navigate(route string) {
	s.mu.Lock()
	s.current = route
	s.mu.Unlock()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) page() *Page {
	if p, ok := s.Pages[s.current]; ok {
		return p
	}
	return &Page{}
}

func (s *Session) check(ctx context.Context) error {
	if s.closed {
		return browser.ErrNoSession
	}
	return ctx.Err()
}

func (s *Session) SetViewport(ctx context.Context, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.width, s.height = width, height
	s.Viewports = append(s.Viewports, [2]int{width, height})
	return nil
}

func (s *Session) Goto(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	route := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		route = u.Path
	}
	s.Visits = append(s.Visits, route)
	p, ok := s.Pages[route]
	if ok && p.GotoErr != nil {
		return fmt.Errorf("browsertest: navigate %s: %w", rawURL, p.GotoErr)
	}
	s.current = route
	if ok && p.RedirectTo != "" {
		s.current = p.RedirectTo
		p = s.page()
	}
	if p != nil {
		for _, m := range p.Events.Console {
			s.collector.Console(m.Level, m.Text)
		}
		for _, f := range p.Events.Failed {
			s.collector.Failure(f.URL, f.Reason)
		}
		for u, status := range p.Responses {
			s.collector.Response(u, status)
		}
	}
	return nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.Base + s.current, nil
}

func (s *Session) ScrollWidth(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if f := s.page().ScrollWidth; f != nil {
		return f(s.width), nil
	}
	return s.width, nil
}

func (s *Session) Query(ctx context.Context, selector string, limit int, text ...string) (browser.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return browser.Match{}, err
	}
	m := s.page().Elements[TextKey(selector, text...)]
	if limit < len(m.Elements) {
		m.Elements = m.Elements[:limit]
	}
	return m, nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.page().Elements[selector].Count == 0 {
		return fmt.Errorf("browsertest: element %q not found on %s", selector, s.current)
	}
	s.Filled[selector] = value
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	if err := s.check(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.page().Elements[selector].Count == 0 {
		s.mu.Unlock()
		return fmt.Errorf("browsertest: element %q not found on %s", selector, s.current)
	}
	s.Clicked = append(s.Clicked, selector)
	onClick := s.OnClick
	s.mu.Unlock()

	if onClick != nil {
		onClick(s, selector)
	}
	return nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.Screenshots++
	return PNG, nil
}

func (s *Session) Drain() browser.Events {
	return s.collector.Drain()
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// TextKey is the Elements key for a query of selector filtered by text.
// Without text it is the selector itself.
func TextKey(selector string, text ...string) string {
	if len(text) == 0 {
		return selector
	}
	return selector + " @text(" + strings.Join(text, "|") + ")"
}

// Visible is a Match of n visible elements of the given size.
func Visible(n int, width, height float64) browser.Match {
	m := browser.Match{Count: n}
	for i := 0; i < n; i++ {
		m.Elements = append(m.Elements, browser.Element{Visible: true, Width: width, Height: height})
	}
	return m
}

// Hidden is a Match of n elements that are not rendered.
func Hidden(n int) browser.Match {
	m := browser.Match{Count: n}
	for i := 0; i < n; i++ {
		m.Elements = append(m.Elements, browser.Element{})
	}
	return m
}

var _ browser.Session = (*Session)(nil)
