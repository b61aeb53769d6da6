// Package precheck checks the frontend and its API proxy over plain HTTP
// before any browser is started.
package precheck

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Result is the outcome of a frontend fetch.
type Result struct {
	URL        string
	StatusCode int
	Title      string
	MountPoint string // id of the SPA mount element: app, root or __next
	Shell      bool   // mount point present but empty (client-rendered)
	Size       int
}

// Checker performs the HTTP checks.
type Checker struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(k *Checker) { k.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(k *Checker) { k.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Checker) { k.logger = l }
}

// New creates a Checker with a 10s client timeout.
func New(opts ...Option) *Checker {
	k := &Checker{
		client: &http.Client{Timeout: 10 * time.Second},
		ua:     "Mozilla/5.0 (compatible; viewcheck/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// maxBody caps how much of a page is read.
const maxBody = 5 << 20

// Frontend GETs pageURL and inspects the returned HTML. A non-2xx status
// is not an error; an unreachable server is.
func (k *Checker) Frontend(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("precheck: new request: %w", err)
	}
	req.Header.Set("User-Agent", k.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("precheck: frontend %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("precheck: read body: %w", err)
	}

	res := &Result{URL: pageURL, StatusCode: resp.StatusCode, Size: len(body)}
	if doc, err := html.Parse(bytes.NewReader(body)); err == nil {
		inspect(doc, res)
	}

	k.logger.Debug("precheck: frontend",
		"url", pageURL, "status", res.StatusCode, "size", res.Size,
		"title", res.Title, "mount", res.MountPoint)
	return res, nil
}

// Health GETs a health endpoint and returns its status code.
func (k *Checker) Health(ctx context.Context, healthURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return 0, fmt.Errorf("precheck: new request: %w", err)
	}
	req.Header.Set("User-Agent", k.ua)

	resp, err := k.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("precheck: health %s: %w", healthURL, err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	k.logger.Debug("precheck: health", "url", healthURL, "status", resp.StatusCode)
	return resp.StatusCode, nil
}

var mountIDs = map[string]bool{"app": true, "root": true, "__next": true}

// inspect walks the document once for the title and the first mount point.
func inspect(n *html.Node, res *Result) {
	if n.Type == html.ElementNode {
		switch {
		case n.DataAtom == atom.Title && res.Title == "":
			res.Title = strings.TrimSpace(text(n))
		case res.MountPoint == "":
			if id := attr(n, "id"); mountIDs[id] {
				res.MountPoint = id
				res.Shell = !hasContent(n)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inspect(c, res)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func hasContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}
