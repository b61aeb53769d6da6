// Package browser owns the single browser session of a smoke run: launch
// or connect, one reused tab, navigation with network-idle waits, element
// queries, screenshots and console/network event collection.
//
// Two drivers implement Session: go-rod (default) and playwright-go.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoSession is returned by operations on a closed session.
var ErrNoSession = errors.New("browser: no active session")

// Element is the rendered state of one matched element.
type Element struct {
	Visible bool    `json:"visible"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Match is the result of a selector query: the total number of matching
// elements and the rendered state of the first few.
type Match struct {
	Count    int       `json:"count"`
	Elements []Element `json:"elements"`
}

// First returns the first matched element, if any.
func (m Match) First() (Element, bool) {
	if len(m.Elements) == 0 {
		return Element{}, false
	}
	return m.Elements[0], true
}

// Session is the browser capability the checks drive. Implementations
// block until each step completes; none of them is safe for concurrent
// use by more than one caller.
type Session interface {
	// SetViewport resizes the emulated window.
	SetViewport(ctx context.Context, width, height int) error
	// Goto navigates and waits for the network to go idle.
	Goto(ctx context.Context, url string) error
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)
	// ScrollWidth returns document.body.scrollWidth.
	ScrollWidth(ctx context.Context) (int, error)
	// Query returns the count of elements matching selector and the
	// rendered state of at most limit of them, in document order. With
	// text, only the innermost matches whose text contains one of the
	// strings count.
	Query(ctx context.Context, selector string, limit int, text ...string) (Match, error)
	// Fill types value into the first element matching selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Drain returns the events collected since the previous Drain.
	Drain() Events
	// Close releases the tab and the browser.
	Close() error
}

// ConsoleMessage is a console entry or an uncaught page exception.
type ConsoleMessage struct {
	Level string `json:"level"` // error, warning, exception...
	Text  string `json:"text"`
}

// FailedRequest is a request that never got a response or got an error
// status back.
type FailedRequest struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Events is a drained batch of collected events.
type Events struct {
	Console []ConsoleMessage `json:"console,omitempty"`
	Failed  []FailedRequest  `json:"failed,omitempty"`
}

// Errors returns the console entries at error level, exceptions included.
func (e Events) Errors() []ConsoleMessage {
	var out []ConsoleMessage
	for _, m := range e.Console {
		if m.Level == "error" || m.Level == "exception" {
			out = append(out, m)
		}
	}
	return out
}

// Collector accumulates events pushed from a driver's event goroutine
// until the harness drains them. Subscribe before navigating, drain after
// the page is idle.
type Collector struct {
	mu     sync.Mutex
	events Events
}

// Console records a console message.
func (c *Collector) Console(level, text string) {
	c.mu.Lock()
	c.events.Console = append(c.events.Console, ConsoleMessage{Level: level, Text: text})
	c.mu.Unlock()
}

// Failure records a failed request. Aborted requests are navigations
// away and blocked ones are our own resource blocking; both are dropped.
func (c *Collector) Failure(url, reason string) {
	switch reason {
	case "net::ERR_ABORTED", "net::ERR_BLOCKED_BY_CLIENT":
		return
	}
	c.mu.Lock()
	c.events.Failed = append(c.events.Failed, FailedRequest{URL: url, Reason: reason})
	c.mu.Unlock()
}

// Response records a response that came back with an error status.
// Statuses below 400 are ignored.
func (c *Collector) Response(url string, status int) {
	if status < 400 {
		return
	}
	c.Failure(url, fmt.Sprintf("HTTP %d", status))
}

// Drain returns everything collected and resets the collector.
func (c *Collector) Drain() Events {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := c.events
	c.events = Events{}
	return ev
}
