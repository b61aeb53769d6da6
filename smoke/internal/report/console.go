package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Markers printed in front of each result line.
const (
	MarkPass    = "✅"
	MarkFail    = "❌"
	MarkWarning = "⚠️"
)

// Styles are the lipgloss styles of the console reporter.
type Styles struct {
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Warning lipgloss.Style
	Detail  lipgloss.Style
	Title   lipgloss.Style
}

// DefaultStyles returns styles bound to renderer r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Pass:    r.NewStyle().Foreground(lipgloss.Color("42")),
		Fail:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		Detail:  r.NewStyle().Foreground(lipgloss.Color("245")),
		Title:   r.NewStyle().Bold(true),
	}
}

// Console prints human-readable lines. Colours are dropped when w is not
// a terminal.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
}

// NewConsole creates a Console reporter. If w is nil, os.Stdout is used.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, styles: DefaultStyles(lipgloss.NewRenderer(w))}
}

// Mark returns the marker for r.
func Mark(r result.CheckResult) string {
	switch {
	case r.Passed:
		return MarkPass
	case r.Severity == result.Fatal:
		return MarkFail
	}
	return MarkWarning
}

func (c *Console) Result(_ context.Context, r result.CheckResult) error {
	style := c.styles.Pass
	switch {
	case r.Failed(result.Fatal):
		style = c.styles.Fail
	case r.Failed(result.Warning):
		style = c.styles.Warning
	}
	line := style.Render(Mark(r) + " " + r.Key())
	if r.Detail != "" {
		line += " " + c.styles.Detail.Render(r.Detail)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, line)
	return err
}

func (c *Console) Summary(_ context.Context, s result.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	style := c.styles.Pass
	if s.FatalFailed > 0 {
		style = c.styles.Fail
	} else if s.WarningFailed > 0 {
		style = c.styles.Warning
	}
	if _, err := fmt.Fprintln(c.w, "\n"+c.styles.Title.Render("Summary")+" "+style.Render(s.Line())); err != nil {
		return err
	}
	if s.Devices > 0 || s.Pages > 0 {
		if _, err := fmt.Fprintf(c.w, "%d devices × %d pages\n", s.Devices, s.Pages); err != nil {
			return err
		}
	}
	if s.Screenshots > 0 {
		if _, err := fmt.Fprintf(c.w, "%d screenshots\n", s.Screenshots); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) Close() error { return nil }
