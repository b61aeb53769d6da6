package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config configures the browser session.
type Config struct {
	// Driver selects the automation library: "rod" (default) or "playwright".
	Driver string

	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local browser.
	RemoteURL string

	// Headful runs a visible browser on an Xvfb display.
	Headful bool

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	// Stealth masks automation fingerprints (rod only).
	Stealth bool

	// ResourceBlocking lists resource types to fail: fonts, media (rod only).
	ResourceBlocking []string

	// NavTimeout bounds one navigation including the idle wait. Default: 30s.
	NavTimeout time.Duration

	// IdleWindow is the network quiescence required for "idle". Default: 500ms.
	IdleWindow time.Duration

	// Install downloads the playwright driver and Chromium before launch.
	Install bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Driver == "" {
		c.Driver = "rod"
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Open starts a browser with the configured driver and returns its one
// session. Closing the session shuts the browser down.
func Open(ctx context.Context, cfg Config) (Session, error) {
	cfg.defaults()
	switch cfg.Driver {
	case "rod":
		return openRod(ctx, cfg)
	case "playwright":
		return openPlaywright(ctx, cfg)
	}
	return nil, fmt.Errorf("browser: unknown driver %q", cfg.Driver)
}
