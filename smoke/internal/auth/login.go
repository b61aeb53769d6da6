// Package auth runs the phone + verification code login that precedes the
// checks. Login failures are soft: callers log them and carry on so a
// broken environment still yields diagnostics.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
)

// ErrLoginTimeout means the landing route was not reached in time.
var ErrLoginTimeout = errors.New("auth: landing route not reached")

// Config describes the login form and credentials.
type Config struct {
	BaseURL        string
	Route          string
	LandingRoute   string
	Phone          string
	Code           string
	PhoneSelector  string
	CodeSelector   string
	SubmitSelector string
	Timeout        time.Duration
	PollInterval   time.Duration
	Logger         *slog.Logger

	// Inspect runs once the login page has loaded, before any field is
	// touched.
	Inspect func(ctx context.Context, s browser.Session)
}

func (c *Config) defaults() {
	if c.Route == "" {
		c.Route = "/login"
	}
	if c.LandingRoute == "" {
		c.LandingRoute = "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Login fills and submits the login form, then waits up to cfg.Timeout for
// the session to land on cfg.LandingRoute.
func Login(ctx context.Context, s browser.Session, cfg Config) error {
	cfg.defaults()
	log := cfg.Logger
	loginURL := cfg.BaseURL + cfg.Route

	log.Info("auth: logging in", "url", loginURL, "phone", mask(cfg.Phone))

	if err := s.Goto(ctx, loginURL); err != nil {
		return fmt.Errorf("auth: open login page: %w", err)
	}
	if cfg.Inspect != nil {
		cfg.Inspect(ctx, s)
	}
	if err := s.Fill(ctx, cfg.PhoneSelector, cfg.Phone); err != nil {
		return fmt.Errorf("auth: phone field: %w", err)
	}
	if err := s.Fill(ctx, cfg.CodeSelector, cfg.Code); err != nil {
		return fmt.Errorf("auth: code field: %w", err)
	}
	if err := s.Click(ctx, cfg.SubmitSelector); err != nil {
		return fmt.Errorf("auth: submit: %w", err)
	}

	if err := waitForRoute(ctx, s, cfg.LandingRoute, cfg.Timeout, cfg.PollInterval); err != nil {
		return err
	}
	log.Info("auth: logged in", "landing", cfg.LandingRoute)
	return nil
}

// waitForRoute polls the session URL until its path equals route.
func waitForRoute(ctx context.Context, s browser.Session, route string, timeout, every time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := ""
	for {
		if u, err := s.URL(waitCtx); err == nil {
			last = u
			if onRoute(u, route) {
				return nil
			}
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s after %v (at %s)", ErrLoginTimeout, route, timeout, last)
		case <-ticker.C:
		}
	}
}

func onRoute(rawURL, route string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if route != "/" {
		path = strings.TrimSuffix(path, "/")
		route = strings.TrimSuffix(route, "/")
	}
	return path == route
}

// mask keeps the last four digits of a phone number.
func mask(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
