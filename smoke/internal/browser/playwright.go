package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/playwright-community/playwright-go"
)

// pwSession drives one Chromium page through playwright-go.
type pwSession struct {
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	display *xvfb
	events  *Collector
}

func openPlaywright(ctx context.Context, cfg Config) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	s := &pwSession{cfg: cfg, events: &Collector{}}

	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("browser: playwright install: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("browser: playwright run: %w", err)
	}
	s.pw = pw

	if cfg.RemoteURL != "" {
		log.Info("browser: connecting to remote", "url", cfg.RemoteURL, "driver", "playwright")
		s.browser, err = pw.Chromium.ConnectOverCDP(cfg.RemoteURL)
	} else {
		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(!cfg.Headful),
		}
		if cfg.Headful {
			d, xerr := startXvfb(cfg.XvfbDisplay, log)
			if xerr != nil {
				s.cleanup()
				return nil, fmt.Errorf("browser: xvfb: %w", xerr)
			}
			s.display = d
			opts.Env = envMap(os.Environ(), "DISPLAY", cfg.XvfbDisplay)
		}
		s.browser, err = pw.Chromium.Launch(opts)
	}
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: launch chromium: %w", err)
	}

	s.page, err = s.browser.NewPage()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	s.page.SetDefaultTimeout(float64(cfg.NavTimeout.Milliseconds()))

	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.events.Console(msg.Type(), msg.Text())
	})
	s.page.OnPageError(func(err error) {
		s.events.Console("exception", err.Error())
	})
	s.page.OnResponse(func(resp playwright.Response) {
		s.events.Response(resp.URL(), resp.Status())
	})
	s.page.OnRequestFailed(func(req playwright.Request) {
		reason := ""
		if f := req.Failure(); f != nil {
			reason = f.Error()
		}
		s.events.Failure(req.URL(), reason)
	})

	log.Info("browser: launched chromium", "driver", "playwright", "headful", cfg.Headful)
	return s, nil
}

func envMap(environ []string, key, value string) map[string]string {
	out := make(map[string]string, len(environ)+1)
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	out[key] = value
	return out
}

func (s *pwSession) timeout() *float64 {
	return playwright.Float(float64(s.cfg.NavTimeout.Milliseconds()))
}

func (s *pwSession) SetViewport(ctx context.Context, width, height int) error {
	if s.page == nil {
		return ErrNoSession
	}
	if err := s.page.SetViewportSize(width, height); err != nil {
		return fmt.Errorf("browser: set viewport %dx%d: %w", width, height, err)
	}
	return ctx.Err()
}

func (s *pwSession) Goto(ctx context.Context, url string) error {
	if s.page == nil {
		return ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   s.timeout(),
	})
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (s *pwSession) URL(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", ErrNoSession
	}
	return s.page.URL(), ctx.Err()
}

func (s *pwSession) eval(ctx context.Context, js string, arg ...any) (string, error) {
	if s.page == nil {
		return "", ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := s.page.Evaluate(js, arg...)
	if err != nil {
		return "", err
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *pwSession) ScrollWidth(ctx context.Context) (int, error) {
	return scrollWidth(ctx, s)
}

func (s *pwSession) Query(ctx context.Context, selector string, limit int, text ...string) (Match, error) {
	return query(ctx, s, selector, limit, text)
}

func (s *pwSession) Fill(ctx context.Context, selector, value string) error {
	if s.page == nil {
		return ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{Timeout: s.timeout()})
	if err != nil {
		return fmt.Errorf("browser: fill %q: %w", selector, err)
	}
	return nil
}

func (s *pwSession) Click(ctx context.Context, selector string) error {
	if s.page == nil {
		return ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: s.timeout()})
	if err != nil {
		return fmt.Errorf("browser: click %q: %w", selector, err)
	}
	return nil
}

func (s *pwSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.page == nil {
		return nil, ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return png, nil
}

func (s *pwSession) Drain() Events {
	return s.events.Drain()
}

func (s *pwSession) Close() error {
	s.cleanup()
	return nil
}

func (s *pwSession) cleanup() {
	log := s.cfg.Logger
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			log.Debug("browser: close page", "error", err)
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Debug("browser: close chromium", "error", err)
		}
		s.browser = nil
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			log.Debug("browser: stop playwright", "error", err)
		}
		s.pw = nil
	}
	s.display.stop()
	s.display = nil
}
