package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// rodSession drives one Chrome tab through go-rod.
type rodSession struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	display *xvfb
	page    *rod.Page
	hijack  *rod.HijackRouter
	events  *Collector
	stopEv  context.CancelFunc
}

func openRod(ctx context.Context, cfg Config) (Session, error) {
	s := &rodSession{cfg: cfg, events: &Collector{}}

	b, err := s.launch()
	if err != nil {
		s.cleanup()
		return nil, err
	}
	s.browser = b

	if cfg.Stealth {
		s.page, err = stealth.Page(b)
	} else {
		s.page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		set, err := BlockTypes(cfg.ResourceBlocking)
		if err == nil {
			s.hijack, err = blockResources(s.page, set)
		}
		if err != nil {
			s.cleanup()
			return nil, err
		}
	}

	s.subscribe(ctx)
	return s, nil
}

func (s *rodSession) launch() (*rod.Browser, error) {
	log := s.cfg.Logger

	if s.cfg.Headful && s.cfg.RemoteURL == "" {
		d, err := startXvfb(s.cfg.XvfbDisplay, log)
		if err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
		s.display = d
	}

	var wsURL string

	if s.cfg.RemoteURL != "" {
		wsURL = s.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New()

		if s.cfg.Headful {
			l = l.Headless(false).Env(append(os.Environ(), "DISPLAY="+s.cfg.XvfbDisplay)...)
		} else {
			l = l.Headless(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", s.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	// Local dev frontends often sit behind self-signed certs.
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	return b, nil
}

// subscribe registers the console and network collectors. Callbacks run
// on rod's event goroutine; requests is only touched there.
func (s *rodSession) subscribe(ctx context.Context) {
	evCtx, cancel := context.WithCancel(ctx)
	s.stopEv = cancel

	requests := make(map[proto.NetworkRequestID]string)

	wait := s.page.Context(evCtx).EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			s.events.Console(string(e.Type), remoteText(e.Args))
		},
		func(e *proto.RuntimeExceptionThrown) {
			text := ""
			if d := e.ExceptionDetails; d != nil {
				text = d.Text
				if d.Exception != nil && d.Exception.Description != "" {
					text = d.Exception.Description
				}
			}
			s.events.Console("exception", text)
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if e.Request != nil {
				requests[e.RequestID] = e.Request.URL
			}
		},
		func(e *proto.NetworkLoadingFailed) {
			url := requests[e.RequestID]
			delete(requests, e.RequestID)
			if e.Canceled {
				return
			}
			s.events.Failure(url, e.ErrorText)
		},
		func(e *proto.NetworkResponseReceived) {
			if e.Response != nil {
				s.events.Response(e.Response.URL, e.Response.Status)
			}
		},
		func(e *proto.NetworkLoadingFinished) {
			delete(requests, e.RequestID)
		},
	)
	go wait()
}

func remoteText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
			continue
		}
		parts = append(parts, a.Value.Str())
	}
	return strings.Join(parts, " ")
}

func (s *rodSession) SetViewport(ctx context.Context, width, height int) error {
	if s.page == nil {
		return ErrNoSession
	}
	err := s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            width <= 480,
	})
	if err != nil {
		return fmt.Errorf("browser: set viewport %dx%d: %w", width, height, err)
	}
	return nil
}

func (s *rodSession) Goto(ctx context.Context, url string) error {
	if s.page == nil {
		return ErrNoSession
	}
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	idle := p.WaitRequestIdle(s.cfg.IdleWindow, nil, nil, nil)

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	idle()
	return idleErr(navCtx, url, s.cfg.NavTimeout)
}

// idleErr reports a navigation whose deadline passed while waiting for
// the network to go quiet. WaitRequestIdle returns on deadline as well as
// on idle, so only the context tells the two apart.
func idleErr(navCtx context.Context, url string, timeout time.Duration) error {
	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("browser: network idle %s after %v: %w", url, timeout, err)
	}
	return nil
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", ErrNoSession
	}
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (s *rodSession) eval(ctx context.Context, js string, arg ...any) (string, error) {
	if s.page == nil {
		return "", ErrNoSession
	}
	res, err := s.page.Context(ctx).Eval(js, arg...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *rodSession) ScrollWidth(ctx context.Context) (int, error) {
	return scrollWidth(ctx, s)
}

func (s *rodSession) Query(ctx context.Context, selector string, limit int, text ...string) (Match, error) {
	return query(ctx, s, selector, limit, text)
}

func (s *rodSession) element(ctx context.Context, selector string) (*rod.Element, context.CancelFunc, error) {
	if s.page == nil {
		return nil, func() {}, ErrNoSession
	}
	elCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	el, err := s.page.Context(elCtx).Element(selector)
	if err != nil {
		cancel()
		return nil, func() {}, fmt.Errorf("browser: element %q: %w", selector, err)
	}
	return el, cancel, nil
}

func (s *rodSession) Fill(ctx context.Context, selector, value string) error {
	el, cancel, err := s.element(ctx, selector)
	defer cancel()
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		s.cfg.Logger.Debug("browser: select text before fill", "selector", selector, "error", err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: fill %q: %w", selector, err)
	}
	return nil
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	el, cancel, err := s.element(ctx, selector)
	defer cancel()
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %q: %w", selector, err)
	}
	return nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.page == nil {
		return nil, ErrNoSession
	}
	png, err := s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return png, nil
}

func (s *rodSession) Drain() Events {
	return s.events.Drain()
}

func (s *rodSession) Close() error {
	s.cleanup()
	return nil
}

func (s *rodSession) cleanup() {
	if s.stopEv != nil {
		s.stopEv()
		s.stopEv = nil
	}
	if s.hijack != nil {
		s.hijack.Stop()
		s.hijack = nil
	}
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	s.display.stop()
	s.display = nil
}
