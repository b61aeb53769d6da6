// Package smoke drives a browser across a device × page matrix and a
// functional flow against a running web frontend, and reports every
// assertion as a CheckResult.
//
// One browser and one tab serve the whole run. Checks run strictly in
// sequence; results are collected by the Harness and handed to reporters
// once the run ends.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/viewcheck/idgen"
	"github.com/hazyhaar/viewcheck/smoke/internal/auth"
	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
	"github.com/hazyhaar/viewcheck/smoke/internal/checks"
	"github.com/hazyhaar/viewcheck/smoke/internal/precheck"
	"github.com/hazyhaar/viewcheck/smoke/internal/report"
	"github.com/hazyhaar/viewcheck/smoke/internal/shots"
	"github.com/hazyhaar/viewcheck/smoke/matrix"
	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Harness runs smoke suites. Create one per run configuration; a Harness
// is not safe for concurrent Runs.
type Harness struct {
	cfg     *Config
	router  *report.Router
	checker *precheck.Checker
	logger  *slog.Logger

	open func(ctx context.Context, cfg browser.Config) (browser.Session, error)
	now  func() time.Time
}

// New creates a Harness. Zero config fields take their defaults.
func New(cfg *Config, logger *slog.Logger, reporters ...Reporter) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()

	return &Harness{
		cfg:     cfg,
		router:  report.NewRouter(logger, reporters...),
		checker: precheck.New(precheck.WithLogger(logger)),
		logger:  logger,
		open:    browser.Open,
		now:     time.Now,
	}
}

// RunResponsive runs the device × page matrix.
func (h *Harness) RunResponsive(ctx context.Context) (*result.Summary, error) {
	return h.Run(ctx, SuiteResponsive)
}

// RunFunctional runs the HTTP prechecks and the home page flow.
func (h *Harness) RunFunctional(ctx context.Context) (*result.Summary, error) {
	return h.Run(ctx, SuiteFunctional)
}

// run is the state of one Run.
type run struct {
	id       string
	suite    string
	stamp    string
	rec      *result.Recorder
	shots    *shots.Store
	loggedIn bool
}

// Run executes suite ("" means the configured one). The summary is
// returned even when an infrastructure error aborted the run; check
// failures are never errors.
func (h *Harness) Run(ctx context.Context, suite string) (*result.Summary, error) {
	if suite == "" {
		suite = h.cfg.Suite
	}
	switch suite {
	case SuiteResponsive, SuiteFunctional, SuiteAll:
	default:
		return nil, fmt.Errorf("smoke: unknown suite %q", suite)
	}

	r := &run{
		id:    idgen.RunID(),
		suite: suite,
		stamp: idgen.Stamp(h.now()),
		rec:   result.NewRecorder(),
	}
	if !h.cfg.Screenshots.Disabled {
		st, err := shots.New(h.cfg.Screenshots.Dir, r.stamp)
		if err != nil {
			return nil, fmt.Errorf("smoke: %w", err)
		}
		r.shots = st
	}

	log := h.logger.With("run_id", r.id, "suite", suite)
	log.Info("harness: run starting", "base_url", h.cfg.BaseURL, "stamp", r.stamp)

	runErr := h.execute(ctx, r, log)
	if runErr != nil {
		log.Error("harness: run aborted", "error", runErr)
	}

	sum := h.finish(ctx, r)
	log.Info("harness: run finished", "passed", sum.Passed, "total", sum.Total,
		"fatal", sum.FatalFailed, "warnings", sum.WarningFailed, "screenshots", sum.Screenshots)
	return sum, runErr
}

func (h *Harness) execute(ctx context.Context, r *run, log *slog.Logger) error {
	functional := r.suite == SuiteFunctional || r.suite == SuiteAll
	responsive := r.suite == SuiteResponsive || r.suite == SuiteAll

	if functional {
		if err := h.precheck(ctx, r); err != nil {
			return err
		}
	}

	sess, err := h.open(ctx, h.browserConfig())
	if err != nil {
		return fmt.Errorf("smoke: open browser: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("harness: close browser", "error", err)
		}
	}()

	if err := h.login(ctx, sess, r, log); err != nil {
		return err
	}

	opts := h.checkOptions(r, log)
	if functional {
		rs, err := checks.Functional(ctx, sess, opts)
		r.rec.Add(rs...)
		if err != nil {
			return err
		}
	}
	if responsive {
		if err := h.matrix(ctx, sess, opts, r, log); err != nil {
			return err
		}
	}
	return nil
}

// precheck checks the frontend and its API proxy over HTTP. An
// unreachable frontend aborts the run.
func (h *Harness) precheck(ctx context.Context, r *run) error {
	res, err := h.checker.Frontend(ctx, h.cfg.BaseURL+"/")
	r.rec.Add(checks.Frontend(res, err))
	if err != nil {
		return fmt.Errorf("smoke: frontend unreachable: %w", err)
	}

	status, err := h.checker.Health(ctx, h.cfg.BaseURL+h.cfg.Functional.HealthPath)
	r.rec.Add(checks.APIProxy(status, err))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// login runs the login precondition and asserts the login page's required
// elements on the way. A failed login is a warning; only a cancelled
// context stops the run.
func (h *Harness) login(ctx context.Context, sess browser.Session, r *run, log *slog.Logger) error {
	a := h.cfg.Auth
	if a.Disabled {
		return nil
	}
	err := auth.Login(ctx, sess, auth.Config{
		BaseURL:        h.cfg.BaseURL,
		Route:          a.Route,
		LandingRoute:   a.LandingRoute,
		Phone:          a.Phone,
		Code:           a.Code,
		PhoneSelector:  a.PhoneSelector,
		CodeSelector:   a.CodeSelector,
		SubmitSelector: a.SubmitSelector,
		Timeout:        a.Timeout,
		Logger:         log,
		Inspect: func(ctx context.Context, s browser.Session) {
			for _, res := range checks.Requirements(ctx, s, a.Require) {
				r.rec.Add(res.Scope("", loginPage))
			}
		},
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Warn("harness: login failed, continuing without session", "error", err)
	}
	r.loggedIn = err == nil
	r.rec.Add(checks.Login(err))
	return nil
}

// loginPage scopes the login page's requirement results.
const loginPage = "登录页"

// matrix runs the per-page checks device by device, resizing only when
// the device changes.
func (h *Harness) matrix(ctx context.Context, sess browser.Session, opts checks.Options, r *run, log *slog.Logger) error {
	current := ""
	for _, p := range matrix.Pairs(h.cfg.Devices, h.cfg.Pages) {
		dev, pg := p.Device, p.Page
		if dev.Name != current {
			if err := sess.SetViewport(ctx, dev.Width, dev.Height); err != nil {
				return fmt.Errorf("smoke: viewport %s: %w", dev, err)
			}
			log.Info("harness: device", "device", dev.Name, "width", dev.Width, "height", dev.Height)
			current = dev.Name
		}

		rs, err := checks.Page(ctx, sess, dev, pg, opts)
		r.rec.Add(rs...)
		if err != nil {
			return err
		}
		log.Debug("harness: page checked", "device", dev.Name, "page", pg.Name, "results", len(rs))
	}
	return nil
}

// finish derives the summary and hands everything to the reporters.
// Reporting outlives a cancelled run context.
func (h *Harness) finish(ctx context.Context, r *run) *result.Summary {
	sum := r.rec.Summary()
	sum.RunID = r.id
	sum.Suite = r.suite
	sum.Stamp = r.stamp
	if r.shots != nil {
		sum.Screenshots = r.shots.Written()
	}

	rctx := context.WithoutCancel(ctx)
	var errs []error
	for _, res := range r.rec.Results() {
		if err := h.router.Result(rctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.router.Summary(rctx, sum); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		h.logger.Warn("harness: reporting incomplete", "errors", len(errs))
	}
	return &sum
}

// Close releases the reporters.
func (h *Harness) Close() error {
	return h.router.Close()
}

func (h *Harness) browserConfig() browser.Config {
	b := h.cfg.Browser
	return browser.Config{
		Driver:           b.Driver,
		RemoteURL:        b.Remote,
		Headful:          b.Headful,
		XvfbDisplay:      b.XvfbDisplay,
		Stealth:          b.Stealth,
		ResourceBlocking: b.ResourceBlocking,
		NavTimeout:       b.NavTimeout,
		IdleWindow:       b.IdleWindow,
		Install:          b.Install,
		Logger:           h.logger,
	}
}

func (h *Harness) checkOptions(r *run, log *slog.Logger) checks.Options {
	c, f := h.cfg.Checks, h.cfg.Functional
	opts := checks.Options{
		BaseURL:         h.cfg.BaseURL,
		SettleDelay:     settleDelay(c.SettleDelay),
		ScrollTolerance: c.ScrollTolerance,
		NavSelector:     c.NavSelector,
		MainSelector:    c.MainSelector,
		CardSelector:    c.CardSelector,
		ControlSelector: c.ControlSelector,
		ControlSample:   c.ControlSample,
		MinTouchSize:    c.MinTouchSize,
		TrackEvents:     c.TrackEvents,
		HomeRoute:       f.HomeRoute,
		AuthSelector:    f.AuthSelector,
		AuthTexts:       f.AuthTexts,
		TabSelector:     f.TabSelector,
		MinTabs:         f.MinTabs,
		Authenticated:   r.loggedIn,
		MobileViewport:  f.MobileViewport,
		DesktopViewport: f.DesktopViewport,
		Logger:          log,
	}
	if r.shots != nil {
		opts.Shots = r.shots
	}
	return opts
}

func settleDelay(d *time.Duration) time.Duration {
	if d == nil {
		return time.Second
	}
	return *d
}
