package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
	"github.com/hazyhaar/viewcheck/smoke/internal/precheck"
	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Frontend turns a precheck of the frontend root into a Fatal result.
func Frontend(res *precheck.Result, err error) result.CheckResult {
	if err != nil {
		return result.New(result.Fatal, LabelFrontend, false, err.Error())
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return result.New(result.Fatal, LabelFrontend, false, fmt.Sprintf("HTTP %d", res.StatusCode))
	}
	detail := fmt.Sprintf("HTTP %d, title %q", res.StatusCode, clean(res.Title))
	if res.MountPoint != "" {
		detail += ", mount #" + res.MountPoint
	}
	return result.New(result.Fatal, LabelFrontend, true, detail)
}

// APIProxy requires the health endpoint behind the frontend proxy to
// answer 200.
func APIProxy(status int, err error) result.CheckResult {
	if err != nil {
		return result.New(result.Fatal, LabelAPIProxy, false, err.Error())
	}
	return result.New(result.Fatal, LabelAPIProxy, status == http.StatusOK, fmt.Sprintf("HTTP %d", status))
}

// Login records the outcome of the login precondition. Failures are
// warnings: the run continues without a session.
func Login(err error) result.CheckResult {
	if err != nil {
		return result.New(result.Warning, LabelLogin, false, err.Error())
	}
	return result.New(result.Warning, LabelLogin, true, "landing route reached")
}

// Functional loads the home route, checks where it landed and what it
// shows, captures it at a phone size and judges the console and network
// activity. Console errors and failed requests are Fatal here. The error
// is non-nil only when ctx ended.
func Functional(ctx context.Context, s browser.Session, opts Options) ([]result.CheckResult, error) {
	opts.defaults()
	log := opts.Logger

	var out []result.CheckResult
	s.Drain()

	target := opts.BaseURL + opts.HomeRoute
	if err := s.Goto(ctx, target); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		log.Warn("checks: home navigation failed", "url", target, "error", err)
		out = append(out, result.New(result.Fatal, LabelHome, false, err.Error()))
		out = append(out, eventResults(s.Drain(), result.Fatal)...)
		return out, nil
	}
	out = append(out, result.New(result.Fatal, LabelHome, true, target))
	if err := settle(ctx, opts.SettleDelay); err != nil {
		return out, err
	}

	out = append(out, homeURLCheck(ctx, s, target))
	out = append(out, screenshot(ctx, s, opts.Shots, "functional", "home", log)...)
	out = append(out, countCheck(ctx, s, result.Fatal, LabelNav, opts.NavSelector, nil, 1))
	if opts.Authenticated {
		log.Debug("checks: session active, auth buttons not expected")
	} else {
		out = append(out, countCheck(ctx, s, result.Fatal, LabelAuthButton, opts.AuthSelector, opts.AuthTexts, 1))
	}
	if opts.MinTabs > 0 {
		out = append(out, countCheck(ctx, s, result.Fatal, LabelTabs, opts.TabSelector, nil, opts.MinTabs))
	}

	out = append(out, responsiveCheck(ctx, s, opts)...)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	out = append(out, eventResults(s.Drain(), result.Fatal)...)
	return out, ctx.Err()
}

// homeURLCheck requires the page to still be on the home route once it
// settled, so a redirect to a login or error page fails.
func homeURLCheck(ctx context.Context, s browser.Session, want string) result.CheckResult {
	got, err := s.URL(ctx)
	if err != nil {
		return result.New(result.Fatal, LabelHomeURL, false, err.Error())
	}
	if !sameLocation(got, want) {
		return result.New(result.Fatal, LabelHomeURL, false, fmt.Sprintf("landed on %s, want %s", got, want))
	}
	return result.New(result.Fatal, LabelHomeURL, true, got)
}

// sameLocation compares host and path, treating an empty path as "/".
func sameLocation(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	pa, pb := ua.Path, ub.Path
	if pa == "" {
		pa = "/"
	}
	if pb == "" {
		pb = "/"
	}
	return ua.Host == ub.Host && pa == pb
}

// countCheck requires at least min elements matching selector, filtered
// by text when given.
func countCheck(ctx context.Context, s browser.Session, sev result.Severity, label, selector string, text []string, min int) result.CheckResult {
	m, err := s.Query(ctx, selector, 0, text...)
	if err != nil {
		return result.New(sev, label, false, err.Error())
	}
	what := "elements"
	if len(text) > 0 {
		what = "elements containing " + strings.Join(text, " or ")
	}
	detail := fmt.Sprintf("%d %s (want at least %d)", m.Count, what, min)
	return result.New(sev, label, m.Count >= min, detail)
}

// responsiveCheck resizes to the phone viewport, captures the page and
// restores the desktop viewport.
func responsiveCheck(ctx context.Context, s browser.Session, opts Options) []result.CheckResult {
	mobile, desktop := opts.MobileViewport, opts.DesktopViewport
	if err := s.SetViewport(ctx, mobile.Width, mobile.Height); err != nil {
		return []result.CheckResult{result.New(result.Warning, LabelResponsive, false, err.Error())}
	}
	if err := settle(ctx, opts.SettleDelay); err != nil {
		return nil
	}
	out := []result.CheckResult{result.New(result.Warning, LabelResponsive, true, "rendered at "+mobile.String())}
	out = append(out, screenshot(ctx, s, opts.Shots, "functional", "mobile", opts.Logger)...)
	if err := s.SetViewport(ctx, desktop.Width, desktop.Height); err != nil {
		opts.Logger.Warn("checks: restore desktop viewport", "error", err)
	}
	return out
}
