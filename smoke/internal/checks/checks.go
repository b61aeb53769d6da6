// Package checks runs the per-page assertion battery against a browser
// session and turns every assertion into a result.CheckResult.
package checks

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
	"github.com/hazyhaar/viewcheck/smoke/matrix"
	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Result labels.
const (
	LabelLoad       = "页面加载"
	LabelScroll     = "横向滚动"
	LabelNav        = "导航栏"
	LabelMain       = "主内容"
	LabelCards      = "卡片"
	LabelTouch      = "触控目标"
	LabelConsole    = "控制台错误"
	LabelNetwork    = "网络请求"
	LabelScreenshot = "截图"

	LabelFrontend   = "前端服务"
	LabelAPIProxy   = "API 代理"
	LabelLogin      = "登录"
	LabelHome       = "首页加载"
	LabelHomeURL    = "首页访问"
	LabelAuthButton = "认证按钮"
	LabelTabs       = "底部导航"
	LabelResponsive = "响应式设计"
)

// Shooter persists a screenshot for a device/page pair.
type Shooter interface {
	Write(device, page string, png []byte) (string, error)
}

// Options tunes the checks. Zero fields take the defaults below.
type Options struct {
	BaseURL         string
	SettleDelay     time.Duration
	ScrollTolerance int    // default 10
	NavSelector     string // default `nav, [role="navigation"]`
	MainSelector    string // default `main, [role="main"]`
	CardSelector    string // default ".glass-card"
	ControlSelector string // default `button, a, input, [role="button"]`
	ControlSample   int    // default 5
	MinTouchSize    int    // default 44
	TrackEvents     bool

	// Functional suite.
	HomeRoute       string              // default "/"
	AuthSelector    string              // default `button, a, [role="button"]`
	AuthTexts       []string            // default 登录, 注册
	TabSelector     string              // default `nav a, [role="tab"]`
	MinTabs         int                 // 0 skips the tab bar check
	Authenticated   bool                // a login session is active; skips 认证按钮
	MobileViewport  matrix.ViewportSpec // default 375x667
	DesktopViewport matrix.ViewportSpec // default 1920x1080

	// Shots receives screenshots. Nil disables them.
	Shots  Shooter
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.ScrollTolerance <= 0 {
		o.ScrollTolerance = 10
	}
	if o.NavSelector == "" {
		o.NavSelector = `nav, [role="navigation"]`
	}
	if o.MainSelector == "" {
		o.MainSelector = `main, [role="main"]`
	}
	if o.CardSelector == "" {
		o.CardSelector = ".glass-card"
	}
	if o.ControlSelector == "" {
		o.ControlSelector = `button, a, input, [role="button"]`
	}
	if o.ControlSample <= 0 {
		o.ControlSample = 5
	}
	if o.MinTouchSize <= 0 {
		o.MinTouchSize = 44
	}
	if o.HomeRoute == "" {
		o.HomeRoute = "/"
	}
	if o.AuthSelector == "" {
		o.AuthSelector = `button, a, [role="button"]`
	}
	if len(o.AuthTexts) == 0 {
		o.AuthTexts = []string{"登录", "注册"}
	}
	if o.TabSelector == "" {
		o.TabSelector = `nav a, [role="tab"]`
	}
	if o.MobileViewport.Width <= 0 {
		o.MobileViewport = matrix.ViewportSpec{Name: "Mobile", Width: 375, Height: 667}
	}
	if o.DesktopViewport.Width <= 0 {
		o.DesktopViewport = matrix.ViewportSpec{Name: "Desktop", Width: 1920, Height: 1080}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// sanitizer strips markup from page-controlled text before it lands in
// reports.
var sanitizer = bluemonday.StrictPolicy()

const maxDetail = 200

// clean strips markup, undoes the entity escaping the sanitizer applies
// and cuts the text to maxDetail runes.
func clean(s string) string {
	s = strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
	if utf8.RuneCountInString(s) > maxDetail {
		s = string([]rune(s)[:maxDetail]) + "..."
	}
	return s
}

// settle waits d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// eventResults turns drained events into the console and network results
// at the given severity.
func eventResults(ev browser.Events, sev result.Severity) []result.CheckResult {
	errs := ev.Errors()
	console := result.New(sev, LabelConsole, len(errs) == 0, "no console errors")
	if len(errs) > 0 {
		console.Detail = fmt.Sprintf("%d console errors, first: %s", len(errs), clean(errs[0].Text))
	}

	network := result.New(sev, LabelNetwork, len(ev.Failed) == 0, "no failed requests")
	if n := len(ev.Failed); n > 0 {
		f := ev.Failed[0]
		network.Detail = fmt.Sprintf("%d failed requests, first: %s (%s)", n, clean(f.URL), f.Reason)
	}
	return []result.CheckResult{console, network}
}

// Requirements asserts each requirement against the loaded page. Every
// result is Fatal.
func Requirements(ctx context.Context, s browser.Session, reqs []matrix.Requirement) []result.CheckResult {
	out := make([]result.CheckResult, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, requirementCheck(ctx, s, r))
	}
	return out
}

func requirementCheck(ctx context.Context, s browser.Session, r matrix.Requirement) result.CheckResult {
	limit := 0
	if r.Visible {
		limit = 1
	}
	m, err := s.Query(ctx, r.Selector, limit, r.Text...)
	if err != nil {
		return result.New(result.Fatal, r.Label, false, err.Error())
	}
	what := r.Selector
	if len(r.Text) > 0 {
		what = fmt.Sprintf("%s containing %s", r.Selector, strings.Join(r.Text, " or "))
	}
	if m.Count < r.MinCount() {
		return result.New(result.Fatal, r.Label, false,
			fmt.Sprintf("%d × %s (want at least %d)", m.Count, what, r.MinCount()))
	}
	if r.Visible {
		if el, ok := m.First(); !ok || !el.Visible {
			return result.New(result.Fatal, r.Label, false, fmt.Sprintf("%s not visible", what))
		}
	}
	return result.New(result.Fatal, r.Label, true, fmt.Sprintf("%d × %s", m.Count, what))
}

// screenshot captures the page and hands it to shots. Only failures
// produce a result.
func screenshot(ctx context.Context, s browser.Session, shots Shooter, device, page string, log *slog.Logger) []result.CheckResult {
	if shots == nil {
		return nil
	}
	png, err := s.Screenshot(ctx)
	if err == nil {
		var path string
		path, err = shots.Write(device, page, png)
		if err == nil {
			log.Debug("checks: screenshot saved", "path", path)
			return nil
		}
	}
	log.Warn("checks: screenshot failed", "device", device, "page", page, "error", err)
	return []result.CheckResult{result.New(result.Warning, LabelScreenshot, false, err.Error())}
}
