package smoke

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
	"github.com/hazyhaar/viewcheck/smoke/internal/browser/browsertest"
	"github.com/hazyhaar/viewcheck/smoke/matrix"
	"github.com/hazyhaar/viewcheck/smoke/result"
)

const base = "http://app.test"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// healthyPage renders everything the default selectors look for.
func healthyPage() *browsertest.Page {
	return &browsertest.Page{
		Elements: map[string]browser.Match{
			`nav, [role="navigation"]`:          browsertest.Visible(1, 375, 56),
			`main, [role="main"]`:               browsertest.Visible(1, 360, 900),
			".glass-card":                       browsertest.Visible(3, 340, 200),
			`button, a, input, [role="button"]`: browsertest.Visible(6, 48, 48),
			`nav a, [role="tab"]`:               browsertest.Visible(5, 75, 56),
		},
	}
}

// satisfy adds elements meeting every requirement to p.
func satisfy(p *browsertest.Page, reqs []matrix.Requirement) {
	for _, r := range reqs {
		p.Elements[browsertest.TextKey(r.Selector, r.Text...)] = browsertest.Visible(r.MinCount(), 120, 44)
	}
}

// site returns a fake serving every default page plus a working login
// form that redirects home on submit.
func site() *browsertest.Session {
	pages := make(map[string]*browsertest.Page)
	for _, p := range matrix.DefaultPages() {
		page := healthyPage()
		satisfy(page, p.Require)
		pages[p.Route] = page
	}
	login := &browsertest.Page{Elements: map[string]browser.Match{
		`input[type="tel"], input[name="phone"]`:           browsertest.Visible(1, 300, 44),
		`input[name="code"], input[placeholder*="验证码"]`: browsertest.Visible(1, 300, 44),
		`button[type="submit"]`:                            browsertest.Visible(1, 300, 48),
	}}
	satisfy(login, matrix.LoginRequirements())
	pages["/login"] = login
	s := browsertest.New(base, pages)
	s.OnClick = func(s *browsertest.Session, selector string) {
		if selector == `button[type="submit"]` {
			s.Navigate("/")
		}
	}
	return s
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = base
	var settle time.Duration
	cfg.Checks.SettleDelay = &settle
	cfg.Auth.Timeout = 50 * time.Millisecond
	cfg.Screenshots.Dir = t.TempDir()
	return cfg
}

func newHarness(cfg *Config, s browser.Session, reporters ...Reporter) (*Harness, *int) {
	opened := 0
	h := New(cfg, quietLogger(), reporters...)
	h.open = func(context.Context, browser.Config) (browser.Session, error) {
		opened++
		return s, nil
	}
	return h, &opened
}

func findKey(rs []result.CheckResult, key string) (result.CheckResult, bool) {
	for _, r := range rs {
		if r.Key() == key {
			return r, true
		}
	}
	return result.CheckResult{}, false
}

func failed(rs []result.CheckResult) []string {
	var out []string
	for _, r := range rs {
		if !r.Passed {
			out = append(out, r.Key())
		}
	}
	return out
}

func collect() (Reporter, *[]result.CheckResult, *result.Summary) {
	var rs []result.CheckResult
	var sum result.Summary
	rep := NewCallbackReporter(
		func(_ context.Context, r result.CheckResult) error {
			rs = append(rs, r)
			return nil
		},
		func(_ context.Context, s result.Summary) error {
			sum = s
			return nil
		},
	)
	return rep, &rs, &sum
}

func TestRunResponsive_FullMatrix(t *testing.T) {
	cfg := testConfig(t)
	s := site()
	rep, rs, reported := collect()
	h, _ := newHarness(cfg, s, rep)

	sum, err := h.RunResponsive(context.Background())
	if err != nil {
		t.Fatalf("RunResponsive: %v", err)
	}
	if f := failed(*rs); len(f) != 0 {
		t.Fatalf("unexpected failures: %v", f)
	}
	if sum.Devices != 6 || sum.Pages != 6 {
		t.Errorf("matrix: got %d × %d", sum.Devices, sum.Pages)
	}
	if sum.Screenshots != 36 {
		t.Errorf("Screenshots: got %d", sum.Screenshots)
	}
	if sum.ExitCode(true) != 0 {
		t.Errorf("ExitCode: got %d", sum.ExitCode(true))
	}
	if *reported != *sum {
		t.Errorf("reported summary %+v differs from returned %+v", *reported, *sum)
	}
	if !s.Closed() {
		t.Error("browser left open")
	}

	entries, err := os.ReadDir(cfg.Screenshots.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 36 {
		t.Fatalf("screenshot files: got %d", len(entries))
	}
	re := regexp.MustCompile(`^[A-Za-z0-9_.-]+_[a-z-]+_\d{8}_\d{6}\.png$`)
	for _, e := range entries {
		if !re.MatchString(e.Name()) || !strings.HasSuffix(e.Name(), "_"+sum.Stamp+".png") {
			t.Errorf("screenshot name %q", e.Name())
		}
	}

	// Login first, then device-major.
	if s.Visits[0] != "/login" {
		t.Errorf("first visit: %q", s.Visits[0])
	}
	if len(s.Viewports) != 6 || s.Viewports[0] != [2]int{375, 667} {
		t.Errorf("viewports: %v", s.Viewports)
	}
	if (*rs)[0].Key() != "登录页 / 登录卡片" || (*rs)[0].Severity != result.Fatal {
		t.Errorf("first result: %+v", (*rs)[0])
	}
	if r, ok := findKey(*rs, "登录"); !ok || !r.Passed {
		t.Errorf("login result: %+v", r)
	}
	if _, ok := findKey(*rs, "iPad / 个人中心 / 标签页"); !ok {
		t.Error("profile tab requirement missing from the iPad row")
	}
}

func TestRunResponsive_SingleOverflow(t *testing.T) {
	cfg := testConfig(t)
	s := site()
	s.Pages["/market"].ScrollWidth = func(w int) int {
		if w == 390 {
			return 450
		}
		return w
	}
	rep, rs, _ := collect()
	h, _ := newHarness(cfg, s, rep)

	sum, err := h.RunResponsive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	f := failed(*rs)
	if len(f) != 1 || f[0] != "iPhone 12 / 市场 / 横向滚动" {
		t.Fatalf("failures: %v", f)
	}
	if sum.ExitCode(false) != 0 || sum.ExitCode(true) != 1 {
		t.Errorf("exit codes: %d %d", sum.ExitCode(false), sum.ExitCode(true))
	}
}

func TestRunResponsive_LoginTimeoutContinues(t *testing.T) {
	cfg := testConfig(t)
	cfg.Devices = []matrix.ViewportSpec{{Name: "iPhone SE", Width: 375, Height: 667}}
	cfg.Pages = []matrix.PageSpec{{Route: "/", Name: "home"}, {Route: "/profile", Name: "profile"}}
	s := site()
	s.OnClick = nil
	rep, rs, _ := collect()
	h, _ := newHarness(cfg, s, rep)

	sum, err := h.RunResponsive(context.Background())
	if err != nil {
		t.Fatalf("RunResponsive: %v", err)
	}
	f := failed(*rs)
	if len(f) != 1 || f[0] != "登录" {
		t.Fatalf("failures: %v", f)
	}
	if r, _ := findKey(*rs, "登录"); r.Severity != result.Warning {
		t.Errorf("login severity: %v", r.Severity)
	}
	if sum.Pages != 2 || sum.Screenshots != 2 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.ExitCode(false) != 0 {
		t.Error("login timeout failed the run")
	}
}

func TestRunResponsive_FatalFailsRunButMatrixContinues(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Disabled = true
	s := site()
	delete(s.Pages["/profile"].Elements, browsertest.TextKey("button", "个人资料", "账户设置"))
	delete(s.Pages["/market"].Elements, `nav, [role="navigation"]`)
	rep, rs, _ := collect()
	h, _ := newHarness(cfg, s, rep)

	sum, err := h.RunResponsive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.FatalFailed != 6 || sum.WarningFailed != 6 || sum.Screenshots != 36 {
		t.Errorf("summary: %+v", sum)
	}
	if r, ok := findKey(*rs, "Desktop / 个人中心 / 标签页"); !ok || !r.Failed(result.Fatal) {
		t.Errorf("profile tabs: %+v", r)
	}
	if r, ok := findKey(*rs, "Desktop / 市场 / 导航栏"); !ok || !r.Failed(result.Warning) {
		t.Errorf("market nav: %+v", r)
	}
	if sum.ExitCode(false) != 1 {
		t.Error("fatal failures must fail the run")
	}
	for _, r := range *rs {
		if r.Label == "登录" {
			t.Error("login ran while disabled")
		}
	}
}

func TestRunResponsive_LoginPageRequirements(t *testing.T) {
	cfg := testConfig(t)
	cfg.Devices = cfg.Devices[:1]
	s := site()
	delete(s.Pages["/login"].Elements, browsertest.TextKey("h1, h2, a, span, div", "FlashSell"))
	rep, rs, _ := collect()
	h, _ := newHarness(cfg, s, rep)

	sum, err := h.RunResponsive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f := failed(*rs); len(f) != 1 || f[0] != "登录页 / Logo" {
		t.Fatalf("failures: %v", f)
	}
	if r, _ := findKey(*rs, "登录"); !r.Passed {
		t.Error("login skipped after a login page requirement failed")
	}
	if sum.ExitCode(false) != 1 {
		t.Error("missing logo must fail the run")
	}
}

func newFrontend(t *testing.T, health int) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Shop</title></head><body><div id="app"></div></body></html>`))
	})
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(health)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunFunctional(t *testing.T) {
	tests := []struct {
		name       string
		health     int
		wantFailed []string
		wantExit   int
	}{
		{"healthy", http.StatusOK, nil, 0},
		{"api down", http.StatusServiceUnavailable, []string{"API 代理"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFrontend(t, tt.health)
			cfg := testConfig(t)
			cfg.BaseURL = srv.URL
			s := site()
			s.Base = srv.URL
			rep, rs, _ := collect()
			h, _ := newHarness(cfg, s, rep)

			sum, err := h.RunFunctional(context.Background())
			if err != nil {
				t.Fatalf("RunFunctional: %v", err)
			}
			labels := make([]string, len(*rs))
			for i, r := range *rs {
				labels[i] = r.Label
			}
			want := "前端服务,API 代理,登录卡片,Logo,登录,首页加载,首页访问,导航栏,响应式设计,控制台错误,网络请求"
			if got := strings.Join(labels, ","); got != want {
				t.Errorf("labels: got %s, want %s", got, want)
			}
			if f := failed(*rs); strings.Join(f, ",") != strings.Join(tt.wantFailed, ",") {
				t.Errorf("failures: got %v, want %v", f, tt.wantFailed)
			}
			if sum.ExitCode(false) != tt.wantExit {
				t.Errorf("exit: got %d", sum.ExitCode(false))
			}
			if sum.Screenshots != 2 {
				t.Errorf("screenshots: got %d", sum.Screenshots)
			}
		})
	}
}

func TestRunFunctional_Anonymous(t *testing.T) {
	srv := newFrontend(t, http.StatusOK)
	cfg := testConfig(t)
	cfg.BaseURL = srv.URL
	cfg.Auth.Disabled = true
	s := site()
	s.Base = srv.URL
	home := s.Pages["/"]
	home.Events.Console = []browser.ConsoleMessage{{Level: "error", Text: "Uncaught TypeError"}}
	rep, rs, _ := collect()
	h, _ := newHarness(cfg, s, rep)

	sum, err := h.RunFunctional(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	auth, ok := findKey(*rs, "认证按钮")
	if !ok || auth.Passed {
		t.Errorf("auth buttons: got %+v, want a failure on a page without them", auth)
	}
	console, _ := findKey(*rs, "控制台错误")
	if !console.Failed(result.Fatal) {
		t.Errorf("console: %+v", console)
	}
	if sum.FatalFailed != 2 || sum.ExitCode(false) != 1 {
		t.Errorf("summary: %+v", sum)
	}
}

func TestRunFunctional_FrontendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := testConfig(t)
	cfg.BaseURL = url
	rep, rs, _ := collect()
	h, opened := newHarness(cfg, site(), rep)

	sum, err := h.RunFunctional(context.Background())
	if err == nil {
		t.Fatal("expected infrastructure error")
	}
	if *opened != 0 {
		t.Error("browser opened for an unreachable frontend")
	}
	if len(*rs) != 1 || (*rs)[0].Label != "前端服务" || (*rs)[0].Passed {
		t.Errorf("results: %+v", *rs)
	}
	if sum == nil || sum.ExitCode(false) != 1 {
		t.Errorf("summary: %+v", sum)
	}
}

// brokenViewport fails to resize after the first device.
type brokenViewport struct {
	*browsertest.Session
	calls int
}

func (b *brokenViewport) SetViewport(ctx context.Context, w, h int) error {
	b.calls++
	if b.calls > 1 {
		return errors.New("target closed")
	}
	return b.Session.SetViewport(ctx, w, h)
}

func TestRun_BrowserClosedOnError(t *testing.T) {
	cfg := testConfig(t)
	s := site()
	h, _ := newHarness(cfg, &brokenViewport{Session: s})

	sum, err := h.RunResponsive(context.Background())
	if err == nil || !strings.Contains(err.Error(), "target closed") {
		t.Fatalf("got %v", err)
	}
	if !s.Closed() {
		t.Error("browser left open after error")
	}
	if sum.Pages != 6 || sum.Devices != 1 {
		t.Errorf("partial summary: %+v", sum)
	}
}

func TestRun_OpenFailure(t *testing.T) {
	cfg := testConfig(t)
	h := New(cfg, quietLogger())
	h.open = func(context.Context, browser.Config) (browser.Session, error) {
		return nil, errors.New("chrome not found")
	}
	if _, err := h.RunResponsive(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_UnknownSuite(t *testing.T) {
	h := New(testConfig(t), quietLogger())
	if _, err := h.Run(context.Background(), "visual"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_CancelledStopsMatrix(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Disabled = true
	s := site()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, _ := newHarness(cfg, s)

	if _, err := h.RunResponsive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if !s.Closed() {
		t.Error("browser left open")
	}
}

func TestReportersFromConfig(t *testing.T) {
	reps, err := ReportersFromConfig([]ReporterConfig{{Type: "console"}, {Type: "jsonl"}, {Type: "webhook", URL: "http://hooks.test"}}, io.Discard, nil)
	if err != nil || len(reps) != 3 {
		t.Fatalf("got %d, %v", len(reps), err)
	}
	if _, err := ReportersFromConfig([]ReporterConfig{{Type: "webhook"}}, io.Discard, nil); err == nil {
		t.Error("webhook without url accepted")
	}
	if _, err := ReportersFromConfig([]ReporterConfig{{Type: "slack"}}, io.Discard, nil); err == nil {
		t.Error("unknown reporter accepted")
	}
}
