package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/viewcheck/smoke/result"
)

func sample() []result.CheckResult {
	return []result.CheckResult{
		result.New(result.Warning, "横向滚动", true, "scrollWidth 375 within viewport 375").Scope("iPhone SE", "home"),
		result.New(result.Fatal, "导航栏", false, "no visible navigation").Scope("iPhone SE", "market"),
		result.New(result.Warning, "登录", false, "timeout"),
	}
}

func TestMark(t *testing.T) {
	rs := sample()
	want := []string{MarkPass, MarkFail, MarkWarning}
	for i, r := range rs {
		if got := Mark(r); got != want[i] {
			t.Errorf("Mark(%s): got %q, want %q", r.Label, got, want[i])
		}
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	ctx := context.Background()
	for _, r := range sample() {
		if err := c.Result(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	s := result.Summary{Passed: 1, Total: 3, FatalFailed: 1, WarningFailed: 1, Devices: 6, Pages: 6, Screenshots: 36}
	if err := c.Summary(ctx, s); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"✅ iPhone SE / home / 横向滚动",
		"❌ iPhone SE / market / 导航栏",
		"⚠️ 登录",
		"no visible navigation",
		"1/3 checks passed (1 fatal, 1 warnings)",
		"6 devices × 6 pages",
		"36 screenshots",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONLines(&buf)
	ctx := context.Background()
	r := sample()[1]
	if err := j.Result(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := j.Summary(ctx, result.Summary{Passed: 0, Total: 1, FatalFailed: 1}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	var env struct {
		Type string             `json:"type"`
		Data result.CheckResult `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "result" || env.Data.Label != "导航栏" || env.Data.Severity != result.Fatal {
		t.Errorf("result envelope: %+v", env)
	}
	if !strings.Contains(lines[0], `"severity":"fatal"`) {
		t.Errorf("severity not encoded by name: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], `{"type":"summary"`) {
		t.Errorf("summary envelope: %s", lines[1])
	}
}

func TestWebhook_RetriesThenDelivers(t *testing.T) {
	var calls atomic.Int32
	got := make(chan []byte, 1)
	r := chi.NewRouter()
	r.Post("/hook", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, _ := io.ReadAll(req.Body)
		got <- body
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	w := NewWebhook(srv.URL+"/hook", WithWebhookBackoff(time.Millisecond))
	ctx := context.Background()
	for _, res := range sample() {
		w.Result(ctx, res)
	}
	if err := w.Summary(ctx, result.Summary{Passed: 1, Total: 3}); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: got %d, want 3", calls.Load())
	}

	var env struct {
		Type string         `json:"type"`
		Data WebhookPayload `json:"data"`
	}
	if err := json.Unmarshal(<-got, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "summary" || env.Data.Summary.Total != 3 || len(env.Data.Results) != 3 {
		t.Errorf("payload: %+v", env)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	err := w.Summary(context.Background(), result.Summary{})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("got %v", err)
	}
}

type failing struct{ *Callback }

func (failing) Result(context.Context, result.CheckResult) error { return errors.New("down") }

func TestRouter_FansOutDespiteErrors(t *testing.T) {
	var seen []string
	var summary result.Summary
	cb := NewCallback(
		func(_ context.Context, r result.CheckResult) error {
			seen = append(seen, r.Label)
			return nil
		},
		func(_ context.Context, s result.Summary) error {
			summary = s
			return nil
		},
	)
	router := NewRouter(nil, failing{NewCallback(nil, nil)}, cb)
	ctx := context.Background()

	for _, r := range sample() {
		if err := router.Result(ctx, r); err == nil {
			t.Error("expected the failing reporter's error")
		}
	}
	if err := router.Summary(ctx, result.Summary{Total: 3}); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || summary.Total != 3 {
		t.Errorf("callback saw %v, summary %+v", seen, summary)
	}
	if err := router.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
