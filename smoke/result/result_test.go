package result

import (
	"encoding/json"
	"testing"
)

func TestRecorder_Summary(t *testing.T) {
	rec := NewRecorder()
	rec.Add(
		New(Warning, "登录", false, "timeout"),
		New(Fatal, "API 代理", true, "200"),
		New(Warning, "横向滚动", true, "").Scope("iPhone SE", "home"),
		New(Fatal, "导航栏", false, "missing").Scope("iPhone SE", "market"),
		New(Warning, "横向滚动", false, "overflow").Scope("Desktop", "home"),
	)

	s := rec.Summary()
	if s.Total != 5 || s.Passed != 2 {
		t.Fatalf("Summary: got %d/%d, want 2/5", s.Passed, s.Total)
	}
	if s.FatalFailed != 1 || s.WarningFailed != 2 {
		t.Errorf("Summary: fatal=%d warning=%d, want 1 and 2", s.FatalFailed, s.WarningFailed)
	}
	if s.Devices != 2 || s.Pages != 2 {
		t.Errorf("Summary: devices=%d pages=%d, want 2 and 2", s.Devices, s.Pages)
	}
	if s.OK(false) {
		t.Error("OK(false): want false with a fatal failure")
	}
	if s.ExitCode(false) != 1 {
		t.Errorf("ExitCode: got %d, want 1", s.ExitCode(false))
	}
}

func TestSummary_OK(t *testing.T) {
	warnOnly := Summary{Passed: 3, Total: 4, WarningFailed: 1}
	if !warnOnly.OK(false) {
		t.Error("warnings only, non-strict: want OK")
	}
	if warnOnly.OK(true) {
		t.Error("warnings only, strict: want not OK")
	}
	if (Summary{}).ExitCode(true) != 0 {
		t.Error("empty summary: want exit 0")
	}
}

func TestRecorder_ResultsIsCopy(t *testing.T) {
	rec := NewRecorder()
	rec.Add(New(Warning, "a", true, ""))
	got := rec.Results()
	got[0].Label = "mutated"
	if rec.Results()[0].Label != "a" {
		t.Error("Results: caller mutation leaked into recorder")
	}
}

func TestCheckResult_Key(t *testing.T) {
	r := New(Warning, "卡片", true, "")
	if r.Key() != "卡片" {
		t.Errorf("Key run-level: got %q", r.Key())
	}
	if got := r.Scope("iPad", "首页").Key(); got != "iPad / 首页 / 卡片" {
		t.Errorf("Key scoped: got %q", got)
	}
	if r.Device != "" {
		t.Error("Scope mutated the receiver")
	}
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(New(Fatal, "x", false, ""))
	if err != nil {
		t.Fatal(err)
	}
	var got CheckResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Severity != Fatal {
		t.Errorf("Severity roundtrip: got %v", got.Severity)
	}

	var s Severity
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText: expected error for unknown severity")
	}
}

func TestSummaryLine(t *testing.T) {
	s := Summary{Passed: 34, Total: 36, FatalFailed: 1, WarningFailed: 1}
	if got := s.Line(); got != "34/36 checks passed (1 fatal, 1 warnings)" {
		t.Errorf("Line: got %q", got)
	}
}
