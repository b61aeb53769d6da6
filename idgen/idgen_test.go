package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestRunID(t *testing.T) {
	id := RunID()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("RunID: expected prefix run_, got %q", id)
	}
	u, err := uuid.Parse(strings.TrimPrefix(id, "run_"))
	if err != nil {
		t.Fatalf("RunID: suffix is not a UUID: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("RunID: got UUID version %d, want 7", u.Version())
	}
}

func TestRunID_Sortable(t *testing.T) {
	a := RunID()
	time.Sleep(2 * time.Millisecond)
	b := RunID()
	if a >= b {
		t.Fatalf("RunID: %q not before %q", a, b)
	}
}

func TestStamp(t *testing.T) {
	ts := time.Date(2026, 3, 7, 9, 5, 3, 0, time.Local)
	got := Stamp(ts)
	if got != "20260307_090503" {
		t.Fatalf("Stamp: got %q, want 20260307_090503", got)
	}
	if !IsStamp(got) {
		t.Fatalf("IsStamp(%q) = false", got)
	}
}

func TestIsStamp_Rejects(t *testing.T) {
	for _, s := range []string{"", "2026030_090503", "20260307-090503", "20260307_0905031", "x20260307_090503"} {
		if IsStamp(s) {
			t.Errorf("IsStamp(%q) = true, want false", s)
		}
	}
}
