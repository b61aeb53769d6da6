// Package idgen produces run identifiers and the run stamps embedded in
// screenshot file names.
//
// A run gets one RunID (for machine-readable reports and webhooks) and one
// Stamp (for file names). Both are computed once at run start.
package idgen

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// StampLayout is the time layout of run stamps: YYYYMMDD_HHMMSS.
const StampLayout = "20060102_150405"

var stampRe = regexp.MustCompile(`^\d{8}_\d{6}$`)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so run IDs order the same way the runs happened.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

var runGen = Prefixed("run_", Default)

// RunID returns a fresh "run_"-prefixed identifier.
func RunID() string {
	return runGen()
}

// Stamp formats t as a run stamp in local time.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// IsStamp reports whether s has the YYYYMMDD_HHMMSS shape.
func IsStamp(s string) bool {
	return stampRe.MatchString(s)
}
