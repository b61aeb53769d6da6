// Package result defines the check outcomes a smoke run produces. These
// types are the public contract for reporters and any caller embedding
// the harness.
package result

import (
	"fmt"
	"time"
)

// Severity says what a failed check means for the run.
type Severity int

const (
	// Warning failures are recorded and never abort anything.
	Warning Severity = iota
	// Fatal failures abort the remaining checks of the current page and
	// make the run exit non-zero.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Fatal:
		return "fatal"
	case Warning:
		return "warning"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText encodes the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "fatal" or "warning".
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "fatal":
		*s = Fatal
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("result: unknown severity %q", b)
	}
	return nil
}

// CheckResult is the outcome of one assertion. Device and Page are empty
// for run-level checks (login, API proxy).
type CheckResult struct {
	Label    string    `json:"label"`
	Passed   bool      `json:"passed"`
	Detail   string    `json:"detail,omitempty"`
	Severity Severity  `json:"severity"`
	Device   string    `json:"device,omitempty"`
	Page     string    `json:"page,omitempty"`
	At       time.Time `json:"at"`
}

// New builds a CheckResult stamped with the current time.
func New(sev Severity, label string, passed bool, detail string) CheckResult {
	return CheckResult{
		Label:    label,
		Passed:   passed,
		Detail:   detail,
		Severity: sev,
		At:       time.Now(),
	}
}

// Scope returns a copy of r attached to a device and page.
func (r CheckResult) Scope(device, page string) CheckResult {
	r.Device = device
	r.Page = page
	return r
}

// Key is the human label results are listed under:
// "device / page / label", shortened for run-level checks.
func (r CheckResult) Key() string {
	switch {
	case r.Device != "" && r.Page != "":
		return r.Device + " / " + r.Page + " / " + r.Label
	case r.Page != "":
		return r.Page + " / " + r.Label
	}
	return r.Label
}

// Failed reports whether the result is a failure of the given severity.
func (r CheckResult) Failed(sev Severity) bool {
	return !r.Passed && r.Severity == sev
}
