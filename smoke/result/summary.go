package result

import "fmt"

// Summary is a view over a result sequence. It is computed on demand and
// never stored; the run metadata fields are filled in by the harness.
type Summary struct {
	RunID         string `json:"run_id,omitempty"`
	Suite         string `json:"suite,omitempty"`
	Stamp         string `json:"stamp,omitempty"`
	Passed        int    `json:"passed"`
	Total         int    `json:"total"`
	FatalFailed   int    `json:"fatal_failed"`
	WarningFailed int    `json:"warning_failed"`
	Devices       int    `json:"devices"`
	Pages         int    `json:"pages"`
	Screenshots   int    `json:"screenshots"`
}

// OK reports whether the run succeeded. Only fatal failures count unless
// strict is set, in which case every failure does.
func (s Summary) OK(strict bool) bool {
	if s.FatalFailed > 0 {
		return false
	}
	return !strict || s.WarningFailed == 0
}

// ExitCode maps OK onto a process exit status.
func (s Summary) ExitCode(strict bool) int {
	if s.OK(strict) {
		return 0
	}
	return 1
}

// Line is the one-line "passed/total" rendering.
func (s Summary) Line() string {
	return fmt.Sprintf("%d/%d checks passed (%d fatal, %d warnings)",
		s.Passed, s.Total, s.FatalFailed, s.WarningFailed)
}
