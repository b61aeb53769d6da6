package result

// Recorder is the ordered, append-only result sequence of one run. It is
// owned by the harness goroutine and is not safe for concurrent use.
type Recorder struct {
	results []CheckResult
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add appends results in order.
func (r *Recorder) Add(results ...CheckResult) {
	r.results = append(r.results, results...)
}

// Results returns a copy of the recorded sequence.
func (r *Recorder) Results() []CheckResult {
	out := make([]CheckResult, len(r.results))
	copy(out, r.results)
	return out
}

// Summary derives the counts over everything recorded so far.
func (r *Recorder) Summary() Summary {
	var s Summary
	devices := make(map[string]bool)
	pages := make(map[string]bool)
	for _, res := range r.results {
		s.Total++
		if res.Passed {
			s.Passed++
		} else if res.Severity == Fatal {
			s.FatalFailed++
		} else {
			s.WarningFailed++
		}
		if res.Device != "" {
			devices[res.Device] = true
		}
		if res.Device != "" && res.Page != "" {
			pages[res.Page] = true
		}
	}
	s.Devices = len(devices)
	s.Pages = len(pages)
	return s
}
