package report

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/viewcheck/smoke/result"
)

// JSONLines writes one {"type","data"} envelope per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines reporter. If w is nil, os.Stdout is used.
func NewJSONLines(w io.Writer) *JSONLines {
	if w == nil {
		w = os.Stdout
	}
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Result(_ context.Context, r result.CheckResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(envelope{Type: "result", Data: r})
}

func (j *JSONLines) Summary(_ context.Context, s result.Summary) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(envelope{Type: "summary", Data: s})
}

func (j *JSONLines) Close() error { return nil }
