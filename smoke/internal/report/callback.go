package report

import (
	"context"

	"github.com/hazyhaar/viewcheck/smoke/result"
)

// ResultFunc is called for each result.
type ResultFunc func(ctx context.Context, r result.CheckResult) error

// SummaryFunc is called once with the run summary.
type SummaryFunc func(ctx context.Context, s result.Summary) error

// Callback delivers results via Go function calls, for embedding the
// harness in another program.
type Callback struct {
	onResult  ResultFunc
	onSummary SummaryFunc
}

// NewCallback creates a Callback reporter. Either handler may be nil.
func NewCallback(onResult ResultFunc, onSummary SummaryFunc) *Callback {
	return &Callback{onResult: onResult, onSummary: onSummary}
}

func (c *Callback) Result(ctx context.Context, r result.CheckResult) error {
	if c.onResult != nil {
		return c.onResult(ctx, r)
	}
	return nil
}

func (c *Callback) Summary(ctx context.Context, s result.Summary) error {
	if c.onSummary != nil {
		return c.onSummary(ctx, s)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
