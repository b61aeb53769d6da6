// Package report defines output backends for smoke check results.
package report

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Reporter receives every result of a run in order, then the summary.
// Implementations deliver them to different backends (terminal, JSON
// lines, webhook, in-process callback).
type Reporter interface {
	Result(ctx context.Context, r result.CheckResult) error
	Summary(ctx context.Context, s result.Summary) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Router fans out to all configured reporters. One reporter error does
// not block the others; errors are logged and the first is returned.
type Router struct {
	reporters []Reporter
	logger    *slog.Logger
}

// NewRouter creates a fan-out router delivering to all reporters.
func NewRouter(logger *slog.Logger, reporters ...Reporter) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{reporters: reporters, logger: logger}
}

func (r *Router) Result(ctx context.Context, res result.CheckResult) error {
	var firstErr error
	for _, rep := range r.reporters {
		if err := rep.Result(ctx, res); err != nil {
			r.logger.Warn("report: result failed", "label", res.Label, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Summary(ctx context.Context, s result.Summary) error {
	var firstErr error
	for _, rep := range r.reporters {
		if err := rep.Summary(ctx, s); err != nil {
			r.logger.Warn("report: summary failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, rep := range r.reporters {
		if err := rep.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
