package smoke

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/viewcheck/smoke/internal/report"
	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Reporter is the output interface for check results.
type Reporter = report.Reporter

// NewConsoleReporter creates a human-readable reporter.
func NewConsoleReporter(w io.Writer) Reporter {
	return report.NewConsole(w)
}

// NewJSONLinesReporter creates a JSON-lines reporter.
func NewJSONLinesReporter(w io.Writer) Reporter {
	return report.NewJSONLines(w)
}

// NewWebhookReporter creates a webhook POST reporter with retry.
func NewWebhookReporter(url string, logger *slog.Logger) Reporter {
	return report.NewWebhook(url, report.WithWebhookLogger(logger))
}

// NewCallbackReporter creates an in-process reporter.
func NewCallbackReporter(
	onResult func(ctx context.Context, r result.CheckResult) error,
	onSummary func(ctx context.Context, s result.Summary) error,
) Reporter {
	return report.NewCallback(onResult, onSummary)
}

// ReportersFromConfig builds the configured reporters. Console and jsonl
// reporters write to w.
func ReportersFromConfig(cfgs []ReporterConfig, w io.Writer, logger *slog.Logger) ([]Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out []Reporter
	for _, c := range cfgs {
		switch c.Type {
		case "console":
			out = append(out, NewConsoleReporter(w))
		case "jsonl":
			out = append(out, NewJSONLinesReporter(w))
		case "webhook":
			if c.URL == "" {
				return nil, fmt.Errorf("smoke: webhook reporter needs a url")
			}
			out = append(out, NewWebhookReporter(c.URL, logger))
		default:
			return nil, fmt.Errorf("smoke: unknown reporter %q", c.Type)
		}
	}
	return out, nil
}
