// Command viewcheck runs responsive and functional smoke checks against a
// running web frontend.
//
// Usage:
//
//	viewcheck                                   # responsive matrix against http://localhost:3001
//	viewcheck -config viewcheck.yaml            # devices, pages and reporters from YAML
//	viewcheck -suite functional -base-url http://localhost:3000
//
// The exit status is 0 when no fatal check failed (no check at all with
// -strict) and 1 otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/viewcheck/smoke"
)

type options struct {
	configPath string
	suite      string
	baseURL    string
	driver     string
	shotsDir   string
	headful    bool
	strict     bool
	noLogin    bool
	set        map[string]bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to viewcheck.yaml config file")
	flag.StringVar(&o.suite, "suite", "", "suite to run: responsive, functional, all")
	flag.StringVar(&o.baseURL, "base-url", "", "frontend base URL (default http://localhost:3001)")
	flag.StringVar(&o.driver, "driver", "", "browser driver: rod, playwright")
	flag.StringVar(&o.shotsDir, "screenshots", "", "screenshot directory (default screenshots)")
	flag.BoolVar(&o.headful, "headful", false, "run a visible browser on Xvfb")
	flag.BoolVar(&o.strict, "strict", false, "fail the run on warnings too")
	flag.BoolVar(&o.noLogin, "no-login", false, "skip the login precondition")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code, err := run(ctx, logger, o)
	stop()
	if err != nil {
		logger.Error("viewcheck: fatal", "error", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, logger *slog.Logger, o options) (int, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return 1, err
	}

	reporters, err := smoke.ReportersFromConfig(cfg.Reporters, os.Stdout, logger)
	if err != nil {
		return 1, err
	}

	h := smoke.New(cfg, logger, reporters...)
	defer h.Close()

	sum, err := h.Run(ctx, cfg.Suite)
	if err != nil {
		return 1, fmt.Errorf("run: %w", err)
	}
	return sum.ExitCode(cfg.Strict), nil
}

// loadConfig reads the file if any, then applies the flags that were set.
func loadConfig(o options) (*smoke.Config, error) {
	cfg := smoke.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = smoke.LoadConfigFile(o.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if o.set["suite"] {
		cfg.Suite = o.suite
	}
	if o.set["base-url"] {
		cfg.BaseURL = o.baseURL
	}
	if o.set["driver"] {
		cfg.Browser.Driver = o.driver
	}
	if o.set["screenshots"] {
		cfg.Screenshots.Dir = o.shotsDir
	}
	if o.set["headful"] {
		cfg.Browser.Headful = o.headful
	}
	if o.set["strict"] {
		cfg.Strict = o.strict
	}
	if o.set["no-login"] {
		cfg.Auth.Disabled = o.noLogin
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
