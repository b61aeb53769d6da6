package smoke

import (
	"github.com/hazyhaar/viewcheck/smoke/internal/config"
)

// Config is the top-level viewcheck configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the browser session.
type BrowserConfig = config.BrowserConfig

// AuthConfig describes the login precondition.
type AuthConfig = config.AuthConfig

// ChecksConfig tunes the per-page checks.
type ChecksConfig = config.ChecksConfig

// FunctionalConfig tunes the functional suite.
type FunctionalConfig = config.FunctionalConfig

// ReporterConfig defines an output backend.
type ReporterConfig = config.ReporterConfig

// Suites.
const (
	SuiteResponsive = config.SuiteResponsive
	SuiteFunctional = config.SuiteFunctional
	SuiteAll        = config.SuiteAll
)

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the built-in configuration: six devices, six
// pages, http://localhost:3001.
func DefaultConfig() *Config {
	return config.Default()
}
