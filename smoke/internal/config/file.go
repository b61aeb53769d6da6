// Package config handles viewcheck configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
	"github.com/hazyhaar/viewcheck/smoke/internal/shots"
	"github.com/hazyhaar/viewcheck/smoke/matrix"
)

// Suites accepted by Config.Suite.
const (
	SuiteResponsive = "responsive"
	SuiteFunctional = "functional"
	SuiteAll        = "all"
)

// Config is the top-level viewcheck configuration.
type Config struct {
	BaseURL     string                `yaml:"base_url"`
	Suite       string                `yaml:"suite"`  // responsive | functional | all
	Strict      bool                  `yaml:"strict"` // warnings fail the run too
	Browser     BrowserConfig         `yaml:"browser"`
	Auth        AuthConfig            `yaml:"auth"`
	Checks      ChecksConfig          `yaml:"checks"`
	Functional  FunctionalConfig      `yaml:"functional"`
	Screenshots ScreenshotConfig      `yaml:"screenshots"`
	Devices     []matrix.ViewportSpec `yaml:"devices"`
	Pages       []matrix.PageSpec     `yaml:"pages"`
	Reporters   []ReporterConfig      `yaml:"reporters"`
}

// BrowserConfig controls the browser session.
type BrowserConfig struct {
	Driver           string        `yaml:"driver"` // rod | playwright
	Remote           string        `yaml:"remote"`
	Headful          bool          `yaml:"headful"`
	Stealth          bool          `yaml:"stealth"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	IdleWindow       time.Duration `yaml:"idle_window"`
	Install          bool          `yaml:"install"` // playwright only
}

// AuthConfig describes the phone + verification code login.
type AuthConfig struct {
	Disabled       bool          `yaml:"disabled"`
	Route          string        `yaml:"route"`
	LandingRoute   string        `yaml:"landing_route"`
	Phone          string        `yaml:"phone"`
	Code           string        `yaml:"code"`
	PhoneSelector  string        `yaml:"phone_selector"`
	CodeSelector   string        `yaml:"code_selector"`
	SubmitSelector string        `yaml:"submit_selector"`
	Timeout        time.Duration `yaml:"timeout"`

	// Require is asserted on the login page before credentials are typed.
	// Nil takes matrix.LoginRequirements; an empty list checks nothing.
	Require []matrix.Requirement `yaml:"require"`
}

// ChecksConfig tunes the per-page check routine.
type ChecksConfig struct {
	SettleDelay     *time.Duration `yaml:"settle_delay"` // nil = 1s, 0 allowed
	ScrollTolerance int           `yaml:"scroll_tolerance"`
	NavSelector     string        `yaml:"nav_selector"`
	MainSelector    string        `yaml:"main_selector"`
	CardSelector    string        `yaml:"card_selector"`
	ControlSelector string        `yaml:"control_selector"`
	ControlSample   int           `yaml:"control_sample"`
	MinTouchSize    int           `yaml:"min_touch_size"`
	TrackEvents     bool          `yaml:"track_events"`
}

// FunctionalConfig tunes the functional suite.
type FunctionalConfig struct {
	HomeRoute    string   `yaml:"home_route"`
	HealthPath   string   `yaml:"health_path"`
	AuthSelector string   `yaml:"auth_selector"`
	AuthTexts    []string `yaml:"auth_texts"`
	TabSelector  string   `yaml:"tab_selector"`
	MinTabs      int      `yaml:"min_tabs"` // 0 skips the tab bar check

	MobileViewport  matrix.ViewportSpec `yaml:"mobile_viewport"`
	DesktopViewport matrix.ViewportSpec `yaml:"desktop_viewport"`
}

// ScreenshotConfig controls where screenshots land.
type ScreenshotConfig struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
}

// ReporterConfig defines an output backend.
type ReporterConfig struct {
	Type string `yaml:"type"` // console | jsonl | webhook
	URL  string `yaml:"url"`  // for webhook
}

// Default returns a configuration with every default applied, targeting
// the local dev frontend on port 3001.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero field.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3001"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Suite == "" {
		c.Suite = SuiteResponsive
	}

	if c.Browser.Driver == "" {
		c.Browser.Driver = "rod"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Browser.IdleWindow <= 0 {
		c.Browser.IdleWindow = 500 * time.Millisecond
	}

	if c.Auth.Route == "" {
		c.Auth.Route = "/login"
	}
	if c.Auth.LandingRoute == "" {
		c.Auth.LandingRoute = "/"
	}
	if c.Auth.Phone == "" {
		c.Auth.Phone = "13800138000"
	}
	if c.Auth.Code == "" {
		c.Auth.Code = "123456"
	}
	if c.Auth.PhoneSelector == "" {
		c.Auth.PhoneSelector = `input[type="tel"], input[name="phone"]`
	}
	if c.Auth.CodeSelector == "" {
		c.Auth.CodeSelector = `input[name="code"], input[placeholder*="验证码"]`
	}
	if c.Auth.SubmitSelector == "" {
		c.Auth.SubmitSelector = `button[type="submit"]`
	}
	if c.Auth.Timeout <= 0 {
		c.Auth.Timeout = 5 * time.Second
	}
	if c.Auth.Require == nil {
		c.Auth.Require = matrix.LoginRequirements()
	}

	if c.Checks.SettleDelay == nil {
		d := time.Second
		c.Checks.SettleDelay = &d
	}
	if c.Checks.ScrollTolerance <= 0 {
		c.Checks.ScrollTolerance = 10
	}
	if c.Checks.NavSelector == "" {
		c.Checks.NavSelector = `nav, [role="navigation"]`
	}
	if c.Checks.MainSelector == "" {
		c.Checks.MainSelector = `main, [role="main"]`
	}
	if c.Checks.CardSelector == "" {
		c.Checks.CardSelector = ".glass-card"
	}
	if c.Checks.ControlSelector == "" {
		c.Checks.ControlSelector = `button, a, input, [role="button"]`
	}
	if c.Checks.ControlSample <= 0 {
		c.Checks.ControlSample = 5
	}
	if c.Checks.MinTouchSize <= 0 {
		c.Checks.MinTouchSize = 44
	}

	if c.Functional.HomeRoute == "" {
		c.Functional.HomeRoute = "/"
	}
	if c.Functional.HealthPath == "" {
		c.Functional.HealthPath = "/api/health"
	}
	if c.Functional.AuthSelector == "" {
		c.Functional.AuthSelector = `button, a, [role="button"]`
	}
	if len(c.Functional.AuthTexts) == 0 {
		c.Functional.AuthTexts = []string{"登录", "注册"}
	}
	if c.Functional.TabSelector == "" {
		c.Functional.TabSelector = `nav a, [role="tab"]`
	}
	if c.Functional.MobileViewport.Width <= 0 {
		c.Functional.MobileViewport = matrix.ViewportSpec{Name: "Mobile", Width: 375, Height: 667}
	}
	if c.Functional.DesktopViewport.Width <= 0 {
		c.Functional.DesktopViewport = matrix.ViewportSpec{Name: "Desktop", Width: 1920, Height: 1080}
	}

	if c.Screenshots.Dir == "" {
		c.Screenshots.Dir = "screenshots"
	}
	if len(c.Devices) == 0 {
		c.Devices = matrix.DefaultDevices()
	}
	if len(c.Pages) == 0 {
		c.Pages = matrix.DefaultPages()
	}
	if len(c.Reporters) == 0 {
		c.Reporters = []ReporterConfig{{Type: "console"}}
	}
}

// Validate rejects unknown enum values, a malformed matrix and names that
// would share a screenshot file.
func (c *Config) Validate() error {
	switch c.Suite {
	case SuiteResponsive, SuiteFunctional, SuiteAll:
	default:
		return fmt.Errorf("config: unknown suite %q", c.Suite)
	}
	switch c.Browser.Driver {
	case "rod", "playwright":
	default:
		return fmt.Errorf("config: unknown driver %q", c.Browser.Driver)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("config: base_url must be http(s), got %q", c.BaseURL)
	}
	if c.Checks.SettleDelay != nil && *c.Checks.SettleDelay < 0 {
		return fmt.Errorf("config: settle_delay must not be negative, got %v", *c.Checks.SettleDelay)
	}
	if c.Functional.MinTabs < 0 {
		return fmt.Errorf("config: min_tabs must not be negative, got %d", c.Functional.MinTabs)
	}
	if _, err := browser.BlockTypes(c.Browser.ResourceBlocking); err != nil {
		return fmt.Errorf("config: resource_blocking: %w", err)
	}
	if err := matrix.ValidateRequirements(c.Auth.Require); err != nil {
		return fmt.Errorf("config: auth require: %w", err)
	}
	return errors.Join(matrix.Validate(c.Devices, c.Pages), slugCollisions(c.Devices, c.Pages))
}

// slugCollisions rejects device or page names that map to the same
// screenshot file name, such as "iPad Pro" and "iPad_Pro".
func slugCollisions(devices []matrix.ViewportSpec, pages []matrix.PageSpec) error {
	var errs []error
	devs := make(map[string]string, len(devices))
	for _, d := range devices {
		slug := shots.Slug(d.Name)
		if prev, ok := devs[slug]; ok && prev != d.Name {
			errs = append(errs, fmt.Errorf("config: devices %q and %q share screenshot name %q", prev, d.Name, slug))
		}
		devs[slug] = d.Name
	}
	pgs := make(map[string]string, len(pages))
	for _, p := range pages {
		slug := shots.Slug(p.Name)
		if prev, ok := pgs[slug]; ok && prev != p.Name {
			errs = append(errs, fmt.Errorf("config: pages %q and %q share screenshot name %q", prev, p.Name, slug))
		}
		pgs[slug] = p.Name
	}
	return errors.Join(errs...)
}
