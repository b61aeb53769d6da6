// Package matrix defines the device viewports and page routes a smoke run
// combines exhaustively. Values are immutable once a run starts.
package matrix

import (
	"errors"
	"fmt"
)

const (
	// MobileMaxWidth is the widest viewport treated as a phone. Touch target
	// sizing is only checked at or below it.
	MobileMaxWidth = 480

	// NarrowBelow is the breakpoint under which the navigation is expected
	// to use its mobile layout.
	NarrowBelow = 768
)

// ViewportSpec is a named browser window size emulating a device class.
type ViewportSpec struct {
	Name   string `yaml:"name" json:"name"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// IsMobile reports whether the viewport is at most MobileMaxWidth wide.
func (v ViewportSpec) IsMobile() bool { return v.Width <= MobileMaxWidth }

// IsNarrow reports whether the viewport is below NarrowBelow.
func (v ViewportSpec) IsNarrow() bool { return v.Width < NarrowBelow }

func (v ViewportSpec) String() string {
	return fmt.Sprintf("%s (%dx%d)", v.Name, v.Width, v.Height)
}

// PageSpec is a frontend route to visit. Name is file-safe and ends up in
// screenshot names; Label scopes the page's results.
type PageSpec struct {
	Route string `yaml:"route" json:"route"`
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`

	// Require lists elements the page cannot do without. Any miss is a
	// fatal failure.
	Require []Requirement `yaml:"require,omitempty" json:"require,omitempty"`
}

// Requirement asserts that at least Min elements match Selector. With
// Text, only elements containing one of the strings count. With Visible,
// the first match must also be rendered.
type Requirement struct {
	Label    string   `yaml:"label" json:"label"`
	Selector string   `yaml:"selector" json:"selector"`
	Text     []string `yaml:"text,omitempty" json:"text,omitempty"`
	Min      int      `yaml:"min,omitempty" json:"min,omitempty"`
	Visible  bool     `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// MinCount is Min, or 1 when unset.
func (r Requirement) MinCount() int {
	if r.Min <= 0 {
		return 1
	}
	return r.Min
}

// Label returns Title, or Name when no title is set.
func (p PageSpec) Label() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

// Pair is one cell of the device × page matrix.
type Pair struct {
	Device ViewportSpec
	Page   PageSpec
}

// DefaultDevices returns the six stock viewports, phones first.
func DefaultDevices() []ViewportSpec {
	return []ViewportSpec{
		{Name: "iPhone SE", Width: 375, Height: 667},
		{Name: "iPhone 12", Width: 390, Height: 844},
		{Name: "iPad", Width: 768, Height: 1024},
		{Name: "iPad Pro", Width: 1024, Height: 1366},
		{Name: "Desktop", Width: 1440, Height: 900},
		{Name: "Large Desktop", Width: 1920, Height: 1080},
	}
}

// DefaultPages returns the six stock routes with the elements each one
// is built around.
func DefaultPages() []PageSpec {
	return []PageSpec{
		{Route: "/", Name: "home", Title: "首页", Require: []Requirement{
			{Label: "卡片存在", Selector: ".glass-card"},
		}},
		{Route: "/profile", Name: "profile", Title: "个人中心", Require: []Requirement{
			{Label: "页面标题", Selector: ".page-header, h1", Visible: true},
			{Label: "标签页", Selector: "button", Text: []string{"个人资料", "账户设置"}, Min: 2},
		}},
		{Route: "/market", Name: "market", Title: "市场", Require: []Requirement{
			{Label: "筛选卡片", Selector: ".glass-card", Visible: true},
		}},
		{Route: "/subscription", Name: "subscription", Title: "订阅", Require: []Requirement{
			{Label: "套餐卡片", Selector: ".glass-card"},
		}},
		{Route: "/hot-products", Name: "hot-products", Title: "热门商品"},
		{Route: "/favorites", Name: "favorites", Title: "收藏", Require: []Requirement{
			{Label: "收藏标签", Selector: "button", Text: []string{"收藏夹", "看板"}, Min: 2},
		}},
	}
}

// LoginRequirements returns what the login page must show before any
// credentials are typed.
func LoginRequirements() []Requirement {
	return []Requirement{
		{Label: "登录卡片", Selector: ".glass-card", Visible: true},
		{Label: "Logo", Selector: "h1, h2, a, span, div", Text: []string{"FlashSell"}, Visible: true},
	}
}

// Pairs enumerates every device/page combination, device-major: all pages
// of the first device, then all pages of the second, and so on. Resizing is
// the expensive step so it is hoisted to the outer loop.
func Pairs(devices []ViewportSpec, pages []PageSpec) []Pair {
	out := make([]Pair, 0, len(devices)*len(pages))
	for _, d := range devices {
		for _, p := range pages {
			out = append(out, Pair{Device: d, Page: p})
		}
	}
	return out
}

// Validate checks that every viewport has a name and positive dimensions,
// every page has a route and a name, and names and page labels are unique.
func Validate(devices []ViewportSpec, pages []PageSpec) error {
	var errs []error
	seenDev := make(map[string]bool, len(devices))
	for i, d := range devices {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("matrix: device %d: empty name", i))
		}
		if d.Width <= 0 || d.Height <= 0 {
			errs = append(errs, fmt.Errorf("matrix: device %q: dimensions must be positive, got %dx%d", d.Name, d.Width, d.Height))
		}
		if seenDev[d.Name] {
			errs = append(errs, fmt.Errorf("matrix: duplicate device %q", d.Name))
		}
		seenDev[d.Name] = true
	}
	seenPage := make(map[string]bool, len(pages))
	seenLabel := make(map[string]bool, len(pages))
	for i, p := range pages {
		if p.Route == "" || p.Route[0] != '/' {
			errs = append(errs, fmt.Errorf("matrix: page %d: route must start with /, got %q", i, p.Route))
		}
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("matrix: page %d: empty name", i))
		}
		if seenPage[p.Name] {
			errs = append(errs, fmt.Errorf("matrix: duplicate page %q", p.Name))
		}
		seenPage[p.Name] = true
		if p.Name != "" && seenLabel[p.Label()] {
			errs = append(errs, fmt.Errorf("matrix: duplicate page label %q", p.Label()))
		}
		seenLabel[p.Label()] = true
		if err := ValidateRequirements(p.Require); err != nil {
			errs = append(errs, fmt.Errorf("matrix: page %q: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateRequirements checks that every requirement names a label and a
// selector and that no label repeats.
func ValidateRequirements(reqs []Requirement) error {
	var errs []error
	seen := make(map[string]bool, len(reqs))
	for i, r := range reqs {
		if r.Label == "" {
			errs = append(errs, fmt.Errorf("requirement %d: empty label", i))
		}
		if r.Selector == "" {
			errs = append(errs, fmt.Errorf("requirement %q: empty selector", r.Label))
		}
		if r.Min < 0 {
			errs = append(errs, fmt.Errorf("requirement %q: negative min %d", r.Label, r.Min))
		}
		if seen[r.Label] {
			errs = append(errs, fmt.Errorf("duplicate requirement %q", r.Label))
		}
		seen[r.Label] = true
	}
	return errors.Join(errs...)
}
