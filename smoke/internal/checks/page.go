package checks

import (
	"context"
	"fmt"

	"github.com/hazyhaar/viewcheck/smoke/internal/browser"
	"github.com/hazyhaar/viewcheck/smoke/matrix"
	"github.com/hazyhaar/viewcheck/smoke/result"
)

// Page runs the responsive battery for one page at the viewport the
// session is already sized to. A failed load or a missing required
// element skips the remaining assertions of this page; the screenshot is
// still taken.
//
// The returned error is non-nil only when ctx ended. Everything else the
// page does wrong is a result.
func Page(ctx context.Context, s browser.Session, vp matrix.ViewportSpec, pg matrix.PageSpec, opts Options) ([]result.CheckResult, error) {
	opts.defaults()
	log := opts.Logger.With("device", vp.Name, "page", pg.Name)
	scope := pg.Label()

	var out []result.CheckResult
	add := func(rs ...result.CheckResult) {
		for _, r := range rs {
			out = append(out, r.Scope(vp.Name, scope))
		}
	}
	finish := func() ([]result.CheckResult, error) {
		add(screenshot(ctx, s, opts.Shots, vp.Name, pg.Name, log)...)
		return out, ctx.Err()
	}

	// Leftovers from the previous page or the login flow.
	s.Drain()

	target := opts.BaseURL + pg.Route
	if err := s.Goto(ctx, target); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		log.Warn("checks: navigation failed", "url", target, "error", err)
		add(result.New(result.Fatal, LabelLoad, false, err.Error()))
		return finish()
	}
	add(result.New(result.Fatal, LabelLoad, true, target))
	if err := settle(ctx, opts.SettleDelay); err != nil {
		return out, err
	}

	required := Requirements(ctx, s, pg.Require)
	add(required...)
	for _, r := range required {
		if r.Failed(result.Fatal) {
			log.Warn("checks: required element missing, skipping page", "label", r.Label, "detail", r.Detail)
			if opts.TrackEvents {
				add(eventResults(s.Drain(), result.Warning)...)
			}
			return finish()
		}
	}

	add(scrollCheck(ctx, s, vp, opts.ScrollTolerance))
	add(navCheck(ctx, s, vp, opts.NavSelector))
	add(mainCheck(ctx, s, opts.MainSelector))
	add(cardCheck(ctx, s, opts.CardSelector))
	if vp.IsMobile() {
		add(touchCheck(ctx, s, opts.ControlSelector, opts.ControlSample, opts.MinTouchSize))
	}
	if opts.TrackEvents {
		add(eventResults(s.Drain(), result.Warning)...)
	}
	return finish()
}

func scrollCheck(ctx context.Context, s browser.Session, vp matrix.ViewportSpec, tolerance int) result.CheckResult {
	sw, err := s.ScrollWidth(ctx)
	if err != nil {
		return result.New(result.Warning, LabelScroll, false, err.Error())
	}
	limit := vp.Width + tolerance
	if sw > limit {
		return result.New(result.Warning, LabelScroll, false,
			fmt.Sprintf("scrollWidth %d exceeds viewport %d", sw, vp.Width))
	}
	return result.New(result.Warning, LabelScroll, true,
		fmt.Sprintf("scrollWidth %d within viewport %d", sw, vp.Width))
}

func navCheck(ctx context.Context, s browser.Session, vp matrix.ViewportSpec, selector string) result.CheckResult {
	m, err := s.Query(ctx, selector, 1)
	if err != nil {
		return result.New(result.Warning, LabelNav, false, err.Error())
	}
	if el, ok := m.First(); !ok || !el.Visible {
		return result.New(result.Warning, LabelNav, false, "no visible navigation")
	}
	if vp.IsNarrow() {
		return result.New(result.Warning, LabelNav, true, "mobile navigation visible")
	}
	return result.New(result.Warning, LabelNav, true, "desktop navigation visible")
}

func mainCheck(ctx context.Context, s browser.Session, selector string) result.CheckResult {
	m, err := s.Query(ctx, selector, 1)
	if err != nil {
		return result.New(result.Warning, LabelMain, false, err.Error())
	}
	el, ok := m.First()
	if !ok || !el.Visible {
		return result.New(result.Warning, LabelMain, false, "no visible main content")
	}
	return result.New(result.Warning, LabelMain, true, fmt.Sprintf("width %.0fpx", el.Width))
}

// cardCheck is informational: it only fails when the query itself does.
func cardCheck(ctx context.Context, s browser.Session, selector string) result.CheckResult {
	m, err := s.Query(ctx, selector, 1)
	if err != nil {
		return result.New(result.Warning, LabelCards, false, err.Error())
	}
	el, ok := m.First()
	if !ok {
		return result.New(result.Warning, LabelCards, true, fmt.Sprintf("%d cards", m.Count))
	}
	return result.New(result.Warning, LabelCards, true,
		fmt.Sprintf("%d cards, first %.0fpx wide", m.Count, el.Width))
}

// touchCheck inspects the first sample controls in document order, skips
// the hidden ones and counts those smaller than min×min.
func touchCheck(ctx context.Context, s browser.Session, selector string, sample, min int) result.CheckResult {
	m, err := s.Query(ctx, selector, sample)
	if err != nil {
		return result.New(result.Warning, LabelTouch, false, err.Error())
	}
	checked, small := 0, 0
	for _, el := range m.Elements {
		if !el.Visible {
			continue
		}
		checked++
		if el.Width < float64(min) || el.Height < float64(min) {
			small++
		}
	}
	detail := fmt.Sprintf("%d of %d visible controls below %dx%d", small, checked, min, min)
	return result.New(result.Warning, LabelTouch, small == 0, detail)
}
