package browser

import (
	"context"
	"encoding/json"
	"fmt"
)

// Scripts evaluated in the page. Each returns a JSON string so both
// drivers decode results the same way.
const scrollWidthJS = `() => JSON.stringify(document.body ? document.body.scrollWidth : 0)`

const queryJS = `({sel, limit, texts}) => {
	let els = Array.from(document.querySelectorAll(sel));
	if (texts && texts.length > 0) {
		const hit = els.filter(el => texts.some(t => (el.textContent || '').includes(t)));
		els = hit.filter(el => !hit.some(o => o !== el && el.contains(o)));
	}
	const out = [];
	for (const el of els.slice(0, limit)) {
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		out.push({
			visible: r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none',
			width: r.width,
			height: r.height
		});
	}
	return JSON.stringify({count: els.length, elements: out});
}`

// evaluator runs a script and returns its string result.
type evaluator interface {
	eval(ctx context.Context, js string, arg ...any) (string, error)
}

func scrollWidth(ctx context.Context, ev evaluator) (int, error) {
	raw, err := ev.eval(ctx, scrollWidthJS)
	if err != nil {
		return 0, fmt.Errorf("browser: scroll width: %w", err)
	}
	var w int
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return 0, fmt.Errorf("browser: decode scroll width %q: %w", raw, err)
	}
	return w, nil
}

func query(ctx context.Context, ev evaluator, selector string, limit int, text []string) (Match, error) {
	if limit < 0 {
		limit = 0
	}
	if text == nil {
		text = []string{}
	}
	raw, err := ev.eval(ctx, queryJS, map[string]any{"sel": selector, "limit": limit, "texts": text})
	if err != nil {
		return Match{}, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	var m Match
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Match{}, fmt.Errorf("browser: decode query %q: %w", selector, err)
	}
	return m, nil
}
