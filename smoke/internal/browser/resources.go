package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Blockable maps the resource names accepted in configuration to the
// DevTools types they fail. Images and stylesheets are absent: both
// change layout, and every measurement taken afterwards would be wrong.
var Blockable = map[string]proto.NetworkResourceType{
	"fonts": proto.NetworkResourceTypeFont,
	"media": proto.NetworkResourceTypeMedia,
}

// BlockTypes resolves configured resource names, rejecting any that
// cannot be blocked without distorting the page.
func BlockTypes(names []string) (map[proto.NetworkResourceType]bool, error) {
	set := make(map[proto.NetworkResourceType]bool, len(names))
	for _, n := range names {
		typ, ok := Blockable[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("browser: resource type %q cannot be blocked (want fonts or media)", n)
		}
		set[typ] = true
	}
	return set, nil
}

// blockResources fails requests of the given types. The returned router
// must be stopped on close.
func blockResources(page *rod.Page, set map[proto.NetworkResourceType]bool) (*rod.HijackRouter, error) {
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if set[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("browser: hijack: %w", err)
	}
	go router.Run()
	return router, nil
}
