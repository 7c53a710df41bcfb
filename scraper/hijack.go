package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerDomains are analytics and ad hosts that slow the RFQ page's
// settle without contributing card content.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"hotjar.com":            {},
	"criteo.com":            {},
	"criteo.net":            {},
	"scorecardresearch.com": {},
	"adnxs.com":             {},
	"mixpanel.com":          {},
}

// preservedDomains serve the card content itself. Buyer avatars and
// country flags come from the alicdn image host, and records keep their
// resolved src URLs, so these are never blocked by type or as trackers.
var preservedDomains = map[string]struct{}{
	"alicdn.com":  {},
	"alibaba.com": {},
}

// isTrackerDomain checks if a hostname (or any parent domain) is blocklisted.
func isTrackerDomain(host string) bool {
	return matchDomain(host, trackerDomains)
}

// isPreservedDomain checks if a hostname (or any parent domain) serves card content.
func isPreservedDomain(host string) bool {
	return matchDomain(host, preservedDomains)
}

func matchDomain(host string, set map[string]struct{}) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := set[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
	return false
}

// blockedTypes converts config names into a lookup set, ignoring unknown names.
func blockedTypes(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// requestFilter decides which page requests fail with BlockedByClient.
type requestFilter struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers bool
}

func newRequestFilter(names []string, blockTrackers bool) requestFilter {
	return requestFilter{types: blockedTypes(names), trackers: blockTrackers}
}

func (f requestFilter) empty() bool {
	return len(f.types) == 0 && !f.trackers
}

// blocks reports whether a request for rawURL of type typ should fail.
func (f requestFilter) blocks(rawURL string, typ proto.NetworkResourceType) bool {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
	}
	if host != "" && isPreservedDomain(host) {
		return false
	}
	if _, ok := f.types[typ]; ok {
		return true
	}
	return f.trackers && host != "" && isTrackerDomain(host)
}

// setupHijack installs a request interceptor on the page that fails
// requests of the blocked resource types and, optionally, requests to
// tracker domains. Requests to the Alibaba hosts always go through.
//
// Returns the running HijackRouter so the caller can stop it on close.
// Returns nil if there is nothing to block.
func setupHijack(page *rod.Page, names []string, blockTrackers bool) *rod.HijackRouter {
	filter := newRequestFilter(names, blockTrackers)
	if filter.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if filter.blocks(ctx.Request.URL().String(), ctx.Request.Type()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks until router.Stop().
	go router.Run()

	return router
}
