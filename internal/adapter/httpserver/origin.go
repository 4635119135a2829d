package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a display stream.
// Requests without an Origin header come from kiosk clients, not browsers,
// and are always accepted.
type originPolicy struct {
	allowed    map[string]bool
	allowLocal bool
}

// newOriginPolicy normalises entries such as "https://admin.example.com/"
// to scheme://host. An empty list disables the check.
func newOriginPolicy(origins []string, allowLocal bool) *originPolicy {
	if len(origins) == 0 {
		return nil
	}
	p := &originPolicy{allowed: make(map[string]bool, len(origins)), allowLocal: allowLocal}
	for _, raw := range origins {
		if o, ok := normalizeOrigin(raw); ok {
			p.allowed[o] = true
		}
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	if p == nil || origin == "" {
		return true
	}
	o, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if p.allowed[o] {
		return true
	}
	return p.allowLocal && isLoopbackOrigin(o)
}

// checkOrigin is the websocket.Upgrader hook.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.allows(origin) {
		return true
	}
	slog.WarnContext(r.Context(), "Stream origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
