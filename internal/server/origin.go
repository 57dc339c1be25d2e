// Package server enforces the configured origin allow-list on WebSocket
// upgrade requests.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// originChecker holds a normalized allow-list. A single "*" entry admits
// every origin. The checker is owned by the /ws handler; there is no
// package-level origin state.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

func newOriginChecker(origins []string) *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		oc.allowed[normalized] = struct{}{}
	}
	return oc
}

// check is the upgrader's CheckOrigin. Requests without an Origin header
// are rejected.
func (oc *originChecker) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}
	if oc.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	if _, exists := oc.allowed[normalized]; exists {
		return true
	}
	log.Printf("Blocked WebSocket connection from disallowed origin: %q", header)
	return false
}

// normalizeOrigin lowercases scheme and host and strips everything else, so
// configured and presented origins compare consistently.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
