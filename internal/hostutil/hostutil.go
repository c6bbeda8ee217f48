// Package hostutil provides shared utilities for endpoint URL handling.
package hostutil

import (
	"net/url"
	"strings"
)

// Normalize converts an endpoint string to a full URL.
// - Empty string returns empty
// - localhost/127.0.0.1 defaults to http://
// - Other bare hostnames default to https://
// - Full URLs are used as-is
func Normalize(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if IsLocalhost(endpoint) {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}

// Host extracts the bare host component (no scheme, port, or path) from an
// endpoint string. Bare IPv6 literals come back unbracketed, matching
// url.Hostname. Returns "" when the endpoint does not parse.
func Host(endpoint string) string {
	u, err := url.Parse(Normalize(endpoint))
	if err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	// An unbracketed IPv6 literal is not a valid URL authority; treat it as
	// an already-bare host.
	if strings.Count(endpoint, ":") >= 2 && !strings.Contains(endpoint, "/") {
		return strings.Trim(endpoint, "[]")
	}
	return ""
}

// SameHost reports whether two URLs target the same host component.
// Scheme, port, and path are ignored.
func SameHost(a, b string) bool {
	ha, hb := Host(a), Host(b)
	return ha != "" && ha == hb
}

// IsLocalhost returns true if host is localhost, a .localhost subdomain,
// 127.0.0.1, or [::1] (with optional port).
func IsLocalhost(host string) bool {
	// Strip port if present for easier matching
	hostWithoutPort := host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		// Check if this is IPv6 bracketed address
		if !strings.HasPrefix(host, "[") || strings.HasPrefix(host, "[::1]:") {
			hostWithoutPort = host[:idx]
		}
	}

	if hostWithoutPort == "localhost" || strings.HasSuffix(hostWithoutPort, ".localhost") {
		return true
	}
	if hostWithoutPort == "127.0.0.1" {
		return true
	}
	// IPv6 loopback (must be bracketed for valid URL)
	if hostWithoutPort == "[::1]" {
		return true
	}
	return false
}
