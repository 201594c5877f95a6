// Package match implements the route-matching engine (C2): a pure function
// selecting, for a given host and path, the most specific RouteDef from a
// config snapshot.
package match

import (
	"strings"

	"github.com/authava/authgate/internal/config"
)

// Match returns the RouteDef that best matches host and path, and true if
// any route matched. path must already have its query component stripped.
// Match is pure and deterministic: the same (host, path, routes) always
// yields the same result.
func Match(host, path string, routes []config.RouteDef) (config.RouteDef, bool) {
	host = strings.ToLower(host)

	var (
		best      config.RouteDef
		bestFound bool
		bestPfx   int
		bestExact bool
	)

	for _, route := range routes {
		hostExact, ok := matchHost(host, route.Host)
		if !ok {
			continue
		}
		pfx, ok := matchPath(path, route.Path)
		if !ok {
			continue
		}

		if !bestFound || isMoreSpecific(pfx, hostExact, bestPfx, bestExact) {
			best = route
			bestFound = true
			bestPfx = pfx
			bestExact = hostExact
		}
	}

	return best, bestFound
}

// isMoreSpecific reports whether a candidate route (literal path prefix
// length pfx, exact-host hostExact) should replace the current best
// (bestPfx, bestExact) per spec.md §8's tie-break: longest literal path
// prefix wins; ties broken by exact host over wildcard host; remaining ties
// keep catalogue order (the earlier-seen route, i.e. the current best).
func isMoreSpecific(pfx int, hostExact bool, bestPfx int, bestExact bool) bool {
	if pfx != bestPfx {
		return pfx > bestPfx
	}
	if hostExact != bestExact {
		return hostExact
	}
	return false
}

// matchHost reports whether host satisfies pattern, and whether the match
// was exact (as opposed to via a left-wildcard). Comparison is
// case-insensitive: Match lower-cases host, and pattern is lower-cased here
// because config validation leaves its case as written.
func matchHost(host, pattern string) (exact bool, ok bool) {
	pattern = strings.ToLower(pattern)
	if !strings.HasPrefix(pattern, "*.") {
		return true, host == pattern
	}
	suffix := pattern[1:] // ".client.example.com"
	if !strings.HasSuffix(host, suffix) {
		return false, false
	}
	// The wildcard label must be non-empty: "client.example.com" alone
	// does not match "*.client.example.com".
	return false, len(host) > len(suffix)
}

// matchPath reports whether path satisfies pattern, and if so the length of
// pattern's literal (non-wildcard) prefix, used for specificity ranking.
func matchPath(path, pattern string) (literalPrefixLen int, ok bool) {
	if !strings.HasSuffix(pattern, "/*") {
		return len(pattern), path == pattern
	}
	prefix := pattern[:len(pattern)-1] // "/admin/"
	base := pattern[:len(pattern)-2]   // "/admin"
	if path == base || strings.HasPrefix(path, prefix) {
		return len(prefix), true
	}
	return 0, false
}
