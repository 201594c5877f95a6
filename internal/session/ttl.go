package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTTL = 5 * time.Minute
	minTTL     = 1 * time.Second
	maxTTL     = 24 * time.Hour
)

// ComputeTTL implements spec.md §4.4 step 3: if cookieValue decodes as a JWT
// with a future `exp` claim, the TTL is exp-now clamped to [1s, 24h];
// otherwise the TTL is exactly 5 minutes. now is injected for testability.
func ComputeTTL(cookieValue string, now time.Time) time.Duration {
	exp, ok := jwtExpiry(cookieValue)
	if !ok {
		return defaultTTL
	}
	ttl := exp.Sub(now)
	if ttl <= 0 {
		return defaultTTL
	}
	if ttl < minTTL {
		return minTTL
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}

// jwtExpiry decodes the `exp` claim from cookieValue without verifying its
// signature — AuthGate is not the token's signing authority (spec.md §1
// Non-goals) and only needs the claim to size its own cache TTL. A
// malformed or non-JWT cookie value simply reports ok=false.
func jwtExpiry(cookieValue string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(cookieValue, claims); err != nil {
		return time.Time{}, false
	}
	expValue, err := claims.GetExpirationTime()
	if err != nil || expValue == nil {
		return time.Time{}, false
	}
	return expValue.Time, true
}
