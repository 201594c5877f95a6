package session

import (
	"context"
	"time"
)

// Entry is the cached unit: a resolved Session plus its expiry.
type Entry struct {
	Session   Session   `json:"session"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Cache is the read-through Session Cache contract (C3). Keys are raw
// cookie values. Implementations must be safe for concurrent use.
type Cache interface {
	// Lookup returns the cached Session for key, or ok=false on miss.
	// A remote-cache connection failure must degrade to a miss (ok=false,
	// err=nil) per spec.md §4.4 — it must never fail the caller's request.
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	// Store writes key -> entry with the entry's TTL. Best-effort for
	// remote backends: a write failure is logged by the caller, not fatal.
	Store(ctx context.Context, key string, entry Entry) error
	// Close releases resources held by the cache (connections, goroutines).
	Close(ctx context.Context) error
}
