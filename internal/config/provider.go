package config

import "context"

// Provider is the capability interface the rest of the service depends on.
// Two concrete implementations exist: FileProvider (read-only, hot-reloaded
// from disk) and DBProvider (mutable, backed by Postgres). Request handlers
// only ever see this interface — the composition root decides which
// implementation to construct.
type Provider interface {
	// Current returns the active configuration snapshot. Implementations
	// must never return a partially-built snapshot.
	Current(ctx context.Context) (AuthConfig, error)

	// RoutesList returns every route in the active snapshot.
	RoutesList(ctx context.Context) ([]RouteDef, error)
	// RouteGet returns a single route by id, or a KindNotFound error.
	RouteGet(ctx context.Context, id string) (RouteDef, error)
	// RouteCreate assigns an id to route and persists it, returning the id.
	// Fails with KindNotSupported on the file-backed provider.
	RouteCreate(ctx context.Context, route RouteDef) (string, error)
	// RouteUpdate replaces the route identified by id. Fails with
	// KindNotFound if absent, KindNotSupported on the file-backed provider.
	RouteUpdate(ctx context.Context, id string, route RouteDef) error
	// RouteDelete removes the route identified by id. Fails with
	// KindNotFound if absent, KindNotSupported on the file-backed provider.
	RouteDelete(ctx context.Context, id string) error

	// Close releases resources held by the provider (watchers, pools).
	Close(ctx context.Context) error
}
