package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBProvider is the database-backed Config Provider. It composes AuthConfig
// from two tables (auth_config, routes — schema in spec.md §6), caches the
// composed snapshot, and invalidates that cache whenever an admin mutation
// commits. A transient database error during Current falls back to the last
// known-good snapshot, matching spec.md §4.1's failure semantics.
type DBProvider struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex // serializes admin mutations, per spec.md §5 "Ordering"
	snapshot atomic.Pointer[AuthConfig]
	dirty    atomic.Bool
}

// NewDBProvider connects to dsn and performs one synchronous load so startup
// aborts immediately on an unreachable database or invalid schema contents.
func NewDBProvider(ctx context.Context, dsn string, logger *slog.Logger) (*DBProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("config: connect database: %w", err)
	}
	p := &DBProvider{pool: pool, logger: logger.With(slog.String("agent", "config_db"))}
	p.dirty.Store(true)

	if _, err := p.Current(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *DBProvider) Current(ctx context.Context) (AuthConfig, error) {
	if !p.dirty.Load() {
		if snap := p.snapshot.Load(); snap != nil {
			return *snap, nil
		}
	}

	cfg, err := p.rebuild(ctx)
	if err != nil {
		if snap := p.snapshot.Load(); snap != nil {
			p.logger.Error("config rebuild failed, serving last-known-good snapshot", slog.Any("error", err))
			return *snap, nil
		}
		return AuthConfig{}, Unavailable(err)
	}

	p.snapshot.Store(&cfg)
	p.dirty.Store(false)
	return cfg, nil
}

func (p *DBProvider) rebuild(ctx context.Context) (AuthConfig, error) {
	var cfg AuthConfig
	row := p.pool.QueryRow(ctx, `
		SELECT session_url, login_redirect, COALESCE(cookie_name, '')
		FROM auth_config
		ORDER BY id ASC
		LIMIT 1
	`)
	if err := row.Scan(&cfg.SessionURL, &cfg.LoginRedirect, &cfg.CookieName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthConfig{}, fmt.Errorf("query auth_config: no active row")
		}
		return AuthConfig{}, fmt.Errorf("query auth_config: %w", err)
	}
	cfg = cfg.WithDefaults()

	rows, err := p.pool.Query(ctx, `
		SELECT id, host, path, require
		FROM routes
		ORDER BY id ASC
	`)
	if err != nil {
		return AuthConfig{}, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			host     string
			path     string
			rawBlock []byte
		)
		if err := rows.Scan(&id, &host, &path, &rawBlock); err != nil {
			return AuthConfig{}, fmt.Errorf("scan route: %w", err)
		}
		block, err := DecodeRequireLoose(rawBlock)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("route %d: %w", id, err)
		}
		cfg.Routes = append(cfg.Routes, RouteDef{
			ID:      strconv.FormatInt(id, 10),
			Host:    host,
			Path:    path,
			Require: block,
		})
	}
	if err := rows.Err(); err != nil {
		return AuthConfig{}, fmt.Errorf("iterate routes: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

func (p *DBProvider) RoutesList(ctx context.Context) ([]RouteDef, error) {
	cfg, err := p.Current(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Routes, nil
}

func (p *DBProvider) RouteGet(ctx context.Context, id string) (RouteDef, error) {
	cfg, err := p.Current(ctx)
	if err != nil {
		return RouteDef{}, err
	}
	for _, r := range cfg.Routes {
		if r.ID == id {
			return r, nil
		}
	}
	return RouteDef{}, NotFound(id)
}

func (p *DBProvider) RouteCreate(ctx context.Context, route RouteDef) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := EncodeRequire(route.Require)
	if err != nil {
		return "", fmt.Errorf("encode require: %w", err)
	}

	var id int64
	row := p.pool.QueryRow(ctx, `
		INSERT INTO routes (host, path, require, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id
	`, route.Host, route.Path, raw)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("insert route: %w", err)
	}

	p.dirty.Store(true)
	return strconv.FormatInt(id, 10), nil
}

func (p *DBProvider) RouteUpdate(ctx context.Context, id string, route RouteDef) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := EncodeRequire(route.Require)
	if err != nil {
		return fmt.Errorf("encode require: %w", err)
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE routes
		SET host = $1, path = $2, require = $3, updated_at = now()
		WHERE id = $4
	`, route.Host, route.Path, raw, id)
	if err != nil {
		return fmt.Errorf("update route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFound(id)
	}

	p.dirty.Store(true)
	return nil
}

func (p *DBProvider) RouteDelete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tag, err := p.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFound(id)
	}

	p.dirty.Store(true)
	return nil
}

func (p *DBProvider) Close(context.Context) error {
	p.pool.Close()
	return nil
}
