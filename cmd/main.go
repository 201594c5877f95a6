package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/authava/authgate/internal/admin"
	"github.com/authava/authgate/internal/bootstrap"
	"github.com/authava/authgate/internal/config"
	"github.com/authava/authgate/internal/logging"
	"github.com/authava/authgate/internal/metrics"
	"github.com/authava/authgate/internal/server"
	"github.com/authava/authgate/internal/session"
)

func main() {
	settings, err := bootstrap.Load()
	if err != nil {
		log.Fatalf("failed to load bootstrap settings: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat, CorrelationHeader: settings.CorrelationHeader})
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := buildProvider(ctx, settings, logger)
	if err != nil {
		logger.Error("unable to construct config provider", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Error("config provider shutdown failed", slog.Any("error", err))
		}
	}()

	cache := buildSessionCache(settings, logger)
	if cache != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := cache.Close(closeCtx); err != nil {
				logger.Error("session cache shutdown failed", slog.Any("error", err))
			}
		}()
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)

	resolver := session.NewResolver(cache, nil, logger)
	resolver.Metrics = recorder

	authHandler := &server.ForwardAuthHandler{
		Provider:          provider,
		Resolver:          resolver,
		Metrics:           recorder,
		Logger:            logger,
		CorrelationHeader: settings.CorrelationHeader,
	}

	var adminHandler http.Handler
	if settings.EnableAdminAPI {
		if _, ok := provider.(*config.DBProvider); !ok {
			logger.Warn("admin api enabled but config backend is not database-backed; admin surface stays disabled")
		} else {
			chain := &admin.Chain{Authenticators: []admin.Authenticator{
				&admin.BearerAuthenticator{Token: settings.AdminToken},
				&admin.SessionCookieAuthenticator{
					Provider:   provider,
					Resolver:   resolver,
					CookieName: settings.SessionCookie,
					AdminRoles: settings.AdminRoles(),
				},
			}}
			handler := &admin.Handler{Provider: provider, Metrics: recorder, Logger: logger}
			adminHandler = chain.Middleware(handler.Mux())
		}
	}

	router := server.NewRouter("/", authHandler, adminHandler, recorder)

	addr := net.JoinHostPort("", strconv.Itoa(settings.Port))
	httpServer, err := server.New(addr, logger, router)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := httpServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildProvider(ctx context.Context, settings bootstrap.Settings, logger *slog.Logger) (config.Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(settings.ConfigBackend))
	switch backend {
	case "", "json":
		return config.NewFileProvider(ctx, settings.ConfigPath, logger)
	case "postgres":
		return config.NewDBProvider(ctx, settings.DatabaseURL, logger)
	default:
		return nil, errors.New("unsupported config backend: " + settings.ConfigBackend)
	}
}

// buildSessionCache returns nil when caching is disabled, so the resolver's
// cacheOn stays false and every call does a real fetch per spec.md §4.4
// step 1, rather than merely disabling the memory cache's sweep goroutine.
func buildSessionCache(settings bootstrap.Settings, logger *slog.Logger) session.Cache {
	if !settings.CacheEnabled {
		logger.Info("session caching disabled")
		return nil
	}

	backend := strings.ToLower(strings.TrimSpace(settings.CacheBackend))
	switch backend {
	case "", "memory":
		logger.Info("using in-process session cache")
		return session.NewMemory(time.Minute)
	case "redis":
		cache, err := session.NewRedis(session.RedisConfig{Address: settings.RedisURL})
		if err != nil {
			logger.Error("redis session cache initialization failed", slog.Any("error", err))
			logger.Info("falling back to in-process session cache")
			return session.NewMemory(time.Minute)
		}
		logger.Info("using redis session cache", slog.String("address", settings.RedisURL))
		return cache
	default:
		logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", settings.CacheBackend))
		return session.NewMemory(time.Minute)
	}
}
