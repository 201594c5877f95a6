// Package bootstrap loads the process-level settings that decide how the
// rest of AuthGate wires itself together — which Config Provider backend,
// which Session Cache backend, whether the admin API is mounted — before
// any of those components exist. It is deliberately separate from
// internal/config: that package holds the AuthConfig the forward-auth
// endpoint evaluates against; this one holds the knobs that pick its
// transport and backends.
package bootstrap

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Settings mirrors the environment variables documented in spec.md §6.
type Settings struct {
	Port int `koanf:"port"`

	ConfigBackend string `koanf:"config_backend"`
	ConfigPath    string `koanf:"config"`
	DatabaseURL   string `koanf:"database_url"`

	CacheEnabled bool   `koanf:"cache_enabled"`
	CacheBackend string `koanf:"cache_backend"`
	RedisURL     string `koanf:"redis_url"`

	EnableAdminAPI    bool   `koanf:"enable_admin_api"`
	AdminToken        string `koanf:"admin_token"`
	SessionCookie     string `koanf:"session_cookie"`
	AdminSessionRoles string `koanf:"admin_session_roles"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	CorrelationHeader string `koanf:"correlation_header"`
}

// AdminRoles splits AdminSessionRoles on commas, trimming blanks.
func (s Settings) AdminRoles() []string {
	if strings.TrimSpace(s.AdminSessionRoles) == "" {
		return nil
	}
	parts := strings.Split(s.AdminSessionRoles, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return roles
}

func defaults() map[string]any {
	return map[string]any{
		"port":                4181,
		"config_backend":      "json",
		"config":              "",
		"database_url":        "",
		"cache_enabled":       true,
		"cache_backend":       "memory",
		"redis_url":           "",
		"enable_admin_api":    false,
		"admin_token":         "",
		"session_cookie":      "session",
		"admin_session_roles": "",
		"log_level":           "info",
		"log_format":          "json",
		"correlation_header":  "X-Request-ID",
	}
}

// Load reads Settings from the process environment: PORT and DATABASE_URL
// are bare; every other recognized variable carries the AUTHGATE_ prefix.
// Unset variables keep the documented defaults.
func Load() (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Settings{}, fmt.Errorf("bootstrap: load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", transformEnvKey), nil); err != nil {
		return Settings{}, fmt.Errorf("bootstrap: load env: %w", err)
	}

	var settings Settings
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &settings,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &settings, conf); err != nil {
		return Settings{}, fmt.Errorf("bootstrap: unmarshal: %w", err)
	}
	return settings, nil
}

// transformEnvKey converts an environment variable name into a koanf key,
// or "" to skip variables this process doesn't recognize. AUTHGATE_CONFIG
// is handled explicitly because it would otherwise collide with
// AUTHGATE_CONFIG_BACKEND after prefix-stripping.
func transformEnvKey(raw string) string {
	switch raw {
	case "PORT":
		return "port"
	case "AUTHGATE_CONFIG_BACKEND":
		return "config_backend"
	case "AUTHGATE_CONFIG":
		return "config"
	case "DATABASE_URL":
		return "database_url"
	case "AUTHGATE_CACHE_ENABLED":
		return "cache_enabled"
	case "AUTHGATE_CACHE_BACKEND":
		return "cache_backend"
	case "AUTHGATE_REDIS_URL":
		return "redis_url"
	case "AUTHGATE_ENABLE_ADMIN_API":
		return "enable_admin_api"
	case "AUTHGATE_ADMIN_TOKEN":
		return "admin_token"
	case "AUTHGATE_SESSION_COOKIE":
		return "session_cookie"
	case "AUTHGATE_ADMIN_SESSION_ROLES":
		return "admin_session_roles"
	case "AUTHGATE_LOG_LEVEL":
		return "log_level"
	case "AUTHGATE_LOG_FORMAT":
		return "log_format"
	case "AUTHGATE_CORRELATION_HEADER":
		return "correlation_header"
	default:
		return ""
	}
}
