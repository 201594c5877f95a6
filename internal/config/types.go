// Package config defines the AuthGate configuration snapshot and the two
// Provider variants (file-backed, database-backed) that build and serve it.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthConfig is the effective configuration snapshot a request handler reads.
// Handlers take a copy of the current instance (Provider.Current) at request
// entry and use it for the lifetime of the request; refreshes publish a new
// instance rather than mutating this one in place.
type AuthConfig struct {
	SessionURL    string     `json:"session_url" koanf:"session_url"`
	LoginRedirect string     `json:"login_redirect" koanf:"login_redirect"`
	CookieName    string     `json:"cookie_name" koanf:"cookie_name"`
	Routes        []RouteDef `json:"routes" koanf:"routes"`
}

// RouteDef is a protected-surface specification: a host/path pattern pair
// plus the requirement block that must be satisfied to pass.
type RouteDef struct {
	// ID is populated for database-backed routes and empty for file-backed ones.
	ID      string       `json:"id,omitempty" koanf:"id"`
	Host    string       `json:"host" koanf:"host"`
	Path    string       `json:"path" koanf:"path"`
	Require RequireBlock `json:"require" koanf:"require"`
}

// RequireBlock is the authorization predicate attached to a route. Every
// active (non-empty) field is ANDed together; see internal/authz for the
// evaluation semantics.
type RequireBlock struct {
	Roles       []string   `json:"roles,omitempty" koanf:"roles"`
	Permissions []string   `json:"permissions,omitempty" koanf:"permissions"`
	Scopes      []ScopeReq `json:"scopes,omitempty" koanf:"scopes"`
	Teams       []TeamReq  `json:"teams,omitempty" koanf:"teams"`
}

// ScopeReq is a (resource_type, action, optional resource_id) requirement.
type ScopeReq struct {
	ResourceType string `json:"resource_type" koanf:"resource_type"`
	Action       string `json:"action" koanf:"action"`
	ResourceID   string `json:"resource_id,omitempty" koanf:"resource_id"`
}

// TeamReq identifies a team by id or name and optionally requires scopes
// within that team.
type TeamReq struct {
	ID     string     `json:"id,omitempty" koanf:"id"`
	Name   string     `json:"name,omitempty" koanf:"name"`
	Scopes []ScopeReq `json:"scopes,omitempty" koanf:"scopes"`
}

// Active reports whether this requirement block has at least one non-empty
// field. An inactive block is "unauthenticated-pass": a valid session is
// still required, but no authorization predicate applies.
func (r RequireBlock) Active() bool {
	return len(r.Roles) > 0 || len(r.Permissions) > 0 || len(r.Scopes) > 0 || len(r.Teams) > 0
}

// Validate enforces the structural invariants documented in spec.md §3.
func (c AuthConfig) Validate() error {
	if err := validateAbsoluteURL("session_url", c.SessionURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("login_redirect", c.LoginRedirect); err != nil {
		return err
	}
	for i, route := range c.Routes {
		if err := route.Validate(); err != nil {
			return fmt.Errorf("routes[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate enforces that path begins with "/", host is non-empty, and every
// scope/team requirement is valid. Wildcard placement in host and path is
// not checked (see internal/match for the matching semantics themselves).
func (r RouteDef) Validate() error {
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path %q must begin with /", r.Path)
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	for i, s := range r.Require.Scopes {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("require.scopes[%d]: %w", i, err)
		}
	}
	for i, t := range r.Require.Teams {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("require.teams[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate enforces that resource_type and action are present.
func (s ScopeReq) Validate() error {
	if strings.TrimSpace(s.ResourceType) == "" {
		return fmt.Errorf("resource_type required")
	}
	if strings.TrimSpace(s.Action) == "" {
		return fmt.Errorf("action required")
	}
	return nil
}

// Validate enforces that at least one of id/name identifies the team.
func (t TeamReq) Validate() error {
	if strings.TrimSpace(t.ID) == "" && strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("id or name required")
	}
	for i, s := range t.Scopes {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("scopes[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", field)
	}
	return nil
}

// DefaultCookieName is used whenever a config document omits cookie_name.
const DefaultCookieName = "session"

// WithDefaults fills in documented defaults without mutating the receiver.
func (c AuthConfig) WithDefaults() AuthConfig {
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = DefaultCookieName
	}
	return c
}
