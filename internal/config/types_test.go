package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthConfigValidate(t *testing.T) {
	cfg := AuthConfig{
		SessionURL:    "https://auth.internal/session",
		LoginRedirect: "https://auth.internal/login",
		Routes: []RouteDef{
			{Host: "app.example.com", Path: "/admin/*", Require: RequireBlock{Roles: []string{"admin"}}},
		},
	}
	require.NoError(t, cfg.Validate())
}

func TestAuthConfigValidateRejectsRelativeURL(t *testing.T) {
	cfg := AuthConfig{SessionURL: "/session", LoginRedirect: "https://auth.internal/login"}
	require.Error(t, cfg.Validate())
}

func TestAuthConfigValidateRejectsEmptyURL(t *testing.T) {
	cfg := AuthConfig{SessionURL: "https://auth.internal/session", LoginRedirect: ""}
	require.Error(t, cfg.Validate())
}

func TestRouteDefValidateRequiresLeadingSlash(t *testing.T) {
	r := RouteDef{Host: "app.example.com", Path: "admin"}
	require.Error(t, r.Validate())
}

func TestRouteDefValidateRequiresHost(t *testing.T) {
	r := RouteDef{Host: "", Path: "/admin"}
	require.Error(t, r.Validate())
}

func TestTeamReqValidateRequiresIdentifier(t *testing.T) {
	tr := TeamReq{}
	require.Error(t, tr.Validate())
}

func TestScopeReqValidate(t *testing.T) {
	require.NoError(t, ScopeReq{ResourceType: "client", Action: "access"}.Validate())
	require.Error(t, ScopeReq{ResourceType: "", Action: "access"}.Validate())
	require.Error(t, ScopeReq{ResourceType: "client", Action: ""}.Validate())
}

func TestRequireBlockActive(t *testing.T) {
	require.False(t, RequireBlock{}.Active())
	require.True(t, RequireBlock{Roles: []string{"admin"}}.Active())
	require.True(t, RequireBlock{Scopes: []ScopeReq{{ResourceType: "a", Action: "b"}}}.Active())
}

func TestWithDefaultsSetsCookieName(t *testing.T) {
	cfg := AuthConfig{}.WithDefaults()
	require.Equal(t, DefaultCookieName, cfg.CookieName)
}
