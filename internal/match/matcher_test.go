package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authava/authgate/internal/config"
)

func routes() []config.RouteDef {
	return []config.RouteDef{
		{ID: "1", Host: "app.example.com", Path: "/admin/*"},
		{ID: "2", Host: "app.example.com", Path: "/admin/users"},
		{ID: "3", Host: "*.client.example.com", Path: "/"},
		{ID: "4", Host: "app.example.com", Path: "/"},
	}
}

func TestMatchExactHostAndPath(t *testing.T) {
	route, ok := Match("app.example.com", "/admin/users", routes())
	require.True(t, ok)
	assert.Equal(t, "2", route.ID, "exact path literal should beat the wildcard sibling")
}

func TestMatchWildcardPathFallback(t *testing.T) {
	route, ok := Match("app.example.com", "/admin/teams", routes())
	require.True(t, ok)
	assert.Equal(t, "1", route.ID)
}

func TestMatchWildcardHostRequiresNonEmptyLabel(t *testing.T) {
	_, ok := Match("client.example.com", "/", routes())
	assert.False(t, ok, "bare suffix without a label must not match *.client.example.com")

	route, ok := Match("acme.client.example.com", "/", routes())
	require.True(t, ok)
	assert.Equal(t, "3", route.ID)
}

func TestMatchCaseInsensitiveHost(t *testing.T) {
	route, ok := Match("APP.EXAMPLE.COM", "/admin/users", routes())
	require.True(t, ok)
	assert.Equal(t, "2", route.ID)
}

func TestMatchNoRouteForUnconfiguredHost(t *testing.T) {
	_, ok := Match("other.example.com", "/anything", routes())
	assert.False(t, ok)
}

func TestMatchExactHostBeatsWildcardHostOnEqualPrefix(t *testing.T) {
	rs := []config.RouteDef{
		{ID: "wild", Host: "*.example.com", Path: "/"},
		{ID: "exact", Host: "app.example.com", Path: "/"},
	}
	route, ok := Match("app.example.com", "/", rs)
	require.True(t, ok)
	assert.Equal(t, "exact", route.ID)
}

func TestMatchIsDeterministic(t *testing.T) {
	rs := routes()
	first, _ := Match("app.example.com", "/admin/users", rs)
	for i := 0; i < 20; i++ {
		next, ok := Match("app.example.com", "/admin/users", rs)
		require.True(t, ok)
		assert.Equal(t, first.ID, next.ID)
	}
}

func TestMatchTrailingWildcardMatchesBasePathExactly(t *testing.T) {
	rs := []config.RouteDef{{ID: "1", Host: "app.example.com", Path: "/admin/*"}}
	_, ok := Match("app.example.com", "/admin", rs)
	assert.True(t, ok)
}

func TestMatchPathIsCaseSensitive(t *testing.T) {
	rs := []config.RouteDef{{ID: "1", Host: "app.example.com", Path: "/Admin"}}
	_, ok := Match("app.example.com", "/admin", rs)
	assert.False(t, ok)
}
