// Package session implements the Session Resolver (C4) and Session Cache
// (C3): validating a cookie against the external session endpoint, caching
// the result with a JWT-derived TTL, and degrading cleanly on backend
// failure per spec.md §4.4.
package session

// Session is the payload returned by the external session endpoint.
type Session struct {
	User      User   `json:"user"`
	TenantID  string `json:"tenant_id,omitempty"`
	Authority string `json:"authority,omitempty"`
}

// User carries the authenticated principal's authorization context.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Teams       []Team   `json:"teams,omitempty"`
	// Scopes holds direct, non-team-scoped grants if the session payload
	// carries any; combined with team scopes for top-level scope checks.
	Scopes []Scope `json:"scopes,omitempty"`
}

// Team is a named collection of scopes attached to a user.
type Team struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name,omitempty"`
	IsOwner bool    `json:"is_owner,omitempty"`
	Scopes  []Scope `json:"scopes,omitempty"`
}

// Scope grants an action on a resource type, optionally scoped to one instance.
type Scope struct {
	ResourceType string `json:"resource_type"`
	Action       string `json:"action"`
	ResourceID   string `json:"resource_id,omitempty"`
}

// AllScopes returns the union of the user's direct scopes and every team's
// scopes, used by the authorization evaluator for top-level `scopes` checks.
func (u User) AllScopes() []Scope {
	out := make([]Scope, 0, len(u.Scopes))
	out = append(out, u.Scopes...)
	for _, t := range u.Teams {
		out = append(out, t.Scopes...)
	}
	return out
}
