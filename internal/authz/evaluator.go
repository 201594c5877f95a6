// Package authz implements the Authorization Evaluator (C5): a pure
// predicate over a resolved Session and a route's RequireBlock.
package authz

import (
	"fmt"

	"github.com/authava/authgate/internal/config"
	"github.com/authava/authgate/internal/session"
)

// ReasonKind enumerates the deny reasons per spec.md §4.3, kept distinct so
// callers (the forward-auth endpoint, tests) can switch on them without
// string matching.
type ReasonKind int

const (
	// ReasonNone is the zero value, used only on Allow.
	ReasonNone ReasonKind = iota
	ReasonMissingRole
	ReasonMissingPermission
	ReasonMissingScope
	ReasonMissingTeam
	ReasonMissingTeamScope
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonMissingRole:
		return "MissingRole"
	case ReasonMissingPermission:
		return "MissingPermission"
	case ReasonMissingScope:
		return "MissingScope"
	case ReasonMissingTeam:
		return "MissingTeam"
	case ReasonMissingTeamScope:
		return "MissingTeamScope"
	default:
		return "None"
	}
}

// Reason carries a deny's kind plus the offending requirement, when one
// applies, so a caller can render a precise header or log line.
type Reason struct {
	Kind   ReasonKind
	Scope  config.ScopeReq
	TeamID string
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonMissingScope:
		return fmt.Sprintf("%s(%s:%s)", r.Kind, r.Scope.ResourceType, r.Scope.Action)
	case ReasonMissingTeam:
		return fmt.Sprintf("%s(%s)", r.Kind, r.TeamID)
	case ReasonMissingTeamScope:
		return fmt.Sprintf("%s(%s,%s:%s)", r.Kind, r.TeamID, r.Scope.ResourceType, r.Scope.Action)
	default:
		return r.Kind.String()
	}
}

// Decision is the evaluator's verdict.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Evaluate implements spec.md §4.3: every active field of require must be
// satisfied. Evaluate performs no I/O and never fails — an empty session
// simply fails every active predicate.
func Evaluate(sess session.Session, require config.RequireBlock) Decision {
	if len(require.Roles) > 0 {
		if !intersects(sess.User.Roles, require.Roles) {
			return Decision{Reason: Reason{Kind: ReasonMissingRole}}
		}
	}

	if len(require.Permissions) > 0 {
		if !intersects(sess.User.Permissions, require.Permissions) {
			return Decision{Reason: Reason{Kind: ReasonMissingPermission}}
		}
	}

	if len(require.Scopes) > 0 {
		available := sess.User.AllScopes()
		for _, want := range require.Scopes {
			if !scopesSatisfy(available, want) {
				return Decision{Reason: Reason{Kind: ReasonMissingScope, Scope: want}}
			}
		}
	}

	if len(require.Teams) > 0 {
		if reason, ok := evaluateTeams(sess, require.Teams); !ok {
			return Decision{Reason: reason}
		}
	}

	return Decision{Allowed: true}
}

// evaluateTeams implements the any-of-teams-with-per-team-all-of-scopes
// rule: the block is satisfied if ANY required TeamReq is satisfied by the
// session. A TeamReq is satisfied when a matching session team exists (by
// id, falling back to name) and every one of its ScopeReqs is present in
// that team's own scope list.
func evaluateTeams(sess session.Session, required []config.TeamReq) (Reason, bool) {
	var lastMiss Reason
	for _, want := range required {
		team, found := findTeam(sess.User.Teams, want)
		if !found {
			lastMiss = Reason{Kind: ReasonMissingTeam, TeamID: teamIdentifier(want)}
			continue
		}
		allSatisfied := true
		var missingScope config.ScopeReq
		for _, wantScope := range want.Scopes {
			if !scopesSatisfy(team.Scopes, wantScope) {
				allSatisfied = false
				missingScope = wantScope
				break
			}
		}
		if allSatisfied {
			return Reason{}, true
		}
		lastMiss = Reason{Kind: ReasonMissingTeamScope, TeamID: teamIdentifier(want), Scope: missingScope}
	}
	return lastMiss, false
}

func findTeam(teams []session.Team, want config.TeamReq) (session.Team, bool) {
	for _, t := range teams {
		if want.ID != "" && t.ID == want.ID {
			return t, true
		}
		if want.ID == "" && want.Name != "" && t.Name == want.Name {
			return t, true
		}
	}
	return session.Team{}, false
}

func teamIdentifier(t config.TeamReq) string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}

func intersects(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// scopesSatisfy reports whether want is present in available. resource_id,
// when set on want, must match exactly; an empty want.ResourceID matches
// any resource_id on the candidate scope.
func scopesSatisfy(available []session.Scope, want config.ScopeReq) bool {
	for _, have := range available {
		if have.ResourceType != want.ResourceType || have.Action != want.Action {
			continue
		}
		if want.ResourceID != "" && have.ResourceID != want.ResourceID {
			continue
		}
		return true
	}
	return false
}
