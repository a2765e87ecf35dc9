package models

import "strings"

// ScopeKind tells personal storage apart from shared spaces.
type ScopeKind string

const (
	ScopePersonal ScopeKind = "user"
	ScopeShared   ScopeKind = "space"
)

// Scope identifies a quota-bounded storage namespace.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// PersonalScope returns the personal scope of userID.
func PersonalScope(userID string) Scope {
	return Scope{Kind: ScopePersonal, ID: userID}
}

// SpaceScope returns the scope of a shared space.
func SpaceScope(spaceID string) Scope {
	return Scope{Kind: ScopeShared, ID: spaceID}
}

// Valid reports whether the scope names a known kind and a non-empty owner.
func (s Scope) Valid() bool {
	return (s.Kind == ScopePersonal || s.Kind == ScopeShared) && strings.TrimSpace(s.ID) != ""
}

func (s Scope) String() string {
	return string(s.Kind) + "/" + s.ID
}

// ParseScope is the inverse of Scope.String.
func ParseScope(s string) (Scope, bool) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok {
		return Scope{}, false
	}
	scope := Scope{Kind: ScopeKind(kind), ID: id}
	return scope, scope.Valid()
}
