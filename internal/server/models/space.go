package models

import "time"

// Role is a member's role inside a shared space.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember
}

// SharedSpace is a named storage scope with its own fixed quota.
type SharedSpace struct {
	ID         string
	Name       string
	QuotaBytes int64
	CreatedBy  string
	CreatedAt  time.Time
	Members    map[string]Role
}

// Owner returns the user ID holding RoleOwner, or "".
func (s *SharedSpace) Owner() string {
	for id, role := range s.Members {
		if role == RoleOwner {
			return id
		}
	}
	return ""
}

// Scope returns the storage scope of the space.
func (s *SharedSpace) Scope() Scope {
	return SpaceScope(s.ID)
}

// Clone returns a deep copy of s.
func (s *SharedSpace) Clone() *SharedSpace {
	c := *s
	c.Members = make(map[string]Role, len(s.Members))
	for id, role := range s.Members {
		c.Members[id] = role
	}
	return &c
}
