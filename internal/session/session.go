// Package session defines the verified session model and role vocabulary.
//
// Purpose:
//   A Session represents an authenticated principal for the lifetime of a
//   signed session cookie. Sessions are only ever constructed by the identity
//   client after cryptographic verification; the edge gatekeeper never builds
//   one, it only inspects an unverified expiry claim.
//
// Key Responsibilities:
//   - Session struct with subject, email, role, club affiliation, extra claims
//   - Role enumeration and validity/authorization helpers
//
// Thread Safety:
//   - Session values are request-scoped and never mutated after construction
package session

// Role is the authorization role carried in a verified session.
type Role string

const (
	// RoleAdmin grants full content-management access.
	RoleAdmin Role = "admin"
	// RoleClubRep grants management access scoped to one club.
	RoleClubRep Role = "club_rep"
	// RoleMember grants read access to member-only areas.
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the known enumerated values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClubRep, RoleMember:
		return true
	}
	return false
}

// Session is an authenticated principal extracted from a verified session
// cookie. Subject is always present; the remaining named fields are optional.
// Extra carries claim fields outside the named set as an explicitly typed
// open extension map.
type Session struct {
	Subject string         `json:"sub"`
	Email   string         `json:"email,omitempty"`
	Role    Role           `json:"role,omitempty"`
	ClubID  string         `json:"club_id,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// HasRole reports whether the session carries exactly the given role.
func (s *Session) HasRole(role Role) bool {
	return s != nil && s.Role == role
}

// CanManageClub reports whether the session may manage the given club:
// admins manage every club, club representatives only their own.
func (s *Session) CanManageClub(clubID string) bool {
	if s == nil {
		return false
	}
	if s.Role == RoleAdmin {
		return true
	}
	return s.Role == RoleClubRep && s.ClubID != "" && s.ClubID == clubID
}
