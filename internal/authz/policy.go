// Package authz maps a requester's role set to the set of tickets that
// requester may see. The mapping is pure; it touches no storage.
package authz

import "github.com/spec-kit/helpdesk/internal/domain"

// Scope is the visibility predicate for one requester. Exactly one of the
// three shapes holds: unrestricted (admin), assignee-bound (agent) or
// owner-bound (plain user).
type Scope struct {
	All        bool
	AssigneeID *int64
	OwnerID    *int64
}

// ScopeFor derives the visibility scope from the requester's role set.
// ADMIN takes precedence over AGENT, which takes precedence over USER,
// when a user holds several roles.
func ScopeFor(user *domain.User) Scope {
	switch {
	case user.HasRole(domain.RoleAdmin):
		return Scope{All: true}
	case user.HasRole(domain.RoleAgent):
		id := user.ID
		return Scope{AssigneeID: &id}
	default:
		id := user.ID
		return Scope{OwnerID: &id}
	}
}

// Matches reports whether the ticket is visible under the scope.
func (s Scope) Matches(ticket *domain.Ticket) bool {
	switch {
	case s.All:
		return true
	case s.AssigneeID != nil:
		return ticket.AssigneeID != nil && *ticket.AssigneeID == *s.AssigneeID
	case s.OwnerID != nil:
		return ticket.OwnerID == *s.OwnerID
	}
	return false
}
