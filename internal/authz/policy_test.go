package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func userWithRoles(id int64, roles ...domain.Role) *domain.User {
	return &domain.User{ID: id, Email: "u@example.com", Roles: roles}
}

func TestScopeFor(t *testing.T) {
	t.Run("Should grant admins unrestricted scope", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(1, domain.RoleAdmin))
		assert.True(t, scope.All)
		assert.Nil(t, scope.AssigneeID)
		assert.Nil(t, scope.OwnerID)
	})

	t.Run("Should bind agents to their assignments", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(7, domain.RoleAgent))
		assert.False(t, scope.All)
		if assert.NotNil(t, scope.AssigneeID) {
			assert.Equal(t, int64(7), *scope.AssigneeID)
		}
	})

	t.Run("Should bind plain users to their own tickets", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(3, domain.RoleUser))
		assert.False(t, scope.All)
		if assert.NotNil(t, scope.OwnerID) {
			assert.Equal(t, int64(3), *scope.OwnerID)
		}
	})

	t.Run("Should prefer ADMIN over AGENT when both roles held", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(4, domain.RoleUser, domain.RoleAgent, domain.RoleAdmin))
		assert.True(t, scope.All)
	})

	t.Run("Should prefer AGENT over USER when both roles held", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(5, domain.RoleUser, domain.RoleAgent))
		if assert.NotNil(t, scope.AssigneeID) {
			assert.Equal(t, int64(5), *scope.AssigneeID)
		}
		assert.Nil(t, scope.OwnerID)
	})
}

func TestScopeMatches(t *testing.T) {
	assignee := int64(7)
	ticket := &domain.Ticket{ID: 10, OwnerID: 3, AssigneeID: &assignee}
	unassigned := &domain.Ticket{ID: 11, OwnerID: 3}

	t.Run("Should match everything for admins", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(1, domain.RoleAdmin))
		assert.True(t, scope.Matches(ticket))
		assert.True(t, scope.Matches(unassigned))
	})

	t.Run("Should match only assigned tickets for agents", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(7, domain.RoleAgent))
		assert.True(t, scope.Matches(ticket))
		assert.False(t, scope.Matches(unassigned))
	})

	t.Run("Should not match an agent's own requests via ownership", func(t *testing.T) {
		// An agent who also filed ticket 11 as owner 3 still does not see
		// it through the agent scope; assignment is the only door.
		scope := ScopeFor(userWithRoles(3, domain.RoleUser, domain.RoleAgent))
		assert.False(t, scope.Matches(unassigned))
	})

	t.Run("Should match only owned tickets for plain users", func(t *testing.T) {
		scope := ScopeFor(userWithRoles(3, domain.RoleUser))
		assert.True(t, scope.Matches(unassigned))
		assert.False(t, scope.Matches(&domain.Ticket{ID: 12, OwnerID: 4}))
	})
}
