package domain

import (
	"fmt"
	"strings"
)

// Role enumerates access levels. Roles are non-exclusive; an agent or
// admin keeps the USER role it registered with.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a role literal.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAgent:
		return RoleAgent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// User is the domain model for anyone who can sign in. Requesters, agents
// and admins live in the same table, differentiated by their role set.
// Invariant: the role set is never empty; registration defaults to USER.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         *string
	Roles        []Role
}

// HasRole reports membership in the user's role set.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleNames returns the role set as plain strings for serialization.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, string(r))
	}
	return names
}
