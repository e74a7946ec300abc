// Package identity defines the closed role set and the resolved caller
// identity that handlers pass explicitly into services.
package identity

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidRole = errors.New("invalid_role")

type Role string

const (
	RoleSubscriber Role = "subscriber"
	RoleEmployee   Role = "employee"
	RoleAdmin      Role = "admin"
)

// ParseRole maps a raw role string onto the closed role set.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSubscriber:
		return RoleSubscriber, nil
	case RoleEmployee:
		return RoleEmployee, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) String() string { return string(r) }

// Scope distinguishes user sessions from admin portal sessions.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

type Actor struct {
	UserID      snowflake.ID
	Email       string
	Role        Role
	IsSuperUser bool
	Scope       Scope
}

// IsAdmin reports whether the actor is an admin acting through an admin session.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin && a.Scope == ScopeAdmin
}

// IsSuperAdmin reports whether the actor holds the elevated admin capability.
func (a Actor) IsSuperAdmin() bool {
	return a.IsAdmin() && a.IsSuperUser
}

func (a Actor) Valid() bool {
	return a.UserID != 0 && a.Role != ""
}
