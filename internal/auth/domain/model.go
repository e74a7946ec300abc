// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
)

// Session represents a persisted login session. Only the SHA-256 of the
// token is stored.
type Session struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	UserID     snowflake.ID   `gorm:"column:user_id;not null;index"`
	TokenHash  string         `gorm:"column:token_hash;type:varchar(64);not null;uniqueIndex"`
	Scope      identity.Scope `gorm:"column:scope;type:varchar(16);not null;default:'user'"`
	UserAgent  string         `gorm:"column:user_agent;type:text"`
	IPAddress  string         `gorm:"column:ip_address;type:varchar(64)"`
	ExpiresAt  time.Time      `gorm:"column:expires_at;not null;index"`
	RevokedAt  *time.Time     `gorm:"column:revoked_at"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null"`
	LastSeenAt time.Time      `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// SessionView is returned to clients without exposing token values.
type SessionView struct {
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	FullName    string         `json:"full_name"`
	Role        identity.Role  `json:"role"`
	IsSuperUser bool           `json:"is_super_user"`
	Scope       identity.Scope `json:"scope"`
	ExpiresAt   time.Time      `json:"expires_at"`
}
