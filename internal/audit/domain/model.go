package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Security audit actions.
const (
	SecurityLogin            = "login"
	SecurityLoginFailed      = "login_failed"
	SecurityAdminLogin       = "admin_login"
	SecurityAdminLoginFailed = "admin_login_failed"
	SecurityRolePromoted     = "role_promoted"
	SecuritySuperUserGranted = "super_user_granted"
	SecuritySuperUserRevoked = "super_user_revoked"
	SecurityCommissionPaid   = "commission_paid"
)

// LetterAuditTrail is one append-only row per letter status transition.
type LetterAuditTrail struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	LetterID    snowflake.ID  `gorm:"not null;index" json:"letter_id"`
	PerformedBy *snowflake.ID `json:"performed_by,omitempty"`
	Action      string        `gorm:"type:varchar(64);not null" json:"action"`
	OldStatus   *string       `gorm:"type:varchar(32)" json:"old_status,omitempty"`
	NewStatus   *string       `gorm:"type:varchar(32)" json:"new_status,omitempty"`
	Notes       *string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;index" json:"created_at"`
}

func (LetterAuditTrail) TableName() string { return "letter_audit_trails" }

type SecurityAuditLog struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    *snowflake.ID     `gorm:"index" json:"user_id,omitempty"`
	Action    string            `gorm:"type:varchar(64);not null;index" json:"action"`
	Details   datatypes.JSONMap `gorm:"type:json" json:"details"`
	IPAddress *string           `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
}

func (SecurityAuditLog) TableName() string { return "security_audit_logs" }
