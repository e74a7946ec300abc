package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"gorm.io/gorm"
)

type SecurityLogFilter struct {
	UserID *snowflake.ID
	Action string
	Cursor *pagination.Position
	Limit  int
}

type Repository interface {
	InsertLetterTrail(ctx context.Context, db *gorm.DB, entry *LetterAuditTrail) error
	ListLetterTrail(ctx context.Context, db *gorm.DB, letterID snowflake.ID) ([]*LetterAuditTrail, error)
	InsertSecurityLog(ctx context.Context, db *gorm.DB, entry *SecurityAuditLog) error
	ListSecurityLogs(ctx context.Context, db *gorm.DB, filter SecurityLogFilter) ([]*SecurityAuditLog, error)
}
