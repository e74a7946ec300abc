package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertLetterTrail(ctx context.Context, db *gorm.DB, entry *domain.LetterAuditTrail) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO letter_audit_trails (
			id, letter_id, performed_by, action, old_status, new_status, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.LetterID,
		entry.PerformedBy,
		entry.Action,
		entry.OldStatus,
		entry.NewStatus,
		entry.Notes,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListLetterTrail(ctx context.Context, db *gorm.DB, letterID snowflake.ID) ([]*domain.LetterAuditTrail, error) {
	var entries []*domain.LetterAuditTrail
	err := db.WithContext(ctx).Raw(
		`SELECT id, letter_id, performed_by, action, old_status, new_status, notes, created_at
		FROM letter_audit_trails
		WHERE letter_id = ?
		ORDER BY created_at ASC, id ASC`,
		letterID,
	).Scan(&entries).Error
	return entries, err
}

func (r *repo) InsertSecurityLog(ctx context.Context, db *gorm.DB, entry *domain.SecurityAuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO security_audit_logs (
			id, user_id, action, details, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListSecurityLogs(ctx context.Context, db *gorm.DB, filter domain.SecurityLogFilter) ([]*domain.SecurityAuditLog, error) {
	var logs []*domain.SecurityAuditLog
	stmt := db.WithContext(ctx).Model(&domain.SecurityAuditLog{})

	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
