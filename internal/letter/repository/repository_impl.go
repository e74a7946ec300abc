package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/letter/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const letterColumns = `id, user_id, title, letter_type, status, intake_data, ai_draft_content,
	admin_edited_content, final_content, review_notes, rejection_reason, reviewed_by,
	reviewed_at, approved_at, completed_at, sent_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, letter *domain.Letter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO letters (`+letterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		letter.ID,
		letter.UserID,
		letter.Title,
		letter.LetterType,
		letter.Status,
		letter.IntakeData,
		letter.AIDraftContent,
		letter.AdminEditedContent,
		letter.FinalContent,
		letter.ReviewNotes,
		letter.RejectionReason,
		letter.ReviewedBy,
		letter.ReviewedAt,
		letter.ApprovedAt,
		letter.CompletedAt,
		letter.SentAt,
		letter.CreatedAt,
		letter.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Letter, error) {
	var letter domain.Letter
	err := db.WithContext(ctx).Raw(
		`SELECT `+letterColumns+` FROM letters WHERE id = ? LIMIT 1`,
		id,
	).Scan(&letter).Error
	if err != nil {
		return nil, err
	}
	if letter.ID == 0 {
		return nil, nil
	}
	return &letter, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Letter, error) {
	var items []*domain.Letter
	stmt := db.WithContext(ctx).Model(&domain.Letter{})

	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
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
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateFromStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, fields map[string]any) (bool, error) {
	if len(from) == 0 || len(fields) == 0 {
		return false, nil
	}
	result := db.WithContext(ctx).
		Model(&domain.Letter{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
