package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/profile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const profileColumns = `id, email, full_name, role, is_super_user, free_trial_used,
	password_hash, phone, company_name, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.Role,
		profile.IsSuperUser,
		profile.FreeTrialUsed,
		profile.PasswordHash,
		profile.Phone,
		profile.CompanyName,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM profiles WHERE id = ? LIMIT 1`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM profiles WHERE LOWER(email) = LOWER(?) LIMIT 1`,
		strings.TrimSpace(email),
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Profile, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Profile{})
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var profiles []*domain.Profile
	err := stmt.Order("created_at desc, id desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&profiles).Error
	if err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

func (r *repo) ListSuperUsers(ctx context.Context, db *gorm.DB) ([]*domain.Profile, error) {
	var profiles []*domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+` FROM profiles
		WHERE is_super_user = ?
		ORDER BY created_at ASC`,
		true,
	).Scan(&profiles).Error
	return profiles, err
}

func (r *repo) CountSuperUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM profiles WHERE is_super_user = ?`,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repo) SetSuperUser(ctx context.Context, db *gorm.DB, id snowflake.ID, isSuperUser bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE profiles SET is_super_user = ?, updated_at = ? WHERE id = ?`,
		isSuperUser, now, id,
	).Error
}

func (r *repo) SetRole(ctx context.Context, db *gorm.DB, id snowflake.ID, role identity.Role, isSuperUser bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE profiles SET role = ?, is_super_user = ?, updated_at = ? WHERE id = ?`,
		role, isSuperUser, now, id,
	).Error
}

func (r *repo) SetPasswordHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE profiles SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, now, id,
	).Error
}
