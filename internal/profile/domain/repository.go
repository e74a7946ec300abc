package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"gorm.io/gorm"
)

type ListFilter struct {
	Role   identity.Role
	Search string
	Limit  int
	Offset int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Profile, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Profile, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Profile, int64, error)
	ListSuperUsers(ctx context.Context, db *gorm.DB) ([]*Profile, error)
	CountSuperUsers(ctx context.Context, db *gorm.DB) (int64, error)
	SetSuperUser(ctx context.Context, db *gorm.DB, id snowflake.ID, isSuperUser bool, now time.Time) error
	SetRole(ctx context.Context, db *gorm.DB, id snowflake.ID, role identity.Role, isSuperUser bool, now time.Time) error
	SetPasswordHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string, now time.Time) error
}
