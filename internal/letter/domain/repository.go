package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID   *snowflake.ID
	Statuses []Status
	Cursor   *pagination.Position
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, letter *Letter) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Letter, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Letter, error)
	// UpdateFromStatus applies fields only while the letter is in one of from.
	// It reports false when no row matched.
	UpdateFromStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, fields map[string]any) (bool, error)
}
