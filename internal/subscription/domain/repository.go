package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindBySession(ctx context.Context, db *gorm.DB, sessionID string) (*Subscription, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Subscription, error)
	FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	FindDeductible(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	DecrementCredit(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	CountWithCredits(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
	ClaimFreeTrial(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (bool, error)
}
