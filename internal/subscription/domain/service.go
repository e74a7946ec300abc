package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("subscription_not_found")
	ErrDuplicateSession  = errors.New("duplicate_checkout_session")
	ErrNeedsSubscription = errors.New("needs_subscription")
	ErrInvalidUserID     = errors.New("invalid_user_id")
	ErrInvalidLetters    = errors.New("invalid_letter_count")
)

type CreateRequest struct {
	UserID          snowflake.ID
	Plan            string
	Price           decimal.Decimal
	Discount        decimal.Decimal
	CouponCode      string
	Letters         int
	StripeSessionID string
}

// Service is the allowance ledger. Methods that accept a *gorm.DB run on the
// caller's transaction; a nil db falls back to the service connection.
type Service interface {
	DeductLetterAllowance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error)
	ClaimFreeTrial(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error)
	HasCredits(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error)
	Create(ctx context.Context, db *gorm.DB, req CreateRequest) (*Subscription, error)
	FindBySession(ctx context.Context, sessionID string) (*Subscription, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Subscription, error)
	ActiveForUser(ctx context.Context, userID snowflake.ID) (*Subscription, error)
}
