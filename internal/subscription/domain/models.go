// Package domain contains the allowance ledger: subscriptions and their
// remaining letter credits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
)

// Subscription is a purchased block of letter credits.
type Subscription struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID             snowflake.ID    `gorm:"not null;index" json:"user_id"`
	Plan               string          `gorm:"type:varchar(64);not null" json:"plan"`
	Status             Status          `gorm:"type:varchar(32);not null;index" json:"status"`
	Price              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Discount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	CouponCode         *string         `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	LettersGranted     int             `gorm:"not null;default:0" json:"letters_granted"`
	CreditsRemaining   int             `gorm:"not null;default:0;check:chk_subscriptions_credits_remaining,credits_remaining >= 0" json:"credits_remaining"`
	CurrentPeriodStart time.Time       `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time       `gorm:"not null" json:"current_period_end"`
	StripeSessionID    *string         `gorm:"type:varchar(255);uniqueIndex" json:"stripe_session_id,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
