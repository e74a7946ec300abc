package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, plan, status, price, discount, coupon_code,
	letters_granted, credits_remaining, current_period_start, current_period_end, stripe_session_id,
	created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.UserID,
		subscription.Plan,
		subscription.Status,
		subscription.Price,
		subscription.Discount,
		subscription.CouponCode,
		subscription.LettersGranted,
		subscription.CreditsRemaining,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.StripeSessionID,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindBySession(ctx context.Context, db *gorm.DB, sessionID string) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_session_id = ? LIMIT 1`, sessionID)
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*subscriptiondomain.Subscription, error) {
	var items []*subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db,
		`SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		userID, subscriptiondomain.StatusActive,
	)
}

// FindDeductible returns the most recent active subscription that still has
// credits left.
func (r *repo) FindDeductible(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db,
		`SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND status = ? AND credits_remaining > 0
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		userID, subscriptiondomain.StatusActive,
	)
}

// DecrementCredit takes one credit only while the row still has one.
func (r *repo) DecrementCredit(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		SET credits_remaining = credits_remaining - 1, updated_at = ?
		WHERE id = ? AND status = ? AND credits_remaining > 0`,
		now, id, subscriptiondomain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) CountWithCredits(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscriptions
		WHERE user_id = ? AND status = ? AND credits_remaining > 0`,
		userID, subscriptiondomain.StatusActive,
	).Scan(&count).Error
	return count, err
}

// ClaimFreeTrial flips the profile flag only for a user who has never
// submitted a letter. Drafts do not count.
func (r *repo) ClaimFreeTrial(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE profiles
		SET free_trial_used = ?, updated_at = ?
		WHERE id = ?
			AND free_trial_used = ?
			AND NOT EXISTS (
				SELECT 1 FROM letters WHERE user_id = ? AND status <> ?
			)`,
		true, now, userID, false, userID, "draft",
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&subscription).Error; err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}
