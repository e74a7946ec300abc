package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"github.com/smallbiznis/lexdraft/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// deductAttempts bounds how often a deduction re-selects a subscription after
// another request drained the one it picked.
const deductAttempts = 3

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	metrics *metrics.Metrics

	periodDays int
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    subscriptiondomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	periodDays := p.Config.Pricing.SubscriptionPeriodDays
	if periodDays <= 0 {
		periodDays = 30
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,

		periodDays: periodDays,
	}
}

// DeductLetterAllowance consumes one credit from the newest active
// subscription. A false result means no credit could be taken and must be
// treated like insufficient funds.
func (s *Service) DeductLetterAllowance(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (bool, error) {
	if userID == 0 {
		return false, subscriptiondomain.ErrInvalidUserID
	}
	conn := s.conn(tx)

	for attempt := 0; attempt < deductAttempts; attempt++ {
		sub, err := s.repo.FindDeductible(ctx, conn, userID)
		if err != nil {
			return false, err
		}
		if sub == nil {
			s.metrics.RecordAllowance(ctx, "exhausted")
			return false, nil
		}

		ok, err := s.repo.DecrementCredit(ctx, conn, sub.ID, s.clock.Now())
		if err != nil {
			return false, err
		}
		if ok {
			s.metrics.RecordAllowance(ctx, "deducted")
			s.log.Debug("letter allowance deducted",
				zap.String("user_id", userID.String()),
				zap.String("subscription_id", sub.ID.String()),
			)
			return true, nil
		}
	}

	s.metrics.RecordAllowance(ctx, "exhausted")
	return false, nil
}

// ClaimFreeTrial marks the user's one free letter as used. It returns true
// only for the call that actually flipped the flag.
func (s *Service) ClaimFreeTrial(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (bool, error) {
	if userID == 0 {
		return false, subscriptiondomain.ErrInvalidUserID
	}
	claimed, err := s.repo.ClaimFreeTrial(ctx, s.conn(tx), userID, s.clock.Now())
	if err != nil {
		return false, err
	}
	if claimed {
		s.metrics.RecordAllowance(ctx, "free_trial")
	}
	return claimed, nil
}

func (s *Service) HasCredits(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (bool, error) {
	if userID == 0 {
		return false, subscriptiondomain.ErrInvalidUserID
	}
	count, err := s.repo.CountWithCredits(ctx, s.conn(tx), userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	if req.UserID == 0 {
		return nil, subscriptiondomain.ErrInvalidUserID
	}
	if req.Letters <= 0 {
		return nil, subscriptiondomain.ErrInvalidLetters
	}

	now := s.clock.Now()
	sub := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		UserID:             req.UserID,
		Plan:               strings.TrimSpace(req.Plan),
		Status:             subscriptiondomain.StatusActive,
		Price:              req.Price.Round(2),
		Discount:           req.Discount.Round(2),
		CouponCode:         optional(req.CouponCode),
		LettersGranted:     req.Letters,
		CreditsRemaining:   req.Letters,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(time.Duration(s.periodDays) * 24 * time.Hour),
		StripeSessionID:    optional(req.StripeSessionID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Insert(ctx, s.conn(tx), sub); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, subscriptiondomain.ErrDuplicateSession
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) FindBySession(ctx context.Context, sessionID string) (*subscriptiondomain.Subscription, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, subscriptiondomain.ErrNotFound
	}
	sub, err := s.repo.FindBySession(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrInvalidUserID
	}
	items, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	subs := make([]subscriptiondomain.Subscription, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		subs = append(subs, *item)
	}
	return subs, nil
}

func (s *Service) ActiveForUser(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrInvalidUserID
	}
	sub, err := s.repo.FindActiveByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
