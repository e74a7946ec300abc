package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/checkout/domain"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/lexdraft/internal/pricing/domain"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/smallbiznis/lexdraft/internal/providers/payment"
	"github.com/smallbiznis/lexdraft/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSettleLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Authz         authorization.Service
	PricingSvc    pricingdomain.Service
	SubSvc        subscriptiondomain.Service
	CommissionSvc commissiondomain.Service
	ProfileSvc    profiledomain.Service
	Gateway       payment.Gateway
	Locker        *ratelimit.Locker `optional:"true"`
	Metrics       *metrics.Metrics  `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	authz         authorization.Service
	pricingSvc    pricingdomain.Service
	subSvc        subscriptiondomain.Service
	commissionSvc commissiondomain.Service
	profileSvc    profiledomain.Service
	gateway       payment.Gateway
	locker        *ratelimit.Locker
	metrics       *metrics.Metrics

	appURL  string
	lockTTL time.Duration
}

func NewService(p Params) domain.Service {
	lockTTL := time.Duration(p.Config.RateLimit.SettleLockSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = defaultSettleLockTTL
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("checkout.service"),
		authz:         p.Authz,
		pricingSvc:    p.PricingSvc,
		subSvc:        p.SubSvc,
		commissionSvc: p.CommissionSvc,
		profileSvc:    p.ProfileSvc,
		gateway:       p.Gateway,
		locker:        p.Locker,
		metrics:       p.Metrics,

		appURL:  strings.TrimRight(p.Config.AppURL, "/"),
		lockTTL: lockTTL,
	}
}

// StartCheckout fulfills free purchases on the spot. Paid purchases only get
// a hosted session; nothing is written until the payment settles.
func (s *Service) StartCheckout(ctx context.Context, actor identity.Actor, req domain.StartRequest) (domain.StartResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapPurchase); err != nil {
		return domain.StartResponse{}, err
	}

	quote, err := s.pricingSvc.Quote(ctx, req.PlanType, req.CouponCode)
	if err != nil {
		return domain.StartResponse{}, err
	}

	if quote.IsFree() {
		sub, err := s.fulfill(ctx, actor.UserID, quote, "")
		if err != nil {
			return domain.StartResponse{}, err
		}
		s.metrics.RecordCheckout(ctx, quote.PlanType, "free")
		s.metrics.RecordSettlement(ctx, domain.SourceFree, "fulfilled")
		return domain.StartResponse{
			Free:           true,
			SubscriptionID: &sub.ID,
			Letters:        quote.Letters,
			Message:        fulfilledMessage(quote.Letters),
		}, nil
	}

	origin := strings.TrimRight(strings.TrimSpace(req.Origin), "/")
	if origin == "" {
		origin = s.appURL
	}

	session, err := s.gateway.CreateSession(ctx, payment.CheckoutRequest{
		ClientReferenceID: actor.UserID.String(),
		ProductName:       quote.PlanName,
		Description:       letterCount(quote.Letters),
		AmountCents:       quote.FinalPrice.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:          "usd",
		SuccessURL:        origin + "/dashboard/subscription?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         origin + "/dashboard/subscription?canceled=true",
		Metadata:          quote.Metadata(actor.UserID),
	})
	if err != nil {
		s.log.Error("create checkout session failed",
			zap.String("user_id", actor.UserID.String()),
			zap.String("plan", quote.PlanType),
			zap.Error(err),
		)
		return domain.StartResponse{}, err
	}

	s.metrics.RecordCheckout(ctx, quote.PlanType, "hosted")
	return domain.StartResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (s *Service) VerifyPayment(ctx context.Context, actor identity.Actor, sessionID string) (domain.SettlementResult, error) {
	if !actor.Valid() {
		return domain.SettlementResult{}, authorization.ErrUnauthenticated
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.SettlementResult{}, domain.ErrSessionRequired
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return domain.SettlementResult{}, err
	}
	if !session.Paid() {
		return domain.SettlementResult{}, domain.ErrPaymentNotCompleted
	}
	if owner := strings.TrimSpace(session.Metadata[pricingdomain.MetaUserID]); owner != actor.UserID.String() {
		return domain.SettlementResult{}, authorization.ErrForbidden
	}

	return s.Settle(ctx, session, domain.SourceVerify)
}

// HandleWebhook settles paid checkout completions. Every other verified
// event is acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != payment.EventCheckoutCompleted || event.Session == nil {
		s.log.Debug("ignoring payment event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}
	if !event.Session.Paid() {
		s.log.Info("checkout completed without payment",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.Session.ID),
		)
		return nil
	}

	_, err = s.Settle(ctx, *event.Session, domain.SourceWebhook)
	return err
}

func (s *Service) Settle(ctx context.Context, session payment.Session, source string) (domain.SettlementResult, error) {
	sessionID := strings.TrimSpace(session.ID)
	if sessionID == "" {
		return domain.SettlementResult{}, domain.ErrSessionRequired
	}

	if result, ok, err := s.existing(ctx, sessionID); err != nil || ok {
		if ok {
			s.metrics.RecordSettlement(ctx, source, "duplicate")
		}
		return result, err
	}

	var result domain.SettlementResult
	err := s.locker.WithLock(ctx, "settle:"+sessionID, s.lockTTL, func(ctx context.Context) error {
		var err error
		result, err = s.settle(ctx, session, source)
		return err
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		if result, ok, lookupErr := s.existing(ctx, sessionID); lookupErr == nil && ok {
			s.metrics.RecordSettlement(ctx, source, "duplicate")
			return result, nil
		}
		return domain.SettlementResult{}, domain.ErrSettlementInProgress
	}
	if err != nil {
		s.metrics.RecordSettlement(ctx, source, "failed")
		return domain.SettlementResult{}, err
	}
	return result, nil
}

func (s *Service) settle(ctx context.Context, session payment.Session, source string) (domain.SettlementResult, error) {
	quote, userID, err := pricingdomain.QuoteFromMetadata(session.Metadata)
	if err != nil {
		s.log.Error("unreadable checkout metadata",
			zap.String("session_id", session.ID),
			zap.String("source", source),
			zap.Error(err),
		)
		return domain.SettlementResult{}, err
	}

	sub, err := s.fulfill(ctx, userID, quote, session.ID)
	if errors.Is(err, subscriptiondomain.ErrDuplicateSession) {
		if result, ok, lookupErr := s.existing(ctx, session.ID); lookupErr == nil && ok {
			s.metrics.RecordSettlement(ctx, source, "duplicate")
			return result, nil
		}
	}
	if err != nil {
		return domain.SettlementResult{}, err
	}

	s.metrics.RecordSettlement(ctx, source, "fulfilled")
	s.log.Info("checkout settled",
		zap.String("session_id", session.ID),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("source", source),
	)
	return domain.SettlementResult{
		Success:        true,
		SubscriptionID: sub.ID,
		Letters:        quote.Letters,
		Message:        fulfilledMessage(quote.Letters),
	}, nil
}

func (s *Service) existing(ctx context.Context, sessionID string) (domain.SettlementResult, bool, error) {
	sub, err := s.subSvc.FindBySession(ctx, sessionID)
	if errors.Is(err, subscriptiondomain.ErrNotFound) {
		return domain.SettlementResult{}, false, nil
	}
	if err != nil {
		return domain.SettlementResult{}, false, err
	}
	return domain.SettlementResult{
		Success:          true,
		SubscriptionID:   sub.ID,
		Letters:          sub.LettersGranted,
		Message:          "Payment already processed",
		AlreadyProcessed: true,
	}, true, nil
}

// fulfill writes the subscription and every pricing side effect in one
// transaction.
func (s *Service) fulfill(ctx context.Context, userID snowflake.ID, quote pricingdomain.Quote, sessionID string) (*subscriptiondomain.Subscription, error) {
	var sub *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.subSvc.Create(ctx, tx, subscriptiondomain.CreateRequest{
			UserID:          userID,
			Plan:            quote.PlanType,
			Price:           quote.FinalPrice,
			Discount:        quote.DiscountAmount,
			CouponCode:      quote.CouponCode,
			Letters:         quote.Letters,
			StripeSessionID: sessionID,
		})
		if err != nil {
			return err
		}

		if quote.IsSuperUserCoupon {
			if err := s.profileSvc.GrantPurchasedSuperUser(ctx, tx, userID); err != nil {
				return err
			}
		}

		if quote.CouponCode != "" {
			if err := s.commissionSvc.RecordCouponUsage(ctx, tx, commissiondomain.CouponUsageRequest{
				UserID:          userID,
				EmployeeID:      quote.EmployeeID,
				CouponCode:      quote.CouponCode,
				SubscriptionID:  sub.ID,
				DiscountPercent: quote.DiscountPercent,
				AmountBefore:    quote.BasePrice,
				AmountAfter:     quote.FinalPrice,
			}); err != nil {
				return err
			}
		}

		if quote.Attributed() {
			if _, err := s.commissionSvc.Create(ctx, tx, commissiondomain.CreateRequest{
				EmployeeID:         quote.EmployeeID,
				SubscriptionID:     sub.ID,
				SubscriptionAmount: quote.CommissionBase,
				CommissionRate:     quote.CommissionRate,
				CommissionAmount:   quote.CommissionAmount,
			}); err != nil {
				return err
			}
		}

		if quote.CouponID != nil {
			if err := s.commissionSvc.IncrementCouponUsage(ctx, tx, *quote.CouponID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func letterCount(n int) string {
	if n == 1 {
		return "1 Legal Letter"
	}
	return fmt.Sprintf("%d Legal Letters", n)
}

func fulfilledMessage(letters int) string {
	return fmt.Sprintf("Subscription activated with %s", strings.ToLower(letterCount(letters)))
}
