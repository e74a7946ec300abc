package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/pkg/db"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Repo     domain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service

	employeeDiscount int
}

func NewService(p Params) domain.Service {
	discount := p.Config.Pricing.EmployeeDiscountPercent
	if discount <= 0 || discount > 100 {
		discount = 20
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("commission.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,

		employeeDiscount: discount,
	}
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (*domain.Commission, error) {
	if req.SubscriptionID == 0 {
		return nil, domain.ErrInvalidID
	}

	now := s.clock.Now()
	commission := &domain.Commission{
		ID:                 s.genID.Generate(),
		EmployeeID:         req.EmployeeID,
		SubscriptionID:     req.SubscriptionID,
		SubscriptionAmount: req.SubscriptionAmount.Round(2),
		CommissionRate:     req.CommissionRate,
		CommissionAmount:   req.CommissionAmount.Round(2),
		Status:             domain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertCommission(ctx, s.conn(tx), commission); err != nil {
		return nil, err
	}
	return commission, nil
}

// List returns every commission to admins and only the caller's own rows to
// employees.
func (s *Service) List(ctx context.Context, actor identity.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{Limit: req.Size()}

	if actor.IsAdmin() {
		if err := s.authz.Authorize(ctx, actor, authorization.CapManageCommissions); err != nil {
			return domain.ListResponse{}, err
		}
		if raw := strings.TrimSpace(req.EmployeeID); raw != "" {
			employeeID, err := snowflake.ParseString(raw)
			if err != nil || employeeID == 0 {
				return domain.ListResponse{}, domain.ErrInvalidEmployee
			}
			filter.EmployeeID = &employeeID
		}
	} else {
		if err := s.authz.Authorize(ctx, actor, authorization.CapViewOwnCommissions); err != nil {
			return domain.ListResponse{}, err
		}
		employeeID := actor.UserID
		filter.EmployeeID = &employeeID
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if status != domain.StatusPending && status != domain.StatusPaid {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	cursor, err := pagination.ParseToken(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	filter.Cursor = cursor

	items, err := s.repo.ListCommissions(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	page, info := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *domain.Commission) string {
		return pagination.TokenFor(item.ID, item.CreatedAt)
	})
	commissions := make([]domain.Commission, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		commissions = append(commissions, *item)
	}
	return domain.ListResponse{PageInfo: info, Commissions: commissions}, nil
}

func (s *Service) MarkPaid(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.Commission, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapManageCommissions); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, domain.ErrInvalidID
	}

	var updated *domain.Commission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindCommission(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}
		if existing.Status == domain.StatusPaid {
			return domain.ErrAlreadyPaid
		}

		ok, err := s.repo.MarkPaid(ctx, tx, id, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyPaid
		}

		updated, err = s.repo.FindCommission(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	actorID := actor.UserID
	_ = s.auditSvc.RecordSecurityEvent(ctx, auditdomain.SecurityEvent{
		UserID: &actorID,
		Action: auditdomain.SecurityCommissionPaid,
		Details: map[string]any{
			"commission_id":     id.String(),
			"commission_amount": updated.CommissionAmount.StringFixed(2),
		},
	})
	return updated, nil
}

func (s *Service) Summary(ctx context.Context, actor identity.Actor, employeeID snowflake.ID) (domain.Summary, error) {
	if actor.IsAdmin() {
		if err := s.authz.Authorize(ctx, actor, authorization.CapManageCommissions); err != nil {
			return domain.Summary{}, err
		}
	} else {
		if err := s.authz.Authorize(ctx, actor, authorization.CapViewOwnCommissions); err != nil {
			return domain.Summary{}, err
		}
		employeeID = actor.UserID
	}
	if employeeID == 0 {
		return domain.Summary{}, domain.ErrInvalidEmployee
	}

	totals, err := s.repo.TotalsByStatus(ctx, s.db, employeeID)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		EmployeeID:   employeeID,
		PendingTotal: decimal.Zero,
		PaidTotal:    decimal.Zero,
	}
	for _, total := range totals {
		summary.Count += total.Count
		switch total.Status {
		case domain.StatusPending:
			summary.PendingTotal = total.Total.Round(2)
		case domain.StatusPaid:
			summary.PaidTotal = total.Total.Round(2)
		}
	}
	return summary, nil
}

func (s *Service) ListCoupons(ctx context.Context, actor identity.Actor) ([]domain.EmployeeCoupon, error) {
	var employeeID *snowflake.ID
	if actor.IsAdmin() {
		if err := s.authz.Authorize(ctx, actor, authorization.CapManageCoupons); err != nil {
			return nil, err
		}
	} else {
		if err := s.authz.Authorize(ctx, actor, authorization.CapViewOwnCoupons); err != nil {
			return nil, err
		}
		own := actor.UserID
		employeeID = &own
	}

	items, err := s.repo.ListCoupons(ctx, s.db, employeeID)
	if err != nil {
		return nil, err
	}
	coupons := make([]domain.EmployeeCoupon, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		coupons = append(coupons, *item)
	}
	return coupons, nil
}

// EnsureEmployeeCoupon returns the employee's coupon, creating one with the
// configured employee discount when none exists yet.
func (s *Service) EnsureEmployeeCoupon(ctx context.Context, tx *gorm.DB, employeeID snowflake.ID, name string) (*domain.EmployeeCoupon, error) {
	if employeeID == 0 {
		return nil, domain.ErrInvalidEmployee
	}
	conn := s.conn(tx)

	existing, err := s.repo.FindCouponByEmployee(ctx, conn, employeeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	coupon := &domain.EmployeeCoupon{
		ID:              s.genID.Generate(),
		EmployeeID:      employeeID,
		DiscountPercent: s.employeeDiscount,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	coupon.Code = couponCode(name, coupon.ID)

	if err := s.repo.InsertCoupon(ctx, conn, coupon); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrInvalidCouponCode
		}
		return nil, err
	}

	s.log.Info("employee coupon provisioned",
		zap.String("employee_id", employeeID.String()),
		zap.String("code", coupon.Code),
	)
	return coupon, nil
}

// FindActiveCoupon matches the code exactly. Inactive coupons are reported as
// not found.
func (s *Service) FindActiveCoupon(ctx context.Context, code string) (*domain.EmployeeCoupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrCouponNotFound
	}
	coupon, err := s.repo.FindCouponByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil || !coupon.IsActive {
		return nil, domain.ErrCouponNotFound
	}
	return coupon, nil
}

func (s *Service) IncrementCouponUsage(ctx context.Context, tx *gorm.DB, couponID snowflake.ID) error {
	if couponID == 0 {
		return domain.ErrCouponNotFound
	}
	return s.repo.IncrementCouponUsage(ctx, s.conn(tx), couponID, s.clock.Now())
}

func (s *Service) RecordCouponUsage(ctx context.Context, tx *gorm.DB, req domain.CouponUsageRequest) error {
	code := strings.TrimSpace(req.CouponCode)
	if code == "" {
		return domain.ErrInvalidCouponCode
	}
	if req.SubscriptionID == 0 || req.UserID == 0 {
		return domain.ErrInvalidID
	}

	usage := &domain.CouponUsage{
		ID:              s.genID.Generate(),
		UserID:          req.UserID,
		EmployeeID:      req.EmployeeID,
		CouponCode:      code,
		SubscriptionID:  req.SubscriptionID,
		DiscountPercent: req.DiscountPercent,
		AmountBefore:    req.AmountBefore.Round(2),
		AmountAfter:     req.AmountAfter.Round(2),
		CreatedAt:       s.clock.Now(),
	}
	return s.repo.InsertCouponUsage(ctx, s.conn(tx), usage)
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// couponCode builds "<NAME-SLUG>-<last four base36 chars of the coupon id>".
func couponCode(name string, id snowflake.ID) string {
	prefix := strings.ToUpper(slug.Make(strings.TrimSpace(name)))
	if prefix == "" {
		prefix = "EMP"
	}
	if len(prefix) > 40 {
		prefix = strings.Trim(prefix[:40], "-")
	}
	suffix := strings.ToUpper(id.Base36())
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return prefix + "-" + suffix
}
