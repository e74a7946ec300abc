package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Catalog       *config.PlanCatalogHolder
	CommissionSvc commissiondomain.Service
}

type Service struct {
	log           *zap.Logger
	catalog       *config.PlanCatalogHolder
	commissionSvc commissiondomain.Service

	bypassCode     string
	bypassEmployee *snowflake.ID
	commissionRate decimal.Decimal
}

func NewService(p Params) domain.Service {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.Config.Pricing.CommissionRate))
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		rate = domain.DefaultCommissionRate
	}

	var bypassEmployee *snowflake.ID
	if p.Config.Pricing.BypassCommissionEmployeeID > 0 {
		id := snowflake.ID(p.Config.Pricing.BypassCommissionEmployeeID)
		bypassEmployee = &id
	}

	return &Service{
		log:           p.Log.Named("pricing.service"),
		catalog:       p.Catalog,
		commissionSvc: p.CommissionSvc,

		bypassCode:     strings.TrimSpace(p.Config.Pricing.BypassCouponCode),
		bypassEmployee: bypassEmployee,
		commissionRate: rate,
	}
}

func (s *Service) Plans(ctx context.Context) []config.Plan {
	plans := s.catalog.Get().Plans
	out := make([]config.Plan, len(plans))
	copy(out, plans)
	return out
}

// Quote prices a plan with an optional coupon. Unknown or inactive coupons
// quote the list price.
func (s *Service) Quote(ctx context.Context, planType, couponCode string) (domain.Quote, error) {
	plan, ok := s.catalog.Get().Lookup(planType)
	if !ok {
		return domain.Quote{}, domain.ErrInvalidPlan
	}

	q := domain.Quote{
		PlanType:       plan.Type,
		PlanName:       plan.Name,
		Letters:        plan.Letters,
		BasePrice:      decimal.NewFromFloat(plan.Price).Round(2),
		CommissionRate: s.commissionRate,
	}

	code := strings.TrimSpace(couponCode)
	switch {
	case code == "":
	case s.bypassCode != "" && strings.EqualFold(code, s.bypassCode):
		q.CouponCode = s.bypassCode
		q.DiscountPercent = 100
		q.IsBypass = true
		q.EmployeeID = s.bypassEmployee
	default:
		coupon, err := s.commissionSvc.FindActiveCoupon(ctx, code)
		switch {
		case err == nil:
			employeeID := coupon.EmployeeID
			couponID := coupon.ID
			q.CouponCode = coupon.Code
			q.CouponID = &couponID
			q.EmployeeID = &employeeID
			q.DiscountPercent = clampPercent(coupon.DiscountPercent)
			q.IsSuperUserCoupon = q.DiscountPercent == 100
		case errors.Is(err, commissiondomain.ErrCouponNotFound):
			s.log.Debug("coupon not applied", zap.String("coupon_code", code))
		default:
			return domain.Quote{}, err
		}
	}

	q.DiscountAmount = q.BasePrice.Mul(decimal.NewFromInt(int64(q.DiscountPercent))).Div(hundred).Round(2)
	q.FinalPrice = q.BasePrice.Sub(q.DiscountAmount).Round(2)
	if q.FinalPrice.IsNegative() {
		q.FinalPrice = decimal.Zero
	}

	q.CommissionBase = domain.CommissionBase(q)
	if q.Attributed() {
		q.CommissionAmount = q.CommissionBase.Mul(q.CommissionRate).Round(2)
	} else {
		q.CommissionAmount = decimal.Zero
	}
	return q, nil
}

func clampPercent(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
