package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	EmployeeID         *snowflake.ID
	SubscriptionID     snowflake.ID
	SubscriptionAmount decimal.Decimal
	CommissionRate     decimal.Decimal
	CommissionAmount   decimal.Decimal
}

type ListRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	EmployeeID string `form:"employee_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Commissions []Commission `json:"commissions"`
}

type CouponUsageRequest struct {
	UserID          snowflake.ID
	EmployeeID      *snowflake.ID
	CouponCode      string
	SubscriptionID  snowflake.ID
	DiscountPercent int
	AmountBefore    decimal.Decimal
	AmountAfter     decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, tx *gorm.DB, req CreateRequest) (*Commission, error)
	List(ctx context.Context, actor identity.Actor, req ListRequest) (ListResponse, error)
	MarkPaid(ctx context.Context, actor identity.Actor, id snowflake.ID) (*Commission, error)
	Summary(ctx context.Context, actor identity.Actor, employeeID snowflake.ID) (Summary, error)

	ListCoupons(ctx context.Context, actor identity.Actor) ([]EmployeeCoupon, error)
	EnsureEmployeeCoupon(ctx context.Context, tx *gorm.DB, employeeID snowflake.ID, name string) (*EmployeeCoupon, error)
	FindActiveCoupon(ctx context.Context, code string) (*EmployeeCoupon, error)
	IncrementCouponUsage(ctx context.Context, tx *gorm.DB, couponID snowflake.ID) error
	RecordCouponUsage(ctx context.Context, tx *gorm.DB, req CouponUsageRequest) error
}
