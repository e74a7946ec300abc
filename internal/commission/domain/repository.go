package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	EmployeeID *snowflake.ID
	Status     Status
	Cursor     *pagination.Position
	Limit      int
}

// StatusTotal is one row of the per-status aggregate.
type StatusTotal struct {
	Status Status
	Total  decimal.Decimal
	Count  int64
}

type Repository interface {
	InsertCommission(ctx context.Context, db *gorm.DB, commission *Commission) error
	FindCommission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Commission, error)
	ListCommissions(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Commission, error)
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	TotalsByStatus(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) ([]StatusTotal, error)

	InsertCoupon(ctx context.Context, db *gorm.DB, coupon *EmployeeCoupon) error
	FindCouponByCode(ctx context.Context, db *gorm.DB, code string) (*EmployeeCoupon, error)
	FindCouponByEmployee(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) (*EmployeeCoupon, error)
	ListCoupons(ctx context.Context, db *gorm.DB, employeeID *snowflake.ID) ([]*EmployeeCoupon, error)
	IncrementCouponUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	InsertCouponUsage(ctx context.Context, db *gorm.DB, usage *CouponUsage) error
}
