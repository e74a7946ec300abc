// Package domain holds employee referral coupons, the commissions they earn
// and the append-only coupon usage log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Commission is owed to an employee for one subscription. EmployeeID is nil
// for bypass-token purchases when no house employee is configured.
type Commission struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	EmployeeID         *snowflake.ID   `gorm:"index" json:"employee_id,omitempty"`
	SubscriptionID     snowflake.ID    `gorm:"not null;uniqueIndex" json:"subscription_id"`
	SubscriptionAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subscription_amount"`
	CommissionRate     decimal.Decimal `gorm:"type:numeric(5,4);not null" json:"commission_rate"`
	CommissionAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"commission_amount"`
	Status             Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

func (Commission) TableName() string { return "commissions" }

type EmployeeCoupon struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	EmployeeID      snowflake.ID `gorm:"not null;index" json:"employee_id"`
	Code            string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	DiscountPercent int          `gorm:"not null" json:"discount_percent"`
	IsActive        bool         `gorm:"not null;default:true" json:"is_active"`
	UsageCount      int          `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}

func (EmployeeCoupon) TableName() string { return "employee_coupons" }

type CouponUsage struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID    `gorm:"not null;index" json:"user_id"`
	EmployeeID      *snowflake.ID   `gorm:"index" json:"employee_id,omitempty"`
	CouponCode      string          `gorm:"type:varchar(64);not null" json:"coupon_code"`
	SubscriptionID  snowflake.ID    `gorm:"not null;index" json:"subscription_id"`
	DiscountPercent int             `gorm:"not null" json:"discount_percent"`
	AmountBefore    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_before"`
	AmountAfter     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_after"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (CouponUsage) TableName() string { return "coupon_usages" }

// Summary aggregates one employee's commissions.
type Summary struct {
	EmployeeID   snowflake.ID    `json:"employee_id"`
	PendingTotal decimal.Decimal `json:"pending_total"`
	PaidTotal    decimal.Decimal `json:"paid_total"`
	Count        int64           `json:"count"`
}
