// Package domain holds the priced result of a checkout request and its
// round trip through payment session metadata.
package domain

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPlan     = errors.New("invalid_plan")
	ErrInvalidMetadata = errors.New("invalid_checkout_metadata")
)

// Metadata keys written onto hosted checkout sessions.
const (
	MetaUserID            = "user_id"
	MetaPlanType          = "plan_type"
	MetaLetters           = "letters"
	MetaBasePrice         = "base_price"
	MetaDiscount          = "discount"
	MetaFinalPrice        = "final_price"
	MetaCouponCode        = "coupon_code"
	MetaEmployeeID        = "employee_id"
	MetaIsSuperUserCoupon = "is_super_user_coupon"
	MetaIsBypassCoupon    = "is_bypass_coupon"
	MetaCouponID          = "coupon_id"
	MetaDiscountPercent   = "discount_percent"
	MetaCommissionRate    = "commission_rate"
	MetaCommissionAmount  = "commission_amount"
)

type Quote struct {
	PlanType          string          `json:"plan_type"`
	PlanName          string          `json:"plan_name"`
	Letters           int             `json:"letters"`
	BasePrice         decimal.Decimal `json:"base_price"`
	DiscountPercent   int             `json:"discount_percent"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	FinalPrice        decimal.Decimal `json:"final_price"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	CouponID          *snowflake.ID   `json:"coupon_id,omitempty"`
	EmployeeID        *snowflake.ID   `json:"employee_id,omitempty"`
	IsSuperUserCoupon bool            `json:"is_super_user_coupon"`
	IsBypass          bool            `json:"is_bypass"`
	CommissionBase    decimal.Decimal `json:"commission_base"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
}

// IsFree reports whether the purchase needs no payment.
func (q Quote) IsFree() bool {
	return !q.FinalPrice.IsPositive()
}

// Attributed reports whether fulfillment must write a commission row.
func (q Quote) Attributed() bool {
	return q.EmployeeID != nil || q.IsBypass
}

// Metadata flattens the quote for a payment session so settlement can replay
// it without recomputing.
func (q Quote) Metadata(userID snowflake.ID) map[string]string {
	md := map[string]string{
		MetaUserID:            userID.String(),
		MetaPlanType:          q.PlanType,
		MetaLetters:           strconv.Itoa(q.Letters),
		MetaBasePrice:         q.BasePrice.StringFixed(2),
		MetaDiscount:          q.DiscountAmount.StringFixed(2),
		MetaFinalPrice:        q.FinalPrice.StringFixed(2),
		MetaCouponCode:        q.CouponCode,
		MetaEmployeeID:        "",
		MetaIsSuperUserCoupon: strconv.FormatBool(q.IsSuperUserCoupon),
		MetaIsBypassCoupon:    strconv.FormatBool(q.IsBypass),
		MetaCouponID:          "",
		MetaDiscountPercent:   strconv.Itoa(q.DiscountPercent),
		MetaCommissionRate:    q.CommissionRate.String(),
		MetaCommissionAmount:  q.CommissionAmount.StringFixed(2),
	}
	if q.EmployeeID != nil {
		md[MetaEmployeeID] = q.EmployeeID.String()
	}
	if q.CouponID != nil {
		md[MetaCouponID] = q.CouponID.String()
	}
	return md
}

// QuoteFromMetadata rebuilds a quote and the purchasing user from session
// metadata written by Metadata.
func QuoteFromMetadata(md map[string]string) (Quote, snowflake.ID, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(md[MetaUserID]))
	if err != nil || userID == 0 {
		return Quote{}, 0, ErrInvalidMetadata
	}

	q := Quote{
		PlanType:   strings.TrimSpace(md[MetaPlanType]),
		CouponCode: strings.TrimSpace(md[MetaCouponCode]),
	}
	if q.PlanType == "" {
		return Quote{}, 0, ErrInvalidMetadata
	}

	if q.Letters, err = strconv.Atoi(strings.TrimSpace(md[MetaLetters])); err != nil || q.Letters <= 0 {
		return Quote{}, 0, ErrInvalidMetadata
	}
	if q.BasePrice, err = parseAmount(md[MetaBasePrice]); err != nil {
		return Quote{}, 0, err
	}
	if q.DiscountAmount, err = parseAmount(md[MetaDiscount]); err != nil {
		return Quote{}, 0, err
	}
	if q.FinalPrice, err = parseAmount(md[MetaFinalPrice]); err != nil {
		return Quote{}, 0, err
	}
	if raw := strings.TrimSpace(md[MetaDiscountPercent]); raw != "" {
		if q.DiscountPercent, err = strconv.Atoi(raw); err != nil {
			return Quote{}, 0, ErrInvalidMetadata
		}
	}

	q.IsSuperUserCoupon, _ = strconv.ParseBool(md[MetaIsSuperUserCoupon])
	q.IsBypass, _ = strconv.ParseBool(md[MetaIsBypassCoupon])

	if q.EmployeeID, err = parseOptionalID(md[MetaEmployeeID]); err != nil {
		return Quote{}, 0, err
	}
	if q.CouponID, err = parseOptionalID(md[MetaCouponID]); err != nil {
		return Quote{}, 0, err
	}

	q.CommissionRate = DefaultCommissionRate
	if raw := strings.TrimSpace(md[MetaCommissionRate]); raw != "" {
		if q.CommissionRate, err = decimal.NewFromString(raw); err != nil {
			return Quote{}, 0, ErrInvalidMetadata
		}
	}
	q.CommissionBase = CommissionBase(q)
	q.CommissionAmount = q.CommissionBase.Mul(q.CommissionRate).Round(2)
	if raw := strings.TrimSpace(md[MetaCommissionAmount]); raw != "" {
		if q.CommissionAmount, err = parseAmount(raw); err != nil {
			return Quote{}, 0, err
		}
	}
	return q, userID, nil
}

// DefaultCommissionRate is 5%.
var DefaultCommissionRate = decimal.NewFromFloat(0.05)

// CommissionBase is the list price for bypass purchases and the amount
// actually charged otherwise.
func CommissionBase(q Quote) decimal.Decimal {
	if q.IsBypass {
		return q.BasePrice
	}
	return q.FinalPrice
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, ErrInvalidMetadata
	}
	return amount, nil
}

func parseOptionalID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, ErrInvalidMetadata
	}
	return &id, nil
}
