package domain

import "errors"

var (
	ErrNotFound          = errors.New("commission_not_found")
	ErrAlreadyPaid       = errors.New("commission_already_paid")
	ErrInvalidID         = errors.New("invalid_commission_id")
	ErrInvalidEmployee   = errors.New("invalid_employee_id")
	ErrInvalidStatus     = errors.New("invalid_commission_status")
	ErrCouponNotFound    = errors.New("coupon_not_found")
	ErrInvalidCouponCode = errors.New("invalid_coupon_code")
)
