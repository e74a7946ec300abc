package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/commission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const commissionColumns = `id, employee_id, subscription_id, subscription_amount, commission_rate,
	commission_amount, status, paid_at, created_at, updated_at`

const couponColumns = `id, employee_id, code, discount_percent, is_active, usage_count,
	created_at, updated_at`

func (r *repo) InsertCommission(ctx context.Context, db *gorm.DB, commission *domain.Commission) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commissions (`+commissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		commission.ID,
		commission.EmployeeID,
		commission.SubscriptionID,
		commission.SubscriptionAmount,
		commission.CommissionRate,
		commission.CommissionAmount,
		commission.Status,
		commission.PaidAt,
		commission.CreatedAt,
		commission.UpdatedAt,
	).Error
}

func (r *repo) FindCommission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Commission, error) {
	var commission domain.Commission
	err := db.WithContext(ctx).Raw(
		`SELECT `+commissionColumns+` FROM commissions WHERE id = ? LIMIT 1`,
		id,
	).Scan(&commission).Error
	if err != nil {
		return nil, err
	}
	if commission.ID == 0 {
		return nil, nil
	}
	return &commission, nil
}

func (r *repo) ListCommissions(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Commission, error) {
	var items []*domain.Commission
	stmt := db.WithContext(ctx).Model(&domain.Commission{})

	if filter.EmployeeID != nil {
		stmt = stmt.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkPaid moves a pending commission to paid. It reports false when the row
// was not pending.
func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commissions
		SET status = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		domain.StatusPaid, now, now, id, domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) TotalsByStatus(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) ([]domain.StatusTotal, error) {
	var totals []domain.StatusTotal
	err := db.WithContext(ctx).Raw(
		`SELECT status, COALESCE(SUM(commission_amount), 0) AS total, COUNT(1) AS count
		FROM commissions
		WHERE employee_id = ?
		GROUP BY status`,
		employeeID,
	).Scan(&totals).Error
	return totals, err
}

func (r *repo) InsertCoupon(ctx context.Context, db *gorm.DB, coupon *domain.EmployeeCoupon) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO employee_coupons (`+couponColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		coupon.ID,
		coupon.EmployeeID,
		coupon.Code,
		coupon.DiscountPercent,
		coupon.IsActive,
		coupon.UsageCount,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	).Error
}

func (r *repo) FindCouponByCode(ctx context.Context, db *gorm.DB, code string) (*domain.EmployeeCoupon, error) {
	return r.findCoupon(ctx, db, `SELECT `+couponColumns+` FROM employee_coupons WHERE code = ? LIMIT 1`, code)
}

func (r *repo) FindCouponByEmployee(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) (*domain.EmployeeCoupon, error) {
	return r.findCoupon(ctx, db,
		`SELECT `+couponColumns+` FROM employee_coupons
		WHERE employee_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
		employeeID,
	)
}

func (r *repo) ListCoupons(ctx context.Context, db *gorm.DB, employeeID *snowflake.ID) ([]*domain.EmployeeCoupon, error) {
	var items []*domain.EmployeeCoupon
	stmt := db.WithContext(ctx).Model(&domain.EmployeeCoupon{})
	if employeeID != nil {
		stmt = stmt.Where("employee_id = ?", *employeeID)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) IncrementCouponUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE employee_coupons SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?`,
		now, id,
	).Error
}

func (r *repo) InsertCouponUsage(ctx context.Context, db *gorm.DB, usage *domain.CouponUsage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO coupon_usages (
			id, user_id, employee_id, coupon_code, subscription_id, discount_percent,
			amount_before, amount_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.ID,
		usage.UserID,
		usage.EmployeeID,
		usage.CouponCode,
		usage.SubscriptionID,
		usage.DiscountPercent,
		usage.AmountBefore,
		usage.AmountAfter,
		usage.CreatedAt,
	).Error
}

func (r *repo) findCoupon(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.EmployeeCoupon, error) {
	var coupon domain.EmployeeCoupon
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&coupon).Error; err != nil {
		return nil, err
	}
	if coupon.ID == 0 {
		return nil, nil
	}
	return &coupon, nil
}
