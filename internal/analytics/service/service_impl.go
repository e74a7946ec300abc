package service

import (
	"context"

	"github.com/shopspring/decimal"
	analyticsdomain "github.com/smallbiznis/lexdraft/internal/analytics/domain"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Authz authorization.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	authz authorization.Service
}

func NewService(p Params) analyticsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("analytics.service"),
		authz: p.Authz,
	}
}

func (s *Service) Overview(ctx context.Context, actor identity.Actor) (analyticsdomain.Overview, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapViewAnalytics); err != nil {
		return analyticsdomain.Overview{}, err
	}

	var out analyticsdomain.Overview
	db := s.db.WithContext(ctx)

	if err := db.Raw(`SELECT COUNT(*) FROM profiles`).Scan(&out.TotalUsers).Error; err != nil {
		return analyticsdomain.Overview{}, err
	}

	byStatus, err := s.lettersByStatus(ctx)
	if err != nil {
		return analyticsdomain.Overview{}, err
	}
	out.LettersByStatus = byStatus
	for status, count := range byStatus {
		out.TotalLetters += count
		if status == "pending_review" || status == "under_review" {
			out.PendingReviews += count
		}
	}

	var revenue struct {
		Active int64
		Total  decimal.Decimal
	}
	if err := db.Raw(
		`SELECT COUNT(*) AS active, COALESCE(SUM(price), 0) AS total
		FROM subscriptions
		WHERE status = ?`,
		"active",
	).Scan(&revenue).Error; err != nil {
		return analyticsdomain.Overview{}, err
	}
	out.ActiveSubscriptions = revenue.Active
	out.TotalRevenue = revenue.Total.Round(2)

	top, err := s.topEmployees(ctx)
	if err != nil {
		return analyticsdomain.Overview{}, err
	}
	out.TopEmployees = top

	return out, nil
}

func (s *Service) lettersByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS total FROM letters GROUP BY status`,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// topEmployees ranks employees by commission already paid out.
func (s *Service) topEmployees(ctx context.Context) ([]analyticsdomain.EmployeePerformance, error) {
	var rows []analyticsdomain.EmployeePerformance
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.employee_id, p.full_name, p.email,
			COALESCE(SUM(c.commission_amount), 0) AS paid_total,
			COUNT(*) AS commission_count
		FROM commissions c
		JOIN profiles p ON p.id = c.employee_id
		WHERE c.status = ?
		GROUP BY c.employee_id, p.full_name, p.email
		ORDER BY paid_total DESC, c.employee_id ASC
		LIMIT ?`,
		"paid", analyticsdomain.TopEmployeeLimit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].PaidTotal = rows[i].PaidTotal.Round(2)
	}
	if rows == nil {
		rows = []analyticsdomain.EmployeePerformance{}
	}
	return rows, nil
}
