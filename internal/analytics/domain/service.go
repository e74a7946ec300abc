package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lexdraft/internal/identity"
)

// TopEmployeeLimit bounds the leaderboard in Overview.
const TopEmployeeLimit = 5

type EmployeePerformance struct {
	EmployeeID      snowflake.ID    `json:"employee_id"`
	FullName        string          `json:"full_name"`
	Email           string          `json:"email"`
	PaidTotal       decimal.Decimal `json:"paid_total"`
	CommissionCount int64           `json:"commission_count"`
}

type Overview struct {
	TotalUsers          int64                 `json:"total_users"`
	TotalLetters        int64                 `json:"total_letters"`
	PendingReviews      int64                 `json:"pending_reviews"`
	ActiveSubscriptions int64                 `json:"active_subscriptions"`
	TotalRevenue        decimal.Decimal       `json:"total_revenue"`
	LettersByStatus     map[string]int64      `json:"letters_by_status"`
	TopEmployees        []EmployeePerformance `json:"top_employees"`
}

type Service interface {
	Overview(ctx context.Context, actor identity.Actor) (Overview, error)
}
