package domain

import (
	"context"

	"github.com/smallbiznis/lexdraft/internal/config"
)

type Service interface {
	Plans(ctx context.Context) []config.Plan
	Quote(ctx context.Context, planType, couponCode string) (Quote, error)
}
