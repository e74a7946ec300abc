package providers

import (
	"github.com/smallbiznis/lexdraft/internal/providers/ai"
	"github.com/smallbiznis/lexdraft/internal/providers/email"
	"github.com/smallbiznis/lexdraft/internal/providers/payment"
	"github.com/smallbiznis/lexdraft/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	ai.Module,
	email.Module,
	payment.Module,
	pdf.Module,
)
