package commission

import (
	"github.com/smallbiznis/lexdraft/internal/commission/repository"
	"github.com/smallbiznis/lexdraft/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
