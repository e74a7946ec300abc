package ai

import (
	"strings"
	"time"

	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.ai",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewFromConfig(p Params) Generator {
	if strings.TrimSpace(p.Config.OpenAI.APIKey) == "" {
		p.Log.Warn("OPENAI_API_KEY not set; letter generation will fail")
		return Unconfigured{}
	}
	return NewOpenAI(Config{
		APIKey:  p.Config.OpenAI.APIKey,
		BaseURL: p.Config.OpenAI.BaseURL,
		Model:   p.Config.OpenAI.Model,
		Timeout: time.Duration(p.Config.OpenAI.TimeoutSeconds) * time.Second,
	}, p.Log, p.Metrics)
}
