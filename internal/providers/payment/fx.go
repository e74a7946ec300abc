package payment

import (
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.payment",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewFromConfig(p Params) Gateway {
	cfg := p.Config.Stripe
	if strings.TrimSpace(cfg.SecretKey) == "" {
		p.Log.Warn("STRIPE_SECRET_KEY not set; paid checkout is disabled")
		return Unconfigured{}
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})
	backends := &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	return NewStripe(cfg.SecretKey, cfg.WebhookSecret, backends, p.Log, p.Metrics)
}
