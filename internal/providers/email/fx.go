package email

import (
	"context"
	"strings"

	"github.com/smallbiznis/lexdraft/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig picks the first provider with credentials, in the order
// Resend, SendGrid, SES, SMTP, and falls back to the simulating provider.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	emailCfg := cfg.Email
	from := strings.TrimSpace(emailCfg.From)

	var provider Provider
	switch {
	case emailCfg.ResendAPIKey != "":
		provider = NewResend(emailCfg.ResendAPIKey, from)
	case emailCfg.SendGridAPIKey != "":
		provider = NewSendGrid(emailCfg.SendGridAPIKey, from)
	case emailCfg.SESRegion != "":
		ses, err := NewSES(context.Background(), emailCfg.SESRegion, from)
		if err != nil {
			log.Warn("ses unavailable, email will be simulated", zap.Error(err))
			provider = NewNoOp(log)
		} else {
			provider = ses
		}
	case emailCfg.SMTPHost != "":
		provider = NewSMTP(SMTPConfig{
			Host:     emailCfg.SMTPHost,
			Port:     emailCfg.SMTPPort,
			Username: emailCfg.SMTPUsername,
			Password: emailCfg.SMTPPassword,
			From:     from,
		})
	default:
		provider = NewNoOp(log)
	}

	log.Info("email provider selected", zap.String("provider", provider.Name()))
	return provider
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
