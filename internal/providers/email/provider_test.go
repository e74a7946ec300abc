package email

import (
	"context"
	"strings"
	"testing"

	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNoOpSimulates(t *testing.T) {
	p := NewNoOp(zap.NewNop())
	assert.True(t, IsSimulated(p))

	id, err := p.Send(context.Background(), Message{To: "bob@example.com", Subject: "Hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "simulated-"))

	_, err = p.Send(context.Background(), Message{Subject: "no recipient"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestNewFromConfigSelection(t *testing.T) {
	cases := []struct {
		name  string
		email config.EmailConfig
		want  string
	}{
		{"nothing configured", config.EmailConfig{}, NoOpName},
		{"smtp only", config.EmailConfig{SMTPHost: "mail.local", SMTPPort: 25}, "smtp"},
		{"sendgrid beats smtp", config.EmailConfig{SendGridAPIKey: "sg", SMTPHost: "mail.local"}, "sendgrid"},
		{"resend first", config.EmailConfig{ResendAPIKey: "re", SendGridAPIKey: "sg"}, "resend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewFromConfig(config.Config{Email: tc.email}, zap.NewNop())
			assert.Equal(t, tc.want, p.Name())
		})
	}
}

func TestBuildMIMEHeaders(t *testing.T) {
	raw := string(buildMIME("Firm <noreply@example.com>", "<1@x>", Message{
		To:      "client@example.com",
		ReplyTo: "owner@example.com",
		Subject: "demand_letter - 01/02/2026",
		HTML:    "<p>Hi</p>",
	}))
	assert.Contains(t, raw, "To: client@example.com\r\n")
	assert.Contains(t, raw, "Reply-To: owner@example.com\r\n")
	assert.Contains(t, raw, "Subject: demand_letter - 01/02/2026\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>Hi</p>"))
}
