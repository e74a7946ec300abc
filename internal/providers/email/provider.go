// Package email delivers letter emails through the first configured provider
// (Resend, SendGrid, SES, SMTP) and simulates delivery when none is set.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const NoOpName = "noop"

var ErrNoRecipient = errors.New("email_recipient_required")

type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Provider sends one message and returns the provider's message id.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// NoOpProvider logs instead of sending.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoOpProvider{log: log.Named("email.noop")}
}

func (p *NoOpProvider) Name() string { return NoOpName }

func (p *NoOpProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}
	id := fmt.Sprintf("simulated-%d", time.Now().UnixNano())
	p.log.Info("email send simulated",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return id, nil
}

// IsSimulated reports whether p only pretends to deliver.
func IsSimulated(p Provider) bool {
	return p == nil || p.Name() == NoOpName
}
