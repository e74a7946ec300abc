package email

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridProvider struct {
	client *sendgrid.Client
	from   string
}

func NewSendGrid(apiKey, from string) *SendGridProvider {
	return &SendGridProvider{client: sendgrid.NewSendClient(apiKey), from: from}
}

func (p *SendGridProvider) Name() string { return "sendgrid" }

func (p *SendGridProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	fromName, fromAddr := splitAddress(firstNonEmpty(msg.From, p.from))
	m := sgmail.NewSingleEmail(
		sgmail.NewEmail(fromName, fromAddr),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		"",
		msg.HTML,
	)
	if msg.ReplyTo != "" {
		m.SetReplyTo(sgmail.NewEmail("", msg.ReplyTo))
	}

	// letters are legal correspondence; keep tracking pixels and link rewriting out
	tracking := sgmail.NewTrackingSettings()
	clickTracking := sgmail.NewClickTrackingSetting()
	clickTracking.SetEnable(false)
	tracking.SetClickTracking(clickTracking)
	openTracking := sgmail.NewOpenTrackingSetting()
	openTracking.SetEnable(false)
	tracking.SetOpenTracking(openTracking)
	m.SetTrackingSettings(tracking)

	resp, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid status %d", resp.StatusCode)
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

func splitAddress(raw string) (string, string) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", raw
	}
	return addr.Name, addr.Address
}
