package email

import (
	"context"

	"github.com/resend/resend-go/v2"
)

type ResendProvider struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *ResendProvider {
	return &ResendProvider{client: resend.NewClient(apiKey), from: from}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}
	req := &resend.SendEmailRequest{
		From:    firstNonEmpty(msg.From, p.from),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		req.ReplyTo = msg.ReplyTo
	}
	resp, err := p.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}
