// Package payment creates and verifies hosted checkout sessions.
package payment

import (
	"context"
	"errors"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	PaymentStatusPaid      = "paid"
)

var (
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
	ErrSessionNotFound  = errors.New("checkout_session_not_found")
)

type CheckoutRequest struct {
	ClientReferenceID string
	ProductName       string
	Description       string
	AmountCents       int64
	Currency          string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
	IdempotencyKey    string
}

type Session struct {
	ID                string
	URL               string
	PaymentStatus     string
	ClientReferenceID string
	AmountTotal       int64
	Metadata          map[string]string
}

func (s Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Event is a verified webhook delivery. Session is set for checkout events.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

type Gateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (Session, error)
	RetrieveSession(ctx context.Context, id string) (Session, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}
