package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	"github.com/smallbiznis/lexdraft/internal/providers/external"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const ProviderName = "stripe"

type StripeGateway struct {
	api           *client.API
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker
	log           *zap.Logger
	metrics       *metrics.Metrics
}

// NewStripe builds a gateway. A nil backends value uses the live Stripe API.
func NewStripe(secretKey, webhookSecret string, backends *stripe.Backends, log *zap.Logger, m *metrics.Metrics) *StripeGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		breaker:       external.NewBreaker("payment.stripe", log),
		log:           log.Named("payment.stripe"),
		metrics:       m,
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.ProductName),
					Description: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ClientReferenceID),
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = ulid.Make().String()
	}
	params.SetIdempotencyKey(idempotencyKey)

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return Session{}, g.fail(ctx, "create_session", err)
	}
	return toSession(out.(*stripe.CheckoutSession)), nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, ErrSessionNotFound
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.api.CheckoutSessions.Get(id, params)
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, g.fail(ctx, "retrieve_session", err)
	}
	return toSession(out.(*stripe.CheckoutSession)), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session payloads.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (Event, error) {
	if strings.TrimSpace(signature) == "" || g.webhookSecret == "" {
		return Event{}, ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.log.Warn("webhook signature rejected", zap.Error(err))
		return Event{}, ErrInvalidSignature
	}

	out := Event{ID: event.ID, Type: string(event.Type)}
	if event.Type == stripe.EventTypeCheckoutSessionCompleted {
		if event.Data == nil {
			return Event{}, ErrInvalidPayload
		}
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return Event{}, ErrInvalidPayload
		}
		session := toSession(&cs)
		out.Session = &session
	}
	return out, nil
}

func (g *StripeGateway) fail(ctx context.Context, op string, err error) error {
	reason := "error"
	if external.IsBreakerOpen(err) {
		reason = "breaker_open"
	}
	g.metrics.RecordProviderFailure(ctx, ProviderName, reason)
	g.log.Error("stripe call failed", zap.String("op", op), zap.String("reason", reason), zap.Error(err))
	return external.Wrap(ProviderName, op, err)
}

func toSession(cs *stripe.CheckoutSession) Session {
	if cs == nil {
		return Session{}
	}
	metadata := make(map[string]string, len(cs.Metadata))
	for k, v := range cs.Metadata {
		metadata[k] = v
	}
	return Session{
		ID:                cs.ID,
		URL:               cs.URL,
		PaymentStatus:     string(cs.PaymentStatus),
		ClientReferenceID: cs.ClientReferenceID,
		AmountTotal:       cs.AmountTotal,
		Metadata:          metadata,
	}
}

// Unconfigured refuses every call. It stands in when no Stripe key is set.
type Unconfigured struct{}

func (Unconfigured) CreateSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	return Session{}, external.Wrap(ProviderName, "create_session", external.ErrNotConfigured)
}

func (Unconfigured) RetrieveSession(ctx context.Context, id string) (Session, error) {
	return Session{}, external.Wrap(ProviderName, "retrieve_session", external.ErrNotConfigured)
}

func (Unconfigured) ParseWebhook(payload []byte, signature string) (Event, error) {
	return Event{}, ErrInvalidSignature
}
