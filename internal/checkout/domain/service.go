// Package domain describes checkout: turning a priced quote into a
// subscription either immediately (free) or after a hosted payment settles.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/providers/payment"
)

var (
	ErrSessionRequired      = errors.New("session_id_required")
	ErrPaymentNotCompleted  = errors.New("payment_not_completed")
	ErrSettlementInProgress = errors.New("settlement_in_progress")
)

// Settlement sources.
const (
	SourceFree    = "free"
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
)

type StartRequest struct {
	PlanType   string `json:"planType" binding:"required"`
	CouponCode string `json:"couponCode"`
	// Origin is the client base url used for the redirect targets.
	Origin string `json:"-"`
}

// StartResponse is either a completed free fulfillment or a hosted checkout
// session the client must redirect to.
type StartResponse struct {
	Free           bool          `json:"free"`
	SessionID      string        `json:"sessionId,omitempty"`
	URL            string        `json:"url,omitempty"`
	SubscriptionID *snowflake.ID `json:"subscriptionId,omitempty"`
	Letters        int           `json:"letters,omitempty"`
	Message        string        `json:"message,omitempty"`
}

type SettlementResult struct {
	Success          bool         `json:"success"`
	SubscriptionID   snowflake.ID `json:"subscriptionId"`
	Letters          int          `json:"letters"`
	Message          string       `json:"message"`
	AlreadyProcessed bool         `json:"alreadyProcessed"`
}

type Service interface {
	StartCheckout(ctx context.Context, actor identity.Actor, req StartRequest) (StartResponse, error)
	VerifyPayment(ctx context.Context, actor identity.Actor, sessionID string) (SettlementResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// Settle is idempotent on the session id.
	Settle(ctx context.Context, session payment.Session, source string) (SettlementResult, error)
}
