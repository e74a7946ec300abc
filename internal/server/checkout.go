package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/lexdraft/internal/checkout/domain"
	"github.com/smallbiznis/lexdraft/internal/providers/payment"
	"go.uber.org/zap"
)

// maxWebhookBody caps the signed payload read from the payment provider.
const maxWebhookBody = 1 << 16

type verifyPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.pricingSvc.Plans(c.Request.Context())})
}

func (s *Server) StartCheckout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req checkoutdomain.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.Origin = requestOrigin(c)

	resp, err := s.checkoutSvc.StartCheckout(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	result, err := s.checkoutSvc.VerifyPayment(c.Request.Context(), actor, strings.TrimSpace(req.SessionID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	subs, err := s.subscriptionSvc.ListByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subs})
}

func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, payment.ErrInvalidPayload)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if strings.TrimSpace(signature) == "" {
		AbortWithError(c, payment.ErrInvalidSignature)
		return
	}

	if err := s.checkoutSvc.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		s.log.Warn("payment webhook rejected", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
