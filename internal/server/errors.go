package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	authdomain "github.com/smallbiznis/lexdraft/internal/auth/domain"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	checkoutdomain "github.com/smallbiznis/lexdraft/internal/checkout/domain"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/identity"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
	pricingdomain "github.com/smallbiznis/lexdraft/internal/pricing/domain"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/smallbiznis/lexdraft/internal/providers/external"
	"github.com/smallbiznis/lexdraft/internal/providers/payment"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error             errorPayload `json:"error"`
	NeedsSubscription bool         `json:"needsSubscription,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, resp := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, resp)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindingError turns gin binding failures into field level validation errors.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}

	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		field := lowerFirst(fe.Field())
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Code:    fe.Tag(),
			Message: bindingMessage(field, fe),
		})
	}
	return out
}

func bindingMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "lettertype":
		return field + " is not a supported letter type"
	default:
		return "invalid value"
	}
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}}
	}

	switch {
	case errors.Is(err, subscriptiondomain.ErrNeedsSubscription):
		return http.StatusForbidden, errorResponse{
			Error: errorPayload{
				Type:    "allowance_exhausted",
				Message: "an active subscription with remaining letters is required",
			},
			NeedsSubscription: true,
		}
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorResponse{Error: errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}}
	case isForbiddenError(err):
		return http.StatusForbidden, errorResponse{Error: errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{Error: errorPayload{
			Type:    "not_found",
			Message: "not found",
		}}
	case isConflictError(err):
		return http.StatusConflict, errorResponse{Error: errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}}
	case external.IsServiceError(err):
		return http.StatusInternalServerError, errorResponse{Error: errorPayload{
			Type:    "external_service_error",
			Message: "an upstream service failed, please try again",
		}}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}}
	default:
		return http.StatusInternalServerError, errorResponse{Error: errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}}
	}
}

// classifyErrorForLog feeds the request logger. It never returns raw error text.
func classifyErrorForLog(err error) (string, string) {
	status, resp := mapError(err)
	code := resp.Error.Type
	if len(resp.Error.Errors) > 0 {
		code = resp.Error.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		var svcErr *external.ServiceError
		if errors.As(err, &svcErr) {
			code = svcErr.Provider + "." + svcErr.Op
		}
	}
	return resp.Error.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	identity.ErrInvalidRole,
	pagination.ErrInvalidPageToken,
	auditdomain.ErrInvalidAction,
	authdomain.ErrWeakPassword,
	letterdomain.ErrInvalidID,
	letterdomain.ErrInvalidLetterType,
	letterdomain.ErrIntakeRequired,
	letterdomain.ErrFinalContentRequired,
	letterdomain.ErrReasonRequired,
	letterdomain.ErrContentRequired,
	letterdomain.ErrNotSendable,
	letterdomain.ErrNotDownloadable,
	letterdomain.ErrInvalidRecipient,
	letterdomain.ErrInvalidStatus,
	pricingdomain.ErrInvalidPlan,
	pricingdomain.ErrInvalidMetadata,
	checkoutdomain.ErrSessionRequired,
	checkoutdomain.ErrPaymentNotCompleted,
	profiledomain.ErrInvalidUserID,
	profiledomain.ErrInvalidEmail,
	profiledomain.ErrLastSuperUser,
	commissiondomain.ErrInvalidID,
	commissiondomain.ErrInvalidEmployee,
	commissiondomain.ErrInvalidStatus,
	commissiondomain.ErrInvalidCouponCode,
	subscriptiondomain.ErrInvalidUserID,
	subscriptiondomain.ErrInvalidLetters,
	payment.ErrInvalidSignature,
	payment.ErrInvalidPayload,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrUnauthenticated),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidPortalKey),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authdomain.ErrAdminRequired),
		errors.Is(err, profiledomain.ErrSelfModification):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, letterdomain.ErrNotFound),
		errors.Is(err, profiledomain.ErrNotFound),
		errors.Is(err, commissiondomain.ErrNotFound),
		errors.Is(err, commissiondomain.ErrCouponNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, payment.ErrSessionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, letterdomain.ErrInvalidTransition),
		errors.Is(err, commissiondomain.ErrAlreadyPaid),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, checkoutdomain.ErrSettlementInProgress),
		errors.Is(err, subscriptiondomain.ErrDuplicateSession):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, letterdomain.ErrInvalidTransition):
		return "the letter is not in a state that allows this action"
	case errors.Is(err, commissiondomain.ErrAlreadyPaid):
		return "commission already paid"
	case errors.Is(err, authdomain.ErrUserExists):
		return "an account with this email already exists"
	case errors.Is(err, checkoutdomain.ErrSettlementInProgress):
		return "payment is being processed, retry shortly"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	switch code {
	case letterdomain.ErrFinalContentRequired.Error():
		return "finalContent"
	case letterdomain.ErrReasonRequired.Error():
		return "rejectionReason"
	case letterdomain.ErrContentRequired.Error():
		return "content"
	case letterdomain.ErrInvalidRecipient.Error():
		return "recipientEmail"
	case letterdomain.ErrIntakeRequired.Error():
		return "intakeData"
	case letterdomain.ErrNotSendable.Error(), letterdomain.ErrNotDownloadable.Error(),
		letterdomain.ErrInvalidStatus.Error():
		return "status"
	case checkoutdomain.ErrSessionRequired.Error(), checkoutdomain.ErrPaymentNotCompleted.Error():
		return "sessionId"
	case profiledomain.ErrLastSuperUser.Error():
		return "isSuperUser"
	case authdomain.ErrWeakPassword.Error():
		return "password"
	case payment.ErrInvalidSignature.Error(), payment.ErrInvalidPayload.Error():
		return "webhook"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return "request"
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case letterdomain.ErrFinalContentRequired.Error():
		return "final content is required"
	case letterdomain.ErrReasonRequired.Error():
		return "rejection reason is required"
	case letterdomain.ErrNotSendable.Error():
		return "only approved letters can be sent"
	case letterdomain.ErrNotDownloadable.Error():
		return "only approved letters can be downloaded"
	case checkoutdomain.ErrPaymentNotCompleted.Error():
		return "payment not completed"
	case profiledomain.ErrLastSuperUser.Error():
		return "cannot revoke the last super user"
	case authdomain.ErrWeakPassword.Error():
		return "password must be at least 8 characters"
	default:
		return "invalid value"
	}
}
