package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
)

var ErrInvalidAction = errors.New("invalid_action")

// LetterEvent describes one lifecycle transition to be appended to the trail.
type LetterEvent struct {
	LetterID    snowflake.ID
	PerformedBy *snowflake.ID
	Action      string
	OldStatus   string
	NewStatus   string
	Notes       string
}

type SecurityEvent struct {
	UserID  *snowflake.ID
	Action  string
	Details map[string]any
}

type ListSecurityLogsRequest struct {
	pagination.Pagination
	UserID string
	Action string
}

type ListSecurityLogsResponse struct {
	pagination.PageInfo
	Logs []SecurityAuditLog `json:"logs"`
}

type Service interface {
	RecordLetterEvent(ctx context.Context, event LetterEvent) error
	LetterTrail(ctx context.Context, letterID snowflake.ID) ([]LetterAuditTrail, error)
	RecordSecurityEvent(ctx context.Context, event SecurityEvent) error
	ListSecurityLogs(ctx context.Context, req ListSecurityLogsRequest) (ListSecurityLogsResponse, error)
}
