package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/clock"
	obscontext "github.com/smallbiznis/lexdraft/internal/observability/context"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// RecordLetterEvent appends a trail row. Failures are logged and returned; the
// callers treat the error as non-fatal because the status update already happened.
func (s *Service) RecordLetterEvent(ctx context.Context, event auditdomain.LetterEvent) error {
	action := strings.TrimSpace(event.Action)
	if action == "" || event.LetterID == 0 {
		return auditdomain.ErrInvalidAction
	}

	entry := auditdomain.LetterAuditTrail{
		ID:          s.genID.Generate(),
		LetterID:    event.LetterID,
		PerformedBy: event.PerformedBy,
		Action:      action,
		OldStatus:   optional(event.OldStatus),
		NewStatus:   optional(event.NewStatus),
		Notes:       optional(event.Notes),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.InsertLetterTrail(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write letter audit trail",
			zap.String("action", action),
			zap.String("letter_id", event.LetterID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) LetterTrail(ctx context.Context, letterID snowflake.ID) ([]auditdomain.LetterAuditTrail, error) {
	items, err := s.repo.ListLetterTrail(ctx, s.db, letterID)
	if err != nil {
		return nil, err
	}
	trail := make([]auditdomain.LetterAuditTrail, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		trail = append(trail, *item)
	}
	return trail, nil
}

func (s *Service) RecordSecurityEvent(ctx context.Context, event auditdomain.SecurityEvent) error {
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	payload := map[string]any{}
	for key, value := range event.Details {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := auditdomain.SecurityAuditLog{
		ID:        s.genID.Generate(),
		UserID:    event.UserID,
		Action:    action,
		Details:   datatypes.JSONMap(payload),
		IPAddress: optional(obscontext.ClientIPFromContext(ctx)),
		UserAgent: optional(obscontext.UserAgentFromContext(ctx)),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertSecurityLog(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write security audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListSecurityLogs(ctx context.Context, req auditdomain.ListSecurityLogsRequest) (auditdomain.ListSecurityLogsResponse, error) {
	cursor, err := pagination.ParseToken(req.PageToken)
	if err != nil {
		return auditdomain.ListSecurityLogsResponse{}, err
	}

	filter := auditdomain.SecurityLogFilter{
		Action: req.Action,
		Cursor: cursor,
		Limit:  req.Size(),
	}
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		userID, err := snowflake.ParseString(raw)
		if err != nil || userID == 0 {
			return auditdomain.ListSecurityLogsResponse{}, auditdomain.ErrInvalidAction
		}
		filter.UserID = &userID
	}

	items, err := s.repo.ListSecurityLogs(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListSecurityLogsResponse{}, err
	}

	page, info := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *auditdomain.SecurityAuditLog) string {
		return pagination.TokenFor(item.ID, item.CreatedAt)
	})

	logs := make([]auditdomain.SecurityAuditLog, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return auditdomain.ListSecurityLogsResponse{PageInfo: info, Logs: logs}, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
