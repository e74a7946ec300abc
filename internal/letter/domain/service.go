package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
)

// Letter audit trail actions.
const (
	ActionCreated          = "created"
	ActionDraftCreated     = "draft_created"
	ActionGenerationFailed = "generation_failed"
	ActionAllowanceFailed  = "allowance_exhausted"
	ActionSubmitted        = "submitted"
	ActionReviewStarted    = "review_started"
	ActionDraftEdited      = "draft_edited"
	ActionApproved         = "approved"
	ActionRejected         = "rejected"
	ActionCompleted        = "completed"
	ActionSent             = "sent"
)

type GenerateRequest struct {
	LetterType string         `json:"letterType" binding:"required,lettertype"`
	IntakeData map[string]any `json:"intakeData" binding:"required"`
}

type CreateDraftRequest struct {
	LetterType string         `json:"letterType" binding:"required,lettertype"`
	Title      string         `json:"title"`
	IntakeData map[string]any `json:"intakeData"`
}

type ApproveRequest struct {
	FinalContent string `json:"finalContent"`
	ReviewNotes  string `json:"reviewNotes"`
}

type RejectRequest struct {
	RejectionReason string `json:"rejectionReason"`
	ReviewNotes     string `json:"reviewNotes"`
}

type UpdateDraftRequest struct {
	Content string `json:"content"`
}

type SendEmailRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	Message        string `json:"message"`
}

type SendEmailResult struct {
	MessageID string `json:"message_id"`
	Simulated bool   `json:"simulated"`
	Message   string `json:"message"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Letters []View `json:"letters"`
}

// Document is a rendered letter ready for download.
type Document struct {
	Filename string
	Content  []byte
}

type Service interface {
	Generate(ctx context.Context, actor identity.Actor, req GenerateRequest) (*View, error)
	CreateDraft(ctx context.Context, actor identity.Actor, req CreateDraftRequest) (*View, error)
	Submit(ctx context.Context, actor identity.Actor, id snowflake.ID) (*View, error)

	StartReview(ctx context.Context, actor identity.Actor, id snowflake.ID) (*View, error)
	UpdateDraft(ctx context.Context, actor identity.Actor, id snowflake.ID, req UpdateDraftRequest) (*View, error)
	Approve(ctx context.Context, actor identity.Actor, id snowflake.ID, req ApproveRequest) (*View, error)
	Reject(ctx context.Context, actor identity.Actor, id snowflake.ID, req RejectRequest) (*View, error)
	Complete(ctx context.Context, actor identity.Actor, id snowflake.ID) (*View, error)
	SendEmail(ctx context.Context, actor identity.Actor, id snowflake.ID, req SendEmailRequest) (SendEmailResult, error)

	Get(ctx context.Context, actor identity.Actor, id snowflake.ID) (*View, error)
	// List returns the caller's own letters.
	List(ctx context.Context, actor identity.Actor, req ListRequest) (ListResponse, error)
	// ListForReview returns every letter to admins.
	ListForReview(ctx context.Context, actor identity.Actor, req ListRequest) (ListResponse, error)
	AuditTrail(ctx context.Context, actor identity.Actor, id snowflake.ID) ([]auditdomain.LetterAuditTrail, error)
	RenderPDF(ctx context.Context, actor identity.Actor, id snowflake.ID) (*Document, error)
}
