// Package domain holds the letter lifecycle: the letter record, its statuses
// and the transitions allowed between them.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft         Status = "draft"
	StatusGenerating    Status = "generating"
	StatusPendingReview Status = "pending_review"
	StatusUnderReview   Status = "under_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

func (s Status) String() string { return string(s) }

// ParseStatus accepts any known status, case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusDraft, StatusGenerating, StatusPendingReview, StatusUnderReview,
		StatusApproved, StatusRejected, StatusCompleted, StatusFailed:
		return status, true
	}
	return "", false
}

var transitions = map[Status][]Status{
	StatusGenerating:    {StatusPendingReview, StatusFailed},
	StatusDraft:         {StatusPendingReview},
	StatusPendingReview: {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview:   {StatusApproved, StatusRejected},
	StatusApproved:      {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Letter types accepted by Generate.
const (
	TypeDemandLetter      = "demand_letter"
	TypeCeaseDesist       = "cease_desist"
	TypeContractBreach    = "contract_breach"
	TypeEvictionNotice    = "eviction_notice"
	TypeEmploymentDispute = "employment_dispute"
	TypeConsumerComplaint = "consumer_complaint"
)

var letterTypes = map[string]struct{}{
	TypeDemandLetter:      {},
	TypeCeaseDesist:       {},
	TypeContractBreach:    {},
	TypeEvictionNotice:    {},
	TypeEmploymentDispute: {},
	TypeConsumerComplaint: {},
}

func IsValidLetterType(letterType string) bool {
	_, ok := letterTypes[strings.TrimSpace(letterType)]
	return ok
}

type Letter struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID             snowflake.ID   `gorm:"not null;index" json:"user_id"`
	Title              string         `gorm:"type:varchar(255);not null" json:"title"`
	LetterType         string         `gorm:"type:varchar(64);not null" json:"letter_type"`
	Status             Status         `gorm:"type:varchar(32);not null;index" json:"status"`
	IntakeData         datatypes.JSON `gorm:"type:json" json:"intake_data,omitempty"`
	AIDraftContent     *string        `gorm:"column:ai_draft_content;type:text" json:"ai_draft_content,omitempty"`
	AdminEditedContent *string        `gorm:"type:text" json:"admin_edited_content,omitempty"`
	FinalContent       *string        `gorm:"type:text" json:"final_content,omitempty"`
	ReviewNotes        *string        `gorm:"type:text" json:"review_notes,omitempty"`
	RejectionReason    *string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReviewedBy         *snowflake.ID  `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time     `json:"reviewed_at,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	SentAt             *time.Time     `json:"sent_at,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Letter) TableName() string { return "letters" }

// DisplayContent picks admin edits over the approved text over the AI draft.
func (l Letter) DisplayContent() string {
	for _, candidate := range []*string{l.AdminEditedContent, l.FinalContent, l.AIDraftContent} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return *candidate
		}
	}
	return ""
}

// SendableContent is the text delivered by email: final content, else the draft.
func (l Letter) SendableContent() string {
	for _, candidate := range []*string{l.FinalContent, l.AIDraftContent} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return *candidate
		}
	}
	return ""
}

// View is the API shape of a letter.
type View struct {
	Letter
	DisplayContent string `json:"display_content"`
}

func NewView(l Letter) View {
	return View{Letter: l, DisplayContent: l.DisplayContent()}
}
