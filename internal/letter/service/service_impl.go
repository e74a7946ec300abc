package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/letter/domain"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	"github.com/smallbiznis/lexdraft/internal/providers/ai"
	"github.com/smallbiznis/lexdraft/internal/providers/email"
	"github.com/smallbiznis/lexdraft/internal/providers/external"
	"github.com/smallbiznis/lexdraft/internal/providers/pdf"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"github.com/smallbiznis/lexdraft/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Authz     authorization.Service
	SubSvc    subscriptiondomain.Service
	AuditSvc  auditdomain.Service
	Generator ai.Generator
	Email     email.Provider
	PDF       pdf.Renderer
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	authz     authorization.Service
	subSvc    subscriptiondomain.Service
	auditSvc  auditdomain.Service
	generator ai.Generator
	email     email.Provider
	pdf       pdf.Renderer
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("letter.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		authz:     p.Authz,
		subSvc:    p.SubSvc,
		auditSvc:  p.AuditSvc,
		generator: p.Generator,
		email:     p.Email,
		pdf:       p.PDF,
		metrics:   p.Metrics,
	}
}

// Generate drafts a letter with the text generator. The first letter a user
// ever submits is free; every later one needs a credit, which is taken only
// once a draft exists.
func (s *Service) Generate(ctx context.Context, actor identity.Actor, req domain.GenerateRequest) (*domain.View, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapGenerateLetter); err != nil {
		return nil, err
	}
	letterType := strings.TrimSpace(req.LetterType)
	if !domain.IsValidLetterType(letterType) {
		return nil, domain.ErrInvalidLetterType
	}
	if len(req.IntakeData) == 0 {
		return nil, domain.ErrIntakeRequired
	}
	intake, err := json.Marshal(req.IntakeData)
	if err != nil {
		return nil, domain.ErrIntakeRequired
	}

	now := s.clock.Now()
	letter := &domain.Letter{
		ID:         s.genID.Generate(),
		UserID:     actor.UserID,
		Title:      defaultTitle(letterType, now),
		LetterType: letterType,
		Status:     domain.StatusGenerating,
		IntakeData: datatypes.JSON(intake),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var freeTrial bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.subSvc.ClaimFreeTrial(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		freeTrial = claimed
		if !claimed {
			ok, err := s.subSvc.HasCredits(ctx, tx, actor.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return subscriptiondomain.ErrNeedsSubscription
			}
		}
		return s.repo.Insert(ctx, tx, letter)
	})
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrNeedsSubscription) {
			s.metrics.RecordLetterGenerated(ctx, letterType, "needs_subscription")
		}
		return nil, err
	}

	draft, err := s.generator.Generate(ctx, systemPrompt, buildUserPrompt(letterType, req.IntakeData))
	if err == nil && strings.TrimSpace(draft) == "" {
		err = ai.ErrEmptyCompletion
	}
	if err != nil {
		s.log.Error("letter generation failed",
			zap.String("letter_id", letter.ID.String()),
			zap.String("letter_type", letterType),
			zap.Error(err),
		)
		s.markFailed(ctx, actor, letter, domain.ActionGenerationFailed, "Letter generation failed")
		s.metrics.RecordLetterGenerated(ctx, letterType, "failed")
		return nil, external.Wrap(ai.ProviderName, "generate", err)
	}

	exhausted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !freeTrial {
			ok, err := s.subSvc.DeductLetterAllowance(ctx, tx, actor.UserID)
			if err != nil {
				return err
			}
			if !ok {
				exhausted = true
				return nil
			}
		}
		return s.move(ctx, tx, letter, domain.StatusPendingReview, map[string]any{
			"ai_draft_content": draft,
		})
	})
	if err != nil {
		s.markFailed(ctx, actor, letter, domain.ActionGenerationFailed, "Letter could not be saved")
		return nil, err
	}
	if exhausted {
		s.markFailed(ctx, actor, letter, domain.ActionAllowanceFailed, "No letter allowance remaining")
		s.metrics.RecordLetterGenerated(ctx, letterType, "needs_subscription")
		return nil, subscriptiondomain.ErrNeedsSubscription
	}

	s.record(ctx, actor, letter.ID, domain.ActionCreated, "", domain.StatusPendingReview, "Letter generated successfully")
	s.metrics.RecordLetterGenerated(ctx, letterType, "success")
	s.log.Info("letter generated",
		zap.String("letter_id", letter.ID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.Bool("free_trial", freeTrial),
	)
	return s.view(ctx, letter.ID)
}

// CreateDraft stores a letter without generating text. Nothing is charged
// until the draft is submitted.
func (s *Service) CreateDraft(ctx context.Context, actor identity.Actor, req domain.CreateDraftRequest) (*domain.View, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapGenerateLetter); err != nil {
		return nil, err
	}
	letterType := strings.TrimSpace(req.LetterType)
	if !domain.IsValidLetterType(letterType) {
		return nil, domain.ErrInvalidLetterType
	}

	now := s.clock.Now()
	letter := &domain.Letter{
		ID:         s.genID.Generate(),
		UserID:     actor.UserID,
		Title:      strings.TrimSpace(req.Title),
		LetterType: letterType,
		Status:     domain.StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if letter.Title == "" {
		letter.Title = defaultTitle(letterType, now)
	}
	if len(req.IntakeData) > 0 {
		intake, err := json.Marshal(req.IntakeData)
		if err != nil {
			return nil, domain.ErrIntakeRequired
		}
		letter.IntakeData = datatypes.JSON(intake)
	}

	if err := s.repo.Insert(ctx, s.db, letter); err != nil {
		return nil, err
	}
	s.record(ctx, actor, letter.ID, domain.ActionDraftCreated, "", domain.StatusDraft, "")
	return s.view(ctx, letter.ID)
}

// Submit sends a draft to review, claiming the free trial or one credit.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.View, error) {
	letter, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if letter.Status != domain.StatusDraft {
		return nil, domain.ErrInvalidTransition
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.subSvc.ClaimFreeTrial(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		if !claimed {
			ok, err := s.subSvc.DeductLetterAllowance(ctx, tx, actor.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return subscriptiondomain.ErrNeedsSubscription
			}
		}
		return s.move(ctx, tx, letter, domain.StatusPendingReview, nil)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, letter.ID, domain.ActionSubmitted, domain.StatusDraft, domain.StatusPendingReview, "")
	return s.view(ctx, letter.ID)
}

func (s *Service) StartReview(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.View, error) {
	letter, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.move(ctx, s.db, letter, domain.StatusUnderReview, nil); err != nil {
		return nil, err
	}
	s.record(ctx, actor, letter.ID, domain.ActionReviewStarted, domain.StatusPendingReview, domain.StatusUnderReview, "")
	return s.view(ctx, letter.ID)
}

// UpdateDraft stores the reviewer's working copy without changing status.
func (s *Service) UpdateDraft(ctx context.Context, actor identity.Actor, id snowflake.ID, req domain.UpdateDraftRequest) (*domain.View, error) {
	letter, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domain.ErrContentRequired
	}
	if letter.Status != domain.StatusPendingReview && letter.Status != domain.StatusUnderReview {
		return nil, domain.ErrInvalidTransition
	}

	ok, err := s.repo.UpdateFromStatus(ctx, s.db, letter.ID, []domain.Status{letter.Status}, map[string]any{
		"admin_edited_content": content,
		"updated_at":           s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	s.record(ctx, actor, letter.ID, domain.ActionDraftEdited, letter.Status, letter.Status, "")
	return s.view(ctx, letter.ID)
}

func (s *Service) Approve(ctx context.Context, actor identity.Actor, id snowflake.ID, req domain.ApproveRequest) (*domain.View, error) {
	letter, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	finalContent := strings.TrimSpace(req.FinalContent)
	if finalContent == "" {
		return nil, domain.ErrFinalContentRequired
	}

	now := s.clock.Now()
	previous := letter.Status
	err = s.move(ctx, s.db, letter, domain.StatusApproved, map[string]any{
		"final_content": finalContent,
		"review_notes":  optional(req.ReviewNotes),
		"reviewed_by":   actor.UserID,
		"reviewed_at":   now,
		"approved_at":   now,
	})
	if err != nil {
		return nil, err
	}

	notes := strings.TrimSpace(req.ReviewNotes)
	if notes == "" {
		notes = "Letter approved by admin"
	}
	s.record(ctx, actor, letter.ID, domain.ActionApproved, previous, domain.StatusApproved, notes)
	return s.view(ctx, letter.ID)
}

func (s *Service) Reject(ctx context.Context, actor identity.Actor, id snowflake.ID, req domain.RejectRequest) (*domain.View, error) {
	letter, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	previous := letter.Status
	err = s.move(ctx, s.db, letter, domain.StatusRejected, map[string]any{
		"rejection_reason": reason,
		"review_notes":     optional(req.ReviewNotes),
		"reviewed_by":      actor.UserID,
		"reviewed_at":      s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, letter.ID, domain.ActionRejected, previous, domain.StatusRejected, "Rejection reason: "+reason)
	return s.view(ctx, letter.ID)
}

func (s *Service) Complete(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.View, error) {
	letter, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	err = s.move(ctx, s.db, letter, domain.StatusCompleted, map[string]any{
		"completed_at": s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, letter.ID, domain.ActionCompleted, domain.StatusApproved, domain.StatusCompleted, "")
	return s.view(ctx, letter.ID)
}

// SendEmail delivers an approved letter to a recipient chosen by the owner.
// Without a configured provider the delivery is simulated.
func (s *Service) SendEmail(ctx context.Context, actor identity.Actor, id snowflake.ID, req domain.SendEmailRequest) (domain.SendEmailResult, error) {
	letter, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return domain.SendEmailResult{}, err
	}
	recipient := strings.TrimSpace(req.RecipientEmail)
	if recipient == "" {
		return domain.SendEmailResult{}, domain.ErrInvalidRecipient
	}
	if addr, err := mail.ParseAddress(recipient); err != nil || addr.Address != recipient {
		return domain.SendEmailResult{}, domain.ErrInvalidRecipient
	}
	if letter.Status != domain.StatusApproved && letter.Status != domain.StatusCompleted {
		return domain.SendEmailResult{}, domain.ErrNotSendable
	}
	content := letter.SendableContent()
	if content == "" {
		return domain.SendEmailResult{}, domain.ErrNotSendable
	}

	body, err := renderLetterEmail(content, req.Message)
	if err != nil {
		return domain.SendEmailResult{}, err
	}

	providerName := email.NoOpName
	if s.email != nil {
		providerName = s.email.Name()
	}
	simulated := email.IsSimulated(s.email)

	var messageID string
	if s.email != nil {
		messageID, err = s.email.Send(ctx, email.Message{
			To:      recipient,
			ReplyTo: actor.Email,
			Subject: letter.Title,
			HTML:    body,
		})
	}
	if err != nil {
		s.metrics.RecordEmail(ctx, providerName, "failed")
		s.log.Error("letter email failed",
			zap.String("letter_id", letter.ID.String()),
			zap.String("provider", providerName),
			zap.Error(err),
		)
		return domain.SendEmailResult{}, external.Wrap(providerName, "send", err)
	}

	now := s.clock.Now()
	previous := letter.Status
	if letter.Status == domain.StatusApproved {
		err = s.move(ctx, s.db, letter, domain.StatusCompleted, map[string]any{
			"sent_at":      now,
			"completed_at": now,
		})
	} else {
		_, err = s.repo.UpdateFromStatus(ctx, s.db, letter.ID, []domain.Status{letter.Status}, map[string]any{
			"sent_at":    now,
			"updated_at": now,
		})
	}
	if err != nil {
		s.log.Warn("letter sent but status not updated", zap.String("letter_id", letter.ID.String()), zap.Error(err))
	}

	outcome := "sent"
	message := "Letter sent successfully"
	if simulated {
		outcome = "simulated"
		message = "Email simulated: no email provider is configured"
	}
	s.metrics.RecordEmail(ctx, providerName, outcome)
	s.record(ctx, actor, letter.ID, domain.ActionSent, previous, domain.StatusCompleted, "Letter sent to "+recipient)

	return domain.SendEmailResult{MessageID: messageID, Simulated: simulated, Message: message}, nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.View, error) {
	letter, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	view := domain.NewView(*letter)
	return &view, nil
}

func (s *Service) List(ctx context.Context, actor identity.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if !actor.Valid() {
		return domain.ListResponse{}, authorization.ErrUnauthenticated
	}
	userID := actor.UserID
	return s.list(ctx, &userID, req)
}

func (s *Service) ListForReview(ctx context.Context, actor identity.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapReviewLetter); err != nil {
		return domain.ListResponse{}, err
	}
	return s.list(ctx, nil, req)
}

func (s *Service) AuditTrail(ctx context.Context, actor identity.Actor, id snowflake.ID) ([]auditdomain.LetterAuditTrail, error) {
	letter, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.auditSvc.LetterTrail(ctx, letter.ID)
}

func (s *Service) RenderPDF(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.Document, error) {
	letter, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if letter.Status != domain.StatusApproved && letter.Status != domain.StatusCompleted {
		return nil, domain.ErrNotDownloadable
	}

	doc := pdf.LetterDocument{
		Title:     letter.Title,
		Date:      letter.CreatedAt.Format("January 2, 2006"),
		Reference: "Ref. " + letter.ID.String(),
		Content:   letter.DisplayContent(),
	}
	out, err := s.pdf.RenderLetter(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &domain.Document{Filename: doc.Filename(), Content: out}, nil
}

func (s *Service) list(ctx context.Context, userID *snowflake.ID, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{UserID: userID, Limit: req.Size()}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Statuses = []domain.Status{status}
	}

	cursor, err := pagination.ParseToken(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	filter.Cursor = cursor

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	page, info := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *domain.Letter) string {
		return pagination.TokenFor(item.ID, item.CreatedAt)
	})

	letters := make([]domain.View, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		letters = append(letters, domain.NewView(*item))
	}
	return domain.ListResponse{PageInfo: info, Letters: letters}, nil
}

// move applies a lifecycle transition as a compare-and-set on the letter's
// current status.
func (s *Service) move(ctx context.Context, db *gorm.DB, letter *domain.Letter, to domain.Status, fields map[string]any) error {
	if !domain.CanTransition(letter.Status, to) {
		return domain.ErrInvalidTransition
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": s.clock.Now(),
	}
	for key, value := range fields {
		updates[key] = value
	}

	ok, err := s.repo.UpdateFromStatus(ctx, db, letter.ID, []domain.Status{letter.Status}, updates)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	s.metrics.RecordLetterTransition(ctx, letter.Status.String(), to.String())
	return nil
}

// markFailed runs detached from ctx so a canceled request still leaves the
// letter in a terminal state.
func (s *Service) markFailed(ctx context.Context, actor identity.Actor, letter *domain.Letter, action, notes string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.move(ctx, s.db, letter, domain.StatusFailed, nil); err != nil {
		s.log.Error("failed to mark letter failed", zap.String("letter_id", letter.ID.String()), zap.Error(err))
		return
	}
	s.record(ctx, actor, letter.ID, action, domain.StatusGenerating, domain.StatusFailed, notes)
}

func (s *Service) record(ctx context.Context, actor identity.Actor, letterID snowflake.ID, action string, from, to domain.Status, notes string) {
	var performedBy *snowflake.ID
	if actor.UserID != 0 {
		id := actor.UserID
		performedBy = &id
	}
	// RecordLetterEvent logs its own failures.
	_ = s.auditSvc.RecordLetterEvent(ctx, auditdomain.LetterEvent{
		LetterID:    letterID,
		PerformedBy: performedBy,
		Action:      action,
		OldStatus:   from.String(),
		NewStatus:   to.String(),
		Notes:       notes,
	})
}

func (s *Service) view(ctx context.Context, id snowflake.ID) (*domain.View, error) {
	letter, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := domain.NewView(*letter)
	return &view, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.Letter, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	letter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if letter == nil {
		return nil, domain.ErrNotFound
	}
	return letter, nil
}

// loadOwned hides letters of other users behind ErrNotFound.
func (s *Service) loadOwned(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.Letter, error) {
	if !actor.Valid() {
		return nil, authorization.ErrUnauthenticated
	}
	letter, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if letter.UserID != actor.UserID {
		return nil, domain.ErrNotFound
	}
	return letter, nil
}

func (s *Service) loadForReview(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.Letter, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapReviewLetter); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// loadVisible lets admins reach any letter and everyone else their own.
func (s *Service) loadVisible(ctx context.Context, actor identity.Actor, id snowflake.ID) (*domain.Letter, error) {
	if actor.IsAdmin() {
		return s.loadForReview(ctx, actor, id)
	}
	return s.loadOwned(ctx, actor, id)
}

func defaultTitle(letterType string, at time.Time) string {
	return fmt.Sprintf("%s - %s", letterType, at.Format("01/02/2006"))
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
