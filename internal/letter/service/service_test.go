package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/letter/domain"
	"github.com/smallbiznis/lexdraft/internal/letter/repository"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/smallbiznis/lexdraft/internal/providers/email"
	"github.com/smallbiznis/lexdraft/internal/providers/external"
	"github.com/smallbiznis/lexdraft/internal/providers/pdf"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/lexdraft/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/lexdraft/internal/subscription/service"
	"github.com/smallbiznis/lexdraft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
	// during runs while the completion is in flight.
	during func()
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, userPrompt)
	if g.during != nil {
		g.during()
	}
	return g.out, g.err
}

type recordingPDF struct {
	pdf.Renderer
	docs []pdf.LetterDocument
}

func (r *recordingPDF) RenderLetter(ctx context.Context, doc pdf.LetterDocument) ([]byte, error) {
	r.docs = append(r.docs, doc)
	return r.Renderer.RenderLetter(ctx, doc)
}

type fakeEmail struct {
	sent []email.Message
	err  error
}

func (p *fakeEmail) Name() string { return "fake" }

func (p *fakeEmail) Send(ctx context.Context, msg email.Message) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, msg)
	return "msg-1", nil
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	generator *fakeGenerator
	pdf       *recordingPDF
	svc       domain.Service
}

func newFixture(t *testing.T, provider email.Provider) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock()
	log := zaptest.NewLogger(t)

	subSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Config: config.Config{},
		Repo:   subscriptionrepository.Provide(),
	})
	if provider == nil {
		provider = email.NewNoOp(log)
	}
	generator := &fakeGenerator{out: "Dear Acme Corp,\n\nPlease pay the outstanding invoice.\n\nSincerely,\nJane"}
	renderer := &recordingPDF{Renderer: pdf.New()}

	svc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Authz:     testutil.NewAuthz(t, db),
		SubSvc:    subSvc,
		AuditSvc:  testutil.NewAuditService(db, node, clk),
		Generator: generator,
		Email:     provider,
		PDF:       renderer,
	})
	return fixture{db: db, node: node, clock: clk, generator: generator, pdf: renderer, svc: svc}
}

func (f fixture) subscriber(t *testing.T, email string, opts ...testutil.ProfileOption) identity.Actor {
	t.Helper()
	return testutil.ActorFor(testutil.CreateProfile(t, f.db, f.node, email, opts...))
}

func (f fixture) admin(t *testing.T) identity.Actor {
	t.Helper()
	return testutil.ActorFor(testutil.CreateProfile(t, f.db, f.node, "admin@example.com", testutil.WithRole(identity.RoleAdmin)))
}

func (f fixture) generate(t *testing.T, actor identity.Actor) *domain.View {
	t.Helper()
	view, err := f.svc.Generate(context.Background(), actor, domain.GenerateRequest{
		LetterType: domain.TypeDemandLetter,
		IntakeData: map[string]any{
			"senderName":       "Jane Doe",
			"recipientName":    "Acme Corp",
			"issueDescription": "Unpaid invoice",
			"amountDemanded":   1500,
		},
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return view
}

func (f fixture) credits(t *testing.T, id snowflake.ID) int {
	t.Helper()
	var sub subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&sub, "id = ?", id).Error)
	return sub.CreditsRemaining
}

func (f fixture) letterCount(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Letter{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func (f fixture) trail(t *testing.T, actor identity.Actor, id snowflake.ID) []string {
	t.Helper()
	entries, err := f.svc.AuditTrail(context.Background(), actor, id)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func TestGenerateFirstLetterIsFree(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	actor := f.subscriber(t, "jane@example.com")

	view := f.generate(t, actor)
	assert.Equal(t, domain.StatusPendingReview, view.Status)
	assert.Equal(t, "demand_letter - 03/15/2024", view.Title)
	require.NotNil(t, view.AIDraftContent)
	assert.Contains(t, *view.AIDraftContent, "Acme Corp")
	assert.Equal(t, *view.AIDraftContent, view.DisplayContent)

	var profile profiledomain.Profile
	require.NoError(t, f.db.First(&profile, "id = ?", actor.UserID).Error)
	assert.True(t, profile.FreeTrialUsed)
	assert.Equal(t, []string{domain.ActionCreated}, f.trail(t, actor, view.ID))

	_, err := f.svc.Generate(ctx, actor, domain.GenerateRequest{
		LetterType: domain.TypeCeaseDesist,
		IntakeData: map[string]any{"senderName": "Jane Doe"},
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNeedsSubscription)
	assert.Equal(t, int64(1), f.letterCount(t, actor.UserID))
}

func TestGenerateDeductsCredit(t *testing.T) {
	f := newFixture(t, nil)
	actor := f.subscriber(t, "jane@example.com", testutil.WithFreeTrialUsed())
	sub := testutil.CreateSubscription(t, f.db, f.node, actor.UserID, 2)

	f.generate(t, actor)
	assert.Equal(t, 1, f.credits(t, sub.ID))

	f.generate(t, actor)
	assert.Equal(t, 0, f.credits(t, sub.ID))

	_, err := f.svc.Generate(context.Background(), actor, domain.GenerateRequest{
		LetterType: domain.TypeDemandLetter,
		IntakeData: map[string]any{"senderName": "Jane Doe"},
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNeedsSubscription)
	assert.Equal(t, int64(2), f.letterCount(t, actor.UserID))
}

func TestGenerateFailureMarksLetterFailed(t *testing.T) {
	f := newFixture(t, nil)
	actor := f.subscriber(t, "jane@example.com", testutil.WithFreeTrialUsed())
	sub := testutil.CreateSubscription(t, f.db, f.node, actor.UserID, 1)
	f.generator.err = errors.New("upstream timeout")

	_, err := f.svc.Generate(context.Background(), actor, domain.GenerateRequest{
		LetterType: domain.TypeDemandLetter,
		IntakeData: map[string]any{"senderName": "Jane Doe"},
	})
	require.Error(t, err)
	assert.True(t, external.IsServiceError(err))

	var letter domain.Letter
	require.NoError(t, f.db.First(&letter, "user_id = ?", actor.UserID).Error)
	assert.Equal(t, domain.StatusFailed, letter.Status)
	assert.Nil(t, letter.AIDraftContent)
	assert.Equal(t, []string{domain.ActionGenerationFailed}, f.trail(t, actor, letter.ID))
	assert.Equal(t, 1, f.credits(t, sub.ID), "failed generation keeps the credit")
}

func TestGenerateEmptyCompletionFails(t *testing.T) {
	f := newFixture(t, nil)
	actor := f.subscriber(t, "jane@example.com")
	f.generator.out = "   "

	_, err := f.svc.Generate(context.Background(), actor, domain.GenerateRequest{
		LetterType: domain.TypeDemandLetter,
		IntakeData: map[string]any{"senderName": "Jane Doe"},
	})
	assert.True(t, external.IsServiceError(err))

	var profile profiledomain.Profile
	require.NoError(t, f.db.First(&profile, "id = ?", actor.UserID).Error)
	assert.True(t, profile.FreeTrialUsed, "the trial is consumed by the attempt")
}

func TestGenerateBuildsPromptFromIntake(t *testing.T) {
	f := newFixture(t, nil)
	actor := f.subscriber(t, "jane@example.com")
	f.generate(t, actor)

	require.Len(t, f.generator.prompts, 1)
	prompt := f.generator.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "Draft a professional demand_letter letter"))
	assert.Contains(t, prompt, "senderName: Jane Doe")
	assert.Contains(t, prompt, "Amount: $1500")
	assert.NotContains(t, prompt, "senderAddress")
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	actor := f.subscriber(t, "jane@example.com")

	_, err := f.svc.Generate(ctx, actor, domain.GenerateRequest{LetterType: "poem", IntakeData: map[string]any{"a": "b"}})
	assert.ErrorIs(t, err, domain.ErrInvalidLetterType)

	_, err = f.svc.Generate(ctx, actor, domain.GenerateRequest{LetterType: domain.TypeDemandLetter})
	assert.ErrorIs(t, err, domain.ErrIntakeRequired)

	_, err = f.svc.Generate(ctx, f.admin(t), domain.GenerateRequest{LetterType: domain.TypeDemandLetter, IntakeData: map[string]any{"a": "b"}})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.Generate(ctx, identity.Actor{}, domain.GenerateRequest{LetterType: domain.TypeDemandLetter, IntakeData: map[string]any{"a": "b"}})
	assert.ErrorIs(t, err, authorization.ErrUnauthenticated)

	assert.Empty(t, f.generator.prompts)
}

func TestReviewAndApprove(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	admin := f.admin(t)
	letter := f.generate(t, owner)

	_, err := f.svc.StartReview(ctx, owner, letter.ID)
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	view, err := f.svc.StartReview(ctx, admin, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, view.Status)
	f.clock.Advance(time.Minute)

	_, err = f.svc.UpdateDraft(ctx, admin, letter.ID, domain.UpdateDraftRequest{Content: "  "})
	assert.ErrorIs(t, err, domain.ErrContentRequired)

	view, err = f.svc.UpdateDraft(ctx, admin, letter.ID, domain.UpdateDraftRequest{Content: "Edited text"})
	require.NoError(t, err)
	assert.Equal(t, "Edited text", view.DisplayContent)
	assert.Equal(t, domain.StatusUnderReview, view.Status)
	f.clock.Advance(time.Minute)

	_, err = f.svc.Approve(ctx, admin, letter.ID, domain.ApproveRequest{})
	assert.ErrorIs(t, err, domain.ErrFinalContentRequired)

	view, err = f.svc.Approve(ctx, admin, letter.ID, domain.ApproveRequest{FinalContent: "Final text"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status)
	require.NotNil(t, view.ReviewedBy)
	assert.Equal(t, admin.UserID, *view.ReviewedBy)
	assert.NotNil(t, view.ApprovedAt)
	assert.Nil(t, view.ReviewNotes)
	f.clock.Advance(time.Minute)

	_, err = f.svc.Approve(ctx, admin, letter.ID, domain.ApproveRequest{FinalContent: "Again"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, []string{
		domain.ActionCreated,
		domain.ActionReviewStarted,
		domain.ActionDraftEdited,
		domain.ActionApproved,
	}, f.trail(t, admin, letter.ID))
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	admin := f.admin(t)
	letter := f.generate(t, owner)

	_, err := f.svc.Reject(ctx, admin, letter.ID, domain.RejectRequest{})
	assert.ErrorIs(t, err, domain.ErrReasonRequired)

	view, err := f.svc.Reject(ctx, admin, letter.ID, domain.RejectRequest{RejectionReason: "Missing facts", ReviewNotes: "see notes"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, view.Status)
	require.NotNil(t, view.RejectionReason)
	assert.Equal(t, "Missing facts", *view.RejectionReason)

	_, err = f.svc.Complete(ctx, owner, letter.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	entries, err := f.svc.AuditTrail(ctx, owner, letter.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.NotNil(t, last.Notes)
	assert.Equal(t, "Rejection reason: Missing facts", *last.Notes)
}

func TestConcurrentApproveSucceedsOnce(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.subscriber(t, "jane@example.com")
	admin := f.admin(t)
	letter := f.generate(t, owner)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), admin, letter.ID, domain.ApproveRequest{FinalContent: "Final"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
}

func TestLettersAreHiddenFromOtherUsers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	stranger := f.subscriber(t, "bob@example.com")
	letter := f.generate(t, owner)

	_, err := f.svc.Get(ctx, stranger, letter.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.AuditTrail(ctx, stranger, letter.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(ctx, owner, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	view, err := f.svc.Get(ctx, f.admin(t), letter.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.UserID, view.UserID)
}

func TestDraftSubmit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	actor := f.subscriber(t, "jane@example.com")

	first, err := f.svc.CreateDraft(ctx, actor, domain.CreateDraftRequest{LetterType: domain.TypeCeaseDesist})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.Equal(t, "cease_desist - 03/15/2024", first.Title)

	second, err := f.svc.CreateDraft(ctx, actor, domain.CreateDraftRequest{LetterType: domain.TypeDemandLetter, Title: "Landlord"})
	require.NoError(t, err)
	assert.Equal(t, "Landlord", second.Title)

	view, err := f.svc.Submit(ctx, actor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, view.Status)

	_, err = f.svc.Submit(ctx, actor, second.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNeedsSubscription)

	view, err = f.svc.Get(ctx, actor, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, view.Status)

	_, err = f.svc.Submit(ctx, actor, first.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func (f fixture) approved(t *testing.T, owner identity.Actor) *domain.View {
	t.Helper()
	return f.approve(t, f.generate(t, owner).ID)
}

func (f fixture) approve(t *testing.T, id snowflake.ID) *domain.View {
	t.Helper()
	admin := testutil.ActorFor(testutil.CreateProfile(t, f.db, f.node, "reviewer-"+id.String()+"@example.com", testutil.WithRole(identity.RoleAdmin)))
	view, err := f.svc.Approve(context.Background(), admin, id, domain.ApproveRequest{FinalContent: "Dear Acme,\n\nPay now.\n\nJane"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return view
}

func TestSendEmailSimulatedCompletesLetter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")

	pending := f.generate(t, owner)
	_, err := f.svc.SendEmail(ctx, owner, pending.ID, domain.SendEmailRequest{RecipientEmail: "acme@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotSendable)

	letter := f.approve(t, pending.ID)
	_, err = f.svc.SendEmail(ctx, owner, letter.ID, domain.SendEmailRequest{RecipientEmail: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	result, err := f.svc.SendEmail(ctx, owner, letter.ID, domain.SendEmailRequest{RecipientEmail: "acme@example.com"})
	require.NoError(t, err)
	assert.True(t, result.Simulated)

	view, err := f.svc.Get(ctx, owner, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	assert.NotNil(t, view.SentAt)
	assert.NotNil(t, view.CompletedAt)

	// Completed letters may be sent again.
	_, err = f.svc.SendEmail(ctx, owner, letter.ID, domain.SendEmailRequest{RecipientEmail: "acme@example.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		domain.ActionCreated,
		domain.ActionApproved,
		domain.ActionSent,
		domain.ActionSent,
	}, f.trail(t, owner, letter.ID))
}

func TestSendEmailThroughProvider(t *testing.T) {
	provider := &fakeEmail{}
	f := newFixture(t, provider)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	letter := f.approved(t, owner)

	result, err := f.svc.SendEmail(ctx, owner, letter.ID, domain.SendEmailRequest{
		RecipientEmail: "acme@example.com",
		Message:        "<b>please read</b>",
	})
	require.NoError(t, err)
	assert.False(t, result.Simulated)
	assert.Equal(t, "msg-1", result.MessageID)

	require.Len(t, provider.sent, 1)
	msg := provider.sent[0]
	assert.Equal(t, "acme@example.com", msg.To)
	assert.Equal(t, "jane@example.com", msg.ReplyTo)
	assert.Equal(t, letter.Title, msg.Subject)
	assert.Contains(t, msg.HTML, "<p style=\"line-height: 1.6;\">Pay now.</p>")
	assert.Contains(t, msg.HTML, "&lt;b&gt;please read&lt;/b&gt;")
}

func TestSendEmailProviderFailureKeepsStatus(t *testing.T) {
	provider := &fakeEmail{err: errors.New("smtp down")}
	f := newFixture(t, provider)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	letter := f.approved(t, owner)

	_, err := f.svc.SendEmail(ctx, owner, letter.ID, domain.SendEmailRequest{RecipientEmail: "acme@example.com"})
	require.Error(t, err)
	assert.True(t, external.IsServiceError(err))

	view, err := f.svc.Get(ctx, owner, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status)
	assert.Nil(t, view.SentAt)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	other := f.subscriber(t, "bob@example.com")

	first := f.generate(t, owner)
	var drafts []*domain.View
	for i := 0; i < 2; i++ {
		draft, err := f.svc.CreateDraft(ctx, owner, domain.CreateDraftRequest{LetterType: domain.TypeDemandLetter})
		require.NoError(t, err)
		drafts = append(drafts, draft)
		f.clock.Advance(time.Minute)
	}
	f.generate(t, other)

	req := domain.ListRequest{}
	req.PageSize = 2
	page, err := f.svc.List(ctx, owner, req)
	require.NoError(t, err)
	require.Len(t, page.Letters, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, drafts[1].ID, page.Letters[0].ID)
	assert.Equal(t, drafts[0].ID, page.Letters[1].ID)

	req.PageToken = page.NextPageToken
	page, err = f.svc.List(ctx, owner, req)
	require.NoError(t, err)
	require.Len(t, page.Letters, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, first.ID, page.Letters[0].ID)

	filtered, err := f.svc.List(ctx, owner, domain.ListRequest{Status: "pending_review"})
	require.NoError(t, err)
	require.Len(t, filtered.Letters, 1)

	_, err = f.svc.List(ctx, owner, domain.ListRequest{Status: "shredded"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.ListForReview(ctx, owner, domain.ListRequest{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	all, err := f.svc.ListForReview(ctx, f.admin(t), domain.ListRequest{Status: "pending_review"})
	require.NoError(t, err)
	assert.Len(t, all.Letters, 2)
}

func TestRenderPDF(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")

	pending := f.generate(t, owner)
	_, err := f.svc.RenderPDF(ctx, owner, pending.ID)
	assert.ErrorIs(t, err, domain.ErrNotDownloadable)

	letter := f.approve(t, pending.ID)
	doc, err := f.svc.RenderPDF(ctx, owner, letter.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(doc.Content), "%PDF"))

	require.Len(t, f.pdf.docs, 1)
	assert.Equal(t, "Dear Acme,\n\nPay now.\n\nJane", f.pdf.docs[0].Content)
	assert.Equal(t, letter.Title, f.pdf.docs[0].Title)
}

func TestRenderPDFUsesDisplayContent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	admin := f.admin(t)
	letter := f.generate(t, owner)

	_, err := f.svc.UpdateDraft(ctx, admin, letter.ID, domain.UpdateDraftRequest{Content: "Edited by counsel"})
	require.NoError(t, err)
	approved := f.approve(t, letter.ID)
	require.Equal(t, "Edited by counsel", approved.DisplayContent)

	_, err = f.svc.RenderPDF(ctx, owner, letter.ID)
	require.NoError(t, err)
	require.Len(t, f.pdf.docs, 1)
	assert.Equal(t, approved.DisplayContent, f.pdf.docs[0].Content)
}

func TestGenerateDeductionLostRaceMarksLetterFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	actor := f.subscriber(t, "jane@example.com", testutil.WithFreeTrialUsed())
	sub := testutil.CreateSubscription(t, f.db, f.node, actor.UserID, 1)
	// Another request spends the last credit while the draft is generated.
	f.generator.during = func() {
		require.NoError(t, f.db.Model(&subscriptiondomain.Subscription{}).
			Where("id = ?", sub.ID).
			Update("credits_remaining", 0).Error)
	}

	_, err := f.svc.Generate(ctx, actor, domain.GenerateRequest{
		LetterType: domain.TypeDemandLetter,
		IntakeData: map[string]any{"senderName": "Jane Doe"},
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNeedsSubscription)

	var letter domain.Letter
	require.NoError(t, f.db.First(&letter, "user_id = ?", actor.UserID).Error)
	assert.Equal(t, domain.StatusFailed, letter.Status)
	assert.Nil(t, letter.AIDraftContent)
	assert.Equal(t, []string{domain.ActionAllowanceFailed}, f.trail(t, actor, letter.ID))
	assert.Equal(t, 0, f.credits(t, sub.ID))
}

func TestApproveAndRejectRequireAdmin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.subscriber(t, "jane@example.com")
	employee := f.subscriber(t, "sam@example.com", testutil.WithRole(identity.RoleEmployee))
	letter := f.generate(t, owner)

	for _, actor := range []identity.Actor{owner, employee} {
		_, err := f.svc.Approve(ctx, actor, letter.ID, domain.ApproveRequest{FinalContent: "Final"})
		assert.ErrorIs(t, err, authorization.ErrForbidden)

		_, err = f.svc.Reject(ctx, actor, letter.ID, domain.RejectRequest{RejectionReason: "No"})
		assert.ErrorIs(t, err, authorization.ErrForbidden)
	}

	view, err := f.svc.Get(ctx, owner, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, view.Status)
	assert.Nil(t, view.FinalContent)
	assert.Equal(t, []string{domain.ActionCreated}, f.trail(t, owner, letter.ID))
}

func TestConcurrentSubmitsSpendOneCredit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	actor := f.subscriber(t, "jane@example.com", testutil.WithFreeTrialUsed())
	sub := testutil.CreateSubscription(t, f.db, f.node, actor.UserID, 1)

	var drafts []snowflake.ID
	for i := 0; i < 2; i++ {
		draft, err := f.svc.CreateDraft(ctx, actor, domain.CreateDraftRequest{LetterType: domain.TypeDemandLetter})
		require.NoError(t, err)
		drafts = append(drafts, draft.ID)
	}

	var wg sync.WaitGroup
	results := make(chan error, len(drafts))
	for _, id := range drafts {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, actor, id)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, subscriptiondomain.ErrNeedsSubscription)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.credits(t, sub.ID))

	var pending int64
	require.NoError(t, f.db.Model(&domain.Letter{}).
		Where("user_id = ? AND status = ?", actor.UserID, domain.StatusPendingReview).
		Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}
