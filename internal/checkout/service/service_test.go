package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/checkout/domain"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	commissionrepository "github.com/smallbiznis/lexdraft/internal/commission/repository"
	commissionservice "github.com/smallbiznis/lexdraft/internal/commission/service"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	pricingdomain "github.com/smallbiznis/lexdraft/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/lexdraft/internal/pricing/service"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	profilerepository "github.com/smallbiznis/lexdraft/internal/profile/repository"
	profileservice "github.com/smallbiznis/lexdraft/internal/profile/service"
	"github.com/smallbiznis/lexdraft/internal/providers/payment"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/lexdraft/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/lexdraft/internal/subscription/service"
	"github.com/smallbiznis/lexdraft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu       sync.Mutex
	created  []payment.CheckoutRequest
	sessions map[string]payment.Session
	event    payment.Event
	eventErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]payment.Session{}}
}

func (g *fakeGateway) CreateSession(ctx context.Context, req payment.CheckoutRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	session := payment.Session{
		ID:                fmt.Sprintf("cs_test_%d", len(g.created)),
		URL:               "https://checkout.example.com/pay",
		PaymentStatus:     "unpaid",
		ClientReferenceID: req.ClientReferenceID,
		AmountTotal:       req.AmountCents,
		Metadata:          req.Metadata,
	}
	g.sessions[session.ID] = session
	return session, nil
}

func (g *fakeGateway) RetrieveSession(ctx context.Context, id string) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	session, ok := g.sessions[id]
	if !ok {
		return payment.Session{}, payment.ErrSessionNotFound
	}
	return session, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	if g.eventErr != nil {
		return payment.Event{}, g.eventErr
	}
	return g.event, nil
}

func (g *fakeGateway) markPaid(id string) payment.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	session := g.sessions[id]
	session.PaymentStatus = payment.PaymentStatusPaid
	g.sessions[id] = session
	return session
}

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	gateway *fakeGateway
	svc     domain.Service
	comm    commissiondomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock()
	log := zaptest.NewLogger(t)
	authz := testutil.NewAuthz(t, db)
	auditSvc := testutil.NewAuditService(db, node, clk)
	cfg := config.Config{
		AppURL: "https://app.example.com",
		Pricing: config.PricingConfig{
			BypassCouponCode: "TALK3",
			CommissionRate:   "0.05",
		},
	}

	commissionSvc := commissionservice.NewService(commissionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg,
		Repo: commissionrepository.Provide(), Authz: authz, AuditSvc: auditSvc,
	})
	profileSvc := profileservice.NewService(profileservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: profilerepository.Provide(), Authz: authz, AuditSvc: auditSvc, CommissionSvc: commissionSvc,
	})
	subSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg, Repo: subscriptionrepository.Provide(),
	})
	pricingSvc := pricingservice.NewService(pricingservice.Params{
		Log:           log,
		Config:        cfg,
		Catalog:       config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalog()),
		CommissionSvc: commissionSvc,
	})

	gateway := newFakeGateway()
	svc := NewService(Params{
		DB:            db,
		Log:           log,
		Config:        cfg,
		Authz:         authz,
		PricingSvc:    pricingSvc,
		SubSvc:        subSvc,
		CommissionSvc: commissionSvc,
		ProfileSvc:    profileSvc,
		Gateway:       gateway,
	})
	return fixture{db: db, node: node, gateway: gateway, svc: svc, comm: commissionSvc}
}

func (f fixture) employeeCoupon(t *testing.T, percent int) (*profiledomain.Profile, *commissiondomain.EmployeeCoupon) {
	t.Helper()
	employee := testutil.CreateProfile(t, f.db, f.node, fmt.Sprintf("emp%d@example.com", percent),
		testutil.WithRole(identity.RoleEmployee), testutil.WithName("Jane Doe"))
	coupon, err := f.comm.EnsureEmployeeCoupon(context.Background(), nil, employee.ID, employee.FullName)
	require.NoError(t, err)
	if percent != coupon.DiscountPercent {
		require.NoError(t, f.db.Model(&commissiondomain.EmployeeCoupon{}).
			Where("id = ?", coupon.ID).Update("discount_percent", percent).Error)
		coupon.DiscountPercent = percent
	}
	return employee, coupon
}

func (f fixture) subscriptions(t *testing.T, userID snowflake.ID) []subscriptiondomain.Subscription {
	t.Helper()
	var subs []subscriptiondomain.Subscription
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&subs).Error)
	return subs
}

func (f fixture) commissions(t *testing.T) []commissiondomain.Commission {
	t.Helper()
	var rows []commissiondomain.Commission
	require.NoError(t, f.db.Find(&rows).Error)
	return rows
}

func TestBypassTokenFulfillsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := testutil.CreateProfile(t, f.db, f.node, "buyer@example.com")

	resp, err := f.svc.StartCheckout(ctx, testutil.ActorFor(buyer), domain.StartRequest{
		PlanType:   "one_time",
		CouponCode: "talk3",
	})
	require.NoError(t, err)
	assert.True(t, resp.Free)
	require.NotNil(t, resp.SubscriptionID)
	assert.Equal(t, 1, resp.Letters)
	assert.Equal(t, "Subscription activated with 1 legal letter", resp.Message)
	assert.Empty(t, f.gateway.created)

	subs := f.subscriptions(t, buyer.ID)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Price.IsZero())
	assert.Equal(t, "299.00", subs[0].Discount.StringFixed(2))
	assert.Nil(t, subs[0].StripeSessionID)

	rows := f.commissions(t)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].EmployeeID)
	assert.Equal(t, "14.95", rows[0].CommissionAmount.StringFixed(2))
	assert.Equal(t, "299.00", rows[0].SubscriptionAmount.StringFixed(2))

	var usages int64
	require.NoError(t, f.db.Model(&commissiondomain.CouponUsage{}).Where("coupon_code = ?", "TALK3").Count(&usages).Error)
	assert.EqualValues(t, 1, usages)

	var stored profiledomain.Profile
	require.NoError(t, f.db.First(&stored, "id = ?", buyer.ID).Error)
	assert.False(t, stored.IsSuperUser)
}

func TestDiscountedCheckoutCreatesHostedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := testutil.CreateProfile(t, f.db, f.node, "buyer@example.com")
	_, coupon := f.employeeCoupon(t, 20)

	resp, err := f.svc.StartCheckout(ctx, testutil.ActorFor(buyer), domain.StartRequest{
		PlanType:   "one_time",
		CouponCode: coupon.Code,
		Origin:     "https://lexdraft.example.com/",
	})
	require.NoError(t, err)
	assert.False(t, resp.Free)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.NotEmpty(t, resp.URL)

	require.Len(t, f.gateway.created, 1)
	req := f.gateway.created[0]
	assert.EqualValues(t, 23920, req.AmountCents)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "1 Legal Letter", req.Description)
	assert.Equal(t, buyer.ID.String(), req.ClientReferenceID)
	assert.Equal(t, "https://lexdraft.example.com/dashboard/subscription?canceled=true", req.CancelURL)
	assert.Equal(t, coupon.Code, req.Metadata[pricingdomain.MetaCouponCode])
	assert.Equal(t, "239.20", req.Metadata[pricingdomain.MetaFinalPrice])

	assert.Empty(t, f.subscriptions(t, buyer.ID), "nothing is written before payment")
	assert.Empty(t, f.commissions(t))
}

func TestVerifyPaymentSettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := testutil.CreateProfile(t, f.db, f.node, "buyer@example.com")
	employee, coupon := f.employeeCoupon(t, 20)
	actor := testutil.ActorFor(buyer)

	resp, err := f.svc.StartCheckout(ctx, actor, domain.StartRequest{PlanType: "one_time", CouponCode: coupon.Code})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, actor, resp.SessionID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotCompleted)

	f.gateway.markPaid(resp.SessionID)

	stranger := testutil.CreateProfile(t, f.db, f.node, "stranger@example.com")
	_, err = f.svc.VerifyPayment(ctx, testutil.ActorFor(stranger), resp.SessionID)
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	first, err := f.svc.VerifyPayment(ctx, actor, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.AlreadyProcessed)
	assert.Equal(t, 1, first.Letters)

	second, err := f.svc.VerifyPayment(ctx, actor, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)

	// Spending a credit does not change what a repeated settlement reports.
	require.NoError(t, f.db.Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", first.SubscriptionID).
		Update("credits_remaining", 0).Error)
	third, err := f.svc.VerifyPayment(ctx, actor, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, third.AlreadyProcessed)
	assert.Equal(t, first.Letters, third.Letters)

	subs := f.subscriptions(t, buyer.ID)
	require.Len(t, subs, 1)
	assert.Equal(t, "239.20", subs[0].Price.StringFixed(2))
	assert.Equal(t, 1, subs[0].LettersGranted)
	assert.Equal(t, 0, subs[0].CreditsRemaining)

	rows := f.commissions(t)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].EmployeeID)
	assert.Equal(t, employee.ID, *rows[0].EmployeeID)
	assert.Equal(t, "11.96", rows[0].CommissionAmount.StringFixed(2))

	var stored commissiondomain.EmployeeCoupon
	require.NoError(t, f.db.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, stored.UsageCount)

	_, err = f.svc.VerifyPayment(ctx, actor, "  ")
	assert.ErrorIs(t, err, domain.ErrSessionRequired)
}

func TestFullDiscountCouponGrantsSuperUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := testutil.CreateProfile(t, f.db, f.node, "buyer@example.com")
	employee, coupon := f.employeeCoupon(t, 100)

	resp, err := f.svc.StartCheckout(ctx, testutil.ActorFor(buyer), domain.StartRequest{
		PlanType:   "standard_4_month",
		CouponCode: coupon.Code,
	})
	require.NoError(t, err)
	assert.True(t, resp.Free)
	assert.Equal(t, 4, resp.Letters)

	var stored profiledomain.Profile
	require.NoError(t, f.db.First(&stored, "id = ?", buyer.ID).Error)
	assert.True(t, stored.IsSuperUser)
	assert.Equal(t, identity.RoleSubscriber, stored.Role)

	rows := f.commissions(t)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].EmployeeID)
	assert.Equal(t, employee.ID, *rows[0].EmployeeID)
	assert.True(t, rows[0].CommissionAmount.IsZero())
}

func TestWebhookSettlesPaidSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := testutil.CreateProfile(t, f.db, f.node, "buyer@example.com")

	resp, err := f.svc.StartCheckout(ctx, testutil.ActorFor(buyer), domain.StartRequest{PlanType: "standard_4_month"})
	require.NoError(t, err)
	require.Len(t, f.gateway.created, 1)
	assert.EqualValues(t, 29900, f.gateway.created[0].AmountCents)

	unpaid, err := f.gateway.RetrieveSession(ctx, resp.SessionID)
	require.NoError(t, err)
	f.gateway.event = payment.Event{ID: "evt_1", Type: payment.EventCheckoutCompleted, Session: &unpaid}
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	assert.Empty(t, f.subscriptions(t, buyer.ID))

	paid := f.gateway.markPaid(resp.SessionID)
	f.gateway.event = payment.Event{ID: "evt_2", Type: payment.EventCheckoutCompleted, Session: &paid}
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	subs := f.subscriptions(t, buyer.ID)
	require.Len(t, subs, 1)
	assert.Equal(t, 4, subs[0].CreditsRemaining)
	assert.Empty(t, f.commissions(t), "no coupon means no commission")

	// A browser verification after the webhook reports the existing row.
	result, err := f.svc.VerifyPayment(ctx, testutil.ActorFor(buyer), resp.SessionID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, subs[0].ID, result.SubscriptionID)

	f.gateway.event = payment.Event{ID: "evt_3", Type: "invoice.paid"}
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	f.gateway.eventErr = payment.ErrInvalidSignature
	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, []byte("{}"), "bad"), payment.ErrInvalidSignature)
}

func TestSettleRejectsTamperedMetadata(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Settle(context.Background(), payment.Session{
		ID:            "cs_broken",
		PaymentStatus: payment.PaymentStatusPaid,
		Metadata:      map[string]string{pricingdomain.MetaUserID: "not-a-number"},
	}, domain.SourceWebhook)
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidMetadata)
}

func TestStartCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := testutil.CreateProfile(t, f.db, f.node, "buyer@example.com")

	_, err := f.svc.StartCheckout(ctx, testutil.ActorFor(buyer), domain.StartRequest{PlanType: "lifetime"})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidPlan)

	_, err = f.svc.StartCheckout(ctx, identity.Actor{}, domain.StartRequest{PlanType: "one_time"})
	assert.ErrorIs(t, err, authorization.ErrUnauthenticated)

	admin := testutil.CreateProfile(t, f.db, f.node, "admin@example.com", testutil.WithRole(identity.RoleAdmin))
	_, err = f.svc.StartCheckout(ctx, testutil.ActorFor(admin), domain.StartRequest{PlanType: "one_time"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestLetterCount(t *testing.T) {
	assert.Equal(t, "1 Legal Letter", letterCount(1))
	assert.Equal(t, "8 Legal Letters", letterCount(8))
}
