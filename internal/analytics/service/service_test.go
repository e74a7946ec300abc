package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/identity"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
	"github.com/smallbiznis/lexdraft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func insertLetter(t *testing.T, db *gorm.DB, node *snowflake.Node, userID snowflake.ID, status letterdomain.Status) {
	t.Helper()
	require.NoError(t, db.Create(&letterdomain.Letter{
		ID:         node.Generate(),
		UserID:     userID,
		Title:      "demand_letter - 03/15/2024",
		LetterType: letterdomain.TypeDemandLetter,
		Status:     status,
		CreatedAt:  testutil.Epoch,
		UpdatedAt:  testutil.Epoch,
	}).Error)
}

func insertCommission(t *testing.T, db *gorm.DB, node *snowflake.Node, employeeID *snowflake.ID, amount string, status commissiondomain.Status) {
	t.Helper()
	require.NoError(t, db.Create(&commissiondomain.Commission{
		ID:                 node.Generate(),
		EmployeeID:         employeeID,
		SubscriptionID:     node.Generate(),
		SubscriptionAmount: decimal.NewFromInt(299),
		CommissionRate:     decimal.RequireFromString("0.05"),
		CommissionAmount:   decimal.RequireFromString(amount),
		Status:             status,
		CreatedAt:          testutil.Epoch,
		UpdatedAt:          testutil.Epoch,
	}).Error)
}

func TestOverview(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Authz: testutil.NewAuthz(t, db)})

	admin := testutil.CreateProfile(t, db, node, "admin@example.com", testutil.WithRole(identity.RoleAdmin))
	jane := testutil.CreateProfile(t, db, node, "jane@example.com", testutil.WithRole(identity.RoleEmployee), testutil.WithName("Jane Doe"))
	omar := testutil.CreateProfile(t, db, node, "omar@example.com", testutil.WithRole(identity.RoleEmployee), testutil.WithName("Omar Ali"))
	buyer := testutil.CreateProfile(t, db, node, "buyer@example.com")

	insertLetter(t, db, node, buyer.ID, letterdomain.StatusPendingReview)
	insertLetter(t, db, node, buyer.ID, letterdomain.StatusUnderReview)
	insertLetter(t, db, node, buyer.ID, letterdomain.StatusApproved)
	insertLetter(t, db, node, buyer.ID, letterdomain.StatusDraft)

	testutil.CreateSubscription(t, db, node, buyer.ID, 4)
	testutil.CreateSubscription(t, db, node, buyer.ID, 1)

	insertCommission(t, db, node, &jane.ID, "11.96", commissiondomain.StatusPaid)
	insertCommission(t, db, node, &jane.ID, "14.95", commissiondomain.StatusPending)
	insertCommission(t, db, node, &omar.ID, "14.95", commissiondomain.StatusPaid)
	insertCommission(t, db, node, &omar.ID, "14.95", commissiondomain.StatusPaid)
	insertCommission(t, db, node, nil, "14.95", commissiondomain.StatusPaid)

	out, err := svc.Overview(context.Background(), testutil.ActorFor(admin))
	require.NoError(t, err)

	assert.Equal(t, int64(4), out.TotalUsers)
	assert.Equal(t, int64(4), out.TotalLetters)
	assert.Equal(t, int64(2), out.PendingReviews)
	assert.Equal(t, int64(1), out.LettersByStatus["approved"])
	assert.Equal(t, int64(2), out.ActiveSubscriptions)
	assert.Equal(t, "598", out.TotalRevenue.String())

	require.Len(t, out.TopEmployees, 2)
	assert.Equal(t, omar.ID, out.TopEmployees[0].EmployeeID)
	assert.Equal(t, "Omar Ali", out.TopEmployees[0].FullName)
	assert.Equal(t, "29.9", out.TopEmployees[0].PaidTotal.String())
	assert.Equal(t, int64(2), out.TopEmployees[0].CommissionCount)
	assert.Equal(t, jane.ID, out.TopEmployees[1].EmployeeID)
	assert.Equal(t, "11.96", out.TopEmployees[1].PaidTotal.String())
}

func TestOverviewEmptyStore(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Authz: testutil.NewAuthz(t, db)})
	admin := testutil.CreateProfile(t, db, node, "admin@example.com", testutil.WithRole(identity.RoleAdmin))

	out, err := svc.Overview(context.Background(), testutil.ActorFor(admin))
	require.NoError(t, err)
	assert.True(t, out.TotalRevenue.IsZero())
	assert.Empty(t, out.TopEmployees)
	assert.NotNil(t, out.TopEmployees)
}

func TestOverviewRequiresAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Authz: testutil.NewAuthz(t, db)})

	employee := testutil.CreateProfile(t, db, node, "jane@example.com", testutil.WithRole(identity.RoleEmployee))
	_, err := svc.Overview(context.Background(), testutil.ActorFor(employee))
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Overview(context.Background(), identity.Actor{})
	assert.ErrorIs(t, err, authorization.ErrUnauthenticated)
}
