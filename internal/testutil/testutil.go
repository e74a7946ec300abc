// Package testutil builds in-memory databases and fixtures for service tests.
package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	auditrepository "github.com/smallbiznis/lexdraft/internal/audit/repository"
	auditservice "github.com/smallbiznis/lexdraft/internal/audit/service"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/migration"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the default fake clock start.
var Epoch = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory sqlite database with the full schema. A
// single connection keeps every statement on the same memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func NewClock() *clock.FakeClock {
	return clock.NewFakeClock(Epoch)
}

// NewAuthz returns the casbin-backed authorizer seeded with the fixed policies.
func NewAuthz(t testing.TB, db *gorm.DB) authorization.Service {
	t.Helper()
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func NewAuditService(db *gorm.DB, node *snowflake.Node, clk clock.Clock) auditdomain.Service {
	return auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
}

type ProfileOption func(*profiledomain.Profile)

func WithRole(role identity.Role) ProfileOption {
	return func(p *profiledomain.Profile) { p.Role = role }
}

func WithSuperUser() ProfileOption {
	return func(p *profiledomain.Profile) { p.IsSuperUser = true }
}

func WithFreeTrialUsed() ProfileOption {
	return func(p *profiledomain.Profile) { p.FreeTrialUsed = true }
}

func WithName(name string) ProfileOption {
	return func(p *profiledomain.Profile) { p.FullName = name }
}

// CreateProfile inserts a subscriber unless options say otherwise.
func CreateProfile(t testing.TB, db *gorm.DB, node *snowflake.Node, email string, opts ...ProfileOption) *profiledomain.Profile {
	t.Helper()
	profile := &profiledomain.Profile{
		ID:        node.Generate(),
		Email:     email,
		Role:      identity.RoleSubscriber,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	for _, opt := range opts {
		opt(profile)
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// CreateSubscription inserts an active subscription holding credits letters.
func CreateSubscription(t testing.TB, db *gorm.DB, node *snowflake.Node, userID snowflake.ID, credits int) *subscriptiondomain.Subscription {
	t.Helper()
	sub := &subscriptiondomain.Subscription{
		ID:                 node.Generate(),
		UserID:             userID,
		Plan:               "standard_4_month",
		Status:             subscriptiondomain.StatusActive,
		Price:              decimal.NewFromInt(299),
		Discount:           decimal.Zero,
		LettersGranted:     credits,
		CreditsRemaining:   credits,
		CurrentPeriodStart: Epoch,
		CurrentPeriodEnd:   Epoch.Add(30 * 24 * time.Hour),
		CreatedAt:          Epoch,
		UpdatedAt:          Epoch,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

// ActorFor builds the identity a logged-in profile would carry. Admins get an
// admin-scoped session.
func ActorFor(p *profiledomain.Profile) identity.Actor {
	scope := identity.ScopeUser
	if p.Role == identity.RoleAdmin {
		scope = identity.ScopeAdmin
	}
	return identity.Actor{
		UserID:      p.ID,
		Email:       p.Email,
		Role:        p.Role,
		IsSuperUser: p.IsSuperUser,
		Scope:       scope,
	}
}
