package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/lexdraft/internal/auth/domain"
	"github.com/smallbiznis/lexdraft/internal/auth/password"
	"github.com/smallbiznis/lexdraft/internal/auth/repository"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	profilerepository "github.com/smallbiznis/lexdraft/internal/profile/repository"
	profileservice "github.com/smallbiznis/lexdraft/internal/profile/service"
	"github.com/smallbiznis/lexdraft/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const portalKey = "portal-secret"

type testEnv struct {
	db    *gorm.DB
	clock *clock.FakeClock
	svc   domain.Service
}

func newTestService(t *testing.T) testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock()
	auditSvc := testutil.NewAuditService(db, node, clk)

	profileSvc := profileservice.NewService(profileservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     profilerepository.Provide(),
		Authz:    testutil.NewAuthz(t, db),
		AuditSvc: auditSvc,
	})

	svc := New(Params{
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Config:      config.Config{AdminPortalKey: portalKey},
		SessionRepo: repository.New(db),
		ProfileSvc:  profileSvc,
		AuditSvc:    auditSvc,
	})
	return testEnv{db: db, clock: clk, svc: svc}
}

func (e testEnv) createAdmin(t *testing.T, email, pw string) {
	t.Helper()
	hashed, err := password.Hash(pw)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	err = e.db.Exec(
		`INSERT INTO profiles (id, email, full_name, role, is_super_user, free_trial_used, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(42), email, "Admin", identity.RoleAdmin, true, false, hashed, testutil.Epoch, testutil.Epoch,
	).Error
	if err != nil {
		t.Fatalf("insert admin: %v", err)
	}
}

func (e testEnv) countAudit(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	if err := e.db.Table("security_audit_logs").Where("action = ?", action).Count(&count).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	return count
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	profile, err := env.svc.Signup(ctx, domain.SignupRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
		FullName: "Alice",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if profile.Role != identity.RoleSubscriber {
		t.Fatalf("expected subscriber role, got %s", profile.Role)
	}
	if profile.PasswordHash == nil || *profile.PasswordHash == "correct-password" {
		t.Fatal("expected hashed password")
	}

	result, err := env.svc.Login(ctx, domain.LoginRequest{
		Email:     "Alice@Example.com",
		Password:  "correct-password",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.RawToken == "" {
		t.Fatal("expected raw session token")
	}
	if result.Session.Scope != identity.ScopeUser {
		t.Fatalf("expected user scope, got %s", result.Session.Scope)
	}
	if want := testutil.Epoch.Add(sessionTTL); !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, result.ExpiresAt)
	}

	var stored domain.Session
	if err := env.db.First(&stored, "id = ?", result.SessionID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if stored.TokenHash == result.RawToken || stored.TokenHash != hashToken(result.RawToken) {
		t.Fatal("expected only the token hash to be stored")
	}
	if got := env.countAudit(t, "login"); got != 1 {
		t.Fatalf("expected 1 login audit row, got %d", got)
	}
}

func TestSignupRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	if _, err := env.svc.Signup(ctx, domain.SignupRequest{Email: "bob@example.com", Password: "short"}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := env.svc.Signup(ctx, domain.SignupRequest{Email: "bob@example.com", Password: "long-enough"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := env.svc.Signup(ctx, domain.SignupRequest{Email: "BOB@example.com", Password: "long-enough"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	if _, err := env.svc.Signup(ctx, domain.SignupRequest{Email: "alice@example.com", Password: "correct-password"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err := env.svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = env.svc.Login(ctx, domain.LoginRequest{Email: "nobody@example.com", Password: "whatever-pass"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if got := env.countAudit(t, "login_failed"); got != 2 {
		t.Fatalf("expected 2 failed login audit rows, got %d", got)
	}
}

func TestAdminLogin(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.createAdmin(t, "admin@example.com", "admin-password")
	if _, err := env.svc.Signup(ctx, domain.SignupRequest{Email: "client@example.com", Password: "client-password"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err := env.svc.AdminLogin(ctx, domain.LoginRequest{
		Email: "admin@example.com", Password: "admin-password", PortalKey: "wrong",
	})
	if !errors.Is(err, domain.ErrInvalidPortalKey) {
		t.Fatalf("expected ErrInvalidPortalKey, got %v", err)
	}

	_, err = env.svc.AdminLogin(ctx, domain.LoginRequest{
		Email: "client@example.com", Password: "client-password", PortalKey: portalKey,
	})
	if !errors.Is(err, domain.ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}

	result, err := env.svc.AdminLogin(ctx, domain.LoginRequest{
		Email: "admin@example.com", Password: "admin-password", PortalKey: " " + portalKey + " ",
	})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if result.Session.Scope != identity.ScopeAdmin || !result.Session.IsSuperUser {
		t.Fatalf("unexpected admin session: %+v", result.Session)
	}
	if got := env.countAudit(t, "admin_login_failed"); got != 2 {
		t.Fatalf("expected 2 failed admin login rows, got %d", got)
	}
	if got := env.countAudit(t, "admin_login"); got != 1 {
		t.Fatalf("expected 1 admin login row, got %d", got)
	}
}

func TestAdminLoginDisabledWithoutPortalKey(t *testing.T) {
	env := newTestService(t)
	env.createAdmin(t, "admin@example.com", "admin-password")

	svc := env.svc.(*Service)
	svc.portalKey = ""

	_, err := svc.AdminLogin(context.Background(), domain.LoginRequest{
		Email: "admin@example.com", Password: "admin-password", PortalKey: "",
	})
	if !errors.Is(err, domain.ErrInvalidPortalKey) {
		t.Fatalf("expected ErrInvalidPortalKey, got %v", err)
	}
}

func TestAuthenticateAndLogout(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.createAdmin(t, "admin@example.com", "admin-password")

	result, err := env.svc.AdminLogin(ctx, domain.LoginRequest{
		Email: "admin@example.com", Password: "admin-password", PortalKey: portalKey,
	})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}

	actor, session, err := env.svc.Authenticate(ctx, result.RawToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !actor.IsAdmin() || !actor.IsSuperAdmin() {
		t.Fatalf("expected super admin actor, got %+v", actor)
	}
	if session.ID != result.SessionID {
		t.Fatalf("expected session %s, got %s", result.SessionID, session.ID)
	}

	if _, _, err := env.svc.Authenticate(ctx, "not-a-token"); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	if err := env.svc.Logout(ctx, result.RawToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := env.svc.Authenticate(ctx, result.RawToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if err := env.svc.Logout(ctx, result.RawToken); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	if _, err := env.svc.Signup(ctx, domain.SignupRequest{Email: "alice@example.com", Password: "correct-password"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	result, err := env.svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "correct-password"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	env.clock.Advance(sessionTTL + time.Minute)
	if _, _, err := env.svc.Authenticate(ctx, result.RawToken); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
