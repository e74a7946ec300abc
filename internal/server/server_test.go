package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/lexdraft/internal/auth/domain"
	"github.com/smallbiznis/lexdraft/internal/auth/session"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
	"github.com/smallbiznis/lexdraft/internal/observability"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/smallbiznis/lexdraft/internal/providers/ai"
	"github.com/smallbiznis/lexdraft/internal/providers/external"
	"github.com/smallbiznis/lexdraft/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	subscriberToken = "subscriber-token"
	userAdminToken  = "admin-user-scope-token"
	adminToken      = "admin-token"
)

var (
	subscriber = identity.Actor{UserID: 101, Email: "sub@example.com", Role: identity.RoleSubscriber, Scope: identity.ScopeUser}
	adminUser  = identity.Actor{UserID: 201, Email: "admin@example.com", Role: identity.RoleAdmin, Scope: identity.ScopeUser}
	admin      = identity.Actor{UserID: 201, Email: "admin@example.com", Role: identity.RoleAdmin, Scope: identity.ScopeAdmin}
)

type fakeAuthService struct {
	actors      map[string]identity.Actor
	loginCalls  int
	logoutToken string
}

func newFakeAuthService() *fakeAuthService {
	return &fakeAuthService{actors: map[string]identity.Actor{
		subscriberToken: subscriber,
		userAdminToken:  adminUser,
		adminToken:      admin,
	}}
}

func (f *fakeAuthService) Signup(ctx context.Context, req authdomain.SignupRequest) (*profiledomain.Profile, error) {
	return &profiledomain.Profile{ID: 300, Email: req.Email, FullName: req.FullName, Role: identity.RoleSubscriber}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	f.loginCalls++
	if req.Password != "correct-horse" {
		return nil, authdomain.ErrInvalidCredentials
	}
	return &authdomain.LoginResult{
		Session:   &authdomain.SessionView{UserID: "101", Email: req.Email, Role: identity.RoleSubscriber, Scope: identity.ScopeUser},
		RawToken:  subscriberToken,
		ExpiresAt: time.Now().Add(time.Hour),
		SessionID: 900,
	}, nil
}

func (f *fakeAuthService) AdminLogin(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	if req.PortalKey != "portal" {
		return nil, authdomain.ErrInvalidPortalKey
	}
	return &authdomain.LoginResult{RawToken: adminToken, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	f.logoutToken = rawToken
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (identity.Actor, *authdomain.Session, error) {
	actor, ok := f.actors[rawToken]
	if !ok {
		return identity.Actor{}, nil, authdomain.ErrInvalidSession
	}
	return actor, &authdomain.Session{UserID: actor.UserID, Scope: actor.Scope}, nil
}

// fakeLetterService implements the handlers under test; other methods panic
// through the nil embedded interface.
type fakeLetterService struct {
	letterdomain.Service

	generateErr error
	generated   []letterdomain.GenerateRequest
	gotActor    identity.Actor
	letter      *letterdomain.View
	document    *letterdomain.Document
}

func (f *fakeLetterService) Generate(ctx context.Context, actor identity.Actor, req letterdomain.GenerateRequest) (*letterdomain.View, error) {
	f.gotActor = actor
	f.generated = append(f.generated, req)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.letter, nil
}

func (f *fakeLetterService) Get(ctx context.Context, actor identity.Actor, id snowflake.ID) (*letterdomain.View, error) {
	f.gotActor = actor
	if f.letter == nil || f.letter.ID != id {
		return nil, letterdomain.ErrNotFound
	}
	return f.letter, nil
}

func (f *fakeLetterService) ListForReview(ctx context.Context, actor identity.Actor, req letterdomain.ListRequest) (letterdomain.ListResponse, error) {
	f.gotActor = actor
	return letterdomain.ListResponse{Letters: []letterdomain.View{*f.letter}}, nil
}

func (f *fakeLetterService) RenderPDF(ctx context.Context, actor identity.Actor, id snowflake.ID) (*letterdomain.Document, error) {
	if f.document == nil {
		return nil, letterdomain.ErrNotDownloadable
	}
	return f.document, nil
}

type testServer struct {
	engine  *gin.Engine
	auth    *fakeAuthService
	letters *fakeLetterService
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	letter := letterdomain.NewView(letterdomain.Letter{
		ID:         555,
		UserID:     subscriber.UserID,
		Title:      "demand_letter - 03/15/2024",
		LetterType: "demand_letter",
		Status:     letterdomain.StatusPendingReview,
	})

	ts := &testServer{
		engine:  NewEngine(observability.Config{}, nil),
		auth:    newFakeAuthService(),
		letters: &fakeLetterService{letter: &letter},
	}

	NewServer(ServerParams{
		Gin:       ts.engine,
		Cfg:       config.Config{},
		Log:       zap.NewNop(),
		Authsvc:   ts.auth,
		Sessions:  session.NewManager(config.Config{}),
		LetterSvc: ts.letters,
		Limiter:   limiter,
	})
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			_ = json.NewEncoder(&buf).Encode(v)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.engine.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Error.Type)
}

func TestLettersRequireSession(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/api/letters/555", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Error.Type)

	resp = ts.do(http.MethodGet, "/api/letters/555", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSessionCookieIsAccepted(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/letters/555", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: subscriberToken})
	resp := httptest.NewRecorder()
	ts.engine.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, subscriber.UserID, ts.letters.gotActor.UserID)
}

func TestGetLetterInvalidID(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/api/letters/abc", subscriberToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	out := decodeError(t, resp)
	require.Len(t, out.Error.Errors, 1)
	assert.Equal(t, letterdomain.ErrInvalidID.Error(), out.Error.Errors[0].Code)
}

func TestGetLetterNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/api/letters/999", subscriberToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGenerateLetterBindingErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, map[string]any{
		"letterType": "love_letter",
		"intakeData": map[string]any{"senderName": "Jane"},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	out := decodeError(t, resp)
	assert.Equal(t, "validation_error", out.Error.Type)
	require.Len(t, out.Error.Errors, 1)
	assert.Equal(t, "letterType", out.Error.Errors[0].Field)
	assert.Equal(t, "lettertype", out.Error.Errors[0].Code)
	assert.Empty(t, ts.letters.generated)

	resp = ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, `{"letterType":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGenerateLetterCreated(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, map[string]any{
		"letterType": "demand_letter",
		"intakeData": map[string]any{"senderName": "Jane"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var out struct {
		Data letterdomain.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, snowflake.ID(555), out.Data.ID)
	require.Len(t, ts.letters.generated, 1)
	assert.Equal(t, "Jane", ts.letters.generated[0].IntakeData["senderName"])
	assert.Equal(t, subscriber.UserID, ts.letters.gotActor.UserID)
}

func TestGenerateLetterNeedsSubscription(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.letters.generateErr = subscriptiondomain.ErrNeedsSubscription

	resp := ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, map[string]any{
		"letterType": "demand_letter",
		"intakeData": map[string]any{"senderName": "Jane"},
	})
	require.Equal(t, http.StatusForbidden, resp.Code)
	out := decodeError(t, resp)
	assert.True(t, out.NeedsSubscription)
	assert.Equal(t, "allowance_exhausted", out.Error.Type)
}

func TestGenerateLetterUpstreamFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.letters.generateErr = external.Wrap(ai.ProviderName, "generate", errors.New("boom"))

	resp := ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, map[string]any{
		"letterType": "demand_letter",
		"intakeData": map[string]any{"senderName": "Jane"},
	})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	out := decodeError(t, resp)
	assert.Equal(t, "external_service_error", out.Error.Type)
	assert.NotContains(t, resp.Body.String(), "boom")
}

func TestGenerateLetterRateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(config.Config{RateLimit: config.RateLimitConfig{
		GeneratePerMinute: 1,
		GenerateBurst:     1,
	}}, nil, zap.NewNop())
	ts := newTestServer(t, limiter)

	body := map[string]any{
		"letterType": "demand_letter",
		"intakeData": map[string]any{"senderName": "Jane"},
	}
	first := ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, body)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := ts.do(http.MethodPost, "/api/letters/generate", subscriberToken, body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Len(t, ts.letters.generated, 1)
}

func TestAdminRoutesRequireAdminScope(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/admin/letters", subscriberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(http.MethodGet, "/admin/letters", userAdminToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(http.MethodGet, "/admin/letters", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, identity.ScopeAdmin, ts.letters.gotActor.Scope)
}

func TestDownloadLetterPDF(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/api/letters/555/pdf", subscriberToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	ts.letters.document = &letterdomain.Document{Filename: "demand-letter.pdf", Content: []byte("%PDF-1.4")}
	resp = ts.do(http.MethodGet, "/api/letters/555/pdf", subscriberToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="demand-letter.pdf"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", resp.Body.String())
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/auth/login", "", map[string]any{
		"email":    " sub@example.com ",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.DefaultCookieName, cookies[0].Name)
	assert.Equal(t, subscriberToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	resp = ts.do(http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "sub@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLoginRequiresFields(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "sub@example.com"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	out := decodeError(t, resp)
	require.Len(t, out.Error.Errors, 1)
	assert.Equal(t, "password", out.Error.Errors[0].Field)
	assert.Zero(t, ts.auth.loginCalls)
}

func TestAdminLoginRejectsPortalKey(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/auth/admin/login", "", map[string]any{
		"email":     "admin@example.com",
		"password":  "correct-horse",
		"portalKey": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/auth/logout", subscriberToken, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, subscriberToken, ts.auth.logoutToken)

	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/auth/signup", "", map[string]any{
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	out := decodeError(t, resp)
	fields := map[string]string{}
	for _, e := range out.Error.Errors {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, map[string]string{"email": "email", "password": "min"}, fields)

	resp = ts.do(http.MethodPost, "/auth/signup", "", map[string]any{
		"email":    "new@example.com",
		"password": "long-enough",
		"fullName": "New User",
	})
	assert.Equal(t, http.StatusCreated, resp.Code)
}
