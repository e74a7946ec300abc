package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/auth/domain"
	"github.com/smallbiznis/lexdraft/internal/auth/password"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/identity"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	SessionRepo domain.SessionRepository
	ProfileSvc  profiledomain.Service
	AuditSvc    auditdomain.Service
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	sessionRepo domain.SessionRepository
	profileSvc  profiledomain.Service
	auditSvc    auditdomain.Service
	portalKey   string
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("auth.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		sessionRepo: p.SessionRepo,
		profileSvc:  p.ProfileSvc,
		auditSvc:    p.AuditSvc,
		portalKey:   strings.TrimSpace(p.Config.AdminPortalKey),
	}
}

func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (*profiledomain.Profile, error) {
	if err := password.Validate(req.Password); err != nil {
		return nil, domain.ErrWeakPassword
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	profile, created, err := s.profileSvc.EnsureProfile(ctx, profiledomain.EnsureProfileRequest{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: &hashed,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrUserExists
	}
	return profile, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	profile, err := s.verifyCredentials(ctx, req)
	if err != nil {
		s.recordLogin(ctx, nil, auditdomain.SecurityLoginFailed, req, err)
		return nil, err
	}

	result, err := s.openSession(ctx, profile, identity.ScopeUser, req)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, &profile.ID, auditdomain.SecurityLogin, req, nil)
	return result, nil
}

func (s *Service) AdminLogin(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if !s.validPortalKey(req.PortalKey) {
		s.recordLogin(ctx, nil, auditdomain.SecurityAdminLoginFailed, req, domain.ErrInvalidPortalKey)
		return nil, domain.ErrInvalidPortalKey
	}

	profile, err := s.verifyCredentials(ctx, req)
	if err != nil {
		s.recordLogin(ctx, nil, auditdomain.SecurityAdminLoginFailed, req, err)
		return nil, err
	}
	if profile.Role != identity.RoleAdmin {
		s.recordLogin(ctx, &profile.ID, auditdomain.SecurityAdminLoginFailed, req, domain.ErrAdminRequired)
		return nil, domain.ErrAdminRequired
	}

	result, err := s.openSession(ctx, profile, identity.ScopeAdmin, req)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, &profile.ID, auditdomain.SecurityAdminLogin, req, nil)
	return result, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}
	if session.RevokedAt != nil {
		return nil
	}
	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (identity.Actor, *domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return identity.Actor{}, nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return identity.Actor{}, nil, domain.ErrInvalidSession
		}
		return identity.Actor{}, nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return identity.Actor{}, nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return identity.Actor{}, nil, domain.ErrSessionExpired
	}

	profile, err := s.profileSvc.Get(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, profiledomain.ErrNotFound) {
			return identity.Actor{}, nil, domain.ErrInvalidSession
		}
		return identity.Actor{}, nil, err
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.log.Warn("failed to touch session", zap.String("session_id", session.ID.String()), zap.Error(err))
	}

	return identity.Actor{
		UserID:      profile.ID,
		Email:       profile.Email,
		Role:        profile.Role,
		IsSuperUser: profile.IsSuperUser,
		Scope:       session.Scope,
	}, session, nil
}

func (s *Service) verifyCredentials(ctx context.Context, req domain.LoginRequest) (*profiledomain.Profile, error) {
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}
	profile, err := s.profileSvc.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, profiledomain.ErrNotFound) || errors.Is(err, profiledomain.ErrInvalidEmail) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if profile.PasswordHash == nil || !password.Verify(req.Password, *profile.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return profile, nil
}

func (s *Service) openSession(ctx context.Context, profile *profiledomain.Profile, scope identity.Scope, req domain.LoginRequest) (*domain.LoginResult, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:         s.genID.Generate(),
		UserID:     profile.ID,
		TokenHash:  hashToken(rawToken),
		Scope:      scope,
		UserAgent:  strings.TrimSpace(req.UserAgent),
		IPAddress:  strings.TrimSpace(req.IPAddress),
		ExpiresAt:  now.Add(sessionTTL),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		Session: &domain.SessionView{
			UserID:      profile.ID.String(),
			Email:       profile.Email,
			FullName:    profile.FullName,
			Role:        profile.Role,
			IsSuperUser: profile.IsSuperUser,
			Scope:       scope,
			ExpiresAt:   session.ExpiresAt,
		},
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) validPortalKey(key string) bool {
	if s.portalKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(s.portalKey)) == 1
}

func (s *Service) recordLogin(ctx context.Context, userID *snowflake.ID, action string, req domain.LoginRequest, cause error) {
	details := map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if cause != nil {
		details["reason"] = cause.Error()
	}
	_ = s.auditSvc.RecordSecurityEvent(ctx, auditdomain.SecurityEvent{
		UserID:  userID,
		Action:  action,
		Details: details,
	})
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
