package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
)

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*profiledomain.Profile, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	// AdminLogin opens an admin-scoped session. It requires the portal key
	// and an admin profile.
	AdminLogin(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	// Authenticate resolves a raw token into the caller identity.
	Authenticate(ctx context.Context, rawToken string) (identity.Actor, *Session, error)
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName"`
}

type LoginRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	PortalKey string `json:"portalKey"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

type LoginResult struct {
	Session   *SessionView
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}
