package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrWeakPassword       = errors.New("password_too_short")
	ErrUserExists         = errors.New("user_already_exists")
	ErrInvalidPortalKey   = errors.New("invalid_portal_key")
	ErrAdminRequired      = errors.New("admin_required")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrInvalidSession     = errors.New("invalid_session")
)
