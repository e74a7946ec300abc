package domain

import "errors"

var (
	ErrNotFound         = errors.New("profile_not_found")
	ErrInvalidUserID    = errors.New("invalid_user_id")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrSelfModification = errors.New("self_modification_forbidden")
	ErrLastSuperUser    = errors.New("last_super_user")
)
