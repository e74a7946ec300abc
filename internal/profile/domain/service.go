package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"gorm.io/gorm"
)

type EnsureProfileRequest struct {
	UserID       snowflake.ID
	Email        string
	FullName     string
	PasswordHash *string
	Phone        *string
	CompanyName  *string
}

type ListProfilesRequest struct {
	Role     string
	Search   string
	PageSize int
	Page     int
}

type ListProfilesResponse struct {
	Profiles []Profile `json:"profiles"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

type Service interface {
	EnsureProfile(ctx context.Context, req EnsureProfileRequest) (*Profile, bool, error)
	Get(ctx context.Context, id snowflake.ID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	ListProfiles(ctx context.Context, actor identity.Actor, req ListProfilesRequest) (ListProfilesResponse, error)
	ListSuperUsers(ctx context.Context, actor identity.Actor) ([]SuperUserView, error)
	SetSuperUser(ctx context.Context, actor identity.Actor, userID snowflake.ID, isSuperUser bool) (*Profile, error)
	PromoteUser(ctx context.Context, actor identity.Actor, userID snowflake.ID, role string) (*Profile, error)

	// GrantPurchasedSuperUser sets the super-user flag for a buyer of a full
	// discount coupon. It runs on the caller's transaction.
	GrantPurchasedSuperUser(ctx context.Context, tx *gorm.DB, userID snowflake.ID) error
}
