package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/identity"
)

type Profile struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email         string        `gorm:"type:varchar(320);not null;uniqueIndex" json:"email"`
	FullName      string        `gorm:"type:varchar(255)" json:"full_name"`
	Role          identity.Role `gorm:"type:varchar(32);not null;default:'subscriber';index" json:"role"`
	IsSuperUser   bool          `gorm:"not null;default:false" json:"is_super_user"`
	FreeTrialUsed bool          `gorm:"not null;default:false" json:"free_trial_used"`
	PasswordHash  *string       `gorm:"type:text" json:"-"`
	Phone         *string       `gorm:"type:varchar(64)" json:"phone,omitempty"`
	CompanyName   *string       `gorm:"type:varchar(255)" json:"company_name,omitempty"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// SuperUserView is the shape returned by the super-user listing.
type SuperUserView struct {
	ID          snowflake.ID `json:"id"`
	Email       string       `json:"email"`
	FullName    string       `json:"full_name"`
	IsSuperUser bool         `json:"is_super_user"`
}
