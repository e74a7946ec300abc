// Package seed bootstraps the first administrator of a fresh install.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/auth/password"
	"github.com/smallbiznis/lexdraft/internal/identity"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminConfig struct {
	Email    string
	Password string
	FullName string
}

// EnsureBootstrapAdmin creates a super-user admin when no super-user exists.
// It is a no-op without configured credentials or once any super-user exists.
func EnsureBootstrapAdmin(db *gorm.DB, cfg AdminConfig, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		return nil
	}
	if err := password.Validate(cfg.Password); err != nil {
		return err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var superUsers int64
		if err := tx.Model(&profiledomain.Profile{}).Where("is_super_user = ?", true).Count(&superUsers).Error; err != nil {
			return err
		}
		if superUsers > 0 {
			return nil
		}

		hashed, err := password.Hash(cfg.Password)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		var existing profiledomain.Profile
		err = tx.Where("email = ?", email).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&profiledomain.Profile{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"role":          identity.RoleAdmin,
					"is_super_user": true,
					"password_hash": hashed,
					"updated_at":    now,
				}).Error; err != nil {
				return err
			}
			log.Info("bootstrap admin promoted", zap.String("email", email))
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		admin := profiledomain.Profile{
			ID:           node.Generate(),
			Email:        email,
			FullName:     strings.TrimSpace(cfg.FullName),
			Role:         identity.RoleAdmin,
			IsSuperUser:  true,
			PasswordHash: &hashed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		log.Info("bootstrap admin created", zap.String("email", email))
		return nil
	})
}
