package seed

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/lexdraft/internal/auth/password"
	"github.com/smallbiznis/lexdraft/internal/identity"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&profiledomain.Profile{}))
	return db
}

func TestEnsureBootstrapAdminCreatesSuperUserOnce(t *testing.T) {
	db := newDB(t)
	cfg := AdminConfig{Email: "Root@Example.com", Password: "s3cret-pass", FullName: "Root"}

	require.NoError(t, EnsureBootstrapAdmin(db, cfg, zap.NewNop()))
	require.NoError(t, EnsureBootstrapAdmin(db, cfg, zap.NewNop()))

	var admins []profiledomain.Profile
	require.NoError(t, db.Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root@example.com", admins[0].Email)
	assert.Equal(t, identity.RoleAdmin, admins[0].Role)
	assert.True(t, admins[0].IsSuperUser)
	require.NotNil(t, admins[0].PasswordHash)
	assert.True(t, password.Verify("s3cret-pass", *admins[0].PasswordHash))
}

func TestEnsureBootstrapAdminSkipsWithoutCredentials(t *testing.T) {
	db := newDB(t)
	require.NoError(t, EnsureBootstrapAdmin(db, AdminConfig{}, zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&profiledomain.Profile{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnsureBootstrapAdminRejectsShortPassword(t *testing.T) {
	db := newDB(t)
	err := EnsureBootstrapAdmin(db, AdminConfig{Email: "a@b.co", Password: "short"}, zap.NewNop())
	assert.ErrorIs(t, err, password.ErrTooShort)
}
