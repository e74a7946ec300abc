package migration

import (
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	authdomain "github.com/smallbiznis/lexdraft/internal/auth/domain"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&profiledomain.Profile{},
		&authdomain.Session{},
		&letterdomain.Letter{},
		&subscriptiondomain.Subscription{},
		&commissiondomain.EmployeeCoupon{},
		&commissiondomain.Commission{},
		&commissiondomain.CouponUsage{},
		&auditdomain.LetterAuditTrail{},
		&auditdomain.SecurityAuditLog{},
	}
}

// AutoMigrate builds the schema from the models. It backs sqlite and mysql
// deployments and the test suites; postgres uses the versioned SQL files.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
