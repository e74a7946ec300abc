package authorization

import (
	"errors"

	"github.com/smallbiznis/lexdraft/internal/identity"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	ObjectLetter     = "letter"
	ObjectCheckout   = "checkout"
	ObjectUser       = "user"
	ObjectCommission = "commission"
	ObjectCoupon     = "coupon"
	ObjectAnalytics  = "analytics"
)

// Capability is an (object, action) pair checked against the policy store.
type Capability struct {
	Object string
	Action string
}

func (c Capability) String() string { return c.Object + "." + c.Action }

var (
	CapGenerateLetter     = Capability{ObjectLetter, "generate"}
	CapReviewLetter       = Capability{ObjectLetter, "review"}
	CapPurchase           = Capability{ObjectCheckout, "purchase"}
	CapListUsers          = Capability{ObjectUser, "list"}
	CapManageUsers        = Capability{ObjectUser, "manage"}
	CapViewOwnCommissions = Capability{ObjectCommission, "view_own"}
	CapManageCommissions  = Capability{ObjectCommission, "manage"}
	CapViewOwnCoupons     = Capability{ObjectCoupon, "view_own"}
	CapManageCoupons      = Capability{ObjectCoupon, "manage"}
	CapViewAnalytics      = Capability{ObjectAnalytics, "view"}
)

const (
	subjectSuperAdmin = "role:superadmin"
	subjectAdmin      = "role:admin"
	subjectEmployee   = "role:employee"
	subjectSubscriber = "role:subscriber"
	// admins outside an admin portal session carry no capabilities
	subjectUnelevated = "role:unelevated"
)

// SubjectFor maps an actor onto the policy subject it is evaluated as.
func SubjectFor(actor identity.Actor) string {
	switch actor.Role {
	case identity.RoleAdmin:
		if !actor.IsAdmin() {
			return subjectUnelevated
		}
		if actor.IsSuperUser {
			return subjectSuperAdmin
		}
		return subjectAdmin
	case identity.RoleEmployee:
		return subjectEmployee
	case identity.RoleSubscriber:
		return subjectSubscriber
	default:
		return ""
	}
}

func seedRules() (policies [][]string, groupings [][]string) {
	policies = [][]string{
		{subjectSubscriber, CapGenerateLetter.Object, CapGenerateLetter.Action},
		{subjectSubscriber, CapPurchase.Object, CapPurchase.Action},

		{subjectEmployee, CapPurchase.Object, CapPurchase.Action},
		{subjectEmployee, CapViewOwnCommissions.Object, CapViewOwnCommissions.Action},
		{subjectEmployee, CapViewOwnCoupons.Object, CapViewOwnCoupons.Action},

		{subjectAdmin, CapReviewLetter.Object, CapReviewLetter.Action},
		{subjectAdmin, CapListUsers.Object, CapListUsers.Action},
		{subjectAdmin, CapManageCommissions.Object, CapManageCommissions.Action},
		{subjectAdmin, CapManageCoupons.Object, CapManageCoupons.Action},
		{subjectAdmin, CapViewAnalytics.Object, CapViewAnalytics.Action},

		{subjectSuperAdmin, CapManageUsers.Object, CapManageUsers.Action},
	}
	groupings = [][]string{
		{subjectSuperAdmin, subjectAdmin},
	}
	return policies, groupings
}
