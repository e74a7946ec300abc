package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/clock"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/identity"
	"github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/smallbiznis/lexdraft/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Authz         authorization.Service
	AuditSvc      auditdomain.Service
	CommissionSvc commissiondomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	authz         authorization.Service
	auditSvc      auditdomain.Service
	commissionSvc commissiondomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("profile.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		authz:         p.Authz,
		auditSvc:      p.AuditSvc,
		commissionSvc: p.CommissionSvc,
	}
}

// EnsureProfile returns the profile matching the id or email, creating a
// subscriber profile when none exists. The boolean reports creation.
func (s *Service) EnsureProfile(ctx context.Context, req domain.EnsureProfileRequest) (*domain.Profile, bool, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, false, err
	}

	if req.UserID != 0 {
		existing, err := s.repo.FindByID(ctx, s.db, req.UserID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	id := req.UserID
	if id == 0 {
		id = s.genID.Generate()
	}
	now := s.clock.Now()
	profile := &domain.Profile{
		ID:           id,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         identity.RoleSubscriber,
		PasswordHash: req.PasswordHash,
		Phone:        trimOptional(req.Phone),
		CompanyName:  trimOptional(req.CompanyName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, profile); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByEmail(ctx, s.db, email)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.log.Info("profile created", zap.String("user_id", profile.ID.String()))
	return profile, true, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Profile, error) {
	if id == 0 {
		return nil, domain.ErrInvalidUserID
	}
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	profile, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) ListProfiles(ctx context.Context, actor identity.Actor, req domain.ListProfilesRequest) (domain.ListProfilesResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapListUsers); err != nil {
		return domain.ListProfilesResponse{}, err
	}

	filter := domain.ListFilter{Search: req.Search}
	if strings.TrimSpace(req.Role) != "" {
		role, err := identity.ParseRole(req.Role)
		if err != nil {
			return domain.ListProfilesResponse{}, err
		}
		filter.Role = role
	}

	pageSize := req.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultListPageSize
	case pageSize > maxListPageSize:
		pageSize = maxListPageSize
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	items, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListProfilesResponse{}, err
	}
	profiles := make([]domain.Profile, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		profiles = append(profiles, *item)
	}
	return domain.ListProfilesResponse{
		Profiles: profiles,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *Service) ListSuperUsers(ctx context.Context, actor identity.Actor) ([]domain.SuperUserView, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapManageUsers); err != nil {
		return nil, err
	}
	items, err := s.repo.ListSuperUsers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	views := make([]domain.SuperUserView, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		views = append(views, domain.SuperUserView{
			ID:          item.ID,
			Email:       item.Email,
			FullName:    item.FullName,
			IsSuperUser: item.IsSuperUser,
		})
	}
	return views, nil
}

// SetSuperUser grants or revokes the super-user flag. Revoking is refused when
// it would leave no super-user behind.
func (s *Service) SetSuperUser(ctx context.Context, actor identity.Actor, userID snowflake.ID, isSuperUser bool) (*domain.Profile, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapManageUsers); err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUserID
	}
	if userID == actor.UserID {
		return nil, domain.ErrSelfModification
	}

	var updated *domain.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.repo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.ErrNotFound
		}

		if !isSuperUser && target.IsSuperUser {
			if err := s.ensureNotLastSuperUser(ctx, tx); err != nil {
				return err
			}
		}

		if err := s.repo.SetSuperUser(ctx, tx, userID, isSuperUser, s.clock.Now()); err != nil {
			return err
		}
		updated, err = s.repo.FindByID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	action := auditdomain.SecuritySuperUserGranted
	if !isSuperUser {
		action = auditdomain.SecuritySuperUserRevoked
	}
	actorID := actor.UserID
	_ = s.auditSvc.RecordSecurityEvent(ctx, auditdomain.SecurityEvent{
		UserID: &actorID,
		Action: action,
		Details: map[string]any{
			"target_user_id": userID.String(),
			"target_email":   updated.Email,
		},
	})
	return updated, nil
}

// PromoteUser changes a user's role. Admins never keep the super-user flag
// through promotion; employees get a referral coupon when they have none.
func (s *Service) PromoteUser(ctx context.Context, actor identity.Actor, userID snowflake.ID, rawRole string) (*domain.Profile, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.CapManageUsers); err != nil {
		return nil, err
	}
	role, err := identity.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUserID
	}
	if userID == actor.UserID {
		return nil, domain.ErrSelfModification
	}

	var (
		previous identity.Role
		updated  *domain.Profile
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.repo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.ErrNotFound
		}
		previous = target.Role

		isSuperUser := target.IsSuperUser
		if role == identity.RoleAdmin {
			if target.IsSuperUser {
				if err := s.ensureNotLastSuperUser(ctx, tx); err != nil {
					return err
				}
			}
			isSuperUser = false
		}

		if err := s.repo.SetRole(ctx, tx, userID, role, isSuperUser, s.clock.Now()); err != nil {
			return err
		}

		if role == identity.RoleEmployee {
			name := target.FullName
			if strings.TrimSpace(name) == "" {
				name = strings.Split(target.Email, "@")[0]
			}
			if _, err := s.commissionSvc.EnsureEmployeeCoupon(ctx, tx, userID, name); err != nil {
				return err
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	actorID := actor.UserID
	_ = s.auditSvc.RecordSecurityEvent(ctx, auditdomain.SecurityEvent{
		UserID: &actorID,
		Action: auditdomain.SecurityRolePromoted,
		Details: map[string]any{
			"target_user_id": userID.String(),
			"old_role":       previous.String(),
			"new_role":       role.String(),
		},
	})
	return updated, nil
}

func (s *Service) GrantPurchasedSuperUser(ctx context.Context, tx *gorm.DB, userID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUserID
	}
	if tx == nil {
		tx = s.db
	}
	target, err := s.repo.FindByID(ctx, tx, userID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.ErrNotFound
	}
	if target.IsSuperUser {
		return nil
	}
	if err := s.repo.SetSuperUser(ctx, tx, userID, true, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("super-user granted by coupon purchase", zap.String("user_id", userID.String()))
	return nil
}

func (s *Service) ensureNotLastSuperUser(ctx context.Context, tx *gorm.DB) error {
	count, err := s.repo.CountSuperUsers(ctx, tx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return domain.ErrLastSuperUser
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.Join(domain.ErrInvalidEmail, err)
	}
	return email, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
