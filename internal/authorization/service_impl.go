package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/boxoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectTier            = "tier"
	ObjectInventory       = "inventory"
	ObjectTicket          = "ticket"
	ObjectSubmission      = "submission"
	ObjectReview          = "review"
	ObjectGenre           = "genre"
	ObjectScreeningConfig = "screening_config"
	ObjectRole            = "role"
	ObjectAudit           = "audit"
)

const (
	ActionTierCreate   = "tier.create"
	ActionTierCapacity = "tier.capacity"

	ActionInventoryView      = "inventory.view"
	ActionInventoryReconcile = "inventory.reconcile"

	ActionTicketRedeem = "ticket.redeem"
	ActionTicketCancel = "ticket.cancel"

	ActionSubmissionDecide = "submission.decide"

	ActionReviewRecord  = "review.record"
	ActionReviewViewAll = "review.view_all"

	ActionGenreManage = "genre.manage"

	ActionScreeningConfigUpdate = "screening_config.update"

	ActionRoleAssign = "role.assign"

	ActionAuditView = "audit.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// BootstrapAdmin grants the admin role to the configured user on startup.
func BootstrapAdmin(cfg config.Config, svc Service, log *zap.Logger) error {
	userID := strings.TrimSpace(cfg.BootstrapAdminUserID)
	if userID == "" {
		return nil
	}
	if err := svc.AssignRole(context.Background(), userID, RoleAdmin); err != nil {
		return err
	}
	log.Named("authorization").Info("bootstrap admin ensured", zap.String("user_id", userID))
	return nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	subject, err := subjectFor(actor)
	if err != nil {
		return err
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) AssignRole(ctx context.Context, userID string, role string) error {
	subject, err := subjectFor(userID)
	if err != nil {
		return err
	}
	roleName, err := roleNameFor(role)
	if err != nil {
		return err
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if _, err := s.enforcer.AddGroupingPolicy(subject, roleName); err != nil {
		return err
	}
	s.log.Info("role assigned", zap.String("subject", subject), zap.String("role", roleName))
	return nil
}

func (s *ServiceImpl) RevokeRole(ctx context.Context, userID string, role string) (bool, error) {
	subject, err := subjectFor(userID)
	if err != nil {
		return false, err
	}
	roleName, err := roleNameFor(role)
	if err != nil {
		return false, err
	}
	return s.enforcer.RemoveGroupingPolicy(subject, roleName)
}

func (s *ServiceImpl) RolesFor(ctx context.Context, userID string) ([]string, error) {
	subject, err := subjectFor(userID)
	if err != nil {
		return nil, err
	}
	direct, err := s.enforcer.GetRolesForUser(subject)
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(direct))
	for _, r := range direct {
		roles = append(roles, strings.TrimPrefix(r, "role:"))
	}
	sort.Strings(roles)
	return roles, nil
}

func (s *ServiceImpl) IsStaff(ctx context.Context, userID string) (bool, error) {
	subject, err := subjectFor(userID)
	if err != nil {
		return false, err
	}
	return s.enforcer.Enforce(subject, ObjectReview, ActionReviewViewAll)
}

func subjectFor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", ErrInvalidActor
	}
	if actor == "system" {
		return actor, nil
	}
	actor = strings.TrimPrefix(actor, "user:")
	if actor == "" || strings.ContainsAny(actor, ", \t") {
		return "", ErrInvalidActor
	}
	return fmt.Sprintf("user:%s", actor), nil
}

func roleNameFor(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return "role:admin", nil
	case RoleStaff:
		return "role:staff", nil
	case RoleReviewer:
		return "role:reviewer", nil
	default:
		return "", ErrInvalidRole
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Reviewer permissions
		{"role:reviewer", ObjectReview, ActionReviewRecord},

		// Staff permissions
		{"role:staff", ObjectSubmission, ActionSubmissionDecide},
		{"role:staff", ObjectReview, ActionReviewViewAll},
		{"role:staff", ObjectGenre, ActionGenreManage},
		{"role:staff", ObjectInventory, ActionInventoryView},
		{"role:staff", ObjectTicket, ActionTicketRedeem},

		// Admin permissions
		{"role:admin", ObjectTier, ActionTierCreate},
		{"role:admin", ObjectTier, ActionTierCapacity},
		{"role:admin", ObjectInventory, ActionInventoryReconcile},
		{"role:admin", ObjectTicket, ActionTicketCancel},
		{"role:admin", ObjectScreeningConfig, ActionScreeningConfigUpdate},
		{"role:admin", ObjectRole, ActionRoleAssign},
		{"role:admin", ObjectAudit, ActionAuditView},

		// System permissions (for automated processes)
		{"system", ObjectInventory, ActionInventoryReconcile},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	inheritance := [][]string{
		{"role:admin", "role:staff"},
		{"role:staff", "role:reviewer"},
	}
	for _, rule := range inheritance {
		has, err := enforcer.HasGroupingPolicy(rule)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(rule); err != nil {
			return err
		}
	}
	return nil
}
