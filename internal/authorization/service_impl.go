package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization  = "organization"
	ObjectUser          = "user"
	ObjectTeam          = "team"
	ObjectProject       = "project"
	ObjectTask          = "task"
	ObjectCalendarEvent = "calendar_event"
	ObjectAuditLog      = "audit_log"
	ObjectNotification  = "notification"
)

const (
	ActionOrganizationView   = "organization.view"
	ActionOrganizationUpdate = "organization.update"

	ActionUserView   = "user.view"
	ActionUserInvite = "user.invite"
	ActionUserManage = "user.manage"

	ActionTeamView          = "team.view"
	ActionTeamWrite         = "team.write"
	ActionTeamDelete        = "team.delete"
	ActionTeamManageMembers = "team.manage_members"

	ActionProjectView   = "project.view"
	ActionProjectWrite  = "project.write"
	ActionProjectDelete = "project.delete"
	ActionProjectReport = "project.report"

	ActionTaskView   = "task.view"
	ActionTaskWrite  = "task.write"
	ActionTaskDelete = "task.delete"

	ActionCalendarEventView   = "calendar_event.view"
	ActionCalendarEventWrite  = "calendar_event.write"
	ActionCalendarEventDelete = "calendar_event.delete"

	ActionAuditLogView = "audit_log.view"

	ActionNotificationDispatch = "notification.dispatch"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
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
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, orgID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, string, *string, error) {
	if actor == "system" {
		roleName := "role:system"
		return actor, roleName, "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		parsedOrgID, err := snowflake.ParseString(orgID)
		userIDStr := userID.String()
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var rows []struct {
		IsAdmin bool `gorm:"column:is_admin"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT is_admin
		 FROM profiles
		 WHERE org_id = ? AND id = ?
		 LIMIT 1`,
		int64(orgID),
		int64(userID),
	).Scan(&rows).Error; err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrForbidden
	}
	if rows[0].IsAdmin {
		return RoleAdmin, nil
	}
	return RoleMember, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.granted", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionUserManage, ActionProjectDelete, ActionTeamDelete:
		return true
	default:
		return false
	}
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	memberActions := map[string][]string{
		ObjectOrganization:  {ActionOrganizationView},
		ObjectUser:          {ActionUserView},
		ObjectTeam:          {ActionTeamView},
		ObjectProject:       {ActionProjectView, ActionProjectReport},
		ObjectTask:          {ActionTaskView, ActionTaskWrite, ActionTaskDelete},
		ObjectCalendarEvent: {ActionCalendarEventView, ActionCalendarEventWrite, ActionCalendarEventDelete},
	}
	adminActions := map[string][]string{
		ObjectOrganization: {ActionOrganizationUpdate},
		ObjectUser:         {ActionUserInvite, ActionUserManage},
		ObjectTeam:         {ActionTeamWrite, ActionTeamDelete, ActionTeamManageMembers},
		ObjectProject:      {ActionProjectWrite, ActionProjectDelete},
		ObjectAuditLog:     {ActionAuditLogView},
	}
	systemActions := map[string][]string{
		ObjectNotification: {ActionNotificationDispatch},
		ObjectTask:         {ActionTaskView},
		ObjectTeam:         {ActionTeamView},
		ObjectProject:      {ActionProjectView},
		ObjectUser:         {ActionUserView},
	}

	var policies [][]string
	for object, actions := range memberActions {
		for _, action := range actions {
			policies = append(policies,
				[]string{"role:member", object, action},
				[]string{"role:admin", object, action},
			)
		}
	}
	for object, actions := range adminActions {
		for _, action := range actions {
			policies = append(policies, []string{"role:admin", object, action})
		}
	}
	for object, actions := range systemActions {
		for _, action := range actions {
			policies = append(policies, []string{"role:system", object, action})
		}
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
	return nil
}
