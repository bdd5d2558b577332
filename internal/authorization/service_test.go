package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedAudit struct {
	action   string
	metadata map[string]any
}

type fakeAudit struct {
	entries []recordedAudit
}

func (f *fakeAudit) AuditLog(_ context.Context, _ *snowflake.ID, _ string, _ *string, action string, _ string, _ *string, metadata map[string]any) error {
	f.entries = append(f.entries, recordedAudit{action: action, metadata: metadata})
	return nil
}

func (f *fakeAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestService(t *testing.T) (Service, *fakeAudit, snowflake.ID, snowflake.ID, snowflake.ID) {
	t.Helper()
	conn, err := db.OpenSQLiteMemory("authz_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&orgdomain.Profile{}))

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	orgID, adminID, memberID := snowflake.ID(10), snowflake.ID(20), snowflake.ID(30)
	now := time.Now().UTC()
	require.NoError(t, conn.Create(&[]orgdomain.Profile{
		{ID: adminID, OrgID: orgID, FullName: "Ada", Email: "ada@example.com", IsAdmin: true, CreatedAt: now, UpdatedAt: now},
		{ID: memberID, OrgID: orgID, FullName: "Max", Email: "max@example.com", CreatedAt: now, UpdatedAt: now},
	}).Error)

	audit := &fakeAudit{}
	svc := NewService(Params{DB: conn, Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit})
	return svc, audit, orgID, adminID, memberID
}

func TestAuthorizeByProfileRole(t *testing.T) {
	svc, _, orgID, adminID, memberID := newTestService(t)
	ctx := context.Background()
	admin := "user:" + adminID.String()
	member := "user:" + memberID.String()

	cases := []struct {
		name    string
		actor   string
		object  string
		action  string
		allowed bool
	}{
		{"member writes tasks", member, ObjectTask, ActionTaskWrite, true},
		{"member writes events", member, ObjectCalendarEvent, ActionCalendarEventWrite, true},
		{"member views teams", member, ObjectTeam, ActionTeamView, true},
		{"member cannot write teams", member, ObjectTeam, ActionTeamWrite, false},
		{"member cannot delete projects", member, ObjectProject, ActionProjectDelete, false},
		{"member cannot read audit logs", member, ObjectAuditLog, ActionAuditLogView, false},
		{"admin writes teams", admin, ObjectTeam, ActionTeamWrite, true},
		{"admin deletes projects", admin, ObjectProject, ActionProjectDelete, true},
		{"admin manages users", admin, ObjectUser, ActionUserManage, true},
		{"system dispatches notifications", "system", ObjectNotification, ActionNotificationDispatch, true},
		{"system cannot write projects", "system", ObjectProject, ActionProjectWrite, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.actor, orgID.String(), tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeRejectsOutsiders(t *testing.T) {
	svc, audit, orgID, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Authorize(ctx, "user:999", orgID.String(), ObjectTask, ActionTaskView)
	assert.ErrorIs(t, err, ErrForbidden)
	require.NotEmpty(t, audit.entries)
	assert.Equal(t, "authorization.denied", audit.entries[len(audit.entries)-1].action)

	assert.ErrorIs(t, svc.Authorize(ctx, "", orgID.String(), ObjectTask, ActionTaskView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "robot:1", orgID.String(), ObjectTask, ActionTaskView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:20", "", ObjectTask, ActionTaskView), ErrInvalidOrganization)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:20", orgID.String(), "", ActionTaskView), ErrInvalidObject)
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	conn, err := db.OpenSQLiteMemory("authz_role_change")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&orgdomain.Profile{}))
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	svc := NewService(Params{DB: conn, Log: zap.NewNop(), Enforcer: enforcer})

	now := time.Now().UTC()
	profile := orgdomain.Profile{ID: 7, OrgID: 1, FullName: "Kim", Email: "kim@example.com", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&profile).Error)

	ctx := context.Background()
	assert.ErrorIs(t, svc.Authorize(ctx, "user:7", "1", ObjectTeam, ActionTeamWrite), ErrForbidden)

	require.NoError(t, conn.Model(&orgdomain.Profile{}).Where("id = ? AND org_id = ?", 7, 1).Update("is_admin", true).Error)
	assert.NoError(t, svc.Authorize(ctx, "user:7", "1", ObjectTeam, ActionTeamWrite))
}
