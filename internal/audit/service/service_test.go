package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/audit/repository"
	"github.com/smallbiznis/taskboard/internal/auditcontext"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/orgcontext"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/smallbiznis/taskboard/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) auditdomain.Service {
	t.Helper()
	conn, err := db.OpenSQLiteMemory("audit_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{DB: conn, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func TestAuditLogEnrichesFromContext(t *testing.T) {
	svc := newTestService(t)
	orgID := snowflake.ID(42)

	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	ctx = auditcontext.WithActor(ctx, "user", "7")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithTaskID(ctx, "99")

	target := "99"
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "task.upsert", "task", &target, map[string]any{
		"token": "reset_abcdefwxyz",
		"email": "ana@example.com",
		"title": "ship it",
	}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "7", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "99", entry.Metadata["task_id"])
	assert.Equal(t, "****wxyz", entry.Metadata["token"])
	assert.Equal(t, "a****@example.com", entry.Metadata["email"])
	assert.Equal(t, "ship it", entry.Metadata["title"])
}

func TestAuditLogRejectsMalformedAction(t *testing.T) {
	svc := newTestService(t)
	for _, action := range []string{" ", "task", "task.", ".delete", "Task.Delete", "task.delete.now", "task-delete"} {
		err := svc.AuditLog(context.Background(), nil, "system", nil, action, "task", nil, nil)
		assert.ErrorIs(t, err, auditdomain.ErrInvalidAction, action)
	}
	assert.True(t, auditdomain.ValidAction("calendar_event.create"))
	assert.True(t, auditdomain.ValidAction("user.login_failed"))
}

func TestAuditLogStampsClockToTheSecond(t *testing.T) {
	conn, err := db.OpenSQLiteMemory("audit_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 2, 10, 30, 15, 750_000_000, time.UTC))
	svc := NewService(Params{DB: conn, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(), Clock: clk})

	orgID := snowflake.ID(3)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "project.create", "", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.True(t, entry.CreatedAt.Equal(time.Date(2026, 4, 2, 10, 30, 15, 0, time.UTC)))
	assert.Equal(t, "system", entry.ActorType)
	assert.Nil(t, entry.ActorID)
	assert.Equal(t, "unknown", entry.TargetType)
}

func TestListPaginatesAndValidates(t *testing.T) {
	svc := newTestService(t)
	orgID := snowflake.ID(5)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, &orgID, "system", nil, "team.upsert", "team", nil, nil))
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "garbage"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}

func TestListFiltersByActionFamilyAndActor(t *testing.T) {
	svc := newTestService(t)
	orgID := snowflake.ID(8)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	ada, max := "11", "22"
	require.NoError(t, svc.AuditLog(ctx, &orgID, "user", &ada, "task.upsert", "task", nil, nil))
	require.NoError(t, svc.AuditLog(ctx, &orgID, "user", &max, "task.delete", "task", nil, nil))
	require.NoError(t, svc.AuditLog(ctx, &orgID, "user", &ada, "team.upsert", "team", nil, nil))

	tasks, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "task."})
	require.NoError(t, err)
	assert.Len(t, tasks.AuditLogs, 2)

	wildcard, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "task.*", ActorID: ada})
	require.NoError(t, err)
	require.Len(t, wildcard.AuditLogs, 1)
	assert.Equal(t, "task.upsert", wildcard.AuditLogs[0].Action)

	exact, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "team.upsert"})
	require.NoError(t, err)
	assert.Len(t, exact.AuditLogs, 1)
}
