package server

import (
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskUpsertShapesArguments(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/task_upsert", memberToken, map[string]any{
		"_org_id":      "100",
		"_project_id":  7,
		"_description": nil,
		"_due_date":    nil,
		"_assignee_id": "22",
		"_status":      "doing",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.tasks.upserts, 1)

	req := ts.tasks.upserts[0]
	assert.Nil(t, req.ID)
	assert.Equal(t, snowflake.ID(7), req.ProjectID)
	assert.Nil(t, req.Title)
	require.NotNil(t, req.Description)
	assert.Equal(t, "", *req.Description)
	assert.Nil(t, req.DueDate)
	assert.True(t, req.ClearDueDate)
	require.NotNil(t, req.AssigneeID)
	assert.Equal(t, memberID, *req.AssigneeID)
	assert.False(t, req.ClearAssignee)
	assert.Nil(t, req.TeamID)
	assert.False(t, req.ClearTeam)
	require.NotNil(t, req.Status)
	assert.Equal(t, "doing", *req.Status)

	assert.Contains(t, ts.authz.calls, "user:22|100|task.write")
}

func TestTaskUpsertRequiresProject(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/task_upsert", memberToken, map[string]any{"_title": "Write docs"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "project_id", payload.Errors[0].Field)
	assert.Empty(t, ts.tasks.upserts)
}

func TestRPCRejectsForeignOrgArgument(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/task_upsert", memberToken, map[string]any{
		"_org_id":     otherOrgID.String(),
		"_project_id": "7",
		"_title":      "Sneaky",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.tasks.upserts)
}

func TestRPCAdminProceduresRejectMembers(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{"team_upsert", "team_delete", "team_add_member", "team_remove_member", "project_upsert", "project_delete"} {
		rec := ts.do(t, http.MethodPost, "/rpc/"+name, memberToken, map[string]any{"_id": "5", "_name": "X"})
		assert.Equal(t, http.StatusForbidden, rec.Code, name)
	}
	assert.Empty(t, ts.teams.upserts)
	assert.Empty(t, ts.projects.deleted)
}

func TestTeamUpsertAsAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/team_upsert", adminToken, map[string]any{
		"_org_id":      "100",
		"_name":        "Design",
		"_description": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.teams.upserts, 1)
	assert.Equal(t, "Design", ts.teams.upserts[0].Name)
	require.NotNil(t, ts.teams.upserts[0].Description)
	assert.Equal(t, "", *ts.teams.upserts[0].Description)
	assert.JSONEq(t, `"700"`, string(mustField(t, rec.Body.Bytes(), "id")))
}

func TestTeamAddMemberDefaultsRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/team_add_member", adminToken, map[string]any{
		"_org_id":  "100",
		"_team_id": "700",
		"_user_id": 22,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.teams.members, 1)
	assert.Equal(t, snowflake.ID(700), ts.teams.members[0].TeamID)
	assert.Equal(t, memberID, ts.teams.members[0].UserID)
	assert.Equal(t, "", ts.teams.members[0].Role)
}

func TestDeleteProceduresReturnNoContent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/project_delete", adminToken, map[string]any{"_id": "42"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []snowflake.ID{42}, ts.projects.deleted)

	rec = ts.do(t, http.MethodPost, "/rpc/task_delete", memberToken, map[string]any{"_id": 43})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []snowflake.ID{43}, ts.tasks.deleted)
}

func TestRPCDeniedByPolicy(t *testing.T) {
	ts := newTestServer(t)
	ts.authz.denied["task.delete"] = true

	rec := ts.do(t, http.MethodPost, "/rpc/task_delete", memberToken, map[string]any{"_id": "43"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.tasks.deleted)
}

func TestUnknownRPC(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/drop_everything", adminToken, map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRPCRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/rpc/task_delete", memberToken, []string{"not", "an", "object"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
