package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuthRejectsMissingSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = ts.do(t, http.MethodGet, "/api/tasks", "stale-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrgContextRejectsForeignOrgHeader(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: memberToken})
	req.Header.Set(HeaderOrg, otherOrgID.String())
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrgContextUsesActiveSessionOrg(t *testing.T) {
	ts := newTestServer(t)
	active := int64(otherOrgID)
	ts.auth.sessions["roaming"] = &authdomain.Session{ID: 3, UserID: memberID, ActiveOrgID: &active}

	rec := ts.do(t, http.MethodGet, "/api/tasks", "roaming", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminOnlyRoutes(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/audit-logs"},
		{http.MethodPost, "/api/teams"},
		{http.MethodDelete, "/api/projects/5"},
		{http.MethodPatch, "/api/users/22/admin"},
		{http.MethodPost, "/api/users/invites"},
	} {
		rec := ts.do(t, tc.method, tc.path, memberToken, map[string]any{})
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.path)
	}

	rec := ts.do(t, http.MethodPost, "/api/teams", adminToken, map[string]any{"name": "Ops"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, ts.teams.upserts, 1)
	assert.Equal(t, "Ops", ts.teams.upserts[0].Name)
}

func TestListTasksFilters(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/tasks?assignee_id=me&status=doing&open=true&due_on=2026-06-03&project_id=7", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	filter := ts.tasks.filter
	require.NotNil(t, filter.AssigneeID)
	assert.Equal(t, memberID, *filter.AssigneeID)
	assert.Equal(t, taskdomain.StatusInProgress, filter.Status)
	assert.True(t, filter.OpenOnly)
	require.NotNil(t, filter.DueOn)
	assert.Equal(t, "2026-06-03", filter.DueOn.String())
	require.NotNil(t, filter.ProjectID)
	assert.Equal(t, snowflake.ID(7), *filter.ProjectID)

	rec = ts.do(t, http.MethodGet, "/api/tasks?status=blocked", memberToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyProfileReportsRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/profile", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"admin"`, string(mustField(t, rec.Body.Bytes(), "role")))

	rec = ts.do(t, http.MethodGet, "/api/profile", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"member"`, string(mustField(t, rec.Body.Bytes(), "role")))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.loginResult = &authdomain.LoginResult{
		Session:   &authdomain.SessionView{Metadata: map[string]any{"user_id": memberID.String()}},
		User:      &authdomain.User{ID: memberID, Email: "max@example.com"},
		RawToken:  "fresh-token",
		ExpiresAt: time.Now().Add(time.Hour),
		SessionID: 2,
	}

	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "max@example.com", "password": "secret-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, "fresh-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)

	require.NotNil(t, ts.auth.orgContextID)
	assert.Equal(t, int64(testOrgID), *ts.auth.orgContextID)
	assert.Contains(t, ts.audit.actions, "user.login")
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t)

	ts.auth.loginErr = authdomain.ErrInvalidCredentials
	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "max@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, ts.audit.actions, "user.login_failed")

	ts.auth.loginErr = authdomain.ErrTooManyAttempts
	rec = ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "max@example.com", "password": "nope"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
