package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	"github.com/smallbiznis/taskboard/internal/authorization"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testOrgID   = snowflake.ID(100)
	otherOrgID  = snowflake.ID(200)
	adminUserID = snowflake.ID(11)
	memberID    = snowflake.ID(22)

	adminToken  = "admin-token"
	memberToken = "member-token"
)

type fakeAuthService struct {
	authdomain.Service
	sessions     map[string]*authdomain.Session
	loginResult  *authdomain.LoginResult
	loginErr     error
	orgContextID *int64
}

func (f *fakeAuthService) Authenticate(_ context.Context, raw string) (*authdomain.Session, error) {
	s, ok := f.sessions[raw]
	if !ok {
		return nil, authdomain.ErrInvalidSession
	}
	copied := *s
	return &copied, nil
}

func (f *fakeAuthService) Login(_ context.Context, _ authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	return f.loginResult, f.loginErr
}

func (f *fakeAuthService) UpdateSessionOrgContext(_ context.Context, _ snowflake.ID, activeOrgID *int64, _ []int64) error {
	f.orgContextID = activeOrgID
	return nil
}

type fakeOrgService struct {
	organizationdomain.Service
	profiles map[snowflake.ID]map[snowflake.ID]*organizationdomain.Profile
}

func (f *fakeOrgService) GetProfile(_ context.Context, orgID, userID snowflake.ID) (*organizationdomain.Profile, error) {
	if p, ok := f.profiles[orgID][userID]; ok {
		return p, nil
	}
	return nil, organizationdomain.ErrProfileNotFound
}

func (f *fakeOrgService) ResolveOrgID(_ context.Context, userID snowflake.ID) (snowflake.ID, error) {
	for orgID, users := range f.profiles {
		if _, ok := users[userID]; ok {
			return orgID, nil
		}
	}
	return 0, organizationdomain.ErrNoOrganization
}

func (f *fakeOrgService) ListOrganizationsByUser(_ context.Context, userID snowflake.ID) ([]organizationdomain.OrganizationListResponseItem, error) {
	var out []organizationdomain.OrganizationListResponseItem
	for orgID, users := range f.profiles {
		if p, ok := users[userID]; ok {
			out = append(out, organizationdomain.OrganizationListResponseItem{ID: orgID.String(), Role: p.Role()})
		}
	}
	return out, nil
}

type fakeAuthz struct {
	denied map[string]bool
	calls  []string
}

func (f *fakeAuthz) Authorize(_ context.Context, actor, orgID, object, action string) error {
	f.calls = append(f.calls, actor+"|"+orgID+"|"+action)
	if f.denied[action] {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeTaskService struct {
	taskdomain.Service
	upserts []taskdomain.UpsertRequest
	deleted []snowflake.ID
	filter  taskdomain.ListFilter
}

func (f *fakeTaskService) Upsert(_ context.Context, orgID snowflake.ID, req taskdomain.UpsertRequest) (*taskdomain.Task, error) {
	f.upserts = append(f.upserts, req)
	return &taskdomain.Task{ID: 900, OrgID: orgID, ProjectID: req.ProjectID, Status: taskdomain.StatusTodo}, nil
}

func (f *fakeTaskService) Delete(_ context.Context, _ snowflake.ID, taskID snowflake.ID) error {
	f.deleted = append(f.deleted, taskID)
	return nil
}

func (f *fakeTaskService) List(_ context.Context, _ snowflake.ID, filter taskdomain.ListFilter) ([]*taskdomain.Task, error) {
	f.filter = filter
	return []*taskdomain.Task{}, nil
}

type fakeTeamService struct {
	teamdomain.Service
	upserts []teamdomain.UpsertRequest
	members []teamdomain.AddMemberRequest
}

func (f *fakeTeamService) Upsert(_ context.Context, orgID snowflake.ID, req teamdomain.UpsertRequest) (*teamdomain.Team, error) {
	f.upserts = append(f.upserts, req)
	return &teamdomain.Team{ID: 700, OrgID: orgID, Name: req.Name}, nil
}

func (f *fakeTeamService) AddMember(_ context.Context, orgID snowflake.ID, req teamdomain.AddMemberRequest) (*teamdomain.TeamMember, error) {
	f.members = append(f.members, req)
	return &teamdomain.TeamMember{OrgID: orgID, TeamID: req.TeamID, UserID: req.UserID, Role: teamdomain.DefaultMemberRole}, nil
}

type fakeProjectService struct {
	projectdomain.Service
	deleted []snowflake.ID
}

func (f *fakeProjectService) Delete(_ context.Context, _ snowflake.ID, projectID snowflake.ID) error {
	f.deleted = append(f.deleted, projectID)
	return nil
}

type fakeAuditService struct {
	auditdomain.Service
	actions []string
}

func (f *fakeAuditService) AuditLog(_ context.Context, _ *snowflake.ID, _ string, _ *string, action, _ string, _ *string, _ map[string]any) error {
	f.actions = append(f.actions, action)
	return nil
}

type testServer struct {
	server   *Server
	auth     *fakeAuthService
	authz    *fakeAuthz
	tasks    *fakeTaskService
	teams    *fakeTeamService
	projects *fakeProjectService
	audit    *fakeAuditService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		auth: &fakeAuthService{sessions: map[string]*authdomain.Session{
			adminToken:  {ID: 1, UserID: adminUserID},
			memberToken: {ID: 2, UserID: memberID},
		}},
		authz:    &fakeAuthz{denied: map[string]bool{}},
		tasks:    &fakeTaskService{},
		teams:    &fakeTeamService{},
		projects: &fakeProjectService{},
		audit:    &fakeAuditService{},
	}
	orgs := &fakeOrgService{profiles: map[snowflake.ID]map[snowflake.ID]*organizationdomain.Profile{
		testOrgID: {
			adminUserID: {ID: adminUserID, OrgID: testOrgID, FullName: "Ada", IsAdmin: true},
			memberID:    {ID: memberID, OrgID: testOrgID, FullName: "Max"},
		},
	}}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	ts.server = NewServer(ServerParams{
		Gin:        engine,
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)),
		Settings:   config.NewStaticBoardSettings(config.DefaultBoard()),
		Authsvc:    ts.auth,
		Sessions:   session.NewManager(config.Config{}),
		AuthzSvc:   ts.authz,
		AuditSvc:   ts.audit,
		OrgSvc:     orgs,
		TeamSvc:    ts.teams,
		ProjectSvc: ts.projects,
		TaskSvc:    ts.tasks,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}
