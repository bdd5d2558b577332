package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taskboard/internal/authorization"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
)

const (
	RPCTaskUpsert       = "task_upsert"
	RPCTaskDelete       = "task_delete"
	RPCProjectUpsert    = "project_upsert"
	RPCProjectDelete    = "project_delete"
	RPCTeamUpsert       = "team_upsert"
	RPCTeamDelete       = "team_delete"
	RPCTeamAddMember    = "team_add_member"
	RPCTeamRemoveMember = "team_remove_member"
)

type rpcFunc func(s *Server, ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error)

type rpcProcedure struct {
	object    string
	action    string
	adminOnly bool
	call      rpcFunc
}

var rpcProcedures = map[string]rpcProcedure{
	RPCTaskUpsert:       {object: authorization.ObjectTask, action: authorization.ActionTaskWrite, call: (*Server).rpcTaskUpsert},
	RPCTaskDelete:       {object: authorization.ObjectTask, action: authorization.ActionTaskDelete, call: (*Server).rpcTaskDelete},
	RPCProjectUpsert:    {object: authorization.ObjectProject, action: authorization.ActionProjectWrite, adminOnly: true, call: (*Server).rpcProjectUpsert},
	RPCProjectDelete:    {object: authorization.ObjectProject, action: authorization.ActionProjectDelete, adminOnly: true, call: (*Server).rpcProjectDelete},
	RPCTeamUpsert:       {object: authorization.ObjectTeam, action: authorization.ActionTeamWrite, adminOnly: true, call: (*Server).rpcTeamUpsert},
	RPCTeamDelete:       {object: authorization.ObjectTeam, action: authorization.ActionTeamDelete, adminOnly: true, call: (*Server).rpcTeamDelete},
	RPCTeamAddMember:    {object: authorization.ObjectTeam, action: authorization.ActionTeamManageMembers, adminOnly: true, call: (*Server).rpcTeamAddMember},
	RPCTeamRemoveMember: {object: authorization.ObjectTeam, action: authorization.ActionTeamManageMembers, adminOnly: true, call: (*Server).rpcTeamRemoveMember},
}

// CallRPC runs a named procedure. Procedures that return nothing answer 204.
func (s *Server) CallRPC(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	ctx := c.Request.Context()

	proc, ok := rpcProcedures[name]
	if !ok {
		s.obsMetrics.RecordRPC(ctx, "unknown", "not_found")
		AbortWithError(c, ErrNotFound)
		return
	}

	result, err := s.callRPC(c, proc)
	if err != nil {
		status, _ := mapError(err)
		s.obsMetrics.RecordRPC(ctx, name, rpcOutcome(status))
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordRPC(ctx, name, "ok")

	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) callRPC(c *gin.Context, proc rpcProcedure) (any, error) {
	if proc.adminOnly {
		profile, ok := profileFromContext(c)
		if !ok {
			return nil, ErrUnauthorized
		}
		if profile.Role() != organizationdomain.RoleAdmin {
			return nil, ErrForbidden
		}
	}
	if err := s.authorizeOrgActionWithContext(c, proc.object, proc.action); err != nil {
		return nil, err
	}

	args := rpcArgs{}
	if err := json.NewDecoder(c.Request.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		return nil, invalidRequestError()
	}

	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		return nil, err
	}
	argOrg, err := args.id("_org_id")
	if err != nil {
		return nil, err
	}
	if argOrg != nil && *argOrg != orgID {
		return nil, ErrForbidden
	}

	return proc.call(s, c.Request.Context(), orgID, args)
}

func rpcOutcome(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return "denied"
	default:
		return "client_error"
	}
}

func (s *Server) rpcTaskUpsert(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	var (
		req taskdomain.UpsertRequest
		err error
	)
	if req.ID, err = args.id("_id"); err != nil {
		return nil, err
	}
	if req.ProjectID, err = args.requiredID("_project_id"); err != nil {
		return nil, err
	}
	if req.Title, err = args.str("_title"); err != nil {
		return nil, err
	}
	if req.Description, err = args.nullableStr("_description"); err != nil {
		return nil, err
	}
	if req.Status, err = args.str("_status"); err != nil {
		return nil, err
	}
	if req.Priority, err = args.str("_priority"); err != nil {
		return nil, err
	}
	if req.DueDate, err = args.date("_due_date"); err != nil {
		return nil, err
	}
	req.ClearDueDate = args.cleared("_due_date")
	if req.AssigneeID, err = args.id("_assignee_id"); err != nil {
		return nil, err
	}
	req.ClearAssignee = args.cleared("_assignee_id")
	if req.TeamID, err = args.id("_team_id"); err != nil {
		return nil, err
	}
	req.ClearTeam = args.cleared("_team_id")
	if req.ParentID, err = args.id("_parent_id"); err != nil {
		return nil, err
	}
	req.ClearParent = args.cleared("_parent_id")
	if req.Labels, err = args.stringList("_labels"); err != nil {
		return nil, err
	}

	return s.taskSvc.Upsert(ctx, orgID, req)
}

func (s *Server) rpcTaskDelete(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	id, err := args.requiredID("_id")
	if err != nil {
		return nil, err
	}
	return nil, s.taskSvc.Delete(ctx, orgID, id)
}

func (s *Server) rpcProjectUpsert(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	var (
		req projectdomain.UpsertRequest
		err error
	)
	if req.ID, err = args.id("_id"); err != nil {
		return nil, err
	}
	name, err := args.str("_name")
	if err != nil {
		return nil, err
	}
	if name != nil {
		req.Name = *name
	}
	if req.Description, err = args.nullableStr("_description"); err != nil {
		return nil, err
	}
	if req.TeamID, err = args.id("_team_id"); err != nil {
		return nil, err
	}
	req.ClearTeam = args.cleared("_team_id")

	return s.projectSvc.Upsert(ctx, orgID, req)
}

func (s *Server) rpcProjectDelete(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	id, err := args.requiredID("_id")
	if err != nil {
		return nil, err
	}
	return nil, s.projectSvc.Delete(ctx, orgID, id)
}

func (s *Server) rpcTeamUpsert(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	var (
		req teamdomain.UpsertRequest
		err error
	)
	if req.ID, err = args.id("_id"); err != nil {
		return nil, err
	}
	name, err := args.str("_name")
	if err != nil {
		return nil, err
	}
	if name != nil {
		req.Name = *name
	}
	if req.Description, err = args.nullableStr("_description"); err != nil {
		return nil, err
	}

	return s.teamSvc.Upsert(ctx, orgID, req)
}

func (s *Server) rpcTeamDelete(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	id, err := args.requiredID("_id")
	if err != nil {
		return nil, err
	}
	return nil, s.teamSvc.Delete(ctx, orgID, id)
}

func (s *Server) rpcTeamAddMember(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	teamID, err := args.requiredID("_team_id")
	if err != nil {
		return nil, err
	}
	userID, err := args.requiredID("_user_id")
	if err != nil {
		return nil, err
	}
	role, err := args.str("_role")
	if err != nil {
		return nil, err
	}
	req := teamdomain.AddMemberRequest{TeamID: teamID, UserID: userID}
	if role != nil {
		req.Role = *role
	}
	return s.teamSvc.AddMember(ctx, orgID, req)
}

func (s *Server) rpcTeamRemoveMember(ctx context.Context, orgID snowflake.ID, args rpcArgs) (any, error) {
	teamID, err := args.requiredID("_team_id")
	if err != nil {
		return nil, err
	}
	userID, err := args.requiredID("_user_id")
	if err != nil {
		return nil, err
	}
	return nil, s.teamSvc.RemoveMember(ctx, orgID, teamID, userID)
}
