package server

import (
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

type createProjectRequest struct {
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	TeamID      *snowflake.ID `json:"team_id"`
}

// patchProjectRequest uses empty strings to clear the dates.
type patchProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
}

func (s *Server) ListProjects(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	teamID, err := parseOptionalSnowflakeID(c.Query("team_id"))
	if err != nil {
		AbortWithError(c, newValidationError("team_id", "invalid_team_id", "invalid team_id"))
		return
	}

	projects, err := s.projectSvc.List(c.Request.Context(), orgID, projectdomain.ListFilter{
		TeamID: teamID,
		Status: c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": projects})
}

func (s *Server) GetProject(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	project, err := s.projectSvc.Get(c.Request.Context(), orgID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (s *Server) CreateProject(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	project, err := s.projectSvc.Upsert(c.Request.Context(), orgID, projectdomain.UpsertRequest{
		Name:        req.Name,
		Description: req.Description,
		TeamID:      req.TeamID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

func (s *Server) PatchProject(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var body patchProjectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := projectdomain.PatchRequest{
		Name:        body.Name,
		Description: body.Description,
		Status:      body.Status,
	}
	if req.StartDate, req.ClearStartDate, err = patchDate(body.StartDate, "start_date"); err != nil {
		AbortWithError(c, err)
		return
	}
	if req.DueDate, req.ClearDueDate, err = patchDate(body.DueDate, "due_date"); err != nil {
		AbortWithError(c, err)
		return
	}

	project, err := s.projectSvc.Patch(c.Request.Context(), orgID, projectID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (s *Server) DeleteProject(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.projectSvc.Delete(c.Request.Context(), orgID, projectID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListProjectTeams(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ids, err := s.projectSvc.ListTeamIDs(c.Request.Context(), orgID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func (s *Server) AttachProjectTeam(c *gin.Context) {
	orgID, projectID, teamID, ok := s.projectTeamParams(c)
	if !ok {
		return
	}

	link, err := s.projectSvc.AttachTeam(c.Request.Context(), orgID, projectID, teamID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (s *Server) DetachProjectTeam(c *gin.Context) {
	orgID, projectID, teamID, ok := s.projectTeamParams(c)
	if !ok {
		return
	}

	if err := s.projectSvc.DetachTeam(c.Request.Context(), orgID, projectID, teamID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ProjectReport streams the project summary PDF.
func (s *Server) ProjectReport(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.projectSvc.Report(c.Request.Context(), orgID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", report, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="project-%s.pdf"`, projectID),
	})
}

func (s *Server) projectTeamParams(c *gin.Context) (snowflake.ID, snowflake.ID, snowflake.ID, bool) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, 0, false
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, 0, false
	}
	teamID, err := pathID(c, "teamId")
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, 0, false
	}
	return orgID, projectID, teamID, true
}

// patchDate maps an absent field to no change and an empty string to clear.
func patchDate(value *string, field string) (*caldate.Date, bool, error) {
	if value == nil {
		return nil, false, nil
	}
	parsed, err := parseOptionalDate(*value)
	if err != nil {
		return nil, false, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	if parsed == nil {
		return nil, true, nil
	}
	return parsed, false, nil
}
