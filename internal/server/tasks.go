package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
)

// ListTasks filters by project_id, team_id, assignee_id ("me" for the
// caller), status, due_on and open.
func (s *Server) ListTasks(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var filter taskdomain.ListFilter
	if filter.ProjectID, err = parseOptionalSnowflakeID(c.Query("project_id")); err != nil {
		AbortWithError(c, newValidationError("project_id", "invalid_project_id", "invalid project_id"))
		return
	}
	if filter.TeamID, err = parseOptionalSnowflakeID(c.Query("team_id")); err != nil {
		AbortWithError(c, newValidationError("team_id", "invalid_team_id", "invalid team_id"))
		return
	}
	if assignee := strings.TrimSpace(c.Query("assignee_id")); strings.EqualFold(assignee, "me") {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		filter.AssigneeID = &userID
	} else if filter.AssigneeID, err = parseOptionalSnowflakeID(assignee); err != nil {
		AbortWithError(c, newValidationError("assignee_id", "invalid_assignee_id", "invalid assignee_id"))
		return
	}
	if filter.DueOn, err = parseOptionalDate(c.Query("due_on")); err != nil {
		AbortWithError(c, newValidationError("due_on", "invalid_due_on", "invalid due_on"))
		return
	}
	open, err := parseOptionalBool(c.Query("open"))
	if err != nil {
		AbortWithError(c, newValidationError("open", "invalid_open", "invalid open"))
		return
	}
	if open != nil {
		filter.OpenOnly = *open
	}
	limit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil || (limit != nil && *limit < 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	if limit != nil {
		filter.Limit = int(*limit)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		normalized, err := taskdomain.NormalizeStatus(status)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		filter.Status = normalized
	}

	tasks, err := s.taskSvc.List(c.Request.Context(), orgID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tasks})
}

func (s *Server) GetTask(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	task, err := s.taskSvc.Get(c.Request.Context(), orgID, taskID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) DeleteTask(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.taskSvc.Delete(c.Request.Context(), orgID, taskID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
