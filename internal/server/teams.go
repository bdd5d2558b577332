package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
)

type teamRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type addTeamMemberRequest struct {
	UserID snowflake.ID `json:"user_id"`
	Role   string       `json:"role"`
}

func (s *Server) ListTeams(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	teams, err := s.teamSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": teams})
}

// ListMyTeamIDs returns the ids of the teams the caller belongs to.
func (s *Server) ListMyTeamIDs(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ids, err := s.teamSvc.MyTeamIDs(c.Request.Context(), orgID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func (s *Server) GetTeam(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teamID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	team, err := s.teamSvc.Get(c.Request.Context(), orgID, teamID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func (s *Server) ListTeamMembers(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teamID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.teamSvc.ListMembers(c.Request.Context(), orgID, teamID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) CreateTeam(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team, err := s.teamSvc.Upsert(c.Request.Context(), orgID, teamdomain.UpsertRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

func (s *Server) UpdateTeam(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teamID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team, err := s.teamSvc.Upsert(c.Request.Context(), orgID, teamdomain.UpsertRequest{
		ID:          &teamID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func (s *Server) DeleteTeam(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teamID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.teamSvc.Delete(c.Request.Context(), orgID, teamID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AddTeamMember(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teamID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	member, err := s.teamSvc.AddMember(c.Request.Context(), orgID, teamdomain.AddMemberRequest{
		TeamID: teamID,
		UserID: req.UserID,
		Role:   req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

func (s *Server) RemoveTeamMember(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teamID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.teamSvc.RemoveMember(c.Request.Context(), orgID, teamID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
