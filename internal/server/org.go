package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
)

type setAdminRequest struct {
	IsAdmin *bool `json:"is_admin"`
}

type inviteUsersRequest struct {
	Invites []organizationdomain.InviteRequest `json:"invites"`
}

func (s *Server) GetCurrentOrg(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.orgSvc.GetByID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) GetMyProfile(c *gin.Context) {
	profile, ok := profileFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile, "role": profile.Role()})
}

func (s *Server) UpdateMyProfile(c *gin.Context) {
	profile, ok := profileFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req organizationdomain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.orgSvc.UpdateProfile(c.Request.Context(), profile.OrgID, profile.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": updated, "role": updated.Role()})
}

// ListOrgUsers backs the people picker: id, name and email ordered by name.
func (s *Server) ListOrgUsers(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	users, err := s.orgSvc.ListUsers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (s *Server) SetUserAdmin(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	userID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsAdmin == nil {
		AbortWithError(c, newValidationError("is_admin", "required", "is_admin is required"))
		return
	}

	profile, err := s.orgSvc.SetAdmin(c.Request.Context(), orgID, userID, *req.IsAdmin)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (s *Server) InviteUsers(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	inviterID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req inviteUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Invites) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	invites, err := s.orgSvc.InviteMembers(c.Request.Context(), orgID, inviterID, req.Invites)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invites})
}

func (s *Server) GetHome(c *gin.Context) {
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

	home, err := s.agendaSvc.Home(c.Request.Context(), orgID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, home)
}
