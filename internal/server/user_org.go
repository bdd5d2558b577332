package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type acceptInviteRequest struct {
	Code     string `json:"code"`
	FullName string `json:"full_name"`
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.orgSvc.ListOrganizationsByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orgs": orgs})
}

// CreateOrganization opens an additional org with the caller as its admin.
func (s *Server) CreateOrganization(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	user, err := s.authsvc.GetUser(ctx, session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = user.DisplayName
	}

	resp, err := s.orgSvc.Create(ctx, session.UserID, organizationdomain.CreateOrganizationRequest{
		Name:     strings.TrimSpace(req.Name),
		FullName: fullName,
		Email:    user.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) UseOrg(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(c.Param("orgId")))
	if err != nil || parsed == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
		return
	}

	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	activeOrgID := int64(parsed)
	if !containsOrgID(orgIDs, activeOrgID) {
		AbortWithError(c, ErrForbidden)
		return
	}

	if err := s.authsvc.UpdateSessionOrgContext(c.Request.Context(), session.ID, &activeOrgID, orgIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	session.ActiveOrgID = &activeOrgID
	session.OrgIDs = orgIDs

	c.JSON(http.StatusOK, sessionViewFromSession(session))
}

// AcceptInvite turns a pending invite for the signed-in account's email
// into a profile and switches the session to that org.
func (s *Server) AcceptInvite(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	user, err := s.authsvc.GetUser(ctx, session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = user.DisplayName
	}

	profile, err := s.orgSvc.AcceptInvite(ctx, organizationdomain.AcceptInviteRequest{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: fullName,
		Code:     strings.TrimSpace(req.Code),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgIDs, err := s.loadUserOrgIDs(ctx, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	activeOrgID := int64(profile.OrgID)
	if err := s.authsvc.UpdateSessionOrgContext(ctx, session.ID, &activeOrgID, orgIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func sessionViewFromSession(session *authdomain.Session) *authdomain.SessionView {
	metadata := map[string]any{
		"user_id": session.UserID.String(),
		"org_ids": toOrgIDStrings(session.OrgIDs),
	}
	if session.ActiveOrgID != nil {
		metadata["active_org_id"] = snowflake.ID(*session.ActiveOrgID).String()
	}

	return &authdomain.SessionView{
		Metadata: metadata,
	}
}

func toOrgIDStrings(orgIDs []int64) []string {
	out := make([]string, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		out = append(out, snowflake.ID(orgID).String())
	}
	return out
}
