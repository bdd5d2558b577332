package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	signupdomain "github.com/smallbiznis/taskboard/internal/signup/domain"
	"go.uber.org/zap"
)

type SignupRequest struct {
	OrgName  string `json:"org_name"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an org with its first admin and signs the admin in.
func (s *Server) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.signupsvc.Signup(c.Request.Context(), signupdomain.Request{
		OrgName:   req.OrgName,
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Session != nil && result.RawToken != "" {
		s.sessions.Set(c, result.RawToken, result.ExpiresAt)
		s.activateSignupOrg(c, result)
	}

	c.JSON(http.StatusCreated, result.Session)
}

func (s *Server) activateSignupOrg(c *gin.Context, result *signupdomain.Result) {
	orgID, err := snowflake.ParseString(result.OrgID)
	if err != nil || orgID == 0 {
		return
	}
	ctx := c.Request.Context()
	session, err := s.authsvc.Authenticate(ctx, result.RawToken)
	if err != nil {
		s.log.Warn("failed to load signup session", zap.Error(err))
		return
	}
	active := int64(orgID)
	if err := s.authsvc.UpdateSessionOrgContext(ctx, session.ID, &active, []int64{active}); err != nil {
		s.log.Warn("failed to store session org context", zap.Error(err))
		return
	}
	if result.Session.Metadata == nil {
		result.Session.Metadata = map[string]any{}
	}
	result.Session.Metadata["org_ids"] = []string{orgID.String()}
	result.Session.Metadata["active_org_id"] = orgID.String()
}
