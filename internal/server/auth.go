package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) && s.auditSvc != nil {
			_ = s.auditSvc.AuditLog(c.Request.Context(), nil, string(auditdomain.ActorTypeUser), nil, "user.login_failed", "user", nil, map[string]any{
				"email": email,
			})
		}
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	s.enrichSessionMetadata(c, result)

	if s.auditSvc != nil && result.User != nil {
		userID := result.User.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, string(auditdomain.ActorTypeUser), &userID, "user.login", "user", &userID, map[string]any{
			"email": email,
		})
	}

	c.JSON(http.StatusOK, result.Session)
}

func (s *Server) ChangePassword(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if strings.TrimSpace(req.CurrentPassword) == "" {
		AbortWithError(c, newValidationError("current_password", "required", "current password is required"))
		return
	}
	if strings.TrimSpace(req.NewPassword) == "" {
		AbortWithError(c, newValidationError("new_password", "required", "new password is required"))
		return
	}
	if req.CurrentPassword == req.NewPassword {
		AbortWithError(c, newValidationError("new_password", "must_differ", "new password must be different"))
		return
	}

	if err := s.authsvc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil && !errors.Is(err, authdomain.ErrInvalidSession) {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	user, err := s.authsvc.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}

	orgIDs, err := s.loadUserOrgIDs(ctx, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	activeOrgID := session.ActiveOrgID
	if activeOrgID != nil && !containsOrgID(orgIDs, *activeOrgID) {
		activeOrgID = nil
	}
	if err := s.authsvc.UpdateSessionOrgContext(ctx, session.ID, activeOrgID, orgIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	passwordState := "rotated"
	if user.IsDefault || user.LastPasswordChanged == nil {
		passwordState = "default"
	}

	metadata := map[string]any{
		"user_id":               user.ID.String(),
		"display_name":          user.DisplayName,
		"email":                 user.Email,
		"is_default":            user.IsDefault,
		"last_password_changed": user.LastPasswordChanged,
		"must_change_password":  passwordState == "default",
		"password_state":        passwordState,
		"org_ids":               toOrgIDStrings(orgIDs),
	}
	if activeOrgID != nil {
		metadata["active_org_id"] = snowflake.ID(*activeOrgID).String()
	}

	c.JSON(http.StatusOK, &authdomain.SessionView{Metadata: metadata})
}

// Forgot always answers 202 so the response does not reveal which emails
// have accounts.
func (s *Server) Forgot(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.authsvc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, authdomain.ErrInvalidEmail) {
			AbortWithError(c, err)
			return
		}
		if !errors.Is(err, authdomain.ErrUserNotFound) {
			s.log.Warn("password reset request failed", zap.Error(err))
		}
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}
	if err := s.authsvc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) enrichSessionMetadata(c *gin.Context, result *authdomain.LoginResult) {
	if result == nil || result.Session == nil || result.User == nil {
		return
	}

	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), result.User.ID)
	if err != nil {
		s.log.Warn("failed to load user orgs", zap.Error(err))
		return
	}

	var activeOrgID *int64
	if len(orgIDs) > 0 {
		activeOrgID = &orgIDs[0]
	}
	if err := s.authsvc.UpdateSessionOrgContext(c.Request.Context(), result.SessionID, activeOrgID, orgIDs); err != nil {
		s.log.Warn("failed to store session org context", zap.Error(err))
		return
	}

	result.Session.Metadata["org_ids"] = toOrgIDStrings(orgIDs)
	if activeOrgID != nil {
		result.Session.Metadata["active_org_id"] = snowflake.ID(*activeOrgID).String()
	}
}

// loadUserOrgIDs lists the orgs the user holds a profile in, oldest first.
func (s *Server) loadUserOrgIDs(ctx context.Context, userID snowflake.ID) ([]int64, error) {
	orgs, err := s.orgSvc.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(orgs))
	for _, org := range orgs {
		id, err := snowflake.ParseString(org.ID)
		if err != nil {
			continue
		}
		out = append(out, int64(id))
	}
	return out, nil
}

func containsOrgID(orgIDs []int64, orgID int64) bool {
	for _, id := range orgIDs {
		if id == orgID {
			return true
		}
	}
	return false
}
