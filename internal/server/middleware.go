package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/auditcontext"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	obscontext "github.com/smallbiznis/taskboard/internal/observability/context"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"github.com/smallbiznis/taskboard/internal/orgcontext"
)

const (
	HeaderOrg = "X-Org-ID"

	contextSessionKey = "auth.session"
	contextProfileKey = "auth.profile"
)

// RequireAuth resolves the session cookie and stamps the user as the actor
// of the request.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, authdomain.ErrSessionExpired) || errors.Is(err, authdomain.ErrSessionRevoked) {
				s.sessions.Clear(c)
			}
			AbortWithError(c, err)
			return
		}

		userID := session.UserID.String()
		ctx := c.Request.Context()
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), userID)
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextSessionKey, session)
		c.Next()
	}
}

// OrgContext picks the active organization for the request. An explicit
// X-Org-ID header wins over the session's active org, which wins over the
// user's first membership. The user must hold a profile in the chosen org.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.sessionFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ctx := c.Request.Context()

		orgID, err := s.requestedOrgID(c, session)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		profile, err := s.orgSvc.GetProfile(ctx, orgID, session.UserID)
		if err != nil {
			if errors.Is(err, organizationdomain.ErrProfileNotFound) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}

		ctx = orgcontext.WithOrgID(ctx, int64(orgID))
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextProfileKey, profile)
		c.Next()
	}
}

func (s *Server) requestedOrgID(c *gin.Context, session *authdomain.Session) (snowflake.ID, error) {
	if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return 0, newValidationError("org_id", "invalid_org_id", "invalid org id")
		}
		return parsed, nil
	}
	if session.ActiveOrgID != nil && *session.ActiveOrgID != 0 {
		return snowflake.ID(*session.ActiveOrgID), nil
	}
	return s.orgSvc.ResolveOrgID(c.Request.Context(), session.UserID)
}

// RequireRole admits callers whose profile role in the active org is one of
// roles. It runs after OrgContext.
func (s *Server) RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(c *gin.Context) {
		profile, ok := profileFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if _, ok := allowed[profile.Role()]; !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// AdminOnly is RequireRole for org admins.
func (s *Server) AdminOnly() gin.HandlerFunc {
	return s.RequireRole(organizationdomain.RoleAdmin)
}

func (s *Server) sessionFromContext(c *gin.Context) (*authdomain.Session, bool) {
	raw, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := raw.(*authdomain.Session)
	return session, ok && session != nil
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	session, ok := s.sessionFromContext(c)
	if !ok || session.UserID == 0 {
		return 0, false
	}
	return session.UserID, true
}

func profileFromContext(c *gin.Context) (*organizationdomain.Profile, bool) {
	raw, ok := c.Get(contextProfileKey)
	if !ok {
		return nil, false
	}
	profile, ok := raw.(*organizationdomain.Profile)
	return profile, ok && profile != nil
}

func (s *Server) orgIDFromRequest(c *gin.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		return 0, ErrForbidden
	}
	return orgID, nil
}
