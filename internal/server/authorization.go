package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// authorizeOrgAction checks the casbin policy for the signed-in user in the
// active org. It runs after OrgContext.
func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		return ErrUnauthorized
	}
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		return err
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(
		c.Request.Context(),
		fmt.Sprintf("user:%s", userID),
		orgID.String(),
		strings.TrimSpace(object),
		strings.TrimSpace(action),
	)
}
