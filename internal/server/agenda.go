package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

// GetAgenda lists the day's open tasks and events. date defaults to today
// in the board timezone.
func (s *Server) GetAgenda(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	day, err := parseOptionalDate(c.Query("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}
	if day == nil {
		today := caldate.Of(s.clock.Now().In(s.settings.Get().Location()))
		day = &today
	}

	items, err := s.agendaSvc.Day(c.Request.Context(), orgID, *day)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": day.String(), "data": items})
}
