package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	calendardomain "github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

const defaultEventWindowDays = 7

// ListEvents returns events starting in [from, to). Bare dates are read in
// the board timezone; the default window is the coming week.
func (s *Server) ListEvents(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	loc := s.settings.Get().Location()
	today := caldate.Of(s.clock.Now().In(loc))

	from, err := s.parseRangeBound(c.Query("from"), loc)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	if from == nil {
		start := today.StartIn(loc)
		from = &start
	}
	to, err := s.parseRangeBound(c.Query("to"), loc)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	if to == nil {
		end := caldate.Of(from.In(loc)).AddDays(defaultEventWindowDays).StartIn(loc)
		to = &end
	}

	events, err := s.calendarSvc.ListRange(c.Request.Context(), orgID, *from, *to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) parseRangeBound(raw string, loc *time.Location) (*time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	day, err := parseOptionalDate(raw)
	if err != nil || day == nil {
		return nil, err
	}
	start := day.StartIn(loc)
	return &start, nil
}

func (s *Server) GetEvent(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.calendarSvc.Get(c.Request.Context(), orgID, eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) CreateEvent(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var body rpcArgs
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req, err := createEventRequest(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.calendarSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (s *Server) UpdateEvent(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var body rpcArgs
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req, err := updateEventRequest(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.calendarSvc.Update(c.Request.Context(), orgID, eventID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) DeleteEvent(c *gin.Context) {
	orgID, err := s.orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.calendarSvc.Delete(c.Request.Context(), orgID, eventID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func createEventRequest(body rpcArgs) (calendardomain.CreateRequest, error) {
	var (
		req calendardomain.CreateRequest
		err error
	)
	title, err := body.str("title")
	if err != nil {
		return req, err
	}
	if title != nil {
		req.Title = *title
	}
	if req.Location, err = body.str("location"); err != nil {
		return req, err
	}
	if req.StartsAt, err = body.timestamp("starts_at"); err != nil {
		return req, err
	}
	if req.EndsAt, err = body.timestamp("ends_at"); err != nil {
		return req, err
	}
	allDay, err := body.boolean("all_day")
	if err != nil {
		return req, err
	}
	req.AllDay = allDay != nil && *allDay
	if req.Recurrence, err = body.str("recurrence"); err != nil {
		return req, err
	}
	if req.TeamID, err = body.id("team_id"); err != nil {
		return req, err
	}
	if req.ProjectID, err = body.id("project_id"); err != nil {
		return req, err
	}
	return req, nil
}

func updateEventRequest(body rpcArgs) (calendardomain.UpdateRequest, error) {
	var (
		req calendardomain.UpdateRequest
		err error
	)
	if req.Title, err = body.str("title"); err != nil {
		return req, err
	}
	if req.Location, err = body.nullableStr("location"); err != nil {
		return req, err
	}
	if req.StartsAt, err = body.timestamp("starts_at"); err != nil {
		return req, err
	}
	req.ClearStartsAt = body.cleared("starts_at")
	if req.EndsAt, err = body.timestamp("ends_at"); err != nil {
		return req, err
	}
	req.ClearEndsAt = body.cleared("ends_at")
	if req.AllDay, err = body.boolean("all_day"); err != nil {
		return req, err
	}
	if req.Recurrence, err = body.nullableStr("recurrence"); err != nil {
		return req, err
	}
	if req.TeamID, err = body.id("team_id"); err != nil {
		return req, err
	}
	req.ClearTeam = body.cleared("team_id")
	if req.ProjectID, err = body.id("project_id"); err != nil {
		return req, err
	}
	req.ClearProject = body.cleared("project_id")
	return req, nil
}
