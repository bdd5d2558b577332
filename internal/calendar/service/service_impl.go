package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/auditcontext"
	"github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxRange = 366 * 24 * time.Hour

var namedRecurrences = map[string]struct{}{
	"daily":   {},
	"weekly":  {},
	"monthly": {},
	"yearly":  {},
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service      `optional:"true"`
	Agenda   domain.AgendaInvalidator `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
	agenda   domain.AgendaInvalidator
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("calendar.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
		agenda:   p.Agenda,
	}
}

func (s *service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	if err := checkRange(req.StartsAt, req.EndsAt); err != nil {
		return nil, err
	}
	recurrence, err := normalizeRecurrence(req.Recurrence)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	event := &domain.Event{
		ID:         s.genID.Generate(),
		TeamID:     req.TeamID,
		ProjectID:  req.ProjectID,
		Title:      title,
		Location:   trimmed(req.Location),
		StartsAt:   utc(req.StartsAt),
		EndsAt:     utc(req.EndsAt),
		AllDay:     req.AllDay,
		Recurrence: recurrence,
		CreatedBy:  actorID(ctx),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.checkRefs(ctx, repo, orgID, req.TeamID, req.ProjectID); err != nil {
			return err
		}
		return repo.Events().Insert(ctx, orgID, event)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, orgID)
	s.audit(ctx, orgID, "calendar_event.create", event.ID, map[string]any{"all_day": event.AllDay})
	return event, nil
}

func (s *service) Update(ctx context.Context, orgID, eventID snowflake.ID, req domain.UpdateRequest) (*domain.Event, error) {
	if eventID == 0 {
		return nil, domain.ErrInvalidEvent
	}

	var event *domain.Event
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match := map[string]any{"id": int64(eventID)}
		current, err := repo.Events().SelectOne(ctx, orgID, match)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		patch := map[string]any{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return domain.ErrTitleRequired
			}
			patch["title"] = title
		}
		if req.Location != nil {
			patch["location"] = trimmed(req.Location)
		}
		if req.AllDay != nil {
			patch["all_day"] = *req.AllDay
		}
		if req.Recurrence != nil {
			recurrence, err := normalizeRecurrence(req.Recurrence)
			if err != nil {
				return err
			}
			patch["recurrence"] = recurrence
		}

		startsAt, endsAt := current.StartsAt, current.EndsAt
		switch {
		case req.StartsAt != nil:
			startsAt = utc(req.StartsAt)
			patch["starts_at"] = *startsAt
		case req.ClearStartsAt:
			startsAt = nil
			patch["starts_at"] = nil
		}
		switch {
		case req.EndsAt != nil:
			endsAt = utc(req.EndsAt)
			patch["ends_at"] = *endsAt
		case req.ClearEndsAt:
			endsAt = nil
			patch["ends_at"] = nil
		}
		if err := checkRange(startsAt, endsAt); err != nil {
			return err
		}

		if err := s.checkRefs(ctx, repo, orgID, req.TeamID, req.ProjectID); err != nil {
			return err
		}
		switch {
		case req.TeamID != nil:
			patch["team_id"] = int64(*req.TeamID)
		case req.ClearTeam:
			patch["team_id"] = nil
		}
		switch {
		case req.ProjectID != nil:
			patch["project_id"] = int64(*req.ProjectID)
		case req.ClearProject:
			patch["project_id"] = nil
		}

		if len(patch) == 0 {
			event = current
			return nil
		}
		patch["updated_at"] = s.clock.Now().UTC()
		rows, err := repo.Events().Update(ctx, orgID, match, patch)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrNotFound
		}
		event = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, orgID)
	s.audit(ctx, orgID, "calendar_event.update", event.ID, nil)
	return event, nil
}

func (s *service) Delete(ctx context.Context, orgID, eventID snowflake.ID) error {
	if eventID == 0 {
		return domain.ErrInvalidEvent
	}
	var deleted int64
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).Events().Delete(ctx, orgID, map[string]any{"id": int64(eventID)})
		return err
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	s.invalidate(ctx, orgID)
	s.audit(ctx, orgID, "calendar_event.delete", eventID, nil)
	return nil
}

func (s *service) Get(ctx context.Context, orgID, eventID snowflake.ID) (*domain.Event, error) {
	if eventID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	event, err := s.repo.Events().SelectOne(ctx, orgID, map[string]any{"id": int64(eventID)})
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

func (s *service) ListRange(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]*domain.Event, error) {
	if !to.After(from) || to.Sub(from) > maxRange {
		return nil, domain.ErrInvalidRange
	}
	return s.repo.Events().SelectMany(ctx, orgID,
		option.WithWhere("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()),
		option.WithOrder("starts_at", false),
		option.WithOrder("id", false),
	)
}

func (s *service) checkRefs(ctx context.Context, repo domain.Repository, orgID snowflake.ID, teamID, projectID *snowflake.ID) error {
	if teamID != nil {
		ok, err := repo.TeamExists(ctx, orgID, *teamID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTeamNotFound
		}
	}
	if projectID != nil {
		ok, err := repo.ProjectExists(ctx, orgID, *projectID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrProjectNotFound
		}
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, orgID snowflake.ID) {
	if s.agenda != nil {
		s.agenda.InvalidateOrg(ctx, orgID)
	}
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action string, eventID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := eventID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "calendar_event", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func checkRange(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return domain.ErrInvalidRange
	}
	return nil
}

// normalizeRecurrence accepts a named cadence or an iCalendar RRULE body.
func normalizeRecurrence(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	lower := strings.ToLower(value)
	if _, ok := namedRecurrences[lower]; ok {
		return &lower, nil
	}
	upper := strings.ToUpper(strings.TrimPrefix(value, "RRULE:"))
	if strings.HasPrefix(upper, "FREQ=") {
		return &upper, nil
	}
	return nil, domain.ErrInvalidRecurrence
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func actorID(ctx context.Context) *snowflake.ID {
	actorType, raw := auditcontext.ActorFromContext(ctx)
	if actorType != string(auditdomain.ActorTypeUser) || raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil
	}
	return &id
}
