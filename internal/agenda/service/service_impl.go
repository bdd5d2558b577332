package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/agenda/domain"
	"github.com/smallbiznis/taskboard/internal/cache"
	calendardomain "github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Settings    *config.BoardSettings
	Tasks       taskdomain.Service
	Calendar    calendardomain.Service
	Projects    projectdomain.Service
	Teams       teamdomain.Service
	Orgs        orgdomain.Service
	AgendaCache *cache.AgendaCache `optional:"true"`
	Metrics     *metrics.Metrics   `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	settings *config.BoardSettings
	tasks    taskdomain.Service
	calendar calendardomain.Service
	projects projectdomain.Service
	teams    teamdomain.Service
	orgs     orgdomain.Service
	cache    *cache.AgendaCache
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("agenda.service"),
		clock:    p.Clock,
		settings: p.Settings,
		tasks:    p.Tasks,
		calendar: p.Calendar,
		projects: p.Projects,
		teams:    p.Teams,
		orgs:     p.Orgs,
		cache:    p.AgendaCache,
		metrics:  p.Metrics,
	}
}

func (s *Service) Today(ctx context.Context, orgID snowflake.ID) ([]domain.Item, error) {
	loc := s.settings.Get().Location()
	return s.Day(ctx, orgID, caldate.Of(s.clock.Now().In(loc)))
}

func (s *Service) Day(ctx context.Context, orgID snowflake.ID, day caldate.Date) ([]domain.Item, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var cached []domain.Item
	if s.cache != nil {
		hit := s.cache.Get(ctx, orgID, day, &cached)
		s.metrics.RecordAgendaCache(ctx, hit)
		if hit {
			return cached, nil
		}
	}

	loc := s.settings.Get().Location()
	start := day.StartIn(loc)
	end := start.AddDate(0, 0, 1)

	var (
		tasks  []*taskdomain.Task
		events []*calendardomain.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.List(gctx, orgID, taskdomain.ListFilter{DueOn: &day, OpenOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.calendar.ListRange(gctx, orgID, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := BuildDay(events, tasks, loc)
	if s.cache != nil {
		s.cache.Set(ctx, orgID, day, items)
	}
	return items, nil
}

// BuildDay merges events and due tasks into agenda order: timed events by
// start, then untimed events, then tasks. Ties keep input order.
func BuildDay(events []*calendardomain.Event, tasks []*taskdomain.Task, loc *time.Location) []domain.Item {
	if loc == nil {
		loc = time.UTC
	}
	items := make([]domain.Item, 0, len(events)+len(tasks))
	for _, event := range events {
		if event == nil || event.Title == "" {
			continue
		}
		item := domain.Item{Kind: domain.KindEvent, ID: event.ID.String(), Title: event.Title}
		switch {
		case event.AllDay:
			item.Label = domain.LabelAllDay
		case event.StartsAt != nil:
			at := event.StartsAt.UTC()
			item.At = &at
			item.Label = at.In(loc).Format("15:04")
		default:
			item.Label = domain.LabelTimeTBD
		}
		items = append(items, item)
	}
	for _, task := range tasks {
		if task == nil || task.Title == "" {
			continue
		}
		items = append(items, domain.Item{
			Kind:  domain.KindTask,
			ID:    task.ID.String(),
			Title: task.Title,
			Label: domain.LabelDueToday,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return sortKey(items[i]) < sortKey(items[j])
	})
	return items
}

func sortKey(item domain.Item) string {
	switch {
	case item.Kind == domain.KindEvent && item.At != nil:
		return "0-" + item.At.UTC().Format("2006-01-02T15:04:05.000Z")
	case item.Kind == domain.KindEvent:
		return "1-"
	default:
		return "2-"
	}
}

func (s *Service) Home(ctx context.Context, orgID, userID snowflake.ID) (*domain.Home, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	home := &domain.Home{}
	var teamIDs []snowflake.ID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := s.orgs.GetProfile(gctx, orgID, userID)
		if err != nil {
			return err
		}
		home.Profile = profile
		home.Role = profile.Role()
		return nil
	})
	g.Go(func() (err error) {
		home.Projects, err = s.projects.Count(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		home.Tasks, err = s.tasks.Count(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		home.Teams, err = s.teams.Count(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		home.OpenAssigned, err = s.tasks.CountOpenAssigned(gctx, orgID, userID)
		return err
	})
	g.Go(func() (err error) {
		teamIDs, err = s.teams.MyTeamIDs(gctx, orgID, userID)
		return err
	})
	g.Go(func() (err error) {
		home.Today, err = s.Today(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	home.TeamIDs = make([]string, 0, len(teamIDs))
	for _, id := range teamIDs {
		home.TeamIDs = append(home.TeamIDs, id.String())
	}
	return home, nil
}
