package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/agenda/domain"
	"github.com/smallbiznis/taskboard/internal/cache"
	calendardomain "github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTasks struct {
	taskdomain.Service
	tasks  []*taskdomain.Task
	calls  int
	filter taskdomain.ListFilter
}

func (f *fakeTasks) List(ctx context.Context, orgID snowflake.ID, filter taskdomain.ListFilter) ([]*taskdomain.Task, error) {
	f.calls++
	f.filter = filter
	return f.tasks, nil
}

func (f *fakeTasks) Count(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return int64(len(f.tasks)), nil
}

func (f *fakeTasks) CountOpenAssigned(ctx context.Context, orgID, userID snowflake.ID) (int64, error) {
	return 1, nil
}

type fakeCalendar struct {
	calendardomain.Service
	events   []*calendardomain.Event
	from, to time.Time
}

func (f *fakeCalendar) ListRange(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]*calendardomain.Event, error) {
	f.from, f.to = from, to
	return f.events, nil
}

type fakeProjects struct{ projectdomain.Service }

func (fakeProjects) Count(ctx context.Context, orgID snowflake.ID) (int64, error) { return 4, nil }

type fakeTeams struct{ teamdomain.Service }

func (fakeTeams) Count(ctx context.Context, orgID snowflake.ID) (int64, error) { return 2, nil }

func (fakeTeams) MyTeamIDs(ctx context.Context, orgID, userID snowflake.ID) ([]snowflake.ID, error) {
	return []snowflake.ID{11}, nil
}

type fakeOrgs struct{ orgdomain.Service }

func (fakeOrgs) GetProfile(ctx context.Context, orgID, userID snowflake.ID) (*orgdomain.Profile, error) {
	return &orgdomain.Profile{ID: userID, OrgID: orgID, FullName: "Ana", IsAdmin: true}, nil
}

func ts(hour, minute int) *time.Time {
	t := time.Date(2026, 6, 2, hour, minute, 0, 0, time.UTC)
	return &t
}

func TestBuildDayOrdering(t *testing.T) {
	events := []*calendardomain.Event{
		{ID: 1, Title: "Offsite", AllDay: true},
		{ID: 2, Title: "Lunch", StartsAt: ts(12, 0)},
		{ID: 3, Title: "No time"},
		{ID: 4, Title: "Standup", StartsAt: ts(9, 0)},
		{ID: 5, Title: ""},
	}
	tasks := []*taskdomain.Task{{ID: 6, Title: "Invoice"}, {ID: 7, Title: "Deploy"}}

	items := BuildDay(events, tasks, time.UTC)
	require.Len(t, items, 6)

	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	assert.Equal(t, []string{"Standup", "Lunch", "Offsite", "No time", "Invoice", "Deploy"}, titles)
	assert.Equal(t, "09:00", items[0].Label)
	assert.Equal(t, domain.LabelAllDay, items[2].Label)
	assert.Nil(t, items[2].At)
	assert.Equal(t, domain.LabelTimeTBD, items[3].Label)
	assert.Equal(t, domain.LabelDueToday, items[4].Label)
	assert.Equal(t, domain.KindTask, items[4].Kind)
}

func TestBuildDayLabelsInBoardTimezone(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	items := BuildDay([]*calendardomain.Event{{ID: 1, Title: "Call", StartsAt: ts(2, 30)}}, nil, loc)
	require.Len(t, items, 1)
	assert.Equal(t, "09:30", items[0].Label)
}

func newTestService(tasks *fakeTasks, calendar *fakeCalendar, board config.Board) *Service {
	settings := config.NewStaticBoardSettings(board)
	return NewService(Params{
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(time.Date(2026, 6, 2, 20, 0, 0, 0, time.UTC)),
		Settings:    settings,
		Tasks:       tasks,
		Calendar:    calendar,
		Projects:    fakeProjects{},
		Teams:       fakeTeams{},
		Orgs:        fakeOrgs{},
		AgendaCache: cache.NewAgendaCache(nil, settings, zap.NewNop()),
	}).(*Service)
}

func TestDayUsesBoardWindowAndCache(t *testing.T) {
	board := config.DefaultBoard()
	board.Timezone = "Asia/Jakarta"
	tasks := &fakeTasks{tasks: []*taskdomain.Task{{ID: 9, Title: "Ship"}}}
	calendar := &fakeCalendar{}
	svc := newTestService(tasks, calendar, board)
	ctx := context.Background()
	day := caldate.New(2026, time.June, 3)

	items, err := svc.Day(ctx, 1, day)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, tasks.filter.OpenOnly)
	require.NotNil(t, tasks.filter.DueOn)
	assert.Equal(t, "2026-06-03", tasks.filter.DueOn.String())
	assert.Equal(t, time.Date(2026, 6, 2, 17, 0, 0, 0, time.UTC), calendar.from.UTC())
	assert.Equal(t, 24*time.Hour, calendar.to.Sub(calendar.from))

	_, err = svc.Day(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, 1, tasks.calls)

	svc.cache.InvalidateOrg(ctx, 1)
	_, err = svc.Day(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, 2, tasks.calls)

	_, err = svc.Day(ctx, 0, day)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestHomeAggregates(t *testing.T) {
	tasks := &fakeTasks{tasks: []*taskdomain.Task{{ID: 9, Title: "Ship"}, {ID: 10, Title: "Test"}}}
	svc := newTestService(tasks, &fakeCalendar{}, config.DefaultBoard())

	home, err := svc.Home(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.RoleAdmin, home.Role)
	assert.Equal(t, int64(4), home.Projects)
	assert.Equal(t, int64(2), home.Tasks)
	assert.Equal(t, int64(2), home.Teams)
	assert.Equal(t, int64(1), home.OpenAssigned)
	assert.Equal(t, []string{"11"}, home.TeamIDs)
	assert.Len(t, home.Today, 2)
}
