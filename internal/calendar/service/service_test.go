package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/internal/calendar/repository"
	"github.com/smallbiznis/taskboard/internal/clock"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orgCounter map[snowflake.ID]int

func (c orgCounter) InvalidateOrg(ctx context.Context, orgID snowflake.ID) { c[orgID]++ }

func newService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node, orgCounter) {
	t.Helper()
	conn, err := db.OpenSQLiteMemory("calendar_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Event{}, &teamdomain.Team{}))
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	counter := orgCounter{}
	svc := NewService(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(conn),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		Agenda: counter,
	})
	return svc, conn, node, counter
}

func at(hour, minute int) *time.Time {
	t := time.Date(2026, 6, 2, hour, minute, 0, 0, time.UTC)
	return &t
}

func TestCreateValidates(t *testing.T) {
	svc, _, node, counter := newService(t)
	ctx := context.Background()
	orgID := node.Generate()

	_, err := svc.Create(ctx, orgID, domain.CreateRequest{Title: " "})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)

	_, err = svc.Create(ctx, orgID, domain.CreateRequest{Title: "Standup", StartsAt: at(10, 0), EndsAt: at(9, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	weird := "every other blue moon"
	_, err = svc.Create(ctx, orgID, domain.CreateRequest{Title: "Standup", Recurrence: &weird})
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)

	missingTeam := node.Generate()
	_, err = svc.Create(ctx, orgID, domain.CreateRequest{Title: "Standup", TeamID: &missingTeam})
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)

	rule := "rrule:freq=weekly;byday=mo"
	event, err := svc.Create(ctx, orgID, domain.CreateRequest{Title: "Standup", StartsAt: at(9, 0), EndsAt: at(9, 15), Recurrence: &rule})
	require.NoError(t, err)
	require.NotNil(t, event.Recurrence)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", *event.Recurrence)
	assert.Equal(t, 1, counter[orgID])
}

func TestUpdateChecksMergedRange(t *testing.T) {
	svc, _, node, _ := newService(t)
	ctx := context.Background()
	orgID := node.Generate()
	event, err := svc.Create(ctx, orgID, domain.CreateRequest{Title: "Review", StartsAt: at(14, 0), EndsAt: at(15, 0)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, orgID, event.ID, domain.UpdateRequest{StartsAt: at(16, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	allDay := true
	updated, err := svc.Update(ctx, orgID, event.ID, domain.UpdateRequest{AllDay: &allDay, ClearEndsAt: true})
	require.NoError(t, err)
	assert.True(t, updated.AllDay)
	assert.Nil(t, updated.EndsAt)
	assert.Equal(t, "Review", updated.Title)

	_, err = svc.Update(ctx, node.Generate(), event.ID, domain.UpdateRequest{AllDay: &allDay})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRangeIsHalfOpen(t *testing.T) {
	svc, _, node, _ := newService(t)
	ctx := context.Background()
	orgID := node.Generate()
	for _, start := range []*time.Time{at(0, 0), at(12, 30), at(23, 59)} {
		_, err := svc.Create(ctx, orgID, domain.CreateRequest{Title: "e", StartsAt: start})
		require.NoError(t, err)
	}
	nextDay := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(ctx, orgID, domain.CreateRequest{Title: "tomorrow", StartsAt: &nextDay})
	require.NoError(t, err)

	events, err := svc.ListRange(ctx, orgID, *at(0, 0), nextDay)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].StartsAt.Before(*events[1].StartsAt))

	_, err = svc.ListRange(ctx, orgID, nextDay, *at(0, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	require.NoError(t, svc.Delete(ctx, orgID, events[0].ID))
	assert.ErrorIs(t, svc.Delete(ctx, orgID, events[0].ID), domain.ErrNotFound)
}
