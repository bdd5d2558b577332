package cache

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type agendaEntry struct {
	Title string `json:"title"`
}

func TestAgendaCacheLocalRoundTripAndInvalidate(t *testing.T) {
	c := NewAgendaCache(nil, config.NewStaticBoardSettings(config.DefaultBoard()), zap.NewNop())
	ctx := context.Background()
	org := snowflake.ID(7)
	day := caldate.New(2026, time.June, 2)

	var got []agendaEntry
	assert.False(t, c.Get(ctx, org, day, &got))

	c.Set(ctx, org, day, []agendaEntry{{Title: "standup"}})
	assert.True(t, c.Get(ctx, org, day, &got))
	assert.Equal(t, "standup", got[0].Title)

	c.InvalidateOrg(ctx, snowflake.ID(8))
	assert.True(t, c.Get(ctx, org, day, &got))

	c.InvalidateOrg(ctx, org)
	assert.False(t, c.Get(ctx, org, day, &got))
}

func TestAgendaCacheDisabledByZeroTTL(t *testing.T) {
	board := config.DefaultBoard()
	board.Agenda.CacheTTL = 0
	c := NewAgendaCache(nil, config.NewStaticBoardSettings(board), zap.NewNop())
	ctx := context.Background()
	day := caldate.New(2026, time.June, 2)

	c.Set(ctx, 1, day, []agendaEntry{{Title: "x"}})
	var got []agendaEntry
	assert.False(t, c.Get(ctx, 1, day, &got))
}

func TestNilAgendaCacheIsInert(t *testing.T) {
	var c *AgendaCache
	var got []agendaEntry
	ctx := context.Background()
	c.Set(ctx, 1, caldate.Date{}, got)
	c.InvalidateOrg(ctx, 1)
	assert.False(t, c.Get(ctx, 1, caldate.Date{}, &got))
}
