package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/outbox/repository"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/smallbiznis/taskboard/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishClaimAndMark(t *testing.T) {
	conn, err := db.OpenSQLiteMemory("outbox_publish")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	repo := repository.Provide(conn)
	pub := NewPublisher(repo, node, clk)

	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-1")
	orgID := snowflake.ID(7)

	assert.ErrorIs(t, pub.Publish(ctx, nil, domain.NewEvent{Type: domain.EventTaskAssigned}), ErrInvalidEvent)

	require.NoError(t, pub.Publish(ctx, nil, domain.NewEvent{
		OrgID:   orgID,
		Type:    domain.EventTaskAssigned,
		Payload: map[string]any{"task_id": "1"},
	}))
	for i := 0; i < 2; i++ {
		require.NoError(t, pub.Publish(ctx, nil, domain.NewEvent{
			OrgID:     orgID,
			Type:      domain.EventTaskDueSoon,
			Payload:   map[string]any{"task_id": "2"},
			DedupeKey: "task.due_soon:2:2026-05-02",
		}))
	}

	pending, err := repo.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	claimed, err := repo.Claim(ctx, clk.Now(), time.Minute, 10, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "cid-1", claimed[0].CorrelationID)
	assert.Equal(t, "cid-1", claimed[0].Payload["correlation_id"])

	again, err := repo.Claim(ctx, clk.Now(), time.Minute, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.MarkPublished(ctx, claimed[0].ID, clk.Now()))
	require.NoError(t, repo.MarkFailed(ctx, claimed[1].ID, "twilio down"))

	clk.Advance(2 * time.Minute)
	retried, err := repo.Claim(ctx, clk.Now(), time.Minute, 10, 5)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, claimed[1].ID, retried[0].ID)
	assert.Equal(t, 1, retried[0].Attempts)
	require.NotNil(t, retried[0].LastError)
	assert.Equal(t, "twilio down", *retried[0].LastError)

	exhausted, err := repo.Claim(ctx, clk.Now().Add(time.Hour), time.Minute, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, exhausted)
}
