package repository

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTruncateReasonKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short"))

	// 499 ASCII bytes followed by a 3-byte rune straddles the limit.
	reason := strings.Repeat("x", maxErrorLength-1) + "ã" + "tail"
	got := truncateReason(reason)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("x", maxErrorLength-1), got)

	exact := strings.Repeat("é", maxErrorLength/2)
	assert.Equal(t, exact, truncateReason(exact+"more"))
}

func TestMarkFailedStoresValidReasonAndCountsAttempt(t *testing.T) {
	conn, err := db.OpenSQLiteMemory("outbox_mark_failed")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Event{}))
	repo := Provide(conn)
	ctx := context.Background()

	event := &domain.Event{
		ID:        1,
		OrgID:     7,
		EventType: domain.EventProjectTeamAttached,
		Payload:   datatypes.JSONMap{"project_id": "3"},
		CreatedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Insert(ctx, nil, event))

	reason := strings.Repeat("não foi possível enviar: ", 40)
	require.NoError(t, repo.MarkFailed(ctx, event.ID, reason))

	var stored domain.Event
	require.NoError(t, conn.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.LessOrEqual(t, len(*stored.LastError), maxErrorLength)
	assert.True(t, utf8.ValidString(*stored.LastError))
}
