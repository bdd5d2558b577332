// Package domain holds the transactional outbox types.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventTaskAssigned        = "task.assigned"
	EventTaskDueSoon         = "task.due_soon"
	EventTeamMemberAdded     = "team.member_added"
	EventProjectTeamAttached = "project.team_attached"
	EventOrganizationCreated = "organization.created"
	EventMemberInvited       = "organization.member_invited"
)

// Event is a domain fact written in the same transaction as the change that
// produced it and delivered later by the dispatcher.
type Event struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	OrgID         snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_outbox_events_dedupe,priority:1"`
	EventType     string            `gorm:"type:text;not null"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey     *string           `gorm:"type:text;uniqueIndex:ux_outbox_events_dedupe,priority:2"`
	CorrelationID string            `gorm:"type:text"`
	Published     bool              `gorm:"not null;default:false;index"`
	Attempts      int               `gorm:"not null;default:0"`
	LastError     *string           `gorm:"type:text"`
	LockedUntil   *time.Time
	PublishedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
}

func (Event) TableName() string { return "outbox_events" }

// NewEvent describes an event to publish.
type NewEvent struct {
	OrgID     snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

type Publisher interface {
	// Publish stores the event using tx when given so the event commits
	// with the write that caused it. A repeated dedupe key is a no-op.
	Publish(ctx context.Context, tx *gorm.DB, event NewEvent) error
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, event *Event) error
	// Claim leases up to limit unpublished events until now+lease.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit, maxAttempts int) ([]Event, error)
	MarkPublished(ctx context.Context, id snowflake.ID, at time.Time) error
	MarkFailed(ctx context.Context, id snowflake.ID, reason string) error
	CountPending(ctx context.Context, maxAttempts int) (int64, error)
}
