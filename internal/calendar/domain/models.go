// Package domain holds organization calendar events.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type Event struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID  `gorm:"not null;index:ix_calendar_events_org_start,priority:1" json:"org_id"`
	TeamID     *snowflake.ID `gorm:"index" json:"team_id"`
	ProjectID  *snowflake.ID `gorm:"index" json:"project_id"`
	Title      string        `gorm:"type:text;not null" json:"title"`
	Location   *string       `gorm:"type:text" json:"location"`
	StartsAt   *time.Time    `gorm:"index:ix_calendar_events_org_start,priority:2" json:"starts_at"`
	EndsAt     *time.Time    `json:"ends_at"`
	AllDay     bool          `gorm:"not null" json:"all_day"`
	Recurrence *string       `gorm:"type:text" json:"recurrence"`
	CreatedBy  *snowflake.ID `json:"created_by"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null" json:"updated_at"`
}

func (Event) TableName() string { return "calendar_events" }

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Events() repository.OrgStore[Event]
	TeamExists(ctx context.Context, orgID, teamID snowflake.ID) (bool, error)
	ProjectExists(ctx context.Context, orgID, projectID snowflake.ID) (bool, error)
}

// AgendaInvalidator drops cached agenda views of an organization.
type AgendaInvalidator interface {
	InvalidateOrg(ctx context.Context, orgID snowflake.ID)
}

var (
	ErrNotFound          = errors.New("event_not_found")
	ErrInvalidEvent      = errors.New("invalid_event")
	ErrTitleRequired     = errors.New("title_required")
	ErrInvalidRange      = errors.New("invalid_time_range")
	ErrInvalidRecurrence = errors.New("invalid_recurrence")
	ErrTeamNotFound      = errors.New("team_not_found")
	ErrProjectNotFound   = errors.New("project_not_found")
)
