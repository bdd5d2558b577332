package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Event, error)
	Update(ctx context.Context, orgID, eventID snowflake.ID, req UpdateRequest) (*Event, error)
	Delete(ctx context.Context, orgID, eventID snowflake.ID) error
	Get(ctx context.Context, orgID, eventID snowflake.ID) (*Event, error)
	// ListRange returns events starting in [from, to), earliest first.
	ListRange(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]*Event, error)
}

type CreateRequest struct {
	Title      string
	Location   *string
	StartsAt   *time.Time
	EndsAt     *time.Time
	AllDay     bool
	Recurrence *string
	TeamID     *snowflake.ID
	ProjectID  *snowflake.ID
}

// UpdateRequest leaves nil fields untouched; Clear flags carry explicit nulls.
type UpdateRequest struct {
	Title         *string
	Location      *string
	StartsAt      *time.Time
	ClearStartsAt bool
	EndsAt        *time.Time
	ClearEndsAt   bool
	AllDay        *bool
	Recurrence    *string
	TeamID        *snowflake.ID
	ClearTeam     bool
	ProjectID     *snowflake.ID
	ClearProject  bool
}
