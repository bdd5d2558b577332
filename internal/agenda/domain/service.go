// Package domain describes the agenda and home dashboard read models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

const (
	KindEvent = "event"
	KindTask  = "task"

	LabelDueToday = "Due today"
	LabelAllDay   = "All day"
	LabelTimeTBD  = "Time TBD"
)

// Item is one agenda row. At is set only for timed events.
type Item struct {
	Kind  string     `json:"kind"`
	ID    string     `json:"id"`
	Title string     `json:"title"`
	At    *time.Time `json:"at"`
	Label string     `json:"label"`
}

type Home struct {
	Profile      *orgdomain.Profile `json:"profile"`
	Role         string             `json:"role"`
	Projects     int64              `json:"projects"`
	Tasks        int64              `json:"tasks"`
	Teams        int64              `json:"teams"`
	OpenAssigned int64              `json:"open_assigned"`
	TeamIDs      []string           `json:"team_ids"`
	Today        []Item             `json:"today"`
}

type Service interface {
	Day(ctx context.Context, orgID snowflake.ID, day caldate.Date) ([]Item, error)
	Today(ctx context.Context, orgID snowflake.ID) ([]Item, error)
	Home(ctx context.Context, orgID, userID snowflake.ID) (*Home, error)
}

var ErrInvalidOrganization = errors.New("invalid_organization")
