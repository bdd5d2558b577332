package domain

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

type Service interface {
	Upsert(ctx context.Context, orgID snowflake.ID, req UpsertRequest) (*Project, error)
	Patch(ctx context.Context, orgID, projectID snowflake.ID, req PatchRequest) (*Project, error)
	Delete(ctx context.Context, orgID, projectID snowflake.ID) error
	Get(ctx context.Context, orgID, projectID snowflake.ID) (*Project, error)
	List(ctx context.Context, orgID snowflake.ID, filter ListFilter) ([]*Project, error)
	Count(ctx context.Context, orgID snowflake.ID) (int64, error)
	AttachTeam(ctx context.Context, orgID, projectID, teamID snowflake.ID) (*ProjectTeam, error)
	DetachTeam(ctx context.Context, orgID, projectID, teamID snowflake.ID) error
	ListTeamIDs(ctx context.Context, orgID, projectID snowflake.ID) ([]snowflake.ID, error)
	Report(ctx context.Context, orgID, projectID snowflake.ID) (io.Reader, error)
}

// UpsertRequest creates a project when ID is nil. Nil fields are left
// untouched on update; ClearTeam unsets the owning team.
type UpsertRequest struct {
	ID          *snowflake.ID
	Name        string
	Description *string
	TeamID      *snowflake.ID
	ClearTeam   bool
}

type PatchRequest struct {
	Name           *string
	Description    *string
	Status         *string
	StartDate      *caldate.Date
	ClearStartDate bool
	DueDate        *caldate.Date
	ClearDueDate   bool
}

type ListFilter struct {
	TeamID *snowflake.ID
	Status string
}
