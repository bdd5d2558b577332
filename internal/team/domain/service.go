package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Upsert(ctx context.Context, orgID snowflake.ID, req UpsertRequest) (*Team, error)
	Delete(ctx context.Context, orgID, teamID snowflake.ID) error
	AddMember(ctx context.Context, orgID snowflake.ID, req AddMemberRequest) (*TeamMember, error)
	RemoveMember(ctx context.Context, orgID, teamID, userID snowflake.ID) error
	Get(ctx context.Context, orgID, teamID snowflake.ID) (*Team, error)
	List(ctx context.Context, orgID snowflake.ID) ([]*Team, error)
	ListMembers(ctx context.Context, orgID, teamID snowflake.ID) ([]TeamMemberUser, error)
	MyTeamIDs(ctx context.Context, orgID, userID snowflake.ID) ([]snowflake.ID, error)
	Count(ctx context.Context, orgID snowflake.ID) (int64, error)
}

// UpsertRequest creates a team when ID is nil. Description nil leaves the
// stored value untouched on update.
type UpsertRequest struct {
	ID          *snowflake.ID
	Name        string
	Description *string
}

type AddMemberRequest struct {
	TeamID snowflake.ID
	UserID snowflake.ID
	Role   string
}
