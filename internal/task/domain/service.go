package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

type Service interface {
	Upsert(ctx context.Context, orgID snowflake.ID, req UpsertRequest) (*Task, error)
	Delete(ctx context.Context, orgID, taskID snowflake.ID) error
	Get(ctx context.Context, orgID, taskID snowflake.ID) (*Task, error)
	List(ctx context.Context, orgID snowflake.ID, filter ListFilter) ([]*Task, error)
	Count(ctx context.Context, orgID snowflake.ID) (int64, error)
	CountOpenAssigned(ctx context.Context, orgID, userID snowflake.ID) (int64, error)
	ListDue(ctx context.Context, day caldate.Date, afterID snowflake.ID, limit int) ([]Task, error)
}

// UpsertRequest mirrors task_upsert arguments. A nil field is an absent
// argument and leaves the stored value alone on update; the Clear flags
// carry an explicit null.
type UpsertRequest struct {
	ID            *snowflake.ID
	ProjectID     snowflake.ID
	Title         *string
	Description   *string
	Status        *string
	Priority      *string
	DueDate       *caldate.Date
	ClearDueDate  bool
	AssigneeID    *snowflake.ID
	ClearAssignee bool
	TeamID        *snowflake.ID
	ClearTeam     bool
	ParentID      *snowflake.ID
	ClearParent   bool
	Labels        []string
}

type ListFilter struct {
	ProjectID  *snowflake.ID
	AssigneeID *snowflake.ID
	TeamID     *snowflake.ID
	Status     string
	DueOn      *caldate.Date
	OpenOnly   bool
	Limit      int
}
