// Package domain holds tasks and the rules that shape task writes.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Task struct {
	ID          snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID                `gorm:"not null;index:ix_tasks_org_due,priority:1" json:"org_id"`
	ProjectID   snowflake.ID                `gorm:"not null;index" json:"project_id"`
	TeamID      *snowflake.ID               `gorm:"index" json:"team_id"`
	ParentID    *snowflake.ID               `gorm:"index" json:"parent_id"`
	Title       string                      `gorm:"type:text;not null" json:"title"`
	Description *string                     `gorm:"type:text" json:"description"`
	Status      string                      `gorm:"type:text;not null" json:"status"`
	Done        bool                        `gorm:"not null" json:"done"`
	Priority    string                      `gorm:"type:text;not null" json:"priority"`
	OrderIndex  int                         `gorm:"not null" json:"order_index"`
	DueDate     *caldate.Date               `gorm:"index:ix_tasks_org_due,priority:2" json:"due_date"`
	AssigneeID  *snowflake.ID               `gorm:"index" json:"assignee_id"`
	ReporterID  *snowflake.ID               `json:"reporter_id"`
	Labels      datatypes.JSONSlice[string] `json:"labels"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Tasks() repository.OrgStore[Task]
	ProjectTeamID(ctx context.Context, orgID, projectID snowflake.ID) (found bool, teamID *snowflake.ID, err error)
	TeamExists(ctx context.Context, orgID, teamID snowflake.ID) (bool, error)
	IsOrgMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	NextOrderIndex(ctx context.Context, orgID, projectID snowflake.ID) (int, error)
	// ListDue walks open tasks due on day across every organization, in id order.
	ListDue(ctx context.Context, day caldate.Date, afterID snowflake.ID, limit int) ([]Task, error)
}

// AgendaInvalidator drops cached agenda views of an organization.
type AgendaInvalidator interface {
	InvalidateOrg(ctx context.Context, orgID snowflake.ID)
}

var (
	ErrNotFound          = errors.New("task_not_found")
	ErrInvalidTask       = errors.New("invalid_task")
	ErrTitleRequired     = errors.New("title_required")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidPriority   = errors.New("invalid_priority")
	ErrProjectRequired   = errors.New("project_required")
	ErrProjectNotFound   = errors.New("project_not_found")
	ErrTeamNotFound      = errors.New("team_not_found")
	ErrAssigneeNotMember = errors.New("assignee_not_in_organization")
	ErrParentNotFound    = errors.New("parent_task_not_found")
)

// NormalizeStatus accepts the board's status values plus the "doing" alias.
func NormalizeStatus(raw string) (string, error) {
	switch status := strings.ToLower(strings.TrimSpace(raw)); status {
	case StatusTodo, StatusInProgress, StatusDone:
		return status, nil
	case "doing", "in-progress", "inprogress":
		return StatusInProgress, nil
	default:
		return "", ErrInvalidStatus
	}
}

func NormalizePriority(raw string) (string, error) {
	switch priority := strings.ToLower(strings.TrimSpace(raw)); priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return priority, nil
	default:
		return "", ErrInvalidPriority
	}
}
