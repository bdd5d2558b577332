// Package domain holds projects and their team links.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

type Project struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;uniqueIndex:ux_projects_org_key,priority:1" json:"org_id"`
	TeamID      *snowflake.ID `gorm:"index" json:"team_id"`
	Key         string        `gorm:"type:text;not null;uniqueIndex:ux_projects_org_key,priority:2" json:"key"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	Description *string       `gorm:"type:text" json:"description"`
	Status      string        `gorm:"type:text;not null" json:"status"`
	StartDate   *caldate.Date `json:"start_date"`
	DueDate     *caldate.Date `json:"due_date"`
	CreatedBy   *snowflake.ID `json:"created_by"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

type ProjectTeam struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"-"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	ProjectID snowflake.ID `gorm:"not null;uniqueIndex:ux_project_teams_project_team,priority:1" json:"project_id"`
	TeamID    snowflake.ID `gorm:"not null;uniqueIndex:ux_project_teams_project_team,priority:2;index" json:"team_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (ProjectTeam) TableName() string { return "project_teams" }

// ReportTask is the task projection rendered into project reports.
type ReportTask struct {
	Title        string
	Status       string
	Priority     string
	AssigneeName *string
	DueDate      *caldate.Date
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Projects() repository.OrgStore[Project]
	Links() repository.OrgStore[ProjectTeam]
	TeamExists(ctx context.Context, orgID, teamID snowflake.ID) (bool, error)
	TeamName(ctx context.Context, orgID, teamID snowflake.ID) (string, error)
	OrgName(ctx context.Context, orgID snowflake.ID) (string, error)
	DeleteTasks(ctx context.Context, orgID, projectID snowflake.ID) (int64, error)
	TaskStatusCounts(ctx context.Context, orgID, projectID snowflake.ID) (map[string]int64, error)
	ReportTasks(ctx context.Context, orgID, projectID snowflake.ID) ([]ReportTask, error)
}

var (
	ErrNotFound       = errors.New("project_not_found")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidProject = errors.New("invalid_project")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidDates   = errors.New("invalid_date_range")
	ErrTeamNotFound   = errors.New("team_not_found")
)

func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}
