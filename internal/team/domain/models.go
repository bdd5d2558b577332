// Package domain holds team and team membership types.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

const DefaultMemberRole = "member"

type Team struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description *string      `gorm:"type:text" json:"description"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Team) TableName() string { return "teams" }

type TeamMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"-"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	TeamID    snowflake.ID `gorm:"not null;uniqueIndex:ux_team_members_team_user,priority:1" json:"team_id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_team_members_team_user,priority:2;index" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (TeamMember) TableName() string { return "team_members" }

// TeamMemberUser is a row of the team_member_users view.
type TeamMemberUser struct {
	TeamID    snowflake.ID `json:"team_id"`
	UserID    snowflake.ID `json:"user_id"`
	OrgID     snowflake.ID `json:"org_id"`
	Role      string       `json:"role"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Teams() repository.OrgStore[Team]
	Members() repository.OrgStore[TeamMember]
	ListMemberUsers(ctx context.Context, orgID, teamID snowflake.ID) ([]TeamMemberUser, error)
	TeamIDsForUser(ctx context.Context, orgID, userID snowflake.ID) ([]snowflake.ID, error)
	IsOrgMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
}

var (
	ErrNotFound       = errors.New("team_not_found")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidTeam    = errors.New("invalid_team")
	ErrInvalidUser    = errors.New("invalid_user")
	ErrNotOrgMember   = errors.New("user_not_in_organization")
	ErrMemberNotFound = errors.New("team_member_not_found")
)
