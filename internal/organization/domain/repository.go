package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	IsAdmin   bool
	CreatedAt time.Time
}

// OrgUser is a row of the org user directory.
type OrgUser struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)

	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, orgID, userID snowflake.ID) (*Profile, error)
	UpdateProfile(ctx context.Context, orgID, userID snowflake.ID, fields map[string]any) error
	CountAdmins(ctx context.Context, orgID snowflake.ID) (int64, error)
	ListUsers(ctx context.Context, orgID snowflake.ID) ([]OrgUser, error)
	ListProfiles(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]Profile, error)
	FirstOrgForUser(ctx context.Context, userID snowflake.ID) (snowflake.ID, error)

	CreateInvites(ctx context.Context, invites []OrganizationInvite) error
	GetInviteByCode(ctx context.Context, codeHash string) (*OrganizationInvite, error)
	MarkInviteAccepted(ctx context.Context, id snowflake.ID, at time.Time) error
}
