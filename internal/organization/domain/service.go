package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (*OrganizationResponse, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)
	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	// ResolveOrgID returns the org of the user's earliest profile.
	ResolveOrgID(ctx context.Context, userID snowflake.ID) (snowflake.ID, error)

	GetProfile(ctx context.Context, orgID, userID snowflake.ID) (*Profile, error)
	UpdateProfile(ctx context.Context, orgID, userID snowflake.ID, req UpdateProfileRequest) (*Profile, error)
	ListUsers(ctx context.Context, orgID snowflake.ID) ([]OrgUser, error)
	ListProfiles(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]Profile, error)
	SetAdmin(ctx context.Context, orgID, userID snowflake.ID, isAdmin bool) (*Profile, error)

	InviteMembers(ctx context.Context, orgID, inviterID snowflake.ID, invites []InviteRequest) ([]InviteResponse, error)
	AcceptInvite(ctx context.Context, req AcceptInviteRequest) (*Profile, error)
}

type CreateOrganizationRequest struct {
	Name      string
	FullName  string
	Email     string
	IsDefault bool
}

type UpdateProfileRequest struct {
	FullName  *string `json:"full_name"`
	PhoneE164 *string `json:"phone_e164"`
}

type InviteRequest struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

type InviteResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	// Code is returned only to the inviter so it can be shared out of band.
	Code string `json:"code"`
}

type AcceptInviteRequest struct {
	UserID   snowflake.ID
	Email    string
	FullName string
	Code     string
}

type OrganizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPhone        = errors.New("invalid_phone")
	ErrNotFound            = errors.New("not_found")
	ErrProfileNotFound     = errors.New("profile_not_found")
	ErrNoOrganization      = errors.New("no_organization")
	ErrLastAdmin           = errors.New("last_admin")
	ErrAlreadyMember       = errors.New("already_member")
	ErrInvalidInvite       = errors.New("invalid_invite")
	ErrInviteEmailMismatch = errors.New("invite_email_mismatch")
)
