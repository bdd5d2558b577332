// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Organization represents a tenant.
type Organization struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	IsDefault bool              `gorm:"column:is_default" json:"is_default"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Profile is a user's membership record in one organization.
type Profile struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID     snowflake.ID `gorm:"primaryKey;autoIncrement:false;index" json:"org_id"`
	FullName  string       `gorm:"type:text;not null" json:"full_name"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	PhoneE164 *string      `gorm:"column:phone_e164;type:text" json:"phone_e164"`
	IsAdmin   bool         `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

// Role maps is_admin to the role name used by guards.
func (p Profile) Role() string {
	if p.IsAdmin {
		return RoleAdmin
	}
	return RoleMember
}

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
)

// OrganizationInvite tracks a pending invite to an organization.
type OrganizationInvite struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email      string       `gorm:"type:text;not null" json:"email"`
	IsAdmin    bool         `gorm:"not null;default:false" json:"is_admin"`
	Status     string       `gorm:"type:text;not null" json:"status"`
	CodeHash   string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	InvitedBy  snowflake.ID `gorm:"column:invited_by;not null" json:"invited_by"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	AcceptedAt *time.Time   `json:"accepted_at,omitempty"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }
