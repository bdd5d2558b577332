// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User is the login identity. Application data about a person lives in
// the org-scoped profile.
type User struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	Email               string            `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	DisplayName         string            `gorm:"column:display_name;type:text;not null" json:"display_name"`
	PasswordHash        *string           `gorm:"type:text" json:"-"`
	IsDefault           bool              `gorm:"column:is_default" json:"is_default"`
	LastPasswordChanged *time.Time        `gorm:"column:last_password_changed" json:"last_password_changed,omitempty"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt           time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name. "users" is the public directory view.
func (User) TableName() string { return "accounts" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID               `gorm:"primaryKey"`
	UserID           snowflake.ID               `gorm:"column:user_id;not null;index"`
	SessionTokenHash string                     `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string                     `gorm:"column:user_agent;type:text"`
	IPAddress        string                     `gorm:"column:ip_address;type:text"`
	ActiveOrgID      *int64                     `gorm:"column:active_org_id"`
	OrgIDs           datatypes.JSONSlice[int64] `gorm:"column:org_ids;type:jsonb"`
	ExpiresAt        time.Time                  `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time                 `gorm:"column:revoked_at"`
	CreatedAt        time.Time                  `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time                  `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// PasswordReset is a single-use reset token. Only the hash is stored.
type PasswordReset struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time   `gorm:"column:used_at"`
	CreatedAt time.Time    `gorm:"column:created_at;not null"`
}

func (PasswordReset) TableName() string { return "password_resets" }

// SessionView is returned to clients without exposing token values.
type SessionView struct {
	Metadata map[string]any `json:"metadata"`
}
