package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	UpdateSessionOrgContext(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64, orgIDs []int64) error
	ChangePassword(ctx context.Context, userID snowflake.ID, currentPassword, newPassword string) error
	GetUser(ctx context.Context, userID snowflake.ID) (*User, error)
	ListUsers(ctx context.Context, req ListUsersRequest) (*ListUsersResponse, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	PurgeExpiredSessions(ctx context.Context, limit int) (int64, error)
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	IsDefault   bool
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	Session   *SessionView
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}

// ListUsersRequest pages by number starting at 1.
type ListUsersRequest struct {
	Page    int
	PerPage int
}

type ListUsersResponse struct {
	Users   []User `json:"users"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}
