package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	OrgName   string `json:"org_name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

type Result struct {
	Session   *authdomain.SessionView
	RawToken  string
	ExpiresAt time.Time
	OrgID     string
	UserID    string
}

// Provisioner prepares a freshly created organization for its first user.
type Provisioner interface {
	Provision(ctx context.Context, orgID, ownerID snowflake.ID) error
}

var ErrInvalidRequest = errors.New("invalid_signup_request")
