package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/db/pagination"
)

// ListAuditLogRequest filters the active org's audit trail. An Action ending
// in "." matches the whole family, so "task." covers task.upsert and
// task.delete.
type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

// Validate rejects an inverted time window.
func (r ListAuditLogRequest) Validate() error {
	if r.StartAt != nil && r.EndAt != nil && r.StartAt.After(*r.EndAt) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Filter scopes the request to orgID and resumes after cursor.
func (r ListAuditLogRequest) Filter(orgID snowflake.ID, cursor *AuditCursor) ListFilter {
	return ListFilter{
		OrgID:      orgID,
		Action:     r.Action,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		ActorType:  r.ActorType,
		ActorID:    r.ActorID,
		StartAt:    r.StartAt,
		EndAt:      r.EndAt,
		Cursor:     cursor,
		Limit:      int(r.Limit()),
	}
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

// ValidAction reports whether action has the "family.verb" shape, e.g.
// "project.team_attach". Only lower-case letters, digits and underscores are
// allowed on either side of the dot.
func ValidAction(action string) bool {
	family, verb, ok := strings.Cut(action, ".")
	return ok && actionPart(family) && actionPart(verb)
}

func actionPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
