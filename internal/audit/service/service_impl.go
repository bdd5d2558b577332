package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/audit/masking"
	auditcontext "github.com/smallbiznis/taskboard/internal/auditcontext"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/orgcontext"
	"github.com/smallbiznis/taskboard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

// Service writes and pages the audit trail. Entries are stamped to the second
// so cursor tokens round-trip through RFC 3339 exactly.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if !auditdomain.ValidAction(action) {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      s.resolveOrgID(ctx, orgID),
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(targetID),
		Metadata:   datatypes.JSONMap(entryMetadata(ctx, metadata)),
		IPAddress:  optional(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  optional(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC().Truncate(time.Second),
	}
	entry.ActorType, entry.ActorID = resolveActor(ctx, strings.TrimSpace(actorType), actorID)

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOrganization
	}
	if err := req.Validate(); err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	filter := req.Filter(orgID, cursor)
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	var resp auditdomain.ListAuditLogResponse
	if pageInfo := pagination.BuildCursorPageInfo(items, int32(filter.Limit), encodeCursor); pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	resp.AuditLogs = make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			resp.AuditLogs = append(resp.AuditLogs, *item)
		}
	}
	return resp, nil
}

// entryMetadata masks caller metadata and adds the request and resource ids
// carried on ctx.
func entryMetadata(ctx context.Context, metadata map[string]any) map[string]any {
	payload := make(map[string]any, len(metadata)+3)
	for key, value := range metadata {
		if key != "" {
			payload[key] = masking.Field(key, value)
		}
	}
	for key, value := range map[string]string{
		"request_id": auditcontext.RequestIDFromContext(ctx),
		"task_id":    auditcontext.TaskIDFromContext(ctx),
		"project_id": auditcontext.ProjectIDFromContext(ctx),
	} {
		if value != "" {
			payload[key] = value
		}
	}
	return payload
}

func decodeCursor(token string) (*auditdomain.AuditCursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}

func encodeCursor(item *auditdomain.AuditLog) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        item.ID.String(),
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return ""
	}
	return token
}

func (s *Service) resolveOrgID(ctx context.Context, orgID *snowflake.ID) *snowflake.ID {
	if orgID != nil && *orgID != 0 {
		return orgID
	}
	resolved, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || resolved == 0 {
		return nil
	}
	return &resolved
}

// resolveActor falls back to the actor on ctx, then to the system actor.
func resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	if actorType == "" {
		ctxType, ctxID := auditcontext.ActorFromContext(ctx)
		actorType = ctxType
		if normalizePointer(actorID) == nil {
			actorID = optional(ctxID)
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	return actorType, normalizePointer(actorID)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(strings.TrimSpace(*value))
}
