package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/auditcontext"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/observability/metrics"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/task/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 500
	maxListLimit     = 1000
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	GenID     *snowflake.Node
	Clock     clock.Clock
	Publisher outboxdomain.Publisher   `optional:"true"`
	AuditSvc  auditdomain.Service      `optional:"true"`
	Agenda    domain.AgendaInvalidator `optional:"true"`
	Metrics   *metrics.Metrics         `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	publisher outboxdomain.Publisher
	auditSvc  auditdomain.Service
	agenda    domain.AgendaInvalidator
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("task.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		publisher: p.Publisher,
		auditSvc:  p.AuditSvc,
		agenda:    p.Agenda,
		metrics:   p.Metrics,
	}
}

func (s *service) Upsert(ctx context.Context, orgID snowflake.ID, req domain.UpsertRequest) (*domain.Task, error) {
	if req.ProjectID == 0 {
		return nil, domain.ErrProjectRequired
	}
	if req.ID != nil && *req.ID == 0 {
		return nil, domain.ErrInvalidTask
	}

	var (
		task     *domain.Task
		inserted bool
	)
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, projectTeam, err := repo.ProjectTeamID(ctx, orgID, req.ProjectID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrProjectNotFound
		}
		if err := s.checkRefs(ctx, repo, orgID, req); err != nil {
			return err
		}

		var previousAssignee *snowflake.ID
		if req.ID == nil {
			task, err = s.insert(ctx, repo, orgID, projectTeam, req)
			inserted = true
		} else {
			task, previousAssignee, err = s.update(ctx, repo, orgID, req)
		}
		if err != nil {
			return err
		}

		if task.AssigneeID == nil || sameID(previousAssignee, task.AssigneeID) || s.publisher == nil {
			return nil
		}
		return s.publisher.Publish(ctx, tx, outboxdomain.NewEvent{
			OrgID:   orgID,
			Type:    outboxdomain.EventTaskAssigned,
			Payload: assignedPayload(task),
		})
	})
	if err != nil {
		return nil, err
	}

	op := "update"
	if inserted {
		op = "insert"
	}
	s.metrics.RecordTaskUpsert(ctx, op)
	s.invalidate(ctx, orgID)
	s.audit(ctx, orgID, "task."+op, task, map[string]any{
		"project_id": task.ProjectID.String(),
		"status":     task.Status,
	})
	return task, nil
}

func (s *service) insert(ctx context.Context, repo domain.Repository, orgID snowflake.ID, projectTeam *snowflake.ID, req domain.UpsertRequest) (*domain.Task, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, domain.ErrTitleRequired
	}

	status := domain.StatusTodo
	if req.Status != nil {
		normalized, err := domain.NormalizeStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = normalized
	}
	priority := domain.PriorityMedium
	if req.Priority != nil {
		normalized, err := domain.NormalizePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		priority = normalized
	}
	orderIndex, err := repo.NextOrderIndex(ctx, orgID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	task := &domain.Task{
		ID:         s.genID.Generate(),
		ProjectID:  req.ProjectID,
		TeamID:     projectTeam,
		ParentID:   req.ParentID,
		Title:      strings.TrimSpace(*req.Title),
		Status:     status,
		Done:       status == domain.StatusDone,
		Priority:   priority,
		OrderIndex: orderIndex,
		DueDate:    req.DueDate,
		AssigneeID: req.AssigneeID,
		ReporterID: actorID(ctx),
		Labels:     normalizeLabels(req.Labels),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.TeamID != nil {
		task.TeamID = req.TeamID
	} else if req.ClearTeam {
		task.TeamID = nil
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		task.Description = &desc
	}
	if err := repo.Tasks().Insert(ctx, orgID, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) update(ctx context.Context, repo domain.Repository, orgID snowflake.ID, req domain.UpsertRequest) (*domain.Task, *snowflake.ID, error) {
	match := map[string]any{"id": int64(*req.ID)}
	current, err := repo.Tasks().SelectOne(ctx, orgID, match)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, domain.ErrNotFound
	}

	patch := map[string]any{"project_id": int64(req.ProjectID)}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, nil, domain.ErrTitleRequired
		}
		patch["title"] = title
	}
	if req.Description != nil {
		patch["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		status, err := domain.NormalizeStatus(*req.Status)
		if err != nil {
			return nil, nil, err
		}
		patch["status"] = status
		patch["done"] = status == domain.StatusDone
	}
	if req.Priority != nil {
		priority, err := domain.NormalizePriority(*req.Priority)
		if err != nil {
			return nil, nil, err
		}
		patch["priority"] = priority
	}
	switch {
	case req.DueDate != nil:
		patch["due_date"] = *req.DueDate
	case req.ClearDueDate:
		patch["due_date"] = nil
	}
	switch {
	case req.AssigneeID != nil:
		patch["assignee_id"] = int64(*req.AssigneeID)
	case req.ClearAssignee:
		patch["assignee_id"] = nil
	}
	switch {
	case req.TeamID != nil:
		patch["team_id"] = int64(*req.TeamID)
	case req.ClearTeam:
		patch["team_id"] = nil
	}
	switch {
	case req.ParentID != nil:
		if *req.ParentID == current.ID {
			return nil, nil, domain.ErrParentNotFound
		}
		patch["parent_id"] = int64(*req.ParentID)
	case req.ClearParent:
		patch["parent_id"] = nil
	}
	if req.Labels != nil {
		patch["labels"] = datatypes.JSONSlice[string](normalizeLabels(req.Labels))
	}
	patch["updated_at"] = s.clock.Now().UTC()

	rows, err := repo.Tasks().Update(ctx, orgID, match, patch)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, domain.ErrNotFound
	}
	return rows[0], current.AssigneeID, nil
}

// checkRefs rejects references to rows outside the organization.
func (s *service) checkRefs(ctx context.Context, repo domain.Repository, orgID snowflake.ID, req domain.UpsertRequest) error {
	if req.AssigneeID != nil {
		ok, err := repo.IsOrgMember(ctx, orgID, *req.AssigneeID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAssigneeNotMember
		}
	}
	if req.TeamID != nil {
		ok, err := repo.TeamExists(ctx, orgID, *req.TeamID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTeamNotFound
		}
	}
	if req.ParentID != nil {
		parent, err := repo.Tasks().SelectOne(ctx, orgID, map[string]any{"id": int64(*req.ParentID)})
		if err != nil {
			return err
		}
		if parent == nil || parent.ProjectID != req.ProjectID {
			return domain.ErrParentNotFound
		}
	}
	return nil
}

func (s *service) Delete(ctx context.Context, orgID, taskID snowflake.ID) error {
	if taskID == 0 {
		return domain.ErrInvalidTask
	}
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Tasks().Update(ctx, orgID,
			map[string]any{"parent_id": int64(taskID)},
			map[string]any{"parent_id": nil, "updated_at": s.clock.Now().UTC()},
		); err != nil {
			return err
		}
		deleted, err := repo.Tasks().Delete(ctx, orgID, map[string]any{"id": int64(taskID)})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, orgID)
	s.audit(ctx, orgID, "task.delete", &domain.Task{ID: taskID}, nil)
	return nil
}

func (s *service) Get(ctx context.Context, orgID, taskID snowflake.ID) (*domain.Task, error) {
	if taskID == 0 {
		return nil, domain.ErrInvalidTask
	}
	task, err := s.repo.Tasks().SelectOne(ctx, orgID, map[string]any{"id": int64(taskID)})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (s *service) List(ctx context.Context, orgID snowflake.ID, filter domain.ListFilter) ([]*domain.Task, error) {
	opts := []option.QueryOption{}
	if filter.ProjectID != nil {
		opts = append(opts, option.WithWhere("project_id = ?", int64(*filter.ProjectID)))
	}
	if filter.AssigneeID != nil {
		opts = append(opts, option.WithWhere("assignee_id = ?", int64(*filter.AssigneeID)))
	}
	if filter.TeamID != nil {
		opts = append(opts, option.WithWhere("team_id = ?", int64(*filter.TeamID)))
	}
	if filter.Status != "" {
		status, err := domain.NormalizeStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithWhere("status = ?", status))
	}
	if filter.OpenOnly {
		opts = append(opts, option.WithWhere("status <> ?", domain.StatusDone))
	}
	if filter.DueOn != nil {
		opts = append(opts, option.WithWhere("due_date = ?", *filter.DueOn))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	opts = append(opts,
		option.WithOrderExpr("due_date IS NULL, due_date ASC"),
		option.WithOrder("created_at", true),
		option.WithOrder("id", false),
		option.WithLimit(limit),
	)
	return s.repo.Tasks().SelectMany(ctx, orgID, opts...)
}

func (s *service) Count(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return s.repo.Tasks().Count(ctx, orgID, nil)
}

func (s *service) CountOpenAssigned(ctx context.Context, orgID, userID snowflake.ID) (int64, error) {
	return s.repo.Tasks().Count(ctx, orgID, map[string]any{
		"assignee_id": int64(userID),
		"done":        false,
	})
}

func (s *service) ListDue(ctx context.Context, day caldate.Date, afterID snowflake.ID, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListDue(ctx, day, afterID, limit)
}

func (s *service) invalidate(ctx context.Context, orgID snowflake.ID) {
	if s.agenda != nil {
		s.agenda.InvalidateOrg(ctx, orgID)
	}
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action string, task *domain.Task, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := task.ID.String()
	ctx = auditcontext.WithTaskID(ctx, targetID)
	if task.ProjectID != 0 {
		ctx = auditcontext.WithProjectID(ctx, task.ProjectID.String())
	}
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "task", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func assignedPayload(task *domain.Task) map[string]any {
	payload := map[string]any{
		"task_id":     task.ID.String(),
		"project_id":  task.ProjectID.String(),
		"assignee_id": task.AssigneeID.String(),
		"title":       task.Title,
	}
	if task.DueDate != nil {
		payload["due_date"] = task.DueDate.String()
	}
	return payload
}

func normalizeLabels(labels []string) []string {
	if labels == nil {
		return nil
	}
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, label)
	}
	return out
}

func sameID(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func actorID(ctx context.Context) *snowflake.ID {
	actorType, raw := auditcontext.ActorFromContext(ctx)
	if actorType != string(auditdomain.ActorTypeUser) || raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil
	}
	return &id
}
