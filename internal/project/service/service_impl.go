package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/auditcontext"
	"github.com/smallbiznis/taskboard/internal/clock"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/project/domain"
	"github.com/smallbiznis/taskboard/internal/providers/pdf"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxKeyLength = 8
	fallbackKey  = "PRJ"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	GenID     *snowflake.Node
	Clock     clock.Clock
	PDF       pdf.Provider                 `optional:"true"`
	Publisher outboxdomain.Publisher       `optional:"true"`
	AuditSvc  auditdomain.Service          `optional:"true"`
	Agenda    taskdomain.AgendaInvalidator `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	pdf       pdf.Provider
	publisher outboxdomain.Publisher
	auditSvc  auditdomain.Service
	agenda    taskdomain.AgendaInvalidator
}

func NewService(p Params) domain.Service {
	renderer := p.PDF
	if renderer == nil {
		renderer = pdf.New()
	}
	return &service{
		db:        p.DB,
		log:       p.Log.Named("project.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		pdf:       renderer,
		publisher: p.Publisher,
		auditSvc:  p.AuditSvc,
		agenda:    p.Agenda,
	}
}

func (s *service) Upsert(ctx context.Context, orgID snowflake.ID, req domain.UpsertRequest) (*domain.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.ID == nil {
		return s.create(ctx, orgID, name, req)
	}
	if *req.ID == 0 {
		return nil, domain.ErrInvalidProject
	}

	var (
		project     *domain.Project
		teamChanged bool
	)
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Projects().SelectOne(ctx, orgID, map[string]any{"id": int64(*req.ID)})
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		patch := map[string]any{
			"name":       name,
			"updated_at": s.clock.Now().UTC(),
		}
		if req.Description != nil {
			patch["description"] = strings.TrimSpace(*req.Description)
		}
		attachTo := snowflake.ID(0)
		switch {
		case req.TeamID != nil:
			if err := s.ensureTeam(ctx, repo, orgID, *req.TeamID); err != nil {
				return err
			}
			patch["team_id"] = int64(*req.TeamID)
			if current.TeamID == nil || *current.TeamID != *req.TeamID {
				attachTo = *req.TeamID
				teamChanged = true
			}
		case req.ClearTeam:
			patch["team_id"] = nil
			teamChanged = current.TeamID != nil
		}

		rows, err := repo.Projects().Update(ctx, orgID, map[string]any{"id": int64(current.ID)}, patch)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrNotFound
		}
		project = rows[0]
		if attachTo != 0 {
			if _, err := s.attach(ctx, tx, repo, orgID, project, attachTo); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if teamChanged {
		s.invalidateAgenda(ctx, orgID)
	}
	s.audit(ctx, orgID, "project.update", project.ID, map[string]any{"name": project.Name})
	return project, nil
}

func (s *service) create(ctx context.Context, orgID snowflake.ID, name string, req domain.UpsertRequest) (*domain.Project, error) {
	now := s.clock.Now().UTC()
	project := &domain.Project{
		ID:        s.genID.Generate(),
		Name:      name,
		Status:    domain.StatusActive,
		CreatedBy: actorID(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != nil {
		if desc := strings.TrimSpace(*req.Description); desc != "" {
			project.Description = &desc
		}
	}

	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if req.TeamID != nil {
			if err := s.ensureTeam(ctx, repo, orgID, *req.TeamID); err != nil {
				return err
			}
			teamID := *req.TeamID
			project.TeamID = &teamID
		}
		key, err := s.uniqueKey(ctx, repo, orgID, name)
		if err != nil {
			return err
		}
		project.Key = key
		if err := repo.Projects().Insert(ctx, orgID, project); err != nil {
			return err
		}
		if project.TeamID != nil {
			if _, err := s.attach(ctx, tx, repo, orgID, project, *project.TeamID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, "project.create", project.ID, map[string]any{
		"name": project.Name,
		"key":  project.Key,
	})
	return project, nil
}

func (s *service) Patch(ctx context.Context, orgID, projectID snowflake.ID, req domain.PatchRequest) (*domain.Project, error) {
	if projectID == 0 {
		return nil, domain.ErrInvalidProject
	}

	var project *domain.Project
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Projects().SelectOne(ctx, orgID, map[string]any{"id": int64(projectID)})
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		patch := map[string]any{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			patch["name"] = name
		}
		if req.Description != nil {
			patch["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Status != nil {
			status := strings.ToLower(strings.TrimSpace(*req.Status))
			if !domain.ValidStatus(status) {
				return domain.ErrInvalidStatus
			}
			patch["status"] = status
		}

		start, due := current.StartDate, current.DueDate
		switch {
		case req.StartDate != nil:
			start = req.StartDate
			patch["start_date"] = *req.StartDate
		case req.ClearStartDate:
			start = nil
			patch["start_date"] = nil
		}
		switch {
		case req.DueDate != nil:
			due = req.DueDate
			patch["due_date"] = *req.DueDate
		case req.ClearDueDate:
			due = nil
			patch["due_date"] = nil
		}
		if start != nil && due != nil && due.Before(*start) {
			return domain.ErrInvalidDates
		}

		if len(patch) == 0 {
			project = current
			return nil
		}
		patch["updated_at"] = s.clock.Now().UTC()
		rows, err := repo.Projects().Update(ctx, orgID, map[string]any{"id": int64(projectID)}, patch)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrNotFound
		}
		project = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, "project.update", project.ID, nil)
	return project, nil
}

func (s *service) Delete(ctx context.Context, orgID, projectID snowflake.ID) error {
	if projectID == 0 {
		return domain.ErrInvalidProject
	}
	var removedTasks int64
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if removedTasks, err = repo.DeleteTasks(ctx, orgID, projectID); err != nil {
			return err
		}
		if _, err := repo.Links().Delete(ctx, orgID, map[string]any{"project_id": int64(projectID)}); err != nil {
			return err
		}
		deleted, err := repo.Projects().Delete(ctx, orgID, map[string]any{"id": int64(projectID)})
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
	s.invalidateAgenda(ctx, orgID)
	s.audit(ctx, orgID, "project.delete", projectID, map[string]any{"tasks_removed": removedTasks})
	return nil
}

// invalidateAgenda drops cached agenda days once tasks of the org changed
// underneath them.
func (s *service) invalidateAgenda(ctx context.Context, orgID snowflake.ID) {
	if s.agenda != nil {
		s.agenda.InvalidateOrg(ctx, orgID)
	}
}

func (s *service) Get(ctx context.Context, orgID, projectID snowflake.ID) (*domain.Project, error) {
	if projectID == 0 {
		return nil, domain.ErrInvalidProject
	}
	project, err := s.repo.Projects().SelectOne(ctx, orgID, map[string]any{"id": int64(projectID)})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, domain.ErrNotFound
	}
	return project, nil
}

func (s *service) List(ctx context.Context, orgID snowflake.ID, filter domain.ListFilter) ([]*domain.Project, error) {
	opts := []option.QueryOption{}
	if filter.TeamID != nil {
		opts = append(opts, option.WithWhere(
			"team_id = ? OR id IN (SELECT project_id FROM project_teams WHERE org_id = ? AND team_id = ?)",
			int64(*filter.TeamID), int64(orgID), int64(*filter.TeamID),
		))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		if !domain.ValidStatus(status) {
			return nil, domain.ErrInvalidStatus
		}
		opts = append(opts, option.WithWhere("status = ?", status))
	}
	opts = append(opts, option.WithOrder("name", false), option.WithOrder("id", false))
	return s.repo.Projects().SelectMany(ctx, orgID, opts...)
}

func (s *service) Count(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return s.repo.Projects().Count(ctx, orgID, nil)
}

func (s *service) AttachTeam(ctx context.Context, orgID, projectID, teamID snowflake.ID) (*domain.ProjectTeam, error) {
	if projectID == 0 {
		return nil, domain.ErrInvalidProject
	}
	var link *domain.ProjectTeam
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		project, err := repo.Projects().SelectOne(ctx, orgID, map[string]any{"id": int64(projectID)})
		if err != nil {
			return err
		}
		if project == nil {
			return domain.ErrNotFound
		}
		if err := s.ensureTeam(ctx, repo, orgID, teamID); err != nil {
			return err
		}
		link, err = s.attach(ctx, tx, repo, orgID, project, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *service) DetachTeam(ctx context.Context, orgID, projectID, teamID snowflake.ID) error {
	if projectID == 0 {
		return domain.ErrInvalidProject
	}
	var deleted int64
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).Links().Delete(ctx, orgID, map[string]any{
			"project_id": int64(projectID),
			"team_id":    int64(teamID),
		})
		return err
	})
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.audit(ctx, orgID, "project.team_detach", projectID, map[string]any{"team_id": teamID.String()})
	}
	return nil
}

func (s *service) ListTeamIDs(ctx context.Context, orgID, projectID snowflake.ID) ([]snowflake.ID, error) {
	links, err := s.repo.Links().SelectMany(ctx, orgID,
		option.WithWhere("project_id = ?", int64(projectID)),
		option.WithOrder("created_at", false),
	)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.TeamID)
	}
	return ids, nil
}

func (s *service) Report(ctx context.Context, orgID, projectID snowflake.ID) (io.Reader, error) {
	project, err := s.Get(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.TaskStatusCounts(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ReportTasks(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	orgName, err := s.repo.OrgName(ctx, orgID)
	if err != nil {
		return nil, err
	}

	report := pdf.ProjectReport{
		OrgName:      orgName,
		ProjectKey:   project.Key,
		ProjectName:  project.Name,
		Status:       project.Status,
		StartDate:    dateString(project.StartDate),
		DueDate:      dateString(project.DueDate),
		GeneratedAt:  s.clock.Now(),
		StatusCounts: counts,
		Tasks:        make([]pdf.ReportTask, 0, len(tasks)),
	}
	if project.Description != nil {
		report.Description = *project.Description
	}
	for _, task := range tasks {
		row := pdf.ReportTask{
			Title:    task.Title,
			Status:   task.Status,
			Priority: task.Priority,
			DueDate:  dateString(task.DueDate),
		}
		if task.AssigneeName != nil {
			row.Assignee = *task.AssigneeName
		}
		report.Tasks = append(report.Tasks, row)
	}
	return s.pdf.GenerateProjectReport(ctx, report)
}

// attach links teamID to project and publishes project.team_attached the
// first time the link is made.
func (s *service) attach(ctx context.Context, tx *gorm.DB, repo domain.Repository, orgID snowflake.ID, project *domain.Project, teamID snowflake.ID) (*domain.ProjectTeam, error) {
	match := map[string]any{"project_id": int64(project.ID), "team_id": int64(teamID)}
	existing, err := repo.Links().SelectOne(ctx, orgID, match)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	link := &domain.ProjectTeam{
		ID:        s.genID.Generate(),
		ProjectID: project.ID,
		TeamID:    teamID,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := repo.Links().Insert(ctx, orgID, link); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, "project.team_attach", project.ID, map[string]any{"team_id": teamID.String()})

	if s.publisher == nil {
		return link, nil
	}
	err = s.publisher.Publish(ctx, tx, outboxdomain.NewEvent{
		OrgID: orgID,
		Type:  outboxdomain.EventProjectTeamAttached,
		Payload: map[string]any{
			"project_id":   project.ID.String(),
			"project_name": project.Name,
			"team_id":      teamID.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *service) ensureTeam(ctx context.Context, repo domain.Repository, orgID, teamID snowflake.ID) error {
	if teamID == 0 {
		return domain.ErrTeamNotFound
	}
	ok, err := repo.TeamExists(ctx, orgID, teamID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (s *service) uniqueKey(ctx context.Context, repo domain.Repository, orgID snowflake.ID, name string) (string, error) {
	base := projectKey(name)
	candidate := base
	for i := 2; ; i++ {
		taken, err := repo.Projects().Count(ctx, orgID, map[string]any{"key": candidate})
		if err != nil {
			return "", err
		}
		if taken == 0 {
			return candidate, nil
		}
		suffix := fmt.Sprintf("%d", i)
		trimmed := base
		if len(trimmed)+len(suffix) > maxKeyLength {
			trimmed = trimmed[:maxKeyLength-len(suffix)]
		}
		candidate = trimmed + suffix
	}
}

// projectKey turns a project name into an upper-case ASCII key.
func projectKey(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(slug.Make(name), "-", ""))
	if len(key) > maxKeyLength {
		key = key[:maxKeyLength]
	}
	if key == "" {
		return fallbackKey
	}
	return key
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action string, projectID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := projectID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "project", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
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

func dateString(d *caldate.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
