package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/project/domain"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db       *gorm.DB
	projects repository.OrgStore[domain.Project]
	links    repository.OrgStore[domain.ProjectTeam]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{
		db:       db,
		projects: repository.NewOrgStore[domain.Project](db),
		links:    repository.NewOrgStore[domain.ProjectTeam](db),
	}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return Provide(tx)
}

func (r *repo) Projects() repository.OrgStore[domain.Project] { return r.projects }

func (r *repo) Links() repository.OrgStore[domain.ProjectTeam] { return r.links }

func (r *repo) TeamExists(ctx context.Context, orgID, teamID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("teams").
		Where("org_id = ? AND id = ?", int64(orgID), int64(teamID)).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) TeamName(ctx context.Context, orgID, teamID snowflake.ID) (string, error) {
	return r.name(ctx, "teams", orgID, teamID)
}

func (r *repo) OrgName(ctx context.Context, orgID snowflake.ID) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("organizations").
		Where("id = ?", int64(orgID)).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}

func (r *repo) name(ctx context.Context, table string, orgID, id snowflake.ID) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table(table).
		Where("org_id = ? AND id = ?", int64(orgID), int64(id)).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return names[0], nil
}

func (r *repo) DeleteTasks(ctx context.Context, orgID, projectID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		"DELETE FROM tasks WHERE org_id = ? AND project_id = ?",
		int64(orgID),
		int64(projectID),
	)
	return result.RowsAffected, result.Error
}

func (r *repo) TaskStatusCounts(ctx context.Context, orgID, projectID snowflake.ID) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Table("tasks").
		Select("status, COUNT(*) AS total").
		Where("org_id = ? AND project_id = ?", int64(orgID), int64(projectID)).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *repo) ReportTasks(ctx context.Context, orgID, projectID snowflake.ID) ([]domain.ReportTask, error) {
	var rows []domain.ReportTask
	err := r.db.WithContext(ctx).Raw(
		`SELECT t.title, t.status, t.priority, p.full_name AS assignee_name, t.due_date
		 FROM tasks t
		 LEFT JOIN profiles p ON p.id = t.assignee_id AND p.org_id = t.org_id
		 WHERE t.org_id = ? AND t.project_id = ?
		 ORDER BY t.due_date IS NULL, t.due_date ASC, t.created_at ASC`,
		int64(orgID),
		int64(projectID),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
