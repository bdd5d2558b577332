package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/task/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db    *gorm.DB
	tasks repository.OrgStore[domain.Task]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db, tasks: repository.NewOrgStore[domain.Task](db)}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return Provide(tx)
}

func (r *repo) Tasks() repository.OrgStore[domain.Task] { return r.tasks }

func (r *repo) ProjectTeamID(ctx context.Context, orgID, projectID snowflake.ID) (bool, *snowflake.ID, error) {
	var rows []struct {
		TeamID *snowflake.ID
	}
	err := r.db.WithContext(ctx).
		Table("projects").
		Select("team_id").
		Where("org_id = ? AND id = ?", int64(orgID), int64(projectID)).
		Limit(1).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return false, nil, err
	}
	return true, rows[0].TeamID, nil
}

func (r *repo) TeamExists(ctx context.Context, orgID, teamID snowflake.ID) (bool, error) {
	return r.exists(ctx, "teams", "org_id = ? AND id = ?", int64(orgID), int64(teamID))
}

func (r *repo) IsOrgMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	return r.exists(ctx, "profiles", "org_id = ? AND id = ?", int64(orgID), int64(userID))
}

func (r *repo) exists(ctx context.Context, table, query string, args ...any) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(table).Where(query, args...).Count(&count).Error
	return count > 0, err
}

func (r *repo) NextOrderIndex(ctx context.Context, orgID, projectID snowflake.ID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Select("MAX(order_index)").
		Where("org_id = ? AND project_id = ?", int64(orgID), int64(projectID)).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (r *repo) ListDue(ctx context.Context, day caldate.Date, afterID snowflake.ID, limit int) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("due_date = ? AND status <> ? AND id > ?", day, domain.StatusDone, int64(afterID)).
		Order("id ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}
