package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db     *gorm.DB
	events repository.OrgStore[domain.Event]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db, events: repository.NewOrgStore[domain.Event](db)}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return Provide(tx)
}

func (r *repo) Events() repository.OrgStore[domain.Event] { return r.events }

func (r *repo) TeamExists(ctx context.Context, orgID, teamID snowflake.ID) (bool, error) {
	return r.exists(ctx, "teams", orgID, teamID)
}

func (r *repo) ProjectExists(ctx context.Context, orgID, projectID snowflake.ID) (bool, error) {
	return r.exists(ctx, "projects", orgID, projectID)
}

func (r *repo) exists(ctx context.Context, table string, orgID, id snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(table).
		Where("org_id = ? AND id = ?", int64(orgID), int64(id)).
		Count(&count).Error
	return count > 0, err
}
