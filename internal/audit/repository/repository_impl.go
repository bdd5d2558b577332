package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/taskboard/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns newest entries first. One extra row past Limit is fetched so
// the caller can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("org_id = ?", filter.OrgID).
		Scopes(matchAction(filter.Action), equals("target_type", filter.TargetType), equals("target_id", filter.TargetID),
			equals("actor_type", filter.ActorType), equals("actor_id", filter.ActorID))

	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if c := filter.Cursor; c != nil {
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := stmt.Order("created_at DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func equals(column, value string) func(*gorm.DB) *gorm.DB {
	value = strings.TrimSpace(value)
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

// matchAction treats "task." or "task.*" as every action in the task family.
func matchAction(action string) func(*gorm.DB) *gorm.DB {
	action = strings.TrimSuffix(strings.TrimSpace(action), "*")
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case action == "":
			return db
		case strings.HasSuffix(action, "."):
			return db.Where("action LIKE ?", action+"%")
		default:
			return db.Where("action = ?", action)
		}
	}
}
