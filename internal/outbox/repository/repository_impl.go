package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/outbox/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxErrorLength = 500

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, event *domain.Event) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
}

func (r *repo) Claim(ctx context.Context, now time.Time, lease time.Duration, limit, maxAttempts int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&domain.Event{}).
			Where("published = ?", false).
			Where("attempts < ?", maxAttempts).
			Where("locked_until IS NULL OR locked_until < ?", now).
			Order("created_at ASC").
			Order("id ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := query.Find(&events).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.ID)
		}
		until := now.Add(lease)
		if err := tx.Model(&domain.Event{}).
			Where("id IN ?", ids).
			Update("locked_until", until).Error; err != nil {
			return err
		}
		for i := range events {
			events[i].LockedUntil = &until
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkPublished(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published":    true,
			"published_at": at,
			"locked_until": nil,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
}

func (r *repo) MarkFailed(ctx context.Context, id snowflake.ID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":   truncateReason(reason),
			"locked_until": nil,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
}

func (r *repo) CountPending(ctx context.Context, maxAttempts int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("published = ? AND attempts < ?", false, maxAttempts).
		Count(&count).Error
	return count, err
}

// truncateReason caps reason at maxErrorLength bytes without splitting a
// multi-byte character.
func truncateReason(reason string) string {
	if len(reason) <= maxErrorLength {
		return reason
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
