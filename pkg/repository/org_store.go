package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const orgColumn = "org_id"

var (
	ErrMissingOrg    = errors.New("missing_org_id")
	ErrMissingMatch  = errors.New("missing_match")
	ErrNotOrgScoped  = errors.New("model_not_org_scoped")
	ErrCrossOrgWrite = errors.New("cross_org_write")
)

// OrgStore scopes every statement to one organization. Rows written through
// it always carry the caller's org_id, whatever the payload says.
type OrgStore[T any] interface {
	WithTx(tx *gorm.DB) OrgStore[T]
	SelectMany(ctx context.Context, orgID snowflake.ID, opts ...option.QueryOption) ([]*T, error)
	SelectOne(ctx context.Context, orgID snowflake.ID, match map[string]any) (*T, error)
	Insert(ctx context.Context, orgID snowflake.ID, row *T) error
	Update(ctx context.Context, orgID snowflake.ID, match map[string]any, patch map[string]any) ([]*T, error)
	Upsert(ctx context.Context, orgID snowflake.ID, row *T) error
	Delete(ctx context.Context, orgID snowflake.ID, match map[string]any) (int64, error)
	Count(ctx context.Context, orgID snowflake.ID, match map[string]any) (int64, error)
}

type orgStore[T any] struct {
	db *gorm.DB
}

func NewOrgStore[T any](db *gorm.DB) OrgStore[T] {
	return &orgStore[T]{db: db}
}

func (s *orgStore[T]) WithTx(tx *gorm.DB) OrgStore[T] {
	return &orgStore[T]{db: tx}
}

func (s *orgStore[T]) SelectMany(ctx context.Context, orgID snowflake.ID, opts ...option.QueryOption) ([]*T, error) {
	if orgID == 0 {
		return nil, ErrMissingOrg
	}
	stmt := s.scoped(ctx, orgID)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	var rows []*T
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectOne returns nil, nil when no row matches.
func (s *orgStore[T]) SelectOne(ctx context.Context, orgID snowflake.ID, match map[string]any) (*T, error) {
	if orgID == 0 {
		return nil, ErrMissingOrg
	}
	var row T
	err := s.scoped(ctx, orgID).Where(withoutOrg(match)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *orgStore[T]) Insert(ctx context.Context, orgID snowflake.ID, row *T) error {
	if orgID == 0 {
		return ErrMissingOrg
	}
	if err := s.stampOrg(ctx, orgID, row); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// Update applies patch to every matching row and returns the rows as stored
// afterwards. org_id in the patch is ignored.
func (s *orgStore[T]) Update(ctx context.Context, orgID snowflake.ID, match map[string]any, patch map[string]any) ([]*T, error) {
	if orgID == 0 {
		return nil, ErrMissingOrg
	}
	patch = withoutOrg(patch)
	var updated []*T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(new(T)).
			Where(orgColumn+" = ?", int64(orgID)).
			Where(withoutOrg(match)).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if len(patch) > 0 {
			if err := tx.Model(new(T)).
				Where(orgColumn+" = ?", int64(orgID)).
				Where("id IN ?", ids).
				Updates(patch).Error; err != nil {
				return err
			}
		}
		return tx.Where(orgColumn+" = ?", int64(orgID)).Where("id IN ?", ids).Find(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Upsert inserts row or updates the row sharing its primary key. A key that
// belongs to another organization is never overwritten.
func (s *orgStore[T]) Upsert(ctx context.Context, orgID snowflake.ID, row *T) error {
	if orgID == 0 {
		return ErrMissingOrg
	}
	stmt, err := s.parse(row)
	if err != nil {
		return err
	}
	if err := s.stampOrg(ctx, orgID, row); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: stmt.Schema.Table, Name: orgColumn}, Value: int64(orgID)},
		}},
	}).Create(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCrossOrgWrite
	}
	return nil
}

func (s *orgStore[T]) Delete(ctx context.Context, orgID snowflake.ID, match map[string]any) (int64, error) {
	if orgID == 0 {
		return 0, ErrMissingOrg
	}
	match = withoutOrg(match)
	if len(match) == 0 {
		return 0, ErrMissingMatch
	}
	result := s.scoped(ctx, orgID).Where(match).Delete(new(T))
	return result.RowsAffected, result.Error
}

func (s *orgStore[T]) Count(ctx context.Context, orgID snowflake.ID, match map[string]any) (int64, error) {
	if orgID == 0 {
		return 0, ErrMissingOrg
	}
	var count int64
	stmt := s.scoped(ctx, orgID)
	if m := withoutOrg(match); len(m) > 0 {
		stmt = stmt.Where(m)
	}
	err := stmt.Count(&count).Error
	return count, err
}

func (s *orgStore[T]) scoped(ctx context.Context, orgID snowflake.ID) *gorm.DB {
	return s.db.WithContext(ctx).Model(new(T)).Where(orgColumn+" = ?", int64(orgID))
}

func (s *orgStore[T]) parse(row *T) (*gorm.Statement, error) {
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(row); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return stmt, nil
}

func (s *orgStore[T]) stampOrg(ctx context.Context, orgID snowflake.ID, row *T) error {
	if row == nil {
		return gorm.ErrInvalidData
	}
	stmt, err := s.parse(row)
	if err != nil {
		return err
	}
	field := stmt.Schema.LookUpField(orgColumn)
	if field == nil {
		return ErrNotOrgScoped
	}
	return field.Set(ctx, reflect.ValueOf(row), int64(orgID))
}

func withoutOrg(values map[string]any) map[string]any {
	if len(values) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if k == orgColumn {
			continue
		}
		out[k] = v
	}
	return out
}
