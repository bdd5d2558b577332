package rls

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// WithTenant binds the row-level security tenant for the rest of tx.
// Only meaningful inside a postgres transaction.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	return tx.Exec(
		"SELECT set_config('app.current_org_id', ?, true)",
		fmt.Sprintf("%d", tenantID),
	).Error
}

// InTenant runs fn in a transaction bound to orgID. Dialects without row
// level security run fn in a plain transaction.
func InTenant(ctx context.Context, db *gorm.DB, orgID snowflake.ID, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := WithTenant(tx, int64(orgID)); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}
