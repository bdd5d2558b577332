package rls

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type note struct {
	ID    int64 `gorm:"primaryKey"`
	OrgID int64
	Body  string
}

func TestInTenantCommitsAndRollsBack(t *testing.T) {
	conn, err := db.OpenSQLiteMemory("rls_in_tenant")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&note{}))

	ctx := context.Background()
	require.NoError(t, InTenant(ctx, conn, 7, func(tx *gorm.DB) error {
		return tx.Create(&note{ID: 1, OrgID: 7, Body: "kept"}).Error
	}))

	boom := errors.New("boom")
	err = InTenant(ctx, conn, 7, func(tx *gorm.DB) error {
		if err := tx.Create(&note{ID: 2, OrgID: 7, Body: "dropped"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&note{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
