package database_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinrooster/tedecom-v1/internal/database"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/testutil"
)

func TestOpenSQLiteCreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tedecom.db")

	db, err := database.Open(database.Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	assert.FileExists(t, path)
	for _, table := range []interface{}{&models.Report{}, &models.ReportArtifact{}, &models.ReportTemplate{}, &models.Equipment{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(database.Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestEnsureAdmin(t *testing.T) {
	db := testutil.NewDB(t)

	created, err := database.EnsureAdmin(db, "admin", "")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = database.EnsureAdmin(db, "admin", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.CheckPassword("s3cret"))

	created, err = database.EnsureAdmin(db, "other", "s3cret")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, database.Close(nil))
}
