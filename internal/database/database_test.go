package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}
	db, err := New(cfg, nil, &Options{PrepareStmt: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrateAndCRUD(t *testing.T) {
	db := newTestDB(t)

	user := &models.User{Username: "alice"}
	require.NoError(t, db.Create(user).Error)
	assert.False(t, user.ID.IsZero())

	clip := &models.Clip{
		UserID:   user.ID,
		Title:    "Test Clip",
		FilePath: "/data/videos/test.mp4",
		FileSize: 2048,
		Duration: 30,
		Status:   models.StatusCompleted,
	}
	require.NoError(t, db.Create(clip).Error)

	var loaded models.Clip
	require.NoError(t, db.First(&loaded, "id = ?", clip.ID).Error)
	assert.Equal(t, "Test Clip", loaded.Title)
	assert.Equal(t, user.ID, loaded.UserID)
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestTransactionRollback(t *testing.T) {
	db := newTestDB(t)

	user := &models.User{Username: "bob"}
	require.NoError(t, db.Create(user).Error)

	boom := errors.New("boom")
	err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Clip{
			UserID:   user.ID,
			Title:    "doomed",
			FilePath: "/data/videos/doomed.mp4",
			Status:   models.StatusCompleted,
		}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Clip{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Contains(t, stats, "open_connections")
	assert.Equal(t, "sqlite", db.Driver())
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := make([]byte, maxSQLLogLength+50)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateSQL(string(long))
	assert.Len(t, got, maxSQLLogLength+len("... (truncated)"))
}
