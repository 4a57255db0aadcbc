package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipforge/clipforge/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.Clip{}, &models.Edit{}, &models.Snapshot{})
	require.NoError(t, err)

	return db
}

// createTestUser creates a User for use as a foreign key in artifact tests.
func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, PlexUserID: "plex-" + username, IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestClip(t *testing.T, db *gorm.DB, userID models.ULID, title string, size int64) *models.Clip {
	t.Helper()
	clip := &models.Clip{
		UserID:   userID,
		Title:    title,
		FilePath: "/data/videos/" + title + ".mp4",
		FileSize: size,
		Duration: 30,
		Status:   models.StatusCompleted,
	}
	require.NoError(t, db.Create(clip).Error)
	return clip
}

func TestUserRepo_GetByUsernameCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	created := createTestUser(t, db, "Alice")

	user, err := repo.GetByUsername(ctx, "aLiCe")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, created.ID, user.ID)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepo_GetOrCreateByUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.GetOrCreateByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsActive)
	assert.False(t, user.ID.IsZero())

	again, err := repo.GetOrCreateByUsername(ctx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestUserRepo_TouchLogin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "carol")
	require.NoError(t, repo.TouchLogin(ctx, user.ID))

	loaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), loaded.LastLoginAt, 5*time.Second)
}

func TestClipRepo_CreateValidates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)

	err := repo.Create(context.Background(), &models.Clip{})
	assert.ErrorIs(t, err, models.ErrUserIDRequired)
}

func TestClipRepo_GetByIDForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	other := createTestUser(t, db, "other")
	clip := createTestClip(t, db, owner.ID, "mine", 1024)

	got, err := repo.GetByIDForUser(ctx, clip.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, clip.ID, got.ID)

	// Another user's lookup must not see it.
	got, err = repo.GetByIDForUser(ctx, clip.ID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClipRepo_ListByUserPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "lister")
	for i := 0; i < 5; i++ {
		clip := createTestClip(t, db, user.ID, "clip", 100)
		// Spread created_at so ordering is deterministic.
		require.NoError(t, db.Model(clip).
			Update("created_at", time.Now().Add(time.Duration(i)*time.Minute)).Error)
	}

	clips, total, err := repo.ListByUser(ctx, user.ID, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, clips, 3)
	assert.True(t, clips[0].CreatedAt.After(clips[1].CreatedAt))

	clips, total, err = repo.ListByUser(ctx, user.ID, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, clips, 2)
}

func TestClipRepo_CountByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "counter")
	createTestClip(t, db, user.ID, "a", 100)
	createTestClip(t, db, user.ID, "b", 100)

	count, err := repo.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestClipRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "deleter")
	clip := createTestClip(t, db, user.ID, "gone", 100)

	require.NoError(t, repo.Delete(ctx, clip.ID))

	got, err := repo.GetByID(ctx, clip.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClipRepo_ListOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "ager")
	other := createTestUser(t, db, "hoarder")
	old := createTestClip(t, db, user.ID, "old", 100)
	otherOld := createTestClip(t, db, other.ID, "other-old", 100)
	for _, c := range []*models.Clip{old, otherOld} {
		require.NoError(t, db.Model(c).
			Update("created_at", time.Now().Add(-10*24*time.Hour)).Error)
	}
	createTestClip(t, db, user.ID, "fresh", 100)

	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	expired, err := repo.ListOlderThan(ctx, cutoff, models.ULID{})
	require.NoError(t, err)
	require.Len(t, expired, 2)

	// A non-zero user ID restricts the listing to that user.
	mine, err := repo.ListOlderThan(ctx, cutoff, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, old.ID, mine[0].ID)
}

func TestClipRepo_Stats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	createTestClip(t, db, alice.ID, "a1", 1000)
	createTestClip(t, db, alice.ID, "a2", 500)
	createTestClip(t, db, bob.ID, "b1", 200)

	stats, err := repo.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(1500), stats.TotalSize)

	// Zero user ID aggregates globally.
	global, err := repo.Stats(ctx, models.ULID{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), global.Count)
	assert.Equal(t, int64(1700), global.TotalSize)
}

func TestClipRepo_StatsEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)

	stats, err := repo.Stats(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.TotalSize)
}

func TestEditRepo_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEditRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "editor")
	clip := createTestClip(t, db, user.ID, "source", 2048)

	edit := &models.Edit{
		UserID:       user.ID,
		SourceClipID: clip.ID,
		FilePath:     "/data/edited/cut.mp4",
		FileSize:     1024,
		Duration:     10,
		StartTime:    "00:00:05",
		EndTime:      "00:00:15",
		Quality:      "medium",
		Format:       "mp4",
		Status:       models.StatusCompleted,
	}
	require.NoError(t, repo.Create(ctx, edit))

	got, err := repo.GetByIDForUser(ctx, edit.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, clip.ID, got.SourceClipID)

	edits, total, err := repo.ListByUser(ctx, user.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, edits, 1)

	stats, err := repo.Stats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), stats.TotalSize)

	require.NoError(t, repo.Delete(ctx, edit.ID))
	got, err = repo.GetByID(ctx, edit.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotRepo_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "shooter")

	snap := &models.Snapshot{
		UserID:     user.ID,
		FilePath:   "/data/snapshots/frame.jpg",
		FileSize:   4096,
		Timestamp:  "00:01:02.000",
		Format:     "jpg",
		Quality:    "high",
		MediaTitle: "Some Movie",
		Status:     models.StatusCompleted,
	}
	require.NoError(t, repo.Create(ctx, snap))

	got, err := repo.GetByIDForUser(ctx, snap.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "jpg", got.Format)

	snaps, total, err := repo.ListByUser(ctx, user.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, snaps, 1)

	old := &models.Snapshot{
		UserID:   user.ID,
		FilePath: "/data/snapshots/old.jpg",
		Status:   models.StatusCompleted,
	}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, db.Model(old).
		Update("created_at", time.Now().Add(-30*24*time.Hour)).Error)

	expired, err := repo.ListOlderThan(ctx, time.Now().Add(-7*24*time.Hour), models.ULID{})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)

	require.NoError(t, repo.Delete(ctx, snap.ID))
	gone, err := repo.GetByID(ctx, snap.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
