package repository

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/photomap-backend-go/internal/database"
	"github.com/jengzang/photomap-backend-go/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, database.NewMigrationManager(db).RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunRepositoryLifecycle(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))

	task := &models.RunTask{ID: "01HZZZZZZZZZZZZZZZZZZZZZZA", Algorithm: "dbscan", Query: "lyon", CreatedBy: "alice"}
	require.NoError(t, repo.Create(task))
	assert.Equal(t, models.RunStatusPending, task.Status)

	require.NoError(t, repo.MarkAsRunning(task.ID))
	require.NoError(t, repo.UpdateProgress(task.ID, "cluster", 10))

	got, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Equal(t, "cluster", got.Stage)
	assert.Equal(t, 10, got.ProgressPercent)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Nil(t, got.CompletedAt)
	assert.WithinDuration(t, task.CreatedAt, got.CreatedAt, time.Millisecond)

	got.Stage = "done"
	got.TotalPoints = 31
	got.ClusterCount = 3
	got.NoisePoints = 1
	got.MapPath = "/tmp/map.html"
	got.ResultSummary = `{"cluster_count":3}`
	require.NoError(t, repo.MarkAsCompleted(got))

	done, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, done.Status)
	assert.Equal(t, 100, done.ProgressPercent)
	assert.Equal(t, 3, done.ClusterCount)
	assert.NotNil(t, done.CompletedAt)
	assert.True(t, done.Terminal())
}

func TestRunRepositoryNotFound(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))

	_, err := repo.GetByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.MarkAsFailed("missing", "boom"), ErrNotFound)
}

func TestRunRepositoryListAndInterrupted(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	repo.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(&models.RunTask{ID: id, Algorithm: "kmeans"}))
	}
	require.NoError(t, repo.MarkAsCancelled("a"))
	require.NoError(t, repo.MarkAsRunning("b"))

	all, err := repo.List("", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	cancelled, err := repo.List(models.RunStatusCancelled, 10, 0)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "a", cancelled[0].ID)

	n, err := repo.FailInterrupted()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	failed, err := repo.List(models.RunStatusFailed, 10, 0)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}
