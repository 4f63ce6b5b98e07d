package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/database"
	"github.com/jengzang/photomap-backend-go/internal/dataset"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/pipeline"
	"github.com/jengzang/photomap-backend-go/internal/repository"
)

func twoSites() *dataset.Dataset {
	var records []models.PhotoRecord
	for c, name := range []string{"fourviere", "bellecour"} {
		for i := 0; i < 8; i++ {
			records = append(records, models.PhotoRecord{
				ID:        fmt.Sprintf("%d%02d", c, i),
				User:      fmt.Sprintf("u%d@N0%d", i, c),
				Lat:       45.75 + float64(c)*0.01 + float64(i)*0.00002,
				Lon:       4.83,
				Tags:      "lyon," + name,
				DateTaken: "2016-04-01 09:00:00",
			})
		}
	}
	return dataset.New(dataset.RequiredColumns, records)
}

func staticLoader(ds *dataset.Dataset) Loader {
	return func(context.Context, string, int) (*dataset.Dataset, error) { return ds, nil }
}

func newTestService(t *testing.T, load Loader) *RunService {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	require.NoError(t, database.NewMigrationManager(db).RunMigrations())
	t.Cleanup(func() { db.Close() })

	p, err := pipeline.New(pipeline.Options{
		MapPath:  filepath.Join(dir, "map.html"),
		ChartDir: filepath.Join(dir, "charts"),
	})
	require.NoError(t, err)

	return NewRunService(repository.NewRunRepository(db), p, "unused.csv", load)
}

func testConfig() config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.Eps = 0.0005
	cfg.MinSamples = 3
	return cfg
}

// drain collects updates until the channel closes
func drain(t *testing.T, ch <-chan RunUpdate) []RunUpdate {
	t.Helper()
	var updates []RunUpdate
	timeout := time.After(10 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return updates
			}
			updates = append(updates, u)
		case <-timeout:
			t.Fatal("run did not finish")
		}
	}
}

func TestRunCompletes(t *testing.T) {
	s := newTestService(t, staticLoader(twoSites()))

	task, err := s.StartRun(RunRequest{Config: testConfig(), Query: pipeline.Query{Term: "lyon"}, CreatedBy: "tester"})
	require.NoError(t, err)
	assert.Len(t, task.ID, 26)

	ch, unsubscribe, err := s.Subscribe(task.ID)
	require.NoError(t, err)
	defer unsubscribe()

	updates := drain(t, ch)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, models.RunStatusCompleted, last.Status)
	assert.True(t, last.Terminal())

	got, err := s.GetRun(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.ClusterCount)
	assert.Equal(t, 16, got.TotalPoints)
	assert.Equal(t, "lyon", got.Query)
	assert.FileExists(t, got.MapPath)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(got.ResultSummary), &report))
	assert.Len(t, report.Clusters, 2)

	runs, err := s.ListRuns("", 0, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunInProgressAndCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	s := newTestService(t, func(ctx context.Context, _ string, _ int) (*dataset.Dataset, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return twoSites(), nil
		}
	})

	task, err := s.StartRun(RunRequest{Config: testConfig()})
	require.NoError(t, err)

	_, err = s.StartRun(RunRequest{Config: testConfig()})
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, s.CancelRun(task.ID))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx, task.ID))

	got, err := s.GetRun(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, got.Status)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, s.CancelRun(task.ID), ErrRunFinished)

	// the slot is free again
	next, err := s.StartRun(RunRequest{Config: testConfig()})
	require.NoError(t, err)
	require.NoError(t, s.CancelRun(next.ID))
	require.NoError(t, s.Wait(ctx, next.ID))
}

func TestRunFailureIsRecorded(t *testing.T) {
	s := newTestService(t, staticLoader(dataset.New([]string{"lat", "long"}, nil)))

	task, err := s.StartRun(RunRequest{Config: testConfig()})
	require.NoError(t, err)

	ch, _, err := s.Subscribe(task.ID)
	require.NoError(t, err)
	updates := drain(t, ch)
	assert.Equal(t, models.RunStatusFailed, updates[len(updates)-1].Status)

	got, err := s.GetRun(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "missing required columns")
}

func TestStartRunRejectsInvalidConfig(t *testing.T) {
	s := newTestService(t, staticLoader(twoSites()))
	cfg := testConfig()
	cfg.Algorithm = "optics"

	_, err := s.StartRun(RunRequest{Config: cfg})
	assert.ErrorIs(t, err, config.ErrInvalidRunConfig)

	_, _, err = s.Subscribe("missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestServiceElbow(t *testing.T) {
	s := newTestService(t, staticLoader(twoSites()))

	report, err := s.Elbow(context.Background(), pipeline.ElbowRequest{KMin: 2, KMax: 3, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, report.Points, 2)
}
