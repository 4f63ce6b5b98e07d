package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/jengzang/photomap-backend-go/internal/analysis/partition"
	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/dataset"
	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/pipeline"
	"github.com/jengzang/photomap-backend-go/internal/repository"
)

var (
	// ErrRunInProgress is returned when a run is submitted while another is active
	ErrRunInProgress = errors.New("another run is in progress")
	// ErrRunFinished is returned when cancelling a run that already ended
	ErrRunFinished = errors.New("run already finished")
)

// Loader reads the dataset a run works on
type Loader func(ctx context.Context, path string, limit int) (*dataset.Dataset, error)

// CSVLoader loads the dataset from a CSV file
func CSVLoader(_ context.Context, path string, limit int) (*dataset.Dataset, error) {
	return dataset.LoadCSV(path, limit)
}

// RunRequest is one submission to the service
type RunRequest struct {
	Config    config.RunConfig
	Query     pipeline.Query
	CreatedBy string
}

// RunUpdate is pushed to subscribers of a run
type RunUpdate struct {
	RunID   string  `json:"run_id"`
	Status  string  `json:"status"`
	Stage   string  `json:"stage,omitempty"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// Terminal reports whether no update will follow this one
func (u RunUpdate) Terminal() bool {
	return (&models.RunTask{Status: u.Status}).Terminal()
}

type activeRun struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	last   RunUpdate
}

// RunService executes pipeline runs one at a time on a worker goroutine
type RunService struct {
	repo     *repository.RunRepository
	pipeline *pipeline.Pipeline
	load     Loader
	dataPath string

	mu     sync.Mutex
	active *activeRun
	subs   map[string]map[chan RunUpdate]struct{}
}

// NewRunService creates a new run service reading datasets from dataPath
func NewRunService(repo *repository.RunRepository, p *pipeline.Pipeline, dataPath string, load Loader) *RunService {
	if load == nil {
		load = CSVLoader
	}
	return &RunService{
		repo:     repo,
		pipeline: p,
		load:     load,
		dataPath: dataPath,
		subs:     make(map[string]map[chan RunUpdate]struct{}),
	}
}

// MapPath returns the path of the map written by the latest completed run
func (s *RunService) MapPath() string {
	return s.pipeline.MapPath()
}

// ChartDir returns the directory holding the latest charts
func (s *RunService) ChartDir() string {
	return s.pipeline.ChartDir()
}

// StartRun validates the request, records the run and starts it in the background
func (s *RunService) StartRun(req RunRequest) (*models.RunTask, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize run config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, s.active.id)
	}

	task := &models.RunTask{
		ID:         ulid.Make().String(),
		Algorithm:  req.Config.Algorithm,
		ConfigJSON: string(configJSON),
		Query:      req.Query.Term,
		Status:     models.RunStatusPending,
		CreatedBy:  req.CreatedBy,
	}
	if err := s.repo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.active = &activeRun{
		id:     task.ID,
		cancel: cancel,
		done:   make(chan struct{}),
		last:   RunUpdate{RunID: task.ID, Status: models.RunStatusPending},
	}

	go s.execute(ctx, s.active, req)

	return task, nil
}

// execute runs the pipeline and records the outcome
func (s *RunService) execute(ctx context.Context, run *activeRun, req RunRequest) {
	log := logger.Named("RunService")
	log.Infof("Starting run %s (algorithm: %s)", run.id, req.Config.Algorithm)

	final := RunUpdate{RunID: run.id, Status: models.RunStatusFailed}
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Run %s panicked: %v", run.id, p)
			final = RunUpdate{RunID: run.id, Status: models.RunStatusFailed, Message: fmt.Sprint(p)}
			if err := s.repo.MarkAsFailed(run.id, final.Message); err != nil {
				log.Errorf("Failed to record run %s failure: %v", run.id, err)
			}
		}
		s.finish(run, final)
	}()

	if err := s.repo.MarkAsRunning(run.id); err != nil {
		log.Warnf("Failed to mark run %s as running: %v", run.id, err)
	}
	s.publish(run, RunUpdate{RunID: run.id, Status: models.RunStatusRunning})

	report, err := s.runPipeline(ctx, run, req)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Infof("Run %s cancelled", run.id)
		final = RunUpdate{RunID: run.id, Status: models.RunStatusCancelled, Message: "cancelled"}
		if err := s.repo.MarkAsCancelled(run.id); err != nil {
			log.Errorf("Failed to record run %s cancellation: %v", run.id, err)
		}

	case err != nil:
		log.Warnf("Run %s failed: %v", run.id, err)
		final = RunUpdate{RunID: run.id, Status: models.RunStatusFailed, Message: err.Error()}
		if err := s.repo.MarkAsFailed(run.id, err.Error()); err != nil {
			log.Errorf("Failed to record run %s failure: %v", run.id, err)
		}

	default:
		summary, err := json.Marshal(report)
		if err != nil {
			log.Warnf("Failed to serialize report of run %s: %v", run.id, err)
		}
		task := &models.RunTask{
			ID:            run.id,
			Stage:         string(pipeline.StageDone),
			TotalPoints:   report.TotalPoints,
			ClusterCount:  report.ClusterCount,
			NoisePoints:   report.NoisePoints,
			MapPath:       report.MapPath,
			ResultSummary: string(summary),
		}
		if err := s.repo.MarkAsCompleted(task); err != nil {
			log.Errorf("Failed to record run %s completion: %v", run.id, err)
		}
		final = RunUpdate{
			RunID:   run.id,
			Status:  models.RunStatusCompleted,
			Stage:   string(pipeline.StageDone),
			Percent: 100,
			Message: fmt.Sprintf("%d clusters", report.ClusterCount),
		}
		log.Infof("Run %s completed: %d clusters, %d noise points", run.id, report.ClusterCount, report.NoisePoints)
	}
}

func (s *RunService) runPipeline(ctx context.Context, run *activeRun, req RunRequest) (*pipeline.Report, error) {
	ds, err := s.load(ctx, s.dataPath, req.Config.MaxPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	log := logger.Named("RunService")
	return s.pipeline.Run(ctx, ds, req.Config, req.Query, func(p pipeline.Progress) {
		if err := s.repo.UpdateProgress(run.id, string(p.Stage), int(math.Round(p.Percent))); err != nil {
			log.Warnf("Failed to record progress of run %s: %v", run.id, err)
		}
		s.publish(run, RunUpdate{
			RunID:   run.id,
			Status:  models.RunStatusRunning,
			Stage:   string(p.Stage),
			Percent: p.Percent,
			Message: p.Message,
		})
	})
}

// publish fans an update out without blocking on slow subscribers
func (s *RunService) publish(run *activeRun, u RunUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.last = u
	for ch := range s.subs[run.id] {
		select {
		case ch <- u:
		default:
		}
	}
}

// finish delivers the terminal update, closes subscriptions and frees the slot
func (s *RunService) finish(run *activeRun, final RunUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.last = final
	for ch := range s.subs[run.id] {
		select {
		case ch <- final:
		default:
			// make room so the terminal update is never lost
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
	}
	delete(s.subs, run.id)

	run.cancel()
	close(run.done)
	if s.active == run {
		s.active = nil
	}
}

// Subscribe streams the updates of a run. The channel is closed after the
// terminal update. A finished run yields its final state only.
func (s *RunService) Subscribe(id string) (<-chan RunUpdate, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.id == id {
		ch := make(chan RunUpdate, 16)
		ch <- s.active.last
		if s.subs[id] == nil {
			s.subs[id] = make(map[chan RunUpdate]struct{})
		}
		s.subs[id][ch] = struct{}{}

		unsubscribe := func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id][ch]; ok {
				delete(s.subs[id], ch)
				close(ch)
			}
		}
		return ch, unsubscribe, nil
	}

	task, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan RunUpdate, 1)
	ch <- snapshot(task)
	close(ch)
	return ch, func() {}, nil
}

// CancelRun stops an active run. Pending runs orphaned by a restart are marked cancelled.
func (s *RunService) CancelRun(id string) error {
	s.mu.Lock()
	if s.active != nil && s.active.id == id {
		s.active.cancel()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	task, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if task.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrRunFinished, id, task.Status)
	}
	return s.repo.MarkAsCancelled(id)
}

// Wait blocks until the active run with the given id ends or ctx is done
func (s *RunService) Wait(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.active == nil || s.active.id != id {
		s.mu.Unlock()
		return nil
	}
	done := s.active.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetRun retrieves a run by ID
func (s *RunService) GetRun(id string) (*models.RunTask, error) {
	return s.repo.GetByID(id)
}

// ListRuns lists runs, newest first
func (s *RunService) ListRuns(status string, limit, offset int) ([]*models.RunTask, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(status, limit, offset)
}

// Elbow runs the k-selection analysis on the configured dataset
func (s *RunService) Elbow(ctx context.Context, req pipeline.ElbowRequest) (*partition.ElbowReport, error) {
	ds, err := s.load(ctx, s.dataPath, req.MaxPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return pipeline.Elbow(ctx, ds, req)
}

// RecoverInterrupted fails runs a previous process left unfinished
func (s *RunService) RecoverInterrupted() {
	n, err := s.repo.FailInterrupted()
	if err != nil {
		logger.Named("RunService").Warnf("Failed to recover interrupted runs: %v", err)
		return
	}
	if n > 0 {
		logger.Named("RunService").Infof("Marked %d interrupted runs as failed", n)
	}
}

func snapshot(task *models.RunTask) RunUpdate {
	return RunUpdate{
		RunID:   task.ID,
		Status:  task.Status,
		Stage:   task.Stage,
		Percent: float64(task.ProgressPercent),
		Message: task.ErrorMessage,
	}
}
