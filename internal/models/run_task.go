package models

import "time"

// RunTask tracks one asynchronous pipeline run
type RunTask struct {
	ID string `json:"id" db:"id"` // ULID

	// Input
	Algorithm  string `json:"algorithm" db:"algorithm"`
	ConfigJSON string `json:"config_json,omitempty" db:"config_json"`
	Query      string `json:"query,omitempty" db:"query"`

	// Status
	Status          string `json:"status" db:"status"` // pending, running, completed, failed, cancelled
	Stage           string `json:"stage,omitempty" db:"stage"`
	ProgressPercent int    `json:"progress_percent" db:"progress_percent"`

	// Results
	TotalPoints   int    `json:"total_points" db:"total_points"`
	ClusterCount  int    `json:"cluster_count" db:"cluster_count"`
	NoisePoints   int    `json:"noise_points" db:"noise_points"`
	MapPath       string `json:"map_path,omitempty" db:"map_path"`
	ResultSummary string `json:"result_summary,omitempty" db:"result_summary"` // JSON report summary
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedBy   string     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RunStatus constants
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Terminal reports whether the run will not change status again.
func (t *RunTask) Terminal() bool {
	switch t.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}
