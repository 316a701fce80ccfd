package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the operational record of one tenant's pass through the
// daily pipeline.
type PipelineRun struct {
	ID            int64      `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	DealerID      string     `json:"dealer_id" db:"dealer_id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	FailedStep    string     `json:"failed_step" db:"failed_step"`
	VehiclesFound int        `json:"vehicles_found" db:"vehicles_found"`
	NewCount      int        `json:"new_count" db:"new_count"`
	PriceCount    int        `json:"price_count" db:"price_count"`
	SoldCount     int        `json:"sold_count" db:"sold_count"`
	RotationCount int        `json:"rotation_count" db:"rotation_count"`
	PostsCreated  int        `json:"posts_created" db:"posts_created"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

// TenantStats is the rolled-up per-tenant view over pipeline runs.
type TenantStats struct {
	TenantID          string     `json:"tenant_id" db:"tenant_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalPosts        int        `json:"total_posts" db:"total_posts"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
