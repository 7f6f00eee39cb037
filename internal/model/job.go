package model

import "time"

// Stage identifies one pipeline stage and doubles as a job type.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageScrape   Stage = "scrape"
	StageVerify   Stage = "verify"
	StageDraft    Stage = "draft"
	StageSend     Stage = "send"
	StageFollowup Stage = "followup"
)

// Stages lists all pipeline stages in order.
var Stages = []Stage{StageDiscover, StageScrape, StageVerify, StageDraft, StageSend, StageFollowup}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageDiscover, StageScrape, StageVerify, StageDraft, StageSend, StageFollowup:
		return true
	}
	return false
}

// JobStatus is the strictly forward-moving state of a dispatched job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one dispatched unit of stage work against a set of targets.
//
// Progress counters only move forward while the job is running. TargetsTotal
// is nil when the target set cannot be enumerated up front (discover jobs,
// whose targets are produced by the external search).
type Job struct {
	ID               string     `json:"id" db:"id"`
	Type             Stage      `json:"job_type" db:"job_type"`
	Status           JobStatus  `json:"status" db:"status"`
	TargetsTotal     *int       `json:"targets_total,omitempty" db:"targets_total"`
	TargetsProcessed int        `json:"targets_processed" db:"targets_processed"`
	TargetsSucceeded int        `json:"targets_succeeded" db:"targets_succeeded"`
	TargetsFailed    int        `json:"targets_failed" db:"targets_failed"`
	ErrorMessage     string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
