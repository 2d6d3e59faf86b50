// Package model defines the core data types and structures used throughout the coursekit admin system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the scheduling mode of a job record.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobState represents the derived lifecycle state of a job record.
type JobState string

const (
	// JobTypeNormal represents a run-once job.
	JobTypeNormal JobType = "normal"
	// JobTypeRecurring represents a job rescheduled after each successful run.
	JobTypeRecurring JobType = "recurring"

	// JobStateScheduled indicates a job whose next run time is in the future.
	JobStateScheduled JobState = "scheduled"
	// JobStatePending indicates a job that is due and waiting to be claimed.
	JobStatePending JobState = "pending"
	// JobStateRunning indicates a job currently held under a live lock.
	JobStateRunning JobState = "running"
	// JobStateFinished indicates a job whose last attempt completed successfully.
	JobStateFinished JobState = "finished"
	// JobStateFailed indicates a job whose last attempt failed.
	JobStateFailed JobState = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeNormal || t == JobTypeRecurring
}

// Job represents a persisted unit of deferred work with its scheduling
// and outcome metadata. Many records may share a name; the name selects
// the registered handler.
type Job struct {
	ID             string          `json:"id"                       db:"id"`
	Name           string          `json:"name"                     db:"name"`
	Data           json.RawMessage `json:"data"                     db:"data"`
	Type           JobType         `json:"type"                     db:"type"`
	Priority       int             `json:"priority"                 db:"priority"`
	NextRunAt      *time.Time      `json:"nextRunAt"                db:"next_run_at"`
	LastModifiedBy *string         `json:"lastModifiedBy,omitempty" db:"last_modified_by"`
	LockedAt       *time.Time      `json:"lockedAt"                 db:"locked_at"`
	LastRunAt      *time.Time      `json:"lastRunAt"                db:"last_run_at"`
	LastFinishedAt *time.Time      `json:"lastFinishedAt"           db:"last_finished_at"`
	FailedAt       *time.Time      `json:"failedAt"                 db:"failed_at"`
	FailCount      int             `json:"failCount"                db:"fail_count"`
	FailReason     *string         `json:"failReason,omitempty"     db:"fail_reason"`
}

// State derives the lifecycle state of the record at the given instant.
// staleBefore is the cutoff below which a held lock is considered abandoned.
func (j *Job) State(now, staleBefore time.Time) JobState {
	if j.LockedAt != nil && j.LockedAt.After(staleBefore) {
		return JobStateRunning
	}
	if j.FailedAt != nil && (j.LastFinishedAt == nil || j.LastFinishedAt.Before(*j.FailedAt)) {
		return JobStateFailed
	}
	if j.NextRunAt != nil && j.NextRunAt.After(now) {
		return JobStateScheduled
	}
	if j.LastFinishedAt != nil {
		return JobStateFinished
	}
	return JobStatePending
}

// Due reports whether the record is eligible to run at the given instant,
// ignoring lock state. Parked records (nil NextRunAt) are never due.
func (j *Job) Due(now time.Time) bool {
	return j.NextRunAt != nil && !j.NextRunAt.After(now)
}

// CreateJobRequest represents a request to enqueue a new job record.
type CreateJobRequest struct {
	Name           string          `json:"name"`
	Data           json.RawMessage `json:"data,omitempty"`
	Type           JobType         `json:"type,omitempty"`
	Priority       int             `json:"priority,omitempty"`
	NextRunAt      *time.Time      `json:"nextRunAt,omitempty"`
	LastModifiedBy *string         `json:"-"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("job name is required")
	}
	if r.Type != "" && !r.Type.Valid() {
		return fmt.Errorf("invalid job type: %q", r.Type)
	}
	if r.Data != nil && !json.Valid(r.Data) {
		return errors.New("job data must be valid JSON")
	}
	return nil
}

// JobOverview represents per-name aggregate statistics for the admin overview.
type JobOverview struct {
	Name    string `json:"name"    db:"name"`
	Total   int    `json:"total"   db:"total"`
	Running int    `json:"running" db:"running"`
}
