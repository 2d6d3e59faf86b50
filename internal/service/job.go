package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/admin-api/internal/data"
	"github.com/coursekit/admin-api/internal/domain/model"
	apperrors "github.com/coursekit/admin-api/internal/errors"
	"github.com/coursekit/admin-api/internal/queue"
)

// JobStore is the persistence surface JobService needs from the job repository.
type JobStore interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error)
	Overview(ctx context.Context, staleBefore time.Time) ([]*model.JobOverview, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByName(ctx context.Context, name string) (int, error)
}

const defaultJobLockLifetime = 10 * time.Minute

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Store        JobStore          // Required: job repository
	Registry     *queue.Registry   // Optional: supplies default priority for defined job names
	LockLifetime time.Duration     // Optional: lock staleness cutoff for overview counts, default 10m
	Logger       *slog.Logger      // Optional: structured logger
	TimeProvider data.TimeProvider // Optional: override time source
}

// JobService provides the admin-facing operations on the job queue:
// enqueueing, listing, cancelling, and retrying job records.
type JobService struct {
	store        JobStore
	registry     *queue.Registry
	lockLifetime time.Duration
	logger       *slog.Logger
	timeProvider data.TimeProvider
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	lockLifetime := opts.LockLifetime
	if lockLifetime <= 0 {
		lockLifetime = defaultJobLockLifetime
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	return &JobService{
		store:        opts.Store,
		registry:     opts.Registry,
		lockLifetime: lockLifetime,
		logger:       logger.With("component", "job_service"),
		timeProvider: tp,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// EnqueueInput groups parameters for enqueueing a job.
type EnqueueInput struct {
	Name string
	Data json.RawMessage
	By   *string
}

// Enqueue creates a new job record scheduled to run immediately.
// When the job name has a registered definition, its priority is applied.
func (s *JobService) Enqueue(ctx context.Context, in EnqueueInput) (*model.Job, error) {
	req := &model.CreateJobRequest{
		Name:           in.Name,
		Data:           in.Data,
		LastModifiedBy: in.By,
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if s.registry != nil {
		if def, ok := s.registry.Lookup(req.Name); ok {
			req.Priority = def.Priority
		}
	}

	job, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.InfoContext(ctx, "job enqueued", "id", job.ID, "name", job.Name, "priority", job.Priority)
	return job, nil
}

// List returns a page of job records with the unpaginated total.
func (s *JobService) List(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error) {
	page, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return page, nil
}

// Overview returns per-name totals and running counts across all job records.
func (s *JobService) Overview(ctx context.Context) ([]*model.JobOverview, error) {
	staleBefore := s.timeProvider.Now().UTC().Add(-s.lockLifetime)
	overview, err := s.store.Overview(ctx, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("job overview: %w", err)
	}
	return overview, nil
}

// CancelInput selects which job records to remove. Exactly one selector is used;
// ID takes precedence when both are set.
type CancelInput struct {
	ID   string
	Name string
}

// Cancel removes job records by ID or by name and returns the number removed.
// Cancelling a locked record is best-effort: a handler already running is not interrupted.
func (s *JobService) Cancel(ctx context.Context, in CancelInput) (int, error) {
	switch {
	case in.ID != "":
		if _, err := uuid.Parse(in.ID); err != nil {
			return 0, apperrors.ValidationField("id", "invalid job id")
		}
		removed, err := s.store.DeleteByID(ctx, in.ID)
		if err != nil {
			return 0, fmt.Errorf("cancel job %s: %w", in.ID, err)
		}
		if removed {
			s.logger.InfoContext(ctx, "job cancelled", "id", in.ID)
			return 1, nil
		}
		return 0, nil
	case in.Name != "":
		n, err := s.store.DeleteByName(ctx, in.Name)
		if err != nil {
			return 0, fmt.Errorf("cancel jobs named %q: %w", in.Name, err)
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "jobs cancelled", "name", in.Name, "removed", n)
		}
		return n, nil
	default:
		return 0, apperrors.Validation("either id or name is required")
	}
}

// RetryInput groups parameters for retrying a failed job.
type RetryInput struct {
	Name       string
	Data       json.RawMessage
	RetryJobID string
	By         *string
}

// Retry creates a fresh due-now copy of an existing job record, then removes the
// original. The lookup only enriches the request: when the original is already
// gone and the request carries its own name, the insert proceeds anyway. Removal
// is best-effort: the new record is already persisted, so a failed delete leaves
// a duplicate rather than losing work.
func (s *JobService) Retry(ctx context.Context, in RetryInput) (*model.Job, error) {
	if _, err := uuid.Parse(in.RetryJobID); err != nil {
		return nil, apperrors.ValidationField("retryJobId", "invalid retry job id")
	}

	req := &model.CreateJobRequest{
		Name:           in.Name,
		Data:           in.Data,
		LastModifiedBy: in.By,
	}

	original, err := s.store.GetByID(ctx, in.RetryJobID)
	switch {
	case err == nil:
		req.Type = original.Type
		req.Priority = original.Priority
		if req.Name == "" {
			req.Name = original.Name
		}
		if len(req.Data) == 0 {
			req.Data = original.Data
		}
	case errors.Is(err, data.ErrJobNotFound):
		if req.Name == "" {
			return nil, apperrors.NotFoundf("job %s not found", in.RetryJobID)
		}
		s.logger.WarnContext(ctx, "original job missing, retrying from request fields",
			"original_id", in.RetryJobID, "name", req.Name)
	default:
		return nil, fmt.Errorf("get job %s: %w", in.RetryJobID, err)
	}

	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	job, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create retry job: %w", err)
	}

	if _, delErr := s.store.DeleteByID(ctx, in.RetryJobID); delErr != nil {
		s.logger.WarnContext(ctx, "failed to remove original job after retry",
			"original_id", in.RetryJobID, "retry_id", job.ID, "error", delErr)
	}

	s.logger.InfoContext(ctx, "job retried", "original_id", in.RetryJobID, "id", job.ID, "name", job.Name)
	return job, nil
}
