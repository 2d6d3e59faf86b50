package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coursekit/admin-api/internal/data/pgxutil"
	"github.com/coursekit/admin-api/internal/domain/model"
)

// jobAddedChannel is the pg_notify channel signaled when a new job record
// is inserted, allowing pollers to wake up early.
const jobAddedChannel = "queue_job_added"

// FindDueParams groups parameters for selecting claimable job records.
type FindDueParams struct {
	// Now is the scheduling instant; records with next_run_at at or
	// before it are due.
	Now time.Time
	// StaleBefore is the lock cutoff; records locked before it are
	// treated as abandoned and eligible again.
	StaleBefore time.Time
	// Limit caps the number of candidates returned.
	Limit int
}

// MarkSuccessParams groups parameters for recording a successful run.
type MarkSuccessParams struct {
	FinishedAt time.Time
	// NextRunAt reschedules the record when set; nil parks it.
	NextRunAt *time.Time
}

// MarkFailureParams groups parameters for recording a failed run.
type MarkFailureParams struct {
	FailedAt time.Time
	Reason   string
	// NextRunAt reschedules the record when set; nil parks it.
	NextRunAt *time.Time
}

// Create inserts a new job record and notifies pollers.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	jobType := req.Type
	if jobType == "" {
		jobType = model.JobTypeNormal
	}
	nextRunAt := r.timeProvider.Now().UTC()
	if req.NextRunAt != nil {
		nextRunAt = req.NextRunAt.UTC()
	}

	var job model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				INSERT INTO queue_jobs (name, data, type, priority, next_run_at, last_modified_by)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING `+jobColumns,
				strings.TrimSpace(req.Name),
				[]byte(data),
				jobType,
				req.Priority,
				nextRunAt,
				req.LastModifiedBy,
			)
			if err != nil {
				return fmt.Errorf("insert job: %w", err)
			}
			job, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
			if err != nil {
				return fmt.Errorf("collect job: %w", err)
			}

			if _, notifyErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, jobAddedChannel, job.ID); notifyErr != nil {
				return fmt.Errorf("send job notification: %w", notifyErr)
			}
			return nil
		},
	}); txErr != nil {
		return nil, txErr
	}

	return &job, nil
}

// GetByID retrieves a job record by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM queue_jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		job, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// FindDue returns claimable job records ordered by priority, then run time.
// A record is claimable when it is due and either unlocked or holding a
// lock older than the stale cutoff.
func (r *JobRepo) FindDue(ctx context.Context, params FindDueParams) ([]*model.Job, error) {
	if params.Limit <= 0 {
		params.Limit = 25
	}

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM queue_jobs
			WHERE next_run_at IS NOT NULL
			  AND next_run_at <= $1
			  AND (locked_at IS NULL OR locked_at < $2)
			ORDER BY priority DESC, next_run_at ASC, id ASC
			LIMIT $3
		`, params.Now.UTC(), params.StaleBefore.UTC(), params.Limit)
		if err != nil {
			return fmt.Errorf("query due jobs: %w", err)
		}
		result, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect due jobs: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Claim attempts to take the lock on a job record. It succeeds only when
// the record is unlocked or its lock predates the stale cutoff, so at most
// one poller wins a given record per lock lifetime.
func (r *JobRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE queue_jobs
		SET locked_at = $2,
		    last_run_at = $2
		WHERE id = $1
		  AND (locked_at IS NULL OR locked_at < $3)
	`, id, now.UTC(), staleBefore.UTC())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkSuccess records a successful run: the lock and failure markers are
// cleared, the finish time is stamped, and the record is rescheduled or
// parked via NextRunAt. Returns false when the lock was already lost.
func (r *JobRepo) MarkSuccess(ctx context.Context, id string, params MarkSuccessParams) (bool, error) {
	var nextRunAt *time.Time
	if params.NextRunAt != nil {
		t := params.NextRunAt.UTC()
		nextRunAt = &t
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE queue_jobs
		SET locked_at = NULL,
		    last_finished_at = $2,
		    next_run_at = $3,
		    failed_at = NULL,
		    fail_reason = NULL
		WHERE id = $1 AND locked_at IS NOT NULL
	`, id, params.FinishedAt.UTC(), nextRunAt)
	if err != nil {
		return false, fmt.Errorf("mark job success: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark success rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkFailure records a failed run: the lock is released, the failure
// markers are stamped, and the fail counter is incremented. Returns false
// when the lock was already lost.
func (r *JobRepo) MarkFailure(ctx context.Context, id string, params MarkFailureParams) (bool, error) {
	var nextRunAt *time.Time
	if params.NextRunAt != nil {
		t := params.NextRunAt.UTC()
		nextRunAt = &t
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE queue_jobs
		SET locked_at = NULL,
		    failed_at = $2,
		    fail_reason = $3,
		    fail_count = fail_count + 1,
		    next_run_at = $4
		WHERE id = $1 AND locked_at IS NOT NULL
	`, id, params.FailedAt.UTC(), params.Reason, nextRunAt)
	if err != nil {
		return false, fmt.Errorf("mark job failure: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark failure rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByID deletes a job record by ID regardless of its state.
// A handler already running against the record completes on its own.
func (r *JobRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM queue_jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByName deletes all job records with the given name and returns
// the number of records removed.
func (r *JobRepo) DeleteByName(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errors.New("job name is required")
	}

	res, err := r.DB.ExecContext(ctx, `DELETE FROM queue_jobs WHERE name = $1`, name)
	if err != nil {
		return 0, fmt.Errorf("delete jobs by name: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// WaitForNotification blocks until a new job record is inserted or the
// context is canceled.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	return pgxutil.WaitForNotification(ctx, r.DB, jobAddedChannel)
}
