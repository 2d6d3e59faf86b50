package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coursekit/admin-api/internal/data/pgxutil"
	"github.com/coursekit/admin-api/internal/domain/model"
)

// jobListFilter builds the shared WHERE clause for the admin job listing.
type jobListFilter struct {
	clause string
	args   []any
}

func buildJobListFilter(opts *model.JobListOptions) jobListFilter {
	f := jobListFilter{clause: " WHERE 1=1"}
	if opts == nil {
		return f
	}
	if name := strings.TrimSpace(opts.Name); name != "" {
		f.clause += fmt.Sprintf(" AND name ILIKE $%d", len(f.args)+1)
		f.args = append(f.args, "%"+name+"%")
	}
	return f
}

// List returns one page of job records matching the options plus the
// unpaginated total for the same filter. Records are ordered most
// recently scheduled first, with parked records last.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	skip := max(opts.Skip, 0)

	filter := buildJobListFilter(opts)

	page := &model.JobPage{Jobs: []*model.Job{}}
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		countQuery := `SELECT COUNT(*) FROM queue_jobs` + filter.clause
		if err := conn.QueryRow(ctx, countQuery, filter.args...).Scan(&page.Total); err != nil {
			return fmt.Errorf("count jobs: %w", err)
		}

		argIdx := len(filter.args) + 1
		listQuery := `SELECT ` + jobColumns + ` FROM queue_jobs` + filter.clause +
			fmt.Sprintf(`
			ORDER BY next_run_at DESC NULLS LAST, id DESC
			LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
		args := make([]any, len(filter.args), len(filter.args)+2)
		copy(args, filter.args)
		args = append(args, limit, skip)

		rows, err := conn.Query(ctx, listQuery, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		jobs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		page.Jobs = jobs
		return nil
	}); err != nil {
		return nil, err
	}

	return page, nil
}

// Overview returns per-name aggregates over all job records. A record
// counts as running when its lock is newer than the stale cutoff.
func (r *JobRepo) Overview(ctx context.Context, staleBefore time.Time) ([]*model.JobOverview, error) {
	var result []*model.JobOverview
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT
				name,
				COUNT(*)::int AS total,
				COUNT(*) FILTER (WHERE locked_at IS NOT NULL AND locked_at >= $1)::int AS running
			FROM queue_jobs
			GROUP BY name
			ORDER BY name ASC
		`, staleBefore.UTC())
		if err != nil {
			return fmt.Errorf("query job overview: %w", err)
		}
		result, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobOverview])
		if err != nil {
			return fmt.Errorf("collect job overview: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// RunningCounts returns the number of live-locked records per job name.
// Used by the poller to enforce per-name concurrency ceilings.
func (r *JobRepo) RunningCounts(ctx context.Context, staleBefore time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT name, COUNT(*)::int
			FROM queue_jobs
			WHERE locked_at IS NOT NULL AND locked_at >= $1
			GROUP BY name
		`, staleBefore.UTC())
		if err != nil {
			return fmt.Errorf("query running counts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			var n int
			if scanErr := rows.Scan(&name, &n); scanErr != nil {
				return fmt.Errorf("scan running count: %w", scanErr)
			}
			counts[name] = n
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}
	return counts, nil
}
