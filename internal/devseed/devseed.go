// Package devseed populates a development database with sample courses
// and queued jobs so the admin dashboard has something to show.
package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/coursekit/admin-api/internal/data"
	"github.com/coursekit/admin-api/internal/domain/model"
	apperrors "github.com/coursekit/admin-api/internal/errors"
	"github.com/coursekit/admin-api/internal/queue"
	"github.com/coursekit/admin-api/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB      *sql.DB
	courses *service.CourseService
	jobs    *service.JobService
}

// NewServices constructs the services used for seeding against the provided DB.
func NewServices(db *sql.DB, logger *slog.Logger) Services {
	courseService := service.NewCourseService(service.CourseServiceOptions{
		Store: data.NewCourseRepo(db),
	})
	jobService := service.MustNewJobService(service.JobServiceOptions{
		Store:    data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		Registry: queue.NewRegistry(logger),
		Logger:   logger,
	})

	return Services{
		DB:      db,
		courses: courseService,
		jobs:    jobService,
	}
}

// Run executes the full development seeding workflow.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := seedCourses(ctx, svcs.courses, logger); err != nil {
		return err
	}
	return seedJobs(ctx, svcs.jobs, logger)
}

func strPtr(s string) *string { return &s }

func sampleCourses() []model.CreateCourseRequest {
	return []model.CreateCourseRequest{
		{
			Title:       "Intro to Go",
			Description: strPtr("Syntax, tooling, and the standard library."),
			PriceCents:  4900,
			Status:      model.CourseStatusPublished,
		},
		{
			Title:       "PostgreSQL for Application Developers",
			Description: strPtr("Schema design, indexing, and query tuning."),
			PriceCents:  7900,
			Status:      model.CourseStatusPublished,
		},
		{
			Title:       "Background Jobs in Practice",
			Description: strPtr("Durable queues, retries, and idempotent handlers."),
			PriceCents:  5900,
			Status:      model.CourseStatusDraft,
		},
		{
			Title:      "Legacy Frontend Maintenance",
			PriceCents: 0,
			Status:     model.CourseStatusArchived,
		},
	}
}

// seedCourses inserts the sample catalog. Inserts run concurrently; a title
// that already exists is treated as already seeded, not a failure.
func seedCourses(ctx context.Context, svc *service.CourseService, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, req := range sampleCourses() {
		g.Go(func() error {
			course, err := svc.Create(gctx, &req)
			if err != nil {
				var appErr *apperrors.AppError
				if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeConflict {
					logger.InfoContext(gctx, "course already seeded", "title", req.Title)
					return nil
				}
				return fmt.Errorf("seed course %q: %w", req.Title, err)
			}
			logger.InfoContext(gctx, "course seeded", "id", course.ID, "title", course.Title)
			return nil
		})
	}

	return g.Wait()
}

// seedJobs enqueues a few welcome emails so the queue views are not empty.
func seedJobs(ctx context.Context, svc *service.JobService, logger *slog.Logger) error {
	by := "devseed"
	recipients := []struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}{
		{Email: "ana@example.com", Username: "ana"},
		{Email: "bram@example.com", Username: "bram"},
	}

	for _, r := range recipients {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal seed payload: %w", err)
		}
		job, err := svc.Enqueue(ctx, service.EnqueueInput{
			Name: "send-welcome-email",
			Data: payload,
			By:   &by,
		})
		if err != nil {
			return fmt.Errorf("seed job for %s: %w", r.Email, err)
		}
		logger.InfoContext(ctx, "job seeded", "id", job.ID, "email", r.Email)
	}

	return nil
}
