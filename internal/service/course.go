package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coursekit/admin-api/internal/data"
	"github.com/coursekit/admin-api/internal/domain/model"
	apperrors "github.com/coursekit/admin-api/internal/errors"
)

// CourseStore is the persistence surface CourseService needs from the course repository.
type CourseStore interface {
	Create(ctx context.Context, req *model.CreateCourseRequest) (*model.Course, error)
	GetByID(ctx context.Context, id string) (*model.Course, error)
	ListWithOptions(ctx context.Context, opts model.CoursesListOptions) ([]*model.Course, int, error)
	Update(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CourseServiceOptions groups dependencies for CourseService.
type CourseServiceOptions struct {
	Store CourseStore
}

// CourseService provides course catalog CRUD for the admin dashboard.
type CourseService struct {
	store CourseStore
}

// NewCourseService constructs a new CourseService.
func NewCourseService(opts CourseServiceOptions) *CourseService {
	return &CourseService{store: opts.Store}
}

// CoursesPage is one page of courses plus pagination metadata.
type CoursesPage struct {
	Courses    []*model.Course `json:"courses"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

// Create validates and persists a new course.
func (s *CourseService) Create(ctx context.Context, req *model.CreateCourseRequest) (*model.Course, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	course, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, mapCourseError(err)
	}
	return course, nil
}

// GetByID retrieves a course by ID.
func (s *CourseService) GetByID(ctx context.Context, id string) (*model.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ValidationField("id", "invalid course id")
	}
	course, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapCourseError(err)
	}
	return course, nil
}

// List returns a page of courses with total and total page counts.
func (s *CourseService) List(ctx context.Context, opts model.CoursesListOptions) (*CoursesPage, error) {
	opts = normalizeCourseListOptions(opts)

	courses, total, err := s.store.ListWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + opts.Limit - 1) / opts.Limit
	}

	return &CoursesPage{
		Courses:    courses,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Update validates and applies a partial update to a course.
func (s *CourseService) Update(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ValidationField("id", "invalid course id")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	course, err := s.store.Update(ctx, id, req)
	if err != nil {
		return nil, mapCourseError(err)
	}
	return course, nil
}

// Delete removes a course by ID. Returns a not-found error when nothing was deleted.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.ValidationField("id", "invalid course id")
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return mapCourseError(err)
	}
	if !deleted {
		return apperrors.NotFoundf("course %s not found", id)
	}
	return nil
}

// mapCourseError translates repository sentinels into coded application errors.
func mapCourseError(err error) error {
	switch {
	case errors.Is(err, data.ErrCourseNotFound):
		return apperrors.NotFound("course not found")
	case errors.Is(err, data.ErrCourseTitleExists):
		return apperrors.Conflict("a course with this title already exists")
	default:
		return err
	}
}

func normalizeCourseListOptions(opts model.CoursesListOptions) model.CoursesListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Sort == "" {
		opts.Sort = "created_at"
	}
	if opts.Dir == "" {
		opts.Dir = "desc"
	}
	return opts
}
