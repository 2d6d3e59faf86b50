package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coursekit/admin-api/internal/data/database"
	"github.com/coursekit/admin-api/internal/data/pgxutil"
	"github.com/coursekit/admin-api/internal/domain/model"
)

var (
	// ErrCourseNotFound is returned when a course is not found.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseTitleExists is returned when attempting to create/update a course with a duplicate title.
	ErrCourseTitleExists = errors.New("course title already exists")
)

// CourseRepo provides database operations for courses.
type CourseRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCourseRepo creates a new CourseRepo with real time provider.
func NewCourseRepo(db *sql.DB) *CourseRepo {
	return &CourseRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewCourseRepoWithTimeProvider creates a new CourseRepo with a custom time provider (useful for tests).
func NewCourseRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *CourseRepo {
	return &CourseRepo{DB: db, timeProvider: tp}
}

// Create inserts a new course.
func (r *CourseRepo) Create(ctx context.Context, req *model.CreateCourseRequest) (*model.Course, error) {
	if req == nil {
		return nil, errors.New("create course request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Course
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO courses (title, description, image_url, price_cents, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+courseColumnList,
			strings.TrimSpace(req.Title),
			req.Description,
			req.ImageURL,
			req.PriceCents,
			req.Status,
			createdAt,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Course])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a course by ID.
func (r *CourseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+courseColumnList+`
			FROM courses
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		course, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Course])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// ListWithOptions retrieves courses with optional filters and sorting,
// plus the unpaginated total for the same filter.
func (r *CourseRepo) ListWithOptions(
	ctx context.Context,
	opts model.CoursesListOptions,
) ([]*model.Course, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := max(opts.Offset, 0)

	listOpts := r.buildCourseQueryOptions(opts, limit, offset)
	query, args := database.BuildListQuery(listOpts)

	countOpts := r.buildCourseCountOptions(opts)
	countQuery, countArgs := database.BuildListQuery(countOpts)

	var rowsOut []model.Course
	var total int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count courses: %w", err)
		}

		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Course])
		return err
	}); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	res := make([]*model.Course, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, total, nil
}

// Update updates fields of a course.
func (r *CourseRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateCourseRequest,
) (*model.Course, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause, args := r.buildUpdateClause(req)
	args = append(args, id)
	query := "UPDATE courses SET " + setClause + " WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + courseColumnList

	var out model.Course
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Course])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a course based on the request.
func (r *CourseRepo) buildUpdateClause(req model.UpdateCourseRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 7)
	nextIdx := func() int { return len(args) + 1 }

	if req.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Title))
	}
	if req.Description != nil {
		if strings.TrimSpace(*req.Description) == "" {
			setParts = append(setParts, "description = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
			args = append(args, *req.Description)
		}
	}
	if req.ImageURL != nil {
		if strings.TrimSpace(*req.ImageURL) == "" {
			setParts = append(setParts, "image_url = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("image_url = $%d", nextIdx()))
			args = append(args, *req.ImageURL)
		}
	}
	if req.PriceCents != nil {
		setParts = append(setParts, fmt.Sprintf("price_cents = $%d", nextIdx()))
		args = append(args, *req.PriceCents)
	}
	if req.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", nextIdx()))
		args = append(args, *req.Status)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())

	return strings.Join(setParts, ", "), args
}

// Delete deletes a course by ID.
func (r *CourseRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const (
	courseColumnList = `id, title, description, image_url, price_cents, status, created_at, updated_at`

	sortDirAsc  = "ASC"
	sortDirDesc = "DESC"
)

// courseColumns returns the standard column list for course queries.
func courseColumns() []string {
	return []string{
		"id",
		"title",
		"description",
		"image_url",
		"price_cents",
		"status",
		"created_at",
		"updated_at",
	}
}

// courseFilterConditions translates list options into query builder conditions.
func courseFilterConditions(opts model.CoursesListOptions) []database.Condition {
	var conds []database.Condition
	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		conds = append(conds, database.WhereCond("title", database.ILike, "%"+strings.TrimSpace(*opts.Q)+"%"))
	}
	if opts.Status != nil && *opts.Status != "" {
		conds = append(conds, database.WhereCond("status", database.Equal, string(*opts.Status)))
	}
	return conds
}

// buildCourseQueryOptions builds query options for course listing with filters and sorting.
func (r *CourseRepo) buildCourseQueryOptions(
	opts model.CoursesListOptions,
	limit, offset int,
) *database.ListQueryOptions {
	queryOpts := []database.ListQueryOption{
		database.WithColumns(courseColumns()...),
		database.WithLimit(limit),
		database.WithOffset(offset),
	}
	for _, cond := range courseFilterConditions(opts) {
		queryOpts = append(queryOpts, database.WithCondition(cond))
	}

	sortCol, sortDir := validateCourseSortOptions(opts.Sort, opts.Dir)
	queryOpts = append(queryOpts, database.WithOrderBy(sortCol, sortDir))

	return database.NewListQueryOptions("courses", queryOpts...)
}

// buildCourseCountOptions builds a count-only query for the same filter.
func (r *CourseRepo) buildCourseCountOptions(opts model.CoursesListOptions) *database.ListQueryOptions {
	queryOpts := []database.ListQueryOption{database.WithCountOnly()}
	for _, cond := range courseFilterConditions(opts) {
		queryOpts = append(queryOpts, database.WithCondition(cond))
	}
	return database.NewListQueryOptions("courses", queryOpts...)
}

// validateCourseSortOptions validates and returns safe sort column and direction.
func validateCourseSortOptions(sort, dir string) (string, string) {
	sortCol := "created_at"
	sortDir := sortDirDesc

	if sort != "" {
		allowedSorts := map[string]string{
			"title":      "title",
			"price":      "price_cents",
			"created_at": "created_at",
		}
		if validSort, ok := allowedSorts[strings.ToLower(strings.TrimSpace(sort))]; ok {
			sortCol = validSort
		}
	}
	if dir != "" {
		allowedDirs := map[string]string{
			"asc":  sortDirAsc,
			"desc": sortDirDesc,
		}
		if validDir, ok := allowedDirs[strings.ToLower(strings.TrimSpace(dir))]; ok {
			sortDir = validDir
		}
	}
	return sortCol, sortDir
}

func (r *CourseRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrCourseNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrCourseTitleExists
	}
	return err
}
