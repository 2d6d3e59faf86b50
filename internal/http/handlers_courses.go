package httpx

import (
	"net/http"

	"github.com/coursekit/admin-api/internal/domain/model"
	"github.com/coursekit/admin-api/internal/service"
)

const (
	defaultCoursePageSize = 10
	maxCoursePageSize     = 100
)

// CourseHandlers provides HTTP handlers for course CRUD endpoints.
type CourseHandlers struct {
	Svc *service.CourseService
}

// List handles GET /api/courses.
// Query params: page (1-based), limit, status, search, sortBy, sortOrder.
func (h *CourseHandlers) List(w http.ResponseWriter, r *http.Request) {
	page := parseIntQuery(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := parseIntQuery(r, "limit", defaultCoursePageSize)
	if limit < 1 {
		limit = defaultCoursePageSize
	}
	if limit > maxCoursePageSize {
		limit = maxCoursePageSize
	}

	opts := model.CoursesListOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
		Sort:   r.URL.Query().Get("sortBy"),
		Dir:    r.URL.Query().Get("sortOrder"),
	}
	if q := r.URL.Query().Get("search"); q != "" {
		opts.Q = &q
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := model.ParseCourseStatus(raw)
		if !ok {
			WriteError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		opts.Status = &status
	}

	result, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"courses":    result.Courses,
		"total":      result.Total,
		"page":       page,
		"limit":      limit,
		"totalPages": result.TotalPages,
	})
}

// Create handles POST /api/courses.
func (h *CourseHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCourseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, course)
}

// GetByID handles GET /api/courses/{id}.
func (h *CourseHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	course, err := h.Svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, course)
}

// Update handles PUT /api/courses/{id}.
func (h *CourseHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCourseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.Svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, course)
}

// Delete handles DELETE /api/courses/{id}.
func (h *CourseHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONMessage(w, http.StatusOK, "course deleted", nil)
}
