package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/coursekit/admin-api/internal/domain/model"
	"github.com/coursekit/admin-api/internal/service"
)

const (
	defaultJobListLimit = 100
	maxJobListLimit     = 1000
)

// JobHandlers provides HTTP handlers for the admin job queue endpoints.
type JobHandlers struct {
	Svc *service.JobService
}

// List handles GET /api/admin/jobs.
// Query params: name (substring filter), limit, skip, overview=true.
// With overview=true it returns per-name aggregate counts instead of a page.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("overview") == "true" {
		overview, err := h.Svc.Overview(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, overview)
		return
	}

	opts := &model.JobListOptions{
		Name:  r.URL.Query().Get("name"),
		Limit: parseIntQuery(r, "limit", defaultJobListLimit),
		Skip:  parseIntQuery(r, "skip", 0),
	}
	if opts.Limit < 1 {
		opts.Limit = defaultJobListLimit
	}
	if opts.Limit > maxJobListLimit {
		opts.Limit = maxJobListLimit
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}

	page, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// enqueueJobRequest is the POST body. When RetryJobID is set the request is a
// retry of an existing failed record rather than a fresh enqueue.
type enqueueJobRequest struct {
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data,omitempty"`
	RetryJobID string          `json:"retryJobId,omitempty"`
}

// Create handles POST /api/admin/jobs.
func (h *JobHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	by := CallerID(r.Context())

	if req.RetryJobID != "" {
		job, err := h.Svc.Retry(r.Context(), service.RetryInput{
			Name:       req.Name,
			Data:       req.Data,
			RetryJobID: req.RetryJobID,
			By:         by,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSONMessage(w, http.StatusCreated, "job "+job.Name+" re-enqueued", job)
		return
	}

	job, err := h.Svc.Enqueue(r.Context(), service.EnqueueInput{
		Name: req.Name,
		Data: req.Data,
		By:   by,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONMessage(w, http.StatusCreated, "job "+job.Name+" enqueued", job)
}

// Delete handles DELETE /api/admin/jobs?id=|name=.
// Responds with the number of records removed.
func (h *JobHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	numRemoved, err := h.Svc.Cancel(r.Context(), service.CancelInput{
		ID:   r.URL.Query().Get("id"),
		Name: r.URL.Query().Get("name"),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"numRemoved": numRemoved})
}
