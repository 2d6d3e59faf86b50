package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/admin-api/internal/domain/model"
	"github.com/coursekit/admin-api/internal/service"
)

type mockJobStore struct {
	mock.Mock
}

func (m *mockJobStore) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*model.Job)
	return job, args.Error(1)
}

func (m *mockJobStore) GetByID(ctx context.Context, id string) (*model.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*model.Job)
	return job, args.Error(1)
}

func (m *mockJobStore) List(ctx context.Context, opts *model.JobListOptions) (*model.JobPage, error) {
	args := m.Called(ctx, opts)
	page, _ := args.Get(0).(*model.JobPage)
	return page, args.Error(1)
}

func (m *mockJobStore) Overview(ctx context.Context, staleBefore time.Time) ([]*model.JobOverview, error) {
	args := m.Called(ctx, staleBefore)
	overview, _ := args.Get(0).([]*model.JobOverview)
	return overview, args.Error(1)
}

func (m *mockJobStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockJobStore) DeleteByName(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

func newJobHandlers(t *testing.T) (*JobHandlers, *mockJobStore) {
	t.Helper()
	store := &mockJobStore{}
	svc := service.MustNewJobService(service.JobServiceOptions{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &JobHandlers{Svc: svc}, store
}

func decodeEnvelope(t *testing.T, body io.Reader) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func TestJobsList_ReturnsPage(t *testing.T) {
	h, store := newJobHandlers(t)

	page := &model.JobPage{
		Jobs:  []*model.Job{{ID: "7b00b5f8-44b5-4b0e-8d17-7d64ad45b8a1", Name: "send-welcome-email"}},
		Total: 1,
	}
	store.On("List", mock.Anything, &model.JobListOptions{Name: "welcome", Limit: 25, Skip: 5}).
		Return(page, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs?name=welcome&limit=25&skip=5", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	assert.Equal(t, http.StatusOK, env.Code)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, data["total"])
	store.AssertExpectations(t)
}

func TestJobsList_DefaultsAndClamping(t *testing.T) {
	h, store := newJobHandlers(t)

	store.On("List", mock.Anything, &model.JobListOptions{Limit: 100, Skip: 0}).
		Return(&model.JobPage{Jobs: []*model.Job{}, Total: 0}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs?limit=-3&skip=-1", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	store.AssertExpectations(t)
}

func TestJobsList_Overview(t *testing.T) {
	h, store := newJobHandlers(t)

	store.On("Overview", mock.Anything, mock.Anything).
		Return([]*model.JobOverview{{Name: "send-welcome-email", Total: 3, Running: 1}}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs?overview=true", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	rows, ok := env.Data.([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)

	row, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "send-welcome-email", row["name"])
	assert.EqualValues(t, 3, row["total"])
	assert.EqualValues(t, 1, row["running"])
	store.AssertExpectations(t)
}

func TestJobsList_StoreError_Returns500(t *testing.T) {
	h, store := newJobHandlers(t)

	store.On("List", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	assert.Equal(t, http.StatusInternalServerError, env.Code)
	// Internal errors never leak details to the client.
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), env.Message)
}

func TestJobsCreate_Enqueues(t *testing.T) {
	h, store := newJobHandlers(t)

	created := &model.Job{ID: "0f1e7a57-9e5c-4e06-a9a6-2a4a07a9b001", Name: "send-welcome-email"}
	store.On("Create", mock.Anything, mock.MatchedBy(func(req *model.CreateJobRequest) bool {
		return req.Name == "send-welcome-email" && string(req.Data) == `{"email":"a@b.c"}`
	})).Return(created, nil)

	body := bytes.NewBufferString(`{"name":"send-welcome-email","data":{"email":"a@b.c"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/admin/jobs", body)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	assert.Equal(t, http.StatusCreated, env.Code)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, created.ID, data["id"])
	store.AssertExpectations(t)
}

func TestJobsCreate_MissingName_Returns400(t *testing.T) {
	h, store := newJobHandlers(t)

	r := httptest.NewRequest(http.MethodPost, "/api/admin/jobs", bytes.NewBufferString(`{"data":{}}`))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJobsCreate_InvalidJSON_Returns400(t *testing.T) {
	h, _ := newJobHandlers(t)

	r := httptest.NewRequest(http.MethodPost, "/api/admin/jobs", bytes.NewBufferString("{bad"))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobsCreate_Retry(t *testing.T) {
	h, store := newJobHandlers(t)

	const originalID = "c6a85e5e-9c1f-4b3d-9a40-111111111111"
	original := &model.Job{ID: originalID, Name: "send-welcome-email", Data: json.RawMessage(`{"email":"a@b.c"}`)}
	retried := &model.Job{ID: "d7b96f6f-0d20-4c4e-8b51-222222222222", Name: "send-welcome-email"}

	store.On("GetByID", mock.Anything, originalID).Return(original, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(retried, nil)
	store.On("DeleteByID", mock.Anything, originalID).Return(true, nil)

	body := bytes.NewBufferString(`{"name":"send-welcome-email","retryJobId":"` + originalID + `"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/admin/jobs", body)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, retried.ID, data["id"])
	store.AssertExpectations(t)
}

func TestJobsCreate_RetryInvalidID_Returns400(t *testing.T) {
	h, store := newJobHandlers(t)

	body := bytes.NewBufferString(`{"name":"x","retryJobId":"not-a-uuid"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/admin/jobs", body)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJobsDelete_ByName(t *testing.T) {
	h, store := newJobHandlers(t)

	store.On("DeleteByName", mock.Anything, "send-welcome-email").Return(4, nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/admin/jobs?name=send-welcome-email", nil)
	w := httptest.NewRecorder()

	h.Delete(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4, data["numRemoved"])
	store.AssertExpectations(t)
}

func TestJobsDelete_NoSelector_Returns400(t *testing.T) {
	h, _ := newJobHandlers(t)

	r := httptest.NewRequest(http.MethodDelete, "/api/admin/jobs", nil)
	w := httptest.NewRecorder()

	h.Delete(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	assert.Equal(t, "either id or name is required", env.Message)
}
