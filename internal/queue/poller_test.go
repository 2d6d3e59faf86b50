package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/admin-api/internal/data"
	"github.com/coursekit/admin-api/internal/domain/model"
	"github.com/coursekit/admin-api/internal/testutil"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindDue(ctx context.Context, params data.FindDueParams) ([]*model.Job, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Job), args.Error(1)
}

func (m *mockStore) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	args := m.Called(ctx, id, now, staleBefore)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkSuccess(ctx context.Context, id string, params data.MarkSuccessParams) (bool, error) {
	args := m.Called(ctx, id, params)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkFailure(ctx context.Context, id string, params data.MarkFailureParams) (bool, error) {
	args := m.Called(ctx, id, params)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) RunningCounts(ctx context.Context, staleBefore time.Time) (map[string]int, error) {
	args := m.Called(ctx, staleBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockStore) WaitForNotification(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testJob(id, name string) *model.Job {
	return &model.Job{ID: id, Name: name, Type: model.JobTypeNormal}
}

func newTestPoller(t *testing.T, store Store, registry *Registry) *Poller {
	t.Helper()
	p, err := NewPoller(PollerOptions{
		Store:        store,
		Registry:     registry,
		TimeProvider: data.NewFixedTimeProvider(testutil.TestTime()),
	})
	require.NoError(t, err)
	return p
}

func TestPoller_Tick_SuccessfulRun(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)

	handled := make(chan string, 1)
	registry.Define("send-welcome-email", func(_ context.Context, job *model.Job) error {
		handled <- job.ID
		return nil
	})

	job := testJob("job-1", "send-welcome-email")
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil)
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkSuccess", mock.Anything, "job-1", mock.MatchedBy(func(p data.MarkSuccessParams) bool {
		return p.NextRunAt == nil && !p.FinishedAt.IsZero()
	})).Return(true, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)

	select {
	case id := <-handled:
		assert.Equal(t, "job-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	p.wg.Wait()

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkFailure", mock.Anything, mock.Anything, mock.Anything)
}

func TestPoller_Tick_HandlerError(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)
	registry.Define("send-welcome-email", func(_ context.Context, _ *model.Job) error {
		return errors.New("smtp connect refused")
	})

	job := testJob("job-1", "send-welcome-email")
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil)
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkFailure", mock.Anything, "job-1", mock.MatchedBy(func(p data.MarkFailureParams) bool {
		return p.Reason == "smtp connect refused" && p.NextRunAt == nil
	})).Return(true, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	p.wg.Wait()

	store.AssertExpectations(t)
}

func TestPoller_Tick_HandlerPanic(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)
	registry.Define("send-welcome-email", func(_ context.Context, _ *model.Job) error {
		panic("nil slide")
	})

	job := testJob("job-1", "send-welcome-email")
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil)
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkFailure", mock.Anything, "job-1", mock.MatchedBy(func(p data.MarkFailureParams) bool {
		return p.Reason == "handler panic: nil slide"
	})).Return(true, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	p.wg.Wait()

	store.AssertExpectations(t)
}

func TestPoller_Tick_RecurringReschedule(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)
	registry.Define("export-enrollments", noopHandler, WithRepeatInterval(time.Hour))

	now := testutil.TestTime()
	job := testJob("job-1", "export-enrollments")
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil)
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkSuccess", mock.Anything, "job-1", mock.MatchedBy(func(p data.MarkSuccessParams) bool {
		return p.NextRunAt != nil && p.NextRunAt.Equal(now.Add(time.Hour))
	})).Return(true, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	p.wg.Wait()

	store.AssertExpectations(t)
}

func TestPoller_Tick_NoHandlerRegistered(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)

	job := testJob("job-1", "forgotten-job")
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil)
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkFailure", mock.Anything, "job-1", mock.MatchedBy(func(p data.MarkFailureParams) bool {
		return p.Reason == "no handler registered" && p.NextRunAt == nil
	})).Return(true, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched, "an unhandled record is failed, not dispatched")

	store.AssertExpectations(t)
}

func TestPoller_Tick_LostClaimRace(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)
	registry.Define("send-welcome-email", noopHandler)

	job := testJob("job-1", "send-welcome-email")
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil)
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(false, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkFailure", mock.Anything, mock.Anything, mock.Anything)
}

func TestPoller_Tick_ConcurrencyCeiling(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)
	registry.Define("send-welcome-email", noopHandler, WithConcurrency(2))

	jobs := []*model.Job{
		testJob("job-1", "send-welcome-email"),
		testJob("job-2", "send-welcome-email"),
	}
	// Two records of this name already hold live locks, so the ceiling
	// is reached before this tick dispatches anything.
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{"send-welcome-email": 2}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return(jobs, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPoller_Tick_OwnLocksNotDoubleCounted(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)
	release := make(chan struct{})
	registry.Define("send-welcome-email", func(_ context.Context, _ *model.Job) error {
		<-release
		return nil
	}, WithConcurrency(2))

	// First tick claims job-1, whose handler stays in flight.
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil).Once()
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{testJob("job-1", "send-welcome-email")}, nil).Once()
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)

	p := newTestPoller(t, store, registry)

	dispatched, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)

	// Second tick: the store now reports job-1's lock as running. That is
	// the same handler inFlight tracks, so the ceiling of 2 still has room
	// for job-2.
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{"send-welcome-email": 1}, nil).Once()
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{testJob("job-2", "send-welcome-email")}, nil).Once()
	store.On("Claim", mock.Anything, "job-2", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkSuccess", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	dispatched, err = p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched, "own lock reported by the store must not consume extra ceiling")

	close(release)
	p.wg.Wait()

	store.AssertExpectations(t)
}

func TestPoller_Tick_StoreErrors(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)

	store.On("RunningCounts", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	p := newTestPoller(t, store, registry)

	_, err := p.Tick(context.Background())
	require.Error(t, err)

	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err = p.Tick(context.Background())
	require.Error(t, err)

	store.AssertExpectations(t)
}

func TestPoller_Run_DrainsOnCancel(t *testing.T) {
	store := &mockStore{}
	registry := NewRegistry(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	registry.Define("send-welcome-email", func(_ context.Context, _ *model.Job) error {
		close(started)
		<-release
		return nil
	})

	job := testJob("job-1", "send-welcome-email")
	store.On("WaitForNotification", mock.Anything).Return(context.Canceled).Maybe()
	store.On("RunningCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{job}, nil).Once()
	store.On("FindDue", mock.Anything, mock.Anything).Return([]*model.Job{}, nil).Maybe()
	store.On("Claim", mock.Anything, "job-1", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkSuccess", mock.Anything, "job-1", mock.Anything).Return(true, nil)

	p, err := NewPoller(PollerOptions{
		Store:    store,
		Registry: registry,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}

	cancel()

	// Run must not return while the handler is still in flight
	select {
	case <-done:
		t.Fatal("Run returned before in-flight handler drained")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case runErr := <-done:
		require.NoError(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after drain")
	}

	store.AssertCalled(t, "MarkSuccess", mock.Anything, "job-1", mock.Anything)
}
