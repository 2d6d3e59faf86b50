package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coursekit/admin-api/internal/data"
	"github.com/coursekit/admin-api/internal/domain/model"
)

// Store is the slice of the job store the poller needs.
type Store interface {
	FindDue(ctx context.Context, params data.FindDueParams) ([]*model.Job, error)
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	MarkSuccess(ctx context.Context, id string, params data.MarkSuccessParams) (bool, error)
	MarkFailure(ctx context.Context, id string, params data.MarkFailureParams) (bool, error)
	RunningCounts(ctx context.Context, staleBefore time.Time) (map[string]int, error)
	WaitForNotification(ctx context.Context) error
}

const (
	defaultInterval     = 30 * time.Second
	defaultBatchSize    = 25
	defaultLockLifetime = 10 * time.Minute
	defaultConcurrency  = 5
)

// PollerOptions configures a Poller.
type PollerOptions struct {
	Store    Store
	Registry *Registry
	Logger   *slog.Logger

	// Interval between poll ticks. New-record notifications wake the
	// poller early.
	Interval time.Duration
	// BatchSize caps the number of candidates examined per tick.
	BatchSize int
	// LockLifetime is the default maximum processing window; definitions
	// may override it per name.
	LockLifetime time.Duration
	// DefaultConcurrency is the per-name ceiling applied when a
	// definition does not set its own.
	DefaultConcurrency int

	TimeProvider data.TimeProvider
}

// Poller drives the queue: each tick it selects due records, claims them
// and runs their handlers on tracked goroutines.
type Poller struct {
	store        Store
	registry     *Registry
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
	lockLifetime time.Duration
	defaultConc  int
	timeProvider data.TimeProvider

	wg sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]int
}

// NewPoller creates a poller. Store and Registry are required.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.LockLifetime <= 0 {
		opts.LockLifetime = defaultLockLifetime
	}
	if opts.DefaultConcurrency <= 0 {
		opts.DefaultConcurrency = defaultConcurrency
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}

	return &Poller{
		store:        opts.Store,
		registry:     opts.Registry,
		logger:       opts.Logger,
		interval:     opts.Interval,
		batchSize:    opts.BatchSize,
		lockLifetime: opts.LockLifetime,
		defaultConc:  opts.DefaultConcurrency,
		timeProvider: opts.TimeProvider,
		inFlight:     make(map[string]int),
	}, nil
}

// Run polls until the context is cancelled, then waits for in-flight
// handlers to drain before returning.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "starting queue poller",
		"interval", p.interval,
		"batch_size", p.batchSize,
		"lock_lifetime", p.lockLifetime,
		"definitions", p.registry.Names(),
	)

	wake := make(chan struct{}, 1)
	go p.listenForJobs(ctx, wake)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("queue poller stopping, draining in-flight handlers")
			p.wg.Wait()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}

		if dispatched, err := p.Tick(ctx); err != nil {
			// Store trouble is transient; the next tick retries.
			p.logger.ErrorContext(ctx, "poll tick failed", "error", err)
		} else if dispatched > 0 {
			p.logger.DebugContext(ctx, "dispatched jobs", "count", dispatched)
		}
	}
}

// listenForJobs forwards new-record notifications into the wake channel so
// enqueued work does not wait for the next tick.
func (p *Poller) listenForJobs(ctx context.Context, wake chan<- struct{}) {
	for ctx.Err() == nil {
		if err := p.store.WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WarnContext(ctx, "job notification listener error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.interval):
			}
			continue
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Tick runs one poll pass: select due records, claim each and dispatch its
// handler. Returns the number of handlers dispatched.
func (p *Poller) Tick(ctx context.Context) (int, error) {
	now := p.timeProvider.Now().UTC()
	staleBefore := now.Add(-p.lockLifetime)

	running, err := p.store.RunningCounts(ctx, staleBefore)
	if err != nil {
		return 0, err
	}
	// RunningCounts includes rows this instance locked on earlier ticks,
	// which inFlight already tracks. Keep only other instances' locks.
	others := p.subtractOwnInFlight(running)

	due, err := p.store.FindDue(ctx, data.FindDueParams{
		Now:         now,
		StaleBefore: staleBefore,
		Limit:       p.batchSize,
	})
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, job := range due {
		if ctx.Err() != nil {
			break
		}
		if p.dispatch(ctx, job, now, others) {
			dispatched++
		}
	}
	return dispatched, nil
}

// dispatch claims a single candidate and starts its handler. Returns true
// when a handler was started.
func (p *Poller) dispatch(ctx context.Context, job *model.Job, now time.Time, others map[string]int) bool {
	def, ok := p.registry.Lookup(job.Name)
	if !ok {
		p.failUnhandled(ctx, job, now)
		return false
	}

	ceiling := def.Concurrency
	if ceiling <= 0 {
		ceiling = p.defaultConc
	}
	if others[job.Name]+p.inFlightCount(job.Name) >= ceiling {
		return false
	}

	lockLifetime := def.LockLifetime
	if lockLifetime <= 0 {
		lockLifetime = p.lockLifetime
	}
	claimed, err := p.store.Claim(ctx, job.ID, now, now.Add(-lockLifetime))
	if err != nil {
		p.logger.ErrorContext(ctx, "claim failed", "job_id", job.ID, "name", job.Name, "error", err)
		return false
	}
	if !claimed {
		// Lost the race to another poller.
		return false
	}

	p.addInFlight(job.Name, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.addInFlight(job.Name, -1)
		p.execute(ctx, def, job)
	}()
	return true
}

// failUnhandled marks a record with no registered handler as failed so it
// does not spin through every tick.
func (p *Poller) failUnhandled(ctx context.Context, job *model.Job, now time.Time) {
	p.logger.ErrorContext(ctx, "no handler registered", "job_id", job.ID, "name", job.Name)

	claimed, err := p.store.Claim(ctx, job.ID, now, now.Add(-p.lockLifetime))
	if err != nil || !claimed {
		return
	}
	if _, err := p.store.MarkFailure(ctx, job.ID, data.MarkFailureParams{
		FailedAt: now,
		Reason:   "no handler registered",
	}); err != nil {
		p.logger.ErrorContext(ctx, "mark unhandled job failed", "job_id", job.ID, "error", err)
	}
}

// execute runs a handler and records the outcome. Recurring definitions
// are rescheduled on both success and failure.
func (p *Poller) execute(ctx context.Context, def Definition, job *model.Job) {
	start := p.timeProvider.Now().UTC()
	runErr := p.runHandler(ctx, def, job)
	finished := p.timeProvider.Now().UTC()

	var next *time.Time
	if def.Recurring() {
		t := finished.Add(def.RepeatInterval)
		next = &t
	}

	if runErr != nil {
		p.logger.ErrorContext(ctx, "job failed",
			"job_id", job.ID, "name", job.Name, "duration", finished.Sub(start), "error", runErr)
		ok, err := p.store.MarkFailure(ctx, job.ID, data.MarkFailureParams{
			FailedAt:  finished,
			Reason:    runErr.Error(),
			NextRunAt: next,
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "mark failure error", "job_id", job.ID, "error", err)
		} else if !ok {
			p.logger.WarnContext(ctx, "lock lost before failure recorded", "job_id", job.ID, "name", job.Name)
		}
		return
	}

	ok, err := p.store.MarkSuccess(ctx, job.ID, data.MarkSuccessParams{
		FinishedAt: finished,
		NextRunAt:  next,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "mark success error", "job_id", job.ID, "error", err)
	} else if !ok {
		p.logger.WarnContext(ctx, "lock lost before success recorded", "job_id", job.ID, "name", job.Name)
	} else {
		p.logger.InfoContext(ctx, "job finished",
			"job_id", job.ID, "name", job.Name, "duration", finished.Sub(start))
	}
}

// runHandler isolates handler panics so one bad job cannot take down the
// poller.
func (p *Poller) runHandler(ctx context.Context, def Definition, job *model.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return def.Handler(ctx, job)
}

// subtractOwnInFlight removes this instance's tracked handlers from the
// store's running counts, leaving locks held by other instances.
func (p *Poller) subtractOwnInFlight(running map[string]int) map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	others := make(map[string]int, len(running))
	for name, count := range running {
		if remaining := count - p.inFlight[name]; remaining > 0 {
			others[name] = remaining
		}
	}
	return others
}

func (p *Poller) inFlightCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[name]
}

func (p *Poller) addInFlight(name string, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight[name] += delta
	if p.inFlight[name] <= 0 {
		delete(p.inFlight, name)
	}
}
