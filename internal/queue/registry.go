// Package queue implements the durable job queue: a definition registry
// mapping job names to handlers, and a poller that claims due records
// from the store and dispatches them.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coursekit/admin-api/internal/domain/model"
)

// HandlerFunc processes a claimed job record. A non-nil error marks the
// record failed with the error text as the reason.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// Definition describes a named job: its handler plus per-name execution
// settings applied by the poller.
type Definition struct {
	Name    string
	Handler HandlerFunc

	// Concurrency caps the number of records with this name running at
	// once across the process. Zero means the poller default.
	Concurrency int
	// LockLifetime is the maximum processing window before the lock is
	// considered stale and the record claimable again. Zero means the
	// poller default.
	LockLifetime time.Duration
	// Priority is applied to records enqueued without an explicit one.
	Priority int
	// RepeatInterval makes the definition recurring: after each run the
	// record is rescheduled this far in the future. Zero means run once.
	RepeatInterval time.Duration
}

// Recurring reports whether records of this definition reschedule
// themselves after each run.
func (d Definition) Recurring() bool {
	return d.RepeatInterval > 0
}

// DefineOption customizes a Definition.
type DefineOption func(*Definition)

// WithConcurrency sets the per-name concurrency ceiling.
func WithConcurrency(n int) DefineOption {
	return func(d *Definition) { d.Concurrency = n }
}

// WithLockLifetime sets the per-name maximum processing window.
func WithLockLifetime(ttl time.Duration) DefineOption {
	return func(d *Definition) { d.LockLifetime = ttl }
}

// WithPriority sets the default priority for records of this name.
func WithPriority(p int) DefineOption {
	return func(d *Definition) { d.Priority = p }
}

// WithRepeatInterval makes the definition recurring at the given interval.
func WithRepeatInterval(interval time.Duration) DefineOption {
	return func(d *Definition) { d.RepeatInterval = interval }
}

// Registry holds job definitions by name. It is safe for concurrent use,
// though the expected pattern is to populate it at startup before the
// poller runs.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defs:   make(map[string]Definition),
		logger: logger,
	}
}

// Define registers a handler for the given job name. Redefining a name
// replaces the previous definition; the override is logged.
func (r *Registry) Define(name string, handler HandlerFunc, opts ...DefineOption) {
	def := Definition{Name: name, Handler: handler}
	for _, opt := range opts {
		opt(&def)
	}

	r.mu.Lock()
	_, replaced := r.defs[name]
	r.defs[name] = def
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("job definition replaced", "name", name)
	}
}

// Lookup returns the definition for a job name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered job names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}
