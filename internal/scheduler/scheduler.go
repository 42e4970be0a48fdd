package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	gitwatchErrors "github.com/bashhack/gitwatch/internal/errors"
	"github.com/bashhack/gitwatch/internal/logger"
	"github.com/google/uuid"
)

// Committer receives a swapped-out change set when a key's timer fires.
type Committer interface {
	CommitChanges(ctx context.Context, key string, changes *ChangeSet) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, key string, changes *ChangeSet) error

func (f CommitterFunc) CommitChanges(ctx context.Context, key string, changes *ChangeSet) error {
	return f(ctx, key, changes)
}

// Filter reports whether relPath under key should be dropped.
type Filter func(key, relPath string) bool

// Timer is the subset of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// Clock creates timers. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Scheduler.
type Options struct {
	// Delay is the debounce window measured from the most recent change.
	Delay     time.Duration
	Committer Committer
	// Filter drops ignored paths before they reach a change set.
	Filter Filter
	// RequeueOnFailure merges the paths of a failed attempt back into the
	// key's pending set instead of dropping them.
	RequeueOnFailure bool
	Clock            Clock
	Logger           logger.Logger
}

// Stats counts what the scheduler has done so far.
type Stats struct {
	Cycles   int64
	Failures int64
	Dropped  int64
}

type entry struct {
	pending *ChangeSet
	timer   Timer
	// gen identifies the live timer across the scheduler's lifetime;
	// callbacks from replaced timers see a different value and return.
	gen uint64
	// running is set while a commit for the key is in progress. A timer
	// that fires meanwhile sets deferred and the running goroutine picks
	// the set up when it finishes.
	running  bool
	deferred bool
	// idle is closed when the running commit, including deferred
	// follow-ups, has finished.
	idle chan struct{}
}

// Scheduler debounces changes per repository key. Each key owns at most one
// live timer; every recorded change restarts it. When it fires the key's
// change set is swapped for an empty one under the lock and committed after
// the lock is released.
type Scheduler struct {
	delay     time.Duration
	committer Committer
	filter    Filter
	requeue   bool
	clock     Clock
	logger    logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	closed  bool

	cycles   atomic.Int64
	failures atomic.Int64
	dropped  atomic.Int64
}

// New creates a Scheduler. Committer is required.
func New(opts Options) *Scheduler {
	if opts.Committer == nil {
		panic("scheduler: Committer is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}

	return &Scheduler{
		delay:     delay,
		committer: opts.Committer,
		filter:    opts.Filter,
		requeue:   opts.RequeueOnFailure,
		clock:     clock,
		logger:    log,
		entries:   make(map[string]*entry),
	}
}

// RecordChange adds relPath to key's pending set and restarts the key's
// timer. Ignored paths are dropped without touching the timer. After Close
// it returns ErrSchedulerClosed.
func (s *Scheduler) RecordChange(key, relPath string, kind Kind) error {
	if s.filter != nil && s.filter(key, relPath) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return gitwatchErrors.ErrSchedulerClosed
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{pending: NewChangeSet()}
		s.entries[key] = e
	}
	e.pending.Add(relPath, kind)
	s.arm(key, e)

	return nil
}

// arm replaces the key's timer. Callers hold s.mu.
func (s *Scheduler) arm(key string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	s.seq++
	e.gen = s.seq
	e.deferred = false
	gen := e.gen
	e.timer = s.clock.AfterFunc(s.delay, func() { s.fire(key, gen) })
}

func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	if e.running {
		e.deferred = true
		s.mu.Unlock()
		return
	}
	changes := s.swap(e)
	s.mu.Unlock()

	s.run(key, e, changes)
}

// swap takes the pending set and clears the timer. Callers hold s.mu.
func (s *Scheduler) swap(e *entry) *ChangeSet {
	changes := e.pending
	e.pending = NewChangeSet()
	e.timer = nil
	e.deferred = false
	e.running = true
	if e.idle == nil {
		e.idle = make(chan struct{})
	}
	return changes
}

func (s *Scheduler) run(key string, e *entry, changes *ChangeSet) {
	for {
		err := s.commit(context.Background(), key, changes)

		s.mu.Lock()
		e.running = false
		if err != nil && s.requeue {
			e.pending.Merge(changes)
		}

		if e.pending.Len() > 0 && !s.closed {
			if e.deferred {
				changes = s.swap(e)
				s.mu.Unlock()
				continue
			}
			if e.timer == nil {
				s.arm(key, e)
			}
		}
		if e.pending.Len() == 0 && e.timer == nil {
			delete(s.entries, key)
		}
		close(e.idle)
		e.idle = nil
		s.mu.Unlock()
		return
	}
}

// commit hands one set to the Committer and accounts for the outcome.
func (s *Scheduler) commit(ctx context.Context, key string, changes *ChangeSet) error {
	cycle := uuid.NewString()
	log := s.logger.With("repo", key, "cycle", cycle)
	s.cycles.Add(1)

	log.Info("Commit cycle started with %d pending paths", changes.Len())
	err := s.committer.CommitChanges(WithCycle(ctx, cycle), key, changes)
	if err == nil {
		return nil
	}

	s.failures.Add(1)
	if s.requeue {
		log.Error("Commit attempt failed, %d paths re-queued: %v", changes.Len(), err)
	} else {
		s.dropped.Add(int64(changes.Len()))
		log.Error("Commit attempt failed, %d pending paths dropped until their next change: %v", changes.Len(), err)
	}
	return err
}

// Close stops all timers and synchronously commits every key that still
// has pending changes. Idle keys are flushed first, in sorted order. Keys
// with a commit in progress are then waited for one at a time and flushed as
// soon as their commit returns. When ctx expires the keys still running are
// skipped and logged. The returned error joins the failures of the flush.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var idle, busy []string
	for key, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.deferred = false
		switch {
		case e.running:
			busy = append(busy, key)
		case e.pending.Len() > 0:
			idle = append(idle, key)
		}
	}
	sort.Strings(idle)
	sort.Strings(busy)
	sets := make([]*ChangeSet, len(idle))
	for i, key := range idle {
		sets[i] = s.take(key)
	}
	s.mu.Unlock()

	var errs []error
	for i, key := range idle {
		if err := s.flush(ctx, key, sets[i]); err != nil {
			errs = append(errs, err)
		}
	}

	for i, key := range busy {
		s.mu.Lock()
		var wait chan struct{}
		if e, ok := s.entries[key]; ok {
			wait = e.idle
		}
		s.mu.Unlock()

		if wait != nil {
			select {
			case <-wait:
			case <-ctx.Done():
				s.skip(busy[i:])
				errs = append(errs, gitwatchErrors.Wrap(ctx.Err(), "waiting for running commits"))
				return gitwatchErrors.Join(errs...)
			}
		}

		s.mu.Lock()
		changes := s.take(key)
		s.mu.Unlock()
		if err := s.flush(ctx, key, changes); err != nil {
			errs = append(errs, err)
		}
	}

	return gitwatchErrors.Join(errs...)
}

// take removes key and returns its pending set, or nil when nothing is
// pending. Callers hold s.mu.
func (s *Scheduler) take(key string) *ChangeSet {
	e, ok := s.entries[key]
	if !ok || e.running {
		return nil
	}
	delete(s.entries, key)
	if e.pending.Len() == 0 {
		return nil
	}
	return e.pending
}

func (s *Scheduler) flush(ctx context.Context, key string, changes *ChangeSet) error {
	if changes == nil {
		return nil
	}
	s.logger.Info("Flushing %d pending paths for %s on shutdown", changes.Len(), key)
	return s.commit(ctx, key, changes)
}

// skip logs the keys abandoned because the shutdown deadline passed.
func (s *Scheduler) skip(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		pending := 0
		if e, ok := s.entries[key]; ok {
			pending = e.pending.Len()
		}
		s.logger.Error("Shutdown deadline passed while %s was committing, %d pending paths not committed", key, pending)
	}
}

// Pending returns the number of paths waiting for key's timer.
func (s *Scheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.pending.Len()
	}
	return 0
}

// Keys returns the keys that currently have pending changes, sorted.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key, e := range s.entries {
		if e.pending.Len() > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:   s.cycles.Load(),
		Failures: s.failures.Load(),
		Dropped:  s.dropped.Load(),
	}
}

type cycleKey struct{}

// WithCycle attaches a commit cycle ID to ctx.
func WithCycle(ctx context.Context, cycle string) context.Context {
	return context.WithValue(ctx, cycleKey{}, cycle)
}

// CycleFrom returns the commit cycle ID carried by ctx, if any.
func CycleFrom(ctx context.Context) string {
	cycle, _ := ctx.Value(cycleKey{}).(string)
	return cycle
}
