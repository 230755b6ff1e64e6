package scheduler

import (
	"container/heap"
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler is already started")

// Action executes a fired trigger. It runs on a worker goroutine, never on
// the clock loop.
type Action func(ctx context.Context, t Trigger) error

// Observer receives scheduler events. Implementations must not block.
type Observer interface {
	Armed(t Trigger)
	Cancelled(t Trigger)
	Fired(t Trigger, err error, elapsed time.Duration)
}

// Config represents scheduler configuration.
type Config struct {
	Workers  int      // Number of lanes; triggers of one session share a lane
	Observer Observer // Optional
}

// Handle identifies an armed trigger.
type Handle struct {
	JobID   string
	FiresAt time.Time
}

// Scheduler keeps pending triggers ordered by fire time and hands due ones
// to per-session lanes.
type Scheduler struct {
	mu      sync.Mutex
	pending entryHeap
	jobs    map[string]*entry
	seq     uint64
	started bool

	wake     chan struct{}
	lanes    []*lane
	action   Action
	observer Observer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(cfg Config) *Scheduler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	lanes := make([]*lane, workers)
	for i := range lanes {
		lanes[i] = newLane()
	}
	return &Scheduler{
		jobs:     make(map[string]*entry),
		wake:     make(chan struct{}, 1),
		lanes:    lanes,
		observer: cfg.Observer,
	}
}

// Start starts the clock loop and the lane workers.
func (s *Scheduler) Start(ctx context.Context, action Action) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.action = action
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for _, l := range s.lanes {
		l.kick()
		s.wg.Add(1)
		go s.work(ctx, l)
	}
	s.wg.Add(1)
	go s.loop(ctx)

	zlog.Info().Msgf("scheduler started: workers=%d", len(s.lanes))
	return nil
}

// Stop stops the scheduler and waits for running actions to return.
// Pending triggers are kept and fire if the scheduler is started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	zlog.Info().Msg("scheduler stopped")
}

// Schedule arms a trigger. A missing JobID is generated.
func (s *Scheduler) Schedule(t Trigger) Handle {
	if t.JobID == "" {
		t.JobID = uuid.New().String()
	}

	s.mu.Lock()
	if old, ok := s.jobs[t.JobID]; ok && old.index >= 0 {
		heap.Remove(&s.pending, old.index)
	}
	s.seq++
	e := &entry{trigger: t, seq: s.seq}
	heap.Push(&s.pending, e)
	s.jobs[t.JobID] = e
	s.mu.Unlock()

	s.poke()
	if s.observer != nil {
		s.observer.Armed(t)
	}
	zlog.Debug().
		Str("session_id", t.SessionID).
		Str("job_id", t.JobID).
		Msgf("trigger armed: %s->%s fires_at=%s", t.From, t.Target, t.FiresAt.Format(time.RFC3339))
	return Handle{JobID: t.JobID, FiresAt: t.FiresAt}
}

// Cancel removes a pending trigger. Cancelling an unknown, already cancelled
// or already fired job is a no-op. It reports whether a pending trigger was removed.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.jobs, jobID)
	if e.index >= 0 {
		heap.Remove(&s.pending, e.index)
	}
	s.mu.Unlock()

	s.poke()
	if s.observer != nil {
		s.observer.Cancelled(e.trigger)
	}
	return true
}

// CancelSession removes every pending trigger of a session and returns how
// many were removed.
func (s *Scheduler) CancelSession(sessionID string) int {
	s.mu.Lock()
	var removed []Trigger
	for id, e := range s.jobs {
		if e.trigger.SessionID != sessionID {
			continue
		}
		delete(s.jobs, id)
		if e.index >= 0 {
			heap.Remove(&s.pending, e.index)
		}
		removed = append(removed, e.trigger)
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.poke()
	}
	if s.observer != nil {
		for _, t := range removed {
			s.observer.Cancelled(t)
		}
	}
	return len(removed)
}

// Pending returns the pending triggers of a session in fire order.
func (s *Scheduler) Pending(sessionID string) []Trigger {
	s.mu.Lock()
	entries := make([]*entry, 0)
	for _, e := range s.jobs {
		if e.trigger.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entryHeap{entries[i], entries[j]}.Less(0, 1)
	})
	out := make([]Trigger, len(entries))
	for i, e := range entries {
		out[i] = e.trigger
	}
	return out
}

// Len returns the number of pending triggers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Backlog returns the number of fired triggers waiting for a worker.
func (s *Scheduler) Backlog() int {
	n := 0
	for _, l := range s.lanes {
		n += l.len()
	}
	return n
}

// poke wakes the clock loop so it recomputes the next deadline.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop is the clock-driven process. It only moves due triggers into lanes.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		due, next := s.takeDue(time.Now())
		for _, t := range due {
			s.laneFor(t.SessionID).push(t)
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if !next.IsZero() {
			timer = time.NewTimer(time.Until(next))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// takeDue pops every trigger due at now and returns the next deadline.
func (s *Scheduler) takeDue(now time.Time) ([]Trigger, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Trigger
	for {
		e := s.pending.peek()
		if e == nil {
			return due, time.Time{}
		}
		if e.trigger.FiresAt.After(now) {
			return due, e.trigger.FiresAt
		}
		heap.Pop(&s.pending)
		delete(s.jobs, e.trigger.JobID)
		due = append(due, e.trigger)
	}
}

func (s *Scheduler) laneFor(sessionID string) *lane {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return s.lanes[h.Sum32()%uint32(len(s.lanes))]
}

// work drains one lane in FIFO order.
func (s *Scheduler) work(ctx context.Context, l *lane) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		}
		for {
			if ctx.Err() != nil {
				return
			}
			t, ok := l.pop()
			if !ok {
				break
			}
			s.execute(ctx, t)
		}
	}
}

// execute runs the action. Errors and panics are logged; the session is
// left in whatever state the action committed.
func (s *Scheduler) execute(ctx context.Context, t Trigger) {
	start := time.Now()
	err := s.safeRun(ctx, t)
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.Fired(t, err, elapsed)
	}
	if err != nil {
		zlog.Error().
			Err(err).
			Str("session_id", t.SessionID).
			Str("job_id", t.JobID).
			Msgf("trigger action failed: %s->%s", t.From, t.Target)
		return
	}
	zlog.Debug().
		Str("session_id", t.SessionID).
		Str("job_id", t.JobID).
		Msgf("trigger fired: %s->%s elapsed=%v", t.From, t.Target, elapsed)
}

func (s *Scheduler) safeRun(ctx context.Context, t Trigger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("trigger action panicked: %v", r)
		}
	}()
	return s.action(ctx, t)
}
