// Package registry holds the per-session critical sections.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/hideseek/internal/domain/game"
)

// DefaultTimeout is used when no acquire timeout is configured.
const DefaultTimeout = 5 * time.Second

// LockRegistry hands out one exclusive lock per session ID.
// Entries are dropped once no caller holds or waits for them.
type LockRegistry struct {
	mu      sync.Mutex
	locks   map[string]*sessionLock
	timeout time.Duration
}

type sessionLock struct {
	token chan struct{}
	refs  int
}

// NewLockRegistry creates a new lock registry.
func NewLockRegistry(timeout time.Duration) *LockRegistry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LockRegistry{
		locks:   make(map[string]*sessionLock),
		timeout: timeout,
	}
}

// Acquire takes the lock of a session. It gives up after the configured
// timeout with an error marked game.ErrConcurrency. The returned release
// function must be called exactly once.
func (r *LockRegistry) Acquire(ctx context.Context, sessionID string) (func(), error) {
	l := r.ref(sessionID)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case l.token <- struct{}{}:
	case <-timer.C:
		r.unref(sessionID)
		return nil, errors.Mark(
			errors.Newf("session %s is busy: lock not acquired within %v", sessionID, r.timeout),
			game.ErrConcurrency,
		)
	case <-ctx.Done():
		r.unref(sessionID)
		return nil, errors.Mark(errors.Wrapf(ctx.Err(), "session %s lock wait aborted", sessionID), game.ErrConcurrency)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.token
			r.unref(sessionID)
		})
	}, nil
}

// WithLock runs fn while holding the lock of a session.
func (r *LockRegistry) WithLock(ctx context.Context, sessionID string, fn func() error) error {
	release, err := r.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Len returns the number of sessions with a held or awaited lock.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func (r *LockRegistry) ref(sessionID string) *sessionLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[sessionID]
	if !ok {
		l = &sessionLock{token: make(chan struct{}, 1)}
		r.locks[sessionID] = l
	}
	l.refs++
	return l
}

func (r *LockRegistry) unref(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[sessionID]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(r.locks, sessionID)
	}
}
