package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/domain/game"
)

type recorder struct {
	mu    sync.Mutex
	fired []Trigger
}

func (r *recorder) action(ctx context.Context, t Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, t)
	return nil
}

func (r *recorder) jobIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.fired))
	for i, t := range r.fired {
		ids[i] = t.JobID
	}
	return ids
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func startScheduler(t *testing.T, workers int, action Action) *Scheduler {
	t.Helper()
	s := New(Config{Workers: workers})
	require.NoError(t, s.Start(context.Background(), action))
	t.Cleanup(s.Stop)
	return s
}

func hidingTrigger(sessionID string, at time.Time) Trigger {
	return Trigger{
		SessionID: sessionID,
		From:      game.StatusHiding,
		Target:    game.StatusSearching,
		FiresAt:   at,
	}
}

func TestScheduler_FiresWhenDue(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, 2, rec.action)

	h := s.Schedule(hidingTrigger("s1", time.Now().Add(50*time.Millisecond)))
	assert.NotEmpty(t, h.JobID)
	assert.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, game.StatusHiding, rec.fired[0].From)

	// A fired job cannot be cancelled.
	assert.False(t, s.Cancel(h.JobID))
}

func TestScheduler_CancelledTriggerNeverFires(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, 2, rec.action)

	h := s.Schedule(hidingTrigger("s1", time.Now().Add(250*time.Millisecond)))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Cancel(h.JobID))
	assert.False(t, s.Cancel(h.JobID), "second cancel is a no-op")
	assert.False(t, s.Cancel("unknown"))

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestScheduler_SameSessionFiresInArmOrder(t *testing.T) {
	rec := &recorder{}
	s := New(Config{Workers: 3})

	at := time.Now().Add(20 * time.Millisecond)
	var want []string
	for i := 0; i < 10; i++ {
		tr := hidingTrigger("s1", at)
		tr.JobID = fmt.Sprintf("job-%02d", i)
		s.Schedule(tr)
		want = append(want, tr.JobID)
	}

	require.NoError(t, s.Start(context.Background(), rec.action))
	defer s.Stop()

	require.Eventually(t, func() bool { return rec.count() == 10 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.jobIDs())
}

func TestScheduler_FireTimeOrdering(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, 1, rec.action)

	now := time.Now()
	late := hidingTrigger("s1", now.Add(120*time.Millisecond))
	late.JobID = "late"
	early := hidingTrigger("s2", now.Add(40*time.Millisecond))
	early.JobID = "early"
	s.Schedule(late)
	s.Schedule(early)

	pending := s.Pending("s1")
	require.Len(t, pending, 1)
	assert.Equal(t, "late", pending[0].JobID)

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, rec.jobIDs())
}

func TestScheduler_CancelSession(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, 2, rec.action)

	at := time.Now().Add(150 * time.Millisecond)
	s.Schedule(hidingTrigger("s1", at))
	s.Schedule(hidingTrigger("s1", at.Add(10*time.Millisecond)))
	s.Schedule(hidingTrigger("s2", at))

	assert.Equal(t, 2, s.CancelSession("s1"))
	assert.Equal(t, 0, s.CancelSession("s1"))
	assert.Empty(t, s.Pending("s1"))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "s2", rec.fired[0].SessionID)
}

func TestScheduler_ActionPanicDoesNotStopLoop(t *testing.T) {
	rec := &recorder{}
	action := func(ctx context.Context, tr Trigger) error {
		if tr.JobID == "boom" {
			panic("kaboom")
		}
		return rec.action(ctx, tr)
	}
	s := startScheduler(t, 1, action)

	now := time.Now()
	boom := hidingTrigger("s1", now.Add(10*time.Millisecond))
	boom.JobID = "boom"
	after := hidingTrigger("s1", now.Add(30*time.Millisecond))
	after.JobID = "after"
	s.Schedule(boom)
	s.Schedule(after)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"after"}, rec.jobIDs())
}

func TestScheduler_SlowSessionDoesNotBlockOthers(t *testing.T) {
	s := New(Config{Workers: 4})

	slow := "session-slow"
	var fast string
	for i := 0; ; i++ {
		fast = fmt.Sprintf("session-%d", i)
		if s.laneFor(fast) != s.laneFor(slow) {
			break
		}
	}

	release := make(chan struct{})
	fastDone := make(chan struct{})
	action := func(ctx context.Context, tr Trigger) error {
		if tr.SessionID == slow {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		}
		close(fastDone)
		return nil
	}
	require.NoError(t, s.Start(context.Background(), action))
	defer s.Stop()
	defer close(release)

	now := time.Now()
	s.Schedule(hidingTrigger(slow, now))
	s.Schedule(hidingTrigger(fast, now.Add(20*time.Millisecond)))

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger of another session was blocked by a slow action")
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, 1, rec.action)
	assert.ErrorIs(t, s.Start(context.Background(), rec.action), ErrAlreadyStarted)
}

func TestScheduler_RescheduleSameJobID(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, 1, rec.action)

	tr := hidingTrigger("s1", time.Now().Add(time.Hour))
	tr.JobID = "job"
	s.Schedule(tr)
	tr.FiresAt = time.Now().Add(20 * time.Millisecond)
	s.Schedule(tr)
	assert.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_RestartDrainsStrandedLanes(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		stuck   []string
	}{
		{name: "single lane", workers: 1, stuck: []string{"s1", "s1"}},
		{name: "several lanes", workers: 3, stuck: []string{"s1", "s2", "s3", "s4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			s := New(Config{Workers: tt.workers})

			// Fired triggers left in lanes with their signal already consumed,
			// as when Stop interrupts a worker that has drained notify.
			for i, sessionID := range tt.stuck {
				tr := hidingTrigger(sessionID, time.Now())
				tr.JobID = fmt.Sprintf("job-%d", i)
				s.laneFor(sessionID).push(tr)
			}
			for _, l := range s.lanes {
				select {
				case <-l.notify:
				default:
				}
			}
			assert.Equal(t, len(tt.stuck), s.Backlog())

			require.NoError(t, s.Start(context.Background(), rec.action))
			defer s.Stop()

			require.Eventually(t, func() bool { return rec.count() == len(tt.stuck) }, 2*time.Second, 5*time.Millisecond)
			assert.Equal(t, 0, s.Backlog())
		})
	}
}
