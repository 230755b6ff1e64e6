package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/config"
	"github.com/osa030/hideseek/internal/infra/memstore"
)

var t0 = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type sent struct {
	recipients []string
	msg        notification.Message
}

type notifier struct {
	mu   sync.Mutex
	msgs []sent
}

func (n *notifier) Notify(recipients []string, msg notification.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{recipients: recipients, msg: msg})
}

func (n *notifier) ofKind(kind string) []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sent
	for _, s := range n.msgs {
		if s.msg.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type transitions struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (o *transitions) Transitioned(from, to game.Status, mode game.Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ok++
}

func (o *transitions) TransitionFailed(target game.Status, mode game.Mode, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

type fixture struct {
	mgr      *session.Manager
	store    *memstore.Store
	sched    *scheduler.Scheduler
	clock    *clock
	notifier *notifier
	observer *transitions
	cfg      *config.Config
}

func autoSettings() automation.Settings {
	return automation.Settings{
		AutoStartGame:          true,
		AutoStartHiding:        true,
		AutoStartSearching:     true,
		AutoEndGame:            true,
		AutoAssignRoles:        true,
		HidingDuration:         15 * time.Minute,
		SearchingDuration:      60 * time.Minute,
		MinParticipantsToStart: 2,
	}
}

func newFixture(t *testing.T, mutate ...func(cfg *config.Config, s *automation.Settings)) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Admin.Token = "token"
	cfg.Session.LockTimeout = 2 * time.Second
	cfg.Filters = map[string]config.FilterConfig{
		"phase_filter":     {Enabled: true},
		"freshness_filter": {Enabled: true},
		"zone_filter":      {Enabled: true, Settings: map[string]any{"mode": "reject"}},
	}
	settings := autoSettings()
	for _, fn := range mutate {
		fn(cfg, &settings)
	}

	f := &fixture{
		store:    memstore.New(settings),
		sched:    scheduler.New(scheduler.Config{Workers: 2}),
		clock:    &clock{now: t0},
		notifier: &notifier{},
		observer: &transitions{},
		cfg:      cfg,
	}
	ids := 0
	mgr, err := session.NewManager(cfg, f.store, f.sched, f.notifier,
		session.WithClock(f.clock.Now),
		session.WithObserver(f.observer),
		session.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%03d", ids)
		}),
	)
	require.NoError(t, err)
	f.mgr = mgr
	return f
}

func (f *fixture) create(t *testing.T, maxParticipants, maxDrivers int) *game.Session {
	t.Helper()
	sess, err := f.mgr.CreateSession(context.Background(), game.NewSessionParams{
		District:        "downtown",
		MaxParticipants: maxParticipants,
		MaxDrivers:      maxDrivers,
		ScheduledAt:     t0.Add(time.Hour),
		CreatorID:       "admin",
		Description:     "friday game",
	})
	require.NoError(t, err)
	return sess
}

func (f *fixture) join(t *testing.T, sessionID string, users ...string) {
	t.Helper()
	for i, u := range users {
		f.clock.Set(f.clock.Now().Add(time.Duration(i+1) * time.Second))
		_, err := f.mgr.Join(context.Background(), sessionID, u, game.RoleNone)
		require.NoError(t, err)
	}
}

// trigger returns the single pending trigger of a session.
func (f *fixture) trigger(t *testing.T, sessionID string) scheduler.Trigger {
	t.Helper()
	pending := f.sched.Pending(sessionID)
	require.Len(t, pending, 1)
	return pending[0]
}

func (f *fixture) status(t *testing.T, sessionID string) game.Status {
	t.Helper()
	sess, err := f.mgr.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	return sess.Status
}
