// Package session provides the game session manager: the phase engine and
// every operation exposed to the chat front-end and admin tooling.
package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/filter"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/app/session/registry"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/config"
)

// ActorScheduler is the actor of unattended requests.
const ActorScheduler = "scheduler"

// Clock returns the current time.
type Clock func() time.Time

// Notifier delivers messages best effort. Notify must not block.
type Notifier interface {
	Notify(recipients []string, msg notification.Message)
}

// Scheduler arms and cancels phase triggers.
type Scheduler interface {
	Schedule(t scheduler.Trigger) scheduler.Handle
	CancelSession(sessionID string) int
	Pending(sessionID string) []scheduler.Trigger
	Len() int
}

// Observer receives transition outcomes. Implementations must not block.
type Observer interface {
	Transitioned(from, to game.Status, mode game.Mode)
	TransitionFailed(target game.Status, mode game.Mode, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.now = c }
}

// WithObserver sets the transition observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithIDGenerator replaces the UUID generator for sessions and photos.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// Manager manages game sessions.
type Manager struct {
	// Configuration
	config *config.Config

	// Components
	store    Store
	settings *automation.Provider
	locks    *registry.LockRegistry
	sched    Scheduler
	notifier Notifier
	filters  *filter.Chain
	observer Observer

	now   Clock
	newID func() string
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, store Store, sched Scheduler, notifier Notifier, opts ...Option) (*Manager, error) {
	chain, err := filter.Build(cfg.EnabledFilters())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build submission filters")
	}

	m := &Manager{
		config:   cfg,
		store:    store,
		settings: automation.NewProvider(store),
		locks:    registry.NewLockRegistry(cfg.Session.LockTimeout),
		sched:    sched,
		notifier: notifier,
		filters:  chain,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SeedZones stores the given zones.
func (m *Manager) SeedZones(ctx context.Context, zones []game.Zone) error {
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return errors.Wrapf(err, "zone %s", z.ID)
		}
		if err := m.store.UpsertZone(ctx, z); err != nil {
			return errors.Wrapf(err, "failed to store zone %s", z.ID)
		}
		zlog.Info().Msgf("zone seeded: id=%s district=%s default=%v active=%v", z.ID, z.District, z.IsDefault, z.Active)
	}
	return nil
}

// CreateSession creates a session in recruitment and arms its start trigger.
func (m *Manager) CreateSession(ctx context.Context, p game.NewSessionParams) (*game.Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sess := game.NewSession(m.newID(), p, m.now().UTC())
	if sess.Zone != nil {
		z := *sess.Zone
		if z.ID == "" {
			z.ID = "session-" + sess.ID
		}
		z.District = sess.District
		sess.Zone = &z
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	settings := m.settings.Snapshot(ctx)
	if t, ok := nextTrigger(sess, settings); ok {
		m.sched.Schedule(t)
	}

	zlog.Info().
		Str("session_id", sess.ID).
		Msgf("session created: district=%s scheduled_at=%s max_participants=%d max_drivers=%d",
			sess.District, sess.ScheduledAt.Format(time.RFC3339), sess.MaxParticipants, sess.MaxDrivers)
	return sess, nil
}

// Resume re-arms the triggers of every unfinished session from persisted
// timestamps. Overdue triggers fire immediately. It returns the number of
// sessions resumed.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	sessions, err := m.store.ListSessions(ctx, SessionFilter{
		Statuses: []game.Status{game.StatusRecruitment, game.StatusHiding, game.StatusSearching},
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list unfinished sessions")
	}

	settings := m.settings.Snapshot(ctx)
	n := 0
	for _, sess := range sessions {
		t, ok := nextTrigger(sess, settings)
		if !ok {
			continue
		}
		m.sched.CancelSession(sess.ID)
		m.sched.Schedule(t)
		n++
		zlog.Info().
			Str("session_id", sess.ID).
			Msgf("session resumed: status=%s next=%s fires_at=%s", sess.Status, t.Target, t.FiresAt.Format(time.RFC3339))
	}
	return n, nil
}

// nextTrigger returns the trigger that ends the current phase of sess.
func nextTrigger(sess *game.Session, settings automation.Settings) (scheduler.Trigger, bool) {
	t := scheduler.Trigger{SessionID: sess.ID, From: sess.Status}
	duration, _ := automation.NewPolicy(settings).PhaseDuration(sess.Status)
	switch sess.Status {
	case game.StatusRecruitment:
		t.Target = game.StatusHiding
		t.FiresAt = sess.ScheduledAt
	case game.StatusHiding:
		if sess.HidingAt == nil {
			return t, false
		}
		t.Target = game.StatusSearching
		t.FiresAt = sess.HidingAt.Add(duration)
	case game.StatusSearching:
		if sess.SearchingAt == nil {
			return t, false
		}
		t.Target = game.StatusFinished
		t.FiresAt = sess.SearchingAt.Add(duration)
	default:
		return t, false
	}
	return t, true
}

// outbound is a notification collected under the session lock and sent
// after it is released.
type outbound struct {
	recipients []string
	msg        notification.Message
}

func (m *Manager) message(kind, code, sessionID string, data map[string]string) notification.Message {
	return notification.Message{
		Kind:      kind,
		SessionID: sessionID,
		Text:      m.config.GetMessage(code),
		Data:      data,
		CreatedAt: m.now(),
	}
}

func (m *Manager) dispatch(out []outbound) {
	if m.notifier == nil {
		return
	}
	for _, o := range out {
		m.notifier.Notify(o.recipients, o.msg)
	}
}
