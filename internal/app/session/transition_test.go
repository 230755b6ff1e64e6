package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/config"
	"github.com/osa030/hideseek/internal/infra/memstore"
)

var allStatuses = []game.Status{
	game.StatusRecruitment,
	game.StatusHiding,
	game.StatusSearching,
	game.StatusFinished,
	game.StatusCancelled,
}

// sessionIn returns a session driven manually into status.
func (f *fixture) sessionIn(t *testing.T, status game.Status) *game.Session {
	t.Helper()
	ctx := context.Background()
	sess := f.create(t, 6, 2)
	f.join(t, sess.ID, "u1", "u2", "u3")

	path := map[game.Status][]game.Status{
		game.StatusRecruitment: nil,
		game.StatusHiding:      {game.StatusHiding},
		game.StatusSearching:   {game.StatusHiding, game.StatusSearching},
		game.StatusFinished:    {game.StatusHiding, game.StatusSearching, game.StatusFinished},
		game.StatusCancelled:   {game.StatusCancelled},
	}[status]
	for _, target := range path {
		_, err := f.mgr.RequestTransition(ctx, session.TransitionRequest{
			SessionID: sess.ID, Target: target, Actor: "admin", Mode: game.ModeManual,
		})
		require.NoError(t, err)
	}
	require.Equal(t, status, f.status(t, sess.ID))
	return sess
}

func TestManager_TransitionTable(t *testing.T) {
	allowed := map[[2]game.Status]bool{
		{game.StatusRecruitment, game.StatusHiding}:    true,
		{game.StatusHiding, game.StatusSearching}:      true,
		{game.StatusHiding, game.StatusFinished}:       true, // forced, manual only
		{game.StatusSearching, game.StatusFinished}:    true,
		{game.StatusRecruitment, game.StatusCancelled}: true,
		{game.StatusHiding, game.StatusCancelled}:      true,
		{game.StatusSearching, game.StatusCancelled}:   true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			name := from.String() + "->" + to.String()
			t.Run(name, func(t *testing.T) {
				f := newFixture(t)
				sess := f.sessionIn(t, from)

				got, err := f.mgr.RequestTransition(context.Background(), session.TransitionRequest{
					SessionID: sess.ID, Target: to, Actor: "admin", Mode: game.ModeManual,
				})
				if allowed[[2]game.Status{from, to}] {
					require.NoError(t, err)
					assert.Equal(t, to, got.Status)
					return
				}
				require.Error(t, err)
				assert.True(t, errors.Is(err, game.ErrInvalidTransition), "got %v", err)
				assert.Equal(t, from, f.status(t, sess.ID))
			})
		}
	}
}

func TestManager_AutomaticLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.create(t, 6, 2)
	start := f.trigger(t, sess.ID)
	assert.Equal(t, game.StatusRecruitment, start.From)
	assert.Equal(t, game.StatusHiding, start.Target)
	assert.Equal(t, sess.ScheduledAt, start.FiresAt)

	f.join(t, sess.ID, "u1", "u2", "u3", "u4", "u5")
	f.clock.Set(sess.ScheduledAt)
	require.NoError(t, f.mgr.HandleTrigger(ctx, start))
	assert.Equal(t, game.StatusHiding, f.status(t, sess.ID))

	participants, err := f.mgr.ListParticipants(ctx, sess.ID)
	require.NoError(t, err)
	drivers, seekers := 0, 0
	for _, p := range participants {
		switch p.Role {
		case game.RoleDriver:
			drivers++
		case game.RoleSeeker:
			seekers++
		}
	}
	assert.Equal(t, 2, drivers)
	assert.Equal(t, 3, seekers)
	assert.Len(t, f.notifier.ofKind(notification.KindRoleAssigned), 5)

	search := f.trigger(t, sess.ID)
	assert.Equal(t, game.StatusHiding, search.From)
	assert.Equal(t, game.StatusSearching, search.Target)
	assert.Equal(t, sess.ScheduledAt.Add(15*time.Minute), search.FiresAt)

	f.clock.Set(search.FiresAt)
	require.NoError(t, f.mgr.HandleTrigger(ctx, search))
	assert.Equal(t, game.StatusSearching, f.status(t, sess.ID))

	finish := f.trigger(t, sess.ID)
	assert.Equal(t, game.StatusFinished, finish.Target)
	assert.Equal(t, search.FiresAt.Add(60*time.Minute), finish.FiresAt)

	f.clock.Set(finish.FiresAt)
	require.NoError(t, f.mgr.HandleTrigger(ctx, finish))

	got, err := f.mgr.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusFinished, got.Status)
	require.NotNil(t, got.HidingAt)
	require.NotNil(t, got.SearchingAt)
	require.NotNil(t, got.EndedAt)
	assert.Empty(t, f.sched.Pending(sess.ID))
	assert.Len(t, f.notifier.ofKind(notification.KindPhaseChanged), 3)
	assert.Equal(t, 3, f.observer.ok)
}

func TestManager_StaleTriggerIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.sessionIn(t, game.StatusHiding)
	hidingEnd := f.trigger(t, sess.ID)

	_, err := f.mgr.BeginSearch(ctx, sess.ID, "admin", game.ModeManual)
	require.NoError(t, err)
	failedBefore := f.observer.failed

	// The cancelled trigger lost the race and fires anyway.
	require.NoError(t, f.mgr.HandleTrigger(ctx, hidingEnd))
	assert.Equal(t, game.StatusSearching, f.status(t, sess.ID))
	assert.Equal(t, failedBefore, f.observer.failed)

	pending := f.sched.Pending(sess.ID)
	require.Len(t, pending, 1, "manual transition must not leave a second trigger armed")
	assert.Equal(t, game.StatusFinished, pending[0].Target)
}

func TestManager_AutomationGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config, s *automation.Settings)
	}{
		{name: "manual control mode", mutate: func(_ *config.Config, s *automation.Settings) { s.ManualControlMode = true }},
		{name: "auto start off", mutate: func(_ *config.Config, s *automation.Settings) { s.AutoStartGame = false }},
		{name: "auto hiding off", mutate: func(_ *config.Config, s *automation.Settings) { s.AutoStartHiding = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)
			ctx := context.Background()
			sess := f.create(t, 6, 2)
			f.join(t, sess.ID, "u1", "u2")
			f.clock.Set(sess.ScheduledAt)

			require.NoError(t, f.mgr.HandleTrigger(ctx, f.trigger(t, sess.ID)))
			assert.Equal(t, game.StatusRecruitment, f.status(t, sess.ID))

			_, err := f.mgr.Start(ctx, sess.ID, "scheduler", game.ModeAuto)
			assert.True(t, errors.Is(err, game.ErrAutomationDisabled))

			_, err = f.mgr.Start(ctx, sess.ID, "admin", game.ModeManual)
			require.NoError(t, err)
			assert.Equal(t, game.StatusHiding, f.status(t, sess.ID))
		})
	}
}

func TestManager_SettingsOutageDegradesToManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.sessionIn(t, game.StatusHiding)
	f.store.FailSettings(errors.New("settings backend down"))

	trig := f.trigger(t, sess.ID)
	f.clock.Set(trig.FiresAt)
	require.NoError(t, f.mgr.HandleTrigger(ctx, trig))
	assert.Equal(t, game.StatusHiding, f.status(t, sess.ID))

	_, err := f.mgr.BeginSearch(ctx, sess.ID, "admin", game.ModeManual)
	require.NoError(t, err)
}

func TestManager_AutoStartBeforeSchedule(t *testing.T) {
	f := newFixture(t)
	sess := f.create(t, 6, 2)
	f.join(t, sess.ID, "u1", "u2")

	_, err := f.mgr.Start(context.Background(), sess.ID, "scheduler", game.ModeAuto)
	assert.True(t, errors.Is(err, game.ErrState))
	assert.Equal(t, game.StatusRecruitment, f.status(t, sess.ID))
}

func TestManager_InsufficientParticipants(t *testing.T) {
	t.Run("manual start fails", func(t *testing.T) {
		f := newFixture(t, func(_ *config.Config, s *automation.Settings) { s.MinParticipantsToStart = 3 })
		sess := f.create(t, 6, 2)
		f.join(t, sess.ID, "u1", "u2")

		_, err := f.mgr.Start(context.Background(), sess.ID, "admin", game.ModeManual)
		assert.True(t, errors.Is(err, game.ErrInsufficientParticipants))
		assert.Equal(t, game.StatusRecruitment, f.status(t, sess.ID))
	})

	t.Run("observers are not eligible", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		sess := f.create(t, 6, 2)
		f.join(t, sess.ID, "u1")
		_, err := f.mgr.Join(ctx, sess.ID, "watcher", game.RoleObserver)
		require.NoError(t, err)

		_, err = f.mgr.Start(ctx, sess.ID, "admin", game.ModeManual)
		assert.True(t, errors.Is(err, game.ErrInsufficientParticipants))
		assert.Equal(t, game.StatusRecruitment, f.status(t, sess.ID))
	})

	t.Run("automatic start keeps recruitment", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		sess := f.create(t, 6, 2)
		f.join(t, sess.ID, "u1")
		f.clock.Set(sess.ScheduledAt)

		require.NoError(t, f.mgr.HandleTrigger(ctx, f.trigger(t, sess.ID)))
		assert.Equal(t, game.StatusRecruitment, f.status(t, sess.ID))

		failed := f.notifier.ofKind(notification.KindStartFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, []string{"admin"}, failed[0].recipients)
		assert.Equal(t, f.cfg.Messages.StartFailed, failed[0].msg.Text)
		assert.Empty(t, f.notifier.ofKind(notification.KindPhaseChanged))

		// The creator can still start by hand once enough players join.
		f.join(t, sess.ID, "u2")
		_, err := f.mgr.Start(ctx, sess.ID, "admin", game.ModeManual)
		require.NoError(t, err)
		assert.Equal(t, game.StatusHiding, f.status(t, sess.ID))
	})
}

func TestManager_CancelClearsTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.sessionIn(t, game.StatusSearching)
	require.Len(t, f.sched.Pending(sess.ID), 1)

	got, err := f.mgr.Cancel(ctx, sess.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, game.StatusCancelled, got.Status)
	assert.Empty(t, f.sched.Pending(sess.ID))

	_, err = f.mgr.Cancel(ctx, sess.ID, "admin")
	assert.True(t, errors.Is(err, game.ErrInvalidTransition))
}

func TestManager_AutoFinishFromHidingRejected(t *testing.T) {
	f := newFixture(t)
	sess := f.sessionIn(t, game.StatusHiding)

	_, err := f.mgr.Finish(context.Background(), sess.ID, "scheduler", game.ModeAuto)
	assert.True(t, errors.Is(err, game.ErrInvalidTransition))
}

func TestManager_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Start(context.Background(), "missing", "admin", game.ModeManual)
	assert.True(t, errors.Is(err, game.ErrNotFound))

	require.NoError(t, f.mgr.HandleTrigger(context.Background(), scheduler.Trigger{
		SessionID: "missing", From: game.StatusHiding, Target: game.StatusSearching,
	}))
}

func TestManager_TimerRacesManualOverride(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		sess := f.sessionIn(t, game.StatusHiding)
		trig := f.trigger(t, sess.ID)
		f.clock.Set(trig.FiresAt)

		var wg sync.WaitGroup
		var manualErr, triggerErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, manualErr = f.mgr.BeginSearch(ctx, sess.ID, "admin", game.ModeManual)
		}()
		go func() {
			defer wg.Done()
			triggerErr = f.mgr.HandleTrigger(ctx, trig)
		}()
		wg.Wait()

		require.NoError(t, triggerErr)
		if manualErr != nil {
			assert.True(t, errors.Is(manualErr, game.ErrInvalidTransition))
		}
		assert.Equal(t, game.StatusSearching, f.status(t, sess.ID))
		require.Len(t, f.sched.Pending(sess.ID), 1)
		assert.Len(t, f.notifier.ofKind(notification.KindPhaseChanged), 2, "hiding and one searching message")
	}
}

func TestManager_Resume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recruiting := f.create(t, 6, 2)
	hiding := f.sessionIn(t, game.StatusHiding)
	searching := f.sessionIn(t, game.StatusSearching)
	f.sessionIn(t, game.StatusFinished)
	f.sessionIn(t, game.StatusCancelled)

	// A restarted process has an empty scheduler over the same store.
	sched := scheduler.New(scheduler.Config{Workers: 1})
	mgr, err := session.NewManager(f.cfg, f.store, sched, f.notifier, session.WithClock(f.clock.Now))
	require.NoError(t, err)

	n, err := mgr.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, sched.Len())

	got := sched.Pending(recruiting.ID)
	require.Len(t, got, 1)
	assert.Equal(t, recruiting.ScheduledAt, got[0].FiresAt)

	h, err := mgr.GetSession(ctx, hiding.ID)
	require.NoError(t, err)
	got = sched.Pending(hiding.ID)
	require.Len(t, got, 1)
	assert.Equal(t, game.StatusSearching, got[0].Target)
	assert.Equal(t, h.HidingAt.Add(15*time.Minute), got[0].FiresAt)

	got = sched.Pending(searching.ID)
	require.Len(t, got, 1)
	assert.Equal(t, game.StatusFinished, got[0].Target)
}

func TestManager_RunsOnRealScheduler(t *testing.T) {
	cfg := config.Default()
	cfg.Admin.Token = "token"
	settings := autoSettings()
	settings.HidingDuration = 80 * time.Millisecond
	settings.SearchingDuration = 80 * time.Millisecond

	store := memstore.New(settings)
	sched := scheduler.New(scheduler.Config{Workers: 2})
	mgr, err := session.NewManager(cfg, store, sched, &notifier{})
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background(), mgr.HandleTrigger))
	defer sched.Stop()

	ctx := context.Background()
	sess, err := mgr.CreateSession(ctx, game.NewSessionParams{
		District:        "downtown",
		MaxParticipants: 4,
		MaxDrivers:      1,
		ScheduledAt:     time.Now().Add(100 * time.Millisecond),
		CreatorID:       "admin",
	})
	require.NoError(t, err)
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := mgr.Join(ctx, sess.ID, u, game.RoleNone)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		got, err := mgr.GetSession(ctx, sess.ID)
		return err == nil && got.Status == game.StatusFinished
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, sched.Len())
}

func TestManager_CancelledBeforeFireNeverTransitions(t *testing.T) {
	cfg := config.Default()
	cfg.Admin.Token = "token"
	store := memstore.New(autoSettings())
	sched := scheduler.New(scheduler.Config{Workers: 2})
	mgr, err := session.NewManager(cfg, store, sched, &notifier{})
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background(), mgr.HandleTrigger))
	defer sched.Stop()

	ctx := context.Background()
	sess, err := mgr.CreateSession(ctx, game.NewSessionParams{
		District:        "downtown",
		MaxParticipants: 4,
		MaxDrivers:      1,
		ScheduledAt:     time.Now().Add(300 * time.Millisecond),
		CreatorID:       "admin",
	})
	require.NoError(t, err)
	for _, u := range []string{"u1", "u2"} {
		_, err := mgr.Join(ctx, sess.ID, u, game.RoleNone)
		require.NoError(t, err)
	}

	pending := sched.Pending(sess.ID)
	require.Len(t, pending, 1)
	time.Sleep(60 * time.Millisecond)
	assert.True(t, sched.Cancel(pending[0].JobID))

	time.Sleep(500 * time.Millisecond)
	got, err := mgr.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusRecruitment, got.Status)
}
