package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/domain/game"
)

func TestManager_JoinCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.create(t, 6, 2)

	f.join(t, sess.ID, "u1", "u2", "u3", "u4", "u5")
	_, err := f.mgr.Join(ctx, sess.ID, "u6", game.RoleNone)
	require.NoError(t, err, "the sixth join fills the session")

	_, err = f.mgr.Join(ctx, sess.ID, "u7", game.RoleNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, game.ErrCapacity))

	// Joining again is not a new seat.
	p, err := f.mgr.Join(ctx, sess.ID, "u3", game.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "u3", p.UserID)
	assert.Equal(t, game.RoleNone, p.PreferredRole)

	assert.Len(t, f.notifier.ofKind(notification.KindParticipantJoin), 6)
}

func TestManager_ConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const capacity = 5
	sess := f.create(t, capacity, 2)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.mgr.Join(ctx, sess.ID, fmt.Sprintf("user-%02d", i), game.RoleNone)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, game.ErrCapacity):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, accepted)
	assert.Equal(t, 40-capacity, full)

	participants, err := f.mgr.ListParticipants(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, participants, capacity)
}

func TestManager_JoinAndLeaveOnlyDuringRecruitment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.sessionIn(t, game.StatusHiding)

	_, err := f.mgr.Join(ctx, sess.ID, "late", game.RoleNone)
	assert.True(t, errors.Is(err, game.ErrState))

	err = f.mgr.Leave(ctx, sess.ID, "u1")
	assert.True(t, errors.Is(err, game.ErrState))
}

func TestManager_JoinValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.create(t, 6, 2)

	_, err := f.mgr.Join(ctx, sess.ID, " ", game.RoleNone)
	assert.True(t, errors.Is(err, game.ErrValidation))

	_, err = f.mgr.Join(ctx, sess.ID, "u1", game.Role(42))
	assert.True(t, errors.Is(err, game.ErrValidation))

	_, err = f.mgr.Join(ctx, "missing", "u1", game.RoleNone)
	assert.True(t, errors.Is(err, game.ErrNotFound))
}

func TestManager_Leave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.create(t, 2, 1)
	f.join(t, sess.ID, "u1", "u2")

	require.NoError(t, f.mgr.Leave(ctx, sess.ID, "u1"))
	assert.True(t, errors.Is(f.mgr.Leave(ctx, sess.ID, "u1"), game.ErrNotFound))

	// The freed seat can be taken.
	_, err := f.mgr.Join(ctx, sess.ID, "u3", game.RoleNone)
	require.NoError(t, err)
}

func TestManager_AssignRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.create(t, 6, 2)
	f.join(t, sess.ID, "u1", "u2", "u3", "u4", "u5")

	assignment, err := f.mgr.AssignRoles(ctx, sess.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, assignment.Count(game.RoleDriver))
	assert.Equal(t, 3, assignment.Count(game.RoleSeeker))

	_, err = f.mgr.AssignRoles(ctx, sess.ID, "admin")
	assert.True(t, errors.Is(err, game.ErrAlreadyAssigned))

	// Starting keeps the roles assigned beforehand.
	_, err = f.mgr.Start(ctx, sess.ID, "admin", game.ModeManual)
	require.NoError(t, err)
	participants, err := f.mgr.ListParticipants(ctx, sess.ID)
	require.NoError(t, err)
	for _, p := range participants {
		assert.Equal(t, assignment[p.UserID], p.Role, p.UserID)
	}
	assert.Len(t, f.notifier.ofKind(notification.KindRoleAssigned), 5)

	cleared, err := f.mgr.ResetRoles(ctx, sess.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 5, cleared)

	again, err := f.mgr.AssignRoles(ctx, sess.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, assignment, again, "assignment is deterministic for a session")
}

func TestManager_ResetRolesKeepsObservers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.create(t, 6, 2)
	f.join(t, sess.ID, "u1", "u2")
	_, err := f.mgr.Join(ctx, sess.ID, "watcher", game.RoleObserver)
	require.NoError(t, err)

	_, err = f.mgr.AssignRoles(ctx, sess.ID, "admin")
	require.NoError(t, err)

	cleared, err := f.mgr.ResetRoles(ctx, sess.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	participants, err := f.mgr.ListParticipants(ctx, sess.ID)
	require.NoError(t, err)
	for _, p := range participants {
		if p.UserID == "watcher" {
			assert.Equal(t, game.RoleObserver, p.Role)
		} else {
			assert.Equal(t, game.RoleNone, p.Role)
		}
	}
}

func TestManager_AutoStartWithoutRoleAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mgr.UpdateSettings(ctx, map[string]any{"autoAssignRoles": false})
	require.NoError(t, err)

	sess := f.create(t, 6, 2)
	f.join(t, sess.ID, "u1", "u2", "u3")
	f.clock.Set(sess.ScheduledAt)
	require.NoError(t, f.mgr.HandleTrigger(ctx, f.trigger(t, sess.ID)))
	assert.Equal(t, game.StatusHiding, f.status(t, sess.ID))

	participants, err := f.mgr.ListParticipants(ctx, sess.ID)
	require.NoError(t, err)
	for _, p := range participants {
		assert.Equal(t, game.RoleNone, p.Role)
	}

	// Roles can still be assigned by hand once the game runs.
	_, err = f.mgr.AssignRoles(ctx, sess.ID, "admin")
	require.NoError(t, err)
}

func TestManager_RosterChangeClearsAssignedRoles(t *testing.T) {
	tests := []struct {
		name    string
		users   []string
		change  func(t *testing.T, f *fixture, sessionID string)
		players int
	}{
		{
			name:  "join after assignment",
			users: []string{"u1", "u2"},
			change: func(t *testing.T, f *fixture, sessionID string) {
				f.join(t, sessionID, "u3")
			},
			players: 3,
		},
		{
			name:  "leave after assignment",
			users: []string{"u1", "u2", "u3"},
			change: func(t *testing.T, f *fixture, sessionID string) {
				require.NoError(t, f.mgr.Leave(context.Background(), sessionID, "u1"))
			},
			players: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			sess := f.create(t, 6, 1)
			f.join(t, sess.ID, tt.users...)
			_, err := f.mgr.Join(ctx, sess.ID, "watcher", game.RoleObserver)
			require.NoError(t, err)

			_, err = f.mgr.AssignRoles(ctx, sess.ID, "admin")
			require.NoError(t, err)
			tt.change(t, f, sess.ID)

			participants, err := f.mgr.ListParticipants(ctx, sess.ID)
			require.NoError(t, err)
			for _, p := range participants {
				assert.False(t, p.HasRole(), p.UserID)
			}
			assert.NotEmpty(t, f.notifier.ofKind(notification.KindRolesReset))

			_, err = f.mgr.Start(ctx, sess.ID, "admin", game.ModeManual)
			require.NoError(t, err)

			participants, err = f.mgr.ListParticipants(ctx, sess.ID)
			require.NoError(t, err)
			drivers, seekers := 0, 0
			for _, p := range participants {
				switch p.Role {
				case game.RoleDriver:
					drivers++
				case game.RoleSeeker:
					seekers++
				case game.RoleObserver:
					assert.Equal(t, "watcher", p.UserID)
				default:
					t.Errorf("%s has no role after start", p.UserID)
				}
			}
			assert.Equal(t, 1, drivers)
			assert.Equal(t, tt.players-1, seekers)
		})
	}
}
