package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/roles"
	"github.com/osa030/hideseek/internal/domain/game"
)

// Join adds a user to a recruiting session. Joining twice returns the
// existing participant. Driver and seeker roles assigned before the roster
// changed are cleared so the game start assigns them over the full roster.
func (m *Manager) Join(ctx context.Context, sessionID, userID string, pref game.Role) (*game.Participant, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, game.Validationf("user is required")
	}
	if pref < game.RoleNone || pref > game.RoleObserver {
		return nil, game.Validationf("unknown role preference %d", pref)
	}

	var (
		p      *game.Participant
		joined bool
		out    []outbound
	)
	err := m.locks.WithLock(ctx, sessionID, func() error {
		sess, err := m.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != game.StatusRecruitment {
			return game.Statef("session %s is %s, joining is closed", sessionID, sess.Status)
		}

		existing, err := m.store.GetParticipant(ctx, sessionID, userID)
		if err == nil {
			p = existing
			return nil
		}
		if !errors.Is(err, game.ErrNotFound) {
			return err
		}

		count, err := m.store.CountParticipants(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "failed to count participants")
		}
		if count >= sess.MaxParticipants {
			return errors.Mark(
				errors.Newf("session %s is full (%d/%d)", sessionID, count, sess.MaxParticipants),
				game.ErrCapacity,
			)
		}

		p = game.NewParticipant(sessionID, userID, pref, m.now().UTC())
		if err := m.store.AddParticipant(ctx, p); err != nil {
			return errors.Wrap(err, "failed to add participant")
		}
		joined = true
		out = []outbound{{
			recipients: []string{sess.CreatorID},
			msg: m.message(notification.KindParticipantJoin, "", sessionID, map[string]string{
				"user_id":      userID,
				"participants": strconv.Itoa(count + 1),
			}),
		}}
		reset, err := m.invalidateRoles(ctx, sess)
		if err != nil {
			return err
		}
		out = append(out, reset...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if joined {
		zlog.Info().Str("session_id", sessionID).Msgf("participant joined: user=%s preference=%s", userID, pref)
		m.dispatch(out)
	}
	return p, nil
}

// Leave removes a user from a recruiting session. Roles assigned before the
// roster changed are cleared, as in Join.
func (m *Manager) Leave(ctx context.Context, sessionID, userID string) error {
	var out []outbound
	err := m.locks.WithLock(ctx, sessionID, func() error {
		sess, err := m.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != game.StatusRecruitment {
			return game.Statef("session %s is %s, leaving is closed", sessionID, sess.Status)
		}
		if err := m.store.RemoveParticipant(ctx, sessionID, userID); err != nil {
			return err
		}
		out = []outbound{{
			recipients: []string{sess.CreatorID},
			msg: m.message(notification.KindParticipantLeft, "", sessionID, map[string]string{
				"user_id": userID,
			}),
		}}
		reset, err := m.invalidateRoles(ctx, sess)
		if err != nil {
			return err
		}
		out = append(out, reset...)
		return nil
	})
	if err != nil {
		return err
	}

	zlog.Info().Str("session_id", sessionID).Msgf("participant left: user=%s", userID)
	m.dispatch(out)
	return nil
}

// ListParticipants returns the participants of a session in join order.
func (m *Manager) ListParticipants(ctx context.Context, sessionID string) ([]*game.Participant, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.store.ListParticipants(ctx, sessionID)
}

// AssignRoles runs role assignment on demand. It fails if any participant
// already holds a role.
func (m *Manager) AssignRoles(ctx context.Context, sessionID, actor string) (roles.Assignment, error) {
	var (
		assignment roles.Assignment
		out        []outbound
	)
	err := m.locks.WithLock(ctx, sessionID, func() error {
		sess, err := m.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status.IsTerminal() {
			return game.Statef("session %s is %s", sessionID, sess.Status)
		}
		participants, err := m.store.ListParticipants(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "failed to list participants")
		}

		assignment, err = roles.Assign(participants, sess.MaxDrivers, sess.ID)
		if err != nil {
			return err
		}

		sess.UpdatedAt = m.now().UTC()
		if err := m.store.ApplyTransition(ctx, sess, assignment); err != nil {
			return errors.Wrap(err, "failed to store roles")
		}
		out = m.roleMessages(sess, assignment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().
		Str("session_id", sessionID).
		Msgf("roles assigned: actor=%s drivers=%d seekers=%d", actor,
			assignment.Count(game.RoleDriver), assignment.Count(game.RoleSeeker))
	m.dispatch(out)
	return assignment, nil
}

// ResetRoles clears every driver and seeker role of a session so roles can
// be assigned again. Observers stay observers.
func (m *Manager) ResetRoles(ctx context.Context, sessionID, actor string) (int, error) {
	var (
		cleared int
		out     []outbound
	)
	err := m.locks.WithLock(ctx, sessionID, func() error {
		sess, err := m.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status.IsTerminal() {
			return game.Statef("session %s is %s", sessionID, sess.Status)
		}
		participants, err := m.store.ListParticipants(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "failed to list participants")
		}

		reset, recipients := clearedRoles(participants)
		if len(reset) == 0 {
			return nil
		}

		sess.UpdatedAt = m.now().UTC()
		if err := m.store.ApplyTransition(ctx, sess, reset); err != nil {
			return errors.Wrap(err, "failed to reset roles")
		}
		cleared = len(reset)
		out = []outbound{{
			recipients: recipients,
			msg:        m.message(notification.KindRolesReset, "roles_reset", sessionID, nil),
		}}
		return nil
	})
	if err != nil {
		return 0, err
	}

	zlog.Info().Str("session_id", sessionID).Msgf("roles reset: actor=%s cleared=%d", actor, cleared)
	m.dispatch(out)
	return cleared, nil
}

// invalidateRoles clears the driver and seeker roles of a recruiting
// session after its roster changed. Must be called under the session lock.
func (m *Manager) invalidateRoles(ctx context.Context, sess *game.Session) ([]outbound, error) {
	participants, err := m.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list participants")
	}
	reset, recipients := clearedRoles(participants)
	if len(reset) == 0 {
		return nil, nil
	}

	sess.UpdatedAt = m.now().UTC()
	if err := m.store.ApplyTransition(ctx, sess, reset); err != nil {
		return nil, errors.Wrap(err, "failed to reset roles")
	}
	zlog.Info().Str("session_id", sess.ID).Msgf("roles cleared after roster change: cleared=%d", len(reset))
	return []outbound{{
		recipients: recipients,
		msg:        m.message(notification.KindRolesReset, "roles_reset", sess.ID, nil),
	}}, nil
}

// clearedRoles returns a RoleNone update for every driver and seeker and the
// users holding them.
func clearedRoles(participants []*game.Participant) (map[string]game.Role, []string) {
	reset := make(map[string]game.Role)
	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.HasRole() {
			reset[p.UserID] = game.RoleNone
			recipients = append(recipients, p.UserID)
		}
	}
	return reset, recipients
}
