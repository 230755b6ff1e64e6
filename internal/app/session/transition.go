package session

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/roles"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/domain/game"
)

// errStaleTrigger marks a trigger whose expected source phase is gone.
var errStaleTrigger = errors.New("stale trigger")

// TransitionRequest asks for a phase change.
type TransitionRequest struct {
	SessionID string
	Target    game.Status
	Actor     string
	Mode      game.Mode
}

// RequestTransition runs a transition request.
func (m *Manager) RequestTransition(ctx context.Context, req TransitionRequest) (*game.Session, error) {
	return m.transition(ctx, req, nil)
}

// Start moves a session from recruitment to hiding.
func (m *Manager) Start(ctx context.Context, sessionID, actor string, mode game.Mode) (*game.Session, error) {
	return m.RequestTransition(ctx, TransitionRequest{SessionID: sessionID, Target: game.StatusHiding, Actor: actor, Mode: mode})
}

// BeginSearch moves a session from hiding to searching.
func (m *Manager) BeginSearch(ctx context.Context, sessionID, actor string, mode game.Mode) (*game.Session, error) {
	return m.RequestTransition(ctx, TransitionRequest{SessionID: sessionID, Target: game.StatusSearching, Actor: actor, Mode: mode})
}

// Finish ends a running session. Finishing from hiding requires a manual request.
func (m *Manager) Finish(ctx context.Context, sessionID, actor string, mode game.Mode) (*game.Session, error) {
	return m.RequestTransition(ctx, TransitionRequest{SessionID: sessionID, Target: game.StatusFinished, Actor: actor, Mode: mode})
}

// Cancel cancels a session that has not ended.
func (m *Manager) Cancel(ctx context.Context, sessionID, actor string) (*game.Session, error) {
	return m.RequestTransition(ctx, TransitionRequest{SessionID: sessionID, Target: game.StatusCancelled, Actor: actor, Mode: game.ModeManual})
}

// HandleTrigger is the scheduler action. Stale triggers and automation
// refusals are dropped without error. An automatic start that finds too few
// participants leaves the session in recruitment and tells its creator.
func (m *Manager) HandleTrigger(ctx context.Context, t scheduler.Trigger) error {
	from := t.From
	req := TransitionRequest{SessionID: t.SessionID, Target: t.Target, Actor: ActorScheduler, Mode: game.ModeAuto}
	_, err := m.transition(ctx, req, &from)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errStaleTrigger):
		zlog.Debug().Str("session_id", t.SessionID).Str("job_id", t.JobID).Msgf("stale trigger dropped: %v", err)
		return nil
	case errors.Is(err, game.ErrAutomationDisabled):
		zlog.Info().Str("session_id", t.SessionID).Msgf("trigger not applied: %v", err)
		return nil
	case errors.Is(err, game.ErrNotFound):
		zlog.Warn().Str("session_id", t.SessionID).Msgf("trigger for unknown session: %v", err)
		return nil
	case errors.Is(err, game.ErrInsufficientParticipants) && t.Target == game.StatusHiding:
		zlog.Warn().Str("session_id", t.SessionID).Msgf("automatic start failed, session stays in recruitment: %v", err)
		m.notifyStartFailed(ctx, t.SessionID, err)
		return nil
	default:
		return err
	}
}

// transition validates and applies a phase change under the session lock.
// When expectFrom is set the request came from a trigger armed in that phase.
func (m *Manager) transition(ctx context.Context, req TransitionRequest, expectFrom *game.Status) (*game.Session, error) {
	var (
		result *game.Session
		from   game.Status
		out    []outbound
	)

	err := m.locks.WithLock(ctx, req.SessionID, func() error {
		sess, err := m.store.GetSession(ctx, req.SessionID)
		if err != nil {
			return err
		}
		from = sess.Status

		if expectFrom != nil && sess.Status != *expectFrom {
			return errors.Mark(
				errors.Newf("trigger expected %s, session is %s", *expectFrom, sess.Status),
				errStaleTrigger,
			)
		}
		if !sess.Status.CanTransitionTo(req.Target) {
			return game.InvalidTransition(sess.Status, req.Target)
		}
		if req.Target == game.StatusFinished && sess.Status == game.StatusHiding && req.Mode == game.ModeAuto {
			return game.InvalidTransition(sess.Status, req.Target)
		}

		settings := m.settings.Snapshot(ctx)
		policy := automation.NewPolicy(settings)
		if err := policy.Allow(req.Target, req.Mode); err != nil {
			return err
		}

		participants, err := m.store.ListParticipants(ctx, sess.ID)
		if err != nil {
			return errors.Wrap(err, "failed to list participants")
		}

		now := m.now().UTC()
		var assignment roles.Assignment
		if req.Target == game.StatusHiding {
			assignment, err = m.prepareStart(sess, participants, policy, req.Mode, now)
			if err != nil {
				return err
			}
		}

		sess.Advance(req.Target, now)
		if err := m.store.ApplyTransition(ctx, sess, assignment); err != nil {
			return errors.Wrap(err, "failed to store transition")
		}

		m.sched.CancelSession(sess.ID)
		if t, ok := nextTrigger(sess, settings); ok {
			m.sched.Schedule(t)
		}

		result = sess
		out = m.transitionMessages(sess, participants, assignment)
		return nil
	})

	if err != nil {
		if m.observer != nil && !errors.Is(err, errStaleTrigger) {
			m.observer.TransitionFailed(req.Target, req.Mode, err)
		}
		return nil, err
	}

	if m.observer != nil {
		m.observer.Transitioned(from, result.Status, req.Mode)
	}
	zlog.Info().
		Str("session_id", result.ID).
		Msgf("session transitioned: %s -> %s mode=%s actor=%s", from, result.Status, req.Mode, req.Actor)

	m.dispatch(out)
	return result, nil
}

// prepareStart checks the start guards and computes the role assignment.
func (m *Manager) prepareStart(sess *game.Session, participants []*game.Participant, policy automation.Policy, mode game.Mode, now time.Time) (roles.Assignment, error) {
	if mode == game.ModeAuto && now.Before(sess.ScheduledAt) {
		return nil, game.Statef("session %s is scheduled for %s", sess.ID, sess.ScheduledAt.Format(time.RFC3339))
	}

	required := policy.Settings().MinParticipantsToStart
	if len(participants) < required {
		return nil, errors.Mark(
			errors.Newf("session %s has %d participants, %d required", sess.ID, len(participants), required),
			game.ErrInsufficientParticipants,
		)
	}

	if !policy.AssignRolesOnStart(mode) || anyAssigned(participants) {
		return nil, nil
	}
	return roles.Assign(participants, sess.MaxDrivers, sess.ID)
}

// notifyStartFailed tells the creator of a session that its automatic start
// did not happen.
func (m *Manager) notifyStartFailed(ctx context.Context, sessionID string, cause error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		zlog.Warn().Str("session_id", sessionID).Msgf("failed to load session for start failure notice: %v", err)
		return
	}
	m.dispatch([]outbound{{
		recipients: []string{sess.CreatorID},
		msg: m.message(notification.KindStartFailed, "start_failed", sessionID, map[string]string{
			"reason": cause.Error(),
		}),
	}})
}

func anyAssigned(participants []*game.Participant) bool {
	for _, p := range participants {
		if p.HasRole() {
			return true
		}
	}
	return false
}

// transitionMessages builds the phase and role notifications of a transition.
func (m *Manager) transitionMessages(sess *game.Session, participants []*game.Participant, assignment roles.Assignment) []outbound {
	var code string
	switch sess.Status {
	case game.StatusHiding:
		code = "hiding_started"
	case game.StatusSearching:
		code = "searching_started"
	case game.StatusFinished:
		code = "game_finished"
	case game.StatusCancelled:
		code = "game_cancelled"
	}

	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		recipients = append(recipients, p.UserID)
	}

	out := []outbound{{
		recipients: recipients,
		msg: m.message(notification.KindPhaseChanged, code, sess.ID, map[string]string{
			"status": sess.Status.String(),
		}),
	}}
	return append(out, m.roleMessages(sess, assignment)...)
}

// roleMessages tells every assigned participant their role.
func (m *Manager) roleMessages(sess *game.Session, assignment roles.Assignment) []outbound {
	out := make([]outbound, 0, len(assignment))
	drivers := strconv.Itoa(assignment.Count(game.RoleDriver))
	for userID, role := range assignment {
		code := "role_seeker"
		if role == game.RoleDriver {
			code = "role_driver"
		}
		out = append(out, outbound{
			recipients: []string{userID},
			msg: m.message(notification.KindRoleAssigned, code, sess.ID, map[string]string{
				"role":    role.String(),
				"drivers": drivers,
			}),
		})
	}
	return out
}
