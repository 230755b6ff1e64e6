package session

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/domain/game"
)

// Stats is a snapshot of the games in progress.
type Stats struct {
	Recruiting      int // Sessions in recruitment
	Hiding          int // Sessions in hiding
	Searching       int // Sessions in searching
	Participants    int // Participants of running sessions
	Drivers         int
	Seekers         int
	Observers       int
	PendingTriggers int
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*game.Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// ListUpcoming returns the recruiting sessions ordered by scheduled time.
// An empty district lists every district.
func (m *Manager) ListUpcoming(ctx context.Context, district string) ([]*game.Session, error) {
	sessions, err := m.store.ListSessions(ctx, SessionFilter{
		Statuses: []game.Status{game.StatusRecruitment},
		District: district,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list upcoming sessions")
	}
	return sessions, nil
}

// GetActiveStats counts recruiting and running sessions and the roles in
// running sessions.
func (m *Manager) GetActiveStats(ctx context.Context) (*Stats, error) {
	sessions, err := m.store.ListSessions(ctx, SessionFilter{
		Statuses: []game.Status{game.StatusRecruitment, game.StatusHiding, game.StatusSearching},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active sessions")
	}

	stats := &Stats{PendingTriggers: m.sched.Len()}
	for _, sess := range sessions {
		switch sess.Status {
		case game.StatusRecruitment:
			stats.Recruiting++
			continue
		case game.StatusHiding:
			stats.Hiding++
		case game.StatusSearching:
			stats.Searching++
		}

		participants, err := m.store.ListParticipants(ctx, sess.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list participants of %s", sess.ID)
		}
		stats.Participants += len(participants)
		for _, p := range participants {
			switch p.Role {
			case game.RoleDriver:
				stats.Drivers++
			case game.RoleSeeker:
				stats.Seekers++
			case game.RoleObserver:
				stats.Observers++
			}
		}
	}
	return stats, nil
}

// GetSettings returns the current automation settings.
func (m *Manager) GetSettings(ctx context.Context) automation.Settings {
	return m.settings.Snapshot(ctx)
}

// UpdateSettings applies a partial settings update. Unknown keys fail with a
// validation error. Triggers already armed keep their fire time.
func (m *Manager) UpdateSettings(ctx context.Context, raw map[string]any) (automation.Settings, error) {
	return m.settings.Update(ctx, raw)
}

// PendingTriggers returns the number of armed triggers of a session.
func (m *Manager) PendingTriggers(sessionID string) int {
	return len(m.sched.Pending(sessionID))
}
