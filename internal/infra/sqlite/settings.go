package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/hideseek/internal/app/automation"
)

const settingsColumns = `auto_start_game, auto_start_hiding, auto_start_searching, auto_end_game,
	auto_assign_roles, manual_control_mode, hiding_duration_ms, searching_duration_ms,
	min_participants_to_start`

func settingsArgs(st automation.Settings) []any {
	return []any{
		st.AutoStartGame, st.AutoStartHiding, st.AutoStartSearching, st.AutoEndGame,
		st.AutoAssignRoles, st.ManualControlMode, st.HidingDuration.Milliseconds(), st.SearchingDuration.Milliseconds(),
		st.MinParticipantsToStart,
	}
}

// seedSettings inserts the settings row unless one exists. Settings changed
// at runtime survive restarts.
func (s *Store) seedSettings(ctx context.Context, seed automation.Settings) error {
	args := append(settingsArgs(seed), toMillis(time.Now()))
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO automation_settings (id, `+settingsColumns+`, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return errors.Wrap(err, "failed to seed automation settings")
}

// GetSettings returns the persisted automation settings.
func (s *Store) GetSettings(ctx context.Context) (automation.Settings, error) {
	var (
		st                 automation.Settings
		hidingMs, searchMs int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM automation_settings WHERE id = 1`).Scan(
		&st.AutoStartGame, &st.AutoStartHiding, &st.AutoStartSearching, &st.AutoEndGame,
		&st.AutoAssignRoles, &st.ManualControlMode, &hidingMs, &searchMs,
		&st.MinParticipantsToStart,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return automation.Settings{}, errors.New("automation settings row is missing")
	}
	if err != nil {
		return automation.Settings{}, errors.Wrap(err, "failed to read automation settings")
	}
	st.HidingDuration = time.Duration(hidingMs) * time.Millisecond
	st.SearchingDuration = time.Duration(searchMs) * time.Millisecond
	return st, nil
}

// SaveSettings replaces the automation settings.
func (s *Store) SaveSettings(ctx context.Context, st automation.Settings) error {
	args := append(settingsArgs(st), toMillis(time.Now()))
	_, err := s.db.ExecContext(ctx,
		`UPDATE automation_settings SET
		   auto_start_game = ?, auto_start_hiding = ?, auto_start_searching = ?, auto_end_game = ?,
		   auto_assign_roles = ?, manual_control_mode = ?, hiding_duration_ms = ?, searching_duration_ms = ?,
		   min_participants_to_start = ?, updated_at = ?
		 WHERE id = 1`,
		args...,
	)
	return errors.Wrap(err, "failed to save automation settings")
}
