package automation

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/hideseek/internal/domain/game"
)

// Policy evaluates one settings snapshot.
type Policy struct {
	settings Settings
}

// NewPolicy creates a policy over a snapshot.
func NewPolicy(s Settings) Policy {
	return Policy{settings: s}
}

// Settings returns the snapshot the policy was built from.
func (p Policy) Settings() Settings {
	return p.settings
}

// Allow decides whether a transition to target may run in mode.
// Manual requests always pass; state and capacity guards are checked elsewhere.
func (p Policy) Allow(target game.Status, mode game.Mode) error {
	if mode == game.ModeManual {
		return nil
	}
	if target == game.StatusCancelled {
		return nil
	}
	if p.settings.ManualControlMode {
		return errors.Mark(
			errors.Newf("automatic %s blocked: manual control mode is on", target),
			game.ErrAutomationDisabled,
		)
	}

	var enabled bool
	var flag string
	switch target {
	case game.StatusHiding:
		enabled = p.settings.AutoStartGame && p.settings.AutoStartHiding
		flag = "autoStartGame/autoStartHiding"
	case game.StatusSearching:
		enabled = p.settings.AutoStartSearching
		flag = "autoStartSearching"
	case game.StatusFinished:
		enabled = p.settings.AutoEndGame
		flag = "autoEndGame"
	default:
		return game.Statef("no automatic path to %s", target)
	}
	if !enabled {
		return errors.Mark(
			errors.Newf("automatic %s blocked: %s is off", target, flag),
			game.ErrAutomationDisabled,
		)
	}
	return nil
}

// AssignRolesOnStart reports whether roles are assigned when a game starts.
// A manual start always assigns.
func (p Policy) AssignRolesOnStart(mode game.Mode) bool {
	return mode == game.ModeManual || p.settings.AutoAssignRoles
}

// PhaseDuration returns how long the phase entered by target lasts.
func (p Policy) PhaseDuration(target game.Status) (time.Duration, bool) {
	switch target {
	case game.StatusHiding:
		return p.settings.HidingDuration, true
	case game.StatusSearching:
		return p.settings.SearchingDuration, true
	default:
		return 0, false
	}
}
