// Package game provides the game session domain entities.
package game

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Status represents the session lifecycle phase.
type Status int

const (
	StatusRecruitment Status = iota // Accepting participants
	StatusHiding                    // Drivers are hiding
	StatusSearching                 // Seekers are searching
	StatusFinished                  // Game is over
	StatusCancelled                 // Aborted by an admin or the system
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusRecruitment:
		return "recruitment"
	case StatusHiding:
		return "hiding"
	case StatusSearching:
		return "searching"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus parses a status name as returned by String.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recruitment":
		return StatusRecruitment, nil
	case "hiding":
		return StatusHiding, nil
	case "searching":
		return StatusSearching, nil
	case "finished":
		return StatusFinished, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return 0, errors.Mark(errors.Newf("unknown status %q", s), ErrValidation)
	}
}

// IsTerminal reports whether no further mutation is accepted.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// IsActive reports whether the game is being played.
func (s Status) IsActive() bool {
	return s == StatusHiding || s == StatusSearching
}

// CanTransitionTo reports whether the state machine has an edge from s to target.
// Forced finishes from Hiding are included; callers restrict them to manual requests.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch target {
	case StatusHiding:
		return s == StatusRecruitment
	case StatusSearching:
		return s == StatusHiding
	case StatusFinished:
		return s.IsActive()
	case StatusCancelled:
		return true
	default:
		return false
	}
}

// Mode tells whether a transition was requested unattended or by an admin.
type Mode int

const (
	ModeAuto   Mode = iota // Fired by the scheduler
	ModeManual             // Explicit admin request
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}
