package game

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Role represents a participant's role in a game.
type Role int

const (
	RoleNone     Role = iota // Not assigned yet
	RoleDriver               // Hides
	RoleSeeker               // Searches
	RoleObserver             // Opted out of role assignment
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleDriver:
		return "driver"
	case RoleSeeker:
		return "seeker"
	case RoleObserver:
		return "observer"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name. The empty string maps to RoleNone.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RoleNone, nil
	case "driver":
		return RoleDriver, nil
	case "seeker":
		return RoleSeeker, nil
	case "observer":
		return RoleObserver, nil
	default:
		return RoleNone, errors.Mark(errors.Newf("unknown role %q", s), ErrValidation)
	}
}

// Participant represents a user's membership in a session.
type Participant struct {
	SessionID     string    // Session UUID
	UserID        string    // External user ID
	Role          Role      // Assigned role, RoleObserver when opted out
	PreferredRole Role      // Stated preference used by role assignment
	JoinedAt      time.Time // Join time
}

// NewParticipant creates a participant. Observers are fixed at join time.
func NewParticipant(sessionID, userID string, pref Role, joinedAt time.Time) *Participant {
	p := &Participant{
		SessionID:     sessionID,
		UserID:        userID,
		PreferredRole: pref,
		JoinedAt:      joinedAt,
	}
	if pref == RoleObserver {
		p.Role = RoleObserver
	}
	return p
}

// IsEligible reports whether the participant takes part in role assignment.
func (p *Participant) IsEligible() bool {
	return p.PreferredRole != RoleObserver && p.Role != RoleObserver
}

// HasRole reports whether role assignment already touched this participant.
func (p *Participant) HasRole() bool {
	return p.Role == RoleDriver || p.Role == RoleSeeker
}
