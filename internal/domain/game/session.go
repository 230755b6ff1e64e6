package game

import (
	"strings"
	"time"
)

// Session represents a single game in a district.
type Session struct {
	ID              string     // UUID
	District        string     // District the game is played in
	ScheduledAt     time.Time  // Planned start of the hiding phase
	Status          Status     // Current phase
	MaxParticipants int        // Capacity
	MaxDrivers      int        // Upper bound for the driver role
	Zone            *Zone      // Own zone, nil to fall back to district zones
	CreatorID       string     // Admin or user that created the game
	Description     string     // Free text shown to participants
	CreatedAt       time.Time  // Creation time
	UpdatedAt       time.Time  // Last mutation
	HidingAt        *time.Time // Entered hiding
	SearchingAt     *time.Time // Entered searching
	EndedAt         *time.Time // Finished or cancelled
}

// NewSessionParams holds the caller supplied fields of a new session.
type NewSessionParams struct {
	District        string
	MaxParticipants int
	MaxDrivers      int
	ScheduledAt     time.Time
	CreatorID       string
	Description     string
	Zone            *Zone
}

// Validate checks the parameters of a new session.
func (p NewSessionParams) Validate() error {
	if strings.TrimSpace(p.District) == "" {
		return Validationf("district is required")
	}
	if strings.TrimSpace(p.CreatorID) == "" {
		return Validationf("creator is required")
	}
	if p.MaxParticipants < 2 {
		return Validationf("max participants must be at least 2, got %d", p.MaxParticipants)
	}
	if p.MaxDrivers < 1 {
		return Validationf("max drivers must be at least 1, got %d", p.MaxDrivers)
	}
	if p.MaxDrivers > p.MaxParticipants {
		return Validationf("max drivers (%d) cannot exceed max participants (%d)", p.MaxDrivers, p.MaxParticipants)
	}
	if p.ScheduledAt.IsZero() {
		return Validationf("scheduled time is required")
	}
	if p.Zone != nil {
		if err := p.Zone.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NewSession creates a session in the recruitment phase.
func NewSession(id string, p NewSessionParams, now time.Time) *Session {
	return &Session{
		ID:              id,
		District:        strings.TrimSpace(p.District),
		ScheduledAt:     p.ScheduledAt.UTC(),
		Status:          StatusRecruitment,
		MaxParticipants: p.MaxParticipants,
		MaxDrivers:      p.MaxDrivers,
		Zone:            p.Zone,
		CreatorID:       p.CreatorID,
		Description:     p.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.Zone != nil {
		z := *s.Zone
		c.Zone = &z
	}
	c.HidingAt = cloneTime(s.HidingAt)
	c.SearchingAt = cloneTime(s.SearchingAt)
	c.EndedAt = cloneTime(s.EndedAt)
	return &c
}

// Advance moves the session to target and stamps the phase timestamps.
// Callers validate the edge first.
func (s *Session) Advance(target Status, now time.Time) {
	s.Status = target
	s.UpdatedAt = now
	t := now
	switch target {
	case StatusHiding:
		s.HidingAt = &t
	case StatusSearching:
		s.SearchingAt = &t
	case StatusFinished, StatusCancelled:
		s.EndedAt = &t
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
