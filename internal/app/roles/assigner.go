// Package roles provides the deterministic driver/seeker assignment.
package roles

import (
	"hash/fnv"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/osa030/hideseek/internal/domain/game"
)

// MinEligible is the smallest group that can be split into drivers and seekers.
const MinEligible = 2

// Assignment maps user IDs to their assigned role.
type Assignment map[string]game.Role

// Count returns the number of users holding role.
func (a Assignment) Count(role game.Role) int {
	n := 0
	for _, r := range a {
		if r == role {
			n++
		}
	}
	return n
}

// DriverCount returns how many drivers a group of eligible participants gets.
// At least one seeker remains whenever eligible >= MinEligible.
func DriverCount(maxDrivers, eligible int) int {
	d := eligible - 1
	if maxDrivers < d {
		d = maxDrivers
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Eligible returns the participants that take part in role assignment,
// in their input order.
func Eligible(participants []*game.Participant) []*game.Participant {
	out := make([]*game.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsEligible() {
			out = append(out, p)
		}
	}
	return out
}

// Assign splits participants into drivers and seekers.
//
// Participants preferring the driver role come first, then earlier joiners.
// Participants that share both preference and join time are ordered by a hash
// of their user ID seeded with seed (the session ID), so the outcome is
// reproducible for a session but does not favour the same users everywhere.
func Assign(participants []*game.Participant, maxDrivers int, seed string) (Assignment, error) {
	for _, p := range participants {
		if p.HasRole() {
			return nil, errors.Mark(
				errors.Newf("participant %s already holds role %s", p.UserID, p.Role),
				game.ErrAlreadyAssigned,
			)
		}
	}

	eligible := Eligible(participants)
	if len(eligible) < MinEligible {
		return nil, errors.Mark(
			errors.Newf("need at least %d eligible participants, have %d", MinEligible, len(eligible)),
			game.ErrInsufficientParticipants,
		)
	}

	ordered := make([]*game.Participant, len(eligible))
	copy(ordered, eligible)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		aDriver := a.PreferredRole == game.RoleDriver
		bDriver := b.PreferredRole == game.RoleDriver
		if aDriver != bDriver {
			return aDriver
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		ha, hb := tieBreak(seed, a.UserID), tieBreak(seed, b.UserID)
		if ha != hb {
			return ha < hb
		}
		return a.UserID < b.UserID
	})

	drivers := DriverCount(maxDrivers, len(ordered))
	result := make(Assignment, len(ordered))
	for i, p := range ordered {
		if i < drivers {
			result[p.UserID] = game.RoleDriver
		} else {
			result[p.UserID] = game.RoleSeeker
		}
	}
	return result, nil
}

func tieBreak(seed, userID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(userID))
	return h.Sum64()
}
