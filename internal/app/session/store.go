package session

import (
	"context"
	"time"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/domain/game"
)

// SessionFilter selects sessions in ListSessions.
type SessionFilter struct {
	Statuses []game.Status // Empty selects every status
	District string        // Empty selects every district
}

// Matches reports whether s passes the filter.
func (f SessionFilter) Matches(s *game.Session) bool {
	if f.District != "" && s.District != f.District {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if s.Status == st {
			return true
		}
	}
	return false
}

// SessionRepository persists sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *game.Session) error
	GetSession(ctx context.Context, id string) (*game.Session, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]*game.Session, error)
	// ApplyTransition stores the session and the given role changes atomically.
	ApplyTransition(ctx context.Context, s *game.Session, roles map[string]game.Role) error
}

// ParticipantRepository persists participants.
type ParticipantRepository interface {
	AddParticipant(ctx context.Context, p *game.Participant) error
	RemoveParticipant(ctx context.Context, sessionID, userID string) error
	GetParticipant(ctx context.Context, sessionID, userID string) (*game.Participant, error)
	ListParticipants(ctx context.Context, sessionID string) ([]*game.Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
}

// LocationRepository persists position reports.
type LocationRepository interface {
	// AppendLocation stores the report and assigns its Sequence.
	AppendLocation(ctx context.Context, l *game.Location) error
	// LatestLocations returns the newest report of every participant by
	// (ObservedAt, Sequence).
	LatestLocations(ctx context.Context, sessionID string) ([]game.Location, error)
}

// PhotoRepository persists photos.
type PhotoRepository interface {
	CreatePhoto(ctx context.Context, p *game.Photo) error
	GetPhoto(ctx context.Context, id string) (*game.Photo, error)
	ListPhotos(ctx context.Context, sessionID string) ([]*game.Photo, error)
	// DecidePhoto moves a pending photo to status.
	DecidePhoto(ctx context.Context, id string, status game.PhotoStatus, by string, at time.Time) (*game.Photo, error)
}

// ZoneRepository persists zones.
type ZoneRepository interface {
	UpsertZone(ctx context.Context, z game.Zone) error
	ListZones(ctx context.Context, district string) ([]game.Zone, error)
}

// Store is everything the engine persists.
type Store interface {
	SessionRepository
	ParticipantRepository
	LocationRepository
	PhotoRepository
	ZoneRepository
	automation.Store
}
