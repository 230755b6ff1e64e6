// Package memstore provides an in-memory session store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
)

type participantKey struct {
	sessionID string
	userID    string
}

// Store keeps every entity in maps guarded by one mutex.
// Returned values are copies.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*game.Session
	participants map[participantKey]*game.Participant
	locations    map[string][]game.Location // by session
	photos       map[string]*game.Photo
	zones        map[string]game.Zone
	settings     automation.Settings
	sequence     int64
	settingsErr  error
}

var _ session.Store = (*Store)(nil)

// New creates an empty store holding the given settings.
func New(settings automation.Settings) *Store {
	return &Store{
		sessions:     make(map[string]*game.Session),
		participants: make(map[participantKey]*game.Participant),
		locations:    make(map[string][]game.Location),
		photos:       make(map[string]*game.Photo),
		zones:        make(map[string]game.Zone),
		settings:     settings,
	}
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, sess *game.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return game.Statef("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*game.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, game.NotFoundf("session %s not found", id)
	}
	return sess.Clone(), nil
}

// ListSessions returns the matching sessions ordered by scheduled time.
func (s *Store) ListSessions(ctx context.Context, f session.SessionFilter) ([]*game.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*game.Session, 0)
	for _, sess := range s.sessions {
		if f.Matches(sess) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ApplyTransition stores the session and role changes together.
func (s *Store) ApplyTransition(ctx context.Context, sess *game.Session, roles map[string]game.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return game.NotFoundf("session %s not found", sess.ID)
	}
	for userID := range roles {
		if _, ok := s.participants[participantKey{sess.ID, userID}]; !ok {
			return game.NotFoundf("participant %s not found in session %s", userID, sess.ID)
		}
	}

	s.sessions[sess.ID] = sess.Clone()
	for userID, role := range roles {
		s.participants[participantKey{sess.ID, userID}].Role = role
	}
	return nil
}

// AddParticipant stores a new participant.
func (s *Store) AddParticipant(ctx context.Context, p *game.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[p.SessionID]; !ok {
		return game.NotFoundf("session %s not found", p.SessionID)
	}
	key := participantKey{p.SessionID, p.UserID}
	if _, ok := s.participants[key]; ok {
		return game.Statef("user %s already joined session %s", p.UserID, p.SessionID)
	}
	c := *p
	s.participants[key] = &c
	return nil
}

// RemoveParticipant deletes a participant.
func (s *Store) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participantKey{sessionID, userID}
	if _, ok := s.participants[key]; !ok {
		return game.NotFoundf("participant %s not found in session %s", userID, sessionID)
	}
	delete(s.participants, key)
	return nil
}

// GetParticipant returns one participant.
func (s *Store) GetParticipant(ctx context.Context, sessionID, userID string) (*game.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[participantKey{sessionID, userID}]
	if !ok {
		return nil, game.NotFoundf("participant %s not found in session %s", userID, sessionID)
	}
	c := *p
	return &c, nil
}

// ListParticipants returns the participants of a session in join order.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]*game.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*game.Participant, 0)
	for key, p := range s.participants {
		if key.sessionID == sessionID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// CountParticipants returns the number of participants of a session.
func (s *Store) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.participants {
		if key.sessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// AppendLocation stores a report and assigns its sequence.
func (s *Store) AppendLocation(ctx context.Context, l *game.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	l.Sequence = s.sequence
	s.locations[l.SessionID] = append(s.locations[l.SessionID], *l)
	return nil
}

// LatestLocations returns the newest report per participant, ordered by user ID.
func (s *Store) LatestLocations(ctx context.Context, sessionID string) ([]game.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]game.Location)
	for _, l := range s.locations[sessionID] {
		if cur, ok := latest[l.UserID]; !ok || l.After(cur) {
			latest[l.UserID] = l
		}
	}
	out := make([]game.Location, 0, len(latest))
	for _, l := range latest {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// CreatePhoto stores a new photo.
func (s *Store) CreatePhoto(ctx context.Context, p *game.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[p.ID]; ok {
		return game.Statef("photo %s already exists", p.ID)
	}
	s.photos[p.ID] = clonePhoto(p)
	return nil
}

// GetPhoto returns a photo by ID.
func (s *Store) GetPhoto(ctx context.Context, id string) (*game.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, game.NotFoundf("photo %s not found", id)
	}
	return clonePhoto(p), nil
}

// ListPhotos returns the photos of a session in submission order.
func (s *Store) ListPhotos(ctx context.Context, sessionID string) ([]*game.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*game.Photo, 0)
	for _, p := range s.photos {
		if p.SessionID == sessionID {
			out = append(out, clonePhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DecidePhoto moves a pending photo to status.
func (s *Store) DecidePhoto(ctx context.Context, id string, status game.PhotoStatus, by string, at time.Time) (*game.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, game.NotFoundf("photo %s not found", id)
	}
	if p.Status != game.PhotoPending {
		return nil, game.Statef("photo %s is already %s", id, p.Status)
	}
	decided := at
	p.Status = status
	p.DecidedAt = &decided
	p.DecidedBy = by
	return clonePhoto(p), nil
}

// UpsertZone creates or replaces a zone.
func (s *Store) UpsertZone(ctx context.Context, z game.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[z.ID] = z
	return nil
}

// ListZones returns the zones of a district ordered by ID.
func (s *Store) ListZones(ctx context.Context, district string) ([]game.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]game.Zone, 0)
	for _, z := range s.zones {
		if z.District == district {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSettings returns the automation settings.
func (s *Store) GetSettings(ctx context.Context) (automation.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settingsErr != nil {
		return automation.Settings{}, s.settingsErr
	}
	return s.settings, nil
}

// SaveSettings replaces the automation settings.
func (s *Store) SaveSettings(ctx context.Context, settings automation.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// FailSettings makes GetSettings return err until called again with nil.
func (s *Store) FailSettings(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsErr = err
}

func clonePhoto(p *game.Photo) *game.Photo {
	c := *p
	if p.DecidedAt != nil {
		t := *p.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
