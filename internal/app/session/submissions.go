package session

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/hideseek/internal/app/filter"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/domain/geo"
)

// LocationInput is a position report.
type LocationInput struct {
	SessionID  string
	UserID     string
	Lat        float64
	Lon        float64
	ObservedAt time.Time
}

// LocationResult is the outcome of an accepted position report.
type LocationResult struct {
	Location   game.Location
	InsideZone bool
	Flags      []string
}

// PhotoInput is a photo submission.
type PhotoInput struct {
	SessionID string
	UserID    string
	FileRef   string
	Lat       float64
	Lon       float64
}

// SubmitLocation validates and appends a position report. It takes no
// session lock. A participant outside the zone is notified.
func (m *Manager) SubmitLocation(ctx context.Context, in LocationInput) (*LocationResult, error) {
	if err := game.ValidateCoordinates(in.Lat, in.Lon); err != nil {
		return nil, err
	}
	if in.ObservedAt.IsZero() {
		return nil, game.Validationf("observation time is required")
	}

	sess, participant, zone, err := m.submissionEnv(ctx, in.SessionID, in.UserID)
	if err != nil {
		return nil, err
	}

	point := geo.Point{Lat: in.Lat, Lon: in.Lon}
	res := m.filters.Execute(ctx, filter.Submission{
		Kind:       filter.KindLocation,
		SessionID:  in.SessionID,
		UserID:     in.UserID,
		Point:      point,
		ObservedAt: in.ObservedAt,
		ReceivedAt: m.now(),
	}, filter.Env{Session: sess, Participant: participant, Zone: zone})
	if !res.Accepted {
		return nil, rejection(res.Code)
	}

	loc := &game.Location{
		SessionID:  in.SessionID,
		UserID:     in.UserID,
		Lat:        in.Lat,
		Lon:        in.Lon,
		ObservedAt: in.ObservedAt.UTC(),
	}
	if err := m.store.AppendLocation(ctx, loc); err != nil {
		return nil, errors.Wrap(err, "failed to store location")
	}

	inside := geo.Contains(zone, point)
	if !inside {
		zlog.Info().Str("session_id", in.SessionID).Msgf("participant outside zone: user=%s", in.UserID)
		m.dispatch([]outbound{{
			recipients: []string{in.UserID},
			msg:        m.message(notification.KindOutsideZone, "outside_zone", in.SessionID, map[string]string{"zone_id": zone.ID}),
		}})
	}

	return &LocationResult{Location: *loc, InsideZone: inside, Flags: res.Flags}, nil
}

// SubmitPhoto stores a photo for moderation. The geofence verdict is
// recorded with it.
func (m *Manager) SubmitPhoto(ctx context.Context, in PhotoInput) (*game.Photo, error) {
	if strings.TrimSpace(in.FileRef) == "" {
		return nil, game.Validationf("file reference is required")
	}
	if err := game.ValidateCoordinates(in.Lat, in.Lon); err != nil {
		return nil, err
	}

	sess, participant, zone, err := m.submissionEnv(ctx, in.SessionID, in.UserID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	point := geo.Point{Lat: in.Lat, Lon: in.Lon}
	res := m.filters.Execute(ctx, filter.Submission{
		Kind:       filter.KindPhoto,
		SessionID:  in.SessionID,
		UserID:     in.UserID,
		Point:      point,
		ReceivedAt: now,
	}, filter.Env{Session: sess, Participant: participant, Zone: zone})
	if !res.Accepted {
		return nil, rejection(res.Code)
	}

	photo := &game.Photo{
		ID:          m.newID(),
		SessionID:   in.SessionID,
		UserID:      in.UserID,
		FileRef:     in.FileRef,
		Lat:         in.Lat,
		Lon:         in.Lon,
		InsideZone:  geo.Contains(zone, point),
		Status:      game.PhotoPending,
		SubmittedAt: now,
	}
	if err := m.store.CreatePhoto(ctx, photo); err != nil {
		return nil, errors.Wrap(err, "failed to store photo")
	}

	zlog.Info().
		Str("session_id", in.SessionID).
		Msgf("photo submitted: id=%s user=%s inside_zone=%v", photo.ID, in.UserID, photo.InsideZone)
	m.dispatch([]outbound{{
		recipients: []string{sess.CreatorID},
		msg: m.message(notification.KindPhotoSubmitted, "photo_submitted", in.SessionID, map[string]string{
			"photo_id": photo.ID,
			"user_id":  in.UserID,
		}),
	}})
	return photo, nil
}

// ApprovePhoto accepts a pending photo. Photos that were rejected or taken
// outside the zone cannot be approved. Approving twice is a no-op.
func (m *Manager) ApprovePhoto(ctx context.Context, photoID, actor string) (*game.Photo, error) {
	return m.decidePhoto(ctx, photoID, actor, game.PhotoApproved)
}

// RejectPhoto refuses a pending photo. Rejecting twice is a no-op.
func (m *Manager) RejectPhoto(ctx context.Context, photoID, actor string) (*game.Photo, error) {
	return m.decidePhoto(ctx, photoID, actor, game.PhotoRejected)
}

// ListPhotos returns the photos of a session in submission order.
func (m *Manager) ListPhotos(ctx context.Context, sessionID string) ([]*game.Photo, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.store.ListPhotos(ctx, sessionID)
}

func (m *Manager) decidePhoto(ctx context.Context, photoID, actor string, status game.PhotoStatus) (*game.Photo, error) {
	photo, err := m.store.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, err
	}

	var decided bool
	err = m.locks.WithLock(ctx, photo.SessionID, func() error {
		current, err := m.store.GetPhoto(ctx, photoID)
		if err != nil {
			return err
		}
		if current.Status == status {
			photo = current
			return nil
		}
		if current.Status != game.PhotoPending {
			if status == game.PhotoApproved {
				return errors.Mark(errors.Newf("photo %s was rejected", photoID), game.ErrRejected)
			}
			return game.Statef("photo %s is already %s", photoID, current.Status)
		}
		if status == game.PhotoApproved && !current.InsideZone {
			return errors.Mark(errors.Newf("photo %s was taken outside the zone", photoID), game.ErrRejected)
		}

		photo, err = m.store.DecidePhoto(ctx, photoID, status, actor, m.now().UTC())
		if err != nil {
			return errors.Wrap(err, "failed to store photo decision")
		}
		decided = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decided {
		code := "photo_rejected"
		if status == game.PhotoApproved {
			code = "photo_approved"
		}
		zlog.Info().Str("session_id", photo.SessionID).Msgf("photo %s: id=%s actor=%s", status, photoID, actor)
		m.dispatch([]outbound{{
			recipients: []string{photo.UserID},
			msg:        m.message(notification.KindPhotoDecided, code, photo.SessionID, map[string]string{"photo_id": photoID, "status": status.String()}),
		}})
	}
	return photo, nil
}

// Nearby returns the other participants whose latest position lies within
// radius meters of the caller's latest position. A zero radius uses the
// configured default.
func (m *Manager) Nearby(ctx context.Context, sessionID, userID string, radius float64) ([]geo.Neighbor, error) {
	if radius < 0 || radius != radius {
		return nil, game.Validationf("radius must be positive, got %v", radius)
	}
	if radius == 0 {
		radius = m.config.Session.DefaultRadius
	}
	if _, err := m.store.GetParticipant(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	latest, err := m.store.LatestLocations(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read locations")
	}

	var origin *geo.Point
	candidates := make([]geo.Candidate, 0, len(latest))
	for _, l := range latest {
		p := geo.Point{Lat: l.Lat, Lon: l.Lon}
		if l.UserID == userID {
			origin = &p
			continue
		}
		candidates = append(candidates, geo.Candidate{ID: l.UserID, Point: p})
	}
	if origin == nil {
		return nil, game.NotFoundf("no location reported by %s in session %s", userID, sessionID)
	}
	return geo.Nearby(*origin, candidates, radius), nil
}

// submissionEnv loads what a submission is checked against. Submissions are
// only accepted while the game runs, whatever filters are configured.
func (m *Manager) submissionEnv(ctx context.Context, sessionID, userID string) (*game.Session, *game.Participant, *game.Zone, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !sess.Status.IsActive() {
		return nil, nil, nil, game.Statef("session %s is %s, submissions are closed", sessionID, sess.Status)
	}
	participant, err := m.store.GetParticipant(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	zone, err := m.resolveZone(ctx, sess)
	if err != nil {
		return nil, nil, nil, err
	}
	return sess, participant, zone, nil
}

// resolveZone returns the zone enforced for a session, nil for none.
func (m *Manager) resolveZone(ctx context.Context, sess *game.Session) (*game.Zone, error) {
	if sess.Zone != nil {
		return geo.ResolveZone(sess.Zone, nil), nil
	}
	zones, err := m.store.ListZones(ctx, sess.District)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list zones")
	}
	return geo.ResolveZone(nil, zones), nil
}

// rejection converts a filter code to a categorized error.
func rejection(code string) error {
	switch code {
	case "not_running":
		return game.Statef("submission rejected: game is not running")
	case "stale_location", "future_location":
		return game.Validationf("submission rejected: %s", code)
	default:
		return errors.Mark(errors.Newf("submission rejected: %s", code), game.ErrRejected)
	}
}
