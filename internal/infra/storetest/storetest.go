// Package storetest holds the behaviour shared by every session.Store
// implementation. Each store package runs it from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
)

// Factory opens an empty store for one test.
type Factory func(t *testing.T) session.Store

var base = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

// Run runs the store contract against stores built by open.
func Run(t *testing.T, open Factory) {
	t.Run("sessions", func(t *testing.T) { testSessions(t, open(t)) })
	t.Run("transition", func(t *testing.T) { testTransition(t, open(t)) })
	t.Run("participants", func(t *testing.T) { testParticipants(t, open(t)) })
	t.Run("locations", func(t *testing.T) { testLocations(t, open(t)) })
	t.Run("photos", func(t *testing.T) { testPhotos(t, open(t)) })
	t.Run("zones", func(t *testing.T) { testZones(t, open(t)) })
	t.Run("settings", func(t *testing.T) { testSettings(t, open(t)) })
}

func newSession(id, district string, at time.Duration) *game.Session {
	return game.NewSession(id, game.NewSessionParams{
		District:        district,
		MaxParticipants: 6,
		MaxDrivers:      2,
		ScheduledAt:     base.Add(at),
		CreatorID:       "admin",
		Description:     "test game",
	}, base)
}

func mustCreate(t *testing.T, s session.Store, sess *game.Session) {
	t.Helper()
	require.NoError(t, s.CreateSession(context.Background(), sess))
}

func testSessions(t *testing.T, s session.Store) {
	ctx := context.Background()

	own := newSession("s-own", "downtown", 2*time.Hour)
	own.Zone = &game.Zone{ID: "own", Lat: 55.75, Lon: 37.61, RadiusMeters: 800, Active: true}
	mustCreate(t, s, own)
	mustCreate(t, s, newSession("s-late", "downtown", 3*time.Hour))
	mustCreate(t, s, newSession("s-early", "harbor", time.Hour))

	err := s.CreateSession(ctx, newSession("s-own", "downtown", time.Hour))
	assert.Error(t, err, "duplicate IDs are refused")

	got, err := s.GetSession(ctx, "s-own")
	require.NoError(t, err)
	assert.Equal(t, game.StatusRecruitment, got.Status)
	assert.True(t, got.ScheduledAt.Equal(base.Add(2*time.Hour)))
	require.NotNil(t, got.Zone)
	assert.Equal(t, 800.0, got.Zone.RadiusMeters)
	assert.Nil(t, got.HidingAt)

	_, err = s.GetSession(ctx, "missing")
	assert.True(t, errors.Is(err, game.ErrNotFound))

	all, err := s.ListSessions(ctx, session.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"s-early", "s-own", "s-late"}, []string{all[0].ID, all[1].ID, all[2].ID})

	downtown, err := s.ListSessions(ctx, session.SessionFilter{District: "downtown"})
	require.NoError(t, err)
	assert.Len(t, downtown, 2)

	hiding, err := s.ListSessions(ctx, session.SessionFilter{Statuses: []game.Status{game.StatusHiding}})
	require.NoError(t, err)
	assert.Empty(t, hiding)
}

func testTransition(t *testing.T, s session.Store) {
	ctx := context.Background()
	sess := newSession("s1", "downtown", time.Hour)
	mustCreate(t, s, sess)
	for i, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, s.AddParticipant(ctx, game.NewParticipant("s1", u, game.RoleNone, base.Add(time.Duration(i)*time.Second))))
	}

	sess.Advance(game.StatusHiding, base.Add(time.Hour))
	err := s.ApplyTransition(ctx, sess, map[string]game.Role{
		"u1": game.RoleDriver,
		"u2": game.RoleSeeker,
		"u3": game.RoleSeeker,
	})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusHiding, got.Status)
	require.NotNil(t, got.HidingAt)
	assert.True(t, got.HidingAt.Equal(base.Add(time.Hour)))

	p, err := s.GetParticipant(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, game.RoleDriver, p.Role)

	// A role for an unknown participant aborts the whole transition.
	next := got.Clone()
	next.Advance(game.StatusSearching, base.Add(2*time.Hour))
	err = s.ApplyTransition(ctx, next, map[string]game.Role{"u1": game.RoleSeeker, "ghost": game.RoleSeeker})
	assert.True(t, errors.Is(err, game.ErrNotFound))

	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusHiding, got.Status)
	p, err = s.GetParticipant(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, game.RoleDriver, p.Role)

	err = s.ApplyTransition(ctx, newSession("missing", "downtown", 0), nil)
	assert.True(t, errors.Is(err, game.ErrNotFound))
}

func testParticipants(t *testing.T, s session.Store) {
	ctx := context.Background()
	mustCreate(t, s, newSession("s1", "downtown", time.Hour))

	err := s.AddParticipant(ctx, game.NewParticipant("missing", "u1", game.RoleNone, base))
	assert.True(t, errors.Is(err, game.ErrNotFound))

	require.NoError(t, s.AddParticipant(ctx, game.NewParticipant("s1", "u2", game.RoleDriver, base.Add(2*time.Second))))
	require.NoError(t, s.AddParticipant(ctx, game.NewParticipant("s1", "u1", game.RoleObserver, base.Add(time.Second))))
	assert.Error(t, s.AddParticipant(ctx, game.NewParticipant("s1", "u1", game.RoleNone, base)))

	n, err := s.CountParticipants(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.ListParticipants(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "u1", list[0].UserID, "join order")
	assert.Equal(t, game.RoleObserver, list[0].Role)
	assert.Equal(t, game.RoleDriver, list[1].PreferredRole)

	require.NoError(t, s.RemoveParticipant(ctx, "s1", "u1"))
	err = s.RemoveParticipant(ctx, "s1", "u1")
	assert.True(t, errors.Is(err, game.ErrNotFound))
	_, err = s.GetParticipant(ctx, "s1", "u1")
	assert.True(t, errors.Is(err, game.ErrNotFound))
}

func testLocations(t *testing.T, s session.Store) {
	ctx := context.Background()
	mustCreate(t, s, newSession("s1", "downtown", time.Hour))

	report := func(user string, lat float64, at time.Time) game.Location {
		t.Helper()
		l := &game.Location{SessionID: "s1", UserID: user, Lat: lat, Lon: 37.6, ObservedAt: at}
		require.NoError(t, s.AppendLocation(ctx, l))
		assert.NotZero(t, l.Sequence)
		return *l
	}

	report("u2", 55.1, base)
	report("u1", 55.2, base.Add(time.Minute))
	report("u1", 55.3, base) // older fix arriving late
	report("u2", 55.4, base) // same time, later sequence wins

	latest, err := s.LatestLocations(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "u1", latest[0].UserID)
	assert.Equal(t, 55.2, latest[0].Lat)
	assert.Equal(t, "u2", latest[1].UserID)
	assert.Equal(t, 55.4, latest[1].Lat)

	none, err := s.LatestLocations(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testPhotos(t *testing.T, s session.Store) {
	ctx := context.Background()
	mustCreate(t, s, newSession("s1", "downtown", time.Hour))

	for i, id := range []string{"p2", "p1"} {
		require.NoError(t, s.CreatePhoto(ctx, &game.Photo{
			ID: id, SessionID: "s1", UserID: "u1", FileRef: "file-" + id,
			Lat: 55.7, Lon: 37.6, InsideZone: i == 0,
			Status: game.PhotoPending, SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.GetPhoto(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, got.InsideZone)
	assert.Equal(t, "file-p2", got.FileRef)
	assert.Nil(t, got.DecidedAt)

	_, err = s.GetPhoto(ctx, "missing")
	assert.True(t, errors.Is(err, game.ErrNotFound))

	decidedAt := base.Add(time.Hour)
	decided, err := s.DecidePhoto(ctx, "p2", game.PhotoApproved, "admin", decidedAt)
	require.NoError(t, err)
	assert.Equal(t, game.PhotoApproved, decided.Status)
	assert.Equal(t, "admin", decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)
	assert.True(t, decided.DecidedAt.Equal(decidedAt))

	_, err = s.DecidePhoto(ctx, "p2", game.PhotoRejected, "admin", decidedAt)
	assert.True(t, errors.Is(err, game.ErrState))
	_, err = s.DecidePhoto(ctx, "missing", game.PhotoRejected, "admin", decidedAt)
	assert.True(t, errors.Is(err, game.ErrNotFound))

	list, err := s.ListPhotos(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID, "submission order")
	assert.Equal(t, game.PhotoApproved, list[0].Status)
	assert.Equal(t, game.PhotoPending, list[1].Status)
}

func testZones(t *testing.T, s session.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertZone(ctx, game.Zone{ID: "z2", District: "downtown", Lat: 55.7, Lon: 37.6, RadiusMeters: 500, Active: true}))
	require.NoError(t, s.UpsertZone(ctx, game.Zone{ID: "z1", District: "downtown", Lat: 55.8, Lon: 37.5, RadiusMeters: 300, IsDefault: true, Active: true}))
	require.NoError(t, s.UpsertZone(ctx, game.Zone{ID: "z3", District: "harbor", Lat: 55.6, Lon: 37.4, RadiusMeters: 900, Active: true}))
	require.NoError(t, s.UpsertZone(ctx, game.Zone{ID: "z2", District: "downtown", Name: "Park", Lat: 55.7, Lon: 37.6, RadiusMeters: 650}))

	zones, err := s.ListZones(ctx, "downtown")
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "z1", zones[0].ID)
	assert.True(t, zones[0].IsDefault)
	assert.Equal(t, "Park", zones[1].Name)
	assert.Equal(t, 650.0, zones[1].RadiusMeters)
	assert.False(t, zones[1].Active)

	none, err := s.ListZones(ctx, "suburbs")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testSettings(t *testing.T, s session.Store) {
	ctx := context.Background()

	want := automation.Settings{
		AutoStartGame:          true,
		AutoStartSearching:     true,
		ManualControlMode:      true,
		HidingDuration:         7 * time.Minute,
		SearchingDuration:      45 * time.Minute,
		MinParticipantsToStart: 3,
	}
	require.NoError(t, s.SaveSettings(ctx, want))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
