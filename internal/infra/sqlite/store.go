// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/osa030/hideseek/internal/app/automation"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
	"github.com/osa030/hideseek/internal/infra/sqlite/migrations"
)

// Store persists sessions, participants, submissions, zones and settings
// in one SQLite file.
type Store struct {
	db *sql.DB
}

var _ session.Store = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// Open opens the database at path, applies the embedded migrations and
// seeds the settings row with seed when it does not exist yet.
func Open(ctx context.Context, path string, seed automation.Settings) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	// One writer at a time; transactions never wait on a second connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite database")
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.seedSettings(ctx, seed); err != nil {
		_ = db.Close()
		return nil, err
	}
	zlog.Info().Msgf("sqlite store opened: path=%s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `id, district, scheduled_at, status, max_participants, max_drivers,
	zone_id, zone_name, zone_lat, zone_lon, zone_radius_m,
	creator_id, description, created_at, updated_at, hiding_at, searching_at, ended_at`

func scanSession(row rowScanner) (*game.Session, error) {
	var (
		sess                              game.Session
		status                            string
		scheduledAt, createdAt, updatedAt int64
		zoneID, zoneName                  sql.NullString
		zoneLat, zoneLon, zoneRadius      sql.NullFloat64
		hidingAt, searchingAt, endedAt    sql.NullInt64
	)
	if err := row.Scan(
		&sess.ID, &sess.District, &scheduledAt, &status, &sess.MaxParticipants, &sess.MaxDrivers,
		&zoneID, &zoneName, &zoneLat, &zoneLon, &zoneRadius,
		&sess.CreatorID, &sess.Description, &createdAt, &updatedAt, &hidingAt, &searchingAt, &endedAt,
	); err != nil {
		return nil, err
	}

	st, err := game.ParseStatus(status)
	if err != nil {
		return nil, errors.Wrapf(err, "session %s has a corrupt status", sess.ID)
	}
	sess.Status = st
	sess.ScheduledAt = fromMillis(scheduledAt)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	sess.HidingAt = timePtr(hidingAt)
	sess.SearchingAt = timePtr(searchingAt)
	sess.EndedAt = timePtr(endedAt)
	if zoneID.Valid {
		sess.Zone = &game.Zone{
			ID:           zoneID.String,
			District:     sess.District,
			Name:         zoneName.String,
			Lat:          zoneLat.Float64,
			Lon:          zoneLon.Float64,
			RadiusMeters: zoneRadius.Float64,
			Active:       true,
		}
	}
	return &sess, nil
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, sess *game.Session) error {
	var (
		zoneID, zoneName             sql.NullString
		zoneLat, zoneLon, zoneRadius sql.NullFloat64
	)
	if z := sess.Zone; z != nil {
		zoneID = sql.NullString{String: z.ID, Valid: true}
		zoneName = sql.NullString{String: z.Name, Valid: true}
		zoneLat = sql.NullFloat64{Float64: z.Lat, Valid: true}
		zoneLon = sql.NullFloat64{Float64: z.Lon, Valid: true}
		zoneRadius = sql.NullFloat64{Float64: z.RadiusMeters, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.District, toMillis(sess.ScheduledAt), sess.Status.String(), sess.MaxParticipants, sess.MaxDrivers,
		zoneID, zoneName, zoneLat, zoneLon, zoneRadius,
		sess.CreatorID, sess.Description, toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt),
		nullMillis(sess.HidingAt), nullMillis(sess.SearchingAt), nullMillis(sess.EndedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return game.Statef("session %s already exists", sess.ID)
		}
		return errors.Wrap(err, "failed to insert session")
	}
	return nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*game.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.NotFoundf("session %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read session %s", id)
	}
	return sess, nil
}

// ListSessions returns the matching sessions ordered by scheduled time.
func (s *Store) ListSessions(ctx context.Context, f session.SessionFilter) ([]*game.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1 = 1`
	var args []any
	if f.District != "" {
		query += ` AND district = ?`
		args = append(args, f.District)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(f.Statuses)-1) + `)`
		for _, st := range f.Statuses {
			args = append(args, st.String())
		}
	}
	query += ` ORDER BY scheduled_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	out := make([]*game.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		out = append(out, sess)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate sessions")
}

// ApplyTransition stores the session phase and role changes in one
// transaction. Nothing is written when any row is missing.
func (s *Store) ApplyTransition(ctx context.Context, sess *game.Session, roles map[string]game.Role) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, updated_at = ?, hiding_at = ?, searching_at = ?, ended_at = ?
			 WHERE id = ?`,
			sess.Status.String(), toMillis(sess.UpdatedAt),
			nullMillis(sess.HidingAt), nullMillis(sess.SearchingAt), nullMillis(sess.EndedAt),
			sess.ID,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to update session %s", sess.ID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return game.NotFoundf("session %s not found", sess.ID)
		}

		for userID, role := range roles {
			res, err := tx.ExecContext(ctx,
				`UPDATE participants SET role = ? WHERE session_id = ? AND user_id = ?`,
				role.String(), sess.ID, userID,
			)
			if err != nil {
				return errors.Wrapf(err, "failed to update role of %s", userID)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return game.NotFoundf("participant %s not found in session %s", userID, sess.ID)
			}
		}
		return nil
	})
}

// AddParticipant stores a new participant.
func (s *Store) AddParticipant(ctx context.Context, p *game.Participant) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, p.SessionID).Scan(&exists); err != nil {
			return errors.Wrap(err, "failed to check session")
		}
		if exists == 0 {
			return game.NotFoundf("session %s not found", p.SessionID)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO participants (session_id, user_id, role, preferred_role, joined_at) VALUES (?, ?, ?, ?, ?)`,
			p.SessionID, p.UserID, p.Role.String(), p.PreferredRole.String(), toMillis(p.JoinedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return game.Statef("user %s already joined session %s", p.UserID, p.SessionID)
			}
			return errors.Wrap(err, "failed to insert participant")
		}
		return nil
	})
}

// RemoveParticipant deletes a participant.
func (s *Store) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM participants WHERE session_id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return errors.Wrap(err, "failed to delete participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.NotFoundf("participant %s not found in session %s", userID, sessionID)
	}
	return nil
}

func scanParticipant(row rowScanner) (*game.Participant, error) {
	var (
		p              game.Participant
		role, pref     string
		joinedAtMillis int64
	)
	if err := row.Scan(&p.SessionID, &p.UserID, &role, &pref, &joinedAtMillis); err != nil {
		return nil, err
	}
	var err error
	if p.Role, err = game.ParseRole(role); err != nil {
		return nil, err
	}
	if p.PreferredRole, err = game.ParseRole(pref); err != nil {
		return nil, err
	}
	p.JoinedAt = fromMillis(joinedAtMillis)
	return &p, nil
}

// GetParticipant returns one participant.
func (s *Store) GetParticipant(ctx context.Context, sessionID, userID string) (*game.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, role, preferred_role, joined_at FROM participants
		 WHERE session_id = ? AND user_id = ?`,
		sessionID, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.NotFoundf("participant %s not found in session %s", userID, sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read participant")
	}
	return p, nil
}

// ListParticipants returns the participants of a session in join order.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]*game.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, role, preferred_role, joined_at FROM participants
		 WHERE session_id = ? ORDER BY joined_at, user_id`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list participants")
	}
	defer rows.Close()

	out := make([]*game.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan participant")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate participants")
}

// CountParticipants returns the number of participants of a session.
func (s *Store) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM participants WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count participants")
	}
	return n, nil
}

// AppendLocation stores a report. The row ID becomes its sequence.
func (s *Store) AppendLocation(ctx context.Context, l *game.Location) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (session_id, user_id, lat, lon, observed_at) VALUES (?, ?, ?, ?, ?)`,
		l.SessionID, l.UserID, l.Lat, l.Lon, toMillis(l.ObservedAt),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert location")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read location sequence")
	}
	l.Sequence = seq
	return nil
}

// LatestLocations returns the newest report per participant by
// (observed_at, sequence), ordered by user ID.
func (s *Store) LatestLocations(ctx context.Context, sessionID string) ([]game.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.session_id, l.user_id, l.lat, l.lon, l.observed_at, l.sequence
		 FROM locations l
		 WHERE l.session_id = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM locations n
		     WHERE n.session_id = l.session_id AND n.user_id = l.user_id
		       AND (n.observed_at > l.observed_at OR (n.observed_at = l.observed_at AND n.sequence > l.sequence))
		   )
		 ORDER BY l.user_id`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query latest locations")
	}
	defer rows.Close()

	out := make([]game.Location, 0)
	for rows.Next() {
		var (
			l          game.Location
			observedAt int64
		)
		if err := rows.Scan(&l.SessionID, &l.UserID, &l.Lat, &l.Lon, &observedAt, &l.Sequence); err != nil {
			return nil, errors.Wrap(err, "failed to scan location")
		}
		l.ObservedAt = fromMillis(observedAt)
		out = append(out, l)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate locations")
}

const photoColumns = `id, session_id, user_id, file_ref, lat, lon, inside_zone, status, submitted_at, decided_at, decided_by`

func scanPhoto(row rowScanner) (*game.Photo, error) {
	var (
		p           game.Photo
		status      string
		submittedAt int64
		decidedAt   sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.FileRef, &p.Lat, &p.Lon,
		&p.InsideZone, &status, &submittedAt, &decidedAt, &p.DecidedBy); err != nil {
		return nil, err
	}
	st, err := game.ParsePhotoStatus(status)
	if err != nil {
		return nil, err
	}
	p.Status = st
	p.SubmittedAt = fromMillis(submittedAt)
	p.DecidedAt = timePtr(decidedAt)
	return &p, nil
}

// CreatePhoto stores a new photo.
func (s *Store) CreatePhoto(ctx context.Context, p *game.Photo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.UserID, p.FileRef, p.Lat, p.Lon,
		p.InsideZone, p.Status.String(), toMillis(p.SubmittedAt), nullMillis(p.DecidedAt), p.DecidedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return game.Statef("photo %s already exists", p.ID)
		}
		return errors.Wrap(err, "failed to insert photo")
	}
	return nil
}

// GetPhoto returns a photo by ID.
func (s *Store) GetPhoto(ctx context.Context, id string) (*game.Photo, error) {
	return getPhoto(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPhoto(ctx context.Context, q queryer, id string) (*game.Photo, error) {
	p, err := scanPhoto(q.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.NotFoundf("photo %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read photo %s", id)
	}
	return p, nil
}

// ListPhotos returns the photos of a session in submission order.
func (s *Store) ListPhotos(ctx context.Context, sessionID string) ([]*game.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE session_id = ? ORDER BY submitted_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list photos")
	}
	defer rows.Close()

	out := make([]*game.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan photo")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate photos")
}

// DecidePhoto moves a pending photo to status.
func (s *Store) DecidePhoto(ctx context.Context, id string, status game.PhotoStatus, by string, at time.Time) (*game.Photo, error) {
	var out *game.Photo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getPhoto(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != game.PhotoPending {
			return game.Statef("photo %s is already %s", id, current.Status)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE photos SET status = ?, decided_at = ?, decided_by = ? WHERE id = ?`,
			status.String(), toMillis(at), by, id,
		); err != nil {
			return errors.Wrapf(err, "failed to update photo %s", id)
		}
		out, err = getPhoto(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertZone creates or replaces a zone.
func (s *Store) UpsertZone(ctx context.Context, z game.Zone) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO zones (id, district, name, lat, lon, radius_m, is_default, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   district = excluded.district,
		   name = excluded.name,
		   lat = excluded.lat,
		   lon = excluded.lon,
		   radius_m = excluded.radius_m,
		   is_default = excluded.is_default,
		   active = excluded.active`,
		z.ID, z.District, z.Name, z.Lat, z.Lon, z.RadiusMeters, z.IsDefault, z.Active,
	)
	return errors.Wrapf(err, "failed to upsert zone %s", z.ID)
}

// ListZones returns the zones of a district ordered by ID.
func (s *Store) ListZones(ctx context.Context, district string) ([]game.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, district, name, lat, lon, radius_m, is_default, active FROM zones
		 WHERE district = ? ORDER BY id`,
		district,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list zones")
	}
	defer rows.Close()

	out := make([]game.Zone, 0)
	for rows.Next() {
		var z game.Zone
		if err := rows.Scan(&z.ID, &z.District, &z.Name, &z.Lat, &z.Lon, &z.RadiusMeters, &z.IsDefault, &z.Active); err != nil {
			return nil, errors.Wrap(err, "failed to scan zone")
		}
		out = append(out, z)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate zones")
}
