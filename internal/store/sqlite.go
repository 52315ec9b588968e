package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/campus-events/attendance-cli/internal/model"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	q  sqlQuerier
	db *sql.DB // nil when scoped to a transaction
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer connection: avoids SQLITE_BUSY under concurrent use and
	// keeps :memory: databases visible across the pool.
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{q: sqlDB, db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS people (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name             TEXT NOT NULL,
	last_name              TEXT NOT NULL,
	preferred_name         TEXT,
	gender                 TEXT,
	class_year             INTEGER,
	school                 TEXT,
	school_email           TEXT,
	personal_email         TEXT,
	preferred_email        TEXT,
	phone_number           TEXT,
	event_attendance_count INTEGER NOT NULL DEFAULT 0,
	rsvp_count             INTEGER NOT NULL DEFAULT 0,
	referral_count         INTEGER NOT NULL DEFAULT 0,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_people_school_email ON people(school_email COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_people_personal_email ON people(personal_email COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_people_phone ON people(phone_number);
CREATE INDEX IF NOT EXISTS idx_people_name ON people(first_name COLLATE NOCASE, last_name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	luma_event_id  TEXT NOT NULL UNIQUE,
	event_name     TEXT NOT NULL,
	start_datetime DATETIME,
	location       TEXT,
	category       TEXT,
	description    TEXT,
	signup_url     TEXT,
	attendance     INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS invite_tokens (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id INTEGER NOT NULL REFERENCES events(id),
	category TEXT NOT NULL,
	value    TEXT NOT NULL,
	UNIQUE (event_id, value)
);

CREATE INDEX IF NOT EXISTS idx_invite_tokens_category ON invite_tokens(category);

CREATE TABLE IF NOT EXISTS attendance (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	person_id       INTEGER NOT NULL REFERENCES people(id),
	event_id        INTEGER NOT NULL REFERENCES events(id),
	rsvp            INTEGER NOT NULL DEFAULT 0,
	approved        INTEGER NOT NULL DEFAULT 0,
	checked_in      INTEGER NOT NULL DEFAULT 0,
	rsvp_datetime   DATETIME,
	is_first_event  INTEGER NOT NULL DEFAULT 0,
	invite_token_id INTEGER REFERENCES invite_tokens(id),
	UNIQUE (person_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);
CREATE INDEX IF NOT EXISTS idx_attendance_person ON attendance(person_id);
CREATE INDEX IF NOT EXISTS idx_attendance_token ON attendance(invite_token_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db != nil {
		return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
	}
	_, err := s.q.ExecContext(ctx, "SELECT 1")
	return eris.Wrap(err, "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Tx runs fn against a transaction-scoped store. Calling Tx on a store that
// is already transaction-scoped just runs fn in the same transaction.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// Persons

func (s *SQLiteStore) GetPerson(ctx context.Context, id int64) (*model.Person, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get person %d", id)
	}
	return p, nil
}

func (s *SQLiteStore) FindPersonByEmail(ctx context.Context, email string) (*model.Person, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people
		 WHERE LOWER(school_email) = LOWER(?) OR LOWER(personal_email) = LOWER(?)
		 ORDER BY id ASC LIMIT 1`,
		email, email,
	)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find person by email")
	}
	return p, nil
}

func (s *SQLiteStore) FindPersonByPhone(ctx context.Context, digits string) (*model.Person, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE phone_number = ? ORDER BY id ASC LIMIT 1`,
		digits,
	)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find person by phone")
	}
	return p, nil
}

func (s *SQLiteStore) FindPersonsByName(ctx context.Context, first, last string) ([]model.Person, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+personColumns+` FROM people
		 WHERE LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?)
		 ORDER BY event_attendance_count DESC, id ASC`,
		first, last,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find persons by name")
	}
	defer rows.Close()
	return collectSQLPersons(rows, "sqlite: find persons by name iterate")
}

func (s *SQLiteStore) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+personColumns+` FROM people ORDER BY id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list persons")
	}
	defer rows.Close()
	return collectSQLPersons(rows, "sqlite: list persons iterate")
}

func (s *SQLiteStore) CreatePerson(ctx context.Context, p *model.Person) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO people (first_name, last_name, preferred_name, gender, class_year, school,
		  school_email, personal_email, preferred_email, phone_number, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FirstName, p.LastName, nullStr(p.PreferredName), nullStr(string(p.Gender)),
		nullInt(p.ClassYear), nullStr(string(p.School)), nullStr(p.SchoolEmail),
		nullStr(p.PersonalEmail), nullStr(p.PreferredEmail), nullStr(p.PhoneNumber), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert person")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE people SET first_name = ?, last_name = ?, preferred_name = ?, gender = ?,
		  class_year = ?, school = ?, school_email = ?, personal_email = ?,
		  preferred_email = ?, phone_number = ?, updated_at = ?
		 WHERE id = ?`,
		p.FirstName, p.LastName, nullStr(p.PreferredName), nullStr(string(p.Gender)),
		nullInt(p.ClassYear), nullStr(string(p.School)), nullStr(p.SchoolEmail),
		nullStr(p.PersonalEmail), nullStr(p.PreferredEmail), nullStr(p.PhoneNumber),
		time.Now().UTC(), p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update person %d", p.ID)
	}
	return checkRowsAffected(res, "person", p.ID)
}

func (s *SQLiteStore) IncrementPersonCounters(ctx context.Context, personID int64, checkedIn, rsvp bool) error {
	if !checkedIn && !rsvp {
		return nil
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE people SET
		  event_attendance_count = event_attendance_count + CASE WHEN ? THEN 1 ELSE 0 END,
		  rsvp_count = rsvp_count + CASE WHEN ? THEN 1 ELSE 0 END,
		  updated_at = ?
		 WHERE id = ?`,
		checkedIn, rsvp, time.Now().UTC(), personID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment counters for person %d", personID)
	}
	return checkRowsAffected(res, "person", personID)
}

func (s *SQLiteStore) UpdateReferralCounts(ctx context.Context, counts map[int64]int) error {
	if _, err := s.q.ExecContext(ctx,
		`UPDATE people SET referral_count = 0, updated_at = ? WHERE referral_count <> 0`,
		time.Now().UTC(),
	); err != nil {
		return eris.Wrap(err, "sqlite: zero referral counts")
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if counts[id] == 0 {
			continue
		}
		if _, err := s.q.ExecContext(ctx,
			`UPDATE people SET referral_count = ?, updated_at = ? WHERE id = ?`,
			counts[id], time.Now().UTC(), id,
		); err != nil {
			return eris.Wrapf(err, "sqlite: set referral count for person %d", id)
		}
	}
	return nil
}

func (s *SQLiteStore) RecountPersonAttendance(ctx context.Context, eventID int64) (int, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE people SET event_attendance_count = (
		   SELECT COUNT(*) FROM attendance
		   WHERE person_id = people.id AND checked_in = 1
		 ), updated_at = ?
		 WHERE id IN (SELECT DISTINCT person_id FROM attendance WHERE event_id = ?)`,
		time.Now().UTC(), eventID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: recount person attendance for event %d", eventID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Events

func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get event %d", id)
	}
	return e, nil
}

func (s *SQLiteStore) FindEventByLumaID(ctx context.Context, lumaEventID string) (*model.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE luma_event_id = ?`, lumaEventID)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find event by luma id")
	}
	return e, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY start_datetime IS NULL, start_datetime DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, e *model.Event) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO events (luma_event_id, event_name, start_datetime, location, category,
		  description, signup_url, attendance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LumaEventID, truncate(e.Name, 100), e.StartAt, nullStr(truncate(e.Location, 100)),
		nullStr(e.Category), nullStr(e.Description), nullStr(e.SignupURL), e.Attendance, now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert event")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) FillEventMetadata(ctx context.Context, e *model.Event) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE events SET
		  event_name     = COALESCE(NULLIF(event_name, ''), ?, event_name),
		  start_datetime = COALESCE(start_datetime, ?),
		  location       = COALESCE(location, ?),
		  description    = COALESCE(description, ?),
		  signup_url     = COALESCE(signup_url, ?),
		  updated_at     = ?
		 WHERE id = ?`,
		nullStr(truncate(e.Name, 100)), e.StartAt, nullStr(truncate(e.Location, 100)),
		nullStr(e.Description), nullStr(e.SignupURL), time.Now().UTC(), e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fill event metadata %d", e.ID)
	}
	return checkRowsAffected(res, "event", e.ID)
}

func (s *SQLiteStore) RecountEventAttendance(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE event_id = ? AND checked_in = 1`, eventID,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count attendance for event %d", eventID)
	}

	if _, err := s.q.ExecContext(ctx,
		`UPDATE events SET attendance = ?, updated_at = ? WHERE id = ?`,
		count, time.Now().UTC(), eventID,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: update attendance for event %d", eventID)
	}
	return count, nil
}

// Invite tokens

func (s *SQLiteStore) FindOrCreateInviteToken(ctx context.Context, eventID int64, category model.TokenCategory, value string) (*model.InviteToken, error) {
	t := &model.InviteToken{EventID: eventID, Category: category, Value: value}

	err := s.q.QueryRowContext(ctx,
		`SELECT id, category FROM invite_tokens WHERE event_id = ? AND value = ?`,
		eventID, value,
	).Scan(&t.ID, &t.Category)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(err, "sqlite: find invite token")
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO invite_tokens (event_id, category, value) VALUES (?, ?, ?)`,
		eventID, string(category), value,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert invite token")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}
	t.ID = id
	t.Category = category
	return t, nil
}

func (s *SQLiteStore) ListTokenRSVPs(ctx context.Context) ([]TokenRSVP, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT DISTINCT t.value, a.person_id, a.event_id
		 FROM invite_tokens t
		 JOIN attendance a ON a.invite_token_id = t.id
		 WHERE t.category = ? AND a.rsvp = 1`,
		string(model.TokenPersonalOutreach),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list token rsvps")
	}
	defer rows.Close()

	var out []TokenRSVP
	for rows.Next() {
		var tr TokenRSVP
		if err := rows.Scan(&tr.TokenValue, &tr.PersonID, &tr.EventID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan token rsvp")
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list token rsvps iterate")
}

// Attendance

func (s *SQLiteStore) GetAttendance(ctx context.Context, personID, eventID int64) (*model.Attendance, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, person_id, event_id, rsvp, approved, checked_in,
		  rsvp_datetime, is_first_event, invite_token_id
		 FROM attendance WHERE person_id = ? AND event_id = ?`,
		personID, eventID,
	)
	a, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get attendance")
	}
	return a, nil
}

func (s *SQLiteStore) CountAttendance(ctx context.Context, personID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE person_id = ?`, personID,
	).Scan(&count)
	return count, eris.Wrapf(err, "sqlite: count attendance for person %d", personID)
}

func (s *SQLiteStore) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO attendance (person_id, event_id, rsvp, approved, checked_in,
		  rsvp_datetime, is_first_event, invite_token_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PersonID, a.EventID, a.RSVP, a.Approved, a.CheckedIn,
		a.RSVPAt, a.IsFirstEvent, a.InviteTokenID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert attendance")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	a.ID = id
	return nil
}

func (s *SQLiteStore) UpdateAttendance(ctx context.Context, a *model.Attendance) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE attendance SET rsvp = ?, approved = ?, checked_in = ?,
		  rsvp_datetime = ?, invite_token_id = ?
		 WHERE id = ?`,
		a.RSVP, a.Approved, a.CheckedIn, a.RSVPAt, a.InviteTokenID, a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update attendance %d", a.ID)
	}
	return checkRowsAffected(res, "attendance", a.ID)
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

func collectSQLPersons(rows *sql.Rows, wrapMsg string) ([]model.Person, error) {
	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person")
		}
		persons = append(persons, *p)
	}
	return persons, eris.Wrap(rows.Err(), wrapMsg)
}
