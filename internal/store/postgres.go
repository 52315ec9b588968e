package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/campus-events/attendance-cli/internal/config"
	"github.com/campus-events/attendance-cli/internal/db"
	"github.com/campus-events/attendance-cli/internal/model"
)

// querier is satisfied by both a pool and a pgx.Tx, so the same store code
// runs inside and outside transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	q    querier
	pool db.Pool // nil when scoped to a transaction
}

var _ Store = (*PostgresStore)(nil)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest lookups in the match cascade.
var preparedStatements = map[string]string{
	"find_person_by_email": findPersonByEmailSQL,
	"find_person_by_phone": findPersonByPhoneSQL,
	"find_persons_by_name": findPersonsByNameSQL,
	"get_attendance":       getAttendanceSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{q: pool, pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{q: pool, pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS people (
	id                     BIGSERIAL PRIMARY KEY,
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
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_people_school_email ON people(LOWER(school_email));
CREATE INDEX IF NOT EXISTS idx_people_personal_email ON people(LOWER(personal_email));
CREATE INDEX IF NOT EXISTS idx_people_phone ON people(phone_number);
CREATE INDEX IF NOT EXISTS idx_people_name ON people(LOWER(first_name), LOWER(last_name));

CREATE TABLE IF NOT EXISTS events (
	id             BIGSERIAL PRIMARY KEY,
	luma_event_id  TEXT NOT NULL UNIQUE,
	event_name     VARCHAR(100) NOT NULL,
	start_datetime TIMESTAMPTZ,
	location       VARCHAR(100),
	category       TEXT,
	description    TEXT,
	signup_url     TEXT,
	attendance     INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invite_tokens (
	id       BIGSERIAL PRIMARY KEY,
	event_id BIGINT NOT NULL REFERENCES events(id),
	category TEXT NOT NULL,
	value    VARCHAR(100) NOT NULL,
	UNIQUE (event_id, value)
);

CREATE INDEX IF NOT EXISTS idx_invite_tokens_category ON invite_tokens(category);

CREATE TABLE IF NOT EXISTS attendance (
	id              BIGSERIAL PRIMARY KEY,
	person_id       BIGINT NOT NULL REFERENCES people(id),
	event_id        BIGINT NOT NULL REFERENCES events(id),
	rsvp            BOOLEAN NOT NULL DEFAULT FALSE,
	approved        BOOLEAN NOT NULL DEFAULT FALSE,
	checked_in      BOOLEAN NOT NULL DEFAULT FALSE,
	rsvp_datetime   TIMESTAMPTZ,
	is_first_event  BOOLEAN NOT NULL DEFAULT FALSE,
	invite_token_id BIGINT REFERENCES invite_tokens(id),
	UNIQUE (person_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);
CREATE INDEX IF NOT EXISTS idx_attendance_person ON attendance(person_id);
CREATE INDEX IF NOT EXISTS idx_attendance_token ON attendance(invite_token_id);
`

const (
	personColumns = `id, first_name, last_name, preferred_name, gender, class_year, school,
	 school_email, personal_email, preferred_email, phone_number,
	 event_attendance_count, rsvp_count, referral_count, created_at, updated_at`

	findPersonByEmailSQL = `SELECT ` + personColumns + ` FROM people
	 WHERE LOWER(school_email) = LOWER($1) OR LOWER(personal_email) = LOWER($1)
	 ORDER BY id ASC LIMIT 1`

	findPersonByPhoneSQL = `SELECT ` + personColumns + ` FROM people
	 WHERE phone_number = $1 ORDER BY id ASC LIMIT 1`

	findPersonsByNameSQL = `SELECT ` + personColumns + ` FROM people
	 WHERE LOWER(first_name) = LOWER($1) AND LOWER(last_name) = LOWER($2)
	 ORDER BY event_attendance_count DESC, id ASC`

	getAttendanceSQL = `SELECT id, person_id, event_id, rsvp, approved, checked_in,
	 rsvp_datetime, is_first_event, invite_token_id
	 FROM attendance WHERE person_id = $1 AND event_id = $2`

	eventColumns = `id, luma_event_id, event_name, start_datetime, location, category,
	 description, signup_url, attendance, created_at, updated_at`
)

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.q.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.q.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Tx runs fn against a transaction-scoped store. Calling Tx on a store that
// is already transaction-scoped just runs fn in the same transaction.
func (s *PostgresStore) Tx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{q: tx})
	})
}

// Persons

func (s *PostgresStore) GetPerson(ctx context.Context, id int64) (*model.Person, error) {
	row := s.q.QueryRow(ctx, `SELECT `+personColumns+` FROM people WHERE id = $1`, id)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get person %d", id)
	}
	return p, nil
}

func (s *PostgresStore) FindPersonByEmail(ctx context.Context, email string) (*model.Person, error) {
	row := s.q.QueryRow(ctx, findPersonByEmailSQL, email)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find person by email")
	}
	return p, nil
}

func (s *PostgresStore) FindPersonByPhone(ctx context.Context, digits string) (*model.Person, error) {
	row := s.q.QueryRow(ctx, findPersonByPhoneSQL, digits)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find person by phone")
	}
	return p, nil
}

func (s *PostgresStore) FindPersonsByName(ctx context.Context, first, last string) ([]model.Person, error) {
	rows, err := s.q.Query(ctx, findPersonsByNameSQL, first, last)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find persons by name")
	}
	defer rows.Close()
	return collectPersons(rows, "postgres: find persons by name iterate")
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.q.Query(ctx, `SELECT `+personColumns+` FROM people ORDER BY id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list persons")
	}
	defer rows.Close()
	return collectPersons(rows, "postgres: list persons iterate")
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *model.Person) error {
	now := time.Now().UTC()
	err := s.q.QueryRow(ctx,
		`INSERT INTO people (first_name, last_name, preferred_name, gender, class_year, school,
		  school_email, personal_email, preferred_email, phone_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 RETURNING id`,
		p.FirstName, p.LastName, nullStr(p.PreferredName), nullStr(string(p.Gender)),
		nullInt(p.ClassYear), nullStr(string(p.School)), nullStr(p.SchoolEmail),
		nullStr(p.PersonalEmail), nullStr(p.PreferredEmail), nullStr(p.PhoneNumber), now,
	).Scan(&p.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert person")
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE people SET first_name = $1, last_name = $2, preferred_name = $3, gender = $4,
		  class_year = $5, school = $6, school_email = $7, personal_email = $8,
		  preferred_email = $9, phone_number = $10, updated_at = now()
		 WHERE id = $11`,
		p.FirstName, p.LastName, nullStr(p.PreferredName), nullStr(string(p.Gender)),
		nullInt(p.ClassYear), nullStr(string(p.School)), nullStr(p.SchoolEmail),
		nullStr(p.PersonalEmail), nullStr(p.PreferredEmail), nullStr(p.PhoneNumber), p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update person %d", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %d", p.ID)
	}
	return nil
}

func (s *PostgresStore) IncrementPersonCounters(ctx context.Context, personID int64, checkedIn, rsvp bool) error {
	if !checkedIn && !rsvp {
		return nil
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE people SET
		  event_attendance_count = event_attendance_count + CASE WHEN $1 THEN 1 ELSE 0 END,
		  rsvp_count = rsvp_count + CASE WHEN $2 THEN 1 ELSE 0 END,
		  updated_at = now()
		 WHERE id = $3`,
		checkedIn, rsvp, personID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment counters for person %d", personID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %d", personID)
	}
	return nil
}

// UpdateReferralCounts overwrites referral_count for the whole roster:
// everyone is zeroed, then the supplied counts are applied. Run inside Tx
// so readers never observe the zeroed intermediate state.
func (s *PostgresStore) UpdateReferralCounts(ctx context.Context, counts map[int64]int) error {
	if _, err := s.q.Exec(ctx,
		`UPDATE people SET referral_count = 0, updated_at = now() WHERE referral_count <> 0`,
	); err != nil {
		return eris.Wrap(err, "postgres: zero referral counts")
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
		if _, err := s.q.Exec(ctx,
			`UPDATE people SET referral_count = $1, updated_at = now() WHERE id = $2`,
			counts[id], id,
		); err != nil {
			return eris.Wrapf(err, "postgres: set referral count for person %d", id)
		}
	}
	return nil
}

func (s *PostgresStore) RecountPersonAttendance(ctx context.Context, eventID int64) (int, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE people SET event_attendance_count = (
		   SELECT COUNT(*) FROM attendance
		   WHERE person_id = people.id AND checked_in = TRUE
		 ), updated_at = now()
		 WHERE id IN (SELECT DISTINCT person_id FROM attendance WHERE event_id = $1)`,
		eventID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: recount person attendance for event %d", eventID)
	}
	return int(tag.RowsAffected()), nil
}

// Events

func (s *PostgresStore) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := s.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get event %d", id)
	}
	return e, nil
}

func (s *PostgresStore) FindEventByLumaID(ctx context.Context, lumaEventID string) (*model.Event, error) {
	row := s.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE luma_event_id = $1`, lumaEventID)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find event by luma id")
	}
	return e, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.q.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_datetime DESC NULLS LAST`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	now := time.Now().UTC()
	err := s.q.QueryRow(ctx,
		`INSERT INTO events (luma_event_id, event_name, start_datetime, location, category,
		  description, signup_url, attendance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 RETURNING id`,
		e.LumaEventID, truncate(e.Name, 100), e.StartAt, nullStr(truncate(e.Location, 100)),
		nullStr(e.Category), nullStr(e.Description), nullStr(e.SignupURL), e.Attendance, now,
	).Scan(&e.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert event")
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// FillEventMetadata updates only fields that are currently empty, so synced
// metadata never clobbers curated values.
func (s *PostgresStore) FillEventMetadata(ctx context.Context, e *model.Event) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE events SET
		  event_name     = COALESCE(NULLIF(event_name, ''), $2, event_name),
		  start_datetime = COALESCE(start_datetime, $3),
		  location       = COALESCE(location, $4),
		  description    = COALESCE(description, $5),
		  signup_url     = COALESCE(signup_url, $6),
		  updated_at     = now()
		 WHERE id = $1`,
		e.ID, nullStr(truncate(e.Name, 100)), e.StartAt, nullStr(truncate(e.Location, 100)),
		nullStr(e.Description), nullStr(e.SignupURL),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fill event metadata %d", e.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("event not found: %d", e.ID)
	}
	return nil
}

func (s *PostgresStore) RecountEventAttendance(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance WHERE event_id = $1 AND checked_in = TRUE`,
		eventID,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count attendance for event %d", eventID)
	}

	if _, err := s.q.Exec(ctx,
		`UPDATE events SET attendance = $1, updated_at = now() WHERE id = $2`,
		count, eventID,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: update attendance for event %d", eventID)
	}
	return count, nil
}

// Invite tokens

func (s *PostgresStore) FindOrCreateInviteToken(ctx context.Context, eventID int64, category model.TokenCategory, value string) (*model.InviteToken, error) {
	t := &model.InviteToken{EventID: eventID, Category: category, Value: value}

	err := s.q.QueryRow(ctx,
		`SELECT id, category FROM invite_tokens WHERE event_id = $1 AND value = $2`,
		eventID, value,
	).Scan(&t.ID, &t.Category)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(err, "postgres: find invite token")
	}

	err = s.q.QueryRow(ctx,
		`INSERT INTO invite_tokens (event_id, category, value) VALUES ($1, $2, $3) RETURNING id`,
		eventID, string(category), value,
	).Scan(&t.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert invite token")
	}
	t.Category = category
	return t, nil
}

func (s *PostgresStore) ListTokenRSVPs(ctx context.Context) ([]TokenRSVP, error) {
	rows, err := s.q.Query(ctx,
		`SELECT DISTINCT t.value, a.person_id, a.event_id
		 FROM invite_tokens t
		 JOIN attendance a ON a.invite_token_id = t.id
		 WHERE t.category = $1 AND a.rsvp = TRUE`,
		string(model.TokenPersonalOutreach),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list token rsvps")
	}
	defer rows.Close()

	var out []TokenRSVP
	for rows.Next() {
		var tr TokenRSVP
		if err := rows.Scan(&tr.TokenValue, &tr.PersonID, &tr.EventID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan token rsvp")
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list token rsvps iterate")
}

// Attendance

func (s *PostgresStore) GetAttendance(ctx context.Context, personID, eventID int64) (*model.Attendance, error) {
	row := s.q.QueryRow(ctx, getAttendanceSQL, personID, eventID)
	a, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get attendance")
	}
	return a, nil
}

func (s *PostgresStore) CountAttendance(ctx context.Context, personID int64) (int, error) {
	var count int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance WHERE person_id = $1`, personID,
	).Scan(&count)
	return count, eris.Wrapf(err, "postgres: count attendance for person %d", personID)
}

func (s *PostgresStore) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO attendance (person_id, event_id, rsvp, approved, checked_in,
		  rsvp_datetime, is_first_event, invite_token_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		a.PersonID, a.EventID, a.RSVP, a.Approved, a.CheckedIn,
		a.RSVPAt, a.IsFirstEvent, a.InviteTokenID,
	).Scan(&a.ID)
	return eris.Wrap(err, "postgres: insert attendance")
}

// UpdateAttendance overwrites the mutable fields in place. is_first_event is
// frozen at insert time and never rewritten here.
func (s *PostgresStore) UpdateAttendance(ctx context.Context, a *model.Attendance) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE attendance SET rsvp = $1, approved = $2, checked_in = $3,
		  rsvp_datetime = $4, invite_token_id = $5
		 WHERE id = $6`,
		a.RSVP, a.Approved, a.CheckedIn, a.RSVPAt, a.InviteTokenID, a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update attendance %d", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("attendance not found: %d", a.ID)
	}
	return nil
}

// scan helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanPerson(row scannable) (*model.Person, error) {
	var p model.Person
	var preferred, gender, school, schoolEmail, personalEmail, preferredEmail, phone *string
	var classYear *int

	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &preferred, &gender, &classYear, &school,
		&schoolEmail, &personalEmail, &preferredEmail, &phone,
		&p.AttendanceCount, &p.RSVPCount, &p.ReferralCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.PreferredName = deref(preferred)
	p.Gender = model.Gender(deref(gender))
	p.School = model.School(deref(school))
	p.SchoolEmail = deref(schoolEmail)
	p.PersonalEmail = deref(personalEmail)
	p.PreferredEmail = deref(preferredEmail)
	p.PhoneNumber = deref(phone)
	if classYear != nil {
		p.ClassYear = *classYear
	}
	return &p, nil
}

func collectPersons(rows pgx.Rows, wrapMsg string) ([]model.Person, error) {
	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		persons = append(persons, *p)
	}
	return persons, eris.Wrap(rows.Err(), wrapMsg)
}

func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var location, category, description, signupURL *string

	err := row.Scan(&e.ID, &e.LumaEventID, &e.Name, &e.StartAt, &location, &category,
		&description, &signupURL, &e.Attendance, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Location = deref(location)
	e.Category = deref(category)
	e.Description = deref(description)
	e.SignupURL = deref(signupURL)
	return &e, nil
}

func scanAttendance(row scannable) (*model.Attendance, error) {
	var a model.Attendance
	err := row.Scan(&a.ID, &a.PersonID, &a.EventID, &a.RSVP, &a.Approved, &a.CheckedIn,
		&a.RSVPAt, &a.IsFirstEvent, &a.InviteTokenID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
