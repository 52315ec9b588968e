package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/attendance-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func personRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "first_name", "last_name", "preferred_name", "gender", "class_year", "school",
		"school_email", "personal_email", "preferred_email", "phone_number",
		"event_attendance_count", "rsvp_count", "referral_count", "created_at", "updated_at",
	})
}

func TestFindPersonByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	school := "harvard"
	schoolEmail := "jdoe@college.harvard.edu"
	year := 2027
	mock.ExpectQuery(`WHERE LOWER\(school_email\)`).
		WithArgs("jdoe@college.harvard.edu").
		WillReturnRows(personRows().AddRow(
			int64(7), "Jane", "Doe", nil, nil, &year, &school,
			&schoolEmail, nil, nil, nil,
			3, 5, 0, now, now,
		))

	p, err := s.FindPersonByEmail(context.Background(), "jdoe@college.harvard.edu")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, model.SchoolHarvard, p.School)
	assert.Equal(t, 2027, p.ClassYear)
	assert.Equal(t, 3, p.AttendanceCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPersonByEmailNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE LOWER\(school_email\)`).
		WithArgs("nobody@example.com").
		WillReturnRows(personRows())

	p, err := s.FindPersonByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPersonsByNameOrdering(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE LOWER\(first_name\)`).
		WithArgs("Jane", "Doe").
		WillReturnRows(personRows().
			AddRow(int64(2), "Jane", "Doe", nil, nil, nil, nil, nil, nil, nil, nil, 9, 9, 0, now, now).
			AddRow(int64(5), "Jane", "Doe", nil, nil, nil, nil, nil, nil, nil, nil, 1, 2, 0, now, now))

	persons, err := s.FindPersonsByName(context.Background(), "Jane", "Doe")
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, int64(2), persons[0].ID)
	assert.Equal(t, 9, persons[0].AttendanceCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePerson(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO people`).
		WithArgs("Jane", "Doe", nil, "F", 2027, "harvard",
			"jdoe@college.harvard.edu", nil, nil, "16175551234", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	p := &model.Person{
		FirstName:   "Jane",
		LastName:    "Doe",
		Gender:      model.GenderFemale,
		ClassYear:   2027,
		School:      model.SchoolHarvard,
		SchoolEmail: "jdoe@college.harvard.edu",
		PhoneNumber: "16175551234",
	}
	require.NoError(t, s.CreatePerson(context.Background(), p))
	assert.Equal(t, int64(42), p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementPersonCountersNoop(t *testing.T) {
	s, mock := newMockStore(t)

	// Neither flag set: no query should run.
	require.NoError(t, s.IncrementPersonCounters(context.Background(), 1, false, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementPersonCounters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE people SET\s+event_attendance_count`).
		WithArgs(true, true, int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.IncrementPersonCounters(context.Background(), 4, true, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReferralCountsOverwritesAll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE people SET referral_count = 0`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`UPDATE people SET referral_count = \$1`).
		WithArgs(2, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE people SET referral_count = \$1`).
		WithArgs(5, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateReferralCounts(context.Background(), map[int64]int{9: 5, 1: 2, 3: 0})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAttendanceNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, person_id, event_id, rsvp`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "person_id", "event_id", "rsvp", "approved", "checked_in",
			"rsvp_datetime", "is_first_event", "invite_token_id",
		}))

	a, err := s.GetAttendance(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAttendance(t *testing.T) {
	s, mock := newMockStore(t)
	rsvpAt := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	tokenID := int64(3)

	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(int64(7), int64(2), true, true, false, &rsvpAt, true, &tokenID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	a := &model.Attendance{
		PersonID:      7,
		EventID:       2,
		RSVP:          true,
		Approved:      true,
		RSVPAt:        &rsvpAt,
		IsFirstEvent:  true,
		InviteTokenID: &tokenID,
	}
	require.NoError(t, s.InsertAttendance(context.Background(), a))
	assert.Equal(t, int64(11), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreateInviteTokenCreates(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, category FROM invite_tokens`).
		WithArgs(int64(2), "logan").
		WillReturnRows(pgxmock.NewRows([]string{"id", "category"}))
	mock.ExpectQuery(`INSERT INTO invite_tokens`).
		WithArgs(int64(2), "personal outreach", "logan").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(6)))

	tok, err := s.FindOrCreateInviteToken(context.Background(), 2, model.TokenPersonalOutreach, "logan")
	require.NoError(t, err)
	assert.Equal(t, int64(6), tok.ID)
	assert.Equal(t, model.TokenPersonalOutreach, tok.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreateInviteTokenExisting(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, category FROM invite_tokens`).
		WithArgs(int64(2), "default").
		WillReturnRows(pgxmock.NewRows([]string{"id", "category"}).AddRow(int64(4), "mailing list"))

	tok, err := s.FindOrCreateInviteToken(context.Background(), 2, model.TokenMailingList, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(4), tok.ID)
	assert.Equal(t, model.TokenMailingList, tok.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecountEventAttendance(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance WHERE event_id`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(17))
	mock.ExpectExec(`UPDATE events SET attendance`).
		WithArgs(17, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	count, err := s.RecountEventAttendance(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 17, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRollbackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE people SET referral_count = 0`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.Tx(context.Background(), func(tx Store) error {
		if err := tx.UpdateReferralCounts(context.Background(), nil); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
