package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestCreatePopulatesAllFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := New(s)

	p, err := m.Create(ctx, &model.Candidate{
		FirstName:     "Jane",
		LastName:      "Doe",
		Gender:        model.GenderFemale,
		ClassYear:     2027,
		School:        model.SchoolHarvard,
		SchoolEmail:   "jdoe@college.harvard.edu",
		PersonalEmail: "jane@gmail.com",
		Phone:         "6175551234",
	})
	require.NoError(t, err)
	require.NotZero(t, p.ID)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane", got.FirstName)
	assert.Equal(t, model.SchoolHarvard, got.School)
	assert.Equal(t, "jane@gmail.com", got.PersonalEmail)
	assert.Equal(t, 2027, got.ClassYear)
}

func TestUpdateFillsOnlyEmptyFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := New(s)

	p, err := m.Create(ctx, &model.Candidate{
		FirstName:   "Jane",
		LastName:    "Doe",
		SchoolEmail: "jdoe@college.harvard.edu",
	})
	require.NoError(t, err)

	changed, err := m.Update(ctx, p, &model.Candidate{
		FirstName:   "Jane",
		LastName:    "Doe",
		SchoolEmail: "different@mit.edu", // populated, must keep stored value
		Phone:       "6175551234",        // empty, filled
		ClassYear:   2027,
	})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe@college.harvard.edu", got.SchoolEmail)
	assert.Equal(t, "6175551234", got.PhoneNumber)
	assert.Equal(t, 2027, got.ClassYear)
}

func TestUpdateBlankFieldsNeverErase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := New(s)

	p, err := m.Create(ctx, &model.Candidate{
		FirstName:   "Jane",
		LastName:    "Doe",
		SchoolEmail: "jdoe@college.harvard.edu",
		Phone:       "6175551234",
		Gender:      model.GenderFemale,
	})
	require.NoError(t, err)

	changed, err := m.Update(ctx, p, &model.Candidate{FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe@college.harvard.edu", got.SchoolEmail)
	assert.Equal(t, "6175551234", got.PhoneNumber)
	assert.Equal(t, model.GenderFemale, got.Gender)
}

func TestUpdateSubstringNameUpgrade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := New(s)

	p, err := m.Create(ctx, &model.Candidate{FirstName: "Dan", LastName: "Goodman"})
	require.NoError(t, err)

	changed, err := m.Update(ctx, p, &model.Candidate{FirstName: "Daniel", LastName: "Goodman"})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daniel", got.FirstName)

	// A shorter form never downgrades the stored name.
	changed, err = m.Update(ctx, got, &model.Candidate{FirstName: "Dan", LastName: "Goodman"})
	require.NoError(t, err)
	assert.False(t, changed)

	got, err = s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daniel", got.FirstName)
}

func TestUpdateUnrelatedNameKept(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := New(s)

	p, err := m.Create(ctx, &model.Candidate{FirstName: "Logan", LastName: "Goodman"})
	require.NoError(t, err)

	// Fuzzy-matched rows carry a near-miss spelling; the stored name wins.
	changed, err := m.Update(ctx, p, &model.Candidate{FirstName: "Loagan", LastName: "Goodman"})
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Logan", got.FirstName)
}
