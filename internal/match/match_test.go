package match

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

func seedPerson(t *testing.T, s store.Store, p *model.Person) *model.Person {
	t.Helper()
	require.NoError(t, s.CreatePerson(context.Background(), p))
	return p
}

func TestFindEmailOutranksFuzzyName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := seedPerson(t, s, &model.Person{FirstName: "Alex", LastName: "Chen", SchoolEmail: "achen@mit.edu"})
	seedPerson(t, s, &model.Person{FirstName: "Logan", LastName: "Goodman"})

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{
		FirstName:   "Loagan",
		LastName:    "Goodman",
		SchoolEmail: "achen@mit.edu",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, a.ID, res.Person.ID)
	assert.Equal(t, StageEmail, res.Stage)
}

func TestFindPhoneStage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedPerson(t, s, &model.Person{FirstName: "Jane", LastName: "Doe", PhoneNumber: "6175551234"})

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{FirstName: "Janet", LastName: "Doer", Phone: "6175551234"})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, p.ID, res.Person.ID)
	assert.Equal(t, StagePhone, res.Stage)
}

func TestFindExactNameCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedPerson(t, s, &model.Person{FirstName: "Logan", LastName: "Goodman", SchoolEmail: "logan@x.edu"})

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{FirstName: "Logan", LastName: "Goodman"})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, p.ID, res.Person.ID)
	assert.Equal(t, StageExactName, res.Stage)
}

func TestFindHyphenatedNameVariant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedPerson(t, s, &model.Person{FirstName: "Mary Jane", LastName: "Watson"})

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{FirstName: "Mary-Jane", LastName: "Watson"})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, p.ID, res.Person.ID)
	assert.Equal(t, StageExactName, res.Stage)
}

func TestFindFuzzyThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Similarity("abcde", "abcdx") is exactly 0.80: one substitution over
	// five characters.
	p := seedPerson(t, s, &model.Person{FirstName: "Abcde", LastName: "Goodman"})
	m := New(s, 0.80)

	res, err := m.Find(ctx, &model.Candidate{FirstName: "Abcdx", LastName: "Goodman"})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, p.ID, res.Person.ID)
	assert.Equal(t, StageFuzzyName, res.Stage)
	assert.InDelta(t, 0.80, res.Score, 1e-9)

	// One substitution over four characters is 0.75: below threshold.
	res, err = m.Find(ctx, &model.Candidate{FirstName: "Abcx", LastName: "Goodman"})
	require.NoError(t, err)
	assert.Nil(t, res.Person)
	assert.Equal(t, StageNone, res.Stage)
}

func TestFindFuzzyRequiresSameLastName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedPerson(t, s, &model.Person{FirstName: "Logan", LastName: "Goodman"})

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{FirstName: "Loagan", LastName: "Hoffman"})
	require.NoError(t, err)
	assert.Nil(t, res.Person)
}

func TestFindFuzzyTieBreakAttendanceThenID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Both first names are one substitution away from the candidate.
	lo := seedPerson(t, s, &model.Person{FirstName: "Abcdx", LastName: "Goodman"})
	hi := seedPerson(t, s, &model.Person{FirstName: "Abcdy", LastName: "Goodman"})
	require.NoError(t, s.IncrementPersonCounters(ctx, hi.ID, true, true))

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{FirstName: "Abcde", LastName: "Goodman"})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, hi.ID, res.Person.ID)
	assert.True(t, res.LowConfidence)

	// Equal counts fall back to the lowest id.
	require.NoError(t, s.IncrementPersonCounters(ctx, lo.ID, true, true))
	res, err = m.Find(ctx, &model.Candidate{FirstName: "Abcde", LastName: "Goodman"})
	require.NoError(t, err)
	require.NotNil(t, res.Person)
	assert.Equal(t, lo.ID, res.Person.ID)
}

func TestFindNoMatchSignalsCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := New(s, 0.80)
	res, err := m.Find(ctx, &model.Candidate{FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)
	assert.Nil(t, res.Person)
	assert.Equal(t, StageNone, res.Stage)
	assert.False(t, res.LowConfidence, "only a matched person can be low-confidence")
}
