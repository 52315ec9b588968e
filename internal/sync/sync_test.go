package sync

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/attendance-cli/internal/config"
	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/pipeline"
	"github.com/campus-events/attendance-cli/internal/store"
	"github.com/campus-events/attendance-cli/pkg/luma"
)

const exportBody = "First Name,Last Name,Email,Order Status,Tickets Scanned\nJane,Doe,jane@mit.edu,completed,1\n"

type fakeClient struct {
	events  []luma.Event
	exports map[string]string
	failing map[string]bool
}

func (f *fakeClient) ListEvents(ctx context.Context, calendarID string, after time.Time) ([]luma.Event, error) {
	return f.events, nil
}

func (f *fakeClient) DownloadExport(ctx context.Context, eventAPIID string, w io.Writer) error {
	if f.failing[eventAPIID] {
		return eris.New("export not ready")
	}
	_, err := io.WriteString(w, f.exports[eventAPIID])
	return err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newSyncer(s store.Store, client luma.Client, now time.Time) *Syncer {
	columns := map[string]string{
		"first_name": "First Name",
		"last_name":  "Last Name",
		"email":      "Email",
		"approved":   "Order Status",
		"checked_in": "Tickets Scanned",
	}
	p := pipeline.New(s, config.ImportConfig{Columns: columns, FuzzyThreshold: 0.80})
	return New(s, client, p, config.LumaConfig{CalendarID: "cal-1", LookbackDays: 90}, 2,
		WithNow(func() time.Time { return now }))
}

func TestRunCreatesAndImportsPastEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	past := now.AddDate(0, 0, -7)
	future := now.AddDate(0, 0, 7)
	client := &fakeClient{
		events: []luma.Event{
			{APIID: "evt-past", Name: "Demo Night", StartAt: &past},
			{APIID: "evt-future", Name: "Spring Social", StartAt: &future},
		},
		exports: map[string]string{"evt-past": exportBody},
	}

	report, err := newSyncer(s, client, now).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.EventsSeen)
	assert.Equal(t, 2, report.EventsCreated)
	require.Len(t, report.Batches, 1, "only the past event imports")
	assert.Equal(t, 1, report.Batches[0].Created)
	assert.Equal(t, 1, report.Batches[0].EventAttendance)

	pastEvent, err := s.FindEventByLumaID(ctx, "evt-past")
	require.NoError(t, err)
	assert.Equal(t, 1, pastEvent.Attendance)

	futureEvent, err := s.FindEventByLumaID(ctx, "evt-future")
	require.NoError(t, err)
	assert.Zero(t, futureEvent.Attendance)
}

func TestRunSkipsAlreadyImportedEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -7)

	client := &fakeClient{
		events:  []luma.Event{{APIID: "evt-past", Name: "Demo Night", StartAt: &past}},
		exports: map[string]string{"evt-past": exportBody},
	}
	syncer := newSyncer(s, client, now)

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Batches, 1)

	// Second run: attendance is non-zero, so no re-import, and the
	// already-complete event does not count as filled.
	report, err = syncer.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Batches)
	assert.Equal(t, 1, report.EventsSeen)
	assert.Zero(t, report.EventsCreated)
	assert.Zero(t, report.EventsFilled)
}

func TestRunFillsMetadataWithoutOverwriting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 7)

	existing := &model.Event{LumaEventID: "evt-1", Name: "Curated Name"}
	require.NoError(t, s.CreateEvent(ctx, existing))

	client := &fakeClient{events: []luma.Event{{
		APIID:       "evt-1",
		Name:        "Platform Name",
		StartAt:     &future,
		Description: "from platform",
	}}}

	report, err := newSyncer(s, client, now).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EventsFilled)

	got, err := s.FindEventByLumaID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Curated Name", got.Name, "populated name keeps curated value")
	assert.Equal(t, "from platform", got.Description, "empty description is filled")
	require.NotNil(t, got.StartAt)
}

func TestRunFailedDownloadSkipsImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -7)

	client := &fakeClient{
		events: []luma.Event{
			{APIID: "evt-broken", Name: "Broken", StartAt: &past},
			{APIID: "evt-ok", Name: "Fine", StartAt: &past},
		},
		exports: map[string]string{"evt-ok": exportBody},
		failing: map[string]bool{"evt-broken": true},
	}

	report, err := newSyncer(s, client, now).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Batches, 1)
	assert.Equal(t, "Fine", report.Batches[0].EventName)
}
