// Package sync reconciles the local event table with the platform calendar
// and pulls guest exports for past events that have never been imported.
package sync

import (
	"bytes"
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campus-events/attendance-cli/internal/config"
	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/pipeline"
	"github.com/campus-events/attendance-cli/internal/store"
	"github.com/campus-events/attendance-cli/pkg/luma"
)

type Syncer struct {
	store    store.Store
	client   luma.Client
	pipeline *pipeline.Pipeline

	calendarID   string
	lookbackDays int
	maxDownloads int
	now          func() time.Time
}

type Option func(*Syncer)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func New(st store.Store, client luma.Client, p *pipeline.Pipeline, cfg config.LumaConfig, maxDownloads int, opts ...Option) *Syncer {
	s := &Syncer{
		store:        st,
		client:       client,
		pipeline:     p,
		calendarID:   cfg.CalendarID,
		lookbackDays: cfg.LookbackDays,
		maxDownloads: maxDownloads,
		now:          time.Now,
	}
	if s.lookbackDays <= 0 {
		s.lookbackDays = 90
	}
	if s.maxDownloads <= 0 {
		s.maxDownloads = 4
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report summarizes one sync run.
type Report struct {
	EventsSeen    int                   `json:"events_seen"`
	EventsCreated int                   `json:"events_created"`
	EventsFilled  int                   `json:"events_filled"`
	Batches       []*model.BatchSummary `json:"batches,omitempty"`
}

// Run fetches the calendar, creates or fills event rows, then imports guest
// exports for past events that still show zero attendance. Exports download
// concurrently, but the imports themselves run strictly one at a time: the
// match cascade needs each batch's writes committed before the next starts.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	now := s.now().UTC()
	after := now.AddDate(0, 0, -s.lookbackDays)

	remote, err := s.client.ListEvents(ctx, s.calendarID, after)
	if err != nil {
		return nil, eris.Wrap(err, "sync: list events")
	}

	report := &Report{EventsSeen: len(remote)}
	var pending []*model.Event

	for _, re := range remote {
		event, created, filled, err := s.upsertEvent(ctx, re)
		if err != nil {
			return report, err
		}
		if created {
			report.EventsCreated++
		} else if filled {
			report.EventsFilled++
		}
		// Past events with no recorded attendance have never been imported.
		if event.Attendance == 0 && re.StartAt != nil && re.StartAt.Before(now.Add(-24*time.Hour)) {
			pending = append(pending, event)
		}
	}

	if len(pending) == 0 {
		zap.L().Info("sync complete, nothing to import", zap.Int("events", len(remote)))
		return report, nil
	}

	exports, err := s.download(ctx, pending)
	if err != nil {
		return report, err
	}

	for i, event := range pending {
		if exports[i] == nil {
			continue
		}
		summary, err := s.pipeline.ImportReader(ctx, event.ID, bytes.NewReader(exports[i]))
		if err != nil {
			zap.L().Error("sync import failed",
				zap.Int64("event_id", event.ID),
				zap.String("event", event.Name),
				zap.Error(err))
			if summary == nil {
				continue
			}
		}
		if summary != nil {
			report.Batches = append(report.Batches, summary)
		}
	}
	return report, nil
}

// upsertEvent creates a missing event row or fills empty metadata on an
// existing one; curated fields are never overwritten. The second return
// reports creation, the third that at least one empty field was filled.
func (s *Syncer) upsertEvent(ctx context.Context, re luma.Event) (*model.Event, bool, bool, error) {
	event, err := s.store.FindEventByLumaID(ctx, re.APIID)
	if err != nil {
		return nil, false, false, eris.Wrap(err, "sync: find event")
	}

	if event == nil {
		event = &model.Event{
			LumaEventID: re.APIID,
			Name:        re.Name,
			StartAt:     re.StartAt,
			Location:    re.Location(),
			Description: re.Description,
			SignupURL:   re.URL,
		}
		if err := s.store.CreateEvent(ctx, event); err != nil {
			return nil, false, false, eris.Wrap(err, "sync: create event")
		}
		zap.L().Info("event created",
			zap.String("luma_event_id", re.APIID),
			zap.String("name", re.Name))
		return event, true, false, nil
	}

	fills := event.Name == "" && re.Name != "" ||
		event.StartAt == nil && re.StartAt != nil ||
		event.Location == "" && re.Location() != "" ||
		event.Description == "" && re.Description != "" ||
		event.SignupURL == "" && re.URL != ""
	if !fills {
		return event, false, false, nil
	}

	fill := &model.Event{
		ID:          event.ID,
		Name:        re.Name,
		StartAt:     re.StartAt,
		Location:    re.Location(),
		Description: re.Description,
		SignupURL:   re.URL,
	}
	if err := s.store.FillEventMetadata(ctx, fill); err != nil {
		return nil, false, false, eris.Wrap(err, "sync: fill event metadata")
	}
	return event, false, true, nil
}

// download fetches guest exports concurrently, bounded by maxDownloads. A
// failed download logs and leaves a nil slot; the others still import.
func (s *Syncer) download(ctx context.Context, events []*model.Event) ([][]byte, error) {
	exports := make([][]byte, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxDownloads)
	for i, event := range events {
		g.Go(func() error {
			var buf bytes.Buffer
			if err := s.client.DownloadExport(gctx, event.LumaEventID, &buf); err != nil {
				zap.L().Warn("export download failed",
					zap.String("luma_event_id", event.LumaEventID),
					zap.Error(err))
				return nil
			}
			exports[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "sync: download exports")
	}
	return exports, nil
}
