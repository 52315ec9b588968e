// Package pipeline drives one import batch end to end: decode, normalize,
// match, merge, upsert, then the batch-global aggregation pass.
package pipeline

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campus-events/attendance-cli/internal/attendance"
	"github.com/campus-events/attendance-cli/internal/config"
	"github.com/campus-events/attendance-cli/internal/match"
	"github.com/campus-events/attendance-cli/internal/merge"
	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/normalize"
	"github.com/campus-events/attendance-cli/internal/referral"
	"github.com/campus-events/attendance-cli/internal/store"
)

type Pipeline struct {
	store      store.Store
	normalizer *normalize.Normalizer
	columns    map[string]string
	threshold  float64
}

type Option func(*Pipeline)

// WithNormalizer overrides the row normalizer (tests pin the clock).
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

func New(st store.Store, cfg config.ImportConfig, opts ...Option) *Pipeline {
	columns := cfg.Columns
	if len(columns) == 0 {
		columns = config.DefaultColumns()
	}
	p := &Pipeline{
		store:      st,
		normalizer: normalize.New(),
		columns:    columns,
		threshold:  cfg.FuzzyThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ImportFile runs one export file as a batch against the given event.
func (p *Pipeline) ImportFile(ctx context.Context, eventID int64, path string) (*model.BatchSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open %s", path)
	}
	defer f.Close()
	return p.ImportReader(ctx, eventID, f)
}

// ImportReader processes every row of one export batch sequentially. Rows
// are isolated: each runs in its own transaction and a failing row is
// reported and skipped, never aborting the batch. Matching depends on seeing
// prior rows' inserts, so rows are never processed concurrently.
//
// A batch where every attempted row fails is treated as a store outage and
// returned as an error alongside the summary.
func (p *Pipeline) ImportReader(ctx context.Context, eventID int64, r io.Reader) (*model.BatchSummary, error) {
	event, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load event")
	}
	if event == nil {
		return nil, eris.Errorf("pipeline: event not found: %d", eventID)
	}

	rows, decodeFailures, err := decodeRows(r, p.columns)
	if err != nil {
		return nil, err
	}

	summary := &model.BatchSummary{
		BatchID:   uuid.New().String(),
		EventID:   eventID,
		EventName: event.Name,
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(
		zap.String("batch_id", summary.BatchID),
		zap.Int64("event_id", eventID),
		zap.String("event", event.Name),
	)
	log.Info("batch started", zap.Int("rows", len(rows)))

	for _, f := range decodeFailures {
		summary.Processed++
		summary.Skipped++
		summary.Failures = append(summary.Failures, f)
		log.Warn("row unreadable", zap.Int("row", f.Row), zap.String("reason", f.Reason))
	}

	attempted := 0
	for _, raw := range rows {
		summary.Processed++

		candidate, err := p.normalizer.Row(raw)
		if err != nil {
			summary.Skipped++
			summary.Failures = append(summary.Failures, model.RowFailure{
				Row:    raw.Line,
				Name:   strings.TrimSpace(raw.FirstName + " " + raw.LastName),
				Reason: err.Error(),
			})
			continue
		}

		attempted++
		created, err := p.importRow(ctx, eventID, candidate)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, model.RowFailure{
				Row:    raw.Line,
				Name:   candidate.FullName(),
				Reason: err.Error(),
			})
			log.Warn("row failed",
				zap.Int("row", raw.Line),
				zap.String("name", candidate.FullName()),
				zap.Error(err))
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	if attempted > 0 && summary.Failed == attempted {
		summary.FinishedAt = time.Now().UTC()
		return summary, eris.Errorf("pipeline: all %d rows failed, store presumed unreachable", attempted)
	}

	if err := p.aggregate(ctx, eventID, summary); err != nil {
		return summary, err
	}

	summary.FinishedAt = time.Now().UTC()
	log.Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("event_attendance", summary.EventAttendance))
	return summary, nil
}

// importRow runs match, merge, token, and upsert for one candidate inside a
// single transaction: either the whole row lands or none of it does.
func (p *Pipeline) importRow(ctx context.Context, eventID int64, c *model.Candidate) (created bool, err error) {
	err = p.store.Tx(ctx, func(tx store.Store) error {
		matcher := match.New(tx, p.threshold)
		res, err := matcher.Find(ctx, c)
		if err != nil {
			return err
		}

		merger := merge.New(tx)
		var person *model.Person
		if res.Person == nil {
			person, err = merger.Create(ctx, c)
			if err != nil {
				return err
			}
			created = true
		} else {
			person = res.Person
			if _, err := merger.Update(ctx, person, c); err != nil {
				return err
			}
		}

		var tokenID *int64
		if value := match.TokenValue(c.TrackingLink); value != "" {
			tok, err := tx.FindOrCreateInviteToken(ctx, eventID, match.TokenCategory(value), value)
			if err != nil {
				return err
			}
			tokenID = &tok.ID
		}

		_, err = attendance.New(tx).Upsert(ctx, &model.Attendance{
			PersonID:      person.ID,
			EventID:       eventID,
			RSVP:          c.RSVP,
			Approved:      c.Approved,
			CheckedIn:     c.CheckedIn,
			RSVPAt:        c.RSVPAt,
			InviteTokenID: tokenID,
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// aggregate runs the batch-global passes once, after every per-row write has
// committed: referral recompute, event attendance summary, and the person
// lifetime-count repair for everyone touched by the event.
func (p *Pipeline) aggregate(ctx context.Context, eventID int64, summary *model.BatchSummary) error {
	agg := referral.New(p.store, match.New(p.store, p.threshold))
	if _, err := agg.Recompute(ctx); err != nil {
		return err
	}

	count, err := p.store.RecountEventAttendance(ctx, eventID)
	if err != nil {
		return err
	}
	summary.EventAttendance = count

	if _, err := p.store.RecountPersonAttendance(ctx, eventID); err != nil {
		return err
	}
	return nil
}
