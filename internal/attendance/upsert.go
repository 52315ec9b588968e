// Package attendance records person-event relationships idempotently.
package attendance

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/store"
)

type Upserter struct {
	store store.Store
}

func New(st store.Store) *Upserter {
	return &Upserter{store: st}
}

// Upsert writes the (person, event) row. An existing row has its mutable
// fields overwritten in place; a fresh insert computes the first-event flag
// and bumps the person's lifetime counters. Counters are never touched on
// update, so re-imports stay idempotent.
//
// The first-event flag is frozen at insert time: backfilling older history
// later does not rewrite it.
func (u *Upserter) Upsert(ctx context.Context, a *model.Attendance) (created bool, err error) {
	existing, err := u.store.GetAttendance(ctx, a.PersonID, a.EventID)
	if err != nil {
		return false, eris.Wrap(err, "attendance: lookup")
	}

	if existing != nil {
		a.ID = existing.ID
		a.IsFirstEvent = existing.IsFirstEvent
		if err := u.store.UpdateAttendance(ctx, a); err != nil {
			return false, eris.Wrap(err, "attendance: update")
		}
		return false, nil
	}

	prior, err := u.store.CountAttendance(ctx, a.PersonID)
	if err != nil {
		return false, eris.Wrap(err, "attendance: count prior")
	}
	a.IsFirstEvent = prior == 0

	if err := u.store.InsertAttendance(ctx, a); err != nil {
		return false, eris.Wrap(err, "attendance: insert")
	}
	if err := u.store.IncrementPersonCounters(ctx, a.PersonID, a.CheckedIn, a.RSVP); err != nil {
		return false, eris.Wrap(err, "attendance: bump counters")
	}

	zap.L().Debug("attendance inserted",
		zap.Int64("person_id", a.PersonID),
		zap.Int64("event_id", a.EventID),
		zap.Bool("first_event", a.IsFirstEvent))
	return true, nil
}
