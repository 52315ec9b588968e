// Package store persists persons, events, invite tokens, and attendance.
package store

import (
	"context"

	"github.com/campus-events/attendance-cli/internal/model"
)

// TokenRSVP is one (token value, attendee) pair used by the referral
// aggregator: a person who RSVP'd to an event through a personal-outreach
// token with the given value.
type TokenRSVP struct {
	TokenValue string
	PersonID   int64
	EventID    int64
}

// Store defines the persistence interface for the attendance pipeline.
// Lookups that find nothing return (nil, nil), not an error.
type Store interface {
	// Persons
	GetPerson(ctx context.Context, id int64) (*model.Person, error)
	FindPersonByEmail(ctx context.Context, email string) (*model.Person, error)
	FindPersonByPhone(ctx context.Context, digits string) (*model.Person, error)
	FindPersonsByName(ctx context.Context, first, last string) ([]model.Person, error)
	ListPersons(ctx context.Context) ([]model.Person, error)
	CreatePerson(ctx context.Context, p *model.Person) error
	UpdatePerson(ctx context.Context, p *model.Person) error
	IncrementPersonCounters(ctx context.Context, personID int64, checkedIn, rsvp bool) error
	UpdateReferralCounts(ctx context.Context, counts map[int64]int) error
	RecountPersonAttendance(ctx context.Context, eventID int64) (int, error)

	// Events
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	FindEventByLumaID(ctx context.Context, lumaEventID string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, e *model.Event) error
	FillEventMetadata(ctx context.Context, e *model.Event) error
	RecountEventAttendance(ctx context.Context, eventID int64) (int, error)

	// Invite tokens
	FindOrCreateInviteToken(ctx context.Context, eventID int64, category model.TokenCategory, value string) (*model.InviteToken, error)
	ListTokenRSVPs(ctx context.Context) ([]TokenRSVP, error)

	// Attendance
	GetAttendance(ctx context.Context, personID, eventID int64) (*model.Attendance, error)
	CountAttendance(ctx context.Context, personID int64) (int, error)
	InsertAttendance(ctx context.Context, a *model.Attendance) error
	UpdateAttendance(ctx context.Context, a *model.Attendance) error

	// Tx runs fn against a transaction-scoped Store. All writes inside fn
	// commit or roll back together; the pipeline wraps each row in one.
	Tx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
