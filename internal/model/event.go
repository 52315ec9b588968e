package model

import "time"

// Event is one occurrence imported from the event platform. Metadata is
// owned by the sync step; the import pipeline only reads the id and writes
// the Attendance aggregate.
type Event struct {
	ID          int64      `json:"id" db:"id"`
	LumaEventID string     `json:"luma_event_id" db:"luma_event_id"`
	Name        string     `json:"event_name" db:"event_name"`
	StartAt     *time.Time `json:"start_datetime,omitempty" db:"start_datetime"`
	Location    string     `json:"location,omitempty" db:"location"`
	Category    string     `json:"category,omitempty" db:"category"`
	Description string     `json:"description,omitempty" db:"description"`
	SignupURL   string     `json:"signup_url,omitempty" db:"signup_url"`
	Attendance  int        `json:"attendance" db:"attendance"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TokenCategory classifies how an attendee learned of an event.
type TokenCategory string

// Token categories.
const (
	TokenPersonalOutreach TokenCategory = "personal outreach"
	TokenMailingList      TokenCategory = "mailing list"
	TokenClubCollab       TokenCategory = "club collaboration"
)

// InviteToken is a labeled outreach channel attached to an event. Values
// under "personal outreach" are free-text referral codes, usually a
// person's name; multiple attendance rows may share one token.
type InviteToken struct {
	ID       int64         `json:"id" db:"id"`
	EventID  int64         `json:"event_id" db:"event_id"`
	Category TokenCategory `json:"category" db:"category"`
	Value    string        `json:"value" db:"value"`
}

// Attendance joins exactly one Person and one Event. Unique per
// (person, event): re-imports update the row in place.
type Attendance struct {
	ID            int64      `json:"id" db:"id"`
	PersonID      int64      `json:"person_id" db:"person_id"`
	EventID       int64      `json:"event_id" db:"event_id"`
	RSVP          bool       `json:"rsvp" db:"rsvp"`
	Approved      bool       `json:"approved" db:"approved"`
	CheckedIn     bool       `json:"checked_in" db:"checked_in"`
	RSVPAt        *time.Time `json:"rsvp_datetime,omitempty" db:"rsvp_datetime"`
	IsFirstEvent  bool       `json:"is_first_event" db:"is_first_event"`
	InviteTokenID *int64     `json:"invite_token_id,omitempty" db:"invite_token_id"`
}
