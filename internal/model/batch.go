package model

import "time"

// RawRow is one attendance export row, decoded by logical column name.
// The csv tags are the canonical logical field names; the pipeline rewrites
// the file's header through the configured column mapping before decoding,
// so platform-specific header text never leaks past the parser.
type RawRow struct {
	// Line is the 1-based data record number within the export, for
	// failure reports. Not a CSV column.
	Line int `csv:"-"`

	FirstName    string `csv:"first_name"`
	LastName     string `csv:"last_name"`
	Email        string `csv:"email"`
	SchoolEmail  string `csv:"school_email"`
	Phone        string `csv:"phone"`
	OrderStatus  string `csv:"approved"`
	CheckedIn    string `csv:"checked_in"`
	RSVPDatetime string `csv:"rsvp_datetime"`
	TrackingLink string `csv:"tracking_link"`
	Gender       string `csv:"gender"`
	School       string `csv:"school"`
	ClassYear    string `csv:"class_year"`
}

// Candidate is a normalized row ready for matching. Empty strings and zero
// values mean "absent"; the normalizer degrades unusable fields instead of
// failing the row.
type Candidate struct {
	FirstName     string
	LastName      string
	SchoolEmail   string
	PersonalEmail string
	Phone         string
	Gender        Gender
	School        School
	ClassYear     int

	RSVP      bool
	Approved  bool
	CheckedIn bool
	RSVPAt    *time.Time

	TrackingLink string
}

// FullName returns "First Last" for logging and skip reports.
func (c Candidate) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// RowFailure records a single row that could not be imported.
type RowFailure struct {
	Row    int    `json:"row"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// BatchSummary is the per-batch report returned to the orchestrator.
type BatchSummary struct {
	BatchID   string `json:"batch_id"`
	EventID   int64  `json:"event_id"`
	EventName string `json:"event_name,omitempty"`

	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Failures []RowFailure `json:"failures,omitempty"`

	// EventAttendance is the recomputed aggregate for the event after the
	// batch (count of checked-in rows).
	EventAttendance int `json:"event_attendance"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
