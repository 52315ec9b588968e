// Package model defines the core types shared across the attendance pipeline.
package model

import "time"

// Gender is a closed enumeration; empty string means unknown.
type Gender string

// Known gender values.
const (
	GenderFemale    Gender = "F"
	GenderMale      Gender = "M"
	GenderNonbinary Gender = "X"
)

// School is a closed enumeration of recognized institutions; empty string
// means unknown.
type School string

// Known school values.
const (
	SchoolHarvard School = "harvard"
	SchoolMIT     School = "mit"
	SchoolOther   School = "other"
)

// Person is the canonical identity record. Every attendance row references
// exactly one Person; the pipeline creates and updates persons but never
// deletes them.
type Person struct {
	ID            int64  `json:"id" db:"id"`
	FirstName     string `json:"first_name" db:"first_name"`
	LastName      string `json:"last_name" db:"last_name"`
	PreferredName string `json:"preferred_name,omitempty" db:"preferred_name"`
	Gender        Gender `json:"gender,omitempty" db:"gender"`
	ClassYear     int    `json:"class_year,omitempty" db:"class_year"`
	School        School `json:"school,omitempty" db:"school"`

	SchoolEmail    string `json:"school_email,omitempty" db:"school_email"`
	PersonalEmail  string `json:"personal_email,omitempty" db:"personal_email"`
	PreferredEmail string `json:"preferred_email,omitempty" db:"preferred_email"`
	PhoneNumber    string `json:"phone_number,omitempty" db:"phone_number"`

	// Derived counters. AttendanceCount is lifetime checked-in events,
	// RSVPCount lifetime RSVPs, ReferralCount distinct people this person
	// brought in (recomputed by the referral aggregator).
	AttendanceCount int `json:"event_attendance_count" db:"event_attendance_count"`
	RSVPCount       int `json:"rsvp_count" db:"rsvp_count"`
	ReferralCount   int `json:"referral_count" db:"referral_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Email returns the best contact email: preferred, then school, then personal.
func (p *Person) Email() string {
	switch {
	case p.PreferredEmail != "":
		return p.PreferredEmail
	case p.SchoolEmail != "":
		return p.SchoolEmail
	default:
		return p.PersonalEmail
	}
}
