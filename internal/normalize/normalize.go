// Package normalize canonicalizes raw attendance export fields. Unusable
// values degrade to absent rather than failing the row; the only hard error
// is a missing first or last name.
package normalize

import (
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/campus-events/attendance-cli/internal/model"
)

// Normalizer converts raw rows into match candidates. The clock is
// injectable so class-year inference is testable across academic years.
type Normalizer struct {
	now func() time.Time
}

type Option func(*Normalizer)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Row builds a Candidate from one raw export row. Returns an error only when
// a required name field is missing; everything else degrades to absent.
func (n *Normalizer) Row(raw model.RawRow) (*model.Candidate, error) {
	first := Name(raw.FirstName)
	last := Name(raw.LastName)
	if first == "" || last == "" {
		return nil, eris.New("normalize: missing first or last name")
	}

	c := &model.Candidate{
		FirstName:    first,
		LastName:     last,
		Phone:        Phone(raw.Phone),
		Gender:       Gender(raw.Gender),
		TrackingLink: strings.TrimSpace(raw.TrackingLink),
	}

	// The export carries up to two email columns; the .edu one is the school
	// email, anything else is personal.
	for _, e := range []string{Email(raw.SchoolEmail), Email(raw.Email)} {
		switch {
		case e == "":
		case isSchoolDomain(e) && c.SchoolEmail == "":
			c.SchoolEmail = e
		case c.PersonalEmail == "":
			c.PersonalEmail = e
		}
	}

	c.School = School(c.SchoolEmail, c.PersonalEmail, raw.School)
	c.ClassYear = ClassYear(raw.ClassYear, n.now())

	status := strings.ToLower(strings.TrimSpace(raw.OrderStatus))
	c.RSVP = status != ""
	c.Approved = status == "completed"
	c.CheckedIn = Boolish(raw.CheckedIn)
	c.RSVPAt = Timestamp(raw.RSVPDatetime)

	return c, nil
}

// Name trims, collapses internal whitespace, and title-cases.
func Name(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(fields, " "))
}

// Email lower-cases and validates; malformed addresses become absent.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return ""
	}
	// Keep the bare address, dropping any display-name decoration.
	s = addr.Address
	at := strings.LastIndex(s, "@")
	if at < 0 || !strings.Contains(s[at:], ".") {
		return ""
	}
	return s
}

// Phone strips everything but digits and drops a leading US country code.
// Too-short results are treated as absent.
func Phone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) < 7 {
		return ""
	}
	return digits
}

// Gender maps free text into the closed enumeration; unrecognized is unknown.
func Gender(s string) model.Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female", "woman", "w":
		return model.GenderFemale
	case "m", "male", "man":
		return model.GenderMale
	case "x", "nonbinary", "non-binary", "nb", "other":
		return model.GenderNonbinary
	}
	return ""
}

// School resolves the affiliation. Email domain outranks the free-text field.
func School(schoolEmail, personalEmail, freeText string) model.School {
	for _, e := range []string{schoolEmail, personalEmail} {
		switch {
		case e == "":
		case strings.HasSuffix(e, "@college.harvard.edu") || strings.HasSuffix(e, "@harvard.edu"):
			return model.SchoolHarvard
		case strings.HasSuffix(e, "@mit.edu"):
			return model.SchoolMIT
		}
	}

	text := strings.ToLower(strings.TrimSpace(freeText))
	switch {
	case text == "":
	case strings.Contains(text, "business") || strings.Contains(text, "hbs"):
		return model.SchoolOther
	case strings.Contains(text, "harvard"):
		return model.SchoolHarvard
	case strings.Contains(text, "mit"):
		return model.SchoolMIT
	}

	for _, e := range []string{schoolEmail, personalEmail} {
		if strings.HasSuffix(e, ".edu") {
			return model.SchoolOther
		}
	}
	if text != "" {
		return model.SchoolOther
	}
	return ""
}

// ClassYear parses a graduation year from "2027", "'27", "27", or a class
// standing word. Standing words roll over in September, when the incoming
// freshman class is current-year + 4.
func ClassYear(s string, now time.Time) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}

	if y, err := strconv.Atoi(strings.TrimPrefix(s, "'")); err == nil {
		switch {
		case y >= 1900 && y <= 2200:
			return y
		case y >= 0 && y < 100:
			return 2000 + y
		}
		return 0
	}

	base := now.Year()
	if now.Month() < time.September {
		base--
	}
	switch s {
	case "freshman", "first-year", "first year":
		return base + 4
	case "sophomore":
		return base + 3
	case "junior":
		return base + 2
	case "senior":
		return base + 1
	}
	return 0
}

// Boolish reports whether a scanned check-in cell is affirmative.
func Boolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "yes":
		return true
	}
	return false
}

func isSchoolDomain(email string) bool {
	return strings.HasSuffix(email, ".edu")
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04",
	"1/2/2006",
}

// Timestamp parses an RSVP timestamp in any of the layouts the platform has
// been seen to emit; unparseable values degrade to nil.
func Timestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
