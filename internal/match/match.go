// Package match resolves normalized candidates and invite-token values to
// roster identities. All lookups are pure reads; nothing here mutates state.
package match

import (
	"context"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/store"
)

// Stage identifies which cascade stage produced a match.
type Stage string

const (
	StageEmail     Stage = "email"
	StagePhone     Stage = "phone"
	StageExactName Stage = "exact_name"
	StageFuzzyName Stage = "fuzzy_name"
	StageNone      Stage = "none"
)

// Result is the outcome of one cascade run. Person is nil when no stage
// matched and a new person should be created.
type Result struct {
	Person *model.Person
	Stage  Stage
	Score  float64

	// LowConfidence marks fuzzy matches that needed a tie-break beyond the
	// similarity score. The pipeline logs these for human review.
	LowConfidence bool
}

// Matcher runs the match cascade against the roster.
type Matcher struct {
	store     store.Store
	threshold float64
}

func New(st store.Store, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.80
	}
	return &Matcher{store: st, threshold: threshold}
}

// Find maps a candidate to zero-or-one existing person. Stages run in strict
// priority order and short-circuit on first hit:
// email, phone, exact name, fuzzy first name among exact last-name matches.
func (m *Matcher) Find(ctx context.Context, c *model.Candidate) (*Result, error) {
	for _, email := range []string{c.SchoolEmail, c.PersonalEmail} {
		if email == "" {
			continue
		}
		p, err := m.store.FindPersonByEmail(ctx, email)
		if err != nil {
			return nil, eris.Wrap(err, "match: email stage")
		}
		if p != nil {
			return &Result{Person: p, Stage: StageEmail, Score: 1}, nil
		}
	}

	if c.Phone != "" {
		p, err := m.store.FindPersonByPhone(ctx, c.Phone)
		if err != nil {
			return nil, eris.Wrap(err, "match: phone stage")
		}
		if p != nil {
			return &Result{Person: p, Stage: StagePhone, Score: 1}, nil
		}
	}

	// Exact name, with hyphenated and spaced forms treated as equivalent.
	for _, first := range nameVariants(c.FirstName) {
		persons, err := m.store.FindPersonsByName(ctx, first, c.LastName)
		if err != nil {
			return nil, eris.Wrap(err, "match: exact name stage")
		}
		if len(persons) > 0 {
			return &Result{Person: &persons[0], Stage: StageExactName, Score: 1}, nil
		}
	}

	return m.fuzzy(ctx, c)
}

// fuzzy scores the candidate's first name against every person sharing the
// candidate's last name. The best score at or above the threshold wins; ties
// prefer the larger lifetime attendance count, then the lowest id.
func (m *Matcher) fuzzy(ctx context.Context, c *model.Candidate) (*Result, error) {
	roster, err := m.store.ListPersons(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "match: fuzzy stage")
	}

	var (
		best      *model.Person
		bestScore float64
		tied      bool
	)
	for i := range roster {
		p := &roster[i]
		if !strings.EqualFold(p.LastName, c.LastName) {
			continue
		}
		score := Similarity(c.FirstName, p.FirstName)
		if score < m.threshold {
			continue
		}
		switch {
		case best == nil || score > bestScore:
			best, bestScore, tied = p, score, false
		case score == bestScore:
			tied = true
			if p.AttendanceCount > best.AttendanceCount ||
				(p.AttendanceCount == best.AttendanceCount && p.ID < best.ID) {
				best = p
			}
		}
	}

	if best == nil {
		return &Result{Stage: StageNone}, nil
	}
	if tied {
		zap.L().Info("fuzzy match tie-break",
			zap.String("candidate", c.FullName()),
			zap.Int64("person_id", best.ID),
			zap.Float64("score", bestScore))
	}
	return &Result{Person: best, Stage: StageFuzzyName, Score: bestScore, LowConfidence: tied}, nil
}

// Similarity is a 0-1 score between two names, case-insensitive.
func Similarity(a, b string) float64 {
	return levenshtein.Similarity(strings.ToLower(a), strings.ToLower(b), nil)
}

func nameVariants(first string) []string {
	variants := []string{first}
	if spaced := strings.ReplaceAll(first, "-", " "); spaced != first {
		variants = append(variants, spaced)
	}
	return variants
}
