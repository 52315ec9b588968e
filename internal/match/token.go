package match

import (
	"strings"

	"github.com/campus-events/attendance-cli/internal/model"
)

// genericTokens are broadcast-channel values that never identify a referrer.
var genericTokens = map[string]struct{}{
	"default":             {},
	"emailreferral":       {},
	"email_first_button":  {},
	"email_second_button": {},
	"email":               {},
	"txt":                 {},
	"insta":               {},
	"maillist":            {},
	"lastname":            {},
	"[name]":              {},
}

const maxTokenLen = 100

// TokenValue canonicalizes a raw tracking link into a token value: the last
// path segment, query stripped, lower-cased, capped at the column width.
func TokenValue(raw string) string {
	v := strings.TrimSpace(raw)
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	v = strings.Trim(v, "/")
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	v = strings.ToLower(v)
	if len(v) > maxTokenLen {
		v = v[:maxTokenLen]
	}
	return v
}

// TokenCategory classifies a token value: generic broadcast codes are
// mailing list, anything else is assumed to be a person's name.
func TokenCategory(value string) model.TokenCategory {
	if _, ok := genericTokens[strings.ToLower(value)]; ok {
		return model.TokenMailingList
	}
	return model.TokenPersonalOutreach
}

// ResolveToken maps a personal-outreach token value to its referrer using
// name matching only. Generic values and values that resolve ambiguously
// return nil; the aggregator drops those tokens rather than guessing.
//
// A single-word value is matched against first names; a multi-word value is
// matched as "first ... last". Exact matches outrank fuzzy ones.
func (m *Matcher) ResolveToken(value string, roster []model.Person) *model.Person {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return nil
	}
	if _, ok := genericTokens[value]; ok {
		return nil
	}

	// Token values write names with separators ("jane_doe", "jane-doe").
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)

	first := value
	last := ""
	if fields := strings.Fields(value); len(fields) > 1 {
		first = fields[0]
		last = fields[len(fields)-1]
	}

	// Exact pass.
	var exact []*model.Person
	for i := range roster {
		p := &roster[i]
		if !strings.EqualFold(p.FirstName, first) {
			continue
		}
		if last != "" && !strings.EqualFold(p.LastName, last) {
			continue
		}
		exact = append(exact, p)
	}
	if len(exact) == 1 {
		return exact[0]
	}
	if len(exact) > 1 {
		return nil // ambiguous
	}

	// Fuzzy pass on first names.
	var (
		best      *model.Person
		bestScore float64
		ambiguous bool
	)
	for i := range roster {
		p := &roster[i]
		if last != "" && !strings.EqualFold(p.LastName, last) {
			continue
		}
		score := Similarity(first, p.FirstName)
		if score < m.threshold {
			continue
		}
		switch {
		case best == nil || score > bestScore:
			best, bestScore, ambiguous = p, score, false
		case score == bestScore:
			ambiguous = true
		}
	}
	if ambiguous {
		return nil
	}
	return best
}
