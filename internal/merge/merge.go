// Package merge applies cascade results to the roster: inserting new persons
// and updating matched ones without overwriting populated fields.
package merge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campus-events/attendance-cli/internal/model"
	"github.com/campus-events/attendance-cli/internal/store"
)

type Merger struct {
	store store.Store
}

func New(st store.Store) *Merger {
	return &Merger{store: st}
}

// Create inserts a new person with every available normalized field.
func (m *Merger) Create(ctx context.Context, c *model.Candidate) (*model.Person, error) {
	p := &model.Person{
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Gender:        c.Gender,
		ClassYear:     c.ClassYear,
		School:        c.School,
		SchoolEmail:   c.SchoolEmail,
		PersonalEmail: c.PersonalEmail,
		PhoneNumber:   c.Phone,
	}
	if err := m.store.CreatePerson(ctx, p); err != nil {
		return nil, eris.Wrap(err, "merge: create person")
	}
	zap.L().Debug("person created",
		zap.Int64("person_id", p.ID),
		zap.String("name", c.FullName()))
	return p, nil
}

// Update merges candidate fields into an existing person and persists the
// record if anything changed. Only currently-empty fields are filled; a
// populated field is never overwritten, even when the incoming row
// disagrees. The one exception is the name upgrade: a strictly longer
// variant of the same name replaces the shorter stored form.
func (m *Merger) Update(ctx context.Context, p *model.Person, c *model.Candidate) (bool, error) {
	changed := false

	if upgraded := upgradeName(p.FirstName, c.FirstName); upgraded != p.FirstName {
		p.FirstName = upgraded
		changed = true
	}
	if upgraded := upgradeName(p.LastName, c.LastName); upgraded != p.LastName {
		p.LastName = upgraded
		changed = true
	}

	changed = fill(&p.SchoolEmail, c.SchoolEmail) || changed
	changed = fill(&p.PersonalEmail, c.PersonalEmail) || changed
	changed = fill(&p.PhoneNumber, c.Phone) || changed
	if p.Gender == "" && c.Gender != "" {
		p.Gender = c.Gender
		changed = true
	}
	if p.School == "" && c.School != "" {
		p.School = c.School
		changed = true
	}
	if p.ClassYear == 0 && c.ClassYear != 0 {
		p.ClassYear = c.ClassYear
		changed = true
	}

	if !changed {
		return false, nil
	}
	if err := m.store.UpdatePerson(ctx, p); err != nil {
		return false, eris.Wrapf(err, "merge: update person %d", p.ID)
	}
	return true, nil
}

func fill(dst *string, src string) bool {
	if *dst != "" || src == "" {
		return false
	}
	*dst = src
	return true
}

// upgradeName keeps the longer form when one name is a case-insensitive
// substring of the other ("Dan" and "Daniel" become "Daniel"). Unrelated
// names keep the stored value.
func upgradeName(existing, incoming string) string {
	if incoming == "" || strings.EqualFold(existing, incoming) {
		return existing
	}
	le, li := strings.ToLower(existing), strings.ToLower(incoming)
	if strings.Contains(li, le) && len(incoming) > len(existing) {
		return incoming
	}
	return existing
}
