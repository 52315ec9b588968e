// Package referral recomputes, for every person, how many distinct other
// people used that person's name as an outreach token.
package referral

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campus-events/attendance-cli/internal/match"
	"github.com/campus-events/attendance-cli/internal/store"
)

type Aggregator struct {
	store   store.Store
	matcher *match.Matcher
}

func New(st store.Store, m *match.Matcher) *Aggregator {
	return &Aggregator{store: st, matcher: m}
}

// Summary reports one aggregation run.
type Summary struct {
	TokensSeen       int `json:"tokens_seen"`
	TokensUnresolved int `json:"tokens_unresolved"`
	Referrers        int `json:"referrers"`
}

// Recompute rebuilds referral_count for the whole roster from scratch. Every
// qualifying RSVP against a personal-outreach token credits the token's
// referrer once per distinct attendee, across all events, excluding the
// referrer themself. Unresolved or ambiguous token values are dropped, not
// guessed. The overwrite runs in one transaction so counts never mix old and
// new state.
//
// A full recompute is deliberately chosen over incremental counting: it
// stays correct under re-imports and out-of-order history, where increments
// would drift.
func (a *Aggregator) Recompute(ctx context.Context) (*Summary, error) {
	roster, err := a.store.ListPersons(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "referral: list roster")
	}
	rsvps, err := a.store.ListTokenRSVPs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "referral: list token rsvps")
	}

	// Resolve each distinct token value once.
	referrerByToken := make(map[string]int64)
	seen := make(map[string]struct{})
	unresolved := 0
	for _, r := range rsvps {
		if _, ok := seen[r.TokenValue]; ok {
			continue
		}
		seen[r.TokenValue] = struct{}{}
		p := a.matcher.ResolveToken(r.TokenValue, roster)
		if p == nil {
			unresolved++
			zap.L().Debug("referral token unresolved", zap.String("token", r.TokenValue))
			continue
		}
		referrerByToken[r.TokenValue] = p.ID
	}

	// Distinct attendees per referrer, across all events, self excluded.
	attendees := make(map[int64]map[int64]struct{})
	for _, r := range rsvps {
		referrerID, ok := referrerByToken[r.TokenValue]
		if !ok || r.PersonID == referrerID {
			continue
		}
		if attendees[referrerID] == nil {
			attendees[referrerID] = make(map[int64]struct{})
		}
		attendees[referrerID][r.PersonID] = struct{}{}
	}

	counts := make(map[int64]int, len(attendees))
	for id, set := range attendees {
		counts[id] = len(set)
	}

	err = a.store.Tx(ctx, func(tx store.Store) error {
		return tx.UpdateReferralCounts(ctx, counts)
	})
	if err != nil {
		return nil, eris.Wrap(err, "referral: write counts")
	}

	s := &Summary{
		TokensSeen:       len(seen),
		TokensUnresolved: unresolved,
		Referrers:        len(counts),
	}
	zap.L().Info("referral counts recomputed",
		zap.Int("tokens", s.TokensSeen),
		zap.Int("unresolved", s.TokensUnresolved),
		zap.Int("referrers", s.Referrers))
	return s, nil
}
