package nudge

import (
	"context"
	"fmt"
	"time"
)

// Gate decides whether a candidate may receive a new nudge. Read-only against
// the notification store.
//
// Two rules, in order:
//  1. Global rate limit — at most one nudge per user per 24 hours, across
//     all signal types.
//  2. Per-signal dedup — no repeat of the same (signal type, subject event)
//     for the same user within 7 days. Signals without a subject event dedup
//     on signal type alone.
//
// The gate is queried per candidate at processing time, never pre-computed:
// rule 1 must observe notifications created earlier in the same run.
type Gate struct {
	store Store
	now   func() time.Time
}

// NewGate creates a gate over the given store.
func NewGate(store Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// IsEligible reports whether a nudge of the given type (and subject event,
// when eventID is non-empty) may be created for the user right now.
func (g *Gate) IsEligible(ctx context.Context, userID string, signal SignalType, eventID string) (bool, error) {
	now := g.now()

	recent, err := g.store.HasNudgeSince(ctx, userID, now.Add(-rateLimitWindow))
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	if recent {
		return false, nil
	}

	dup, err := g.store.HasNudgeOfType(ctx, userID, signal, eventID, now.Add(-dedupWindow))
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return !dup, nil
}
