package nudge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// ErrEventNotFound is returned when the reactive entry point is invoked with
// an id that does not resolve to an approved event.
var ErrEventNotFound = errors.New("event not found or not approved")

// Engine ties detectors, gate, generator, and persistence into batch runs.
// It holds no state of its own between runs; the notification store is the
// only memory the dedup windows need.
type Engine struct {
	store  Store
	gate   *Gate
	gen    *Generator
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an engine over the given store and copy generator.
func NewEngine(store Store, gen *Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		gate:   NewGate(store),
		gen:    gen,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessApprovedEvent runs the event-recommendation detector for one newly
// approved event. Intended to be invoked from the approval pathway.
func (e *Engine) ProcessApprovedEvent(ctx context.Context, eventID string) (SignalStats, error) {
	event, err := e.store.EventByID(ctx, eventID)
	if err != nil {
		return SignalStats{Errors: 1}, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if event == nil {
		return SignalStats{Errors: 1}, fmt.Errorf("event %s: %w", eventID, ErrEventNotFound)
	}

	candidates, err := e.detectEventRecommendations(ctx, event)
	if err != nil {
		return SignalStats{Errors: 1}, fmt.Errorf("detect recommendations: %w", err)
	}

	stats := e.processCandidates(ctx, candidates)
	e.logger.Info("approved event processed",
		"event_id", eventID, "candidates", len(candidates),
		"sent", stats.Sent, "skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

// ProcessPeriodicNudges runs the three periodic detectors in a fixed order
// and aggregates per-signal counts. A failing detector is logged and counted
// without stopping the others.
func (e *Engine) ProcessPeriodicNudges(ctx context.Context) *RunResult {
	start := time.Now()
	result := &RunResult{RanAt: e.now()}

	result.Inactivity = e.runDetector(ctx, SignalInactivity, e.detectInactive)
	result.LowFill = e.runDetector(ctx, SignalLowFillRate, e.detectLowFill)
	result.Regulars = e.runDetector(ctx, SignalRegularsMissing, e.detectMissingRegulars)

	result.Duration = time.Since(start).Round(time.Millisecond).String()
	e.logger.Info("periodic nudge run complete",
		"duration", result.Duration,
		"inactivity", result.Inactivity,
		"low_fill", result.LowFill,
		"regulars", result.Regulars)
	return result
}

// runDetector isolates one detector: a failure of the initiating query is
// logged and counted as a single error for that signal.
func (e *Engine) runDetector(ctx context.Context, signal SignalType, detect func(context.Context) ([]Candidate, error)) SignalStats {
	candidates, err := detect(ctx)
	if err != nil {
		e.logger.Error("detector failed", "signal", signal, "error", err)
		return SignalStats{Errors: 1}
	}
	stats := e.processCandidates(ctx, candidates)
	e.logger.Info("detector finished", "signal", signal,
		"candidates", len(candidates),
		"sent", stats.Sent, "skipped", stats.Skipped, "errors", stats.Errors)
	return stats
}

// processCandidates runs gate → generate → persist for each candidate.
// Sequential on purpose: the 24h rate limit must observe notifications
// created moments earlier in the same run, including one for the same user.
// A single candidate's failure increments the error count and the loop
// moves on.
func (e *Engine) processCandidates(ctx context.Context, candidates []Candidate) SignalStats {
	var stats SignalStats
	for _, c := range candidates {
		sig := c.Signal

		ok, err := e.gate.IsEligible(ctx, c.UserID, sig.Type(), sig.EventID())
		if err != nil {
			e.logger.Warn("eligibility check failed", "user_id", c.UserID, "signal", sig.Type(), "error", err)
			stats.Errors++
			continue
		}
		if !ok {
			stats.Skipped++
			continue
		}

		text := e.gen.Generate(ctx, sig)

		n := &Notification{
			UserID:    c.UserID,
			Type:      NotificationType,
			Title:     text.Title,
			Content:   text.Body,
			Link:      signalLink(sig),
			Metadata:  signalMetadata(sig),
			CreatedAt: e.now(),
		}
		if err := e.store.CreateNotification(ctx, n); err != nil {
			e.logger.Warn("persist notification failed", "user_id", c.UserID, "signal", sig.Type(), "error", err)
			stats.Errors++
			continue
		}
		stats.Sent++
	}
	return stats
}

// signalMetadata builds the metadata map persisted with a notification.
// It always carries the signal type, plus the subject event id when the
// signal has one — together they reconstruct the dedup key.
func signalMetadata(sig Signal) map[string]string {
	md := map[string]string{"signal": string(sig.Type())}
	if id := sig.EventID(); id != "" {
		md["event_id"] = id
	}
	switch s := sig.(type) {
	case InactivitySignal:
		md["days_inactive"] = strconv.Itoa(s.DaysInactive)
	case LowFillRateSignal:
		md["fill_percent"] = strconv.Itoa(s.FillPercent)
		md["days_until_event"] = strconv.Itoa(s.DaysUntilEvent)
	}
	return md
}

// signalLink resolves the deep link for a signal's subject, preferring the
// event slug when one exists.
func signalLink(sig Signal) string {
	var id, slug string
	switch s := sig.(type) {
	case EventRecommendationSignal:
		id, slug = s.Event, s.EventSlug
	case LowFillRateSignal:
		id, slug = s.Event, s.EventSlug
	case RegularsMissingSignal:
		id, slug = s.Event, s.EventSlug
	default:
		return "/events"
	}
	if slug != "" {
		return "/events/" + slug
	}
	return "/events/" + id
}
