package nudge

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Detectors are pure read-then-filter: they read the store and yield
// candidates, never persisting anything themselves. Events that fail a
// qualifying condition (no history, unresolvable host, zero average) are
// skipped without error.

// detectEventRecommendations matches past attendees of an organizer with the
// organizer's newly approved event. Reactive: runs once per approval.
func (e *Engine) detectEventRecommendations(ctx context.Context, event *Event) ([]Candidate, error) {
	now := e.now()

	past, err := e.store.PastEventsByOrganizer(ctx, event.OrganizerHandle, event.ID, now)
	if err != nil {
		return nil, fmt.Errorf("past events for %s: %w", event.OrganizerHandle, err)
	}
	if len(past) == 0 {
		return nil, nil
	}

	pastIDs := make([]string, len(past))
	for i, p := range past {
		pastIDs[i] = p.ID
	}
	emails, err := e.store.AttendeeEmails(ctx, pastIDs)
	if err != nil {
		return nil, fmt.Errorf("past attendees: %w", err)
	}
	if len(emails) == 0 {
		return nil, nil
	}

	// Drop attendees already on the new event.
	signedUp, err := e.store.AttendeeEmails(ctx, []string{event.ID})
	if err != nil {
		return nil, fmt.Errorf("current attendees: %w", err)
	}
	taken := make(map[string]bool, len(signedUp))
	for _, em := range signedUp {
		taken[strings.ToLower(em)] = true
	}

	var remaining []string
	for _, em := range emails {
		if !taken[strings.ToLower(em)] {
			remaining = append(remaining, em)
		}
	}
	if len(remaining) == 0 {
		return nil, nil
	}

	users, err := e.store.ActiveUsersByEmails(ctx, remaining)
	if err != nil {
		return nil, fmt.Errorf("resolve attendees: %w", err)
	}

	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, Candidate{
			UserID: u.ID,
			Signal: EventRecommendationSignal{
				Event:         event.ID,
				EventName:     event.Name,
				EventSlug:     event.Slug,
				OrganizerName: event.OrganizerHandle,
				EventDate:     event.EventDate,
			},
		})
	}
	return candidates, nil
}

// detectInactive finds users whose most recent attendance fell strictly
// inside the inactivity window. Capped per run, longest-inactive first.
func (e *Engine) detectInactive(ctx context.Context) ([]Candidate, error) {
	now := e.now()
	after := now.AddDate(0, 0, -inactivityMaxDays)
	before := now.AddDate(0, 0, -inactivityMinDays)

	activities, err := e.store.LastAttendanceByEmail(ctx, after, before, inactivityCap)
	if err != nil {
		return nil, fmt.Errorf("last attendance: %w", err)
	}
	if len(activities) == 0 {
		return nil, nil
	}

	emails := make([]string, len(activities))
	for i, a := range activities {
		emails[i] = a.Email
	}
	users, err := e.store.ActiveUsersByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("resolve inactive users: %w", err)
	}
	byEmail := make(map[string]User, len(users))
	for _, u := range users {
		byEmail[strings.ToLower(u.Email)] = u
	}

	var candidates []Candidate
	for _, a := range activities {
		u, ok := byEmail[strings.ToLower(a.Email)]
		if !ok {
			continue
		}
		days := int(now.Sub(a.LastAttendance).Hours() / 24)
		candidates = append(candidates, Candidate{
			UserID: u.ID,
			Signal: InactivitySignal{DaysInactive: days},
		})
	}
	return candidates, nil
}

// detectLowFill checks approved events 1–5 days out against the organizer's
// historical average attendance and nudges the host when the fill rate is
// under the threshold.
func (e *Engine) detectLowFill(ctx context.Context) ([]Candidate, error) {
	now := e.now()
	from := dayStart(now.AddDate(0, 0, lowFillMinDays))
	to := dayEnd(now.AddDate(0, 0, lowFillMaxDays))

	events, err := e.store.EventsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("upcoming events: %w", err)
	}

	var candidates []Candidate
	for _, ev := range events {
		if ev.EventDate == nil {
			continue
		}
		count, err := e.store.AttendanceCount(ctx, ev.ID)
		if err != nil {
			e.logger.Warn("attendance count failed", "event_id", ev.ID, "error", err)
			continue
		}
		avg, history, err := e.store.OrganizerHistory(ctx, ev.OrganizerHandle, ev.ID, now, historyLimit)
		if err != nil {
			e.logger.Warn("organizer history failed", "event_id", ev.ID, "error", err)
			continue
		}
		// Undefined ratio without history or with a zero average.
		if history == 0 || avg == 0 {
			continue
		}
		fill := int(math.Round(float64(count) / avg * 100))
		if fill >= lowFillThreshold {
			continue
		}

		host, err := e.store.ActiveUserByEmail(ctx, ev.ContactEmail)
		if err != nil {
			e.logger.Warn("resolve host failed", "event_id", ev.ID, "error", err)
			continue
		}
		if host == nil {
			continue
		}

		candidates = append(candidates, Candidate{
			UserID: host.ID,
			Signal: LowFillRateSignal{
				Event:            ev.ID,
				EventName:        ev.Name,
				EventSlug:        ev.Slug,
				FillPercent:      fill,
				CurrentAttendees: count,
				DaysUntilEvent:   ceilDays(ev.EventDate.Sub(now)),
			},
		})
	}
	return candidates, nil
}

// detectMissingRegulars finds upcoming events whose regulars (attendees with
// enough distinct past events from the same organizer) have not signed up.
func (e *Engine) detectMissingRegulars(ctx context.Context) ([]Candidate, error) {
	now := e.now()
	from := dayStart(now.AddDate(0, 0, regularsMinDaysOut))

	events, err := e.store.EventsAfter(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("future events: %w", err)
	}

	var candidates []Candidate
	for _, ev := range events {
		if ev.EventDate == nil {
			continue
		}
		past, err := e.store.PastEventsByOrganizer(ctx, ev.OrganizerHandle, ev.ID, now)
		if err != nil {
			e.logger.Warn("past events failed", "event_id", ev.ID, "error", err)
			continue
		}
		// Not enough history to define a regular.
		if len(past) < organizerMinHistory {
			continue
		}

		regulars, err := e.store.RegularsForOrganizer(ctx, ev.OrganizerHandle, ev.ID, now, regularMinAttendance)
		if err != nil {
			e.logger.Warn("regulars lookup failed", "event_id", ev.ID, "error", err)
			continue
		}
		if len(regulars) == 0 {
			continue
		}

		signedUp, err := e.store.AttendeeEmails(ctx, []string{ev.ID})
		if err != nil {
			e.logger.Warn("current attendees failed", "event_id", ev.ID, "error", err)
			continue
		}
		taken := make(map[string]bool, len(signedUp))
		for _, em := range signedUp {
			taken[strings.ToLower(em)] = true
		}

		var names []string
		for _, r := range regulars {
			if taken[strings.ToLower(r.Email)] {
				continue
			}
			names = append(names, attendeeName(r))
		}
		if len(names) == 0 {
			continue
		}
		if len(names) > regularNamesCap {
			names = names[:regularNamesCap]
		}

		host, err := e.store.ActiveUserByEmail(ctx, ev.ContactEmail)
		if err != nil {
			e.logger.Warn("resolve host failed", "event_id", ev.ID, "error", err)
			continue
		}
		if host == nil {
			continue
		}

		candidates = append(candidates, Candidate{
			UserID: host.ID,
			Signal: RegularsMissingSignal{
				Event:          ev.ID,
				EventName:      ev.Name,
				EventSlug:      ev.Slug,
				RegularNames:   names,
				DaysUntilEvent: ceilDays(ev.EventDate.Sub(now)),
			},
		})
	}
	return candidates, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// attendeeName prefers the recorded display name, falling back to the local
// part of the email.
func attendeeName(r Regular) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if at := strings.Index(r.Email, "@"); at > 0 {
		return r.Email[:at]
	}
	return r.Email
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayEnd(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
