package nudge

import (
	"context"
	"time"
)

// Store is the engine's view of the marketplace data. Reads cover users,
// event submissions, and attendance aggregates; the only write is the
// notification insert. The aggregate methods keep grouping and joins inside
// the store so detectors stay read-then-filter.
type Store interface {
	// Users. "Active" excludes soft-deleted accounts; email matching is
	// case-insensitive.
	UserByID(ctx context.Context, id string) (*User, error)
	ActiveUserByEmail(ctx context.Context, email string) (*User, error)
	ActiveUsersByEmails(ctx context.Context, emails []string) ([]User, error)

	// Event submissions, approved only.
	EventByID(ctx context.Context, id string) (*Event, error)
	// PastEventsByOrganizer returns the organizer's other approved events
	// dated before the given instant, newest first.
	PastEventsByOrganizer(ctx context.Context, handle, excludeEventID string, before time.Time) ([]Event, error)
	// EventsBetween returns approved events with a date in [from, to].
	EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error)
	// EventsAfter returns approved events dated at or after from.
	EventsAfter(ctx context.Context, from time.Time) ([]Event, error)

	// Attendance aggregates.
	AttendeeEmails(ctx context.Context, eventIDs []string) ([]string, error)
	AttendanceCount(ctx context.Context, eventID string) (int, error)
	// OrganizerHistory averages attendance over up to limit of the
	// organizer's other approved events dated before the given instant.
	// events reports how many qualified.
	OrganizerHistory(ctx context.Context, handle, excludeEventID string, before time.Time, limit int) (avg float64, events int, err error)
	// LastAttendanceByEmail returns each attendee's most recent attendance
	// when it falls strictly inside (after, before), oldest first, capped.
	LastAttendanceByEmail(ctx context.Context, after, before time.Time, limit int) ([]Activity, error)
	// RegularsForOrganizer returns attendees with at least minEvents distinct
	// attended events among the organizer's approved events dated before the
	// given instant, excluding the subject event itself.
	RegularsForOrganizer(ctx context.Context, handle, excludeEventID string, before time.Time, minEvents int) ([]Regular, error)

	// Notifications.
	CreateNotification(ctx context.Context, n *Notification) error
	// HasNudgeSince reports whether the user received any nudge-typed
	// notification after since.
	HasNudgeSince(ctx context.Context, userID string, since time.Time) (bool, error)
	// HasNudgeOfType narrows to one signal type, and to one subject event
	// when eventID is non-empty.
	HasNudgeOfType(ctx context.Context, userID string, signal SignalType, eventID string, since time.Time) (bool, error)
}

// TextClient is the generative text dependency of the copy generator.
// Injected so tests can substitute canned or failing responses.
type TextClient interface {
	// Complete sends a system instruction and a user prompt and returns the
	// raw model text.
	Complete(ctx context.Context, system, prompt string) (string, error)
}
