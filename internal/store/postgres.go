// Package store implements the nudge engine's repository over Postgres.
// All queries run through prepared statements registered in internal/db;
// aggregates (last attendance, regulars, organizer history) are expressed in
// SQL so the detectors never pull raw attendance rows into memory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/nudge-engine/internal/nudge"
)

// Postgres is the pgx-backed nudge.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a Postgres store over an existing pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

// UserByID returns an active user, or nil when none matches.
func (s *Postgres) UserByID(ctx context.Context, id string) (*nudge.User, error) {
	var u nudge.User
	err := s.pool.QueryRow(ctx, "user_by_id", id).Scan(&u.ID, &u.DisplayName, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", err)
	}
	return &u, nil
}

// ActiveUserByEmail resolves a case-insensitive email to an active user, or
// nil when none matches.
func (s *Postgres) ActiveUserByEmail(ctx context.Context, email string) (*nudge.User, error) {
	var u nudge.User
	err := s.pool.QueryRow(ctx, "active_user_by_email", email).Scan(&u.ID, &u.DisplayName, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user by email: %w", err)
	}
	return &u, nil
}

// ActiveUsersByEmails resolves a batch of emails; unknown and soft-deleted
// addresses are simply absent from the result.
func (s *Postgres) ActiveUsersByEmails(ctx context.Context, emails []string) ([]nudge.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, em := range emails {
		lowered[i] = strings.ToLower(em)
	}

	rows, err := s.pool.Query(ctx, "active_users_by_emails", lowered)
	if err != nil {
		return nil, fmt.Errorf("users by emails: %w", err)
	}
	defer rows.Close()

	var users []nudge.User
	for rows.Next() {
		var u nudge.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --------------------------------------------------------------------------
// Event submissions
// --------------------------------------------------------------------------

// EventByID returns an approved event, or nil when the id is unknown or the
// event is not approved.
func (s *Postgres) EventByID(ctx context.Context, id string) (*nudge.Event, error) {
	ev, err := scanEvent(s.pool.QueryRow(ctx, "approved_event_by_id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("event by id: %w", err)
	}
	return ev, nil
}

// PastEventsByOrganizer returns the organizer's other approved events dated
// before the given instant, newest first.
func (s *Postgres) PastEventsByOrganizer(ctx context.Context, handle, excludeEventID string, before time.Time) ([]nudge.Event, error) {
	rows, err := s.pool.Query(ctx, "past_events_by_organizer", handle, excludeEventID, before)
	if err != nil {
		return nil, fmt.Errorf("past events by organizer: %w", err)
	}
	return collectEvents(rows)
}

// EventsBetween returns approved events with a date in [from, to].
func (s *Postgres) EventsBetween(ctx context.Context, from, to time.Time) ([]nudge.Event, error) {
	rows, err := s.pool.Query(ctx, "events_between", from, to)
	if err != nil {
		return nil, fmt.Errorf("events between: %w", err)
	}
	return collectEvents(rows)
}

// EventsAfter returns approved events dated at or after from.
func (s *Postgres) EventsAfter(ctx context.Context, from time.Time) ([]nudge.Event, error) {
	rows, err := s.pool.Query(ctx, "events_after", from)
	if err != nil {
		return nil, fmt.Errorf("events after: %w", err)
	}
	return collectEvents(rows)
}

func scanEvent(row pgx.Row) (*nudge.Event, error) {
	var ev nudge.Event
	if err := row.Scan(&ev.ID, &ev.Name, &ev.OrganizerHandle, &ev.EventDate, &ev.Slug, &ev.ContactEmail); err != nil {
		return nil, err
	}
	return &ev, nil
}

func collectEvents(rows pgx.Rows) ([]nudge.Event, error) {
	defer rows.Close()
	var events []nudge.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// --------------------------------------------------------------------------
// Attendance aggregates
// --------------------------------------------------------------------------

// AttendeeEmails returns the distinct lowercased attendee emails across the
// given events.
func (s *Postgres) AttendeeEmails(ctx context.Context, eventIDs []string) ([]string, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, "attendee_emails", eventIDs)
	if err != nil {
		return nil, fmt.Errorf("attendee emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var em string
		if err := rows.Scan(&em); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, em)
	}
	return emails, rows.Err()
}

// AttendanceCount counts RSVPs for one event.
func (s *Postgres) AttendanceCount(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "attendance_count", eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("attendance count: %w", err)
	}
	return n, nil
}

// OrganizerHistory averages attendance over up to limit of the organizer's
// other approved, already-occurred events.
func (s *Postgres) OrganizerHistory(ctx context.Context, handle, excludeEventID string, before time.Time, limit int) (float64, int, error) {
	var avg float64
	var events int
	err := s.pool.QueryRow(ctx, "organizer_history", handle, excludeEventID, before, limit).Scan(&avg, &events)
	if err != nil {
		return 0, 0, fmt.Errorf("organizer history: %w", err)
	}
	return avg, events, nil
}

// LastAttendanceByEmail returns each attendee's most recent attendance inside
// (after, before), oldest first, capped at limit.
func (s *Postgres) LastAttendanceByEmail(ctx context.Context, after, before time.Time, limit int) ([]nudge.Activity, error) {
	rows, err := s.pool.Query(ctx, "last_attendance_by_email", after, before, limit)
	if err != nil {
		return nil, fmt.Errorf("last attendance: %w", err)
	}
	defer rows.Close()

	var activities []nudge.Activity
	for rows.Next() {
		var a nudge.Activity
		if err := rows.Scan(&a.Email, &a.DisplayName, &a.LastAttendance); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// RegularsForOrganizer returns attendees with at least minEvents distinct
// attended events among the organizer's past approved events.
func (s *Postgres) RegularsForOrganizer(ctx context.Context, handle, excludeEventID string, before time.Time, minEvents int) ([]nudge.Regular, error) {
	rows, err := s.pool.Query(ctx, "regulars_for_organizer", handle, excludeEventID, before, minEvents)
	if err != nil {
		return nil, fmt.Errorf("regulars for organizer: %w", err)
	}
	defer rows.Close()

	var regulars []nudge.Regular
	for rows.Next() {
		var r nudge.Regular
		if err := rows.Scan(&r.Email, &r.DisplayName, &r.EventCount); err != nil {
			return nil, fmt.Errorf("scan regular: %w", err)
		}
		regulars = append(regulars, r)
	}
	return regulars, rows.Err()
}

// --------------------------------------------------------------------------
// Notifications
// --------------------------------------------------------------------------

// CreateNotification inserts a nudge record and fills in its generated id.
func (s *Postgres) CreateNotification(ctx context.Context, n *nudge.Notification) error {
	md, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	err = s.pool.QueryRow(ctx, "insert_notification",
		n.UserID, n.Type, n.Title, n.Content, n.Link, md, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// HasNudgeSince reports whether the user received any nudge after since.
func (s *Postgres) HasNudgeSince(ctx context.Context, userID string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "has_nudge_since", userID, nudge.NotificationType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("nudge since: %w", err)
	}
	return exists, nil
}

// HasNudgeOfType narrows to one signal type plus, when eventID is non-empty,
// one subject event recorded in the metadata.
func (s *Postgres) HasNudgeOfType(ctx context.Context, userID string, signal nudge.SignalType, eventID string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "has_nudge_of_type",
		userID, nudge.NotificationType, since, string(signal), eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("nudge of type: %w", err)
	}
	return exists, nil
}

// PurgeReadNudges deletes read nudge notifications created before the cutoff.
// Used by the maintenance ticker, not by the engine.
func (s *Postgres) PurgeReadNudges(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "purge_read_nudges", nudge.NotificationType, before)
	if err != nil {
		return 0, fmt.Errorf("purge read nudges: %w", err)
	}
	return tag.RowsAffected(), nil
}
