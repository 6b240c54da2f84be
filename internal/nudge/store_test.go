package nudge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// fakeStore is an in-memory Store with the same filtering semantics as the
// Postgres implementation. Shared by the detector, gate, and engine tests.
type fakeStore struct {
	users          []User
	deleted        map[string]bool // user id -> soft-deleted
	events         []Event
	attendance     map[string][]string // event id -> attendee emails
	lastAttendance []Activity          // pre-aggregated, oldest first
	history        map[string]organizerHistory
	regulars       map[string][]Regular
	notifications  []Notification

	failCreateFor map[string]bool // user id -> CreateNotification fails
	nextID        int
}

type organizerHistory struct {
	avg    float64
	events int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deleted:       make(map[string]bool),
		attendance:    make(map[string][]string),
		history:       make(map[string]organizerHistory),
		regulars:      make(map[string][]Regular),
		failCreateFor: make(map[string]bool),
	}
}

func (f *fakeStore) UserByID(_ context.Context, id string) (*User, error) {
	for _, u := range f.users {
		if u.ID == id && !f.deleted[u.ID] {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActiveUserByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) && !f.deleted[u.ID] {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActiveUsersByEmails(_ context.Context, emails []string) ([]User, error) {
	want := make(map[string]bool, len(emails))
	for _, em := range emails {
		want[strings.ToLower(em)] = true
	}
	var out []User
	for _, u := range f.users {
		if want[strings.ToLower(u.Email)] && !f.deleted[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) EventByID(_ context.Context, id string) (*Event, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			out := ev
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PastEventsByOrganizer(_ context.Context, handle, excludeEventID string, before time.Time) ([]Event, error) {
	var out []Event
	for _, ev := range f.events {
		if ev.OrganizerHandle != handle || ev.ID == excludeEventID {
			continue
		}
		if ev.EventDate == nil || !ev.EventDate.Before(before) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.After(*out[j].EventDate) })
	return out, nil
}

func (f *fakeStore) EventsBetween(_ context.Context, from, to time.Time) ([]Event, error) {
	var out []Event
	for _, ev := range f.events {
		if ev.EventDate == nil {
			continue
		}
		if ev.EventDate.Before(from) || ev.EventDate.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeStore) EventsAfter(_ context.Context, from time.Time) ([]Event, error) {
	var out []Event
	for _, ev := range f.events {
		if ev.EventDate == nil || ev.EventDate.Before(from) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeStore) AttendeeEmails(_ context.Context, eventIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, id := range eventIDs {
		for _, em := range f.attendance[id] {
			low := strings.ToLower(em)
			if !seen[low] {
				seen[low] = true
				out = append(out, low)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) AttendanceCount(_ context.Context, eventID string) (int, error) {
	return len(f.attendance[eventID]), nil
}

func (f *fakeStore) OrganizerHistory(_ context.Context, handle, _ string, _ time.Time, _ int) (float64, int, error) {
	h := f.history[handle]
	return h.avg, h.events, nil
}

func (f *fakeStore) LastAttendanceByEmail(_ context.Context, after, before time.Time, limit int) ([]Activity, error) {
	var out []Activity
	for _, a := range f.lastAttendance {
		if !a.LastAttendance.After(after) || !a.LastAttendance.Before(before) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAttendance.Before(out[j].LastAttendance) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) RegularsForOrganizer(_ context.Context, handle, _ string, _ time.Time, minEvents int) ([]Regular, error) {
	var out []Regular
	for _, r := range f.regulars[handle] {
		if r.EventCount >= minEvents {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateNotification(_ context.Context, n *Notification) error {
	if f.failCreateFor[n.UserID] {
		return fmt.Errorf("insert failed for %s", n.UserID)
	}
	f.nextID++
	n.ID = fmt.Sprintf("n%d", f.nextID)
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeStore) HasNudgeSince(_ context.Context, userID string, since time.Time) (bool, error) {
	for _, n := range f.notifications {
		if n.UserID == userID && n.Type == NotificationType && n.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasNudgeOfType(_ context.Context, userID string, signal SignalType, eventID string, since time.Time) (bool, error) {
	for _, n := range f.notifications {
		if n.UserID != userID || n.Type != NotificationType || !n.CreatedAt.After(since) {
			continue
		}
		if n.Metadata["signal"] != string(signal) {
			continue
		}
		if eventID != "" && n.Metadata["event_id"] != eventID {
			continue
		}
		return true, nil
	}
	return false, nil
}

// fakeTextClient returns a canned response or a fixed error.
type fakeTextClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeTextClient) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func datePtr(t time.Time) *time.Time { return &t }
