package nudge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(st *fakeStore, at time.Time) *Engine {
	e := NewEngine(st, NewGenerator(nil, testLogger()), testLogger())
	e.now = func() time.Time { return at }
	e.gate.now = e.now
	return e
}

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestDetectEventRecommendations(t *testing.T) {
	st := newFakeStore()
	st.users = []User{
		{ID: "u1", DisplayName: "Ana", Email: "ana@example.com"},
		{ID: "u2", DisplayName: "Mo", Email: "mo@example.com"},
		{ID: "u3", DisplayName: "Kai", Email: "kai@example.com"},
	}
	st.deleted["u3"] = true

	newEvent := Event{
		ID: "e-new", Name: "Spring Mixer", OrganizerHandle: "host",
		EventDate: datePtr(base.AddDate(0, 0, 7)), Slug: "spring-mixer",
	}
	st.events = []Event{
		newEvent,
		{ID: "e-old1", Name: "Winter Mixer", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -30))},
		{ID: "e-old2", Name: "Fall Mixer", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -60))},
		{ID: "e-other", Name: "Unrelated", OrganizerHandle: "someone", EventDate: datePtr(base.AddDate(0, 0, -10))},
	}
	// ana and kai attended past events; mo already signed up for the new one.
	st.attendance["e-old1"] = []string{"Ana@Example.com", "mo@example.com"}
	st.attendance["e-old2"] = []string{"kai@example.com"}
	st.attendance["e-new"] = []string{"MO@example.com"}

	e := testEngine(st, base)
	candidates, err := e.detectEventRecommendations(context.Background(), &newEvent)
	require.NoError(t, err)

	// mo is excluded (already signed up), kai is excluded (soft-deleted).
	require.Len(t, candidates, 1)
	assert.Equal(t, "u1", candidates[0].UserID)

	sig, ok := candidates[0].Signal.(EventRecommendationSignal)
	require.True(t, ok)
	assert.Equal(t, "e-new", sig.Event)
	assert.Equal(t, "Spring Mixer", sig.EventName)
	assert.Equal(t, "host", sig.OrganizerName)
}

func TestDetectEventRecommendationsNoHistory(t *testing.T) {
	st := newFakeStore()
	ev := Event{ID: "e1", Name: "First Event", OrganizerHandle: "newbie", EventDate: datePtr(base.AddDate(0, 0, 7))}
	st.events = []Event{ev}

	e := testEngine(st, base)
	candidates, err := e.detectEventRecommendations(context.Background(), &ev)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectInactive(t *testing.T) {
	st := newFakeStore()
	st.users = []User{
		{ID: "u1", Email: "edge-in@example.com"},
		{ID: "u2", Email: "mid@example.com"},
		{ID: "u3", Email: "recent@example.com"},
		{ID: "u4", Email: "ancient@example.com"},
		{ID: "u5", Email: "ghost@example.com"},
	}
	st.deleted["u5"] = true
	st.lastAttendance = []Activity{
		{Email: "edge-in@example.com", LastAttendance: base.AddDate(0, 0, -15)},
		{Email: "mid@example.com", LastAttendance: base.AddDate(0, 0, -45)},
		{Email: "recent@example.com", LastAttendance: base.AddDate(0, 0, -7)},   // too recent
		{Email: "ancient@example.com", LastAttendance: base.AddDate(0, 0, -120)}, // too old
		{Email: "ghost@example.com", LastAttendance: base.AddDate(0, 0, -30)},   // deleted account
	}

	e := testEngine(st, base)
	candidates, err := e.detectInactive(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	// Oldest last-attendance first.
	assert.Equal(t, "u2", candidates[0].UserID)
	assert.Equal(t, 45, candidates[0].Signal.(InactivitySignal).DaysInactive)
	assert.Equal(t, "u1", candidates[1].UserID)
	assert.Equal(t, 15, candidates[1].Signal.(InactivitySignal).DaysInactive)
}

func TestDetectInactiveCap(t *testing.T) {
	st := newFakeStore()
	for i := 0; i < inactivityCap+20; i++ {
		email := Activity{
			Email:          emailN(i),
			LastAttendance: base.AddDate(0, 0, -80).Add(time.Duration(i) * time.Hour),
		}
		st.lastAttendance = append(st.lastAttendance, email)
		st.users = append(st.users, User{ID: userN(i), Email: emailN(i)})
	}

	e := testEngine(st, base)
	candidates, err := e.detectInactive(context.Background())
	require.NoError(t, err)

	// Capped, and the cap keeps the longest-inactive users.
	require.Len(t, candidates, inactivityCap)
	assert.Equal(t, userN(0), candidates[0].UserID)
	assert.Equal(t, userN(inactivityCap-1), candidates[inactivityCap-1].UserID)
}

func emailN(i int) string { return "user" + string(rune('a'+i/26)) + string(rune('a'+i%26)) + "@example.com" }
func userN(i int) string  { return "u-" + string(rune('a'+i/26)) + string(rune('a'+i%26)) }

func TestDetectLowFill(t *testing.T) {
	st := newFakeStore()
	st.users = []User{{ID: "host1", Email: "host@example.com"}}
	st.events = []Event{
		{ID: "e1", Name: "Quiet Night", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, 3)), ContactEmail: "host@example.com", Slug: "quiet-night"},
	}
	// 4 of avg 10 = 40%, under the threshold.
	st.attendance["e1"] = []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}
	st.history["host"] = organizerHistory{avg: 10, events: 5}

	e := testEngine(st, base)
	candidates, err := e.detectLowFill(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "host1", candidates[0].UserID)
	sig := candidates[0].Signal.(LowFillRateSignal)
	assert.Equal(t, 40, sig.FillPercent)
	assert.Equal(t, 4, sig.CurrentAttendees)
	assert.Equal(t, 3, sig.DaysUntilEvent)
}

func TestDetectLowFillAtThreshold(t *testing.T) {
	st := newFakeStore()
	st.users = []User{{ID: "host1", Email: "host@example.com"}}
	st.events = []Event{
		{ID: "e1", Name: "Half Full", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, 2)), ContactEmail: "host@example.com"},
	}
	// Exactly 50% does not fire.
	st.attendance["e1"] = []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"}
	st.history["host"] = organizerHistory{avg: 10, events: 4}

	e := testEngine(st, base)
	candidates, err := e.detectLowFill(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectLowFillSkipsWithoutHistory(t *testing.T) {
	st := newFakeStore()
	st.users = []User{{ID: "host1", Email: "host@example.com"}}
	st.events = []Event{
		{ID: "e1", Name: "Debut", OrganizerHandle: "fresh", EventDate: datePtr(base.AddDate(0, 0, 2)), ContactEmail: "host@example.com"},
		{ID: "e2", Name: "Zero Avg", OrganizerHandle: "zero", EventDate: datePtr(base.AddDate(0, 0, 2)), ContactEmail: "host@example.com"},
	}
	st.history["zero"] = organizerHistory{avg: 0, events: 3}

	e := testEngine(st, base)
	candidates, err := e.detectLowFill(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectLowFillSkipsUnresolvableHost(t *testing.T) {
	st := newFakeStore()
	st.events = []Event{
		{ID: "e1", Name: "Orphan", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, 2)), ContactEmail: "nobody@example.com"},
	}
	st.history["host"] = organizerHistory{avg: 10, events: 5}

	e := testEngine(st, base)
	candidates, err := e.detectLowFill(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectMissingRegulars(t *testing.T) {
	st := newFakeStore()
	st.users = []User{{ID: "host1", Email: "host@example.com"}}
	upcoming := Event{
		ID: "e-up", Name: "Monthly Meetup", OrganizerHandle: "host",
		EventDate: datePtr(base.AddDate(0, 0, 5)), ContactEmail: "host@example.com", Slug: "monthly-meetup",
	}
	st.events = []Event{
		upcoming,
		{ID: "p1", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -10))},
		{ID: "p2", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -40))},
		{ID: "p3", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -70))},
	}
	st.regulars["host"] = []Regular{
		{Email: "ana@example.com", DisplayName: "Ana", EventCount: 4},
		{Email: "mo@example.com", DisplayName: "", EventCount: 3},
		{Email: "casual@example.com", DisplayName: "Casual", EventCount: 2}, // below the bar
		{Email: "booked@example.com", DisplayName: "Booked", EventCount: 5},
	}
	st.attendance["e-up"] = []string{"booked@example.com"}

	e := testEngine(st, base)
	candidates, err := e.detectMissingRegulars(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	sig := candidates[0].Signal.(RegularsMissingSignal)
	assert.Equal(t, "host1", candidates[0].UserID)
	// casual is under the attendance bar, booked already signed up;
	// mo has no display name so the email local part is used.
	assert.Equal(t, []string{"Ana", "mo"}, sig.RegularNames)
	assert.Equal(t, 5, sig.DaysUntilEvent)
}

func TestDetectMissingRegularsNeedsHistory(t *testing.T) {
	st := newFakeStore()
	st.users = []User{{ID: "host1", Email: "host@example.com"}}
	st.events = []Event{
		{ID: "e-up", Name: "Second Ever", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, 5)), ContactEmail: "host@example.com"},
		{ID: "p1", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -10))},
	}
	st.regulars["host"] = []Regular{{Email: "ana@example.com", EventCount: 3}}

	e := testEngine(st, base)
	candidates, err := e.detectMissingRegulars(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectMissingRegularsNameCap(t *testing.T) {
	st := newFakeStore()
	st.users = []User{{ID: "host1", Email: "host@example.com"}}
	st.events = []Event{
		{ID: "e-up", Name: "Big Night", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, 4)), ContactEmail: "host@example.com"},
		{ID: "p1", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -10))},
		{ID: "p2", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -20))},
		{ID: "p3", OrganizerHandle: "host", EventDate: datePtr(base.AddDate(0, 0, -30))},
	}
	st.regulars["host"] = []Regular{
		{Email: "a@x.com", DisplayName: "A", EventCount: 3},
		{Email: "b@x.com", DisplayName: "B", EventCount: 3},
		{Email: "c@x.com", DisplayName: "C", EventCount: 3},
		{Email: "d@x.com", DisplayName: "D", EventCount: 3},
	}

	e := testEngine(st, base)
	candidates, err := e.detectMissingRegulars(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	sig := candidates[0].Signal.(RegularsMissingSignal)
	assert.Len(t, sig.RegularNames, regularNamesCap)
}
