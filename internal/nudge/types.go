// Package nudge detects engagement signals in attendance data and turns them
// into notification records.
//
// Pipeline: detect candidates → eligibility gate → copy generation → persist.
// Three detectors run on a periodic batch; the event-recommendation detector
// reacts to individual event approvals.
package nudge

import "time"

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// NotificationType tags every record this engine creates. Transactional
	// notifications (booking confirmations etc.) use other type tags.
	NotificationType = "NUDGE"

	// Gate windows.
	rateLimitWindow = 24 * time.Hour
	dedupWindow     = 7 * 24 * time.Hour

	// Inactivity detector: last attendance strictly inside (14d, 90d) ago.
	inactivityMinDays = 14
	inactivityMaxDays = 90
	inactivityCap     = 50

	// Low fill detector: approved events 1–5 days out, fires under 50%.
	lowFillMinDays   = 1
	lowFillMaxDays   = 5
	lowFillThreshold = 50
	historyLimit     = 10

	// Regulars detector.
	regularsMinDaysOut   = 3
	regularMinAttendance = 3
	organizerMinHistory  = 3
	regularNamesCap      = 3

	// Copy bounds, enforced on generated and fallback text alike.
	maxTitleLen = 60
	maxBodyLen  = 140
)

// --------------------------------------------------------------------------
// Signal taxonomy
// --------------------------------------------------------------------------

// SignalType identifies one of the four nudge signal kinds.
type SignalType string

const (
	SignalEventRecommendation SignalType = "EVENT_RECOMMENDATION"
	SignalInactivity          SignalType = "INACTIVITY_REENGAGEMENT"
	SignalLowFillRate         SignalType = "LOW_FILL_RATE"
	SignalRegularsMissing     SignalType = "REGULARS_NOT_SIGNED_UP"
)

// Signal is the closed union over the four signal kinds. Each variant carries
// only the fields its copy needs. Signals are ephemeral: built by a detector,
// consumed by the gate and the copy generator, then discarded.
type Signal interface {
	Type() SignalType
	// EventID is the subject event when the signal concerns one, "" otherwise.
	// It becomes part of the dedup key.
	EventID() string
	sealed()
}

// EventRecommendationSignal nudges a past attendee of an organizer toward the
// organizer's newly approved event.
type EventRecommendationSignal struct {
	Event         string // subject event id
	EventName     string
	EventSlug     string
	OrganizerName string
	EventDate     *time.Time
}

func (s EventRecommendationSignal) Type() SignalType { return SignalEventRecommendation }
func (s EventRecommendationSignal) EventID() string  { return s.Event }
func (s EventRecommendationSignal) sealed()          {}

// InactivitySignal re-engages a user whose last attendance fell inside the
// inactivity window.
type InactivitySignal struct {
	DaysInactive int
}

func (s InactivitySignal) Type() SignalType { return SignalInactivity }
func (s InactivitySignal) EventID() string  { return "" }
func (s InactivitySignal) sealed()          {}

// LowFillRateSignal warns a host that an imminent event is filling well below
// their historical average.
type LowFillRateSignal struct {
	Event            string
	EventName        string
	EventSlug        string
	FillPercent      int
	CurrentAttendees int
	DaysUntilEvent   int
}

func (s LowFillRateSignal) Type() SignalType { return SignalLowFillRate }
func (s LowFillRateSignal) EventID() string  { return s.Event }
func (s LowFillRateSignal) sealed()          {}

// RegularsMissingSignal tells a host which of their regulars have not signed
// up for an upcoming event yet.
type RegularsMissingSignal struct {
	Event          string
	EventName      string
	EventSlug      string
	RegularNames   []string
	DaysUntilEvent int
}

func (s RegularsMissingSignal) Type() SignalType { return SignalRegularsMissing }
func (s RegularsMissingSignal) EventID() string  { return s.Event }
func (s RegularsMissingSignal) sealed()          {}

// Candidate pairs a recipient with a detected signal.
type Candidate struct {
	UserID string
	Signal Signal
}

// --------------------------------------------------------------------------
// Store-facing records
// --------------------------------------------------------------------------

// User is a marketplace account as the engine sees it. Owned by the identity
// system; read-only here.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// Event is an approved event submission.
type Event struct {
	ID              string
	Name            string
	OrganizerHandle string
	EventDate       *time.Time
	Slug            string
	ContactEmail    string
}

// Activity is one user's most recent attendance, from the last-attendance
// aggregate.
type Activity struct {
	Email          string
	DisplayName    string
	LastAttendance time.Time
}

// Regular is an attendee with enough distinct past events for one organizer
// to count as a regular.
type Regular struct {
	Email       string
	DisplayName string
	EventCount  int
}

// Notification is the persisted output of the engine. Insert-only from this
// package; read/mark-as-read belongs to the delivery layer.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Content   string
	Link      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// --------------------------------------------------------------------------
// Run reporting
// --------------------------------------------------------------------------

// SignalStats aggregates one detector's outcomes within a run.
type SignalStats struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// RunResult summarizes one periodic batch.
type RunResult struct {
	RanAt      time.Time   `json:"ran_at"`
	Inactivity SignalStats `json:"inactivity_reengagement"`
	LowFill    SignalStats `json:"low_fill_rate"`
	Regulars   SignalStats `json:"regulars_not_signed_up"`
	Duration   string      `json:"duration"`
}
