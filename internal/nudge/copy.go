package nudge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// systemPrompt is the fixed instruction sent with every generation request.
const systemPrompt = `You write short in-app notifications for Gatherly, an events marketplace.
Tone: warm, concise, locale-appropriate. No emoji, no exclamation overload.
Respond with strict JSON only: {"title": string, "body": string}.
The title must be at most 60 characters and the body at most 140 characters.`

// Copy is a bounded-length notification text pair.
type Copy struct {
	Title string
	Body  string
}

// Generator turns a signal into notification copy. It calls the generative
// provider and falls back to static templates on any failure, so Generate
// never fails its caller.
type Generator struct {
	client TextClient
	logger *slog.Logger
}

// NewGenerator creates a copy generator. client may be nil, in which case
// every signal gets fallback copy.
func NewGenerator(client TextClient, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, logger: logger}
}

// Generate produces copy for a signal. Provider errors, malformed responses,
// and timeouts all degrade to the per-signal fallback template; they are
// logged and never propagated.
func (g *Generator) Generate(ctx context.Context, sig Signal) Copy {
	c, err := g.fromProvider(ctx, sig)
	if err != nil {
		g.logger.Warn("copy generation fell back to template",
			"signal", sig.Type(), "error", err)
		return fallbackCopy(sig)
	}
	return c
}

func (g *Generator) fromProvider(ctx context.Context, sig Signal) (Copy, error) {
	if g.client == nil {
		return Copy{}, fmt.Errorf("no text client configured")
	}

	raw, err := g.client.Complete(ctx, systemPrompt, buildPrompt(sig))
	if err != nil {
		return Copy{}, fmt.Errorf("complete: %w", err)
	}

	var parsed struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return Copy{}, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Title == "" || parsed.Body == "" {
		return Copy{}, fmt.Errorf("response missing title or body")
	}
	return clampCopy(Copy{Title: parsed.Title, Body: parsed.Body}), nil
}

// buildPrompt renders the signal-specific instruction for the model.
func buildPrompt(sig Signal) string {
	switch s := sig.(type) {
	case EventRecommendationSignal:
		when := "soon"
		if s.EventDate != nil {
			when = s.EventDate.Format("Monday, Jan 2")
		}
		return fmt.Sprintf(
			"Invite a user to %q, a new event by %s happening %s. The user attended this organizer's past events.",
			s.EventName, s.OrganizerName, when)
	case InactivitySignal:
		return fmt.Sprintf(
			"Re-engage a user who last attended an event %d days ago. Encourage them to browse upcoming events.",
			s.DaysInactive)
	case LowFillRateSignal:
		return fmt.Sprintf(
			"Tell an event host that %q, %d days away, has %d signups — about %d%% of their usual turnout. Suggest sharing the event.",
			s.EventName, s.DaysUntilEvent, s.CurrentAttendees, s.FillPercent)
	case RegularsMissingSignal:
		return fmt.Sprintf(
			"Tell an event host that regulars %s have not signed up for %q, %d days away. Suggest a personal invite.",
			strings.Join(s.RegularNames, ", "), s.EventName, s.DaysUntilEvent)
	default:
		return fmt.Sprintf("Write a short friendly notification about %s.", sig.Type())
	}
}

// fallbackCopy returns the pre-authored template for a signal. Templates are
// written inside the bounds; clamping still applies because interpolated
// names come from user data.
func fallbackCopy(sig Signal) Copy {
	var c Copy
	switch s := sig.(type) {
	case EventRecommendationSignal:
		c = Copy{
			Title: fmt.Sprintf("New event from %s", s.OrganizerName),
			Body:  fmt.Sprintf("%s just announced %s. Spots can go fast — take a look.", s.OrganizerName, s.EventName),
		}
	case InactivitySignal:
		c = Copy{
			Title: "We've missed you",
			Body:  fmt.Sprintf("It's been %d days since your last event. See what's coming up near you.", s.DaysInactive),
		}
	case LowFillRateSignal:
		c = Copy{
			Title: fmt.Sprintf("Boost signups for %s", s.EventName),
			Body:  fmt.Sprintf("%s is %d days away at %d%% of your usual turnout. Sharing it could help.", s.EventName, s.DaysUntilEvent, s.FillPercent),
		}
	case RegularsMissingSignal:
		c = Copy{
			Title: "Your regulars haven't booked yet",
			Body:  fmt.Sprintf("%s haven't signed up for %s yet. A personal invite goes a long way.", strings.Join(s.RegularNames, ", "), s.EventName),
		}
	default:
		c = Copy{
			Title: "Something new on Gatherly",
			Body:  "There's activity on Gatherly you might want to see.",
		}
	}
	return clampCopy(c)
}

// extractJSON cuts the first JSON object out of a model response, tolerating
// markdown code fences and prose around it.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}

// clampCopy truncates both fields to the notification bounds.
func clampCopy(c Copy) Copy {
	c.Title = truncate(c.Title, maxTitleLen)
	c.Body = truncate(c.Body, maxBodyLen)
	return c
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
