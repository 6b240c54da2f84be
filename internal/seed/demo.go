package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Demo inserts a small consistent dataset: one organizer with attendance
// history, regulars, an under-filled upcoming event, and a handful of lapsed
// attendees. Idempotent via upserts on fixed ids.
func Demo(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) Result {
	var result Result
	now := time.Now().UTC()

	users := []struct {
		id, name, email string
	}{
		{"demo-host", "Jordan Reyes", "jordan@demo.gatherly.app"},
		{"demo-ana", "Ana Petrova", "ana@demo.gatherly.app"},
		{"demo-mo", "Mo Diallo", "mo@demo.gatherly.app"},
		{"demo-kai", "Kai Tanaka", "kai@demo.gatherly.app"},
		{"demo-lena", "Lena Fischer", "lena@demo.gatherly.app"},
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, display_name, email)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`,
			u.id, u.name, u.email)
		if err != nil {
			result.AddErrorf("upsert user %s: %v", u.id, err)
			continue
		}
		result.UsersUpserted++
	}

	events := []struct {
		id, name, slug string
		daysFromNow    int
	}{
		{"demo-ev1", "Rooftop Sessions Vol. 1", "rooftop-sessions-1", -90},
		{"demo-ev2", "Rooftop Sessions Vol. 2", "rooftop-sessions-2", -60},
		{"demo-ev3", "Rooftop Sessions Vol. 3", "rooftop-sessions-3", -30},
		{"demo-ev4", "Rooftop Sessions Vol. 4", "rooftop-sessions-4", 4},
	}
	for _, ev := range events {
		date := now.AddDate(0, 0, ev.daysFromNow)
		_, err := pool.Exec(ctx, `
			INSERT INTO event_submissions (id, name, organizer_handle, event_date, status, slug, contact_email)
			VALUES ($1, $2, 'demo-organizer', $3, 'APPROVED', $4, 'jordan@demo.gatherly.app')
			ON CONFLICT (id) DO UPDATE SET event_date = EXCLUDED.event_date`,
			ev.id, ev.name, date, ev.slug)
		if err != nil {
			result.AddErrorf("upsert event %s: %v", ev.id, err)
			continue
		}
		result.EventsUpserted++
	}

	// ana and mo attended every past event (regulars); kai attended two of
	// the three; lena only the oldest, which also makes her lapsed. The
	// upcoming event has a single signup, well under the historical average.
	attendance := map[string][]string{
		"demo-ev1": {"demo-ana", "demo-mo", "demo-kai", "demo-lena"},
		"demo-ev2": {"demo-ana", "demo-mo", "demo-kai"},
		"demo-ev3": {"demo-ana", "demo-mo"},
		"demo-ev4": {"demo-kai"},
	}
	emailOf := make(map[string]string, len(users))
	nameOf := make(map[string]string, len(users))
	for _, u := range users {
		emailOf[u.id] = u.email
		nameOf[u.id] = u.name
	}
	eventDate := make(map[string]int, len(events))
	for _, ev := range events {
		eventDate[ev.id] = ev.daysFromNow
	}

	for eventID, attendees := range attendance {
		for _, userID := range attendees {
			rowID := fmt.Sprintf("demo-att-%s-%s", strings.TrimPrefix(eventID, "demo-"), strings.TrimPrefix(userID, "demo-"))
			createdAt := now.AddDate(0, 0, eventDate[eventID]-2)
			_, err := pool.Exec(ctx, `
				INSERT INTO event_attendances (id, event_id, email, display_name, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING`,
				rowID, eventID, emailOf[userID], nameOf[userID], createdAt)
			if err != nil {
				result.AddErrorf("upsert attendance %s: %v", rowID, err)
				continue
			}
			result.AttendancesUpserted++
		}
	}

	logger.Info("Demo data seeded", "summary", result.Summary())
	return result
}
