// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/nudge-engine/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers every statement the nudge store uses.
// Prepared statements eliminate parse overhead on the per-candidate gate
// queries, which dominate a batch run.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Users
		"user_by_id": `
			SELECT id, display_name, email FROM users
			WHERE id = $1 AND is_deleted = FALSE`,
		"active_user_by_email": `
			SELECT id, display_name, email FROM users
			WHERE LOWER(email) = LOWER($1) AND is_deleted = FALSE`,
		"active_users_by_emails": `
			SELECT id, display_name, email FROM users
			WHERE LOWER(email) = ANY($1) AND is_deleted = FALSE`,

		// Event submissions (approved only)
		"approved_event_by_id": `
			SELECT id, name, organizer_handle, event_date, COALESCE(slug, ''), contact_email
			FROM event_submissions
			WHERE id = $1 AND status = 'APPROVED'`,
		"past_events_by_organizer": `
			SELECT id, name, organizer_handle, event_date, COALESCE(slug, ''), contact_email
			FROM event_submissions
			WHERE organizer_handle = $1 AND status = 'APPROVED'
			  AND id <> $2 AND event_date IS NOT NULL AND event_date < $3
			ORDER BY event_date DESC`,
		"events_between": `
			SELECT id, name, organizer_handle, event_date, COALESCE(slug, ''), contact_email
			FROM event_submissions
			WHERE status = 'APPROVED' AND event_date BETWEEN $1 AND $2
			ORDER BY event_date`,
		"events_after": `
			SELECT id, name, organizer_handle, event_date, COALESCE(slug, ''), contact_email
			FROM event_submissions
			WHERE status = 'APPROVED' AND event_date >= $1
			ORDER BY event_date`,

		// Attendance aggregates
		"attendee_emails": `
			SELECT DISTINCT LOWER(email) FROM event_attendances
			WHERE event_id = ANY($1)`,
		"attendance_count": `
			SELECT COUNT(*) FROM event_attendances WHERE event_id = $1`,
		"organizer_history": `
			SELECT COALESCE(AVG(t.cnt), 0), COUNT(*)
			FROM (
				SELECT COUNT(a.id) AS cnt
				FROM event_submissions e
				LEFT JOIN event_attendances a ON a.event_id = e.id
				WHERE e.organizer_handle = $1 AND e.status = 'APPROVED'
				  AND e.id <> $2 AND e.event_date IS NOT NULL AND e.event_date < $3
				GROUP BY e.id, e.event_date
				ORDER BY e.event_date DESC
				LIMIT $4
			) t`,
		"last_attendance_by_email": `
			SELECT LOWER(a.email), MAX(a.display_name), MAX(a.created_at) AS last_at
			FROM event_attendances a
			GROUP BY LOWER(a.email)
			HAVING MAX(a.created_at) > $1 AND MAX(a.created_at) < $2
			ORDER BY last_at ASC
			LIMIT $3`,
		"regulars_for_organizer": `
			SELECT LOWER(a.email), MAX(a.display_name), COUNT(DISTINCT a.event_id) AS events
			FROM event_attendances a
			JOIN event_submissions e ON e.id = a.event_id
			WHERE e.organizer_handle = $1 AND e.status = 'APPROVED'
			  AND e.id <> $2 AND e.event_date IS NOT NULL AND e.event_date < $3
			GROUP BY LOWER(a.email)
			HAVING COUNT(DISTINCT a.event_id) >= $4
			ORDER BY events DESC, LOWER(a.email)`,

		// Notifications
		"insert_notification": `
			INSERT INTO notifications (user_id, type, title, content, link, metadata, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
			RETURNING id`,
		"has_nudge_since": `
			SELECT EXISTS (
				SELECT 1 FROM notifications
				WHERE user_id = $1 AND type = $2 AND created_at > $3
			)`,
		"has_nudge_of_type": `
			SELECT EXISTS (
				SELECT 1 FROM notifications
				WHERE user_id = $1 AND type = $2 AND created_at > $3
				  AND metadata ->> 'signal' = $4
				  AND ($5 = '' OR metadata ->> 'event_id' = $5)
			)`,

		// Maintenance
		"purge_read_nudges": `
			DELETE FROM notifications
			WHERE type = $1 AND is_read = TRUE AND created_at < $2`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
