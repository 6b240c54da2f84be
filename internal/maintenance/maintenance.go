// Package maintenance runs periodic background tasks as Go tickers.
// Replaces pg_cron — all scheduled work is driven from Go since the engine
// is already a persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/nudge-engine/internal/nudge"
)

// Store is the persistence slice the cleanup task needs.
type Store interface {
	PurgeReadNudges(ctx context.Context, before time.Time) (int64, error)
}

// Engine is the slice of the nudge engine the catch-up sweep invokes.
type Engine interface {
	ProcessApprovedEvent(ctx context.Context, eventID string) (nudge.SignalStats, error)
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // Purge read nudges past retention
	CatchUpInterval time.Duration // Sweep for missed event_approved events
	Retention       time.Duration // How long read nudges are kept
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig(retention time.Duration) Config {
	return Config{
		CleanupInterval: 6 * time.Hour,
		CatchUpInterval: 15 * time.Minute,
		Retention:       retention,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, store Store, engine Engine, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"catchup", cfg.CatchUpInterval,
		"retention", cfg.Retention)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Cleanup: purge read nudges older than the retention window
	if cfg.CleanupInterval > 0 && cfg.Retention > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { cleanup(ctx, store, cfg.Retention, logger) })
	}

	// Catch-up: sweep for approvals missed during listener downtime
	if cfg.CatchUpInterval > 0 {
		t := time.NewTicker(cfg.CatchUpInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { catchUpSweep(ctx, pool, engine, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// cleanup removes nudges that were read and are older than the retention
// window. Unread nudges are kept so a returning user still sees them.
func cleanup(ctx context.Context, store Store, retention time.Duration, logger *slog.Logger) {
	purged, err := store.PurgeReadNudges(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.Warn("Cleanup: failed to purge read nudges", "error", err)
		return
	}
	if purged > 0 {
		logger.Info("Cleanup: purged read nudges", "count", purged)
	}
}

// catchUpSweep finds events approved in the last hour with no recommendation
// nudge referencing them and reprocesses each. Covers approvals whose NOTIFY
// fired while the listener was down. Reprocessing an event whose candidates
// were all gated or empty is harmless; the gate absorbs it.
func catchUpSweep(ctx context.Context, pool *pgxpool.Pool, engine Engine, logger *slog.Logger) {
	rows, err := pool.Query(ctx, `
		SELECT e.id
		FROM event_submissions e
		WHERE e.status = 'APPROVED'
		  AND e.approved_at > NOW() - INTERVAL '1 hour'
		  AND NOT EXISTS (
			SELECT 1 FROM notifications n
			WHERE n.metadata ->> 'signal' = 'EVENT_RECOMMENDATION'
			  AND n.metadata ->> 'event_id' = e.id
		  )`)
	if err != nil {
		logger.Warn("Catch-up sweep: query failed", "error", err)
		return
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logger.Warn("Catch-up sweep: scan failed", "error", err)
			return
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		logger.Warn("Catch-up sweep: rows failed", "error", err)
		return
	}

	for _, id := range ids {
		stats, err := engine.ProcessApprovedEvent(ctx, id)
		if err != nil {
			logger.Warn("Catch-up sweep: reprocess failed", "event_id", id, "error", err)
			continue
		}
		logger.Info("Catch-up sweep: reprocessed missed approval",
			"event_id", id, "sent", stats.Sent, "skipped", stats.Skipped)
	}
}
