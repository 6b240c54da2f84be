// Package listener provides a Postgres LISTEN/NOTIFY consumer for reactive
// nudge processing. It holds a dedicated pgx connection (not from the pool)
// listening on the `event_approved` channel.
//
// When a submission flips to APPROVED, the Postgres trigger fires pg_notify
// and this consumer receives the event id and runs the event-recommendation
// pipeline for it.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gatherly/nudge-engine/internal/nudge"
)

const (
	channel          = "event_approved"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Engine is the slice of the nudge engine the listener invokes.
type Engine interface {
	ProcessApprovedEvent(ctx context.Context, eventID string) (nudge.SignalStats, error)
}

// ApprovedEvent is the JSON payload from pg_notify('event_approved', ...).
type ApprovedEvent struct {
	EventID string `json:"event_id"`
}

// Start opens a dedicated connection and listens on the event_approved
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, engine Engine, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, engine, logger)
		if ctx.Err() != nil {
			logger.Info("Approval listener stopped (context cancelled)")
			return
		}

		logger.Error("Approval listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, engine Engine, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Approval listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var event ApprovedEvent
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			logger.Warn("Failed to parse approval event",
				"payload", notification.Payload, "error", err)
			continue
		}
		if event.EventID == "" {
			logger.Warn("Approval event without event_id", "payload", notification.Payload)
			continue
		}

		logger.Info("Approval event received", "event_id", event.EventID)

		// Process asynchronously to avoid blocking the listener
		go handleApproval(ctx, engine, event.EventID, logger)
	}
}

// handleApproval runs the event-recommendation pipeline for one approved
// event. A race with the approval transaction can surface as not-found; that
// is logged at warn rather than error because the HTTP pathway retries.
func handleApproval(ctx context.Context, engine Engine, eventID string, logger *slog.Logger) {
	stats, err := engine.ProcessApprovedEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, nudge.ErrEventNotFound) {
			logger.Warn("Approved event not visible yet", "event_id", eventID)
			return
		}
		logger.Error("Approved event processing failed", "event_id", eventID, "error", err)
		return
	}
	logger.Info("Approved event processed",
		"event_id", eventID, "sent", stats.Sent, "skipped", stats.Skipped, "errors", stats.Errors)
}
