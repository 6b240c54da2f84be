// Command nudge is the Gatherly nudge engine CLI.
//
// Usage:
//
//	nudge run
//	nudge event --id evt_123
//	nudge preview --signal INACTIVITY_REENGAGEMENT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gatherly/nudge-engine/internal/config"
	"github.com/gatherly/nudge-engine/internal/db"
	"github.com/gatherly/nudge-engine/internal/genai"
	"github.com/gatherly/nudge-engine/internal/nudge"
	"github.com/gatherly/nudge-engine/internal/seed"
	"github.com/gatherly/nudge-engine/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "nudge",
		Short: "Gatherly nudge engine CLI",
	}

	root.AddCommand(runCmd())
	root.AddCommand(eventCmd())
	root.AddCommand(previewCmd())
	root.AddCommand(seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the periodic nudge batch once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(func(ctx context.Context, engine *nudge.Engine) error {
				start := time.Now()
				result := engine.ProcessPeriodicNudges(ctx)
				logger.Info("Nudge run finished",
					"duration", time.Since(start).Round(time.Second),
					"inactivity", result.Inactivity,
					"low_fill", result.LowFill,
					"regulars", result.Regulars)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// event command
// --------------------------------------------------------------------------

func eventCmd() *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Process a single approved event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventID == "" {
				return fmt.Errorf("--id is required")
			}
			return runWithEngine(func(ctx context.Context, engine *nudge.Engine) error {
				stats, err := engine.ProcessApprovedEvent(ctx, eventID)
				if err != nil {
					return err
				}
				logger.Info("Event processed",
					"event_id", eventID,
					"sent", stats.Sent, "skipped", stats.Skipped, "errors", stats.Errors)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&eventID, "id", "", "Approved event id to process")
	return cmd
}

// --------------------------------------------------------------------------
// preview command
// --------------------------------------------------------------------------

// previewCmd renders the fallback copy for one signal type without touching
// the database or the provider. Useful when tuning templates.
func previewCmd() *cobra.Command {
	var signalName string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render fallback copy for a signal type",
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := sampleSignal(nudge.SignalType(signalName))
			if err != nil {
				return err
			}
			gen := nudge.NewGenerator(nil, logger)
			text := gen.Generate(cmd.Context(), sig)
			fmt.Printf("title (%d): %s\n", len([]rune(text.Title)), text.Title)
			fmt.Printf("body  (%d): %s\n", len([]rune(text.Body)), text.Body)
			return nil
		},
	}
	cmd.Flags().StringVar(&signalName, "signal", string(nudge.SignalInactivity),
		"Signal type (EVENT_RECOMMENDATION, INACTIVITY_REENGAGEMENT, LOW_FILL_RATE, REGULARS_NOT_SIGNED_UP)")
	return cmd
}

// sampleSignal builds a representative signal for template preview.
func sampleSignal(t nudge.SignalType) (nudge.Signal, error) {
	when := time.Now().AddDate(0, 0, 10)
	switch t {
	case nudge.SignalEventRecommendation:
		return nudge.EventRecommendationSignal{
			Event:         "evt_sample",
			EventName:     "Sunset Rooftop Mixer",
			EventSlug:     "sunset-rooftop-mixer",
			OrganizerName: "citylights",
			EventDate:     &when,
		}, nil
	case nudge.SignalInactivity:
		return nudge.InactivitySignal{DaysInactive: 21}, nil
	case nudge.SignalLowFillRate:
		return nudge.LowFillRateSignal{
			Event:            "evt_sample",
			EventName:        "Sunset Rooftop Mixer",
			EventSlug:        "sunset-rooftop-mixer",
			FillPercent:      35,
			CurrentAttendees: 7,
			DaysUntilEvent:   3,
		}, nil
	case nudge.SignalRegularsMissing:
		return nudge.RegularsMissingSignal{
			Event:          "evt_sample",
			EventName:      "Sunset Rooftop Mixer",
			EventSlug:      "sunset-rooftop-mixer",
			RegularNames:   []string{"Ana", "Mo", "Kai"},
			DaysUntilEvent: 5,
		}, nil
	default:
		return nil, fmt.Errorf("unknown signal type %q", t)
	}
}

// --------------------------------------------------------------------------
// seed command
// --------------------------------------------------------------------------

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, events, and attendance for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := db.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			result := seed.Demo(ctx, pool.Pool, logger)
			for _, e := range result.Errors {
				logger.Error("seed error", "error", e)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("seed finished with %d errors", len(result.Errors))
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithEngine handles config loading, DB connection, engine wiring, and
// context cancellation.
func runWithEngine(fn func(ctx context.Context, engine *nudge.Engine) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	var textClient nudge.TextClient
	if cfg.HasGenAI() {
		textClient = genai.NewClient(cfg.GenAIAPIKey, cfg.GenAIBaseURL, cfg.GenAIModel,
			cfg.GenAITimeout, cfg.GenAIRPM, logger)
	}
	gen := nudge.NewGenerator(textClient, logger)
	engine := nudge.NewEngine(store.New(pool.Pool), gen, logger)

	return fn(ctx, engine)
}
