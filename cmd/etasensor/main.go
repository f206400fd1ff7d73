package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"etasensor/internal/config"
	"etasensor/internal/gtfs"
	"etasensor/internal/lookup"
	"etasensor/internal/mbta"
	"etasensor/internal/storage"
)

var (
	cfg      = config.Load()
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "etasensor",
	Short: "Reconcile transit schedules and predictions into ETA sensors",
	Long: `etasensor polls the v3 transit API for each configured stop pair, matches
trips that serve both stops in the right order and reports how long until the
next departure, using a live prediction when one exists.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	rootCmd.AddCommand(serveCmd, onceCmd, importLookupCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newClient(logger *slog.Logger) *mbta.Client {
	opts := []mbta.Option{mbta.WithCacheTTL(cfg.CacheTTL)}
	if cfg.APIKey != "" {
		opts = append(opts, mbta.WithAPIKey(cfg.APIKey))
	}
	return mbta.NewClient(cfg.APIBaseURL, logger, opts...)
}

// openLookupDB opens the lookup database and imports the static feed into
// it on first use.
func openLookupDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.Open(cfg.LookupDB, logger)
	if err != nil {
		return nil, err
	}
	if cfg.GTFSURL != "" {
		syncer := gtfs.NewSyncer(gtfs.NewDownloader(cfg.GTFSURL, cfg.GTFSDir, logger), db, logger)
		if err := syncer.EnsureData(ctx); err != nil {
			// The route catalogue and payload stop names still work without it.
			logger.Warn("lookup import failed", "error", err)
		}
	}
	return db, nil
}

// buildLookup merges every available lookup source: the imported database,
// an optional JSON stop table and the live route catalogue.
func buildLookup(ctx context.Context, client *mbta.Client, logger *slog.Logger) *lookup.Table {
	var tables []*lookup.Table

	if cfg.LookupDB != "" {
		db, err := openLookupDB(ctx, logger)
		if err != nil {
			logger.Warn("lookup database unavailable", "path", cfg.LookupDB, "error", err)
		} else {
			t, err := lookup.FromDB(ctx, db)
			db.Close()
			if err != nil {
				logger.Warn("reading lookup database", "error", err)
			} else {
				tables = append(tables, t)
			}
		}
	}

	if cfg.LookupJSON != "" {
		t, err := lookup.LoadJSON(cfg.LookupJSON)
		if err != nil {
			logger.Warn("lookup file unavailable", "path", cfg.LookupJSON, "error", err)
		} else {
			tables = append(tables, t)
		}
	}

	doc, err := client.Routes(ctx)
	if err == nil {
		var t *lookup.Table
		if t, err = lookup.FromRoutes(doc); err == nil {
			tables = append(tables, t)
		}
	}
	if err != nil {
		logger.Warn("route catalogue unavailable", "error", err)
	}

	table := lookup.Merge(tables...)
	stops, routes := table.Len()
	logger.Info("lookup ready", "stops", stops, "routes", routes, "sources", len(tables))
	return table
}
