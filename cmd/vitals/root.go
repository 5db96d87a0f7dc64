// ABOUTME: Root Cobra command for the vitals CLI.
// ABOUTME: Wires config, storage, vendor client, and the ingestor.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harperreed/vitals/internal/config"
	"github.com/harperreed/vitals/internal/features"
	"github.com/harperreed/vitals/internal/ingest"
	"github.com/harperreed/vitals/internal/storage"
	"github.com/harperreed/vitals/internal/whoop"
)

var (
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.DB
	api      *whoop.Client
	ingestor *ingest.Ingestor

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vitals",
	Short: "Wearable recovery and strain data, ingested and derived",
	Long: `Vitals ingests data from a WHOOP wearable and derives rolling
training-load features on top of it.

DATA SOURCES:

  $ vitals ingest alice my_whoop_export.zip   # Full export archive
  $ vitals connect alice                      # Link a WHOOP account
  $ vitals sync alice                         # Pull recent data via API

An archive ingest replaces the user's data wholesale; an API sync
merges the recent window into what is already stored. Both recompute
the derived features (7/30-day baselines, z-scores, acute:chronic
workload ratio, sleep debt, consistency) over the full history.

INSPECT:

  $ vitals export alice --format json    # Dump everything
  $ vitals runs alice                    # Ingestion history
  $ vitals recompute alice               # Re-derive features in place

DATA STORAGE:

  SQLite at ~/.local/share/vitals/vitals.db by default. Configure via
  ~/.config/vitals/config.yaml or VITALS_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0750); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		store, err = storage.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		api = whoop.NewClient(whoop.Config{
			ClientID:     cfg.Whoop.ClientID,
			ClientSecret: cfg.Whoop.ClientSecret,
			RedirectURI:  cfg.Whoop.RedirectURI,
			BaseURL:      cfg.Whoop.BaseURL,
			AuthURL:      cfg.Whoop.AuthURL,
			TokenURL:     cfg.Whoop.TokenURL,
		}, whoop.NewLimiter(), logger)

		ingestor = ingest.NewIngestor(store, api, features.NewRollingEngine(), nil, logger, ingest.Options{
			UploadsDir:   cfg.UploadsDir(),
			KeepUploads:  cfg.Ingest.KeepUploads,
			SyncDaysBack: cfg.Whoop.SyncDaysBack,
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
