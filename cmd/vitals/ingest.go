// ABOUTME: CLI command for ingesting an export archive.
// ABOUTME: Full replace of the user's stored data on success.
package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <user> <export.zip>",
	Short: "Ingest a full export archive",
	Long: `Ingest a WHOOP export archive. The archive is a complete export, so
the user's existing daily metrics and workouts are replaced. A failed
ingestion leaves the previous data untouched.

Examples:
  vitals ingest alice my_whoop_export.zip`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, zipPath := args[0], args[1]

		res, err := ingestor.IngestArchive(cmd.Context(), userID, zipPath)
		if err != nil {
			return err
		}

		color.Green("✓ Ingested archive for %s", userID)
		faint := color.New(color.Faint)
		cmd.Printf("  %s  %d days, %d workouts (%d duplicates skipped)\n",
			faint.Sprint(res.Run.ID.String()[:8]),
			res.DaysUpserted, res.WorkoutsCreated, res.WorkoutsSkipped)
		if res.MetricsCleared > 0 || res.WorkoutsCleared > 0 {
			cmd.Printf("  replaced %d daily rows and %d workouts\n",
				res.MetricsCleared, res.WorkoutsCleared)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
