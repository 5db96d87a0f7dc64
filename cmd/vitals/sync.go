// ABOUTME: CLI command pulling recent data from the WHOOP API.
// ABOUTME: Merges into existing rows; never clears stored data.
package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/vitals/internal/storage"
	"github.com/harperreed/vitals/internal/whoop"
)

var syncCmd = &cobra.Command{
	Use:   "sync <user>",
	Short: "Pull recent data from the WHOOP API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]

		res, err := ingestor.SyncFromAPI(cmd.Context(), userID)
		switch {
		case errors.Is(err, storage.ErrNoToken):
			return fmt.Errorf("%s is not linked; run 'vitals connect %s' first", userID, userID)
		case errors.Is(err, whoop.ErrReconnectRequired):
			color.Yellow("⚠ Stored credentials are no longer valid")
			return fmt.Errorf("run 'vitals connect %s' to relink", userID)
		case err != nil:
			return err
		}

		color.Green("✓ Synced %s", userID)
		faint := color.New(color.Faint)
		cmd.Printf("  %s  %d days, %d workouts (%d duplicates skipped)\n",
			faint.Sprint(res.Run.ID.String()[:8]),
			res.DaysUpserted, res.WorkoutsCreated, res.WorkoutsSkipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
