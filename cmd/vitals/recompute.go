// ABOUTME: CLI command re-deriving rolling features from stored data.
// ABOUTME: Raw fields are never touched; useful after formula changes.
package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute <user>",
	Short: "Re-derive rolling features from stored data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]

		updated, err := ingestor.Recompute(cmd.Context(), userID)
		if err != nil {
			return err
		}
		color.Green("✓ Recomputed features for %s (%d days)", userID, updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}
