// ABOUTME: CLI command dumping a user's stored data.
// ABOUTME: JSON or YAML, to stdout or a file.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <user>",
	Short: "Export a user's daily metrics, workouts, and runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]

		data, err := store.GetAllData(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("collect data: %w", err)
		}
		out, err := data.Marshal(exportFormat)
		if err != nil {
			return err
		}

		if exportOutput == "" {
			cmd.Print(string(out))
			return nil
		}
		if err := os.WriteFile(exportOutput, out, 0600); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		color.Green("✓ Exported to %s", exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "export format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
