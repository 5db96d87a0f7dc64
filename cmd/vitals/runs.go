// ABOUTME: CLI command listing a user's ingestion history.
// ABOUTME: Status-colored, newest first.
package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/vitals/internal/models"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs <user>",
	Short: "List ingestion runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]

		runs, err := store.ListRuns(cmd.Context(), userID, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("No ingestion runs yet.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, run := range runs {
			var status string
			switch run.Status {
			case models.RunCompleted:
				status = color.GreenString("completed ")
			case models.RunFailed:
				status = color.RedString("failed    ")
			default:
				status = color.YellowString("processing")
			}
			cmd.Printf("%s  %s  %s  %-7s  %s\n",
				faint.Sprint(run.ID.String()[:8]),
				run.CreatedAt.Format("2006-01-02 15:04"),
				status, run.DataSource, run.Source)
			if run.ErrorMessage != nil {
				cmd.Printf("          %s\n", color.RedString(*run.ErrorMessage))
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to show")
	rootCmd.AddCommand(runsCmd)
}
