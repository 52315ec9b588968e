package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var syncCalendarID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync events from the Luma calendar and import pending guest exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if syncCalendarID != "" {
			cfg.Luma.CalendarID = syncCalendarID
		}

		e, syncer, err := initSyncer(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := syncer.Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncCalendarID, "calendar", "", "calendar API id (default from config)")
	rootCmd.AddCommand(syncCmd)
}
