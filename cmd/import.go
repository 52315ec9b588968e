package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/campus-events/attendance-cli/internal/model"
)

var importEventName string

var importCmd = &cobra.Command{
	Use:   "import <event-id|luma-event-id> <export.csv>",
	Short: "Import one guest export file against an event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		eventID, err := resolveEvent(ctx, e, args[0])
		if err != nil {
			return err
		}

		summary, err := e.Pipeline.ImportFile(ctx, eventID, args[1])
		if summary != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(summary)
		}
		return err
	},
}

// resolveEvent accepts either an internal numeric id or a platform event id.
// An unknown platform id creates the event when --event-name is given.
func resolveEvent(ctx context.Context, e *env, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}

	event, err := e.Store.FindEventByLumaID(ctx, arg)
	if err != nil {
		return 0, err
	}
	if event != nil {
		return event.ID, nil
	}
	if importEventName == "" {
		return 0, eris.Errorf("unknown event %q (pass --event-name to create it)", arg)
	}

	event = &model.Event{LumaEventID: arg, Name: importEventName}
	if err := e.Store.CreateEvent(ctx, event); err != nil {
		return 0, err
	}
	return event.ID, nil
}

func init() {
	importCmd.Flags().StringVar(&importEventName, "event-name", "", "create the event with this name if it does not exist")
	rootCmd.AddCommand(importCmd)
}
