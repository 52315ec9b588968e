package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campus-events/attendance-cli/internal/match"
	"github.com/campus-events/attendance-cli/internal/referral"
)

var aggregateRecountEvents bool

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute referral counts (and optionally event/person attendance aggregates)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		agg := referral.New(e.Store, match.New(e.Store, cfg.Import.FuzzyThreshold))
		summary, err := agg.Recompute(ctx)
		if err != nil {
			return err
		}

		if aggregateRecountEvents {
			events, err := e.Store.ListEvents(ctx)
			if err != nil {
				return err
			}
			for _, ev := range events {
				count, err := e.Store.RecountEventAttendance(ctx, ev.ID)
				if err != nil {
					return err
				}
				if _, err := e.Store.RecountPersonAttendance(ctx, ev.ID); err != nil {
					return err
				}
				zap.L().Info("event recounted",
					zap.Int64("event_id", ev.ID),
					zap.String("event", ev.Name),
					zap.Int("attendance", count))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	aggregateCmd.Flags().BoolVar(&aggregateRecountEvents, "recount", false, "also recount event and person attendance aggregates")
	rootCmd.AddCommand(aggregateCmd)
}
