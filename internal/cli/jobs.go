package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"study-planner/internal/app"
)

var forceAllocate bool

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Generate today's allocation if it is missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			run := a.Allocator.EnsureToday
			if forceAllocate {
				run = a.Allocator.Reallocate
			}
			result, err := run(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintf(out, "%s already allocated\n", result.Date)
				return nil
			}
			fmt.Fprintf(out, "%s: %d tasks, %.1f of %d minutes\n",
				result.Date, len(result.Assigned), result.TotalMinutes, result.LimitMinutes)
			return nil
		})
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate every task that has no predicted time yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			result, err := a.Estimation.Backfill(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, estimated %d, left %d\n",
				result.Scanned, result.Estimated, result.Failed)
			return nil
		})
	},
}

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Fit the estimator from finished tasks and save the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			model, err := a.Estimation.Retrain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained on %d samples\n", len(model.Samples))
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the default weekly hours and timetable on an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			seeded, err := a.Settings.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if !seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "settings already present, nothing to do")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "default settings installed")
			return nil
		})
	},
}

func init() {
	allocateCmd.Flags().BoolVar(&forceAllocate, "force", false, "drop today's allocation and generate it again")
}
