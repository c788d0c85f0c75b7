package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/featspec/packages/history"
)

var (
	historyLimitFlag int
	historyPathFlag  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyPathFlag
		if path == "" {
			path = os.Getenv("FEATSPEC_HISTORY_DB")
		}
		if path == "" {
			fmt.Fprintln(os.Stderr, "error: no history database, set --history-db or FEATSPEC_HISTORY_DB")
			os.Exit(ExitUsageError)
		}

		store, err := history.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runs, err := store.Recent(ctx, historyLimitFlag)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}

		for _, run := range runs {
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s  %-36s  %6s  features %d/%d/%d  scenarios %d/%d/%d  steps %d/%d/%d/%d\n",
				run.Timestamp.Format("2006-01-02 15:04:05"), run.ID,
				run.Duration.Round(time.Millisecond),
				run.FeaturesPassed, run.FeaturesFailed, run.FeaturesSkipped,
				run.ScenariosPassed, run.ScenariosFailed, run.ScenariosSkipped,
				run.StepsPassed, run.StepsFailed, run.StepsSkipped, run.StepsUndefined)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyPathFlag, "history-db", "", "SQLite file for run history (env: FEATSPEC_HISTORY_DB)")
}
