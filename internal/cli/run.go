package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flipwatch/internal/app"
)

var (
	runSteps    int
	runFromStep int
	runStrategy string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monthly scoring and alerting loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFromStep < 0 {
			return fmt.Errorf("--from-step must not be negative")
		}

		opts := app.RunOptions{
			Steps:    runSteps,
			FromStep: runFromStep,
			Strategy: runStrategy,
		}
		return getApp().Run(cmd.Context(), opts)
	},
}

func init() {
	runCmd.Flags().IntVar(&runSteps, "steps", 0, "Number of monthly steps to run (defaults to config)")
	runCmd.Flags().IntVar(&runFromStep, "from-step", 0, "Resume from a given step index, skipping earlier periods")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Weight profile to score with (defaults to config)")
}
