package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flipwatch/internal/app"
)

var (
	analyzeRegion   string
	analyzeStrategy string
	analyzeMonths   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print the trend, momentum, and risk breakdown for one region",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeRegion == "" {
			return fmt.Errorf("--region must be provided")
		}

		opts := app.AnalyzeOptions{
			RegionID: analyzeRegion,
			Strategy: analyzeStrategy,
			Months:   analyzeMonths,
		}
		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRegion, "region", "", "Region ID (ZIP code) to analyze")
	analyzeCmd.Flags().StringVar(&analyzeStrategy, "strategy", "", "Weight profile to score with (defaults to config)")
	analyzeCmd.Flags().IntVar(&analyzeMonths, "months", 12, "Trailing months to rebuild when no stored history exists")
}
