package cli

import (
	"github.com/spf13/cobra"

	"flipwatch/internal/app"
)

var (
	scorePeriod   string
	scoreStrategy string
	scoreMin      float64
	scoreMinValue float64
	scoreMaxValue float64
	scoreTop      int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one period and print the ranked opportunity table",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScoreOptions{
			Period:   scorePeriod,
			Strategy: scoreStrategy,
			MinScore: scoreMin,
			MinValue: scoreMinValue,
			MaxValue: scoreMaxValue,
			Top:      scoreTop,
		}
		return getApp().Score(cmd.Context(), opts)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scorePeriod, "period", "", "Period to score as YYYY-MM (defaults to the current month)")
	scoreCmd.Flags().StringVar(&scoreStrategy, "strategy", "", "Weight profile to score with (defaults to config)")
	scoreCmd.Flags().Float64Var(&scoreMin, "min-score", 0, "Hide regions below this composite score")
	scoreCmd.Flags().Float64Var(&scoreMinValue, "min-value", 0, "Hide regions below this home value")
	scoreCmd.Flags().Float64Var(&scoreMaxValue, "max-value", 0, "Hide regions above this home value")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 50, "Number of regions to display")
}
