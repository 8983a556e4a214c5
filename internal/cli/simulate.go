package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"flipwatch/internal/app"
)

var (
	simulateRegion    string
	simulateComposite float64
	simulateStatus    string
	simulateStrategy  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push a fabricated scored region through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateComposite < 0 || simulateComposite > 100 {
			return errors.New("--composite must be between 0 and 100")
		}

		opts := app.SimulateAlertOptions{
			RegionID:  simulateRegion,
			Composite: simulateComposite,
			Status:    simulateStatus,
			Strategy:  simulateStrategy,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateRegion, "region", "99999", "Region ID for the synthetic alert")
	simulateCmd.Flags().Float64Var(&simulateComposite, "composite", 85, "Composite score for the synthetic region")
	simulateCmd.Flags().StringVar(&simulateStatus, "status", "NEW", "Change status (NEW, IMPROVED, DEGRADED, UNCHANGED)")
	simulateCmd.Flags().StringVar(&simulateStrategy, "strategy", "", "Weight profile used in the alert reason (defaults to config)")
}
