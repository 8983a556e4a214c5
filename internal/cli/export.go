package cli

import (
	"github.com/spf13/cobra"

	"flipwatch/internal/app"
)

var (
	exportRegion    string
	exportPeriod    string
	exportStrategy  string
	exportMonths    int
	exportCSVPath   string
	exportPNGPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a region's score history or a period's ranked table",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			RegionID:  exportRegion,
			Period:    exportPeriod,
			Strategy:  exportStrategy,
			Months:    exportMonths,
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRegion, "region", "", "Region ID to export history for; omit to export the ranked table")
	exportCmd.Flags().StringVar(&exportPeriod, "period", "", "Period for the ranked table as YYYY-MM (defaults to the current month)")
	exportCmd.Flags().StringVar(&exportStrategy, "strategy", "", "Weight profile to score with (defaults to config)")
	exportCmd.Flags().IntVar(&exportMonths, "months", 12, "Trailing months to rebuild when no stored history exists")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
