package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flipwatch/internal/app"
	"flipwatch/internal/scoring"
)

var (
	showTier    string
	showRegion  string
	showFrom    string
	showTo      string
	showLimit   int
	showPeriod  string
	showGroupBy string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display persisted alerts, step reports, or a market summary",
}

var showAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Display recent alerts from the alert log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowAlertsOptions{
			Tier:   showTier,
			Region: showRegion,
			From:   showFrom,
			To:     showTo,
			Limit:  showLimit,
		}
		return getApp().ShowAlerts(cmd.Context(), opts)
	},
}

var showReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Display recent step reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ShowReports(cmd.Context(), showLimit)
	},
}

var showSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Score a period live and roll scores up by state or metro",
	RunE: func(cmd *cobra.Command, args []string) error {
		var level scoring.GeoLevel
		switch showGroupBy {
		case "state":
			level = scoring.GeoState
		case "metro":
			level = scoring.GeoMetro
		default:
			return fmt.Errorf("--group-by must be state or metro, got %q", showGroupBy)
		}
		return getApp().Summary(cmd.Context(), showPeriod, level)
	},
}

func init() {
	showAlertsCmd.Flags().StringVar(&showTier, "tier", "", "Filter by tier (HOT, WARM, WATCH)")
	showAlertsCmd.Flags().StringVar(&showRegion, "region", "", "Filter by region ID")
	showAlertsCmd.Flags().StringVar(&showFrom, "from", "", "Earliest period as YYYY-MM (inclusive)")
	showAlertsCmd.Flags().StringVar(&showTo, "to", "", "Latest period as YYYY-MM (inclusive)")
	showAlertsCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")

	showReportsCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")

	showSummaryCmd.Flags().StringVar(&showPeriod, "period", "", "Period to summarize as YYYY-MM (defaults to the current month)")
	showSummaryCmd.Flags().StringVar(&showGroupBy, "group-by", "state", "Roll-up level: state or metro")

	showCmd.AddCommand(showAlertsCmd)
	showCmd.AddCommand(showReportsCmd)
	showCmd.AddCommand(showSummaryCmd)
}
