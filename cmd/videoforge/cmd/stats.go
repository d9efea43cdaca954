package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/videoforge/videoforge/pkg/models"
)

var statsHours int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Long:  `Shows aggregated job outcomes over a trailing window, overall and per kind.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsHours, "hours", 24, "trailing window in hours")
}

func runStats(cmd *cobra.Command, args []string) error {
	var stats models.Statistics
	if err := apiGet(fmt.Sprintf("/stats?hours=%d", statsHours), &stats); err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(stats)
	}

	fmt.Printf("Job statistics (last %d hours)\n\n", stats.WindowHours)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Total jobs", fmt.Sprintf("%d", stats.TotalJobs))
	table.Append("Completed", fmt.Sprintf("%d", stats.Completed))
	table.Append("Failed", fmt.Sprintf("%d", stats.Failed))
	table.Append("Cancelled", fmt.Sprintf("%d", stats.Cancelled))
	table.Append("Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate))
	table.Append("Avg duration", fmt.Sprintf("%.1fs", stats.AvgDuration))
	table.Render()

	if len(stats.ByKind) > 0 {
		fmt.Println("\nBy kind:")
		kindTable := tablewriter.NewWriter(os.Stdout)
		kindTable.Header("Kind", "Count", "Completed", "Success", "Avg Duration")
		for kind, ks := range stats.ByKind {
			kindTable.Append(string(kind), fmt.Sprintf("%d", ks.Count),
				fmt.Sprintf("%d", ks.Completed),
				fmt.Sprintf("%.1f%%", ks.SuccessRate),
				fmt.Sprintf("%.1fs", ks.AvgDuration))
		}
		kindTable.Render()
	}
	return nil
}
