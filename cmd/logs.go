package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gavelhq/gavel/internal/logging"
)

var (
	logsReview string
	logsLevel  string
	logsLimit  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the review activity log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logsQueryRun()
	},
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show log record counts by level and event",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logsStatsRun()
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsReview, "review", "", "Filter by review ID")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by level (DEBUG, INFO, WARN, ERROR)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum records to show")
	logsCmd.AddCommand(logsStatsCmd)
	rootCmd.AddCommand(logsCmd)
}

func logsQueryRun() error {
	entries, err := getLogger().Query(logging.QueryOptions{
		ReviewID: logsReview,
		Level:    logging.Level(logsLevel),
		Limit:    logsLimit,
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.Info("No log records match.")
		return nil
	}

	table := ui.Table([]string{"TIME", "LEVEL", "EVENT", "REVIEW", "MESSAGE"})
	for _, e := range entries {
		_ = table.Append([]string{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			string(e.Level),
			e.Event,
			e.ReviewID,
			e.Message,
		})
	}
	return table.Render()
}

func logsStatsRun() error {
	stats, err := getLogger().QueryStats()
	if err != nil {
		return err
	}

	ui.Info("Total records: %d", stats.Total)

	fmt.Fprintln(ui.Out)
	for _, section := range []struct {
		name   string
		counts map[string]int
	}{
		{"level", stats.ByLevel},
		{"event", stats.ByEvent},
	} {
		keys := make([]string, 0, len(section.counts))
		for k := range section.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(ui.Out, "  %-8s %-28s %d\n", section.name, k, section.counts[k])
		}
	}
	return nil
}
