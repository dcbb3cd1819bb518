package cmd

import (
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fleetcore/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler status from a running server",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addServerFlag(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status orchestrator.Status
	if err := doJSON(http.MethodGet, serverURL(cmd)+"/api/status", nil, &status); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued:      %d\n", status.SchedulerSize)
	fmt.Fprintf(out, "Pool:        %d/%d running, %d waiting\n",
		status.Pool.Running, status.Pool.Concurrency, status.Pool.Queued)
	fmt.Fprintf(out, "Reserved:    %s %d/%d running, %d queued\n",
		status.Reserved.Class, status.Reserved.Running, status.Reserved.Reserved, status.Reserved.Queued)

	if len(status.Metrics) > 0 {
		fmt.Fprintln(out, "\nMetrics:")
		for _, name := range slices.Sorted(maps.Keys(status.Metrics)) {
			fmt.Fprintf(out, "  %-20s %g\n", name, status.Metrics[name])
		}
	}
	return nil
}
