package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-mill/cmd/odyssey/cli"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger <task>",
	Short: "Enqueue a job now",
	Example: `  odysseyctl jobs trigger inventory:reconcile
  odysseyctl jobs trigger inventory:reconcile --owner budi
  odysseyctl jobs trigger idempotency:cleanup --retention 72h`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsTrigger,
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show default queue counters",
	RunE:  runJobsStats,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsTriggerCmd, jobsStatsCmd)
	jobsTriggerCmd.Flags().String("owner", "", "limit inventory:reconcile to one owner")
	jobsTriggerCmd.Flags().Duration("retention", 0, "idempotency:cleanup retention window")
}

func newJobsCLI() (*cli.JobsCLI, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cli.NewJobsCLI(cfg.RedisAddr)
}

func runJobsTrigger(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	retention, _ := cmd.Flags().GetDuration("retention")

	jobsCLI, err := newJobsCLI()
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	info, err := jobsCLI.Trigger(cmd.Context(), args[0], cli.TriggerOptions{Owner: owner, Retention: retention})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", args[0], info.ID, info.Queue)
	return nil
}

func runJobsStats(cmd *cobra.Command, _ []string) error {
	jobsCLI, err := newJobsCLI()
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	stats, err := jobsCLI.InspectQueue(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return nil
}
