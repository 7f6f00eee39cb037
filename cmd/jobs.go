package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	jobsType   string
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List dispatched jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		jobs, err := env.Store.ListJobs(cmd.Context(), store.JobFilter{
			Type:   model.Stage(jobsType),
			Status: model.JobStatus(jobsStatus),
			Limit:  jobsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPROCESSED\tOK\tFAILED\tCREATED")
		for i := range jobs {
			j := &jobs[i]
			total := "?"
			if j.TargetsTotal != nil {
				total = fmt.Sprintf("%d", *j.TargetsTotal)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%s\t%d\t%d\t%s\n",
				j.ID, j.Type, j.Status, j.TargetsProcessed, total,
				j.TargetsSucceeded, j.TargetsFailed,
				j.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Poll a job until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		// Fail fast on an unknown job id before starting the poll loop.
		if _, err := env.Store.GetJob(cmd.Context(), args[0]); err != nil {
			return err
		}

		h := env.Poller.Poll(cmd.Context(), args[0], printJobUpdate)
		<-h.Done()
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsType, "type", "", "filter by job type")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by job status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum jobs to list")
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(watchCmd)
}
