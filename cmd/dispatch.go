package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/poller"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	dispatchIDs  []string
	dispatchWait bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <stage>",
	Short: "Start a stage job (discover, scrape, verify, draft, send, followup)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Dispatcher.Dispatch(cmd.Context(), model.Stage(args[0]), dispatchIDs)
		if err != nil {
			var nr *dispatch.NotReadyError
			switch {
			case eris.As(err, &nr):
				return eris.Errorf("%s is not ready: %s", nr.Stage, nr.Reason)
			case eris.Is(err, store.ErrJobAlreadyRunning):
				return eris.Errorf("a %s job is already pending or running", args[0])
			}
			return err
		}

		fmt.Printf("dispatched %s job %s\n", job.Type, job.ID)
		if !dispatchWait {
			fmt.Printf("watch progress with: outreach-cli watch %s\n", job.ID)
			return nil
		}

		h := env.Poller.Poll(cmd.Context(), job.ID, printJobUpdate)
		<-h.Done()
		final, err := env.Store.GetJob(cmd.Context(), job.ID)
		if err != nil {
			return err
		}
		if final.Status == model.JobFailed {
			return eris.Errorf("job %s failed: %s", final.ID, final.ErrorMessage)
		}
		return nil
	},
}

func printJobUpdate(u poller.Update) {
	if u.Err != nil {
		fmt.Printf("poll error: %v (retrying)\n", u.Err)
		return
	}
	j := u.Job
	total := "?"
	if j.TargetsTotal != nil {
		total = fmt.Sprintf("%d", *j.TargetsTotal)
	}
	fmt.Printf("[%s] %s %d/%s processed (%d ok, %d failed)\n",
		j.Status, j.Type, j.TargetsProcessed, total, j.TargetsSucceeded, j.TargetsFailed)
}

func init() {
	dispatchCmd.Flags().StringSliceVar(&dispatchIDs, "ids", nil, "restrict the job to these prospect IDs")
	dispatchCmd.Flags().BoolVar(&dispatchWait, "wait", false, "poll until the job reaches a terminal state")
	rootCmd.AddCommand(dispatchCmd)
}
