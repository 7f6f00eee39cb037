package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline counts and which stages can run",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Aggregator.ComputeStatus(cmd.Context())
		if err != nil {
			return err
		}
		snap := st.Snapshot

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PIPELINE\tCOUNT")
		fmt.Fprintf(w, "discovered\t%d\n", snap.Discovered)
		fmt.Fprintf(w, "scrape ready\t%d\n", snap.ScrapeReady)
		fmt.Fprintf(w, "scraped\t%d\n", snap.Scraped)
		fmt.Fprintf(w, "email found\t%d\n", snap.EmailFound)
		fmt.Fprintf(w, "leads\t%d\n", snap.Leads)
		fmt.Fprintf(w, "emails verified\t%d\n", snap.EmailsVerified)
		fmt.Fprintf(w, "drafting ready\t%d\n", snap.DraftingReady)
		fmt.Fprintf(w, "drafted\t%d\n", snap.Drafted)
		fmt.Fprintf(w, "send ready\t%d\n", snap.SendReady)
		fmt.Fprintf(w, "sent\t%d\n", snap.Sent)
		fmt.Fprintf(w, "follow-up ready\t%d\n", snap.FollowupReady)
		fmt.Fprintln(w)

		fmt.Fprintln(w, "STAGE\tSTATUS")
		for _, s := range model.Stages {
			g := st.Gates[s]
			if g.Enabled {
				fmt.Fprintf(w, "%s\tready\n", s)
			} else {
				fmt.Fprintf(w, "%s\tblocked (%s)\n", s, g.Reason)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
