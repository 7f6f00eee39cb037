package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	prospectsBucket string
	prospectsLimit  int
	prospectsOffset int
)

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "List prospects, optionally filtered by pipeline bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		prospects, err := env.Store.ListProspects(cmd.Context(), store.ProspectFilter{
			Bucket: store.Bucket(prospectsBucket),
			Limit:  prospectsLimit,
			Offset: prospectsOffset,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDOMAIN\tNAME\tEMAIL\tVERIFIED\tOUTREACH")
		for i := range prospects {
			p := &prospects[i]
			email := "-"
			if p.ContactEmail != nil {
				email = *p.ContactEmail
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.Domain, p.Name, email, p.VerificationStatus, p.OutreachStatus)
		}
		return w.Flush()
	},
}

var rejectReason string

var rejectCmd = &cobra.Command{
	Use:   "reject <prospect-id>",
	Short: "Remove a prospect from the pipeline (the row is kept for dedup)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.RejectProspect(cmd.Context(), args[0], rejectReason); err != nil {
			return err
		}
		fmt.Printf("rejected prospect %s\n", args[0])
		return nil
	},
}

func init() {
	prospectsCmd.Flags().StringVar(&prospectsBucket, "bucket", "", "filter by pipeline bucket (e.g. leads, send_ready)")
	prospectsCmd.Flags().IntVar(&prospectsLimit, "limit", 50, "maximum prospects to list")
	prospectsCmd.Flags().IntVar(&prospectsOffset, "offset", 0, "offset into the result set")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "manual", "why the prospect is being rejected")
	rootCmd.AddCommand(prospectsCmd)
	rootCmd.AddCommand(rejectCmd)
}
