package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/export"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/notion"
)

var (
	exportBucket string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export prospects to a file, Notion, or Salesforce",
}

var exportFileCmd = &cobra.Command{
	Use:   "file",
	Short: "Write prospects to a csv, xlsx, or yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		prospects, err := env.Store.ListProspects(cmd.Context(), store.ProspectFilter{
			Bucket: store.Bucket(exportBucket),
		})
		if err != nil {
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		if err := export.WriteFile(f, exportFormat, prospects); err != nil {
			return err
		}
		fmt.Printf("wrote %d prospects to %s\n", len(prospects), exportOut)
		return nil
	},
}

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Push prospects into the configured Notion database",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		prospects, err := env.Store.ListProspects(cmd.Context(), store.ProspectFilter{
			Bucket: store.Bucket(exportBucket),
		})
		if err != nil {
			return err
		}

		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RPS))
		exp := export.NewNotionExporter(client, cfg.Notion.ProspectDB)
		n, err := exp.Export(cmd.Context(), prospects)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d prospects to notion\n", n)
		return nil
	},
}

var exportCRMCmd = &cobra.Command{
	Use:   "crm",
	Short: "Insert prospects with contact emails as Salesforce Leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		prospects, err := env.Store.ListProspects(cmd.Context(), store.ProspectFilter{
			Bucket: store.Bucket(exportBucket),
		})
		if err != nil {
			return err
		}

		n, err := export.NewSalesforceExporter(sf).Export(cmd.Context(), prospects)
		if err != nil {
			return err
		}
		fmt.Printf("inserted %d leads\n", n)
		return nil
	},
}

func init() {
	exportCmd.PersistentFlags().StringVar(&exportBucket, "bucket", "", "restrict to one pipeline bucket")
	exportFileCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, xlsx, yaml")
	exportFileCmd.Flags().StringVar(&exportOut, "out", "prospects.csv", "output path")
	exportCmd.AddCommand(exportFileCmd)
	exportCmd.AddCommand(exportNotionCmd)
	exportCmd.AddCommand(exportCRMCmd)
	rootCmd.AddCommand(exportCmd)
}
