package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/outreach-cli/internal/fetcher"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

var importFrom string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import prospects from a CSV file or URL (http, https, ftp)",
	Long:  "Reads a CSV with name and website columns and inserts the rows as discovered prospects. Domains already in the store are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var r io.ReadCloser
		if strings.Contains(importFrom, "://") {
			r, err = fetcher.Fetch(cmd.Context(), importFrom)
		} else {
			r, err = os.Open(importFrom)
		}
		if err != nil {
			return err
		}
		defer r.Close() //nolint:errcheck

		seeds, err := fetcher.ParseCSV(r)
		if err != nil {
			return err
		}

		imported, skipped := 0, 0
		for _, s := range seeds {
			domain, err := stage.CanonicalDomain(s.Website)
			if err != nil {
				zap.L().Warn("seed skipped", zap.String("website", s.Website), zap.Error(err))
				skipped++
				continue
			}
			now := time.Now().UTC()
			inserted, err := env.Store.InsertProspect(cmd.Context(), &model.Prospect{
				ID:           uuid.NewString(),
				Domain:       domain,
				Name:         strings.TrimSpace(norm.NFC.String(s.Name)),
				DiscoveredAt: &now,
			})
			if err != nil {
				return err
			}
			if inserted {
				imported++
			} else {
				skipped++
			}
		}

		fmt.Printf("imported %d prospects (%d skipped)\n", imported, skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFrom, "from", "", "CSV path or URL to import")
	_ = importCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(importCmd)
}
