// Package export writes campaign prospects to files and external systems.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

var fileHeader = []string{
	"domain", "name", "scrape_status", "contact_email", "email_source",
	"verification_status", "outreach_status", "last_sent", "followups_sent",
}

func fileRow(p *model.Prospect) []string {
	email, lastSent := "", ""
	if p.ContactEmail != nil {
		email = *p.ContactEmail
	}
	if p.LastSent != nil {
		lastSent = p.LastSent.UTC().Format("2006-01-02 15:04:05")
	}
	return []string{
		p.Domain, p.Name, string(p.ScrapeStatus), email, p.EmailSource,
		string(p.VerificationStatus), string(p.OutreachStatus), lastSent,
		fmt.Sprintf("%d", p.FollowupsSent),
	}
}

// WriteCSV writes prospects as CSV with a header row.
func WriteCSV(w io.Writer, prospects []model.Prospect) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fileHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range prospects {
		if err := cw.Write(fileRow(&prospects[i])); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes prospects as a single-sheet workbook.
func WriteXLSX(w io.Writer, prospects []model.Prospect) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Prospects")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hdr := sheet.AddRow()
	for _, col := range fileHeader {
		hdr.AddCell().SetString(col)
	}
	for i := range prospects {
		row := sheet.AddRow()
		for _, v := range fileRow(&prospects[i]) {
			row.AddCell().SetString(v)
		}
	}
	return eris.Wrap(wb.Write(w), "export: write xlsx")
}

// WriteYAML writes prospects as a YAML document list.
func WriteYAML(w io.Writer, prospects []model.Prospect) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close() //nolint:errcheck
	if err := enc.Encode(prospects); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return nil
}

// WriteFile dispatches on format: csv, xlsx, or yaml.
func WriteFile(w io.Writer, format string, prospects []model.Prospect) error {
	switch strings.ToLower(format) {
	case "csv":
		return WriteCSV(w, prospects)
	case "xlsx":
		return WriteXLSX(w, prospects)
	case "yaml", "yml":
		return WriteYAML(w, prospects)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}
