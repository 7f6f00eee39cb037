package fetcher

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Seed is one imported prospect candidate.
type Seed struct {
	Name    string
	Website string
}

// ParseCSV reads prospect seeds from a CSV stream. The header row must
// contain name and website columns (case-insensitive; "domain" and "url"
// are accepted aliases for website). Rows without a website are skipped.
func ParseCSV(r io.Reader) ([]Seed, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv header")
	}

	nameIdx, siteIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name", "company", "company_name":
			nameIdx = i
		case "website", "domain", "url":
			siteIdx = i
		}
	}
	if siteIdx < 0 {
		return nil, eris.New("fetcher: csv has no website column")
	}

	var seeds []Seed
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read csv row")
		}

		s := Seed{Website: strings.TrimSpace(row[siteIdx])}
		if nameIdx >= 0 && nameIdx < len(row) {
			s.Name = strings.TrimSpace(row[nameIdx])
		}
		if s.Website == "" {
			continue
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}
