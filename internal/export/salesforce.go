package export

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/salesforce"
)

// SalesforceExporter pushes verified prospects into Salesforce as Leads.
type SalesforceExporter struct {
	client salesforce.Client
}

// NewSalesforceExporter creates a CRM exporter.
func NewSalesforceExporter(client salesforce.Client) *SalesforceExporter {
	return &SalesforceExporter{client: client}
}

// Export inserts Leads for prospects that have a contact email and are not
// already present (matched on Website). Returns the number inserted.
func (e *SalesforceExporter) Export(ctx context.Context, prospects []model.Prospect) (int, error) {
	existing, err := e.existingWebsites(ctx)
	if err != nil {
		return 0, err
	}

	var records []map[string]any
	for i := range prospects {
		p := &prospects[i]
		if !p.EmailFound() {
			continue
		}
		if _, ok := existing[p.Domain]; ok {
			continue
		}
		records = append(records, map[string]any{
			"Company":    p.Name,
			"LastName":   p.Name,
			"Website":    p.Domain,
			"Email":      *p.ContactEmail,
			"LeadSource": "Outreach Campaign",
		})
	}
	if len(records) == 0 {
		return 0, nil
	}

	results, err := e.client.InsertCollection(ctx, "Lead", records)
	if err != nil {
		return 0, eris.Wrap(err, "export: insert leads")
	}

	inserted := 0
	for i, r := range results {
		if r.Success {
			inserted++
			continue
		}
		zap.L().Warn("lead insert rejected",
			zap.Any("website", records[i]["Website"]),
			zap.String("errors", strings.Join(r.Errors, "; ")),
		)
	}
	return inserted, nil
}

func (e *SalesforceExporter) existingWebsites(ctx context.Context) (map[string]struct{}, error) {
	var out struct {
		Records []struct {
			Website string `json:"Website"`
		}
	}
	soql := "SELECT Website FROM Lead WHERE LeadSource = 'Outreach Campaign'"
	if err := e.client.Query(ctx, soql, &out); err != nil {
		return nil, eris.Wrap(err, "export: query existing leads")
	}

	existing := make(map[string]struct{}, len(out.Records))
	for _, r := range out.Records {
		site := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(r.Website, "https://"), "http://"))
		site = strings.TrimPrefix(site, "www.")
		existing[strings.TrimSuffix(site, "/")] = struct{}{}
	}
	return existing, nil
}
