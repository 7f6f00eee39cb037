package export

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/notion"
)

// NotionExporter upserts prospects into a Notion database, one page per
// prospect, keyed by domain.
type NotionExporter struct {
	client notion.Client
	dbID   string
}

// NewNotionExporter creates an exporter targeting the given database.
func NewNotionExporter(client notion.Client, dbID string) *NotionExporter {
	return &NotionExporter{client: client, dbID: dbID}
}

// Export writes one page per prospect and returns the number exported.
// A domain that already has a page gets its pipeline-owned properties
// refreshed instead of a duplicate page.
func (e *NotionExporter) Export(ctx context.Context, prospects []model.Prospect) (int, error) {
	exported := 0
	for i := range prospects {
		p := &prospects[i]

		pageID, exists, err := e.client.FindPage(ctx, e.dbID, "Domain", p.Domain)
		if err != nil {
			return exported, eris.Wrapf(err, "export: look up notion page for %s", p.Domain)
		}

		if exists {
			if _, err := e.client.UpdatePage(ctx, pageID, e.statusProperties(p)); err != nil {
				return exported, eris.Wrapf(err, "export: refresh notion page for %s", p.Domain)
			}
			zap.L().Debug("notion page refreshed", zap.String("domain", p.Domain))
		} else {
			if _, err := e.client.CreatePage(ctx, e.pageRequest(p)); err != nil {
				return exported, eris.Wrapf(err, "export: notion page for %s", p.Domain)
			}
		}
		exported++
	}
	return exported, nil
}

// statusProperties holds the properties the pipeline owns and refreshes on
// every export; identity properties (Name, Domain) are written once at page
// creation and left alone afterwards.
func (e *NotionExporter) statusProperties(p *model.Prospect) notionapi.Properties {
	email := ""
	if p.ContactEmail != nil {
		email = *p.ContactEmail
	}
	return notionapi.Properties{
		"Email": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: email}}},
		},
		"Outreach": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(p.OutreachStatus)},
		},
		"Verification": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(p.VerificationStatus)},
		},
	}
}

func (e *NotionExporter) pageRequest(p *model.Prospect) *notionapi.PageCreateRequest {
	props := e.statusProperties(p)
	props["Name"] = notionapi.TitleProperty{
		Title: []notionapi.RichText{{Text: &notionapi.Text{Content: p.Name}}},
	}
	props["Domain"] = notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: p.Domain}}},
	}

	return &notionapi.PageCreateRequest{
		Parent:     notionapi.Parent{DatabaseID: notionapi.DatabaseID(e.dbID)},
		Properties: props,
	}
}
