package export

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNotion records create/update calls against a preloaded set of pages.
type fakeNotion struct {
	pages map[string]string // domain -> page id

	created []*notionapi.PageCreateRequest
	updated map[string]notionapi.Properties

	findErr error
}

func newFakeNotion(pages map[string]string) *fakeNotion {
	if pages == nil {
		pages = map[string]string{}
	}
	return &fakeNotion{pages: pages, updated: map[string]notionapi.Properties{}}
}

func (f *fakeNotion) FindPage(_ context.Context, _, _, value string) (string, bool, error) {
	if f.findErr != nil {
		return "", false, f.findErr
	}
	id, ok := f.pages[value]
	return id, ok, nil
}

func (f *fakeNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created = append(f.created, req)
	return &notionapi.Page{}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	f.updated[pageID] = props
	return &notionapi.Page{}, nil
}

func TestNotionExport_CreatesMissingPages(t *testing.T) {
	client := newFakeNotion(nil)
	exp := NewNotionExporter(client, "db-1")

	n, err := exp.Export(context.Background(), sampleProspects())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, client.created, 2)
	assert.Empty(t, client.updated)

	props := client.created[0].Properties
	assert.Contains(t, props, "Name")
	assert.Contains(t, props, "Domain")
	assert.Contains(t, props, "Outreach")
}

func TestNotionExport_RefreshesExistingPages(t *testing.T) {
	client := newFakeNotion(map[string]string{"acme.com": "page-acme"})
	exp := NewNotionExporter(client, "db-1")

	n, err := exp.Export(context.Background(), sampleProspects())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// acme.com already has a page: refreshed, not duplicated.
	require.Len(t, client.created, 1)
	props, ok := client.updated["page-acme"]
	require.True(t, ok, "existing page must be updated in place")
	assert.Contains(t, props, "Outreach")
	assert.Contains(t, props, "Email")
	assert.NotContains(t, props, "Domain", "identity properties are not rewritten")
}

func TestNotionExport_LookupFailureStopsExport(t *testing.T) {
	client := newFakeNotion(nil)
	client.findErr = eris.New("unauthorized")
	exp := NewNotionExporter(client, "db-1")

	n, err := exp.Export(context.Background(), sampleProspects())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.created)
}
