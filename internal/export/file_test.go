package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func sampleProspects() []model.Prospect {
	email := "jane@acme.com"
	sent := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	return []model.Prospect{
		{
			Domain:             "acme.com",
			Name:               "Acme",
			ScrapeStatus:       model.ScrapeDone,
			ContactEmail:       &email,
			EmailSource:        "site",
			VerificationStatus: model.VerificationVerified,
			OutreachStatus:     model.OutreachSent,
			LastSent:           &sent,
			FollowupsSent:      1,
		},
		{
			Domain:         "globex.com",
			Name:           "Globex",
			ScrapeStatus:   model.ScrapeNotStarted,
			OutreachStatus: model.OutreachPending,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleProspects()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, fileHeader, rows[0])
	assert.Equal(t, "acme.com", rows[1][0])
	assert.Equal(t, "jane@acme.com", rows[1][3])
	assert.Equal(t, "2026-08-14 09:30:00", rows[1][7])
	assert.Equal(t, "1", rows[1][8])

	// Unset optionals render empty.
	assert.Empty(t, rows[2][3])
	assert.Empty(t, rows[2][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleProspects()))
	assert.NotZero(t, buf.Len())
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleProspects()))
	assert.Contains(t, buf.String(), "acme.com")
	assert.Contains(t, buf.String(), "globex.com")
}

func TestWriteFile_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFile(&buf, "parquet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
