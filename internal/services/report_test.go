package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

func sampleMetadata(filename, title string) models.DocumentMetadata {
	meta := models.NewDocumentMetadata(filename)
	meta.Title = title
	meta.Authors = []string{"Ada Lovelace", "Charles Babbage"}
	meta.AuthorCount = "2"
	meta.Keywords = []string{"engines"}
	meta.Affiliations = []string{"London"}
	meta.ApplyLayout(models.LayoutInfo{PageCount: 12, ColumnFormat: models.DoubleColumn})
	return meta
}

func TestReportColumns(t *testing.T) {
	withVenue := sampleMetadata("001a_a.pdf", "A")
	withVenue.Extra = []models.ExtraField{{Name: "Venue", Text: "ICML"}}
	fallback := FallbackMetadata("002a_b.pdf")

	cols := ReportColumns([]models.Record{withVenue.Flatten(), fallback.Flatten()})

	want := append(append([]string{}, models.PreferredColumns...), "Venue", ColDOI, ColVenueName, ColVenueWebsite)
	assert.Equal(t, want, cols)
}

func TestReportBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	withVenue := sampleMetadata("001a_a.pdf", "First")
	withVenue.Extra = []models.ExtraField{{Name: "Venue", Text: "ICML"}}
	plain := sampleMetadata("002a_b.pdf", "Second")

	reportPath, err := NewReportBuilder("").Build([]models.Record{withVenue.Flatten(), plain.Flatten()}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultReportName), reportPath)

	f, err := excelize.OpenFile(reportPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, append(append([]string{}, models.PreferredColumns...), "Venue"), rows[0])
	assert.Equal(t, []string{
		"001a_a.pdf", "001", "First", "Ada Lovelace; Charles Babbage", "2",
		"engines", "London", "12", "Double Column", "ICML",
	}, rows[1])
	second := rows[2]
	require.GreaterOrEqual(t, len(second), 9)
	assert.Equal(t, []string{
		"002a_b.pdf", "002", "Second", "Ada Lovelace; Charles Babbage", "2",
		"engines", "London", "12", "Double Column",
	}, second[:9])
	if len(second) > 9 {
		assert.Equal(t, "", second[9], "missing extra column is blank")
	}
}

func TestReportBuilder_BuildEmpty(t *testing.T) {
	dir := t.TempDir()

	reportPath, err := NewReportBuilder("out.xlsx").Build(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, reportPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReportBuilder_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")

	reportPath, err := NewReportBuilder("run.xlsx").Build([]models.Record{sampleMetadata("001a_a.pdf", "A").Flatten()}, dir)
	require.NoError(t, err)
	assert.FileExists(t, reportPath)
	assert.Equal(t, "run.xlsx", filepath.Base(reportPath))
}
