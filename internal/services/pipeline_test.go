package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

const (
	paperA = "/work/reorganized/001a_paperA.pdf"
	paperB = "/work/reorganized/002a_paperB.pdf"
	paperC = "/work/reorganized/003a_paperC.pdf"
)

func newTestPipeline(extractor TextExtractor, llm *fakeLLM, docs map[string][]PageGeometry) (*DocumentPipeline, *fakeSource) {
	counts := make(map[string]int, len(docs))
	for path, pages := range docs {
		counts[path] = len(pages)
	}
	source := newFakeSource(docs)
	analyzer := NewLayoutAnalyzerWithSources(fakeCounter{counts: counts}, source, DefaultLayoutConfig())
	return NewDocumentPipeline(extractor, NewMetadataEnricher(llm, DefaultEnricherConfig()), analyzer), source
}

func TestProcess_SkipsDocumentsWithoutText(t *testing.T) {
	extractor := fakeExtractor{paperA: "Attention is all you need. Abstract ...", paperB: ""}
	pipeline, source := newTestPipeline(extractor, &fakeLLM{response: validResponse}, map[string][]PageGeometry{
		paperA: {twoColumnPage(), twoColumnPage()},
		paperB: {singleColumnPage()},
	})

	records, err := pipeline.Process(context.Background(), []string{paperA, paperB})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, models.PreferredColumns, rec.Columns())
	assert.Equal(t, "001a_paperA.pdf", rec.Text(models.ColFilename))
	assert.Equal(t, "001", rec.Text(models.ColID))
	assert.Equal(t, "Attention Is All You Need", rec.Text(models.ColTitle))
	assert.Equal(t, "Ashish Vaswani; Noam Shazeer; Niki Parmar", rec.Text(models.ColAuthors))
	assert.Equal(t, "3", rec.Text(models.ColAuthorCount))
	assert.Equal(t, "Google Brain; Google Research", rec.Text(models.ColAffiliations))

	pages, _ := rec.Get(models.ColPageCount)
	assert.Equal(t, 2, pages)
	assert.Equal(t, string(models.DoubleColumn), rec.Text(models.ColColumnFormat))

	assert.Equal(t, []string{paperA}, source.opened, "skipped documents are not analyzed")
}

func TestProcess_ServiceFailureProducesFallbackRecord(t *testing.T) {
	extractor := fakeExtractor{paperA: "Some text"}
	llm := &fakeLLM{err: errors.New("dial tcp: i/o timeout")}
	pipeline, _ := newTestPipeline(extractor, llm, map[string][]PageGeometry{
		paperA: {singleColumnPage()},
	})

	records, err := pipeline.Process(context.Background(), []string{paperA})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, models.ProcessingFailedTitle, rec.Text(models.ColTitle))
	assert.Equal(t, "", rec.Text(models.ColAuthors))
	assert.Equal(t, "", rec.Text(models.ColKeywords))
	assert.Equal(t, "", rec.Text(models.ColAffiliations))
	assert.Equal(t, "001", rec.Text(models.ColID))

	pages, _ := rec.Get(models.ColPageCount)
	assert.Equal(t, 1, pages)
	assert.Equal(t, string(models.SingleColumn), rec.Text(models.ColColumnFormat))
}

func TestProcess_PreservesInputOrder(t *testing.T) {
	extractor := fakeExtractor{paperA: "marker-A", paperB: "marker-B", paperC: "marker-C"}
	llm := &fakeLLM{responses: map[string]string{
		"marker-A": `{"Title": "A", "Authors": [], "No of Authors": 0, "Keywords": [], "Affiliations": []}`,
		"marker-B": `{"Title": "B", "Authors": [], "No of Authors": 0, "Keywords": [], "Affiliations": []}`,
		"marker-C": `{"Title": "C", "Authors": [], "No of Authors": 0, "Keywords": [], "Affiliations": []}`,
	}}
	pipeline, _ := newTestPipeline(extractor, llm, map[string][]PageGeometry{
		paperA: {singleColumnPage()},
		paperB: {singleColumnPage()},
		paperC: {singleColumnPage()},
	})

	records, err := pipeline.Process(context.Background(), []string{paperC, paperA, paperB})
	require.NoError(t, err)

	var titles []string
	for _, rec := range records {
		titles = append(titles, rec.Text(models.ColTitle))
	}
	assert.Equal(t, []string{"C", "A", "B"}, titles)
}

func TestProcess_WhitespaceTextIsSkipped(t *testing.T) {
	extractor := fakeExtractor{paperA: " \n\t "}
	llm := &fakeLLM{response: validResponse}
	pipeline, _ := newTestPipeline(extractor, llm, map[string][]PageGeometry{paperA: {singleColumnPage()}})

	records, err := pipeline.Process(context.Background(), []string{paperA})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, llm.prompts)
}

func TestProcess_EmptyInput(t *testing.T) {
	pipeline, _ := newTestPipeline(fakeExtractor{}, &fakeLLM{}, nil)

	records, err := pipeline.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

// cancelAfterFirst cancels the run once the first document has been extracted.
type cancelAfterFirst struct {
	fakeExtractor
	cancel context.CancelFunc
}

func (c cancelAfterFirst) Extract(ctx context.Context, path string) string {
	defer c.cancel()
	return c.fakeExtractor.Extract(ctx, path)
}

func TestProcess_CancellationBetweenDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extractor := cancelAfterFirst{
		fakeExtractor: fakeExtractor{paperA: "text A", paperB: "text B"},
		cancel:        cancel,
	}
	pipeline, _ := newTestPipeline(extractor, &fakeLLM{response: validResponse}, map[string][]PageGeometry{
		paperA: {singleColumnPage()},
		paperB: {singleColumnPage()},
	})

	records, err := pipeline.Process(ctx, []string{paperA, paperB})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 1, "the document in flight is finished")
	assert.Equal(t, "001a_paperA.pdf", records[0].Text(models.ColFilename))
}

func TestProcess_CancellationDuringEnrichmentFinishesDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extractor := fakeExtractor{paperA: "text A", paperB: "text B"}
	llm := &fakeLLM{response: validResponse, delay: 100 * time.Millisecond}
	pipeline, _ := newTestPipeline(extractor, llm, map[string][]PageGeometry{
		paperA: {singleColumnPage()},
		paperB: {singleColumnPage()},
	})

	stop := time.AfterFunc(20*time.Millisecond, cancel)
	defer stop.Stop()

	records, err := pipeline.Process(ctx, []string{paperA, paperB})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 1)
	assert.Equal(t, "Attention Is All You Need", records[0].Text(models.ColTitle))
	assert.Len(t, llm.prompts, 1, "no document is started after cancellation")
}

func TestProcessOne(t *testing.T) {
	extractor := fakeExtractor{paperA: "text", paperB: ""}
	pipeline, _ := newTestPipeline(extractor, &fakeLLM{response: validResponse}, map[string][]PageGeometry{
		paperA: {twoColumnPage()},
	})

	rec, ok := pipeline.ProcessOne(context.Background(), paperA)
	require.True(t, ok)
	assert.Equal(t, string(models.DoubleColumn), rec.Text(models.ColColumnFormat))

	_, ok = pipeline.ProcessOne(context.Background(), paperB)
	assert.False(t, ok)
}
