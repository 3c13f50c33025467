package services

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

// Enricher produces metadata for extracted text. It must not fail.
type Enricher interface {
	Enrich(ctx context.Context, text, filename string) models.DocumentMetadata
}

// Analyzer computes layout information for a PDF. It must not fail.
type Analyzer interface {
	Analyze(path string) models.LayoutInfo
}

var (
	_ Enricher = (*MetadataEnricher)(nil)
	_ Analyzer = (*LayoutAnalyzer)(nil)
)

// RunSummary counts what happened to the documents of one run.
type RunSummary struct {
	Total     int
	Processed int
	Skipped   int
	Fallbacks int
}

// DocumentPipeline processes submission PDFs one at a time, in input order.
type DocumentPipeline struct {
	extractor TextExtractor
	enricher  Enricher
	analyzer  Analyzer
}

func NewDocumentPipeline(extractor TextExtractor, enricher Enricher, analyzer Analyzer) *DocumentPipeline {
	return &DocumentPipeline{extractor: extractor, enricher: enricher, analyzer: analyzer}
}

// Process returns one flattened record per PDF whose text could be extracted.
// Cancellation is only observed between documents: the document in flight runs to
// completion and the records finished so far are returned with the context error.
func (p *DocumentPipeline) Process(ctx context.Context, pdfPaths []string) ([]models.Record, error) {
	results := make([]models.Record, 0, len(pdfPaths))
	summary := RunSummary{Total: len(pdfPaths)}

	for i, path := range pdfPaths {
		if err := ctx.Err(); err != nil {
			slog.Warn("Run cancelled before all documents were processed.", "processed", summary.Processed, "remaining", len(pdfPaths)-i)
			return results, err
		}

		filename := filepath.Base(path)
		logCtx := slog.With("filename", filename, "position", i+1, "total", len(pdfPaths))
		logCtx.Info("Processing PDF.")

		rec, fallback, ok := p.processOne(context.WithoutCancel(ctx), logCtx, path, filename)
		if !ok {
			summary.Skipped++
			continue
		}
		if fallback {
			summary.Fallbacks++
		}
		results = append(results, rec)
		summary.Processed++
		logCtx.Info("Successfully processed.")
	}

	slog.Info("Pipeline run complete.", "total", summary.Total, "processed", summary.Processed, "skipped", summary.Skipped, "fallbacks", summary.Fallbacks)
	return results, nil
}

// ProcessOne runs the pipeline for a single PDF. ok is false when the document was skipped.
func (p *DocumentPipeline) ProcessOne(ctx context.Context, path string) (rec models.Record, ok bool) {
	filename := filepath.Base(path)
	rec, _, ok = p.processOne(ctx, slog.With("filename", filename), path, filename)
	return rec, ok
}

func (p *DocumentPipeline) processOne(ctx context.Context, logCtx *slog.Logger, path, filename string) (models.Record, bool, bool) {
	text := p.extractor.Extract(ctx, path)
	if !hasText(text) {
		logCtx.Warn("Could not extract text, skipping document.")
		return nil, false, false
	}

	logCtx.Info("Sending to enrichment service.")
	meta := p.enricher.Enrich(ctx, text, filename)

	logCtx.Info("Extracting additional PDF metadata.")
	meta.ApplyLayout(p.analyzer.Analyze(path))

	return meta.Flatten(), meta.IsFallback(), true
}
