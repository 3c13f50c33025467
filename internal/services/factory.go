package services

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/submissionmetadata/internal/config"
	"github.com/Lllllllleong/submissionmetadata/internal/core"
	"github.com/Lllllllleong/submissionmetadata/internal/gcp"
	"github.com/Lllllllleong/submissionmetadata/internal/llm"
)

// ClosableLLM is an LLM backend holding a client connection.
type ClosableLLM interface {
	core.LLMProvider
	Close() error
}

// NewLLMProvider creates the enrichment backend selected by cfg.
func NewLLMProvider(ctx context.Context, cfg *config.Config) (ClosableLLM, error) {
	switch cfg.EnricherBackend {
	case config.BackendVertex:
		client, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return client, nil
	case config.BackendGemini:
		client, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported enricher backend %q", cfg.EnricherBackend)
	}
}

// NewTextExtractor returns the extractor selected by cfg. docconv shells out to
// pdftotext, which config validation has already found on PATH.
func NewTextExtractor(cfg *config.Config) TextExtractor {
	if cfg.TextExtractor == config.ExtractorDocconv {
		return NewDocconvExtractor(false)
	}
	return TabulaExtractor{}
}

// NewPipelineFromConfig wires the document pipeline. The returned close function
// releases the LLM client.
func NewPipelineFromConfig(ctx context.Context, cfg *config.Config) (*DocumentPipeline, func() error, error) {
	provider, err := NewLLMProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	enricher := NewMetadataEnricher(provider, EnricherConfig{
		MaxInputChars: cfg.MaxInputChars,
		Timeout:       cfg.EnrichTimeout,
	})
	pipeline := NewDocumentPipeline(NewTextExtractor(cfg), enricher, NewLayoutAnalyzer())
	return pipeline, provider.Close, nil
}

// NewReportPublisher returns the publisher selected by cfg, or nil when reports stay local.
func NewReportPublisher(ctx context.Context, cfg *config.Config) (ReportPublisher, error) {
	switch cfg.ReportSink {
	case config.SinkGCS:
		publisher, err := NewGCSReportPublisher(ctx, cfg.ReportBucket)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	case config.SinkS3:
		publisher, err := NewS3ReportPublisher(ctx, cfg.AwsRegion, cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.ReportBucket)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	default:
		return nil, nil
	}
}
