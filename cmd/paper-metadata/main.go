package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Lllllllleong/submissionmetadata/internal/config"
	"github.com/Lllllllleong/submissionmetadata/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	if err := run(ctx, cfg); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config) error {
	runID := uuid.NewString()
	logCtx := slog.With("runId", runID)

	logCtx.Info("Step 1: Reorganizing files.", "source", cfg.SourceFolder, "destination", cfg.DestinationFolder)
	submissionPDFs, err := services.NewReorganizer(0).Reorganize(ctx, cfg.SourceFolder, cfg.DestinationFolder)
	if err != nil {
		return err
	}

	logCtx.Info("Step 2: Processing submission PDFs.", "count", len(submissionPDFs), "backend", cfg.EnricherBackend)
	pipeline, closeLLM, err := services.NewPipelineFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLLM()

	results, procErr := pipeline.Process(ctx, submissionPDFs)
	if procErr != nil {
		// Keep what was finished; the report is still written below.
		logCtx.Warn("Processing stopped early.", "error", procErr)
	}

	logCtx.Info("Step 3: Saving results to the report.")
	reportPath, err := services.NewReportBuilder(cfg.ReportName).Build(results, cfg.DestinationFolder)
	if err != nil {
		return err
	}

	if reportPath != "" {
		publisher, err := services.NewReportPublisher(context.WithoutCancel(ctx), cfg)
		if err != nil {
			logCtx.Error("Failed to create report publisher", "error", err)
		} else if publisher != nil {
			if _, err := publisher.Publish(context.WithoutCancel(ctx), reportPath, runID); err != nil {
				logCtx.Error("Failed to publish report", "error", err, "path", reportPath)
			}
			if c, ok := publisher.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}

	if procErr != nil {
		return procErr
	}
	logCtx.Info("Complete! All files have been reorganized and research papers analyzed.")
	return nil
}
