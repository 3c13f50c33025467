package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/Lllllllleong/submissionmetadata/internal/config"
	"github.com/Lllllllleong/submissionmetadata/internal/gcp"
	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

// submissionObjectRegex matches reorganized submission PDFs such as "007a_paper.pdf".
var submissionObjectRegex = regexp.MustCompile(`(?i)^\d{3,}a_.+\.pdf$`)

// IsSubmissionObject reports whether a storage object name is a submission PDF.
func IsSubmissionObject(objectName string) bool {
	return submissionObjectRegex.MatchString(path.Base(objectName))
}

// ResultObjectName is where the record for a source object is written.
func ResultObjectName(objectName string) string {
	return objectName + ".json"
}

// MetadataFunction processes one uploaded submission PDF per storage event.
type MetadataFunction struct {
	storageClient *storage.Client
	pipeline      *DocumentPipeline
	resultsBucket string
	closeLLM      func() error
}

// NewMetadataFunction initializes the clients for the event-driven entry point.
func NewMetadataFunction(ctx context.Context) (*MetadataFunction, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.ResultsBucket == "" {
		return nil, fmt.Errorf("RESULTS_BUCKET environment variable must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	pipeline, closeLLM, err := NewPipelineFromConfig(ctx, cfg)
	if err != nil {
		_ = storageClient.Close()
		return nil, err
	}

	slog.Info("Metadata function initialized.", "resultsBucket", cfg.ResultsBucket, "backend", cfg.EnricherBackend)
	return &MetadataFunction{
		storageClient: storageClient,
		pipeline:      pipeline,
		resultsBucket: cfg.ResultsBucket,
		closeLLM:      closeLLM,
	}, nil
}

// Process handles a single storage event.
func (f *MetadataFunction) Process(ctx context.Context, e models.GCSEvent) error {
	executionID := uuid.NewString()
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name, "executionId", executionID)

	if !IsSubmissionObject(e.Name) {
		logCtx.Info("Object is not a submission PDF. Skipping.")
		return nil
	}
	logCtx.Info("Processing new submission PDF.")

	tempDir, err := os.MkdirTemp("", "paper-metadata-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, path.Base(e.Name))
	if err := gcp.StreamObjectToFile(ctx, f.storageClient, e.Bucket, e.Name, localPath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(localPath)
	if err != nil {
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}

	rec, ok := f.pipeline.ProcessOne(ctx, localPath)
	if !ok {
		logCtx.Warn("No text extracted; no result written.")
		return nil
	}

	result := models.MetadataResult{
		SourceURI:   fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name),
		FileHash:    fileHash,
		ExecutionID: executionID,
		ProcessedAt: time.Now().UTC(),
		Record:      rec,
	}
	payload, err := json.Marshal(result)
	if err != nil {
		logCtx.Error("Failed to marshal result", "error", err)
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	objectName := ResultObjectName(e.Name)
	if err := gcp.SaveStringToGCSAtomically(ctx, f.storageClient.Bucket(f.resultsBucket), objectName, string(payload), "application/json"); err != nil {
		logCtx.Error("Failed to save result", "error", err, "resultObject", objectName)
		return err
	}

	logCtx.Info("Metadata result saved.", "resultUri", fmt.Sprintf("gs://%s/%s", f.resultsBucket, objectName))
	return nil
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func (f *MetadataFunction) Close() error {
	var firstErr error
	if f.closeLLM != nil {
		firstErr = f.closeLLM()
	}
	if err := f.storageClient.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
