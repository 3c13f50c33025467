package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/submissionmetadata/internal/models"
	"github.com/Lllllllleong/submissionmetadata/internal/services"
)

var (
	metadataInstance *services.MetadataFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ExtractMetadata", extractMetadata)
}

// main is required by the Go Functions Framework.
func main() {}

// extractMetadata is the Cloud Function entry point for storage object events.
func extractMetadata(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		metadataInstance, initErr = services.NewMetadataFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside Process; returning marks the invocation failed.
	return metadataInstance.Process(ctx, gcsEvent)
}
