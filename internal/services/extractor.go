package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/tsawler/tabula"
)

// TextExtractor returns the best-effort plain text of a PDF, or "" when it cannot.
type TextExtractor interface {
	Extract(ctx context.Context, path string) string
}

// DocconvExtractor extracts text with sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

var _ TextExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) Extract(ctx context.Context, path string) string {
	text, err := e.convert(path)
	if err != nil {
		slog.Error("Error extracting text.", "filename", filepath.Base(path), "extractor", "docconv", "error", err)
		return ""
	}
	return text
}

func (e *DocconvExtractor) convert(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := docconv.Convert(f, "application/pdf", e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return res.Body, nil
}

// TabulaExtractor extracts text with tabula's PDF reader.
type TabulaExtractor struct{}

var _ TextExtractor = TabulaExtractor{}

func (TabulaExtractor) Extract(ctx context.Context, path string) (text string) {
	logCtx := slog.With("filename", filepath.Base(path), "extractor", "tabula")
	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Error extracting text.", "error", fmt.Errorf("tabula panicked: %v", r))
			text = ""
		}
	}()

	text, warnings, err := tabula.Open(path).Text()
	if err != nil {
		logCtx.Error("Error extracting text.", "error", err)
		return ""
	}
	if len(warnings) > 0 {
		logCtx.Debug("Extraction produced warnings.", "warningCount", len(warnings))
	}
	return text
}

// hasText reports whether extraction produced anything worth enriching.
func hasText(text string) bool {
	return strings.TrimSpace(text) != ""
}
