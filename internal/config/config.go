package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"

	ExtractorDocconv = "docconv"
	ExtractorTabula  = "tabula"

	// PdftotextBinary is the poppler tool docconv runs for PDFs.
	PdftotextBinary = "pdftotext"

	SinkNone = ""
	SinkGCS  = "gcs"
	SinkS3   = "s3"
)

type Config struct {
	SourceFolder      string
	DestinationFolder string

	EnricherBackend string
	AIAPIKey        string
	GenModel        string
	ProjectID       string
	VertexAIRegion  string
	MaxInputChars   int
	EnrichTimeout   time.Duration

	TextExtractor string
	ReportName    string

	ReportSink   string
	ReportBucket string
	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string

	ResultsBucket string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads the environment (and a .env file when present) into a Config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SourceFolder:      getEnv("SOURCE_FOLDER", "XYZ"),
		DestinationFolder: getEnv("DESTINATION_FOLDER", "XYZ_modified"),
		EnricherBackend:   strings.ToLower(getEnv("ENRICHER_BACKEND", BackendGemini)),
		AIAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GenModel:          getEnv("GEN_MODEL", "gemini-1.5-flash"),
		ProjectID:         getEnv("PROJECT_ID", ""),
		VertexAIRegion:    getEnv("VERTEX_AI_REGION", "us-central1"),
		MaxInputChars:     getEnvInt("MAX_INPUT_CHARS", 10000),
		EnrichTimeout:     getEnvDuration("ENRICH_TIMEOUT", 0),
		TextExtractor:     strings.ToLower(getEnv("TEXT_EXTRACTOR", ExtractorTabula)),
		ReportName:        getEnv("REPORT_NAME", "Research_Papers_Metadata.xlsx"),
		ReportSink:        strings.ToLower(getEnv("REPORT_SINK", SinkNone)),
		ReportBucket:      getEnv("REPORT_BUCKET", ""),
		AwsRegion:         getEnv("AWS_REGION", "us-east-2"),
		AwsAccessKey:      getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:      getEnv("AWS_SECRET_KEY", ""),
		ResultsBucket:     getEnv("RESULTS_BUCKET", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	switch c.EnricherBackend {
	case BackendGemini:
		if c.AIAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set for the %q backend", BackendGemini)
		}
	case BackendVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID must be set for the %q backend", BackendVertex)
		}
	default:
		return fmt.Errorf("unsupported ENRICHER_BACKEND %q", c.EnricherBackend)
	}

	switch c.TextExtractor {
	case ExtractorTabula:
	case ExtractorDocconv:
		if _, err := exec.LookPath(PdftotextBinary); err != nil {
			return fmt.Errorf("TEXT_EXTRACTOR=%s needs %s on PATH: %w", ExtractorDocconv, PdftotextBinary, err)
		}
	default:
		return fmt.Errorf("unsupported TEXT_EXTRACTOR %q", c.TextExtractor)
	}

	switch c.ReportSink {
	case SinkNone:
	case SinkGCS, SinkS3:
		if c.ReportBucket == "" {
			return fmt.Errorf("REPORT_BUCKET must be set when REPORT_SINK=%s", c.ReportSink)
		}
	default:
		return fmt.Errorf("unsupported REPORT_SINK %q", c.ReportSink)
	}

	if c.MaxInputChars <= 0 {
		return fmt.Errorf("MAX_INPUT_CHARS must be positive, got %d", c.MaxInputChars)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Environment value is not an int, using default.", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Environment value is not a duration, using default.", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}
