package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/submissionmetadata/internal/core"
	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

// Enrichment failure kinds. Every failure returned by parseMetadataResponse or
// callService wraps exactly one of these.
var (
	ErrServiceCall       = errors.New("enrichment service call failed")
	ErrEmptyResponse     = errors.New("enrichment service returned an empty response")
	ErrMalformedResponse = errors.New("enrichment response is not a JSON object")
	ErrSchemaViolation   = errors.New("enrichment response violates the metadata schema")
)

// Response keys of the enrichment service.
const (
	keyTitle        = "Title"
	keyAuthors      = "Authors"
	keyAuthorCount  = "No of Authors"
	keyKeywords     = "Keywords"
	keyAffiliations = "Affiliations"
)

// Fallback-only columns.
const (
	ColDOI          = "DOI"
	ColVenueName    = "Journal/ Conference name"
	ColVenueWebsite = "Journal/ Conference website"
)

const MetadataSystemPrompt = "You are a bibliographic metadata extractor for research papers. You must output your response as a single valid JSON object."

const metadataPromptTemplate = `
Extract the following details from the research paper and return the output as a JSON object:
{
    "Title": "<Title of the paper>",
    "Authors": ["<List of authors>"],
    "No of Authors": "<Number of authors>",
    "Keywords": ["<List of keywords>"],
    "Affiliations": ["<List of affiliations>"]
}

Text:
%s
`

// EnricherConfig holds the enrichment request limits.
type EnricherConfig struct {
	// MaxInputChars bounds how much document text is sent to the service.
	MaxInputChars int
	// Timeout bounds a single service call. Zero means no timeout.
	Timeout time.Duration
}

func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{MaxInputChars: 10000}
}

// EnrichedFields is a response that passed schema validation.
type EnrichedFields struct {
	Title        string
	Authors      []string
	AuthorCount  string
	Keywords     []string
	Affiliations []string
	Extra        []models.ExtraField
}

// MetadataEnricher turns extracted document text into bibliographic metadata.
type MetadataEnricher struct {
	llm    core.LLMProvider
	config EnricherConfig
}

func NewMetadataEnricher(llm core.LLMProvider, config EnricherConfig) *MetadataEnricher {
	if config.MaxInputChars <= 0 {
		config.MaxInputChars = DefaultEnricherConfig().MaxInputChars
	}
	return &MetadataEnricher{llm: llm, config: config}
}

// Enrich always returns a well-formed record: on any failure it is the fallback record.
func (e *MetadataEnricher) Enrich(ctx context.Context, text, filename string) models.DocumentMetadata {
	logCtx := slog.With("filename", filename)

	fields, err := e.requestMetadata(ctx, text)
	if err != nil {
		logCtx.Error("Error processing with enrichment service.", "error", err)
		return FallbackMetadata(filename)
	}

	meta := models.NewDocumentMetadata(filename)
	meta.Title = fields.Title
	meta.Authors = fields.Authors
	meta.AuthorCount = fields.AuthorCount
	meta.Keywords = fields.Keywords
	meta.Affiliations = fields.Affiliations
	meta.Extra = fields.Extra
	return meta
}

func (e *MetadataEnricher) requestMetadata(ctx context.Context, text string) (EnrichedFields, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(metadataPromptTemplate, TruncateRunes(text, e.config.MaxInputChars))
	raw, err := e.llm.Generate(ctx, MetadataSystemPrompt, prompt)
	if err != nil {
		return EnrichedFields{}, fmt.Errorf("%w: %w", ErrServiceCall, err)
	}
	return parseMetadataResponse(raw)
}

// FallbackMetadata is the record used when enrichment cannot be trusted.
func FallbackMetadata(filename string) models.DocumentMetadata {
	meta := models.NewDocumentMetadata(filename)
	meta.Title = models.ProcessingFailedTitle
	meta.Authors = []string{}
	meta.Keywords = []string{}
	meta.Affiliations = []string{}
	meta.Extra = []models.ExtraField{
		{Name: ColDOI},
		{Name: ColVenueName},
		{Name: ColVenueWebsite},
	}
	return meta
}

// TruncateRunes returns at most n characters of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// stripFences removes markdown code fences the model may wrap its JSON in.
func stripFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// parseMetadataResponse validates a raw service response against the metadata schema.
func parseMetadataResponse(raw string) (EnrichedFields, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return EnrichedFields{}, ErrEmptyResponse
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	// Read the object token by token so unknown keys keep their response order.
	tok, err := dec.Token()
	if err != nil {
		return EnrichedFields{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return EnrichedFields{}, fmt.Errorf("%w: top-level value is not an object", ErrMalformedResponse)
	}

	values := make(map[string]any)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return EnrichedFields{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return EnrichedFields{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return EnrichedFields{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if dec.More() {
		return EnrichedFields{}, fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}

	var fields EnrichedFields
	if fields.Title, err = requireString(values, keyTitle); err != nil {
		return EnrichedFields{}, err
	}
	if fields.Authors, err = requireStringList(values, keyAuthors); err != nil {
		return EnrichedFields{}, err
	}
	if fields.AuthorCount, err = requireCount(values, keyAuthorCount); err != nil {
		return EnrichedFields{}, err
	}
	if fields.Keywords, err = requireStringList(values, keyKeywords); err != nil {
		return EnrichedFields{}, err
	}
	if fields.Affiliations, err = requireStringList(values, keyAffiliations); err != nil {
		return EnrichedFields{}, err
	}

	for _, key := range order {
		switch key {
		case keyTitle, keyAuthors, keyAuthorCount, keyKeywords, keyAffiliations:
			continue
		}
		if models.IsReservedColumn(key) {
			slog.Debug("Dropping reserved key from enrichment response.", "key", key)
			continue
		}
		fields.Extra = append(fields.Extra, extraField(key, values[key]))
	}
	return fields, nil
}

func requireString(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrSchemaViolation, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrSchemaViolation, key, v)
	}
	return s, nil
}

func requireStringList(values map[string]any, key string) ([]string, error) {
	v, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrSchemaViolation, key)
	}
	list, ok := toStringList(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a list of strings, got %T", ErrSchemaViolation, key, v)
	}
	return list, nil
}

// requireCount accepts the author count as a number or a string and keeps it verbatim.
func requireCount(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrSchemaViolation, key)
	}
	switch c := v.(type) {
	case json.Number:
		return c.String(), nil
	case string:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q must be a number or string, got %T", ErrSchemaViolation, key, v)
	}
}

func toStringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func extraField(name string, v any) models.ExtraField {
	if list, ok := toStringList(v); ok {
		return models.ExtraField{Name: name, Multi: true, List: list}
	}
	switch t := v.(type) {
	case nil:
		return models.ExtraField{Name: name}
	case string:
		return models.ExtraField{Name: name, Text: t}
	case json.Number:
		return models.ExtraField{Name: name, Text: t.String()}
	default:
		b, _ := json.Marshal(t)
		return models.ExtraField{Name: name, Text: string(b)}
	}
}
