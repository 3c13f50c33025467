package models

import "time"

// GCSEvent is the payload of a Cloud Storage object event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// MetadataResult is the JSON document the metadata function writes for one submission.
type MetadataResult struct {
	SourceURI   string    `json:"sourceUri"`
	FileHash    string    `json:"fileHash"`
	ExecutionID string    `json:"executionId"`
	ProcessedAt time.Time `json:"processedAt"`
	Record      Record    `json:"record"`
}
