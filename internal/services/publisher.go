package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Lllllllleong/submissionmetadata/internal/gcp"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportPublisher copies a finished report to object storage and returns its URI.
type ReportPublisher interface {
	Publish(ctx context.Context, localPath, runID string) (string, error)
}

// ReportObjectKey is where a run's report lives in a bucket.
func ReportObjectKey(runID, localPath string) string {
	return path.Join("reports", runID, filepath.Base(localPath))
}

// GCSReportPublisher uploads reports to Cloud Storage.
type GCSReportPublisher struct {
	storageClient *storage.Client
	bucket        string
}

var _ ReportPublisher = (*GCSReportPublisher)(nil)

func NewGCSReportPublisher(ctx context.Context, bucket string) (*GCSReportPublisher, error) {
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSReportPublisher{storageClient: storageClient, bucket: bucket}, nil
}

func (p *GCSReportPublisher) Publish(ctx context.Context, localPath, runID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	objectName := ReportObjectKey(runID, localPath)
	if err := gcp.SaveToGCSAtomically(ctx, p.storageClient.Bucket(p.bucket), objectName, f, xlsxContentType); err != nil {
		return "", err
	}
	uri := fmt.Sprintf("gs://%s/%s", p.bucket, objectName)
	slog.Info("Published report.", "uri", uri)
	return uri, nil
}

func (p *GCSReportPublisher) Close() error {
	return p.storageClient.Close()
}

// S3ReportPublisher uploads reports to Amazon S3.
type S3ReportPublisher struct {
	client *s3.Client
	bucket string
}

var _ ReportPublisher = (*S3ReportPublisher)(nil)

func NewS3ReportPublisher(ctx context.Context, region, accessKey, secretKey, bucket string) (*S3ReportPublisher, error) {
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3ReportPublisher{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

func (p *S3ReportPublisher) Publish(ctx context.Context, localPath, runID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	key := ReportObjectKey(runID, localPath)
	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	uploader := manager.NewUploader(p.client)
	_, err = uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	uri := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	slog.Info("Published report.", "uri", uri)
	return uri, nil
}
