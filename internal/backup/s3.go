// Package backup exports memory snapshots to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Config contains configuration for S3 export.
type Config struct {
	Bucket          string // S3 bucket name
	Prefix          string // Prefix for object keys (e.g., "recall")
	Region          string // AWS region
	Endpoint        string // Custom S3 endpoint (for MinIO, etc.)
	UsePathStyle    bool   // Forced on when Endpoint is set
	AccessKeyID     string // Static credentials (optional, uses the default chain if empty)
	SecretAccessKey string
}

// Snapshot is the exported document.
type Snapshot struct {
	ID         string         `json:"id"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Memories   []SnapshotItem `json:"memories"`
}

// SnapshotItem is one record with its embedding as base64 of the
// little-endian float32 blob.
type SnapshotItem struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Model     string `json:"model,omitempty"`
	CreatedAt string `json:"created_at"`
	Embedding string `json:"embedding,omitempty"`
}

// Putter is the subset of the S3 client used by the exporter.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads snapshots to a bucket.
type S3Exporter struct {
	client Putter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewS3Exporter builds an S3 client from cfg.
func NewS3Exporter(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	return NewExporter(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewExporter wraps an existing client.
func NewExporter(client Putter, bucket, prefix string, logger *slog.Logger) *S3Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Exporter{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Export uploads records as one JSON snapshot and returns its object key.
func (e *S3Exporter) Export(ctx context.Context, records []memory.Record) (string, error) {
	ctx, span := observability.StartSpan(ctx, "backup.Export", trace.SpanKindClient,
		attribute.String("backup.bucket", e.bucket),
		attribute.Int("backup.count", len(records)),
	)
	defer span.End()

	snap := NewSnapshot(records, e.now())
	body, err := json.Marshal(snap)
	if err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("backup: encode snapshot: %w", err)
	}

	key := e.key(snap)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("backup: failed to upload snapshot: %w", err)
	}

	e.logger.Info("memory snapshot exported", "bucket", e.bucket, "key", key, "count", snap.Count)
	return key, nil
}

// key formats prefix/memories-<timestamp>-<id>.json.
func (e *S3Exporter) key(snap Snapshot) string {
	name := fmt.Sprintf("memories-%s-%s.json", snap.ExportedAt.UTC().Format("20060102T150405Z"), snap.ID)
	if e.prefix == "" {
		return name
	}
	return path.Join(e.prefix, name)
}

// NewSnapshot converts records into a snapshot taken at now.
func NewSnapshot(records []memory.Record, now time.Time) Snapshot {
	items := make([]SnapshotItem, len(records))
	for i, r := range records {
		items[i] = SnapshotItem{
			ID:        r.ID,
			Content:   r.Content,
			Category:  r.Category,
			Model:     r.Model,
			CreatedAt: r.CreatedAt.Format(types.TimeLayout),
		}
		if len(r.Embedding) > 0 {
			items[i].Embedding = base64.StdEncoding.EncodeToString(memory.EncodeEmbedding(r.Embedding))
		}
	}
	return Snapshot{
		ID:         uuid.NewString(),
		ExportedAt: now.UTC(),
		Count:      len(items),
		Memories:   items,
	}
}
