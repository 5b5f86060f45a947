// Package archive writes finished job reports to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"facilitysync/internal/jobs"
)

// Bucket is the write side of an object store.
type Bucket interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinioBucket struct {
	client *minio.Client
	bucket string
}

// NewMinioBucket connects to an S3-compatible endpoint and creates the bucket
// when it does not exist yet.
func NewMinioBucket(ctx context.Context, cfg MinioConfig) (*MinioBucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioBucket{client: client, bucket: cfg.Bucket}, nil
}

func (b *MinioBucket) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", b.bucket, key, err)
	}
	return nil
}

// MemoryBucket keeps objects in process.
type MemoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string][]byte)}
}

func (b *MemoryBucket) Put(_ context.Context, key string, body []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), body...)
	return nil
}

func (b *MemoryBucket) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.objects[key]
	return body, ok
}

type Archiver struct {
	bucket Bucket
	prefix string
}

func NewArchiver(bucket Bucket, prefix string) *Archiver {
	if prefix == "" {
		prefix = "jobs"
	}
	return &Archiver{bucket: bucket, prefix: prefix}
}

// ReportKey places reports under <prefix>/<yyyy>/<mm>/<dd>/<action>/<id>.json,
// dated by job creation.
func (a *Archiver) ReportKey(job jobs.Job) string {
	return path.Join(a.prefix, job.CreatedAt.UTC().Format("2006/01/02"), string(job.Action), job.ID+".json")
}

func (a *Archiver) ArchiveReport(ctx context.Context, report jobs.Report) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job report: %w", err)
	}
	return a.bucket.Put(ctx, a.ReportKey(report.Job), body, "application/json")
}
