package mirror

import (
	"context"
	"fmt"
	"path"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// LogHook only logs closed documents.
type LogHook struct{}

func (LogHook) Name() string { return "log" }

func (LogHook) Sync(_ context.Context, event Event) error {
	log.Info("document written", "root", event.RootID, "path", event.RelPath, "size", event.Size)
	return nil
}

/*
MinioConfig points the mirror at an S3 compatible bucket.
*/
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

/*
MinioHook uploads every closed document to <bucket>/<root>/<path>.
*/
type MinioHook struct {
	client *minio.Client
	bucket string
}

/*
NewMinioHook connects to the endpoint and creates the bucket if it does not
exist yet.
*/
func NewMinioHook(ctx context.Context, cfg MinioConfig) (*MinioHook, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}

		log.Info("created mirror bucket", "bucket", cfg.Bucket)
	}

	return &MinioHook{client: client, bucket: cfg.Bucket}, nil
}

func (h *MinioHook) Name() string { return "minio" }

// ObjectKey is where a document lands in the bucket.
func ObjectKey(event Event) string {
	return path.Join(event.RootID, event.RelPath)
}

func (h *MinioHook) Sync(ctx context.Context, event Event) error {
	rc, err := event.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", event.RelPath, err)
	}
	defer rc.Close()

	info, err := h.client.PutObject(ctx, h.bucket, ObjectKey(event), rc, event.Size, minio.PutObjectOptions{
		ContentType: event.MimeType,
	})

	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", event.RelPath, err)
	}

	log.Debug("mirrored document", "bucket", h.bucket, "key", info.Key, "etag", info.ETag)
	return nil
}
