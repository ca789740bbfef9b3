package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/angola031/Ecoswap-sub003/internal/config"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const attachmentPrefix = "attachments"

// S3Storage stores message attachments in a MinIO/S3 bucket.
type S3Storage struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

func NewS3Storage(ctx context.Context, cfg config.S3Config, log *logger.Logger) (*S3Storage, error) {
	l := log.Named("S3Storage")
	l.Info("Initializing S3 MinIO storage", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket), zap.Bool("use_ssl", cfg.UseSSL))

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		l.Error("Failed to create MinIO client", zap.String("endpoint", cfg.Endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errExists := client.BucketExists(ctx, cfg.Bucket)
		if errExists != nil || !exists {
			l.Error("Failed to make or verify bucket", zap.String("bucket", cfg.Bucket), zap.NamedError("make_bucket_error", err), zap.NamedError("check_exists_error", errExists))
			return nil, fmt.Errorf("failed to make/verify bucket %s: (make: %v / exists_check: %v)", cfg.Bucket, err, errExists)
		}
		l.Info("Bucket already exists", zap.String("bucket", cfg.Bucket))
	} else {
		l.Info("Bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &S3Storage{client: client, bucket: cfg.Bucket, logger: l}, nil
}

// ObjectKey returns a fresh key for fileName that keeps its extension.
func ObjectKey(fileName string) string {
	ext := strings.ToLower(filepath.Ext(path.Base(fileName)))
	return fmt.Sprintf("%s/%s%s", attachmentPrefix, uuid.New().String(), ext)
}

// Upload implements domain.AttachmentStorage. size may be -1 when unknown.
func (s *S3Storage) Upload(ctx context.Context, fileName, contentType string, data io.Reader, size int64) (string, error) {
	objectKey := ObjectKey(fileName)

	info, err := s.client.PutObject(ctx, s.bucket, objectKey, data, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-filename": path.Base(fileName)},
	})
	if err != nil {
		s.logger.Error("PutObject failed", zap.String("bucket", s.bucket), zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", objectKey, s.bucket, err)
	}
	s.logger.Info("Attachment uploaded",
		zap.String("key", info.Key),
		zap.String("etag", info.ETag),
		zap.Int64("size", info.Size))

	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, objectKey), nil
}
