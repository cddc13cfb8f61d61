package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Strizzyy/LegalSaathi-sub001/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService stores submitted document text in object storage so the
// review queue database only carries metadata.
type ArchiveService struct {
	client *minio.Client
	bucket string
}

func NewArchiveService(cfg *config.ArchiveConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectName returns the archive key for a review's document.
func (s *ArchiveService) ObjectName(reviewID string) string {
	return fmt.Sprintf("reviews/%s/document.txt", reviewID)
}

// StoreDocument archives the submitted document content for a review.
func (s *ArchiveService) StoreDocument(ctx context.Context, reviewID, content string) error {
	reader := strings.NewReader(content)
	_, err := s.client.PutObject(ctx, s.bucket, s.ObjectName(reviewID), reader, int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("failed to archive document: %w", err)
	}

	return nil
}

// FetchDocument retrieves the archived document content for a review.
func (s *ArchiveService) FetchDocument(ctx context.Context, reviewID string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.ObjectName(reviewID), minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return string(data), nil
}

// DeleteDocument removes the archived document for a review.
func (s *ArchiveService) DeleteDocument(ctx context.Context, reviewID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.ObjectName(reviewID), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}
