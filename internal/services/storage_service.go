// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/config"
)

// ArchiveResult points at a stored report.
type ArchiveResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StorageService archives generated reports in S3 and hands out presigned
// download links. Without credentials it is disabled and Enabled reports false.
type StorageService struct {
	s3Client   s3iface.S3API
	bucket     string
	prefix     string
	presignTTL time.Duration
	log        *logrus.Entry
}

func NewStorageService(cfg config.AWSConfig, log *logrus.Entry) (*StorageService, error) {
	svc := &StorageService{
		bucket:     cfg.S3Bucket,
		prefix:     cfg.ExportPrefix,
		presignTTL: cfg.PresignTTL,
		log:        log.WithField("component", "storage"),
	}
	if cfg.AccessKeyID == "" || cfg.S3Bucket == "" {
		svc.log.Info("S3 archival disabled, reports are only streamed")
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// NewStorageServiceWithClient wires an existing S3 client, used by tests.
func NewStorageServiceWithClient(client s3iface.S3API, bucket, prefix string, presignTTL time.Duration, log *logrus.Entry) *StorageService {
	return &StorageService{
		s3Client:   client,
		bucket:     bucket,
		prefix:     prefix,
		presignTTL: presignTTL,
		log:        log.WithField("component", "storage"),
	}
}

func (s *StorageService) Enabled() bool {
	return s != nil && s.s3Client != nil
}

func (s *StorageService) Archive(ctx context.Context, filename, contentType string, data []byte) (*ArchiveResult, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("S3 client not configured")
	}

	key := path.Join(s.prefix, time.Now().UTC().Format("2006/01/02"), filename)
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentType:        aws.String(contentType),
		ContentLength:      aws.Int64(int64(len(data))),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	url, err := s.GeneratePresignedURL(key, s.presignTTL)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"key":  key,
		"size": len(data),
	}).Info("Report archived")

	return &ArchiveResult{
		Key:       key,
		URL:       url,
		Size:      int64(len(data)),
		ExpiresAt: time.Now().Add(s.presignTTL),
	}, nil
}

func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}
