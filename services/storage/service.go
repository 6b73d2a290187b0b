package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/services/storage/aws_client"
)

// attachmentStore implements StorageService over an S3-compatible bucket.
// Attachment objects are private; public URLs are served only through a
// CDN domain when one is configured.
type attachmentStore struct {
	client     aws_client.S3Client
	bucketName string
	cdnDomain  string
}

type Config struct {
	BucketName string
	CDNDomain  string
}

func NewAttachmentStore(client aws_client.S3Client, config Config) interfaces.StorageService {
	return &attachmentStore{
		client:     client,
		bucketName: config.BucketName,
		cdnDomain:  config.CDNDomain,
	}
}

func (s *attachmentStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentStore.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("key", key)
	span.SetTag("sizeBytes", len(data))

	return s.client.Upload(ctx, s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
}

func (s *attachmentStore) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentStore.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("key", key)

	return s.client.Download(ctx, s.bucketName, key)
}

func (s *attachmentStore) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentStore.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("key", key)

	return s.client.Delete(ctx, s.bucketName, key)
}

func (s *attachmentStore) GetPublicURL(key string) string {
	if s.cdnDomain != "" {
		return "https://" + s.cdnDomain + "/" + key
	}
	return ""
}
