package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/services/storage/aws_client"
)

// NewS3AttachmentStore builds an attachment store backed by AWS S3.
func NewS3AttachmentStore(awsRegion, accessKeyID, accessKeySecret, bucketName string) interfaces.StorageService {
	s3Client := aws_client.NewS3Client(&aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	})

	return NewAttachmentStore(s3Client, Config{BucketName: bucketName})
}

// NewR2AttachmentStore builds an attachment store backed by Cloudflare R2.
func NewR2AttachmentStore(accountID, accessKeyID, accessKeySecret, bucketName string) interfaces.StorageService {
	r2Client := aws_client.NewS3Client(&aws.Config{
		Endpoint:         aws.String("https://" + accountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})

	return NewAttachmentStore(r2Client, Config{BucketName: bucketName})
}
