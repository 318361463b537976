package snapshot

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	apperrors "backup-compare/internal/errors"
)

// S3Source fetches snapshot objects from Amazon S3.
type S3Source struct {
	client *s3.S3
}

// NewS3Source creates a new S3Source instance. Static credentials are used
// when configured; otherwise the SDK's default credential chain applies.
func NewS3Source(config S3Config) (*S3Source, error) {
	awsConfig := &aws.Config{}
	if config.Region != "" {
		awsConfig.Region = aws.String(config.Region)
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage,
			"failed to create AWS session", err)
	}

	return &S3Source{client: s3.New(sess)}, nil
}

// Fetch downloads an object named by an s3://bucket/key location.
func (ss *S3Source) Fetch(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := splitObjectLocation(location, "s3://")
	if err != nil {
		return nil, err
	}

	result, err := ss.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
			fmt.Sprintf("failed to download snapshot %s from S3", location), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
			"failed to read snapshot data from S3", err)
	}

	return data, nil
}
