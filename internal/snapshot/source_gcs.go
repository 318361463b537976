package snapshot

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperrors "backup-compare/internal/errors"
)

// GCSSource fetches snapshot objects from Google Cloud Storage.
type GCSSource struct {
	client *storage.Client
}

// NewGCSSource creates a new GCSSource instance. A credentials file is used
// when configured; otherwise default credentials apply (environment or
// metadata server).
func NewGCSSource(ctx context.Context, config GCSConfig) (*GCSSource, error) {
	var client *storage.Client
	var err error

	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage,
			"failed to create GCS client", err)
	}

	return &GCSSource{client: client}, nil
}

// Fetch downloads an object named by a gs://bucket/object location.
func (gs *GCSSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	bucket, object, err := splitObjectLocation(location, "gs://")
	if err != nil {
		return nil, err
	}

	reader, err := gs.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
			fmt.Sprintf("failed to download snapshot %s from GCS", location), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
			"failed to read snapshot data from GCS", err)
	}

	return data, nil
}

// Close releases the underlying GCS client.
func (gs *GCSSource) Close() error {
	return gs.client.Close()
}
