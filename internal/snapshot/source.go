package snapshot

import (
	"context"
	"fmt"
	"strings"

	apperrors "backup-compare/internal/errors"
)

// Source fetches the raw bytes of one snapshot document from a backing store.
type Source interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// S3Config holds Amazon S3 source settings.
type S3Config struct {
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// GCSConfig holds Google Cloud Storage source settings.
type GCSConfig struct {
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// AzureConfig holds Azure Blob Storage source settings.
type AzureConfig struct {
	AccountName string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey  string `mapstructure:"account_key" yaml:"account_key"`
}

// SourceConfig aggregates the settings for every remote source kind. Zero
// values fall back to each SDK's default credential chain where one exists.
type SourceConfig struct {
	S3    S3Config    `mapstructure:"s3" yaml:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs" yaml:"gcs"`
	Azure AzureConfig `mapstructure:"azure" yaml:"azure"`
}

// SourceFactory creates the source matching a snapshot location's URL scheme.
type SourceFactory struct {
	config SourceConfig
}

// NewSourceFactory creates a factory with the given remote-source settings.
func NewSourceFactory(config SourceConfig) *SourceFactory {
	return &SourceFactory{config: config}
}

// ForLocation selects a source by scheme: s3://, gs://, azure://, or a plain
// filesystem path.
func (sf *SourceFactory) ForLocation(ctx context.Context, location string) (Source, error) {
	switch {
	case strings.HasPrefix(location, "s3://"):
		return NewS3Source(sf.config.S3)
	case strings.HasPrefix(location, "gs://"):
		return NewGCSSource(ctx, sf.config.GCS)
	case strings.HasPrefix(location, "azure://"):
		return NewAzureSource(sf.config.Azure)
	case strings.Contains(location, "://"):
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported snapshot location scheme in %q", location), nil)
	default:
		return NewLocalSource(), nil
	}
}

// splitObjectLocation splits "scheme://bucket/key" into bucket and key.
func splitObjectLocation(location, scheme string) (string, string, error) {
	trimmed := strings.TrimPrefix(location, scheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("snapshot location %q must have the form %sbucket/key", location, scheme), nil)
	}
	return parts[0], parts[1], nil
}
