package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"

	apperrors "backup-compare/internal/errors"
)

// AzureSource fetches snapshot blobs from Azure Blob Storage.
type AzureSource struct {
	serviceURL azblob.ServiceURL
}

// NewAzureSource creates a new AzureSource instance.
func NewAzureSource(config AzureConfig) (*AzureSource, error) {
	if config.AccountName == "" || config.AccountKey == "" {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			"Azure snapshot sources require an account name and key", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage,
			"failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage,
			"failed to parse Azure service URL", err)
	}

	return &AzureSource{serviceURL: azblob.NewServiceURL(*serviceURL, pipeline)}, nil
}

// Fetch downloads a blob named by an azure://container/blob location.
func (as *AzureSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	container, blob, err := splitObjectLocation(location, "azure://")
	if err != nil {
		return nil, err
	}

	blobURL := as.serviceURL.NewContainerURL(container).NewBlockBlobURL(blob)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
			fmt.Sprintf("failed to download snapshot %s from Azure", location), err)
	}

	bodyStream := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	data, err := io.ReadAll(bodyStream)
	if err != nil {
		return nil, apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
			"failed to read snapshot data from Azure", err)
	}

	return data, nil
}
