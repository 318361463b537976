package snapshot

import (
	"context"
	"fmt"
	"os"

	apperrors "backup-compare/internal/errors"
)

// LocalSource reads snapshot files from the local filesystem.
type LocalSource struct{}

// NewLocalSource creates a new LocalSource instance.
func NewLocalSource() *LocalSource {
	return &LocalSource{}
}

// Fetch reads the file at the given path.
func (ls *LocalSource) Fetch(_ context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage,
			fmt.Sprintf("failed to read snapshot file %s", location), err)
	}
	return data, nil
}
