package snapshot

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	apperrors "backup-compare/internal/errors"
)

// CompressionType identifies the container format a snapshot file was
// compressed with.
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

// Decompressor restores the plain JSON document from one compression format.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
	Algorithm() CompressionType
}

// DecompressionManager routes snapshot bytes to the right decompressor based
// on the file's magic number, so callers can hand over compressed or plain
// exports without declaring the format.
type DecompressionManager struct {
	decompressors map[CompressionType]Decompressor
}

// NewDecompressionManager creates a manager with every supported format
// registered.
func NewDecompressionManager() *DecompressionManager {
	dm := &DecompressionManager{
		decompressors: make(map[CompressionType]Decompressor),
	}

	dm.decompressors[CompressionTypeGzip] = &GzipDecompressor{}
	dm.decompressors[CompressionTypeLZ4] = &LZ4Decompressor{}
	dm.decompressors[CompressionTypeZstd] = &ZstdDecompressor{}

	return dm
}

// Magic numbers of the supported container formats.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect sniffs the compression format of a byte stream. Unknown magic means
// the data is treated as plain JSON.
func (dm *DecompressionManager) Detect(data []byte) CompressionType {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionTypeGzip
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionTypeZstd
	case bytes.HasPrefix(data, lz4Magic):
		return CompressionTypeLZ4
	default:
		return CompressionTypeNone
	}
}

// Decompress sniffs the format and restores the plain document.
func (dm *DecompressionManager) Decompress(data []byte) ([]byte, CompressionType, error) {
	algorithm := dm.Detect(data)
	if algorithm == CompressionTypeNone {
		return data, CompressionTypeNone, nil
	}

	decompressor, exists := dm.decompressors[algorithm]
	if !exists {
		return nil, algorithm, apperrors.NewAppError(apperrors.ErrorTypeStorage,
			fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	decompressed, err := decompressor.Decompress(data)
	if err != nil {
		return nil, algorithm, err
	}
	return decompressed, algorithm, nil
}

// GzipDecompressor implements gzip decompression
type GzipDecompressor struct{}

func (gd *GzipDecompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage, "failed to create gzip reader", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage, "failed to decompress gzip data", err)
	}

	return decompressed, nil
}

func (gd *GzipDecompressor) Algorithm() CompressionType {
	return CompressionTypeGzip
}

// LZ4Decompressor implements LZ4 decompression
type LZ4Decompressor struct{}

func (ld *LZ4Decompressor) Decompress(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage, "failed to decompress LZ4 data", err)
	}

	return decompressed, nil
}

func (ld *LZ4Decompressor) Algorithm() CompressionType {
	return CompressionTypeLZ4
}

// ZstdDecompressor implements Zstandard decompression
type ZstdDecompressor struct{}

func (zd *ZstdDecompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage, "failed to create zstd decoder", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeStorage, "failed to decompress zstd data", err)
	}

	return decompressed, nil
}

func (zd *ZstdDecompressor) Algorithm() CompressionType {
	return CompressionTypeZstd
}
