package compress

import (
	"fmt"

	"github.com/kood3plot/kood3plot/format"
)

// Compressor compresses one archive chunk.
//
// Memory management:
//   - Returned slice is owned by the caller; the stored codec returns the
//     input slice itself rather than a copy
//   - Input slice is not modified
//   - Internal buffers may be reused for efficiency
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores one archive chunk.
//
// This interface mirrors Compressor. Separate interfaces allow asymmetric
// implementations where compression and decompression have different
// performance characteristics or resource requirements.
type Decompressor interface {
	// Decompress decompresses the input data and returns the original result.
	//
	// The input must have been produced by the matching Compressor. The
	// decompressor validates the stream and returns an error if the data is
	// corrupted or uses an incompatible format.
	Decompress(data []byte) ([]byte, error)
}

// SizedDecompressor is implemented by codecs that can exploit the chunk
// table's recorded raw size: the output buffer is allocated once at exactly
// the right size instead of being grown while inflating.
type SizedDecompressor interface {
	// DecompressInto decompresses one chunk whose raw size is known.
	DecompressInto(data []byte, rawSize int) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// DecompressChunk restores one chunk, routing through the codec's sized path
// when it has one. The archive reader always knows rawSize from the chunk
// table, so this is its single decompression entry point.
func DecompressChunk(d Decompressor, data []byte, rawSize int) ([]byte, error) {
	if sized, ok := d.(SizedDecompressor); ok {
		return sized.DecompressInto(data, rawSize)
	}

	return d.Decompress(data)
}

// CreateCodec is a factory function that creates a Codec for the specified
// compression type.
//
// For CompressionDeflate the level parameter selects the deflate level (1-9);
// level 0 degrades to the stored codec, matching the archive's "gzip_level 0
// disables" contract. Other codec types ignore level.
//
// Parameters:
//   - compressionType: Type of compression (None, Deflate, Zstd, S2, or LZ4)
//   - level: Deflate level (0-9); ignored by other codecs
//
// Returns:
//   - Codec: Codec instance for the specified type
//   - error: Invalid compression type error
func CreateCodec(compressionType format.CompressionType, level int) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewStoredCompressor(), nil
	case format.CompressionDeflate:
		if level == 0 {
			return NewStoredCompressor(), nil
		}

		return NewDeflateCompressor(level), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid chunk compression: %s", compressionType)
	}
}
