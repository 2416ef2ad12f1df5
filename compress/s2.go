package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// S2Compressor compresses chunks with S2, the Snappy-compatible format from
// klauspost/compress.
//
// Archive chunks are written once and read many times, so the encoder uses
// s2's better-ratio mode rather than its fastest mode; decode speed is the
// same either way.
type S2Compressor struct{}

var (
	_ Codec             = (*S2Compressor)(nil)
	_ SizedDecompressor = (*S2Compressor)(nil)
)

// NewS2Compressor creates a new S2 chunk codec.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Compress compresses one chunk into a freshly sized buffer.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, 0, s2.MaxEncodedLen(len(data)))

	return s2.EncodeBetter(dst, data), nil
}

// Decompress restores one chunk, letting s2 size the output from the block's
// own length header.
func (c S2Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("s2 chunk decode: %w", err)
	}

	return out, nil
}

// DecompressInto restores one chunk into a buffer allocated from the chunk
// table's recorded raw size, avoiding s2's internal growth path.
func (c S2Compressor) DecompressInto(data []byte, rawSize int) ([]byte, error) {
	if len(data) == 0 && rawSize == 0 {
		return nil, nil
	}

	out, err := s2.Decode(make([]byte, rawSize), data)
	if err != nil {
		return nil, fmt.Errorf("s2 chunk decode: %w", err)
	}

	return out, nil
}
