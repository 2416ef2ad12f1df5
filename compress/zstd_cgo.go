//go:build cgo

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"
)

// zstdCgoLevel mirrors the pure-Go coder's "better compression" tier so the
// two implementations land in the same ratio band on chunk payloads.
const zstdCgoLevel = 7

// Compress encodes one chunk as a zstd stream via the cgo binding.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.CompressLevel(nil, data, zstdCgoLevel), nil
}

// Decompress restores one chunk, sizing the output from the stream's own
// content-size header.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd chunk decode: %w", err)
	}

	return out, nil
}

// DecompressInto restores one chunk into capacity reserved from the chunk
// table's recorded raw size.
func (c ZstdCompressor) DecompressInto(data []byte, rawSize int) ([]byte, error) {
	if len(data) == 0 && rawSize == 0 {
		return nil, nil
	}

	out, err := gozstd.Decompress(make([]byte, 0, rawSize), data)
	if err != nil {
		return nil, fmt.Errorf("zstd chunk decode: %w", err)
	}

	return out, nil
}
