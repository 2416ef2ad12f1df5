//go:build !cgo

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// The pure-Go coder's EncodeAll and DecodeAll are safe for concurrent use on
// a shared instance, so one lazily-built encoder and decoder serve the whole
// process; there is no per-call state to pool.
var (
	zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderCRC(false), // datasets carry their own xxhash64
		)
		if err != nil {
			panic(fmt.Sprintf("zstd encoder init: %v", err))
		}

		return enc
	})

	zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(fmt.Sprintf("zstd decoder init: %v", err))
		}

		return dec
	})
)

// Compress encodes one chunk as a zstd stream.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return zstdEncoder().EncodeAll(data, nil), nil
}

// Decompress restores one chunk, sizing the output from the stream's own
// content-size header.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := zstdDecoder().DecodeAll(data, nil)
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

	out, err := zstdDecoder().DecodeAll(data, make([]byte, 0, rawSize))
	if err != nil {
		return nil, fmt.Errorf("zstd chunk decode: %w", err)
	}

	return out, nil
}
