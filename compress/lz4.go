package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4Compressor compresses chunks as LZ4 frames.
//
// The frame format (rather than raw blocks) is deliberate: frames carry their
// own framing and checksum, and they degrade gracefully on incompressible
// chunks, where the block API instead reports the data as unencodable. Frame
// overhead is a few bytes per chunk, negligible at the archive's chunk sizes.
type LZ4Compressor struct {
	level lz4.CompressionLevel
}

var (
	_ Codec             = (*LZ4Compressor)(nil)
	_ SizedDecompressor = (*LZ4Compressor)(nil)
)

// NewLZ4Compressor creates an LZ4 chunk codec at the default fast level.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{level: lz4.Fast}
}

// Compress encodes one chunk as a single LZ4 frame.
func (c LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data) / 2)

	zw := lz4.NewWriter(&buf)
	if err := zw.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, fmt.Errorf("lz4 chunk encode: %w", err)
	}

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 chunk encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 chunk encode: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress restores one chunk from its frame.
func (c LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	zr := lz4.NewReader(bytes.NewReader(data))

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("lz4 chunk decode: %w", err)
	}

	return out, nil
}

// DecompressInto restores one chunk into a buffer allocated from the chunk
// table's recorded raw size and verifies the frame holds exactly that much.
func (c LZ4Compressor) DecompressInto(data []byte, rawSize int) ([]byte, error) {
	if len(data) == 0 && rawSize == 0 {
		return nil, nil
	}

	zr := lz4.NewReader(bytes.NewReader(data))

	out := make([]byte, rawSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("lz4 chunk decode: %w", err)
	}
	if n, _ := zr.Read(make([]byte, 1)); n != 0 {
		return nil, fmt.Errorf("lz4 chunk decode: frame longer than recorded raw size %d", rawSize)
	}

	return out, nil
}
