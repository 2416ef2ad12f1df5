package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// DeflateCompressor provides DEFLATE compression for archive chunks.
//
// Deflate is the archive's default codec: the writer's gzip_level option maps
// directly to the flate level here. Writers are pooled per level because
// flate.Writer allocates large internal state that benefits from reuse.
type DeflateCompressor struct {
	level int
}

var (
	_ Codec             = (*DeflateCompressor)(nil)
	_ SizedDecompressor = (*DeflateCompressor)(nil)
)

// flateWriterPools pools flate writers, one pool per level (index 1-9).
var flateWriterPools [flate.BestCompression + 1]sync.Pool

// NewDeflateCompressor creates a deflate codec at the given level.
//
// Levels outside 1-9 are clamped into that range; callers that want "level 0
// disables" semantics should go through CreateCodec, which maps level 0 to
// the no-op codec.
func NewDeflateCompressor(level int) DeflateCompressor {
	if level < flate.BestSpeed {
		level = flate.BestSpeed
	}
	if level > flate.BestCompression {
		level = flate.BestCompression
	}

	return DeflateCompressor{level: level}
}

// Level returns the configured deflate level.
func (c DeflateCompressor) Level() int {
	return c.level
}

// Compress compresses the input data as a raw deflate stream.
func (c DeflateCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data) / 2)

	fw, _ := flateWriterPools[c.level].Get().(*flate.Writer)
	if fw == nil {
		var err error
		fw, err = flate.NewWriter(&buf, c.level)
		if err != nil {
			return nil, fmt.Errorf("deflate writer init failed: %w", err)
		}
	} else {
		fw.Reset(&buf)
	}
	defer flateWriterPools[c.level].Put(fw)

	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("deflate compression failed: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("deflate compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a raw deflate stream produced by Compress.
func (c DeflateCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("deflate decompression failed: %w", err)
	}

	return out, nil
}

// DecompressInto inflates a chunk into a buffer allocated from the chunk
// table's recorded raw size and verifies the stream holds exactly that much.
func (c DeflateCompressor) DecompressInto(data []byte, rawSize int) ([]byte, error) {
	if len(data) == 0 && rawSize == 0 {
		return nil, nil
	}

	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()

	out := make([]byte, rawSize)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, fmt.Errorf("deflate decompression failed: %w", err)
	}
	if n, _ := fr.Read(make([]byte, 1)); n != 0 {
		return nil, fmt.Errorf("deflate stream longer than recorded raw size %d", rawSize)
	}

	return out, nil
}
