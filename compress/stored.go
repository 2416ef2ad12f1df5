package compress

import "fmt"

// StoredCompressor writes chunks unmodified. It backs CompressionNone and a
// gzip_level of 0: the chunk table still records stored and raw sizes, they
// are simply equal.
//
// Both directions return the input slice without copying, so a stored chunk
// shares memory with its source buffer; the archive writer copies chunk bytes
// into the file before reusing its staging buffer, and the reader hands each
// chunk's bytes to exactly one dataset assembly.
type StoredCompressor struct{}

var (
	_ Codec             = (*StoredCompressor)(nil)
	_ SizedDecompressor = (*StoredCompressor)(nil)
)

// NewStoredCompressor creates the pass-through codec.
func NewStoredCompressor() StoredCompressor {
	return StoredCompressor{}
}

// Compress returns the chunk unchanged.
func (c StoredCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the chunk unchanged.
func (c StoredCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// DecompressInto checks the stored chunk against the chunk table's recorded
// raw size; a stored chunk is its own raw form, so any mismatch means the
// directory and payload disagree.
func (c StoredCompressor) DecompressInto(data []byte, rawSize int) ([]byte, error) {
	if len(data) != rawSize {
		return nil, fmt.Errorf("stored chunk is %d bytes, chunk table records %d", len(data), rawSize)
	}

	return data, nil
}
