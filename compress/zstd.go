package compress

// ZstdCompressor compresses chunks with Zstandard.
//
// Zstd beats deflate on ratio for quantized state payloads at similar decode
// speed; pick it when every reader of an archive is known to carry this
// module. Two implementations back the same type: a cgo binding when cgo is
// available, and the pure-Go coder otherwise. The wire format is identical,
// so archives cross between the two freely.
type ZstdCompressor struct{}

var (
	_ Codec             = (*ZstdCompressor)(nil)
	_ SizedDecompressor = (*ZstdCompressor)(nil)
)

// NewZstdCompressor creates a new Zstd chunk codec.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
