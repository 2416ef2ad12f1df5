package section

import (
	"github.com/kood3plot/kood3plot/endian"
	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/format"
)

// FileHeader is the fixed-size block at the start of an archive file. It
// carries the container magic, the layout version and the byte order used by
// everything that follows.
type FileHeader struct {
	Version uint8
	Order   format.ByteOrder
}

// NewFileHeader creates a header for the current layout version in
// little-endian order, the archive default.
func NewFileHeader() FileHeader {
	return FileHeader{
		Version: ArchiveVersion,
		Order:   format.LittleEndian,
	}
}

// Engine returns the endian engine implied by the header's byte order.
func (h *FileHeader) Engine() endian.EndianEngine {
	return endian.EngineFor(h.Order)
}

// Bytes serializes the header into its fixed-size form.
func (h *FileHeader) Bytes() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], headerMagic[:])
	b[4] = h.Version

	if h.Order == format.BigEndian {
		b[5] = flagBigEndian
	} else {
		b[5] = flagLittleEndian
	}

	return b
}

// Parse parses the header from a byte slice.
//
// Returns:
//   - error: ErrInvalidHeaderSize if data is shorter than HeaderSize,
//     ErrInvalidMagicNumber on a foreign file, ErrUnsupportedVersion on a
//     newer layout
func (h *FileHeader) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	if [4]byte(data[0:4]) != headerMagic {
		return errs.ErrInvalidMagicNumber
	}

	h.Version = data[4]
	if h.Version > ArchiveVersion {
		return errs.ErrUnsupportedVersion
	}

	switch data[5] {
	case flagBigEndian:
		h.Order = format.BigEndian
	default:
		h.Order = format.LittleEndian
	}

	return nil
}

// Trailer is the fixed-size block at the end of an archive file. It locates
// the serialized directory and carries its checksum; readers start here.
type Trailer struct {
	DirOffset   uint64
	DirSize     uint64
	DirChecksum uint64
}

// Bytes serializes the trailer into its fixed-size form.
func (t *Trailer) Bytes(engine endian.EndianEngine) []byte {
	b := make([]byte, TrailerSize)
	engine.PutUint64(b[0:8], t.DirOffset)
	engine.PutUint64(b[8:16], t.DirSize)
	engine.PutUint64(b[16:24], t.DirChecksum)
	copy(b[24:28], trailerMagic[:])

	return b
}

// Parse parses the trailer from a byte slice.
func (t *Trailer) Parse(data []byte, engine endian.EndianEngine) error {
	if len(data) < TrailerSize {
		return errs.ErrInvalidHeaderSize
	}

	if [4]byte(data[24:28]) != trailerMagic {
		return errs.ErrInvalidMagicNumber
	}

	t.DirOffset = engine.Uint64(data[0:8])
	t.DirSize = engine.Uint64(data[8:16])
	t.DirChecksum = engine.Uint64(data[16:24])

	return nil
}
