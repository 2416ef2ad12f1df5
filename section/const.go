package section

// Archive container constants. The byte-level layout here is the on-disk
// contract of the archive: a fixed file header, appended chunk payloads, a
// serialized directory, and a fixed trailer locating the directory.
const (
	// HeaderSize is the fixed archive file header size in bytes.
	HeaderSize = 16
	// TrailerSize is the fixed archive trailer size in bytes.
	TrailerSize = 32

	// ArchiveVersion is the current container layout version.
	ArchiveVersion = 1

	// FormatName is the self-describing format attribute stored on the
	// archive root.
	FormatName = "KooD3plot Archive v1"
)

// Magic values framing the container.
var (
	headerMagic  = [4]byte{'K', 'D', 'A', '1'}
	trailerMagic = [4]byte{'K', 'D', 'A', 'E'}
)

// Endianness flags carried in the file header.
const (
	flagLittleEndian = 0x1
	flagBigEndian    = 0x2
)

// Attribute kinds in the directory encoding.
const (
	AttrInt64 = uint8(iota + 1)
	AttrFloat64
	AttrString
	AttrFloat64Array
)

// maxNameLen bounds path and attribute name lengths in the directory.
const maxNameLen = 0xFFFF
