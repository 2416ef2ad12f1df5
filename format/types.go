package format

type (
	// Precision is the scalar word width of a state-dump file.
	Precision uint8
	// ByteOrder is the byte order of a state-dump file or archive.
	ByteOrder uint8
	// CompressionType selects the codec applied to archive chunks.
	CompressionType uint8
	// Preset is a named compression configuration for the archive writer.
	Preset uint8
	// DataType identifies the element type of an archive dataset.
	DataType uint8
)

const (
	PrecisionSingle Precision = 0x1 // PrecisionSingle represents 4-byte words.
	PrecisionDouble Precision = 0x2 // PrecisionDouble represents 8-byte words.

	LittleEndian ByteOrder = 0x1 // LittleEndian represents little-endian byte order.
	BigEndian    ByteOrder = 0x2 // BigEndian represents big-endian byte order.

	CompressionNone    CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionDeflate CompressionType = 0x2 // CompressionDeflate represents DEFLATE (the archive default).
	CompressionZstd    CompressionType = 0x3 // CompressionZstd represents Zstandard compression.
	CompressionS2      CompressionType = 0x4 // CompressionS2 represents S2 compression.
	CompressionLZ4     CompressionType = 0x5 // CompressionLZ4 represents LZ4 compression.

	PresetNone     Preset = 0x1 // PresetNone stores raw data with no deflate.
	PresetLossless Preset = 0x2 // PresetLossless stores raw data with deflate.
	PresetBalanced Preset = 0x3 // PresetBalanced quantizes, delta-encodes and deflates.
	PresetMaximum  Preset = 0x4 // PresetMaximum is PresetBalanced with deflate level 9.

	TypeFloat64 DataType = 0x1 // TypeFloat64 represents IEEE 754 64-bit floats.
	TypeInt32   DataType = 0x2 // TypeInt32 represents signed 32-bit integers.
	TypeUint16  DataType = 0x3 // TypeUint16 represents unsigned 16-bit integers.
	TypeInt16   DataType = 0x4 // TypeInt16 represents signed 16-bit integers.
)

// WordSize returns the byte width of one file word under this precision.
func (p Precision) WordSize() int {
	if p == PrecisionDouble {
		return 8
	}

	return 4
}

func (p Precision) String() string {
	switch p {
	case PrecisionSingle:
		return "Single"
	case PrecisionDouble:
		return "Double"
	default:
		return "Unknown"
	}
}

func (o ByteOrder) String() string {
	switch o {
	case LittleEndian:
		return "LittleEndian"
	case BigEndian:
		return "BigEndian"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionDeflate:
		return "Deflate"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (p Preset) String() string {
	switch p {
	case PresetNone:
		return "None"
	case PresetLossless:
		return "Lossless"
	case PresetBalanced:
		return "Balanced"
	case PresetMaximum:
		return "Maximum"
	default:
		return "Unknown"
	}
}

// Size returns the byte width of one element of this data type.
func (t DataType) Size() int {
	switch t {
	case TypeFloat64:
		return 8
	case TypeInt32:
		return 4
	case TypeUint16, TypeInt16:
		return 2
	default:
		return 0
	}
}

func (t DataType) String() string {
	switch t {
	case TypeFloat64:
		return "float64"
	case TypeInt32:
		return "int32"
	case TypeUint16:
		return "uint16"
	case TypeInt16:
		return "int16"
	default:
		return "unknown"
	}
}
