// Package wordfile provides random word-addressed access to solver state-dump
// files.
//
// A "word" is the file's native scalar unit, 4 or 8 bytes depending on the
// detected precision. Integer and floating fields share the same word width;
// the reader widens or narrows between the file width and the requested Go
// type. All reads are absolute (no cursor), implemented over ReadAt so a
// failed read never poisons subsequent reads, and byte order is swapped iff
// the file's endianness differs from the host's.
package wordfile

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kood3plot/kood3plot/endian"
	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/format"
)

const (
	// versionWordAddr is the word address of the solver version used by the
	// format probe.
	versionWordAddr = 14

	// Solver versions live in [versionMin, versionMax]; a probed value outside
	// this interval rejects the precision/endianness combination.
	versionMin = 900.0
	versionMax = 2000.0

	// minProbeBytes is the smallest file the probe can work on: the control
	// section in double precision.
	minProbeBytes = 64 * 8
)

// Reader provides word-addressed reads over a single state-dump file.
//
// A Reader is bound to one precision/endianness pair, either detected from the
// file (Open) or supplied by the caller (OpenWithFormat, used for continuation
// files that carry no control section of their own).
//
// A Reader must not be shared between goroutines that expect independent read
// positions; the family state reader opens one Reader per worker.
type Reader struct {
	f         *os.File
	path      string
	precision format.Precision
	order     format.ByteOrder
	engine    endian.EndianEngine
	wordSize  int
	sizeBytes int64
}

// Open opens the file and detects its precision and endianness by probing the
// version word.
//
// Returns:
//   - *Reader: Reader bound to the detected format
//   - error: ErrFileNotFound, ErrIO, or ErrInvalidFormat if no combination of
//     precision and endianness yields a version in [900, 2000]
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", errs.ErrIO, path, err)
	}

	if info.Size() < minProbeBytes {
		f.Close()
		return nil, fmt.Errorf("%w: %s: file shorter than control section", errs.ErrInvalidFormat, path)
	}

	precision, order, err := detectFormat(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{
		f:         f,
		path:      path,
		precision: precision,
		order:     order,
		engine:    endian.EngineFor(order),
		wordSize:  precision.WordSize(),
		sizeBytes: info.Size(),
	}, nil
}

// OpenWithFormat opens a file whose format is already known, skipping the
// probe. Continuation files contain only state data, so their format is
// inherited from the family's base file.
func OpenWithFormat(path string, precision format.Precision, order format.ByteOrder) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", errs.ErrIO, path, err)
	}

	return &Reader{
		f:         f,
		path:      path,
		precision: precision,
		order:     order,
		engine:    endian.EngineFor(order),
		wordSize:  precision.WordSize(),
		sizeBytes: info.Size(),
	}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}

	err := r.f.Close()
	r.f = nil

	return err
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Precision returns the file's word width class.
func (r *Reader) Precision() format.Precision { return r.precision }

// Order returns the file's byte order.
func (r *Reader) Order() format.ByteOrder { return r.order }

// WordSize returns the byte width of one word.
func (r *Reader) WordSize() int { return r.wordSize }

// SizeWords returns the file length in whole words.
func (r *Reader) SizeWords() int64 { return r.sizeBytes / int64(r.wordSize) }

// Version reads the solver version from the version word.
func (r *Reader) Version() (float64, error) {
	return r.ReadFloat64(versionWordAddr)
}

// readWords reads count words starting at the given word address into a fresh
// byte slice. Bounds are checked against the file length up front so a short
// file surfaces as a structured error rather than a partial read.
func (r *Reader) readWords(word int64, count int) ([]byte, error) {
	if r.f == nil {
		return nil, fmt.Errorf("%w: %s: reader closed", errs.ErrIO, r.path)
	}

	byteOff := word * int64(r.wordSize)
	n := count * r.wordSize

	if word < 0 || byteOff+int64(n) > r.sizeBytes {
		return nil, fmt.Errorf("%w: short read at word %d of file %s", errs.ErrIO, word, r.path)
	}

	buf := make([]byte, n)
	if _, err := r.f.ReadAt(buf, byteOff); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: read at word %d of file %s: %v", errs.ErrIO, word, r.path, err)
	}

	return buf, nil
}

// ReadInt32 reads the integer word at the given word address, narrowing from
// the file's word width.
func (r *Reader) ReadInt32(word int64) (int32, error) {
	buf, err := r.readWords(word, 1)
	if err != nil {
		return 0, err
	}

	if r.wordSize == 8 {
		return int32(int64(r.engine.Uint64(buf))), nil //nolint:gosec
	}

	return int32(r.engine.Uint32(buf)), nil //nolint:gosec
}

// ReadFloat32 reads the floating word at the given word address, narrowing
// from float64 when the file is double precision.
func (r *Reader) ReadFloat32(word int64) (float32, error) {
	buf, err := r.readWords(word, 1)
	if err != nil {
		return 0, err
	}

	if r.wordSize == 8 {
		return float32(math.Float64frombits(r.engine.Uint64(buf))), nil
	}

	return math.Float32frombits(r.engine.Uint32(buf)), nil
}

// ReadFloat64 reads the floating word at the given word address, widening from
// float32 when the file is single precision.
func (r *Reader) ReadFloat64(word int64) (float64, error) {
	buf, err := r.readWords(word, 1)
	if err != nil {
		return 0, err
	}

	if r.wordSize == 8 {
		return math.Float64frombits(r.engine.Uint64(buf)), nil
	}

	return float64(math.Float32frombits(r.engine.Uint32(buf))), nil
}

// ReadInt32Array reads count consecutive integer words starting at word.
func (r *Reader) ReadInt32Array(word int64, count int) ([]int32, error) {
	if count <= 0 {
		return nil, nil
	}

	buf, err := r.readWords(word, count)
	if err != nil {
		return nil, err
	}

	out := make([]int32, count)
	if r.wordSize == 8 {
		for i := range out {
			out[i] = int32(int64(r.engine.Uint64(buf[i*8:]))) //nolint:gosec
		}
	} else {
		for i := range out {
			out[i] = int32(r.engine.Uint32(buf[i*4:])) //nolint:gosec
		}
	}

	return out, nil
}

// ReadFloat64Array reads count consecutive floating words starting at word.
func (r *Reader) ReadFloat64Array(word int64, count int) ([]float64, error) {
	if count <= 0 {
		return nil, nil
	}

	buf, err := r.readWords(word, count)
	if err != nil {
		return nil, err
	}

	out := make([]float64, count)
	if r.wordSize == 8 {
		for i := range out {
			out[i] = math.Float64frombits(r.engine.Uint64(buf[i*8:]))
		}
	} else {
		for i := range out {
			out[i] = float64(math.Float32frombits(r.engine.Uint32(buf[i*4:])))
		}
	}

	return out, nil
}

// detectFormat probes the version word under the four precision/endianness
// combinations and returns the first one whose value lands in the accepted
// version interval. Probe order follows the solver's own convention: single
// before double, little before big.
func detectFormat(f *os.File, path string) (format.Precision, format.ByteOrder, error) {
	var probe [8]byte

	// Single precision: version at byte 56.
	if _, err := f.ReadAt(probe[:4], versionWordAddr*4); err == nil {
		le := endian.GetLittleEndianEngine()
		be := endian.GetBigEndianEngine()

		if validVersion(float64(math.Float32frombits(le.Uint32(probe[:4])))) {
			return format.PrecisionSingle, format.LittleEndian, nil
		}
		if validVersion(float64(math.Float32frombits(be.Uint32(probe[:4])))) {
			return format.PrecisionSingle, format.BigEndian, nil
		}
	}

	// Double precision: version at byte 112.
	if _, err := f.ReadAt(probe[:8], versionWordAddr*8); err == nil {
		le := endian.GetLittleEndianEngine()
		be := endian.GetBigEndianEngine()

		if validVersion(math.Float64frombits(le.Uint64(probe[:8]))) {
			return format.PrecisionDouble, format.LittleEndian, nil
		}
		if validVersion(math.Float64frombits(be.Uint64(probe[:8]))) {
			return format.PrecisionDouble, format.BigEndian, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: %s: version word matches no precision/endianness combination", errs.ErrInvalidFormat, path)
}

func validVersion(v float64) bool {
	return v >= versionMin && v <= versionMax
}
