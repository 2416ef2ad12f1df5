// Package errs defines the sentinel errors shared by all kood3plot packages.
//
// Call sites wrap these with fmt.Errorf("%w: ...") to attach component and
// offset context while keeping errors.Is matching intact:
//
//	return fmt.Errorf("%w: state decoder: short read at word %d of file %s",
//		errs.ErrIO, word, name)
package errs

import "errors"

var (
	// ErrFileNotFound indicates the base file or a continuation file could not be opened.
	ErrFileNotFound = errors.New("file not found")

	// ErrIO indicates a read or seek failure on an open file.
	ErrIO = errors.New("i/o error")

	// ErrInvalidFormat indicates the format probe failed: no precision/endianness
	// combination yields a solver version in the accepted range.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrUnsupportedVersion indicates the version word is in range but names a
	// known-incompatible code path.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrCorruptedData indicates a size derivation inconsistent with the file
	// length, a section overshoot, or a failed archive checksum.
	ErrCorruptedData = errors.New("corrupted data")

	// ErrNotCalibrated indicates a quantizer was used before Calibrate.
	ErrNotCalibrated = errors.New("quantizer not calibrated")

	// ErrOutOfRange indicates a time-step index beyond the archive's num_timesteps.
	ErrOutOfRange = errors.New("index out of range")

	// ErrInvalidMagicNumber indicates an archive file without the expected magic.
	ErrInvalidMagicNumber = errors.New("invalid magic number")

	// ErrInvalidHeaderSize indicates an archive header or trailer shorter than
	// its fixed size.
	ErrInvalidHeaderSize = errors.New("invalid header size")

	// ErrWriterClosed indicates a write against an archive writer that has been
	// closed. A failed writer that is still open returns its first error instead.
	ErrWriterClosed = errors.New("archive writer closed")
)
