package archive

import (
	"fmt"

	"github.com/kood3plot/kood3plot/format"
	"github.com/kood3plot/kood3plot/internal/options"
)

// DefaultChunkRows is the first-axis chunk size applied to multi-row
// datasets: min(N, DefaultChunkRows) rows per chunk.
const DefaultChunkRows = 10000

// Default precision targets for the quantized mode.
const (
	DefaultDisplacementPrecision = 0.01   // mm
	DefaultStressThreshold       = 0.1    // MPa noise floor
	DefaultStrainPrecision       = 0.0001 // absolute
)

// CompressionOptions selects the archive's compression mode.
//
// The three mode flags are recorded in the archive's /states/_metadata group
// so readers reconstruct frames without out-of-band knowledge.
type CompressionOptions struct {
	// UseQuantization stores nodal vector quantities as 16-bit codes instead
	// of raw float64.
	UseQuantization bool

	// UseDeltaCompression stores every quantized frame after the first as
	// int16 differences against the previous frame. Only effective together
	// with UseQuantization.
	UseDeltaCompression bool

	// GzipLevel is the deflate level applied to dataset chunks (0-9).
	// Level 0 disables deflate and stores chunks raw.
	GzipLevel int

	// DisplacementPrecision is the linear quantization precision target for
	// displacement values.
	DisplacementPrecision float64

	// StressThreshold is the logarithmic quantizer's noise floor for
	// equivalent stress.
	StressThreshold float64

	// StrainPrecision is the linear quantization precision target for strain.
	StrainPrecision float64
}

// NoCompression returns the raw mode: no quantization, no delta, no deflate.
func NoCompression() CompressionOptions {
	return CompressionOptions{
		DisplacementPrecision: DefaultDisplacementPrecision,
		StressThreshold:       DefaultStressThreshold,
		StrainPrecision:       DefaultStrainPrecision,
	}
}

// Lossless returns the raw-but-deflated mode.
func Lossless() CompressionOptions {
	opts := NoCompression()
	opts.GzipLevel = 6

	return opts
}

// Balanced returns the default mode: quantization, delta frames and deflate
// level 6.
func Balanced() CompressionOptions {
	opts := NoCompression()
	opts.UseQuantization = true
	opts.UseDeltaCompression = true
	opts.GzipLevel = 6

	return opts
}

// Maximum returns the smallest-output mode: Balanced with deflate level 9.
func Maximum() CompressionOptions {
	opts := Balanced()
	opts.GzipLevel = 9

	return opts
}

// OptionsForPreset maps a named preset to its options.
func OptionsForPreset(p format.Preset) (CompressionOptions, error) {
	switch p {
	case format.PresetNone:
		return NoCompression(), nil
	case format.PresetLossless:
		return Lossless(), nil
	case format.PresetBalanced:
		return Balanced(), nil
	case format.PresetMaximum:
		return Maximum(), nil
	default:
		return CompressionOptions{}, fmt.Errorf("invalid compression preset: %s", p)
	}
}

// WriterOption configures a Writer beyond its CompressionOptions.
type WriterOption = options.Option[*Writer]

// WithChunkCompression selects the chunk codec. The default is deflate, which
// is what the archive's gzip_level metadata describes; alternative codecs are
// for callers that control both the writer and every reader.
func WithChunkCompression(ct format.CompressionType) WriterOption {
	return options.NoError(func(w *Writer) {
		w.chunkComp = ct
	})
}

// WithChunkRows overrides the first-axis chunk size.
func WithChunkRows(rows int) WriterOption {
	return options.New(func(w *Writer) error {
		if rows <= 0 {
			return fmt.Errorf("archive: chunk rows must be positive, got %d", rows)
		}
		w.chunkRows = rows

		return nil
	})
}
