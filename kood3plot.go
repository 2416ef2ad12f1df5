// Package kood3plot decodes crash-solver state-dump families and re-encodes
// them into a self-describing, compressed hierarchical archive.
//
// The binary decoder auto-detects precision and endianness, parses the
// control header and geometry of the base file, and streams time states from
// the base file and its numbered continuation files as one logical sequence.
// The compression pipeline quantizes nodal vector quantities per axis,
// delta-encodes quantized frames against their predecessor, and writes the
// archive with chunking and deflate for a 50-85% size reduction at
// engineering-meaningful precision.
//
// # Basic Usage
//
// Decoding a family and exporting it:
//
//	import "github.com/kood3plot/kood3plot"
//
//	dec, err := kood3plot.Open("run/d3plot")
//	if err != nil {
//	    return err
//	}
//	defer dec.Close()
//
//	if err := kood3plot.Export(dec, "run.kda", format.PresetBalanced); err != nil {
//	    return err
//	}
//
// Reading an archive back:
//
//	r, err := kood3plot.OpenArchive("run.kda")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	mesh, _ := r.Mesh()
//	state, _ := r.State(0)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the d3plot and
// archive packages, simplifying the most common use cases. For fine-grained
// control (parallel state reading, custom chunk codecs, per-quantity
// quantizers), use those packages directly.
package kood3plot

import (
	"github.com/kood3plot/kood3plot/archive"
	"github.com/kood3plot/kood3plot/d3plot"
	"github.com/kood3plot/kood3plot/format"
)

// Open opens a state-dump family rooted at basePath.
func Open(basePath string, opts ...d3plot.DecoderOption) (*d3plot.Decoder, error) {
	return d3plot.Open(basePath, opts...)
}

// OpenArchive opens an archive file for reading.
func OpenArchive(path string) (*archive.Reader, error) {
	return archive.OpenReader(path)
}

// Export decodes the family's mesh and state stream and writes them to an
// archive at outPath under the given compression preset. States are streamed
// one at a time; the full run is never materialized.
func Export(dec *d3plot.Decoder, outPath string, preset format.Preset) error {
	opts, err := archive.OptionsForPreset(preset)
	if err != nil {
		return err
	}

	return ExportWithOptions(dec, outPath, opts)
}

// ExportWithOptions is Export with explicit compression options.
func ExportWithOptions(dec *d3plot.Decoder, outPath string, opts archive.CompressionOptions) error {
	mesh, err := dec.Mesh()
	if err != nil {
		return err
	}

	w, err := archive.NewWriter(outPath, opts)
	if err != nil {
		return err
	}

	if err := w.WriteMesh(mesh); err != nil {
		w.Close()
		return err
	}

	for state, err := range dec.States() {
		if err != nil {
			w.Close()
			return err
		}

		if err := w.WriteState(&state); err != nil {
			w.Close()
			return err
		}
	}

	return w.Close()
}
