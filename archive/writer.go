// Package archive implements the self-describing hierarchical output format:
// a /mesh group with the geometry tables and a /states group with one
// timestep group per decoded state, all chunked and codec-compressed, with a
// directory and checksummed trailer at the tail.
//
// The dataset names, shapes, dtypes and attribute names written here are the
// format's compatibility contract; see the Writer and Reader method
// documentation for the exact layout.
package archive

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/kood3plot/kood3plot/compress"
	"github.com/kood3plot/kood3plot/d3plot"
	"github.com/kood3plot/kood3plot/encoding"
	"github.com/kood3plot/kood3plot/endian"
	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/format"
	"github.com/kood3plot/kood3plot/internal/options"
	"github.com/kood3plot/kood3plot/internal/pool"
	"github.com/kood3plot/kood3plot/quant"
	"github.com/kood3plot/kood3plot/section"
)

// Writer emits one archive file. It owns the output file handle exclusively
// and is not safe for concurrent use; all writes are serialized by the
// caller.
//
// Lifecycle: NewWriter, WriteMesh once, WriteState per time step in order,
// Close. Any write failure poisons the writer; Close then deletes the partial
// output and returns the first error.
type Writer struct {
	f    *os.File
	path string

	engine    endian.EndianEngine
	opts      CompressionOptions
	chunkComp format.CompressionType
	chunkRows int

	codec   compress.Codec
	effComp format.CompressionType // compression recorded per dataset

	dir      section.Directory
	groupIdx map[string]int
	offset   uint64

	dispQuantizer *quant.LinearVector3Quantizer
	velQuantizer  *quant.LinearVector3Quantizer
	dispDelta     *encoding.FrameDeltaEncoder
	velDelta      *encoding.FrameDeltaEncoder
	calibrated    bool

	numTimesteps int

	closed   bool
	firstErr error
}

// NewWriter creates the archive file (truncating any existing file at path)
// and writes the container header.
func NewWriter(path string, opts CompressionOptions, wopts ...WriterOption) (*Writer, error) {
	w := &Writer{
		path:          path,
		opts:          opts,
		chunkComp:     format.CompressionDeflate,
		chunkRows:     DefaultChunkRows,
		groupIdx:      make(map[string]int),
		dispQuantizer: quant.NewLinearVector3Quantizer(quant.Bits16),
		velQuantizer:  quant.NewLinearVector3Quantizer(quant.Bits16),
		dispDelta:     encoding.NewFrameDeltaEncoder(),
		velDelta:      encoding.NewFrameDeltaEncoder(),
	}

	if err := options.Apply(w, wopts...); err != nil {
		return nil, err
	}

	codec, err := compress.CreateCodec(w.chunkComp, opts.GzipLevel)
	if err != nil {
		return nil, err
	}
	w.codec = codec

	w.effComp = w.chunkComp
	if w.chunkComp == format.CompressionDeflate && opts.GzipLevel == 0 {
		w.effComp = format.CompressionNone
	}

	header := section.NewFileHeader()
	w.engine = header.Engine()

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", errs.ErrIO, path, err)
	}
	w.f = f

	if _, err := f.Write(header.Bytes()); err != nil {
		f.Close()
		os.Remove(path)

		return nil, fmt.Errorf("%w: write header of %s: %v", errs.ErrIO, path, err)
	}
	w.offset = section.HeaderSize

	w.group("/", section.StringAttr("format", section.FormatName))
	w.group("/states")

	return w, nil
}

// Options returns the writer's compression options.
func (w *Writer) Options() CompressionOptions { return w.opts }

// group returns the directory index of the named group, creating it with the
// given attributes when first seen.
func (w *Writer) group(path string, attrs ...section.Attribute) int {
	if idx, ok := w.groupIdx[path]; ok {
		w.dir.Groups[idx].Attrs = append(w.dir.Groups[idx].Attrs, attrs...)
		return idx
	}

	w.dir.Groups = append(w.dir.Groups, section.Group{Path: path, Attrs: attrs})
	idx := len(w.dir.Groups) - 1
	w.groupIdx[path] = idx

	return idx
}

// setAttr sets or replaces one attribute on a group.
func (w *Writer) setAttr(groupPath string, attr section.Attribute) {
	idx := w.group(groupPath)
	g := &w.dir.Groups[idx]

	for i := range g.Attrs {
		if g.Attrs[i].Name == attr.Name {
			g.Attrs[i] = attr
			return
		}
	}

	g.Attrs = append(g.Attrs, attr)
}

// fail records the first error and poisons the writer.
func (w *Writer) fail(err error) error {
	if w.firstErr == nil {
		w.firstErr = err
	}

	return err
}

func (w *Writer) usable() error {
	if w.closed {
		return errs.ErrWriterClosed
	}
	if w.firstErr != nil {
		return w.firstErr
	}

	return nil
}

// writeDataset chunks raw bytes along the first axis, compresses each chunk
// and appends a dataset entry to the directory. The checksum covers the raw
// uncompressed bytes.
func (w *Writer) writeDataset(path string, dtype format.DataType, dims []uint64, raw []byte) error {
	if err := w.usable(); err != nil {
		return err
	}

	ds := section.Dataset{
		Path:        path,
		Dtype:       dtype,
		Dims:        dims,
		Compression: w.effComp,
		Checksum:    xxhash.Sum64(raw),
	}

	rows := uint64(0)
	if len(dims) > 0 {
		rows = dims[0]
	}

	chunkRows := uint64(w.chunkRows) //nolint:gosec
	if rows < chunkRows {
		chunkRows = rows
	}
	ds.ChunkRows = chunkRows

	if rows > 0 {
		rowBytes := uint64(len(raw)) / rows
		for start := uint64(0); start < rows; start += chunkRows {
			end := start + chunkRows
			if end > rows {
				end = rows
			}
			rawChunk := raw[start*rowBytes : end*rowBytes]

			stored, err := w.codec.Compress(rawChunk)
			if err != nil {
				return w.fail(fmt.Errorf("archive writer: compress chunk of %s: %w", path, err))
			}

			if _, err := w.f.Write(stored); err != nil {
				return w.fail(fmt.Errorf("%w: archive writer: write chunk of %s: %v", errs.ErrIO, path, err))
			}

			ds.Chunks = append(ds.Chunks, section.Chunk{
				Offset:     w.offset,
				StoredSize: uint64(len(stored)),
				RawSize:    uint64(len(rawChunk)),
			})
			w.offset += uint64(len(stored))
		}
	}

	w.dir.Datasets = append(w.dir.Datasets, ds)

	return nil
}

// WriteMesh writes the /mesh group: node coordinates plus connectivity and
// part-id tables per element kind. Dataset names, shapes and dtypes are the
// format contract:
//
//	nodes              float64 [numNodes, 3]
//	solid_connectivity int32   [numSolids, 8]   solid_part_ids int32 [numSolids]
//	shell_connectivity int32   [numShells, 4]   shell_part_ids int32 [numShells]
//	beam_connectivity  int32   [numBeams, 2]    beam_part_ids  int32 [numBeams]
func (w *Writer) WriteMesh(mesh *d3plot.Mesh) error {
	if err := w.usable(); err != nil {
		return err
	}

	w.group("/mesh",
		section.IntAttr("num_nodes", int64(len(mesh.Nodes))),
		section.IntAttr("num_solids", int64(len(mesh.Solids))),
		section.IntAttr("num_shells", int64(len(mesh.Shells))),
		section.IntAttr("num_beams", int64(len(mesh.Beams))),
	)

	if len(mesh.Nodes) > 0 {
		coords, release := pool.GetFloat64Slice(len(mesh.Nodes) * 3)
		defer release()

		for i, n := range mesh.Nodes {
			coords[i*3] = n.X
			coords[i*3+1] = n.Y
			coords[i*3+2] = n.Z
		}

		dims := []uint64{uint64(len(mesh.Nodes)), 3}
		if err := w.writeFloat64Dataset("/mesh/nodes", dims, coords); err != nil {
			return err
		}
	}

	if err := w.writeElementTables("solid", mesh.Solids, 8); err != nil {
		return err
	}
	if err := w.writeElementTables("shell", mesh.Shells, 4); err != nil {
		return err
	}

	return w.writeElementTables("beam", mesh.Beams, 2)
}

// writeElementTables writes one element kind's connectivity and part-id
// datasets. Empty kinds write nothing; their zero counts live in the /mesh
// attributes.
func (w *Writer) writeElementTables(kind string, elems []d3plot.Element, arity int) error {
	if len(elems) == 0 {
		return nil
	}

	connectivity := make([]int32, len(elems)*arity)
	partIDs := make([]int32, len(elems))
	for i := range elems {
		copy(connectivity[i*arity:(i+1)*arity], elems[i].Nodes)
		partIDs[i] = elems[i].PartID
	}

	connDims := []uint64{uint64(len(elems)), uint64(arity)} //nolint:gosec
	if err := w.writeInt32Dataset("/mesh/"+kind+"_connectivity", connDims, connectivity); err != nil {
		return err
	}

	return w.writeInt32Dataset("/mesh/"+kind+"_part_ids", []uint64{uint64(len(elems))}, partIDs)
}

// calibrate learns quantizer bounds from the first state's displacement and
// velocity arrays. Calibration is write-once; every later state reuses it.
func (w *Writer) calibrate(state *d3plot.State) error {
	if len(state.NodeDisplacements) > 0 {
		if err := w.dispQuantizer.Calibrate(state.NodeDisplacements); err != nil {
			return w.fail(fmt.Errorf("archive writer: %w", err))
		}
	}
	if len(state.NodeVelocities) > 0 {
		if err := w.velQuantizer.Calibrate(state.NodeVelocities); err != nil {
			return w.fail(fmt.Errorf("archive writer: %w", err))
		}
	}

	w.calibrated = true

	return nil
}

// WriteState appends one time step. Steps are indexed by write order; the
// caller must deliver them in wall-clock order.
//
// Each step becomes a /states/timestep_<k> group with attributes time,
// timestep_index and is_delta_compressed, and exactly one displacement and
// one velocity dataset per quantity chosen by mode and index:
//
//	displacement            float64 [N, 3]  raw mode
//	displacement_quantized  uint16  [N, 3]  quantized, first step
//	displacement_delta      int16   [N, 3]  quantized+delta, later steps
//
// with velocity named analogously.
func (w *Writer) WriteState(state *d3plot.State) error {
	if err := w.usable(); err != nil {
		return err
	}

	idx := w.numTimesteps

	if !w.calibrated && w.opts.UseQuantization {
		if err := w.calibrate(state); err != nil {
			return err
		}
	}

	isDelta := 0
	if idx > 0 && w.opts.UseQuantization && w.opts.UseDeltaCompression {
		isDelta = 1
	}

	tsPath := fmt.Sprintf("/states/timestep_%d", idx)
	w.group(tsPath,
		section.FloatAttr("time", state.Time),
		section.IntAttr("timestep_index", int64(idx)),
		section.IntAttr("is_delta_compressed", int64(isDelta)),
	)

	if err := w.writeVectorQuantity(tsPath, "displacement", w.dispQuantizer, w.dispDelta, state.NodeDisplacements); err != nil {
		return err
	}
	if err := w.writeVectorQuantity(tsPath, "velocity", w.velQuantizer, w.velDelta, state.NodeVelocities); err != nil {
		return err
	}

	w.numTimesteps++
	w.setAttr("/states", section.IntAttr("num_timesteps", int64(w.numTimesteps)))

	return nil
}

// writeVectorQuantity writes one nodal vector quantity in the mode implied by
// the options and the delta encoder's history.
func (w *Writer) writeVectorQuantity(tsPath, name string, quantizer *quant.LinearVector3Quantizer, delta *encoding.FrameDeltaEncoder, values []float64) error {
	if len(values) == 0 {
		return nil
	}

	dims := []uint64{uint64(len(values) / 3), 3}

	if !w.opts.UseQuantization {
		return w.writeFloat64Dataset(tsPath+"/"+name, dims, values)
	}

	codes, release := pool.GetUint16Slice(len(values))
	defer release()

	if err := quantizer.QuantizeSlice(values, codes); err != nil {
		return w.fail(fmt.Errorf("archive writer: quantize %s: %w", name, err))
	}

	if w.opts.UseDeltaCompression && delta.HasPrevious() {
		deltas, err := delta.EncodeDelta(codes)
		if err != nil {
			return w.fail(fmt.Errorf("archive writer: delta encode %s: %w", name, err))
		}

		return w.writeInt16Dataset(tsPath+"/"+name+"_delta", dims, deltas)
	}

	delta.EncodeFirst(codes)

	return w.writeUint16Dataset(tsPath+"/"+name+"_quantized", dims, codes)
}

// writeMetadata emits the /states/_metadata group: the three compression-mode
// flags and the calibration tables read back by the archive reader.
func (w *Writer) writeMetadata() error {
	boolAttr := func(b bool) int64 {
		if b {
			return 1
		}

		return 0
	}

	w.group("/states/_metadata",
		section.IntAttr("use_quantization", boolAttr(w.opts.UseQuantization)),
		section.IntAttr("use_delta_compression", boolAttr(w.opts.UseDeltaCompression)),
		section.IntAttr("gzip_level", int64(w.opts.GzipLevel)),
	)

	dispMin, dispMax := w.dispQuantizer.Min(), w.dispQuantizer.Max()
	velMin, velMax := w.velQuantizer.Min(), w.velQuantizer.Max()

	for _, table := range []struct {
		name string
		vals [3]float64
	}{
		{"disp_min", dispMin},
		{"disp_max", dispMax},
		{"vel_min", velMin},
		{"vel_max", velMax},
	} {
		if err := w.writeFloat64Dataset("/states/_metadata/"+table.name, []uint64{3}, table.vals[:]); err != nil {
			return err
		}
	}

	return nil
}

// Close finalizes the archive: metadata group, directory and trailer. A
// poisoned writer instead removes the partial output file and returns the
// first error. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	// The metadata datasets go through writeDataset, which refuses a closed
	// writer, so they are written before the writer is marked closed.
	var err error
	if w.firstErr == nil {
		err = w.writeMetadata()
	}
	w.closed = true

	if w.firstErr != nil {
		w.f.Close()
		os.Remove(w.path)

		return w.firstErr
	}

	if err != nil {
		w.f.Close()
		os.Remove(w.path)

		return err
	}

	w.setAttr("/states", section.IntAttr("num_timesteps", int64(w.numTimesteps)))

	dirBytes := w.dir.AppendTo(nil, w.engine)
	trailer := section.Trailer{
		DirOffset:   w.offset,
		DirSize:     uint64(len(dirBytes)),
		DirChecksum: xxhash.Sum64(dirBytes),
	}

	if _, err := w.f.Write(dirBytes); err != nil {
		w.f.Close()
		os.Remove(w.path)

		return fmt.Errorf("%w: archive writer: write directory of %s: %v", errs.ErrIO, w.path, err)
	}

	if _, err := w.f.Write(trailer.Bytes(w.engine)); err != nil {
		w.f.Close()
		os.Remove(w.path)

		return fmt.Errorf("%w: archive writer: write trailer of %s: %v", errs.ErrIO, w.path, err)
	}

	if err := w.f.Close(); err != nil {
		os.Remove(w.path)

		return fmt.Errorf("%w: archive writer: close %s: %v", errs.ErrIO, w.path, err)
	}

	return nil
}

// Typed dataset writers: stage raw bytes through a pooled buffer in the
// archive's byte order, then chunk and compress.

func (w *Writer) writeFloat64Dataset(path string, dims []uint64, values []float64) error {
	bb := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(bb)

	buf := bb.B[:0]
	for _, v := range values {
		buf = w.engine.AppendUint64(buf, floatBits(v))
	}
	bb.B = buf

	return w.writeDataset(path, format.TypeFloat64, dims, buf)
}

func (w *Writer) writeInt32Dataset(path string, dims []uint64, values []int32) error {
	bb := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(bb)

	buf := bb.B[:0]
	for _, v := range values {
		buf = w.engine.AppendUint32(buf, uint32(v)) //nolint:gosec
	}
	bb.B = buf

	return w.writeDataset(path, format.TypeInt32, dims, buf)
}

func (w *Writer) writeUint16Dataset(path string, dims []uint64, values []uint16) error {
	bb := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(bb)

	buf := bb.B[:0]
	for _, v := range values {
		buf = w.engine.AppendUint16(buf, v)
	}
	bb.B = buf

	return w.writeDataset(path, format.TypeUint16, dims, buf)
}

func (w *Writer) writeInt16Dataset(path string, dims []uint64, values []int16) error {
	bb := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(bb)

	buf := bb.B[:0]
	for _, v := range values {
		buf = w.engine.AppendUint16(buf, uint16(v)) //nolint:gosec
	}
	bb.B = buf

	return w.writeDataset(path, format.TypeInt16, dims, buf)
}
