package archive

import (
	"fmt"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/kood3plot/kood3plot/compress"
	"github.com/kood3plot/kood3plot/d3plot"
	"github.com/kood3plot/kood3plot/encoding"
	"github.com/kood3plot/kood3plot/endian"
	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/quant"
	"github.com/kood3plot/kood3plot/section"
)

func floatBits(v float64) uint64     { return math.Float64bits(v) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// FileInfo summarizes an archive for inspection tooling.
type FileInfo struct {
	Format           string
	NumNodes         int
	NumSolids        int
	NumShells        int
	NumBeams         int
	NumTimesteps     int
	FileSizeBytes    int64
	UncompressedSize int64
	CompressionRatio float64
}

// Reader reads one archive file. It loads the directory and the compression
// metadata once at open; dataset payloads are read on demand.
//
// Frame access in delta mode replays from the stored full frame at step 0;
// the reader caches the previously reconstructed quantized frames so
// sequential iteration costs O(1) per step.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	f    *os.File
	path string
	size int64

	header section.FileHeader
	engine endian.EndianEngine
	dir    section.Directory

	groupIdx   map[string]int
	datasetIdx map[string]int

	useQuantization bool
	useDelta        bool
	gzipLevel       int
	numTimesteps    int

	dispQuantizer *quant.LinearVector3Quantizer
	velQuantizer  *quant.LinearVector3Quantizer

	lastTimestep int
	cachedDisp   []uint16
	cachedVel    []uint16
}

// OpenReader opens an archive, verifies the directory checksum and loads the
// compression metadata.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, path, err)
	}

	r := &Reader{
		f:            f,
		path:         path,
		groupIdx:     make(map[string]int),
		datasetIdx:   make(map[string]int),
		lastTimestep: -1,
	}

	if err := r.load(); err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

// Close releases the archive file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}

	err := r.f.Close()
	r.f = nil

	return err
}

func (r *Reader) load() error {
	info, err := r.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", errs.ErrIO, r.path, err)
	}
	r.size = info.Size()

	if r.size < section.HeaderSize+section.TrailerSize {
		return fmt.Errorf("%w: archive reader: %s shorter than header and trailer", errs.ErrCorruptedData, r.path)
	}

	headerBytes := make([]byte, section.HeaderSize)
	if _, err := r.f.ReadAt(headerBytes, 0); err != nil {
		return fmt.Errorf("%w: archive reader: read header of %s: %v", errs.ErrIO, r.path, err)
	}
	if err := r.header.Parse(headerBytes); err != nil {
		return err
	}
	r.engine = r.header.Engine()

	trailerBytes := make([]byte, section.TrailerSize)
	if _, err := r.f.ReadAt(trailerBytes, r.size-section.TrailerSize); err != nil {
		return fmt.Errorf("%w: archive reader: read trailer of %s: %v", errs.ErrIO, r.path, err)
	}

	var trailer section.Trailer
	if err := trailer.Parse(trailerBytes, r.engine); err != nil {
		return err
	}

	if trailer.DirOffset+trailer.DirSize > uint64(r.size) { //nolint:gosec
		return fmt.Errorf("%w: archive reader: directory location outside %s", errs.ErrCorruptedData, r.path)
	}

	dirBytes := make([]byte, trailer.DirSize)
	if _, err := r.f.ReadAt(dirBytes, int64(trailer.DirOffset)); err != nil { //nolint:gosec
		return fmt.Errorf("%w: archive reader: read directory of %s: %v", errs.ErrIO, r.path, err)
	}

	if xxhash.Sum64(dirBytes) != trailer.DirChecksum {
		return fmt.Errorf("%w: archive reader: directory checksum mismatch in %s", errs.ErrCorruptedData, r.path)
	}

	r.dir, err = section.ParseDirectory(dirBytes, r.engine)
	if err != nil {
		return err
	}

	for i := range r.dir.Groups {
		r.groupIdx[r.dir.Groups[i].Path] = i
	}
	for i := range r.dir.Datasets {
		r.datasetIdx[r.dir.Datasets[i].Path] = i
	}

	return r.loadCompressionMetadata()
}

// loadCompressionMetadata reads /states and /states/_metadata once so every
// State call can pick its reconstruction path without touching the directory
// again.
func (r *Reader) loadCompressionMetadata() error {
	if g, ok := r.lookupGroup("/states"); ok {
		if a, ok := g.Attr("num_timesteps"); ok {
			r.numTimesteps = int(a.Int)
		}
	}

	meta, ok := r.lookupGroup("/states/_metadata")
	if !ok {
		// An archive without states carries no metadata group.
		return nil
	}

	if a, ok := meta.Attr("use_quantization"); ok {
		r.useQuantization = a.Int != 0
	}
	if a, ok := meta.Attr("use_delta_compression"); ok {
		r.useDelta = a.Int != 0
	}
	if a, ok := meta.Attr("gzip_level"); ok {
		r.gzipLevel = int(a.Int)
	}

	if !r.useQuantization {
		return nil
	}

	bounds := map[string][3]float64{}
	for _, name := range []string{"disp_min", "disp_max", "vel_min", "vel_max"} {
		vals, _, err := r.readFloat64Dataset("/states/_metadata/" + name)
		if err != nil {
			return err
		}
		if len(vals) != 3 {
			return fmt.Errorf("%w: archive reader: calibration table %s has %d entries", errs.ErrCorruptedData, name, len(vals))
		}
		bounds[name] = [3]float64{vals[0], vals[1], vals[2]}
	}

	r.dispQuantizer = quant.NewLinearVector3Quantizer(quant.Bits16)
	r.dispQuantizer.SetBounds(bounds["disp_min"], bounds["disp_max"])
	r.velQuantizer = quant.NewLinearVector3Quantizer(quant.Bits16)
	r.velQuantizer.SetBounds(bounds["vel_min"], bounds["vel_max"])

	return nil
}

func (r *Reader) lookupGroup(path string) (*section.Group, bool) {
	idx, ok := r.groupIdx[path]
	if !ok {
		return nil, false
	}

	return &r.dir.Groups[idx], true
}

func (r *Reader) lookupDataset(path string) (*section.Dataset, bool) {
	idx, ok := r.datasetIdx[path]
	if !ok {
		return nil, false
	}

	return &r.dir.Datasets[idx], true
}

// HasDataset reports whether the archive contains the named dataset.
func (r *Reader) HasDataset(path string) bool {
	_, ok := r.datasetIdx[path]
	return ok
}

// readDatasetRaw reads, decompresses and checksums a dataset's raw bytes.
// The codec level only affects compression; any nonzero level yields a
// working decompressor for deflate datasets.
func (r *Reader) readDatasetRaw(ds *section.Dataset) ([]byte, error) {
	codec, err := compress.CreateCodec(ds.Compression, 6)
	if err != nil {
		return nil, fmt.Errorf("%w: archive reader: dataset %s: %v", errs.ErrCorruptedData, ds.Path, err)
	}

	raw := make([]byte, 0, ds.RawSize())
	for _, chunk := range ds.Chunks {
		stored := make([]byte, chunk.StoredSize)
		if _, err := r.f.ReadAt(stored, int64(chunk.Offset)); err != nil { //nolint:gosec
			return nil, fmt.Errorf("%w: archive reader: read chunk of %s: %v", errs.ErrIO, ds.Path, err)
		}

		plain, err := compress.DecompressChunk(codec, stored, int(chunk.RawSize)) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("%w: archive reader: decompress chunk of %s: %v", errs.ErrCorruptedData, ds.Path, err)
		}
		if uint64(len(plain)) != chunk.RawSize {
			return nil, fmt.Errorf("%w: archive reader: chunk of %s inflated to %d bytes, want %d",
				errs.ErrCorruptedData, ds.Path, len(plain), chunk.RawSize)
		}

		raw = append(raw, plain...)
	}

	if uint64(len(raw)) != ds.RawSize() {
		return nil, fmt.Errorf("%w: archive reader: dataset %s has %d raw bytes, want %d",
			errs.ErrCorruptedData, ds.Path, len(raw), ds.RawSize())
	}
	if xxhash.Sum64(raw) != ds.Checksum {
		return nil, fmt.Errorf("%w: archive reader: dataset %s checksum mismatch", errs.ErrCorruptedData, ds.Path)
	}

	return raw, nil
}

func (r *Reader) requireDataset(path string) (*section.Dataset, error) {
	ds, ok := r.lookupDataset(path)
	if !ok {
		return nil, fmt.Errorf("%w: archive reader: missing dataset %s", errs.ErrCorruptedData, path)
	}

	return ds, nil
}

func (r *Reader) readFloat64Dataset(path string) ([]float64, []uint64, error) {
	ds, err := r.requireDataset(path)
	if err != nil {
		return nil, nil, err
	}

	raw, err := r.readDatasetRaw(ds)
	if err != nil {
		return nil, nil, err
	}

	out := make([]float64, ds.NumElements())
	for i := range out {
		out[i] = floatFromBits(r.engine.Uint64(raw[i*8:]))
	}

	return out, ds.Dims, nil
}

func (r *Reader) readInt32Dataset(path string) ([]int32, []uint64, error) {
	ds, err := r.requireDataset(path)
	if err != nil {
		return nil, nil, err
	}

	raw, err := r.readDatasetRaw(ds)
	if err != nil {
		return nil, nil, err
	}

	out := make([]int32, ds.NumElements())
	for i := range out {
		out[i] = int32(r.engine.Uint32(raw[i*4:])) //nolint:gosec
	}

	return out, ds.Dims, nil
}

func (r *Reader) readUint16Dataset(path string) ([]uint16, error) {
	ds, err := r.requireDataset(path)
	if err != nil {
		return nil, err
	}

	raw, err := r.readDatasetRaw(ds)
	if err != nil {
		return nil, err
	}

	out := make([]uint16, ds.NumElements())
	for i := range out {
		out[i] = r.engine.Uint16(raw[i*2:])
	}

	return out, nil
}

func (r *Reader) readInt16Dataset(path string) ([]int16, error) {
	ds, err := r.requireDataset(path)
	if err != nil {
		return nil, err
	}

	raw, err := r.readDatasetRaw(ds)
	if err != nil {
		return nil, err
	}

	out := make([]int16, ds.NumElements())
	for i := range out {
		out[i] = int16(r.engine.Uint16(raw[i*2:])) //nolint:gosec
	}

	return out, nil
}

// Mesh reconstructs the geometry from the /mesh group. Node and element IDs
// are sequential; the archive stores part ids but not the arbitrary-ID remap.
func (r *Reader) Mesh() (*d3plot.Mesh, error) {
	mesh := &d3plot.Mesh{}

	if r.HasDataset("/mesh/nodes") {
		coords, dims, err := r.readFloat64Dataset("/mesh/nodes")
		if err != nil {
			return nil, err
		}
		if len(dims) != 2 || dims[1] != 3 {
			return nil, fmt.Errorf("%w: archive reader: /mesh/nodes has unexpected shape", errs.ErrCorruptedData)
		}

		mesh.Nodes = make([]d3plot.Node, dims[0])
		for i := range mesh.Nodes {
			mesh.Nodes[i] = d3plot.Node{
				ID: int32(i + 1), //nolint:gosec
				X:  coords[i*3],
				Y:  coords[i*3+1],
				Z:  coords[i*3+2],
			}
		}
	}

	var err error
	if mesh.Solids, err = r.readElementTables("solid", 8); err != nil {
		return nil, err
	}
	if mesh.Shells, err = r.readElementTables("shell", 4); err != nil {
		return nil, err
	}
	if mesh.Beams, err = r.readElementTables("beam", 2); err != nil {
		return nil, err
	}

	return mesh, nil
}

func (r *Reader) readElementTables(kind string, arity int) ([]d3plot.Element, error) {
	connPath := "/mesh/" + kind + "_connectivity"
	if !r.HasDataset(connPath) {
		return nil, nil
	}

	connectivity, dims, err := r.readInt32Dataset(connPath)
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 || int(dims[1]) != arity {
		return nil, fmt.Errorf("%w: archive reader: %s has unexpected shape", errs.ErrCorruptedData, connPath)
	}

	partIDs, _, err := r.readInt32Dataset("/mesh/" + kind + "_part_ids")
	if err != nil {
		return nil, err
	}
	if uint64(len(partIDs)) != dims[0] {
		return nil, fmt.Errorf("%w: archive reader: %s_part_ids length mismatch", errs.ErrCorruptedData, kind)
	}

	elems := make([]d3plot.Element, dims[0])
	for i := range elems {
		nodes := make([]int32, arity)
		copy(nodes, connectivity[i*arity:(i+1)*arity])
		elems[i] = d3plot.Element{
			ID:            int32(i + 1), //nolint:gosec
			PartID:        partIDs[i],
			MaterialIndex: partIDs[i],
			Nodes:         nodes,
		}
	}

	return elems, nil
}

// NumTimesteps returns the archive's time step count.
func (r *Reader) NumTimesteps() int { return r.numTimesteps }

// Timesteps returns the available time step indices in order.
func (r *Reader) Timesteps() []int {
	steps := make([]int, r.numTimesteps)
	for i := range steps {
		steps[i] = i
	}

	return steps
}

// TimeOf returns the time attribute of one step.
func (r *Reader) TimeOf(timestep int) (float64, error) {
	g, err := r.timestepGroup(timestep)
	if err != nil {
		return 0, err
	}

	if a, ok := g.Attr("time"); ok {
		return a.Float, nil
	}

	return 0, fmt.Errorf("%w: archive reader: timestep %d has no time attribute", errs.ErrCorruptedData, timestep)
}

func (r *Reader) timestepGroup(timestep int) (*section.Group, error) {
	if timestep < 0 || timestep >= r.numTimesteps {
		return nil, fmt.Errorf("%w: archive reader: timestep %d of %d", errs.ErrOutOfRange, timestep, r.numTimesteps)
	}

	g, ok := r.lookupGroup(fmt.Sprintf("/states/timestep_%d", timestep))
	if !ok {
		return nil, fmt.Errorf("%w: archive reader: missing group for timestep %d", errs.ErrCorruptedData, timestep)
	}

	return g, nil
}

// State reconstructs one time step. In delta mode random access to step k
// replays from the stored full frame at step 0; sequential iteration reuses
// the cached previous frame and costs one dataset read per quantity.
func (r *Reader) State(timestep int) (*d3plot.State, error) {
	g, err := r.timestepGroup(timestep)
	if err != nil {
		return nil, err
	}

	state := &d3plot.State{}
	if a, ok := g.Attr("time"); ok {
		state.Time = a.Float
	}

	if !r.useQuantization {
		if state.NodeDisplacements, err = r.readRawQuantity(timestep, "displacement"); err != nil {
			return nil, err
		}
		if state.NodeVelocities, err = r.readRawQuantity(timestep, "velocity"); err != nil {
			return nil, err
		}

		return state, nil
	}

	disp, vel, err := r.quantizedFrames(timestep)
	if err != nil {
		return nil, err
	}

	if len(disp) > 0 {
		state.NodeDisplacements = make([]float64, len(disp))
		if err := r.dispQuantizer.DequantizeSlice(disp, state.NodeDisplacements); err != nil {
			return nil, err
		}
	}
	if len(vel) > 0 {
		state.NodeVelocities = make([]float64, len(vel))
		if err := r.velQuantizer.DequantizeSlice(vel, state.NodeVelocities); err != nil {
			return nil, err
		}
	}

	return state, nil
}

// readRawQuantity reads a float64 quantity dataset; a missing dataset means
// the quantity was absent from the source states.
func (r *Reader) readRawQuantity(timestep int, name string) ([]float64, error) {
	path := fmt.Sprintf("/states/timestep_%d/%s", timestep, name)
	if !r.HasDataset(path) {
		return nil, nil
	}

	vals, _, err := r.readFloat64Dataset(path)

	return vals, err
}

// quantizedFrames returns the reconstructed quantized payloads for one step,
// replaying deltas from the nearest stored full frame as needed.
func (r *Reader) quantizedFrames(timestep int) ([]uint16, []uint16, error) {
	// Repeated step: the cache already holds this frame.
	if r.lastTimestep >= 0 && timestep == r.lastTimestep {
		return r.cachedDisp, r.cachedVel, nil
	}

	start := 0
	if r.lastTimestep >= 0 && timestep > r.lastTimestep {
		start = r.lastTimestep + 1
	} else {
		r.cachedDisp, r.cachedVel = nil, nil
		r.lastTimestep = -1
	}

	for k := start; k <= timestep; k++ {
		disp, err := r.readQuantizedQuantity(k, "displacement", r.cachedDisp)
		if err != nil {
			return nil, nil, err
		}
		vel, err := r.readQuantizedQuantity(k, "velocity", r.cachedVel)
		if err != nil {
			return nil, nil, err
		}

		r.cachedDisp, r.cachedVel = disp, vel
		r.lastTimestep = k
	}

	return r.cachedDisp, r.cachedVel, nil
}

// readQuantizedQuantity reads one step's quantized payload for a quantity,
// choosing the full-frame or delta path from the step's datasets.
func (r *Reader) readQuantizedQuantity(timestep int, name string, prev []uint16) ([]uint16, error) {
	base := fmt.Sprintf("/states/timestep_%d/%s", timestep, name)

	if r.HasDataset(base + "_quantized") {
		return r.readUint16Dataset(base + "_quantized")
	}

	if r.HasDataset(base + "_delta") {
		deltas, err := r.readInt16Dataset(base + "_delta")
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, fmt.Errorf("%w: archive reader: delta frame at timestep %d without a prior full frame", errs.ErrCorruptedData, timestep)
		}

		dec := encoding.NewFrameDeltaDecoder()
		dec.DecodeFirst(prev)

		return dec.DecodeDelta(deltas)
	}

	// Quantity absent from the source states.
	return nil, nil
}

// Info summarizes the archive.
func (r *Reader) Info() FileInfo {
	info := FileInfo{
		NumTimesteps:  r.numTimesteps,
		FileSizeBytes: r.size,
	}

	if g, ok := r.lookupGroup("/"); ok {
		if a, ok := g.Attr("format"); ok {
			info.Format = a.Str
		}
	}

	if g, ok := r.lookupGroup("/mesh"); ok {
		if a, ok := g.Attr("num_nodes"); ok {
			info.NumNodes = int(a.Int)
		}
		if a, ok := g.Attr("num_solids"); ok {
			info.NumSolids = int(a.Int)
		}
		if a, ok := g.Attr("num_shells"); ok {
			info.NumShells = int(a.Int)
		}
		if a, ok := g.Attr("num_beams"); ok {
			info.NumBeams = int(a.Int)
		}
	}

	var uncompressed uint64
	for i := range r.dir.Datasets {
		uncompressed += r.dir.Datasets[i].RawSize()
	}
	info.UncompressedSize = int64(uncompressed) //nolint:gosec

	if uncompressed > 0 {
		info.CompressionRatio = float64(r.size) / float64(uncompressed)
	}

	return info
}
