package section

import (
	"fmt"

	"github.com/kood3plot/kood3plot/endian"
	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/format"
)

// Attribute is one typed attribute of a group.
type Attribute struct {
	Name string
	Kind uint8

	Int    int64
	Float  float64
	Str    string
	Floats []float64
}

// IntAttr constructs an int64 attribute.
func IntAttr(name string, v int64) Attribute {
	return Attribute{Name: name, Kind: AttrInt64, Int: v}
}

// FloatAttr constructs a float64 attribute.
func FloatAttr(name string, v float64) Attribute {
	return Attribute{Name: name, Kind: AttrFloat64, Float: v}
}

// StringAttr constructs a string attribute.
func StringAttr(name, v string) Attribute {
	return Attribute{Name: name, Kind: AttrString, Str: v}
}

// FloatArrayAttr constructs a float64-array attribute.
func FloatArrayAttr(name string, v []float64) Attribute {
	return Attribute{Name: name, Kind: AttrFloat64Array, Floats: v}
}

// Group is one directory group: a path plus its attributes.
type Group struct {
	Path  string
	Attrs []Attribute
}

// Attr returns the named attribute and whether it exists.
func (g *Group) Attr(name string) (Attribute, bool) {
	for _, a := range g.Attrs {
		if a.Name == name {
			return a, true
		}
	}

	return Attribute{}, false
}

// Chunk locates one compressed chunk of a dataset within the file payload.
type Chunk struct {
	Offset     uint64
	StoredSize uint64
	RawSize    uint64
}

// Dataset is one directory dataset entry: shape, element type, chunk layout
// and the xxhash64 checksum of the raw (uncompressed) data.
type Dataset struct {
	Path        string
	Dtype       format.DataType
	Dims        []uint64
	ChunkRows   uint64
	Compression format.CompressionType
	Checksum    uint64
	Chunks      []Chunk
}

// NumElements returns the product of the dataset's dimensions.
func (d *Dataset) NumElements() uint64 {
	if len(d.Dims) == 0 {
		return 0
	}

	n := uint64(1)
	for _, dim := range d.Dims {
		n *= dim
	}

	return n
}

// RawSize returns the dataset's uncompressed byte size.
func (d *Dataset) RawSize() uint64 {
	return d.NumElements() * uint64(d.Dtype.Size()) //nolint:gosec
}

// Directory is the archive's table of contents: every group and dataset with
// their attributes and chunk tables. It is serialized once, after the last
// payload byte, and located by the trailer.
type Directory struct {
	Groups   []Group
	Datasets []Dataset
}

// AppendTo serializes the directory onto buf.
func (dir *Directory) AppendTo(buf []byte, engine endian.EndianEngine) []byte {
	buf = engine.AppendUint32(buf, uint32(len(dir.Groups))) //nolint:gosec
	for i := range dir.Groups {
		buf = appendGroup(buf, engine, &dir.Groups[i])
	}

	buf = engine.AppendUint32(buf, uint32(len(dir.Datasets))) //nolint:gosec
	for i := range dir.Datasets {
		buf = appendDataset(buf, engine, &dir.Datasets[i])
	}

	return buf
}

func appendString(buf []byte, engine endian.EndianEngine, s string) []byte {
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	buf = engine.AppendUint16(buf, uint16(len(s))) //nolint:gosec

	return append(buf, s...)
}

func appendGroup(buf []byte, engine endian.EndianEngine, g *Group) []byte {
	buf = appendString(buf, engine, g.Path)
	buf = engine.AppendUint16(buf, uint16(len(g.Attrs))) //nolint:gosec
	for i := range g.Attrs {
		buf = appendAttribute(buf, engine, &g.Attrs[i])
	}

	return buf
}

func appendAttribute(buf []byte, engine endian.EndianEngine, a *Attribute) []byte {
	buf = appendString(buf, engine, a.Name)
	buf = append(buf, a.Kind)

	switch a.Kind {
	case AttrInt64:
		buf = engine.AppendUint64(buf, uint64(a.Int)) //nolint:gosec
	case AttrFloat64:
		buf = engine.AppendUint64(buf, floatBits(a.Float))
	case AttrString:
		buf = appendString(buf, engine, a.Str)
	case AttrFloat64Array:
		buf = engine.AppendUint32(buf, uint32(len(a.Floats))) //nolint:gosec
		for _, v := range a.Floats {
			buf = engine.AppendUint64(buf, floatBits(v))
		}
	}

	return buf
}

func appendDataset(buf []byte, engine endian.EndianEngine, d *Dataset) []byte {
	buf = appendString(buf, engine, d.Path)
	buf = append(buf, uint8(d.Dtype), uint8(len(d.Dims))) //nolint:gosec
	for _, dim := range d.Dims {
		buf = engine.AppendUint64(buf, dim)
	}

	buf = engine.AppendUint64(buf, d.ChunkRows)
	buf = append(buf, uint8(d.Compression))
	buf = engine.AppendUint64(buf, d.Checksum)

	buf = engine.AppendUint32(buf, uint32(len(d.Chunks))) //nolint:gosec
	for _, c := range d.Chunks {
		buf = engine.AppendUint64(buf, c.Offset)
		buf = engine.AppendUint64(buf, c.StoredSize)
		buf = engine.AppendUint64(buf, c.RawSize)
	}

	return buf
}

// directoryParser is a bounds-checked cursor over serialized directory bytes.
type directoryParser struct {
	data   []byte
	pos    int
	engine endian.EndianEngine
}

func (p *directoryParser) need(n int) error {
	if p.pos+n > len(p.data) {
		return fmt.Errorf("%w: archive directory truncated at byte %d", errs.ErrCorruptedData, p.pos)
	}

	return nil
}

func (p *directoryParser) uint8() (uint8, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	v := p.data[p.pos]
	p.pos++

	return v, nil
}

func (p *directoryParser) uint16() (uint16, error) {
	if err := p.need(2); err != nil {
		return 0, err
	}
	v := p.engine.Uint16(p.data[p.pos:])
	p.pos += 2

	return v, nil
}

func (p *directoryParser) uint32() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := p.engine.Uint32(p.data[p.pos:])
	p.pos += 4

	return v, nil
}

func (p *directoryParser) uint64() (uint64, error) {
	if err := p.need(8); err != nil {
		return 0, err
	}
	v := p.engine.Uint64(p.data[p.pos:])
	p.pos += 8

	return v, nil
}

func (p *directoryParser) str() (string, error) {
	n, err := p.uint16()
	if err != nil {
		return "", err
	}
	if err := p.need(int(n)); err != nil {
		return "", err
	}
	s := string(p.data[p.pos : p.pos+int(n)])
	p.pos += int(n)

	return s, nil
}

// ParseDirectory deserializes a directory from its byte form.
func ParseDirectory(data []byte, engine endian.EndianEngine) (Directory, error) {
	p := &directoryParser{data: data, engine: engine}

	var dir Directory

	groupCount, err := p.uint32()
	if err != nil {
		return Directory{}, err
	}
	dir.Groups = make([]Group, 0, groupCount)
	for i := uint32(0); i < groupCount; i++ {
		g, err := p.group()
		if err != nil {
			return Directory{}, err
		}
		dir.Groups = append(dir.Groups, g)
	}

	datasetCount, err := p.uint32()
	if err != nil {
		return Directory{}, err
	}
	dir.Datasets = make([]Dataset, 0, datasetCount)
	for i := uint32(0); i < datasetCount; i++ {
		d, err := p.dataset()
		if err != nil {
			return Directory{}, err
		}
		dir.Datasets = append(dir.Datasets, d)
	}

	return dir, nil
}

func (p *directoryParser) group() (Group, error) {
	path, err := p.str()
	if err != nil {
		return Group{}, err
	}

	attrCount, err := p.uint16()
	if err != nil {
		return Group{}, err
	}

	g := Group{Path: path, Attrs: make([]Attribute, 0, attrCount)}
	for i := uint16(0); i < attrCount; i++ {
		a, err := p.attribute()
		if err != nil {
			return Group{}, err
		}
		g.Attrs = append(g.Attrs, a)
	}

	return g, nil
}

func (p *directoryParser) attribute() (Attribute, error) {
	name, err := p.str()
	if err != nil {
		return Attribute{}, err
	}

	kind, err := p.uint8()
	if err != nil {
		return Attribute{}, err
	}

	a := Attribute{Name: name, Kind: kind}

	switch kind {
	case AttrInt64:
		v, err := p.uint64()
		if err != nil {
			return Attribute{}, err
		}
		a.Int = int64(v) //nolint:gosec
	case AttrFloat64:
		v, err := p.uint64()
		if err != nil {
			return Attribute{}, err
		}
		a.Float = floatFromBits(v)
	case AttrString:
		if a.Str, err = p.str(); err != nil {
			return Attribute{}, err
		}
	case AttrFloat64Array:
		n, err := p.uint32()
		if err != nil {
			return Attribute{}, err
		}
		a.Floats = make([]float64, n)
		for i := range a.Floats {
			v, err := p.uint64()
			if err != nil {
				return Attribute{}, err
			}
			a.Floats[i] = floatFromBits(v)
		}
	default:
		return Attribute{}, fmt.Errorf("%w: archive directory: unknown attribute kind %d", errs.ErrCorruptedData, kind)
	}

	return a, nil
}

func (p *directoryParser) dataset() (Dataset, error) {
	path, err := p.str()
	if err != nil {
		return Dataset{}, err
	}

	dtype, err := p.uint8()
	if err != nil {
		return Dataset{}, err
	}

	ndims, err := p.uint8()
	if err != nil {
		return Dataset{}, err
	}

	d := Dataset{Path: path, Dtype: format.DataType(dtype), Dims: make([]uint64, ndims)}
	if d.Dtype.Size() == 0 {
		return Dataset{}, fmt.Errorf("%w: archive directory: unknown data type %d for dataset %s", errs.ErrCorruptedData, dtype, path)
	}

	for i := range d.Dims {
		if d.Dims[i], err = p.uint64(); err != nil {
			return Dataset{}, err
		}
	}

	if d.ChunkRows, err = p.uint64(); err != nil {
		return Dataset{}, err
	}

	comp, err := p.uint8()
	if err != nil {
		return Dataset{}, err
	}
	d.Compression = format.CompressionType(comp)

	if d.Checksum, err = p.uint64(); err != nil {
		return Dataset{}, err
	}

	chunkCount, err := p.uint32()
	if err != nil {
		return Dataset{}, err
	}

	d.Chunks = make([]Chunk, chunkCount)
	for i := range d.Chunks {
		if d.Chunks[i].Offset, err = p.uint64(); err != nil {
			return Dataset{}, err
		}
		if d.Chunks[i].StoredSize, err = p.uint64(); err != nil {
			return Dataset{}, err
		}
		if d.Chunks[i].RawSize, err = p.uint64(); err != nil {
			return Dataset{}, err
		}
	}

	return d, nil
}
