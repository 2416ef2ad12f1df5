package d3plot

import (
	"fmt"

	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/wordfile"
)

// Connectivity record widths in words.
const (
	solidRecordWords      = 9 // 8 nodes + material
	thickShellRecordWords = 9
	beamRecordWords       = 6 // 2 nodes + orientation node + 2 nulls + material
	shellRecordWords      = 5 // 4 nodes + material
)

// parseGeometry reads the geometry section of the base file: node table, the
// four connectivity tables in fixed order, and the arbitrary-ID remap section
// when present. Sections are strictly ordered and sized by the control header.
func parseGeometry(r *wordfile.Reader, ch *ControlHeader) (*Mesh, error) {
	mesh := &Mesh{}
	offset := ch.GeometryStartWord()

	var err error
	if offset, err = parseNodes(r, ch, mesh, offset); err != nil {
		return nil, err
	}
	if offset, err = parseSolids(r, ch, mesh, offset); err != nil {
		return nil, err
	}
	if offset, err = parseThickShells(r, ch, mesh, offset); err != nil {
		return nil, err
	}
	if offset, err = parseBeams(r, ch, mesh, offset); err != nil {
		return nil, err
	}
	if offset, err = parseShells(r, ch, mesh, offset); err != nil {
		return nil, err
	}
	if err = parseNarbs(r, ch, mesh, offset); err != nil {
		return nil, err
	}

	return mesh, nil
}

func parseNodes(r *wordfile.Reader, ch *ControlHeader, mesh *Mesh, offset int64) (int64, error) {
	numNodes := int(ch.NumNodes)
	if numNodes <= 0 {
		return offset, nil
	}

	ndim := int(ch.EffectiveNDim())
	coords, err := r.ReadFloat64Array(offset, numNodes*ndim)
	if err != nil {
		return 0, fmt.Errorf("geometry decoder: node table: %w", err)
	}

	mesh.Nodes = make([]Node, numNodes)
	for i := range mesh.Nodes {
		node := Node{ID: int32(i + 1)} //nolint:gosec
		row := coords[i*ndim:]
		if ndim >= 1 {
			node.X = row[0]
		}
		if ndim >= 2 {
			node.Y = row[1]
		}
		if ndim >= 3 {
			node.Z = row[2]
		}
		mesh.Nodes[i] = node
	}

	return offset + int64(numNodes*ndim), nil
}

func parseSolids(r *wordfile.Reader, ch *ControlHeader, mesh *Mesh, offset int64) (int64, error) {
	numSolids := int(ch.NumSolids())
	if numSolids == 0 {
		return offset, nil
	}

	var err error
	mesh.Solids, offset, err = parseConnectivity(r, offset, numSolids, solidRecordWords, 8, "solid")
	if err != nil {
		return 0, err
	}

	// A negative solid count marks ten-node solids: two extra node words per
	// element follow the table. They are consumed but not exposed.
	if ch.NumSolid8 < 0 {
		offset += 2 * int64(numSolids)
	}

	return offset, nil
}

func parseThickShells(r *wordfile.Reader, ch *ControlHeader, mesh *Mesh, offset int64) (int64, error) {
	n := int(ch.NumThickShell8)
	if n == 0 {
		return offset, nil
	}

	var err error
	mesh.ThickShells, offset, err = parseConnectivity(r, offset, n, thickShellRecordWords, 8, "thick shell")

	return offset, err
}

func parseBeams(r *wordfile.Reader, ch *ControlHeader, mesh *Mesh, offset int64) (int64, error) {
	n := int(ch.NumBeam2)
	if n == 0 {
		return offset, nil
	}

	words, err := r.ReadInt32Array(offset, n*beamRecordWords)
	if err != nil {
		return 0, fmt.Errorf("geometry decoder: beam table: %w", err)
	}

	mesh.Beams = make([]Element, n)
	for i := range mesh.Beams {
		rec := words[i*beamRecordWords:]
		// Record layout: n1, n2, orientation node, two nulls, material.
		mesh.Beams[i] = Element{
			ID:            int32(i + 1), //nolint:gosec
			Nodes:         []int32{rec[0], rec[1]},
			MaterialIndex: rec[5],
			PartID:        rec[5],
		}
	}

	return offset + int64(n*beamRecordWords), nil
}

func parseShells(r *wordfile.Reader, ch *ControlHeader, mesh *Mesh, offset int64) (int64, error) {
	n := int(ch.NumShell4)
	if n == 0 {
		return offset, nil
	}

	var err error
	mesh.Shells, offset, err = parseConnectivity(r, offset, n, shellRecordWords, 4, "shell")

	return offset, err
}

// parseConnectivity reads a fixed-width connectivity table where the node
// indices lead the record and the material index is the last word.
func parseConnectivity(r *wordfile.Reader, offset int64, count, recordWords, arity int, kind string) ([]Element, int64, error) {
	words, err := r.ReadInt32Array(offset, count*recordWords)
	if err != nil {
		return nil, 0, fmt.Errorf("geometry decoder: %s table: %w", kind, err)
	}

	elems := make([]Element, count)
	for i := range elems {
		rec := words[i*recordWords:]
		nodes := make([]int32, arity)
		copy(nodes, rec[:arity])
		elems[i] = Element{
			ID:            int32(i + 1), //nolint:gosec
			Nodes:         nodes,
			MaterialIndex: rec[recordWords-1],
			PartID:        rec[recordWords-1],
		}
	}

	return elems, offset + int64(count*recordWords), nil
}

// narbsTable holds the parsed arbitrary-ID remap section.
type narbsTable struct {
	nodeIDs       []int32
	solidIDs      []int32
	thickShellIDs []int32
	beamIDs       []int32
	shellIDs      []int32
	partIDs       []int32 // NORDER
	materialTypes []int32
}

// realPartID maps a raw 1-based material index through NORDER, falling back to
// the raw index when the table is absent or the index is out of range.
func (n *narbsTable) realPartID(materialIndex int32) int32 {
	idx := int(materialIndex) - 1
	if idx < 0 || idx >= len(n.partIDs) {
		return materialIndex
	}

	return n.partIDs[idx]
}

// parseNarbs reads the arbitrary-ID section and rewrites the mesh's node,
// element and part identifiers from it. A zero NarbsWords leaves the
// sequential IDs in place.
func parseNarbs(r *wordfile.Reader, ch *ControlHeader, mesh *Mesh, offset int64) error {
	if ch.NarbsWords <= 0 {
		return nil
	}

	sectionEnd := offset + int64(ch.NarbsWords)

	// The header block is 10 words, or 16 when the first word (NSORT) is
	// negative; the extra six words are consumed without interpretation.
	nsort, err := r.ReadInt32(offset)
	if err != nil {
		return fmt.Errorf("geometry decoder: remap header: %w", err)
	}

	headerWords := int64(10)
	if nsort < 0 {
		headerWords = 16
	}
	offset += headerWords

	table := &narbsTable{}

	readIDs := func(count int32, what string) ([]int32, error) {
		if count <= 0 {
			return nil, nil
		}
		if offset+int64(count) > sectionEnd {
			return nil, fmt.Errorf("%w: geometry decoder: %s ids overrun remap section at word %d of file %s",
				errs.ErrCorruptedData, what, offset, r.Path())
		}

		ids, err := r.ReadInt32Array(offset, int(count))
		if err != nil {
			return nil, fmt.Errorf("geometry decoder: %s ids: %w", what, err)
		}
		offset += int64(count)

		return ids, nil
	}

	if table.nodeIDs, err = readIDs(ch.NumNodes, "node"); err != nil {
		return err
	}
	if table.solidIDs, err = readIDs(ch.NumSolids(), "solid"); err != nil {
		return err
	}
	if table.thickShellIDs, err = readIDs(ch.NumThickShell8, "thick shell"); err != nil {
		return err
	}
	if table.beamIDs, err = readIDs(ch.NumBeam2, "beam"); err != nil {
		return err
	}
	if table.shellIDs, err = readIDs(ch.NumShell4, "shell"); err != nil {
		return err
	}

	// Three material arrays follow: NORDER (the part-ID mapping), then NSRMU
	// and NSRMP which are consumed but unused.
	if ch.NumMaterials > 0 {
		if table.partIDs, err = readIDs(ch.NumMaterials, "part"); err != nil {
			return err
		}
		skip := 2 * int64(ch.NumMaterials)
		if offset+skip > sectionEnd {
			return fmt.Errorf("%w: geometry decoder: material cross-reference overruns remap section at word %d of file %s",
				errs.ErrCorruptedData, offset, r.Path())
		}
		offset += skip
	}

	// The remainder of the section is the material-type list.
	if remaining := sectionEnd - offset; remaining > 0 {
		table.materialTypes, err = r.ReadInt32Array(offset, int(remaining))
		if err != nil {
			return fmt.Errorf("geometry decoder: material types: %w", err)
		}
	}

	applyNarbs(mesh, table)

	return nil
}

// applyNarbs overwrites the sequential identifiers with the remapped ones.
func applyNarbs(mesh *Mesh, table *narbsTable) {
	for i := range mesh.Nodes {
		if i < len(table.nodeIDs) {
			mesh.Nodes[i].ID = table.nodeIDs[i]
		}
	}

	remap := func(elems []Element, ids []int32) {
		for i := range elems {
			if i < len(ids) {
				elems[i].ID = ids[i]
			}
			elems[i].PartID = table.realPartID(elems[i].MaterialIndex)
		}
	}

	remap(mesh.Solids, table.solidIDs)
	remap(mesh.ThickShells, table.thickShellIDs)
	remap(mesh.Beams, table.beamIDs)
	remap(mesh.Shells, table.shellIDs)

	mesh.MaterialTypes = table.materialTypes
}
