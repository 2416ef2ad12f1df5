package d3plot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kood3plot/kood3plot/wordfile"
)

func parseFixtureMesh(t *testing.T, fx *fixture) (*Mesh, ControlHeader) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "d3plot")
	fx.buildBase(t, path, nil)

	r, err := wordfile.Open(path)
	require.NoError(t, err)
	defer r.Close()

	ch, err := ParseControlHeader(r)
	require.NoError(t, err)

	mesh, err := parseGeometry(r, &ch)
	require.NoError(t, err)

	return mesh, ch
}

func TestParseGeometrySequentialIDs(t *testing.T) {
	fx := defaultFixture()
	mesh, _ := parseFixtureMesh(t, fx)

	require.Len(t, mesh.Nodes, 4)
	require.Len(t, mesh.Solids, 2)
	require.Len(t, mesh.Beams, 1)
	require.Len(t, mesh.Shells, 1)
	require.Empty(t, mesh.ThickShells)

	// Without a remap table, IDs are sequential and part ids are the raw
	// material indices.
	for i, n := range mesh.Nodes {
		require.Equal(t, int32(i+1), n.ID)
		require.InDelta(t, float64(i)+0.1, n.X, 1e-3)
		require.InDelta(t, float64(i)+0.2, n.Y, 1e-3)
		require.InDelta(t, float64(i)+0.3, n.Z, 1e-3)
	}

	require.Equal(t, int32(1), mesh.Solids[0].ID)
	require.Equal(t, int32(2), mesh.Solids[1].ID)
	require.Equal(t, int32(1), mesh.Solids[0].PartID)
	require.Equal(t, int32(2), mesh.Solids[1].PartID)

	require.Equal(t, []int32{1, 2, 3, 4, 1, 2, 3, 4}, mesh.Solids[0].Nodes)
	require.Equal(t, []int32{1, 2}, mesh.Beams[0].Nodes)
	require.Equal(t, []int32{1, 2, 3, 4}, mesh.Shells[0].Nodes)
	require.Equal(t, int32(1), mesh.Beams[0].MaterialIndex)
	require.Equal(t, int32(2), mesh.Shells[0].MaterialIndex)
}

func TestParseGeometryNarbsRemap(t *testing.T) {
	fx := defaultFixture()
	fx.withNarbs = true

	mesh, ch := parseFixtureMesh(t, fx)
	require.Positive(t, ch.NarbsWords)

	// Node IDs come from the remap table.
	for i, n := range mesh.Nodes {
		require.Equal(t, int32(1001+i), n.ID)
	}

	// Element IDs and part ids are remapped: NORDER = [42, 77], solid
	// material indices are 1 and 2.
	require.Equal(t, int32(7), mesh.Solids[0].ID)
	require.Equal(t, int32(9), mesh.Solids[1].ID)
	require.Equal(t, int32(42), mesh.Solids[0].PartID)
	require.Equal(t, int32(77), mesh.Solids[1].PartID)

	require.Equal(t, int32(501), mesh.Beams[0].ID)
	require.Equal(t, int32(601), mesh.Shells[0].ID)
	require.Equal(t, int32(42), mesh.Beams[0].PartID)
	require.Equal(t, int32(77), mesh.Shells[0].PartID)
}

func TestParseGeometryNarbsTrailingMaterialTypes(t *testing.T) {
	fx := defaultFixture()
	fx.withNarbs = true
	fx.narbsTrailing = 3

	mesh, _ := parseFixtureMesh(t, fx)
	require.Equal(t, []int32{1, 2, 3}, mesh.MaterialTypes)
}

func TestParseGeometryTenNodeSolids(t *testing.T) {
	fx := defaultFixture()
	fx.numSolids = -2
	fx.withNarbs = true

	// The ten-node extras sit between the solid table and the rest of the
	// geometry; a correct parse still lands on the remap section.
	mesh, _ := parseFixtureMesh(t, fx)
	require.Len(t, mesh.Solids, 2)
	require.Equal(t, int32(7), mesh.Solids[0].ID)
	require.Equal(t, int32(1001), mesh.Nodes[0].ID)
}

func TestMeshAccessors(t *testing.T) {
	fx := defaultFixture()
	mesh, _ := parseFixtureMesh(t, fx)

	require.Len(t, mesh.Elements(KindSolid8), 2)
	require.Len(t, mesh.Elements(KindBeam2), 1)
	require.Len(t, mesh.Elements(KindShell4), 1)
	require.Empty(t, mesh.Elements(KindThickShell8))
	require.Equal(t, 4, mesh.NumElements())

	require.Equal(t, 8, KindSolid8.Arity())
	require.Equal(t, 2, KindBeam2.Arity())
	require.Equal(t, 4, KindShell4.Arity())
	require.Equal(t, 8, KindThickShell8.Arity())
}
