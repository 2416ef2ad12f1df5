package kood3plot

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kood3plot/kood3plot/format"
	"github.com/kood3plot/kood3plot/validate"
)

// buildFamily writes a minimal single-precision little-endian family: six
// nodes, one solid, three states with displacement and velocity.
func buildFamily(t *testing.T, base string) (numNodes, numStates int, disp [][]float64) {
	t.Helper()

	numNodes = 6
	numStates = 3
	const (
		nglbv      = 1
		stateWords = 1 + nglbv + 3*2*6 + 2 // time + globals + disp/vel + solid vars
		geomWords  = 3*6 + 9
		totalWords = 64 + geomWords + 3*stateWords + 1
	)

	words := make([]uint32, totalWords)
	setInt := func(addr int, v int32) { words[addr] = uint32(v) }
	setFloat := func(addr int, v float64) { words[addr] = math.Float32bits(float32(v)) }

	setFloat(14, 971.0)
	setInt(15, 3) // ndim
	setInt(16, 6) // nodes
	setInt(18, nglbv)
	setInt(20, 1) // displacement
	setInt(21, 1) // velocity
	setInt(23, 1) // solids
	setInt(27, 2) // vars per solid
	setInt(51, 1) // materials

	cursor := 64
	putFloat := func(v float64) { setFloat(cursor, v); cursor++ }
	putInt := func(v int32) { setInt(cursor, v); cursor++ }

	for i := 0; i < numNodes; i++ {
		putFloat(float64(i))
		putFloat(float64(i) * 2)
		putFloat(float64(i) * 3)
	}
	for n := 0; n < 8; n++ {
		putInt(int32(n%numNodes + 1))
	}
	putInt(1) // material index

	disp = make([][]float64, numStates)
	for k := 0; k < numStates; k++ {
		putFloat(float64(k) * 0.1) // time
		putFloat(float64(k))       // global

		disp[k] = make([]float64, 3*numNodes)
		for i := range disp[k] {
			disp[k][i] = float64(0.5 + float64(k)*0.25 + float64(i)*0.0625)
			putFloat(disp[k][i])
		}
		for i := 0; i < 3*numNodes; i++ {
			putFloat(float64(i) * 0.5) // velocity
		}
		putFloat(7.0) // solid vars
		putFloat(8.0)
	}
	putFloat(-999999.0)

	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	require.NoError(t, os.WriteFile(base, data, 0o644))

	return numNodes, numStates, disp
}

func TestExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")
	numNodes, numStates, disp := buildFamily(t, base)

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	require.Equal(t, int32(6), dec.Control().NumNodes)

	for _, preset := range []format.Preset{format.PresetLossless, format.PresetBalanced} {
		t.Run(preset.String(), func(t *testing.T) {
			out := filepath.Join(dir, preset.String()+".kda")
			require.NoError(t, Export(dec, out, preset))

			r, err := OpenArchive(out)
			require.NoError(t, err)
			defer r.Close()

			require.Equal(t, numStates, r.NumTimesteps())

			mesh, err := r.Mesh()
			require.NoError(t, err)
			require.Len(t, mesh.Nodes, numNodes)
			require.Len(t, mesh.Solids, 1)

			for k := 0; k < numStates; k++ {
				st, err := r.State(k)
				require.NoError(t, err)

				stats, err := validate.Compare(disp[k], st.NodeDisplacements)
				require.NoError(t, err)

				if preset == format.PresetLossless {
					// The source is single precision; the archive preserves
					// the widened values exactly.
					require.Less(t, stats.MaxAbsError, 1e-6)
				} else {
					// Quantized mode keeps at least three significant digits
					// on this data.
					require.GreaterOrEqual(t, stats.MinSignificantDigits, 3)
				}
			}
		})
	}
}
