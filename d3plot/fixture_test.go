package d3plot

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kood3plot/kood3plot/endian"
	"github.com/kood3plot/kood3plot/format"
)

// wordBuf builds synthetic word-addressed fixture files.
type wordBuf struct {
	precision format.Precision
	engine    endian.EndianEngine
	data      []byte
	cursor    int
}

func newWordBuf(precision format.Precision, order format.ByteOrder, words int) *wordBuf {
	return &wordBuf{
		precision: precision,
		engine:    endian.EngineFor(order),
		data:      make([]byte, words*precision.WordSize()),
	}
}

func (b *wordBuf) setInt(word int, v int64) {
	if b.precision == format.PrecisionDouble {
		b.engine.PutUint64(b.data[word*8:], uint64(v))
	} else {
		b.engine.PutUint32(b.data[word*4:], uint32(int32(v)))
	}
}

func (b *wordBuf) setFloat(word int, v float64) {
	if b.precision == format.PrecisionDouble {
		b.engine.PutUint64(b.data[word*8:], math.Float64bits(v))
	} else {
		b.engine.PutUint32(b.data[word*4:], math.Float32bits(float32(v)))
	}
}

func (b *wordBuf) putInt(v int64) {
	b.setInt(b.cursor, v)
	b.cursor++
}

func (b *wordBuf) putFloat(v float64) {
	b.setFloat(b.cursor, v)
	b.cursor++
}

func (b *wordBuf) writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, b.data, 0o644))
}

// fixture describes a small synthetic model: four nodes, two solids, one beam
// and one shell by default.
type fixture struct {
	precision format.Precision
	order     format.ByteOrder

	numNodes  int
	numSolids int // negative marks ten-node solids
	numBeams  int
	numShells int

	nglbv     int
	varsSolid int
	varsBeam  int
	varsShell int

	maxIntRaw int
	idtdt     int
	nmmat     int

	withNarbs     bool
	narbsTrailing int // extra material-type words at the section tail
}

func defaultFixture() *fixture {
	return &fixture{
		precision: format.PrecisionSingle,
		order:     format.LittleEndian,
		numNodes:  4,
		numSolids: 2,
		numBeams:  1,
		numShells: 1,
		nglbv:     2,
		varsSolid: 3,
		varsBeam:  2,
		varsShell: 4,
		nmmat:     2,
	}
}

func (fx *fixture) absSolids() int {
	if fx.numSolids < 0 {
		return -fx.numSolids
	}

	return fx.numSolids
}

// narbsWords returns the arbitrary-ID section size: 10-word header, the five
// ID lists, three material arrays and the trailing material types.
func (fx *fixture) narbsWords() int {
	if !fx.withNarbs {
		return 0
	}

	return 10 + fx.numNodes + fx.absSolids() + fx.numBeams + fx.numShells + 3*fx.nmmat + fx.narbsTrailing
}

func (fx *fixture) geometryWords() int {
	words := 3*fx.numNodes + 9*fx.absSolids() + 6*fx.numBeams + 5*fx.numShells
	if fx.numSolids < 0 {
		words += 2 * fx.absSolids()
	}

	return words + fx.narbsWords()
}

// stateWords mirrors the derivation under test; fixtures have no temperature,
// acceleration or deletion data.
func (fx *fixture) stateWords() int {
	nodal := 3 * 2 * fx.numNodes // displacement + velocity
	elem := fx.absSolids()*fx.varsSolid + fx.numBeams*fx.varsBeam + fx.numShells*fx.varsShell

	return 1 + fx.nglbv + nodal + elem
}

// genState produces deterministic state content for step k.
func (fx *fixture) genState(k int) State {
	st := State{Time: float64(k) * 0.05}

	fill := func(n int, base float64) []float64 {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = base + float64(k)*0.25 + float64(i)*0.125
		}

		return vals
	}

	st.GlobalVars = fill(fx.nglbv, 10)
	st.NodeDisplacements = fill(3*fx.numNodes, 1)
	st.NodeVelocities = fill(3*fx.numNodes, 100)
	st.SolidData = fill(fx.absSolids()*fx.varsSolid, 1000)
	st.BeamData = fill(fx.numBeams*fx.varsBeam, 2000)
	st.ShellData = fill(fx.numShells*fx.varsShell, 3000)

	return st
}

func (fx *fixture) writeControl(buf *wordBuf) {
	buf.setFloat(14, 971.0)
	buf.setInt(15, 3) // ndim
	buf.setInt(16, int64(fx.numNodes))
	buf.setInt(18, int64(fx.nglbv))
	buf.setInt(19, 0) // temperatures absent
	buf.setInt(20, 1) // displacements
	buf.setInt(21, 1) // velocities
	buf.setInt(22, 0) // accelerations absent
	buf.setInt(23, int64(fx.numSolids))
	buf.setInt(27, int64(fx.varsSolid))
	buf.setInt(28, int64(fx.numBeams))
	buf.setInt(30, int64(fx.varsBeam))
	buf.setInt(31, int64(fx.numShells))
	buf.setInt(33, int64(fx.varsShell))
	buf.setInt(36, int64(fx.maxIntRaw))
	buf.setInt(39, int64(fx.narbsWords()))
	buf.setInt(51, int64(fx.nmmat))
	buf.setFloat(55, 0.001)
	buf.setInt(56, int64(fx.idtdt))
}

func (fx *fixture) writeGeometry(buf *wordBuf) {
	buf.cursor = 64

	for i := 0; i < fx.numNodes; i++ {
		buf.putFloat(float64(i) + 0.1)
		buf.putFloat(float64(i) + 0.2)
		buf.putFloat(float64(i) + 0.3)
	}

	for i := 0; i < fx.absSolids(); i++ {
		for n := 0; n < 8; n++ {
			buf.putInt(int64(n%fx.numNodes + 1))
		}
		buf.putInt(int64(i%fx.nmmat + 1)) // material index
	}
	if fx.numSolids < 0 {
		for i := 0; i < 2*fx.absSolids(); i++ {
			buf.putInt(0) // ten-node extras, consumed but unused
		}
	}

	for i := 0; i < fx.numBeams; i++ {
		buf.putInt(1)
		buf.putInt(2)
		buf.putInt(3) // orientation node
		buf.putInt(0)
		buf.putInt(0)
		buf.putInt(1)
	}

	for i := 0; i < fx.numShells; i++ {
		buf.putInt(1)
		buf.putInt(2)
		buf.putInt(3)
		buf.putInt(4)
		buf.putInt(2)
	}

	if fx.withNarbs {
		fx.writeNarbs(buf)
	}
}

func (fx *fixture) writeNarbs(buf *wordBuf) {
	buf.putInt(int64(fx.numNodes)) // NSORT >= 0: 10-word header
	for i := 1; i < 10; i++ {
		buf.putInt(0)
	}

	for i := 0; i < fx.numNodes; i++ {
		buf.putInt(int64(1001 + i))
	}

	solidIDs := []int64{7, 9, 11, 13}
	for i := 0; i < fx.absSolids(); i++ {
		buf.putInt(solidIDs[i%len(solidIDs)])
	}
	for i := 0; i < fx.numBeams; i++ {
		buf.putInt(int64(501 + i))
	}
	for i := 0; i < fx.numShells; i++ {
		buf.putInt(int64(601 + i))
	}

	norder := []int64{42, 77, 88, 99}
	for i := 0; i < fx.nmmat; i++ {
		buf.putInt(norder[i%len(norder)])
	}
	for i := 0; i < 2*fx.nmmat; i++ {
		buf.putInt(0) // NSRMU, NSRMP
	}
	for i := 0; i < fx.narbsTrailing; i++ {
		buf.putInt(int64(i + 1)) // material types
	}
}

func (fx *fixture) writeState(buf *wordBuf, st State) {
	buf.putFloat(st.Time)
	for _, v := range st.GlobalVars {
		buf.putFloat(v)
	}
	for _, v := range st.NodeDisplacements {
		buf.putFloat(v)
	}
	for _, v := range st.NodeVelocities {
		buf.putFloat(v)
	}
	for _, v := range st.SolidData {
		buf.putFloat(v)
	}
	for _, v := range st.BeamData {
		buf.putFloat(v)
	}
	for _, v := range st.ShellData {
		buf.putFloat(v)
	}
}

// buildBase writes the family's base file: control, geometry, the given
// states and an end marker, padded past the format probe's minimum size.
func (fx *fixture) buildBase(t *testing.T, path string, states []State) {
	t.Helper()

	words := 64 + fx.geometryWords() + len(states)*fx.stateWords() + 1
	if min := 64 * 8 / fx.precision.WordSize(); words < min {
		words = min
	}

	buf := newWordBuf(fx.precision, fx.order, words)
	fx.writeControl(buf)
	fx.writeGeometry(buf)
	for _, st := range states {
		fx.writeState(buf, st)
	}
	buf.putFloat(-999999.0)

	buf.writeFile(t, path)
}

// buildContinuation writes a continuation file holding only state slots.
func (fx *fixture) buildContinuation(t *testing.T, path string, states []State, endMarker bool) {
	t.Helper()

	words := len(states) * fx.stateWords()
	if endMarker {
		words++
	}
	if words == 0 {
		words = 1 // a single zero word: no valid slot, no marker
	}

	buf := newWordBuf(fx.precision, fx.order, words)
	for _, st := range states {
		fx.writeState(buf, st)
	}
	if endMarker {
		buf.putFloat(-999999.0)
	}

	buf.writeFile(t, path)
}

// genStates produces count deterministic states starting at index first.
func (fx *fixture) genStates(first, count int) []State {
	states := make([]State, count)
	for i := range states {
		states[i] = fx.genState(first + i)
	}

	return states
}

// requireStatesEqual compares decoded states against expected fixtures within
// single-precision tolerance.
func requireStatesEqual(t *testing.T, expected, actual []State) {
	t.Helper()
	require.Len(t, actual, len(expected))

	const tol = 1e-3 // fixtures are single precision

	for i := range expected {
		require.InDelta(t, expected[i].Time, actual[i].Time, tol, "state %d time", i)
		requireFloatsEqual(t, expected[i].GlobalVars, actual[i].GlobalVars, tol)
		requireFloatsEqual(t, expected[i].NodeDisplacements, actual[i].NodeDisplacements, tol)
		requireFloatsEqual(t, expected[i].NodeVelocities, actual[i].NodeVelocities, tol)
		requireFloatsEqual(t, expected[i].SolidData, actual[i].SolidData, tol)
		requireFloatsEqual(t, expected[i].BeamData, actual[i].BeamData, tol)
		requireFloatsEqual(t, expected[i].ShellData, actual[i].ShellData, tol)
	}
}

func requireFloatsEqual(t *testing.T, expected, actual []float64, tol float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		require.InDelta(t, expected[i], actual[i], tol)
	}
}
