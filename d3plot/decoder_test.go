package d3plot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kood3plot/kood3plot/format"
)

func TestDecoderSingleFileFamily(t *testing.T) {
	fx := defaultFixture()
	base := filepath.Join(t.TempDir(), "d3plot")
	expected := fx.genStates(0, 3)
	fx.buildBase(t, base, expected)

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	require.Len(t, dec.Files(), 1)
	require.Equal(t, format.PrecisionSingle, dec.Format().Precision)
	require.InDelta(t, 971.0, dec.Format().Version, 1e-3)

	// Size identity: the derived state word count matches the slot layout the
	// fixture actually wrote.
	require.Equal(t, int64(fx.stateWords()), dec.Control().StateWordCount())

	states, err := dec.ReadAllStates()
	require.NoError(t, err)
	requireStatesEqual(t, expected, states)
}

func TestDecoderZeroStateFamily(t *testing.T) {
	fx := defaultFixture()
	base := filepath.Join(t.TempDir(), "d3plot")
	fx.buildBase(t, base, nil)

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	states, err := dec.ReadAllStates()
	require.NoError(t, err)
	require.Empty(t, states)
}

func TestDecoderFamilySequencing(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")

	// Base file carries two states, continuations three and two.
	fx.buildBase(t, base, fx.genStates(0, 2))
	fx.buildContinuation(t, base+"01", fx.genStates(2, 3), true)
	fx.buildContinuation(t, base+"02", fx.genStates(5, 2), false)

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	require.Len(t, dec.Files(), 3)

	states, err := dec.ReadAllStates()
	require.NoError(t, err)
	requireStatesEqual(t, fx.genStates(0, 7), states)

	// Time must be non-decreasing across the whole family.
	times, err := dec.TimeValues()
	require.NoError(t, err)
	for i := 1; i < len(times); i++ {
		require.GreaterOrEqual(t, times[i], times[i-1])
	}
}

func TestDecoderEndMarkerStopsEarly(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")
	fx.buildBase(t, base, fx.genStates(0, 1))

	// Continuation: one state, end marker, then a full slot of plausible data
	// that must never be decoded.
	words := 2*fx.stateWords() + 1
	buf := newWordBuf(fx.precision, fx.order, words)
	fx.writeState(buf, fx.genState(1))
	buf.putFloat(-999999.0)
	fx.writeState(buf, fx.genState(99))
	buf.writeFile(t, base+"01")

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	states, err := dec.ReadAllStates()
	require.NoError(t, err)
	requireStatesEqual(t, fx.genStates(0, 2), states)
}

func TestDecoderTolerantOfShortContinuation(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")
	fx.buildBase(t, base, fx.genStates(0, 2))

	// A zero-state continuation tail whose first word is not a valid time
	// terminates the stream without an error.
	fx.buildContinuation(t, base+"01", nil, false)

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	states, err := dec.ReadAllStates()
	require.NoError(t, err)
	requireStatesEqual(t, fx.genStates(0, 2), states)
}

func TestDecoderStatesIterator(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")
	fx.buildBase(t, base, fx.genStates(0, 2))
	fx.buildContinuation(t, base+"01", fx.genStates(2, 2), true)

	dec, err := Open(base)
	require.NoError(t, err)
	defer dec.Close()

	var collected []State
	for state, err := range dec.States() {
		require.NoError(t, err)
		collected = append(collected, state)
	}
	requireStatesEqual(t, fx.genStates(0, 4), collected)

	// Early break must not leak errors or panic.
	count := 0
	for _, err := range dec.States() {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(t, 2, count)
}

func TestDecoderParallelMergeOrder(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")

	// Five files with ten states each; the merged sequence must match the
	// sequential order for any scheduler interleaving.
	fx.buildBase(t, base, fx.genStates(0, 10))
	for i := 1; i < 5; i++ {
		fx.buildContinuation(t, fmt.Sprintf("%s%02d", base, i), fx.genStates(i*10, 10), i != 4)
	}

	dec, err := Open(base, WithWorkers(4))
	require.NoError(t, err)
	defer dec.Close()

	sequential, err := dec.ReadAllStates()
	require.NoError(t, err)
	require.Len(t, sequential, 50)

	for run := 0; run < 4; run++ {
		parallel, err := dec.ReadAllStatesParallel(context.Background())
		require.NoError(t, err)
		requireStatesEqual(t, sequential, parallel)
	}
}

func TestDecoderParallelPrefixOnFailure(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")

	fx.buildBase(t, base, fx.genStates(0, 2))
	fx.buildContinuation(t, base+"01", fx.genStates(2, 2), true)
	fx.buildContinuation(t, base+"02", fx.genStates(4, 2), true)

	dec, err := Open(base, WithWorkers(2))
	require.NoError(t, err)
	defer dec.Close()

	// Remove a middle file after family enumeration: its worker fails, the
	// prefix before it survives, the file after it is discarded.
	require.NoError(t, os.Remove(base+"01"))

	states, err := dec.ReadAllStatesParallel(context.Background())
	require.Error(t, err)
	requireStatesEqual(t, fx.genStates(0, 2), states)
}

func TestDecoderParallelCancellation(t *testing.T) {
	fx := defaultFixture()
	dir := t.TempDir()
	base := filepath.Join(dir, "d3plot")

	fx.buildBase(t, base, fx.genStates(0, 1))
	fx.buildContinuation(t, base+"01", fx.genStates(1, 1), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec, err := Open(base, WithWorkers(1))
	require.NoError(t, err)
	defer dec.Close()

	states, err := dec.ReadAllStatesParallel(ctx)
	require.ErrorIs(t, err, context.Canceled)
	// The base file is read before workers start; its states survive.
	requireStatesEqual(t, fx.genStates(0, 1), states)
}
