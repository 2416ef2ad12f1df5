package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameDeltaEncodeDecode(t *testing.T) {
	t.Run("KnownDeltas", func(t *testing.T) {
		q0 := []uint16{0, 100, 65000}
		q1 := []uint16{5, 90, 64000}

		enc := NewFrameDeltaEncoder()
		require.False(t, enc.HasPrevious())

		first := enc.EncodeFirst(q0)
		require.Equal(t, q0, first)
		require.True(t, enc.HasPrevious())

		deltas, err := enc.EncodeDelta(q1)
		require.NoError(t, err)
		require.Equal(t, []int16{5, -10, -1000}, deltas)

		dec := NewFrameDeltaDecoder()
		r0 := dec.DecodeFirst(q0)
		require.Equal(t, q0, r0)

		r1, err := dec.DecodeDelta(deltas)
		require.NoError(t, err)
		require.Equal(t, q1, r1)
	})

	t.Run("ExactOverManyFrames", func(t *testing.T) {
		// Delta reconstruction is bit-for-bit exact with no accumulation.
		frames := make([][]uint16, 20)
		for k := range frames {
			frames[k] = make([]uint16, 64)
			for i := range frames[k] {
				frames[k][i] = uint16((k*37 + i*13) % 65536) //nolint:gosec
			}
		}

		enc := NewFrameDeltaEncoder()
		dec := NewFrameDeltaDecoder()

		dec.DecodeFirst(enc.EncodeFirst(frames[0]))
		for k := 1; k < len(frames); k++ {
			deltas, err := enc.EncodeDelta(frames[k])
			require.NoError(t, err)

			back, err := dec.DecodeDelta(deltas)
			require.NoError(t, err)
			require.Equal(t, frames[k], back, "frame %d", k)
		}
	})

	t.Run("DeltaWithoutFirstFrame", func(t *testing.T) {
		enc := NewFrameDeltaEncoder()
		_, err := enc.EncodeDelta([]uint16{1})
		require.Error(t, err)

		dec := NewFrameDeltaDecoder()
		_, err = dec.DecodeDelta([]int16{1})
		require.Error(t, err)
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		enc := NewFrameDeltaEncoder()
		enc.EncodeFirst([]uint16{1, 2})
		_, err := enc.EncodeDelta([]uint16{1, 2, 3})
		require.Error(t, err)

		dec := NewFrameDeltaDecoder()
		dec.DecodeFirst([]uint16{1, 2})
		_, err = dec.DecodeDelta([]int16{1})
		require.Error(t, err)
	})

	t.Run("Reset", func(t *testing.T) {
		enc := NewFrameDeltaEncoder()
		enc.EncodeFirst([]uint16{1})
		enc.Reset()
		require.False(t, enc.HasPrevious())
	})

	t.Run("ClampAtInt16Range", func(t *testing.T) {
		enc := NewFrameDeltaEncoder()
		enc.EncodeFirst([]uint16{0, 65535})

		deltas, err := enc.EncodeDelta([]uint16{65535, 0})
		require.NoError(t, err)
		require.Equal(t, []int16{32767, -32768}, deltas)
	})
}
