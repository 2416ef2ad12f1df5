package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kood3plot/kood3plot/errs"
)

func TestRequiredBits(t *testing.T) {
	tests := []struct {
		name       string
		valueRange float64
		precision  float64
		want       int
	}{
		{"CoarseFitsEight", 2.0, 0.01, Bits8},        // 200 levels
		{"MediumFitsSixteen", 100.0, 0.01, Bits16},   // 10k levels
		{"FineNeedsThirtyTwo", 1000.0, 1e-6, Bits32}, // 1e9 levels
		{"DegenerateRange", 0.0, 0.01, Bits8},
		{"ExactBoundary", 256.0, 1.0, Bits8}, // 2^8 levels
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RequiredBits(tt.valueRange, tt.precision))
		})
	}
}

func TestLinearVector3Quantizer(t *testing.T) {
	t.Run("NotCalibrated", func(t *testing.T) {
		q := NewLinearVector3Quantizer(Bits16)
		_, err := q.Quantize([3]float64{1, 2, 3})
		require.ErrorIs(t, err, errs.ErrNotCalibrated)

		_, err = q.Dequantize([3]uint32{0, 0, 0})
		require.ErrorIs(t, err, errs.ErrNotCalibrated)

		err = q.QuantizeSlice([]float64{1, 2, 3}, make([]uint16, 3))
		require.ErrorIs(t, err, errs.ErrNotCalibrated)
	})

	t.Run("BadSample", func(t *testing.T) {
		q := NewLinearVector3Quantizer(Bits16)
		require.Error(t, q.Calibrate(nil))
		require.Error(t, q.Calibrate([]float64{1, 2}))
	})

	t.Run("RoundTripWithinBound", func(t *testing.T) {
		sample := []float64{
			-3.5, 0.0, 12.0,
			4.25, -1.0, 9.5,
			0.5, 2.5, -7.75,
		}

		q := NewLinearVector3Quantizer(Bits16)
		require.NoError(t, q.Calibrate(sample))

		for i := 0; i < len(sample); i += 3 {
			v := [3]float64{sample[i], sample[i+1], sample[i+2]}
			code, err := q.Quantize(v)
			require.NoError(t, err)

			back, err := q.Dequantize(code)
			require.NoError(t, err)

			for axis := 0; axis < 3; axis++ {
				bound := (q.Max()[axis] - q.Min()[axis]) / float64(uint64(1)<<(Bits16+1))
				require.LessOrEqual(t, math.Abs(back[axis]-v[axis]), bound)
			}
		}
	})

	t.Run("MarginCoversNearbyFrames", func(t *testing.T) {
		// Values up to 10% beyond the calibration range still round-trip
		// without clipping at the edge quantum.
		sample := []float64{0, 0, 0, 10, 10, 10}
		q := NewLinearVector3Quantizer(Bits16)
		require.NoError(t, q.Calibrate(sample))

		code, err := q.Quantize([3]float64{10.9, 10.9, 10.9})
		require.NoError(t, err)
		back, err := q.Dequantize(code)
		require.NoError(t, err)
		require.InDelta(t, 10.9, back[0], 1e-3)
	})

	t.Run("ConstantChannel", func(t *testing.T) {
		sample := []float64{5, 0, 0, 5, 1, 1}
		q := NewLinearVector3Quantizer(Bits16)
		require.NoError(t, q.Calibrate(sample))

		code, err := q.Quantize([3]float64{5, 0.5, 0.5})
		require.NoError(t, err)
		back, err := q.Dequantize(code)
		require.NoError(t, err)
		// The degenerate x channel is treated as a unit span and widened by the
		// 10% margin, giving bounds of 5 +/- 0.1.
		require.InDelta(t, 5.0, back[0], 0.2)
	})

	t.Run("SliceRoundTrip", func(t *testing.T) {
		values := []float64{-1, 0, 1, 2, 3, 4}
		q := NewLinearVector3Quantizer(Bits16)
		require.NoError(t, q.Calibrate(values))

		codes := make([]uint16, len(values))
		require.NoError(t, q.QuantizeSlice(values, codes))

		back := make([]float64, len(values))
		require.NoError(t, q.DequantizeSlice(codes, back))

		for i := range values {
			require.InDelta(t, values[i], back[i], 1e-3)
		}
	})

	t.Run("CalibrationErrorStats", func(t *testing.T) {
		sample := []float64{0, 0, 0, 1, 1, 1, 2, 2, 2}
		q := NewLinearVector3Quantizer(Bits16)
		require.NoError(t, q.Calibrate(sample))

		meta := q.Metadata()
		require.Equal(t, Bits16, meta.Bits)
		require.GreaterOrEqual(t, meta.MaxQuantizationError, meta.MeanQuantizationError)
		require.Less(t, meta.MaxQuantizationError, 1e-3)
	})
}

func TestLinearScalarQuantizer(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		sample := []float64{-0.002, 0.0001, 0.0015, 0.003}
		q := NewLinearScalarQuantizer(Bits16)
		require.NoError(t, q.Calibrate(sample))

		for _, v := range sample {
			code, err := q.Quantize(v)
			require.NoError(t, err)
			back, err := q.Dequantize(code)
			require.NoError(t, err)
			require.InDelta(t, v, back, 1e-6)
		}
	})

	t.Run("NotCalibrated", func(t *testing.T) {
		q := NewLinearScalarQuantizer(Bits16)
		_, err := q.Quantize(0.5)
		require.ErrorIs(t, err, errs.ErrNotCalibrated)
	})
}

func TestLogScalarQuantizer(t *testing.T) {
	t.Run("InvalidThreshold", func(t *testing.T) {
		_, err := NewLogScalarQuantizer(Bits16, 0)
		require.Error(t, err)
	})

	t.Run("RelativeErrorOverSixDecades", func(t *testing.T) {
		// Stress values spanning 0.1 to 100000 (six decades at the 0.1
		// threshold): relative error stays under 1% at 16 bits.
		q, err := NewLogScalarQuantizer(Bits16, 0.1)
		require.NoError(t, err)

		var sample []float64
		for exp := -1.0; exp <= 5.0; exp += 0.25 {
			sample = append(sample, math.Pow(10, exp))
		}
		require.NoError(t, q.Calibrate(sample))

		for _, v := range sample {
			code, err := q.Quantize(v)
			require.NoError(t, err)
			back, err := q.Dequantize(code)
			require.NoError(t, err)

			rel := math.Abs(v-back) / v
			require.Less(t, rel, 0.01, "value %g", v)
		}

		require.Less(t, q.MaxRelativeError(), 1.0) // percent
	})

	t.Run("BelowThresholdClampsToMinimum", func(t *testing.T) {
		q, err := NewLogScalarQuantizer(Bits16, 0.1)
		require.NoError(t, err)
		require.NoError(t, q.Calibrate([]float64{0.5, 10, 100}))

		code, err := q.Quantize(0.001)
		require.NoError(t, err)
		require.Equal(t, uint32(0), code)

		back, err := q.Dequantize(code)
		require.NoError(t, err)
		require.InDelta(t, 0.1, back, 1e-9)
	})

	t.Run("NotCalibrated", func(t *testing.T) {
		q, err := NewLogScalarQuantizer(Bits16, 0.1)
		require.NoError(t, err)

		_, err = q.Quantize(1.0)
		require.ErrorIs(t, err, errs.ErrNotCalibrated)
	})

	t.Run("Metadata", func(t *testing.T) {
		q, err := NewLogScalarQuantizer(Bits16, 0.1)
		require.NoError(t, err)
		require.NoError(t, q.Calibrate([]float64{1, 10, 1000}))

		meta := q.Metadata()
		require.Equal(t, 0.1, meta.MinValue)
		require.InDelta(t, 1100.0, meta.MaxValue, 1e-9)
		require.InDelta(t, math.Log(0.1), meta.LogMin, 1e-12)
		require.Positive(t, meta.LogRange)
	})
}
