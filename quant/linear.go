package quant

import (
	"fmt"
	"math"

	"github.com/kood3plot/kood3plot/errs"
)

// LinearVector3Quantizer quantizes three-axis vector quantities (displacement,
// velocity) with an independent affine map per axis. Bounds are learned from
// the calibration sample and widened by a 10% margin on each side; values
// outside the widened bounds clamp to the edge quanta.
type LinearVector3Quantizer struct {
	bits       int
	calibrated bool

	min [3]float64
	max [3]float64

	maxErr  float64
	meanErr float64
}

// NewLinearVector3Quantizer creates a per-axis linear quantizer at the given
// bit depth (8, 16 or 32).
func NewLinearVector3Quantizer(bits int) *LinearVector3Quantizer {
	return &LinearVector3Quantizer{bits: bits}
}

// Calibrate learns per-axis bounds from an interleaved x,y,z sample and
// widens them by the calibration margin. Calling it again replaces the
// previous calibration.
//
// Parameters:
//   - sample: Interleaved vector components; length must be a positive
//     multiple of 3
func (q *LinearVector3Quantizer) Calibrate(sample []float64) error {
	if len(sample) == 0 || len(sample)%3 != 0 {
		return fmt.Errorf("linear vector quantizer: calibration sample length %d is not a positive multiple of 3", len(sample))
	}

	for axis := 0; axis < 3; axis++ {
		q.min[axis] = math.MaxFloat64
		q.max[axis] = -math.MaxFloat64
	}

	for i := 0; i < len(sample); i += 3 {
		for axis := 0; axis < 3; axis++ {
			v := sample[i+axis]
			q.min[axis] = math.Min(q.min[axis], v)
			q.max[axis] = math.Max(q.max[axis], v)
		}
	}

	for axis := 0; axis < 3; axis++ {
		span := q.max[axis] - q.min[axis]
		if span < degenerateRange {
			span = 1.0
		}
		q.min[axis] -= span * calibrationMargin
		q.max[axis] += span * calibrationMargin
	}

	q.calibrated = true
	q.measureCalibrationError(sample)

	return nil
}

// measureCalibrationError round-trips the calibration sample and records the
// worst and mean absolute vector error.
func (q *LinearVector3Quantizer) measureCalibrationError(sample []float64) {
	var maxErr, sumErr float64

	count := len(sample) / 3
	for i := 0; i < count; i++ {
		v := [3]float64{sample[i*3], sample[i*3+1], sample[i*3+2]}
		code, _ := q.Quantize(v)
		back, _ := q.Dequantize(code)

		dx := back[0] - v[0]
		dy := back[1] - v[1]
		dz := back[2] - v[2]
		err := math.Sqrt(dx*dx + dy*dy + dz*dz)

		maxErr = math.Max(maxErr, err)
		sumErr += err
	}

	q.maxErr = maxErr
	q.meanErr = sumErr / float64(count)
}

// IsCalibrated reports whether Calibrate has run.
func (q *LinearVector3Quantizer) IsCalibrated() bool { return q.calibrated }

// Bits returns the configured bit depth.
func (q *LinearVector3Quantizer) Bits() int { return q.bits }

// Min returns the calibrated per-axis lower bounds.
func (q *LinearVector3Quantizer) Min() [3]float64 { return q.min }

// Max returns the calibrated per-axis upper bounds.
func (q *LinearVector3Quantizer) Max() [3]float64 { return q.max }

// SetBounds installs externally stored calibration bounds, e.g. when an
// archive reader restores a quantizer from metadata.
func (q *LinearVector3Quantizer) SetBounds(min, max [3]float64) {
	q.min = min
	q.max = max
	q.calibrated = true
}

// Quantize maps one vector to per-axis code points.
func (q *LinearVector3Quantizer) Quantize(v [3]float64) ([3]uint32, error) {
	if !q.calibrated {
		return [3]uint32{}, errs.ErrNotCalibrated
	}

	maxQ := float64(maxQuantum(q.bits))

	var out [3]uint32
	for axis := 0; axis < 3; axis++ {
		span := q.max[axis] - q.min[axis]
		normalized := 0.5
		if span > degenerateRange {
			normalized = clamp01((v[axis] - q.min[axis]) / span)
		}
		out[axis] = uint32(math.Round(normalized * maxQ))
	}

	return out, nil
}

// Dequantize maps per-axis code points back to a vector by the inverse affine
// map.
func (q *LinearVector3Quantizer) Dequantize(code [3]uint32) ([3]float64, error) {
	if !q.calibrated {
		return [3]float64{}, errs.ErrNotCalibrated
	}

	maxQ := float64(maxQuantum(q.bits))

	var out [3]float64
	for axis := 0; axis < 3; axis++ {
		out[axis] = q.min[axis] + (float64(code[axis])/maxQ)*(q.max[axis]-q.min[axis])
	}

	return out, nil
}

// QuantizeSlice quantizes an interleaved x,y,z array into dst. The bit depth
// must not exceed 16; dst must have the same length as values.
func (q *LinearVector3Quantizer) QuantizeSlice(values []float64, dst []uint16) error {
	if !q.calibrated {
		return errs.ErrNotCalibrated
	}
	if q.bits > Bits16 {
		return fmt.Errorf("linear vector quantizer: %d-bit codes do not fit uint16 payloads", q.bits)
	}
	if len(dst) != len(values) || len(values)%3 != 0 {
		return fmt.Errorf("linear vector quantizer: slice length mismatch (%d values, %d codes)", len(values), len(dst))
	}

	maxQ := float64(maxQuantum(q.bits))

	for i := 0; i < len(values); i += 3 {
		for axis := 0; axis < 3; axis++ {
			span := q.max[axis] - q.min[axis]
			normalized := 0.5
			if span > degenerateRange {
				normalized = clamp01((values[i+axis] - q.min[axis]) / span)
			}
			dst[i+axis] = uint16(math.Round(normalized * maxQ))
		}
	}

	return nil
}

// DequantizeSlice reconstructs an interleaved x,y,z array from codes into dst.
func (q *LinearVector3Quantizer) DequantizeSlice(codes []uint16, dst []float64) error {
	if !q.calibrated {
		return errs.ErrNotCalibrated
	}
	if len(dst) != len(codes) || len(codes)%3 != 0 {
		return fmt.Errorf("linear vector quantizer: slice length mismatch (%d codes, %d values)", len(codes), len(dst))
	}

	maxQ := float64(maxQuantum(q.bits))

	for i := 0; i < len(codes); i += 3 {
		for axis := 0; axis < 3; axis++ {
			dst[i+axis] = q.min[axis] + (float64(codes[i+axis])/maxQ)*(q.max[axis]-q.min[axis])
		}
	}

	return nil
}

// Metadata returns the calibrated parameters for archive storage.
func (q *LinearVector3Quantizer) Metadata() Metadata {
	minVal := math.Min(q.min[0], math.Min(q.min[1], q.min[2]))
	maxVal := math.Max(q.max[0], math.Max(q.max[1], q.max[2]))

	return Metadata{
		Bits:                  q.bits,
		MinValue:              minVal,
		MaxValue:              maxVal,
		MaxQuantizationError:  q.maxErr,
		MeanQuantizationError: q.meanErr,
	}
}

// LinearScalarQuantizer quantizes a single-channel linear quantity (strain)
// the same way LinearVector3Quantizer handles one axis.
type LinearScalarQuantizer struct {
	bits       int
	calibrated bool

	min float64
	max float64
}

// NewLinearScalarQuantizer creates a single-channel linear quantizer at the
// given bit depth.
func NewLinearScalarQuantizer(bits int) *LinearScalarQuantizer {
	return &LinearScalarQuantizer{bits: bits}
}

// Calibrate learns bounds from the sample and widens them by the calibration
// margin.
func (q *LinearScalarQuantizer) Calibrate(sample []float64) error {
	if len(sample) == 0 {
		return fmt.Errorf("linear scalar quantizer: empty calibration sample")
	}

	q.min = math.MaxFloat64
	q.max = -math.MaxFloat64
	for _, v := range sample {
		q.min = math.Min(q.min, v)
		q.max = math.Max(q.max, v)
	}

	span := q.max - q.min
	if span < degenerateRange {
		span = 1.0
	}
	q.min -= span * calibrationMargin
	q.max += span * calibrationMargin

	q.calibrated = true

	return nil
}

// IsCalibrated reports whether Calibrate has run.
func (q *LinearScalarQuantizer) IsCalibrated() bool { return q.calibrated }

// Bits returns the configured bit depth.
func (q *LinearScalarQuantizer) Bits() int { return q.bits }

// Quantize maps one value to a code point.
func (q *LinearScalarQuantizer) Quantize(v float64) (uint32, error) {
	if !q.calibrated {
		return 0, errs.ErrNotCalibrated
	}

	span := q.max - q.min
	normalized := 0.5
	if span > degenerateRange {
		normalized = clamp01((v - q.min) / span)
	}

	return uint32(math.Round(normalized * float64(maxQuantum(q.bits)))), nil
}

// Dequantize maps a code point back to a value.
func (q *LinearScalarQuantizer) Dequantize(code uint32) (float64, error) {
	if !q.calibrated {
		return 0, errs.ErrNotCalibrated
	}

	return q.min + (float64(code)/float64(maxQuantum(q.bits)))*(q.max-q.min), nil
}

// Metadata returns the calibrated parameters for archive storage.
func (q *LinearScalarQuantizer) Metadata() Metadata {
	return Metadata{
		Bits:     q.bits,
		MinValue: q.min,
		MaxValue: q.max,
	}
}
