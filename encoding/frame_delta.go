// Package encoding implements the temporal delta codec used by the archive's
// quantized compression mode.
//
// The codec operates on already-quantized frames: uniform uint16 payloads
// produced by the quantizers. Frame 0 is stored raw; every later frame is
// stored as the element-wise int16 difference against the previous frame.
// Because integration happens on quantized integers, a single encode/decode
// round-trip is exact and no error accumulates across frames.
package encoding

import (
	"fmt"
	"math"
)

// FrameDeltaEncoder encodes a sequence of equally-sized quantized frames as
// one raw frame followed by clamped int16 deltas.
//
// Internal state:
//   - prev: Previous frame's payload, retained for delta calculation
//
// The encoder is not safe for concurrent use.
type FrameDeltaEncoder struct {
	prev []uint16
}

// NewFrameDeltaEncoder creates an encoder with no history; the first encoded
// frame will be raw.
func NewFrameDeltaEncoder() *FrameDeltaEncoder {
	return &FrameDeltaEncoder{}
}

// HasPrevious reports whether a frame has been encoded, i.e. whether the next
// frame can be delta-encoded.
func (e *FrameDeltaEncoder) HasPrevious() bool {
	return e.prev != nil
}

// Reset drops the retained frame so the next encode starts a new sequence.
func (e *FrameDeltaEncoder) Reset() {
	e.prev = nil
}

// EncodeFirst records the sequence's first frame and returns it unchanged.
// The frame is copied into the encoder's history; the caller keeps ownership
// of the input.
func (e *FrameDeltaEncoder) EncodeFirst(frame []uint16) []uint16 {
	e.prev = append(e.prev[:0], frame...)

	return frame
}

// EncodeDelta encodes a frame as the clamped difference against the previous
// frame and updates the history.
//
// Each element stores clamp(int32(cur) - int32(prev), -32768, 32767) as int16.
//
// Returns:
//   - []int16: Newly allocated delta payload
//   - error: Length mismatch against the previous frame, or no previous frame
func (e *FrameDeltaEncoder) EncodeDelta(frame []uint16) ([]int16, error) {
	if e.prev == nil {
		return nil, fmt.Errorf("frame delta encoder: no previous frame; encode the first frame raw")
	}
	if len(frame) != len(e.prev) {
		return nil, fmt.Errorf("frame delta encoder: frame length %d does not match previous %d", len(frame), len(e.prev))
	}

	deltas := make([]int16, len(frame))
	for i := range frame {
		delta := int32(frame[i]) - int32(e.prev[i])
		if delta > math.MaxInt16 {
			delta = math.MaxInt16
		} else if delta < math.MinInt16 {
			delta = math.MinInt16
		}
		deltas[i] = int16(delta)
	}

	e.prev = append(e.prev[:0], frame...)

	return deltas, nil
}

// FrameDeltaDecoder mirrors FrameDeltaEncoder: it integrates stored deltas
// onto the previously reconstructed frame.
//
// The decoder is not safe for concurrent use.
type FrameDeltaDecoder struct {
	prev []uint16
}

// NewFrameDeltaDecoder creates a decoder with no history.
func NewFrameDeltaDecoder() *FrameDeltaDecoder {
	return &FrameDeltaDecoder{}
}

// HasPrevious reports whether a frame has been decoded.
func (d *FrameDeltaDecoder) HasPrevious() bool {
	return d.prev != nil
}

// Reset drops the retained frame, e.g. before random access restarts replay
// from the stored full frame.
func (d *FrameDeltaDecoder) Reset() {
	d.prev = nil
}

// DecodeFirst records a raw first frame and returns a copy owned by the
// caller.
func (d *FrameDeltaDecoder) DecodeFirst(frame []uint16) []uint16 {
	d.prev = append(d.prev[:0], frame...)

	out := make([]uint16, len(frame))
	copy(out, frame)

	return out
}

// DecodeDelta integrates a delta payload onto the previous reconstructed
// frame. The arithmetic wraps the clamped encoder exactly: for any frame pair
// within clamp range the reconstruction is bit-for-bit identical to the
// encoder's input.
func (d *FrameDeltaDecoder) DecodeDelta(deltas []int16) ([]uint16, error) {
	if d.prev == nil {
		return nil, fmt.Errorf("frame delta decoder: no previous frame; decode the first frame raw")
	}
	if len(deltas) != len(d.prev) {
		return nil, fmt.Errorf("frame delta decoder: delta length %d does not match previous %d", len(deltas), len(d.prev))
	}

	out := make([]uint16, len(deltas))
	for i := range deltas {
		out[i] = uint16(int32(d.prev[i]) + int32(deltas[i])) //nolint:gosec
	}

	d.prev = append(d.prev[:0], out...)

	return out, nil
}
