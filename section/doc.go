// Package section defines the on-disk primitives of the archive container:
// the fixed file header and trailer, and the serialized directory of groups,
// typed attributes, and chunked datasets.
//
// The container layout is header, then chunk payloads appended in write
// order, then the directory, then the trailer locating the directory. Both
// the directory and every dataset's raw data carry xxhash64 checksums so
// corruption surfaces as a structured error instead of garbage values.
//
// Everything here is a pure encode/parse pair over an endian.EndianEngine;
// file handling and compression live in the archive package.
package section

import "math"

func floatBits(v float64) uint64 {
	return math.Float64bits(v)
}

func floatFromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}
