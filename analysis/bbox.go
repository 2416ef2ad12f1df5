// Package analysis provides geometric helpers over decoded meshes and states.
package analysis

import (
	"math"

	"github.com/kood3plot/kood3plot/d3plot"
)

// Point3D is a point or extent in model space.
type Point3D struct {
	X, Y, Z float64
}

// BoundingBox is an axis-aligned box over a mesh, optionally displaced by a
// state's displacement array.
type BoundingBox struct {
	Min Point3D
	Max Point3D
}

// NewBoundingBox returns an empty (invalid) box that grows with Expand.
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		Min: Point3D{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: Point3D{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

// BoundingBoxOf computes the box of a mesh's undeformed node coordinates.
func BoundingBoxOf(mesh *d3plot.Mesh) BoundingBox {
	box := NewBoundingBox()
	for _, n := range mesh.Nodes {
		box.Expand(Point3D{n.X, n.Y, n.Z})
	}

	return box
}

// DisplacedBoundingBox computes the box of a mesh deformed by a state's
// displacement array (interleaved x, y, z per node). Nodes without a
// displacement entry contribute their undeformed position.
func DisplacedBoundingBox(mesh *d3plot.Mesh, state *d3plot.State) BoundingBox {
	box := NewBoundingBox()
	disp := state.NodeDisplacements

	for i, n := range mesh.Nodes {
		p := Point3D{n.X, n.Y, n.Z}
		if (i+1)*3 <= len(disp) {
			p.X += disp[i*3]
			p.Y += disp[i*3+1]
			p.Z += disp[i*3+2]
		}
		box.Expand(p)
	}

	return box
}

// Expand grows the box to include a point.
func (b *BoundingBox) Expand(p Point3D) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Min.Z = math.Min(b.Min.Z, p.Z)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	b.Max.Z = math.Max(b.Max.Z, p.Z)
}

// IsValid reports whether the box contains at least one point.
func (b *BoundingBox) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Center returns the box midpoint.
func (b *BoundingBox) Center() Point3D {
	return Point3D{
		X: (b.Min.X + b.Max.X) * 0.5,
		Y: (b.Min.Y + b.Max.Y) * 0.5,
		Z: (b.Min.Z + b.Max.Z) * 0.5,
	}
}

// Size returns the box extents along each axis.
func (b *BoundingBox) Size() Point3D {
	return Point3D{
		X: b.Max.X - b.Min.X,
		Y: b.Max.Y - b.Min.Y,
		Z: b.Max.Z - b.Min.Z,
	}
}

// Diagonal returns the box's space diagonal length.
func (b *BoundingBox) Diagonal() float64 {
	s := b.Size()
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Extent returns the largest single-axis extent.
func (b *BoundingBox) Extent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Contains reports whether a point lies inside the box (inclusive).
func (b *BoundingBox) Contains(p Point3D) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects reports whether two boxes overlap.
func (b *BoundingBox) Intersects(other *BoundingBox) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}
