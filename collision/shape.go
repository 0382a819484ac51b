package collision

import (
	"errors"

	"github.com/physkit/rigid2d/common"
)

// ShapeType is the closed set of shapes the narrow-phase understands. It
// indexes the contact dispatch table, so ShapeTypeCount must stay last.
type ShapeType uint8

const (
	ShapeCircle ShapeType = iota
	ShapeEdge
	ShapePolygon
	ShapeChain
	ShapeTypeCount
)

func (t ShapeType) String() string {
	switch t {
	case ShapeCircle:
		return "circle"
	case ShapeEdge:
		return "edge"
	case ShapePolygon:
		return "polygon"
	case ShapeChain:
		return "chain"
	}
	return "unknown"
}

var (
	ErrInvalidPolygon = errors.New("collision: invalid polygon")
	ErrInvalidChain   = errors.New("collision: invalid chain")
)

// MassData holds the mass properties computed for a shape.
type MassData struct {
	Mass float64
	// Center is the centroid relative to the shape origin.
	Center common.Vec2
	// I is the rotational inertia about the shape origin.
	I float64
}

// Shape is used for collision detection. Fixtures clone the shape they are
// given, so a Shape value can be reused to build many fixtures.
type Shape interface {
	Type() ShapeType
	Radius() float64

	// ChildCount is the number of child primitives, one broad-phase proxy each.
	ChildCount() int

	Clone() Shape

	// TestPoint tests a world point for containment. Only convex shapes
	// can contain points.
	TestPoint(xf common.Transform, p common.Vec2) bool

	RayCast(input RayCastInput, xf common.Transform, childIndex int) (RayCastOutput, bool)

	ComputeAABB(xf common.Transform, childIndex int) AABB

	// ComputeMass computes mass properties about the local origin.
	ComputeMass(density float64) MassData

	// ComputeDistance returns the signed distance from p to the child and
	// the direction of the gradient.
	ComputeDistance(xf common.Transform, p common.Vec2, childIndex int) (float64, common.Vec2)
}
