package collision

import (
	"fmt"

	"github.com/physkit/rigid2d/common"
)

// ChainShape is a free form sequence of line segments with two-sided
// collision. Each segment is a child, so a chain owns one proxy per segment.
// Chains have no mass and cannot contain points.
type ChainShape struct {
	vertices []common.Vec2

	prevVertex, nextVertex       common.Vec2
	hasPrevVertex, hasNextVertex bool
}

func validateChain(vertices []common.Vec2, min int) error {
	if len(vertices) < min {
		return fmt.Errorf("%w: need at least %d vertices, got %d", ErrInvalidChain, min, len(vertices))
	}
	for i := 1; i < len(vertices); i++ {
		if vertices[i-1].DistanceSquared(vertices[i]) <= common.LinearSlop*common.LinearSlop {
			return fmt.Errorf("%w: vertices %d and %d are too close", ErrInvalidChain, i-1, i)
		}
	}
	return nil
}

// NewChain builds an open chain.
func NewChain(vertices []common.Vec2) (*ChainShape, error) {
	if err := validateChain(vertices, 2); err != nil {
		return nil, err
	}
	c := &ChainShape{vertices: make([]common.Vec2, len(vertices))}
	copy(c.vertices, vertices)
	return c, nil
}

// NewLoop builds a closed chain; the first vertex is repeated at the end and
// the ghost vertices wrap around.
func NewLoop(vertices []common.Vec2) (*ChainShape, error) {
	if err := validateChain(vertices, 3); err != nil {
		return nil, err
	}
	n := len(vertices) + 1
	c := &ChainShape{vertices: make([]common.Vec2, n)}
	copy(c.vertices, vertices)
	c.vertices[n-1] = c.vertices[0]
	c.prevVertex = c.vertices[n-2]
	c.nextVertex = c.vertices[1]
	c.hasPrevVertex = true
	c.hasNextVertex = true
	return c, nil
}

// SetPrevVertex sets the ghost vertex before the first one, for connecting
// chains together.
func (c *ChainShape) SetPrevVertex(v common.Vec2) {
	c.prevVertex = v
	c.hasPrevVertex = true
}

// SetNextVertex sets the ghost vertex after the last one.
func (c *ChainShape) SetNextVertex(v common.Vec2) {
	c.nextVertex = v
	c.hasNextVertex = true
}

func (c *ChainShape) Vertices() []common.Vec2 { return c.vertices }

func (c *ChainShape) Type() ShapeType { return ShapeChain }
func (c *ChainShape) Radius() float64 { return common.PolygonRadius }
func (c *ChainShape) ChildCount() int { return len(c.vertices) - 1 }

func (c *ChainShape) Clone() Shape {
	clone := *c
	clone.vertices = append([]common.Vec2(nil), c.vertices...)
	return &clone
}

// ChildEdge returns segment index as an edge with its ghost vertices.
func (c *ChainShape) ChildEdge(index int) *EdgeShape {
	common.Assert(0 <= index && index < len(c.vertices)-1)
	e := &EdgeShape{
		Vertex1: c.vertices[index],
		Vertex2: c.vertices[index+1],
	}
	if index > 0 {
		e.Vertex0 = c.vertices[index-1]
		e.HasVertex0 = true
	} else {
		e.Vertex0 = c.prevVertex
		e.HasVertex0 = c.hasPrevVertex
	}
	if index < len(c.vertices)-2 {
		e.Vertex3 = c.vertices[index+2]
		e.HasVertex3 = true
	} else {
		e.Vertex3 = c.nextVertex
		e.HasVertex3 = c.hasNextVertex
	}
	return e
}

func (c *ChainShape) TestPoint(common.Transform, common.Vec2) bool { return false }

func (c *ChainShape) RayCast(input RayCastInput, xf common.Transform, childIndex int) (RayCastOutput, bool) {
	e := EdgeShape{Vertex1: c.vertices[childIndex], Vertex2: c.vertices[childIndex+1]}
	return e.RayCast(input, xf, 0)
}

func (c *ChainShape) ComputeAABB(xf common.Transform, childIndex int) AABB {
	v1 := xf.Apply(c.vertices[childIndex])
	v2 := xf.Apply(c.vertices[childIndex+1])
	return AABB{LowerBound: common.MinVec2(v1, v2), UpperBound: common.MaxVec2(v1, v2)}
}

func (c *ChainShape) ComputeMass(float64) MassData { return MassData{} }

func (c *ChainShape) ComputeDistance(xf common.Transform, p common.Vec2, childIndex int) (float64, common.Vec2) {
	return c.ChildEdge(childIndex).ComputeDistance(xf, p, 0)
}
