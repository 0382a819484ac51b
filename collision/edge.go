package collision

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// EdgeShape is a line segment. Edges can be connected in chains or loops;
// the optional ghost vertices Vertex0 and Vertex3 give the neighbours and are
// used for smooth collision across joints.
type EdgeShape struct {
	Vertex1, Vertex2 common.Vec2

	Vertex0, Vertex3       common.Vec2
	HasVertex0, HasVertex3 bool
}

func NewEdge(v1, v2 common.Vec2) *EdgeShape {
	return &EdgeShape{Vertex1: v1, Vertex2: v2}
}

func (e *EdgeShape) Type() ShapeType { return ShapeEdge }
func (e *EdgeShape) Radius() float64 { return common.PolygonRadius }
func (e *EdgeShape) ChildCount() int { return 1 }
func (e *EdgeShape) Clone() Shape    { clone := *e; return &clone }

func (e *EdgeShape) TestPoint(common.Transform, common.Vec2) bool { return false }

// RayCast solves p1 + t*d = v1 + s*e for t and s.
func (e *EdgeShape) RayCast(input RayCastInput, xf common.Transform, _ int) (RayCastOutput, bool) {
	// Put the ray into the edge's frame of reference.
	p1 := xf.Q.ApplyT(input.P1.Sub(xf.P))
	p2 := xf.Q.ApplyT(input.P2.Sub(xf.P))
	d := p2.Sub(p1)

	v1 := e.Vertex1
	v2 := e.Vertex2
	edge := v2.Sub(v1)
	normal := common.MakeVec2(edge.Y, -edge.X).Normalized()

	numerator := normal.Dot(v1.Sub(p1))
	denominator := normal.Dot(d)
	if denominator == 0 {
		return RayCastOutput{}, false
	}

	t := numerator / denominator
	if t < 0 || input.MaxFraction < t {
		return RayCastOutput{}, false
	}

	q := p1.Add(d.Mul(t))
	rr := edge.Dot(edge)
	if rr == 0 {
		return RayCastOutput{}, false
	}
	s := q.Sub(v1).Dot(edge) / rr
	if s < 0 || 1 < s {
		return RayCastOutput{}, false
	}

	out := RayCastOutput{Fraction: t, Normal: xf.Q.Apply(normal)}
	if numerator > 0 {
		out.Normal = out.Normal.Neg()
	}
	return out, true
}

func (e *EdgeShape) ComputeAABB(xf common.Transform, _ int) AABB {
	v1 := xf.Apply(e.Vertex1)
	v2 := xf.Apply(e.Vertex2)
	r := common.MakeVec2(common.PolygonRadius, common.PolygonRadius)
	return AABB{
		LowerBound: common.MinVec2(v1, v2).Sub(r),
		UpperBound: common.MaxVec2(v1, v2).Add(r),
	}
}

// ComputeMass gives edges no mass; the centroid is the midpoint.
func (e *EdgeShape) ComputeMass(float64) MassData {
	return MassData{Center: e.Vertex1.Add(e.Vertex2).Mul(0.5)}
}

func (e *EdgeShape) ComputeDistance(xf common.Transform, p common.Vec2, _ int) (float64, common.Vec2) {
	v1 := xf.Apply(e.Vertex1)
	v2 := xf.Apply(e.Vertex2)

	d := p.Sub(v1)
	s := v2.Sub(v1)
	ds := d.Dot(s)
	if ds > 0 {
		s2 := s.Dot(s)
		if ds > s2 {
			d = p.Sub(v2)
		} else {
			d = d.Sub(s.Mul(ds / s2))
		}
	}

	d1 := math.Sqrt(d.Dot(d))
	if d1 > 0 {
		return d1, d.Mul(1 / d1)
	}
	return 0, common.Vec2Zero
}
