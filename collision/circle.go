package collision

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// CircleShape is a solid circle.
type CircleShape struct {
	P      common.Vec2
	radius float64
}

func NewCircle(center common.Vec2, radius float64) *CircleShape {
	return &CircleShape{P: center, radius: radius}
}

func (c *CircleShape) Type() ShapeType     { return ShapeCircle }
func (c *CircleShape) Radius() float64     { return c.radius }
func (c *CircleShape) SetRadius(r float64) { c.radius = r }
func (c *CircleShape) ChildCount() int     { return 1 }
func (c *CircleShape) Clone() Shape        { clone := *c; return &clone }

func (c *CircleShape) TestPoint(xf common.Transform, p common.Vec2) bool {
	center := xf.Apply(c.P)
	d := p.Sub(center)
	return d.Dot(d) <= c.radius*c.radius
}

// RayCast follows van den Bergen, Collision Detection in Interactive 3D
// Environments, section 3.1.2: x = s + a*r, |x| = radius.
func (c *CircleShape) RayCast(input RayCastInput, xf common.Transform, _ int) (RayCastOutput, bool) {
	position := xf.Apply(c.P)
	s := input.P1.Sub(position)
	b := s.Dot(s) - c.radius*c.radius

	r := input.P2.Sub(input.P1)
	cr := s.Dot(r)
	rr := r.Dot(r)
	sigma := cr*cr - rr*b

	// Negative discriminant or degenerate segment.
	if sigma < 0 || rr < common.Epsilon {
		return RayCastOutput{}, false
	}

	a := -(cr + math.Sqrt(sigma))
	if 0 <= a && a <= input.MaxFraction*rr {
		a /= rr
		return RayCastOutput{Fraction: a, Normal: s.Add(r.Mul(a)).Normalized()}, true
	}
	return RayCastOutput{}, false
}

func (c *CircleShape) ComputeAABB(xf common.Transform, _ int) AABB {
	p := xf.Apply(c.P)
	r := common.MakeVec2(c.radius, c.radius)
	return AABB{LowerBound: p.Sub(r), UpperBound: p.Add(r)}
}

func (c *CircleShape) ComputeMass(density float64) MassData {
	mass := density * common.Pi * c.radius * c.radius
	return MassData{
		Mass:   mass,
		Center: c.P,
		I:      mass * (0.5*c.radius*c.radius + c.P.Dot(c.P)),
	}
}

func (c *CircleShape) ComputeDistance(xf common.Transform, p common.Vec2, _ int) (float64, common.Vec2) {
	d := p.Sub(xf.Apply(c.P))
	length := d.Length()
	if length == 0 {
		return -c.radius, common.Vec2Zero
	}
	return length - c.radius, d.Mul(1 / length)
}
