package collision

import (
	"fmt"
	"math"

	"github.com/physkit/rigid2d/common"
)

// PolygonShape is a solid convex polygon with counter-clockwise winding and
// at most common.MaxPolygonVertices vertices.
type PolygonShape struct {
	centroid common.Vec2
	vertices [common.MaxPolygonVertices]common.Vec2
	normals  [common.MaxPolygonVertices]common.Vec2
	count    int
}

// NewBox builds an axis aligned box with half-widths hx and hy.
func NewBox(hx, hy float64) *PolygonShape {
	p := &PolygonShape{count: 4}
	p.vertices[0] = common.MakeVec2(-hx, -hy)
	p.vertices[1] = common.MakeVec2(hx, -hy)
	p.vertices[2] = common.MakeVec2(hx, hy)
	p.vertices[3] = common.MakeVec2(-hx, hy)
	p.normals[0] = common.MakeVec2(0, -1)
	p.normals[1] = common.MakeVec2(1, 0)
	p.normals[2] = common.MakeVec2(0, 1)
	p.normals[3] = common.MakeVec2(-1, 0)
	return p
}

// NewOrientedBox builds a box centred at center and rotated by angle, both in
// body coordinates.
func NewOrientedBox(hx, hy float64, center common.Vec2, angle float64) *PolygonShape {
	p := NewBox(hx, hy)
	p.centroid = center
	xf := common.MakeTransform(center, angle)
	for i := 0; i < p.count; i++ {
		p.vertices[i] = xf.Apply(p.vertices[i])
		p.normals[i] = xf.Q.Apply(p.normals[i])
	}
	return p
}

// NewPolygon computes the convex hull of points with gift wrapping.
// Points closer than half a linear slop are welded. Collinear points are
// dropped. Fewer than three hull points is an error.
func NewPolygon(points []common.Vec2) (*PolygonShape, error) {
	if len(points) < 3 || len(points) > common.MaxPolygonVertices {
		return nil, fmt.Errorf("%w: %d vertices", ErrInvalidPolygon, len(points))
	}

	var ps [common.MaxPolygonVertices]common.Vec2
	n := 0
	const weld = (0.5 * common.LinearSlop) * (0.5 * common.LinearSlop)
	for _, v := range points {
		unique := true
		for j := 0; j < n; j++ {
			if v.DistanceSquared(ps[j]) < weld {
				unique = false
				break
			}
		}
		if unique {
			ps[n] = v
			n++
		}
	}
	if n < 3 {
		return nil, fmt.Errorf("%w: vertices too close together", ErrInvalidPolygon)
	}

	// Start from the rightmost point, lowest on ties; it is on the hull.
	i0 := 0
	x0 := ps[0].X
	for i := 1; i < n; i++ {
		x := ps[i].X
		if x > x0 || (x == x0 && ps[i].Y < ps[i0].Y) {
			i0 = i
			x0 = x
		}
	}

	var hull [common.MaxPolygonVertices]int
	m := 0
	ih := i0
	for {
		if m >= common.MaxPolygonVertices {
			return nil, fmt.Errorf("%w: hull did not close", ErrInvalidPolygon)
		}
		hull[m] = ih

		ie := 0
		for j := 1; j < n; j++ {
			if ie == ih {
				ie = j
				continue
			}
			r := ps[ie].Sub(ps[hull[m]])
			v := ps[j].Sub(ps[hull[m]])
			c := r.Cross(v)
			if c < 0 {
				ie = j
			}
			// Collinear, keep the farthest.
			if c == 0 && v.LengthSquared() > r.LengthSquared() {
				ie = j
			}
		}

		m++
		ih = ie
		if ie == i0 {
			break
		}
	}
	if m < 3 {
		return nil, fmt.Errorf("%w: points are collinear", ErrInvalidPolygon)
	}

	p := &PolygonShape{count: m}
	for i := 0; i < m; i++ {
		p.vertices[i] = ps[hull[i]]
	}
	for i := 0; i < m; i++ {
		edge := p.vertices[(i+1)%m].Sub(p.vertices[i])
		if edge.LengthSquared() <= common.Epsilon*common.Epsilon {
			return nil, fmt.Errorf("%w: degenerate edge %d", ErrInvalidPolygon, i)
		}
		p.normals[i] = edge.CrossScalar(1).Normalized()
	}

	c, ok := polygonCentroid(p.vertices[:m])
	if !ok {
		return nil, fmt.Errorf("%w: zero area", ErrInvalidPolygon)
	}
	p.centroid = c
	return p, nil
}

func polygonCentroid(vs []common.Vec2) (common.Vec2, bool) {
	var c common.Vec2
	area := 0.0

	// Reference point inside the polygon keeps the triangles well conditioned.
	var pRef common.Vec2
	for _, v := range vs {
		pRef = pRef.Add(v)
	}
	pRef = pRef.Mul(1.0 / float64(len(vs)))

	const inv3 = 1.0 / 3.0
	for i := range vs {
		p2 := vs[i]
		p3 := vs[(i+1)%len(vs)]
		e1 := p2.Sub(pRef)
		e2 := p3.Sub(pRef)
		triangleArea := 0.5 * e1.Cross(e2)
		area += triangleArea
		c = c.Add(pRef.Add(p2).Add(p3).Mul(triangleArea * inv3))
	}
	if area <= common.Epsilon {
		return common.Vec2Zero, false
	}
	return c.Mul(1.0 / area), true
}

func (p *PolygonShape) Type() ShapeType       { return ShapePolygon }
func (p *PolygonShape) Radius() float64       { return common.PolygonRadius }
func (p *PolygonShape) ChildCount() int       { return 1 }
func (p *PolygonShape) Clone() Shape          { clone := *p; return &clone }
func (p *PolygonShape) Count() int            { return p.count }
func (p *PolygonShape) Centroid() common.Vec2 { return p.centroid }

func (p *PolygonShape) Vertices() []common.Vec2 { return p.vertices[:p.count] }
func (p *PolygonShape) Normals() []common.Vec2  { return p.normals[:p.count] }

func (p *PolygonShape) TestPoint(xf common.Transform, pt common.Vec2) bool {
	pLocal := xf.Q.ApplyT(pt.Sub(xf.P))
	for i := 0; i < p.count; i++ {
		if p.normals[i].Dot(pLocal.Sub(p.vertices[i])) > 0 {
			return false
		}
	}
	return true
}

func (p *PolygonShape) RayCast(input RayCastInput, xf common.Transform, _ int) (RayCastOutput, bool) {
	p1 := xf.Q.ApplyT(input.P1.Sub(xf.P))
	p2 := xf.Q.ApplyT(input.P2.Sub(xf.P))
	d := p2.Sub(p1)

	lower, upper := 0.0, input.MaxFraction
	index := -1

	for i := 0; i < p.count; i++ {
		// p = p1 + a * d
		// dot(normal, p - v) = 0
		// dot(normal, p1 - v) + a * dot(normal, d) = 0
		numerator := p.normals[i].Dot(p.vertices[i].Sub(p1))
		denominator := p.normals[i].Dot(d)

		if denominator == 0 {
			if numerator < 0 {
				return RayCastOutput{}, false
			}
		} else if denominator < 0 && numerator < lower*denominator {
			// The segment enters this half-space.
			lower = numerator / denominator
			index = i
		} else if denominator > 0 && numerator < upper*denominator {
			// The segment exits this half-space.
			upper = numerator / denominator
		}

		if upper < lower {
			return RayCastOutput{}, false
		}
	}

	if index >= 0 {
		return RayCastOutput{Fraction: lower, Normal: xf.Q.Apply(p.normals[index])}, true
	}
	return RayCastOutput{}, false
}

func (p *PolygonShape) ComputeAABB(xf common.Transform, _ int) AABB {
	lower := xf.Apply(p.vertices[0])
	upper := lower
	for i := 1; i < p.count; i++ {
		v := xf.Apply(p.vertices[i])
		lower = common.MinVec2(lower, v)
		upper = common.MaxVec2(upper, v)
	}
	r := common.MakeVec2(common.PolygonRadius, common.PolygonRadius)
	return AABB{LowerBound: lower.Sub(r), UpperBound: upper.Add(r)}
}

// ComputeMass integrates over triangles fanned from the vertex average:
//
//	I = rho * int(x*x + y*y) dA
//
// shifted to the shape origin with the parallel axis theorem.
func (p *PolygonShape) ComputeMass(density float64) MassData {
	var s common.Vec2
	for i := 0; i < p.count; i++ {
		s = s.Add(p.vertices[i])
	}
	s = s.Mul(1.0 / float64(p.count))

	var center common.Vec2
	area := 0.0
	inertia := 0.0
	const inv3 = 1.0 / 3.0

	for i := 0; i < p.count; i++ {
		e1 := p.vertices[i].Sub(s)
		e2 := p.vertices[(i+1)%p.count].Sub(s)
		d := e1.Cross(e2)

		triangleArea := 0.5 * d
		area += triangleArea
		center = center.Add(e1.Add(e2).Mul(triangleArea * inv3))

		intx2 := e1.X*e1.X + e2.X*e1.X + e2.X*e2.X
		inty2 := e1.Y*e1.Y + e2.Y*e1.Y + e2.Y*e2.Y
		inertia += (0.25 * inv3 * d) * (intx2 + inty2)
	}

	common.Assert(area > common.Epsilon)
	center = center.Mul(1.0 / area)

	md := MassData{Mass: density * area}
	md.Center = center.Add(s)
	md.I = density*inertia + md.Mass*(md.Center.Dot(md.Center)-center.Dot(center))
	return md
}

func (p *PolygonShape) ComputeDistance(xf common.Transform, pt common.Vec2, _ int) (float64, common.Vec2) {
	pLocal := xf.Q.ApplyT(pt.Sub(xf.P))

	maxDistance := -common.MaxFloat
	normalForMax := pLocal
	for i := 0; i < p.count; i++ {
		dot := p.normals[i].Dot(pLocal.Sub(p.vertices[i]))
		if dot > maxDistance {
			maxDistance = dot
			normalForMax = p.normals[i]
		}
	}

	if maxDistance <= 0 {
		return maxDistance, xf.Q.Apply(normalForMax)
	}

	// Outside: the closest feature may be a vertex.
	minDistance := normalForMax
	minDistance2 := maxDistance * maxDistance
	for i := 0; i < p.count; i++ {
		dv := pLocal.Sub(p.vertices[i])
		if d2 := dv.Dot(dv); minDistance2 > d2 {
			minDistance = dv
			minDistance2 = d2
		}
	}
	return math.Sqrt(minDistance2), xf.Q.Apply(minDistance).Normalized()
}

// Validate checks convexity. Hulls built by NewPolygon always pass.
func (p *PolygonShape) Validate() bool {
	for i := 0; i < p.count; i++ {
		i2 := (i + 1) % p.count
		v0 := p.vertices[i]
		e := p.vertices[i2].Sub(v0)
		for j := 0; j < p.count; j++ {
			if j == i || j == i2 {
				continue
			}
			if e.Cross(p.vertices[j].Sub(v0)) < 0 {
				return false
			}
		}
	}
	return true
}
