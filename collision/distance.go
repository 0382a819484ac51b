package collision

import "github.com/physkit/rigid2d/common"

// DistanceProxy is a convex vertex cloud with a radius, the form in which
// GJK sees any shape child.
type DistanceProxy struct {
	Vertices []common.Vec2
	Radius   float64
}

// MakeDistanceProxy wraps one child of shape.
func MakeDistanceProxy(shape Shape, index int) DistanceProxy {
	switch s := shape.(type) {
	case *CircleShape:
		return DistanceProxy{Vertices: []common.Vec2{s.P}, Radius: s.radius}
	case *PolygonShape:
		return DistanceProxy{Vertices: s.vertices[:s.count], Radius: common.PolygonRadius}
	case *ChainShape:
		common.Assert(0 <= index && index < len(s.vertices)-1)
		return DistanceProxy{
			Vertices: []common.Vec2{s.vertices[index], s.vertices[index+1]},
			Radius:   common.PolygonRadius,
		}
	case *EdgeShape:
		return DistanceProxy{Vertices: []common.Vec2{s.Vertex1, s.Vertex2}, Radius: common.PolygonRadius}
	}
	panic("collision: unknown shape type " + shape.Type().String())
}

// Support returns the index of the vertex farthest along d.
func (p *DistanceProxy) Support(d common.Vec2) int {
	best := 0
	bestValue := p.Vertices[0].Dot(d)
	for i := 1; i < len(p.Vertices); i++ {
		if v := p.Vertices[i].Dot(d); v > bestValue {
			best = i
			bestValue = v
		}
	}
	return best
}

// SimplexCache warm starts Distance. Set Count to zero on first call.
type SimplexCache struct {
	Metric float64 // length or area
	Count  int
	IndexA [3]int
	IndexB [3]int
}

// DistanceInput feeds Distance. With UseRadii the proxies are inflated by
// their radii; otherwise the core shapes are measured.
type DistanceInput struct {
	ProxyA, ProxyB         DistanceProxy
	TransformA, TransformB common.Transform
	UseRadii               bool
}

type DistanceOutput struct {
	PointA, PointB common.Vec2
	Distance       float64
	Iterations     int
}

type simplexVertex struct {
	wA, wB, w      common.Vec2 // w = wB - wA
	a              float64     // barycentric coordinate of the closest point
	indexA, indexB int
}

type simplex struct {
	v     [3]simplexVertex
	count int
}

func (s *simplex) readCache(cache *SimplexCache, proxyA *DistanceProxy, xfA common.Transform, proxyB *DistanceProxy, xfB common.Transform) {
	common.Assert(cache.Count <= 3)

	s.count = cache.Count
	for i := 0; i < s.count; i++ {
		v := &s.v[i]
		v.indexA = cache.IndexA[i]
		v.indexB = cache.IndexB[i]
		v.wA = xfA.Apply(proxyA.Vertices[v.indexA])
		v.wB = xfB.Apply(proxyB.Vertices[v.indexB])
		v.w = v.wB.Sub(v.wA)
		v.a = 0
	}

	// Flush the simplex if the metric changed a lot.
	if s.count > 1 {
		metric1 := cache.Metric
		metric2 := s.metric()
		if metric2 < 0.5*metric1 || 2.0*metric1 < metric2 || metric2 < common.Epsilon {
			s.count = 0
		}
	}

	if s.count == 0 {
		v := &s.v[0]
		v.indexA, v.indexB = 0, 0
		v.wA = xfA.Apply(proxyA.Vertices[0])
		v.wB = xfB.Apply(proxyB.Vertices[0])
		v.w = v.wB.Sub(v.wA)
		v.a = 1
		s.count = 1
	}
}

func (s *simplex) writeCache(cache *SimplexCache) {
	cache.Metric = s.metric()
	cache.Count = s.count
	for i := 0; i < s.count; i++ {
		cache.IndexA[i] = s.v[i].indexA
		cache.IndexB[i] = s.v[i].indexB
	}
}

func (s *simplex) searchDirection() common.Vec2 {
	switch s.count {
	case 1:
		return s.v[0].w.Neg()
	case 2:
		e12 := s.v[1].w.Sub(s.v[0].w)
		if e12.Cross(s.v[0].w.Neg()) > 0 {
			// Origin is left of e12.
			return common.CrossSV(1, e12)
		}
		return e12.CrossScalar(1)
	}
	common.Assert(false)
	return common.Vec2Zero
}

func (s *simplex) witnessPoints() (pA, pB common.Vec2) {
	switch s.count {
	case 1:
		return s.v[0].wA, s.v[0].wB
	case 2:
		pA = s.v[0].wA.Mul(s.v[0].a).Add(s.v[1].wA.Mul(s.v[1].a))
		pB = s.v[0].wB.Mul(s.v[0].a).Add(s.v[1].wB.Mul(s.v[1].a))
		return pA, pB
	case 3:
		pA = s.v[0].wA.Mul(s.v[0].a).Add(s.v[1].wA.Mul(s.v[1].a)).Add(s.v[2].wA.Mul(s.v[2].a))
		return pA, pA
	}
	common.Assert(false)
	return
}

func (s *simplex) metric() float64 {
	switch s.count {
	case 1:
		return 0
	case 2:
		return s.v[0].w.Distance(s.v[1].w)
	case 3:
		return s.v[1].w.Sub(s.v[0].w).Cross(s.v[2].w.Sub(s.v[0].w))
	}
	common.Assert(false)
	return 0
}

// solve2 finds the closest point on a segment with barycentric coordinates.
//
//	a1 = d12_1 / d12, a2 = d12_2 / d12
func (s *simplex) solve2() {
	w1 := s.v[0].w
	w2 := s.v[1].w
	e12 := w2.Sub(w1)

	// w1 region
	d12n2 := -w1.Dot(e12)
	if d12n2 <= 0 {
		s.v[0].a = 1
		s.count = 1
		return
	}

	// w2 region
	d12n1 := w2.Dot(e12)
	if d12n1 <= 0 {
		s.v[1].a = 1
		s.count = 1
		s.v[0] = s.v[1]
		return
	}

	inv := 1.0 / (d12n1 + d12n2)
	s.v[0].a = d12n1 * inv
	s.v[1].a = d12n2 * inv
	s.count = 2
}

// solve3 handles the regions of a triangle: the three vertices, the three
// edges and the interior.
func (s *simplex) solve3() {
	w1, w2, w3 := s.v[0].w, s.v[1].w, s.v[2].w

	e12 := w2.Sub(w1)
	d12n1 := w2.Dot(e12)
	d12n2 := -w1.Dot(e12)

	e13 := w3.Sub(w1)
	d13n1 := w3.Dot(e13)
	d13n2 := -w1.Dot(e13)

	e23 := w3.Sub(w2)
	d23n1 := w3.Dot(e23)
	d23n2 := -w2.Dot(e23)

	n123 := e12.Cross(e13)
	d123n1 := n123 * w2.Cross(w3)
	d123n2 := n123 * w3.Cross(w1)
	d123n3 := n123 * w1.Cross(w2)

	switch {
	case d12n2 <= 0 && d13n2 <= 0:
		s.v[0].a = 1
		s.count = 1

	case d12n1 > 0 && d12n2 > 0 && d123n3 <= 0:
		inv := 1.0 / (d12n1 + d12n2)
		s.v[0].a = d12n1 * inv
		s.v[1].a = d12n2 * inv
		s.count = 2

	case d13n1 > 0 && d13n2 > 0 && d123n2 <= 0:
		inv := 1.0 / (d13n1 + d13n2)
		s.v[0].a = d13n1 * inv
		s.v[2].a = d13n2 * inv
		s.count = 2
		s.v[1] = s.v[2]

	case d12n1 <= 0 && d23n2 <= 0:
		s.v[1].a = 1
		s.count = 1
		s.v[0] = s.v[1]

	case d13n1 <= 0 && d23n1 <= 0:
		s.v[2].a = 1
		s.count = 1
		s.v[0] = s.v[2]

	case d23n1 > 0 && d23n2 > 0 && d123n1 <= 0:
		inv := 1.0 / (d23n1 + d23n2)
		s.v[1].a = d23n1 * inv
		s.v[2].a = d23n2 * inv
		s.count = 2
		s.v[0] = s.v[2]

	default:
		inv := 1.0 / (d123n1 + d123n2 + d123n3)
		s.v[0].a = d123n1 * inv
		s.v[1].a = d123n2 * inv
		s.v[2].a = d123n3 * inv
		s.count = 3
	}
}

const gjkMaxIters = 20

// Distance computes the closest points between two convex proxies with GJK,
// using Voronoi regions (Ericson) and barycentric coordinates. The cache is
// read on entry and updated on exit.
func Distance(cache *SimplexCache, input *DistanceInput) DistanceOutput {
	proxyA := &input.ProxyA
	proxyB := &input.ProxyB
	xfA := input.TransformA
	xfB := input.TransformB

	var s simplex
	s.readCache(cache, proxyA, xfA, proxyB, xfB)

	// Last simplex, used to detect cycling.
	var saveA, saveB [3]int

	iter := 0
	for iter < gjkMaxIters {
		saveCount := s.count
		for i := 0; i < saveCount; i++ {
			saveA[i] = s.v[i].indexA
			saveB[i] = s.v[i].indexB
		}

		switch s.count {
		case 2:
			s.solve2()
		case 3:
			s.solve3()
		}

		// Origin is inside the triangle.
		if s.count == 3 {
			break
		}

		d := s.searchDirection()
		// The origin is probably on a segment or triangle; call it overlap.
		if d.LengthSquared() < common.Epsilon*common.Epsilon {
			break
		}

		v := &s.v[s.count]
		v.indexA = proxyA.Support(xfA.Q.ApplyT(d.Neg()))
		v.wA = xfA.Apply(proxyA.Vertices[v.indexA])
		v.indexB = proxyB.Support(xfB.Q.ApplyT(d))
		v.wB = xfB.Apply(proxyB.Vertices[v.indexB])
		v.w = v.wB.Sub(v.wA)

		iter++

		duplicate := false
		for i := 0; i < saveCount; i++ {
			if v.indexA == saveA[i] && v.indexB == saveB[i] {
				duplicate = true
				break
			}
		}
		if duplicate {
			break
		}
		s.count++
	}

	var out DistanceOutput
	out.PointA, out.PointB = s.witnessPoints()
	out.Distance = out.PointA.Distance(out.PointB)
	out.Iterations = iter
	s.writeCache(cache)

	if input.UseRadii {
		rA := proxyA.Radius
		rB := proxyB.Radius
		if out.Distance > rA+rB && out.Distance > common.Epsilon {
			// Move the witness points to the outer surface.
			out.Distance -= rA + rB
			normal := out.PointB.Sub(out.PointA).Normalized()
			out.PointA = out.PointA.Add(normal.Mul(rA))
			out.PointB = out.PointB.Sub(normal.Mul(rB))
		} else {
			// Overlapped once radii count: use the midpoint.
			p := out.PointA.Add(out.PointB).Mul(0.5)
			out.PointA = p
			out.PointB = p
			out.Distance = 0
		}
	}
	return out
}
