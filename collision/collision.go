// Package collision holds the geometric half of the engine: shapes, the
// narrow-phase manifold generators, GJK distance, time of impact and the
// dynamic AABB tree used as broad-phase.
package collision

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

const nullFeature uint8 = math.MaxUint8

// FeatureType tells whether a contact feature is a vertex or a face.
type FeatureType uint8

const (
	FeatureVertex FeatureType = iota
	FeatureFace
)

// ContactID identifies the features that intersect to form a contact point.
// It survives across steps so solved impulses can be matched and reused.
type ContactID struct {
	IndexA uint8
	IndexB uint8
	TypeA  FeatureType
	TypeB  FeatureType
}

// Key packs the id for quick comparison.
func (id ContactID) Key() uint32 {
	return uint32(id.IndexA) | uint32(id.IndexB)<<8 | uint32(id.TypeA)<<16 | uint32(id.TypeB)<<24
}

func (id ContactID) swapped() ContactID {
	return ContactID{IndexA: id.IndexB, IndexB: id.IndexA, TypeA: id.TypeB, TypeB: id.TypeA}
}

// ManifoldPoint is one contact point of a manifold. LocalPoint depends on
// the manifold type:
//   - ManifoldCircles: the local center of circle B
//   - ManifoldFaceA: the local center of circle B or the clip point of polygon B
//   - ManifoldFaceB: the clip point of polygon A
//
// The impulses are solver caches and may not be reliable contact forces.
type ManifoldPoint struct {
	LocalPoint     common.Vec2
	NormalImpulse  float64
	TangentImpulse float64
	ID             ContactID
}

type ManifoldType uint8

const (
	ManifoldCircles ManifoldType = iota
	ManifoldFaceA
	ManifoldFaceB
)

// Manifold describes two touching convex shapes in the local frame of one of
// them, so position correction can account for motion.
type Manifold struct {
	Points      [common.MaxManifoldPoints]ManifoldPoint
	LocalNormal common.Vec2
	LocalPoint  common.Vec2
	Type        ManifoldType
	PointCount  int
}

// WorldManifold is a manifold evaluated at the current transforms.
type WorldManifold struct {
	Normal      common.Vec2 // from A to B
	Points      [common.MaxManifoldPoints]common.Vec2
	Separations [common.MaxManifoldPoints]float64 // negative means overlap
}

// Initialize evaluates m at the given transforms and radii.
func (wm *WorldManifold) Initialize(m *Manifold, xfA common.Transform, radiusA float64, xfB common.Transform, radiusB float64) {
	if m.PointCount == 0 {
		return
	}

	switch m.Type {
	case ManifoldCircles:
		wm.Normal = common.MakeVec2(1, 0)
		pointA := xfA.Apply(m.LocalPoint)
		pointB := xfB.Apply(m.Points[0].LocalPoint)
		if pointA.DistanceSquared(pointB) > common.Epsilon*common.Epsilon {
			wm.Normal = pointB.Sub(pointA).Normalized()
		}
		cA := pointA.Add(wm.Normal.Mul(radiusA))
		cB := pointB.Sub(wm.Normal.Mul(radiusB))
		wm.Points[0] = cA.Add(cB).Mul(0.5)
		wm.Separations[0] = cB.Sub(cA).Dot(wm.Normal)

	case ManifoldFaceA:
		wm.Normal = xfA.Q.Apply(m.LocalNormal)
		planePoint := xfA.Apply(m.LocalPoint)
		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfB.Apply(m.Points[i].LocalPoint)
			cA := clipPoint.Add(wm.Normal.Mul(radiusA - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cB := clipPoint.Sub(wm.Normal.Mul(radiusB))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cB.Sub(cA).Dot(wm.Normal)
		}

	case ManifoldFaceB:
		wm.Normal = xfB.Q.Apply(m.LocalNormal)
		planePoint := xfB.Apply(m.LocalPoint)
		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfA.Apply(m.Points[i].LocalPoint)
			cB := clipPoint.Add(wm.Normal.Mul(radiusB - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cA := clipPoint.Sub(wm.Normal.Mul(radiusA))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cA.Sub(cB).Dot(wm.Normal)
		}
		wm.Normal = wm.Normal.Neg()
	}
}

// PointState describes how a manifold point changed between two updates.
type PointState uint8

const (
	NullState PointState = iota
	AddState
	PersistState
	RemoveState
)

// GetPointStates compares the ids of two manifolds.
func GetPointStates(m1, m2 *Manifold) (state1, state2 [common.MaxManifoldPoints]PointState) {
	for i := 0; i < m1.PointCount; i++ {
		state1[i] = RemoveState
		key := m1.Points[i].ID.Key()
		for j := 0; j < m2.PointCount; j++ {
			if m2.Points[j].ID.Key() == key {
				state1[i] = PersistState
				break
			}
		}
	}
	for i := 0; i < m2.PointCount; i++ {
		state2[i] = AddState
		key := m2.Points[i].ID.Key()
		for j := 0; j < m1.PointCount; j++ {
			if m1.Points[j].ID.Key() == key {
				state2[i] = PersistState
				break
			}
		}
	}
	return state1, state2
}

// ClipVertex is used while computing manifolds.
type ClipVertex struct {
	V  common.Vec2
	ID ContactID
}

// RayCastInput describes the ray p1 + t*(p2-p1) for t in [0, MaxFraction].
type RayCastInput struct {
	P1, P2      common.Vec2
	MaxFraction float64
}

// RayCastOutput reports a hit at p1 + Fraction*(p2-p1).
type RayCastOutput struct {
	Normal   common.Vec2
	Fraction float64
}

// AABB is an axis aligned bounding box.
type AABB struct {
	LowerBound common.Vec2
	UpperBound common.Vec2
}

func (bb AABB) Center() common.Vec2  { return bb.LowerBound.Add(bb.UpperBound).Mul(0.5) }
func (bb AABB) Extents() common.Vec2 { return bb.UpperBound.Sub(bb.LowerBound).Mul(0.5) }

func (bb AABB) Perimeter() float64 {
	wx := bb.UpperBound.X - bb.LowerBound.X
	wy := bb.UpperBound.Y - bb.LowerBound.Y
	return 2.0 * (wx + wy)
}

// Combine returns the union of bb and o.
func (bb AABB) Combine(o AABB) AABB {
	return AABB{
		LowerBound: common.MinVec2(bb.LowerBound, o.LowerBound),
		UpperBound: common.MaxVec2(bb.UpperBound, o.UpperBound),
	}
}

// Contains reports whether o lies entirely inside bb.
func (bb AABB) Contains(o AABB) bool {
	return bb.LowerBound.X <= o.LowerBound.X &&
		bb.LowerBound.Y <= o.LowerBound.Y &&
		o.UpperBound.X <= bb.UpperBound.X &&
		o.UpperBound.Y <= bb.UpperBound.Y
}

func (bb AABB) IsValid() bool {
	d := bb.UpperBound.Sub(bb.LowerBound)
	return d.X >= 0 && d.Y >= 0 && bb.LowerBound.IsValid() && bb.UpperBound.IsValid()
}

// TestOverlapAABB reports whether two boxes intersect. Touching counts.
func TestOverlapAABB(a, b AABB) bool {
	d1 := b.LowerBound.Sub(a.UpperBound)
	d2 := a.LowerBound.Sub(b.UpperBound)
	if d1.X > 0 || d1.Y > 0 {
		return false
	}
	if d2.X > 0 || d2.Y > 0 {
		return false
	}
	return true
}

// RayCast uses the slab method from Real-time Collision Detection, p179.
func (bb AABB) RayCast(input RayCastInput) (RayCastOutput, bool) {
	tmin := -common.MaxFloat
	tmax := common.MaxFloat

	p := [2]float64{input.P1.X, input.P1.Y}
	d := [2]float64{input.P2.X - input.P1.X, input.P2.Y - input.P1.Y}
	lower := [2]float64{bb.LowerBound.X, bb.LowerBound.Y}
	upper := [2]float64{bb.UpperBound.X, bb.UpperBound.Y}
	var normal [2]float64

	for i := 0; i < 2; i++ {
		if math.Abs(d[i]) < common.Epsilon {
			// Parallel.
			if p[i] < lower[i] || upper[i] < p[i] {
				return RayCastOutput{}, false
			}
			continue
		}
		invD := 1.0 / d[i]
		t1 := (lower[i] - p[i]) * invD
		t2 := (upper[i] - p[i]) * invD
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > tmin {
			normal = [2]float64{}
			normal[i] = s
			tmin = t1
		}
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return RayCastOutput{}, false
		}
	}

	// Ray starts inside the box or hits beyond the max fraction.
	if tmin < 0 || input.MaxFraction < tmin {
		return RayCastOutput{}, false
	}
	return RayCastOutput{Normal: common.MakeVec2(normal[0], normal[1]), Fraction: tmin}, true
}

// clipSegmentToLine is Sutherland-Hodgman clipping of a segment against the
// half plane normal.x <= offset.
func clipSegmentToLine(vOut *[2]ClipVertex, vIn [2]ClipVertex, normal common.Vec2, offset float64, vertexIndexA int) int {
	numOut := 0

	distance0 := normal.Dot(vIn[0].V) - offset
	distance1 := normal.Dot(vIn[1].V) - offset

	if distance0 <= 0 {
		vOut[numOut] = vIn[0]
		numOut++
	}
	if distance1 <= 0 {
		vOut[numOut] = vIn[1]
		numOut++
	}

	if distance0*distance1 < 0 {
		interp := distance0 / (distance0 - distance1)
		vOut[numOut].V = vIn[0].V.Add(vIn[1].V.Sub(vIn[0].V).Mul(interp))
		// Vertex A is hitting edge B.
		vOut[numOut].ID = ContactID{
			IndexA: uint8(vertexIndexA),
			IndexB: vIn[0].ID.IndexB,
			TypeA:  FeatureVertex,
			TypeB:  FeatureFace,
		}
		numOut++
	}
	return numOut
}

// TestOverlap runs GJK on two shape children. Sensors use it instead of a
// full manifold.
func TestOverlap(shapeA Shape, indexA int, shapeB Shape, indexB int, xfA, xfB common.Transform) bool {
	input := DistanceInput{
		ProxyA:     MakeDistanceProxy(shapeA, indexA),
		ProxyB:     MakeDistanceProxy(shapeB, indexB),
		TransformA: xfA,
		TransformB: xfB,
		UseRadii:   true,
	}
	var cache SimplexCache
	out := Distance(&cache, &input)
	return out.Distance < 10.0*common.Epsilon
}
