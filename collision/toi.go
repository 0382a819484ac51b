package collision

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// TOIInput sweeps two proxies over [0, TMax].
type TOIInput struct {
	ProxyA, ProxyB DistanceProxy
	SweepA, SweepB common.Sweep
	TMax           float64
}

type TOIState uint8

const (
	TOIUnknown TOIState = iota
	TOIFailed
	TOIOverlapped
	TOITouching
	TOISeparated
)

func (s TOIState) String() string {
	switch s {
	case TOIFailed:
		return "failed"
	case TOIOverlapped:
		return "overlapped"
	case TOITouching:
		return "touching"
	case TOISeparated:
		return "separated"
	}
	return "unknown"
}

type TOIOutput struct {
	State TOIState
	T     float64
}

const (
	toiMaxIterations     = 20
	toiMaxRootIterations = 50
)

type separationType uint8

const (
	separationPoints separationType = iota
	separationFaceA
	separationFaceB
)

// separationFunction measures the distance of two swept proxies along an
// axis chosen from the GJK simplex at the start of the interval.
type separationFunction struct {
	proxyA, proxyB *DistanceProxy
	sweepA, sweepB common.Sweep
	kind           separationType
	localPoint     common.Vec2
	axis           common.Vec2
}

func (f *separationFunction) initialize(cache *SimplexCache, proxyA *DistanceProxy, sweepA common.Sweep, proxyB *DistanceProxy, sweepB common.Sweep, t1 float64) {
	f.proxyA = proxyA
	f.proxyB = proxyB
	count := cache.Count
	common.Assert(0 < count && count < 3)

	f.sweepA = sweepA
	f.sweepB = sweepB
	xfA := sweepA.Transform(t1)
	xfB := sweepB.Transform(t1)

	switch {
	case count == 1:
		f.kind = separationPoints
		pointA := xfA.Apply(proxyA.Vertices[cache.IndexA[0]])
		pointB := xfB.Apply(proxyB.Vertices[cache.IndexB[0]])
		f.axis = pointB.Sub(pointA)
		f.axis.Normalize()

	case cache.IndexA[0] == cache.IndexA[1]:
		// Two points on B and one on A.
		f.kind = separationFaceB
		b1 := proxyB.Vertices[cache.IndexB[0]]
		b2 := proxyB.Vertices[cache.IndexB[1]]
		f.axis = b2.Sub(b1).CrossScalar(1).Normalized()
		normal := xfB.Q.Apply(f.axis)

		f.localPoint = b1.Add(b2).Mul(0.5)
		pointB := xfB.Apply(f.localPoint)
		pointA := xfA.Apply(proxyA.Vertices[cache.IndexA[0]])
		if pointA.Sub(pointB).Dot(normal) < 0 {
			f.axis = f.axis.Neg()
		}

	default:
		// Two points on A and one or two points on B.
		f.kind = separationFaceA
		a1 := proxyA.Vertices[cache.IndexA[0]]
		a2 := proxyA.Vertices[cache.IndexA[1]]
		f.axis = a2.Sub(a1).CrossScalar(1).Normalized()
		normal := xfA.Q.Apply(f.axis)

		f.localPoint = a1.Add(a2).Mul(0.5)
		pointA := xfA.Apply(f.localPoint)
		pointB := xfB.Apply(proxyB.Vertices[cache.IndexB[0]])
		if pointB.Sub(pointA).Dot(normal) < 0 {
			f.axis = f.axis.Neg()
		}
	}
}

// findMinSeparation finds the deepest points at t and returns their indices.
func (f *separationFunction) findMinSeparation(t float64) (indexA, indexB int, separation float64) {
	xfA := f.sweepA.Transform(t)
	xfB := f.sweepB.Transform(t)

	switch f.kind {
	case separationPoints:
		indexA = f.proxyA.Support(xfA.Q.ApplyT(f.axis))
		indexB = f.proxyB.Support(xfB.Q.ApplyT(f.axis.Neg()))
		pointA := xfA.Apply(f.proxyA.Vertices[indexA])
		pointB := xfB.Apply(f.proxyB.Vertices[indexB])
		return indexA, indexB, pointB.Sub(pointA).Dot(f.axis)

	case separationFaceA:
		normal := xfA.Q.Apply(f.axis)
		pointA := xfA.Apply(f.localPoint)
		indexB = f.proxyB.Support(xfB.Q.ApplyT(normal.Neg()))
		pointB := xfB.Apply(f.proxyB.Vertices[indexB])
		return -1, indexB, pointB.Sub(pointA).Dot(normal)

	default:
		normal := xfB.Q.Apply(f.axis)
		pointB := xfB.Apply(f.localPoint)
		indexA = f.proxyA.Support(xfA.Q.ApplyT(normal.Neg()))
		pointA := xfA.Apply(f.proxyA.Vertices[indexA])
		return indexA, -1, pointA.Sub(pointB).Dot(normal)
	}
}

// evaluate measures the separation of the given witness points at t.
func (f *separationFunction) evaluate(indexA, indexB int, t float64) float64 {
	xfA := f.sweepA.Transform(t)
	xfB := f.sweepB.Transform(t)

	switch f.kind {
	case separationPoints:
		pointA := xfA.Apply(f.proxyA.Vertices[indexA])
		pointB := xfB.Apply(f.proxyB.Vertices[indexB])
		return pointB.Sub(pointA).Dot(f.axis)

	case separationFaceA:
		normal := xfA.Q.Apply(f.axis)
		pointA := xfA.Apply(f.localPoint)
		pointB := xfB.Apply(f.proxyB.Vertices[indexB])
		return pointB.Sub(pointA).Dot(normal)

	default:
		normal := xfB.Q.Apply(f.axis)
		pointB := xfB.Apply(f.localPoint)
		pointA := xfA.Apply(f.proxyA.Vertices[indexA])
		return pointA.Sub(pointB).Dot(normal)
	}
}

// TimeOfImpact computes the upper bound on time before two shapes penetrate
// using conservative advancement along local separating axes. Time is a
// fraction of the sweep interval. A Touching result leaves the shapes
// target = max(LinearSlop, r - 3*LinearSlop) apart, give or take
// LinearSlop/4.
func TimeOfImpact(input *TOIInput) TOIOutput {
	out := TOIOutput{State: TOIUnknown, T: input.TMax}

	proxyA := &input.ProxyA
	proxyB := &input.ProxyB

	// Large rotations can make the root finder fail.
	sweepA := input.SweepA
	sweepB := input.SweepB
	sweepA.Normalize()
	sweepB.Normalize()

	tMax := input.TMax

	totalRadius := proxyA.Radius + proxyB.Radius
	target := math.Max(common.LinearSlop, totalRadius-3.0*common.LinearSlop)
	tolerance := 0.25 * common.LinearSlop
	common.Assert(target > tolerance)

	t1 := 0.0
	iter := 0

	var cache SimplexCache
	distanceInput := DistanceInput{ProxyA: input.ProxyA, ProxyB: input.ProxyB}

	// Each pass computes a new separating axis. It stops when an axis
	// repeats and no progress is made.
	for {
		distanceInput.TransformA = sweepA.Transform(t1)
		distanceInput.TransformB = sweepB.Transform(t1)
		distanceOutput := Distance(&cache, &distanceInput)

		// Overlapped: give up on continuous collision.
		if distanceOutput.Distance <= 0 {
			out.State = TOIOverlapped
			out.T = 0
			break
		}

		if distanceOutput.Distance < target+tolerance {
			out.State = TOITouching
			out.T = t1
			break
		}

		var fcn separationFunction
		fcn.initialize(&cache, proxyA, sweepA, proxyB, sweepB, t1)

		// Resolve the deepest point repeatedly. Bounded by the vertex count.
		done := false
		t2 := tMax
		for pushBackIter := 0; pushBackIter < common.MaxPolygonVertices; pushBackIter++ {
			indexA, indexB, s2 := fcn.findMinSeparation(t2)

			// Separated at the end of the interval.
			if s2 > target+tolerance {
				out.State = TOISeparated
				out.T = tMax
				done = true
				break
			}

			// Separation reached tolerance: advance the sweeps.
			if s2 > target-tolerance {
				t1 = t2
				break
			}

			s1 := fcn.evaluate(indexA, indexB, t1)

			// Initial overlap; the root finder may have run out of iterations.
			if s1 < target-tolerance {
				out.State = TOIFailed
				out.T = t1
				done = true
				break
			}

			if s1 <= target+tolerance {
				// t1 holds the TOI, possibly 0.
				out.State = TOITouching
				out.T = t1
				done = true
				break
			}

			// Root of f(t) - target = 0, alternating secant and bisection.
			a1, a2 := t1, t2
			for rootIter := 0; rootIter < toiMaxRootIterations; rootIter++ {
				var t float64
				if rootIter&1 != 0 {
					t = a1 + (target-s1)*(a2-a1)/(s2-s1)
				} else {
					t = 0.5 * (a1 + a2)
				}

				s := fcn.evaluate(indexA, indexB, t)
				if math.Abs(s-target) < tolerance {
					t2 = t
					break
				}

				// Keep the root bracketed.
				if s > target {
					a1, s1 = t, s
				} else {
					a2, s2 = t, s
				}
			}
		}

		iter++
		if done {
			break
		}
		if iter == toiMaxIterations {
			// Root finder got stuck.
			out.State = TOIFailed
			out.T = t1
			break
		}
	}
	return out
}
