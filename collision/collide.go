package collision

import "github.com/physkit/rigid2d/common"

// CollideCircles computes the manifold of two circles.
func CollideCircles(m *Manifold, circleA *CircleShape, xfA common.Transform, circleB *CircleShape, xfB common.Transform) {
	m.PointCount = 0

	pA := xfA.Apply(circleA.P)
	pB := xfB.Apply(circleB.P)
	d := pB.Sub(pA)
	radius := circleA.radius + circleB.radius
	if d.Dot(d) > radius*radius {
		return
	}

	m.Type = ManifoldCircles
	m.LocalPoint = circleA.P
	m.LocalNormal = common.Vec2Zero
	m.PointCount = 1
	m.Points[0].LocalPoint = circleB.P
	m.Points[0].ID = ContactID{}
}

// CollidePolygonAndCircle computes the manifold of a polygon and a circle.
func CollidePolygonAndCircle(m *Manifold, polygonA *PolygonShape, xfA common.Transform, circleB *CircleShape, xfB common.Transform) {
	m.PointCount = 0

	// Circle position in the frame of the polygon.
	cLocal := xfA.ApplyT(xfB.Apply(circleB.P))

	// Find the min separating edge.
	normalIndex := 0
	separation := -common.MaxFloat
	radius := common.PolygonRadius + circleB.radius
	vertexCount := polygonA.count
	vertices := &polygonA.vertices
	normals := &polygonA.normals

	for i := 0; i < vertexCount; i++ {
		s := normals[i].Dot(cLocal.Sub(vertices[i]))
		if s > radius {
			return
		}
		if s > separation {
			separation = s
			normalIndex = i
		}
	}

	// Vertices of the reference face.
	v1 := vertices[normalIndex]
	v2 := vertices[(normalIndex+1)%vertexCount]

	setPoint := func(normal, point common.Vec2) {
		m.PointCount = 1
		m.Type = ManifoldFaceA
		m.LocalNormal = normal
		m.LocalPoint = point
		m.Points[0].LocalPoint = circleB.P
		m.Points[0].ID = ContactID{}
	}

	// Center inside the polygon.
	if separation < common.Epsilon {
		setPoint(normals[normalIndex], v1.Add(v2).Mul(0.5))
		return
	}

	// Barycentric coordinates on the face.
	u1 := cLocal.Sub(v1).Dot(v2.Sub(v1))
	u2 := cLocal.Sub(v2).Dot(v1.Sub(v2))
	switch {
	case u1 <= 0:
		if cLocal.DistanceSquared(v1) > radius*radius {
			return
		}
		setPoint(cLocal.Sub(v1).Normalized(), v1)
	case u2 <= 0:
		if cLocal.DistanceSquared(v2) > radius*radius {
			return
		}
		setPoint(cLocal.Sub(v2).Normalized(), v2)
	default:
		faceCenter := v1.Add(v2).Mul(0.5)
		if cLocal.Sub(faceCenter).Dot(normals[normalIndex]) > radius {
			return
		}
		setPoint(normals[normalIndex], faceCenter)
	}
}

// findMaxSeparation finds the max separation between poly1 and poly2 using
// the edge normals of poly1.
func findMaxSeparation(poly1 *PolygonShape, xf1 common.Transform, poly2 *PolygonShape, xf2 common.Transform) (int, float64) {
	xf := xf2.MulT(xf1)

	bestIndex := 0
	maxSeparation := -common.MaxFloat
	for i := 0; i < poly1.count; i++ {
		// poly1 normal and vertex in frame 2.
		n := xf.Q.Apply(poly1.normals[i])
		v1 := xf.Apply(poly1.vertices[i])

		si := common.MaxFloat
		for j := 0; j < poly2.count; j++ {
			if sij := n.Dot(poly2.vertices[j].Sub(v1)); sij < si {
				si = sij
			}
		}
		if si > maxSeparation {
			maxSeparation = si
			bestIndex = i
		}
	}
	return bestIndex, maxSeparation
}

func findIncidentEdge(poly1 *PolygonShape, xf1 common.Transform, edge1 int, poly2 *PolygonShape, xf2 common.Transform) [2]ClipVertex {
	common.Assert(0 <= edge1 && edge1 < poly1.count)

	// Reference normal in poly2's frame.
	normal1 := xf2.Q.ApplyT(xf1.Q.Apply(poly1.normals[edge1]))

	// The incident edge is the most anti-parallel one.
	index := 0
	minDot := common.MaxFloat
	for i := 0; i < poly2.count; i++ {
		if dot := normal1.Dot(poly2.normals[i]); dot < minDot {
			minDot = dot
			index = i
		}
	}

	i1 := index
	i2 := (i1 + 1) % poly2.count
	return [2]ClipVertex{
		{
			V:  xf2.Apply(poly2.vertices[i1]),
			ID: ContactID{IndexA: uint8(edge1), IndexB: uint8(i1), TypeA: FeatureFace, TypeB: FeatureVertex},
		},
		{
			V:  xf2.Apply(poly2.vertices[i2]),
			ID: ContactID{IndexA: uint8(edge1), IndexB: uint8(i2), TypeA: FeatureFace, TypeB: FeatureVertex},
		},
	}
}

// CollidePolygons uses the separating axis test on both polygons, picks
// the reference face with a small bias toward A, and clips the incident
// edge against the reference face sides. The normal points from A to B.
func CollidePolygons(m *Manifold, polyA *PolygonShape, xfA common.Transform, polyB *PolygonShape, xfB common.Transform) {
	m.PointCount = 0
	totalRadius := 2 * common.PolygonRadius

	edgeA, separationA := findMaxSeparation(polyA, xfA, polyB, xfB)
	if separationA > totalRadius {
		return
	}
	edgeB, separationB := findMaxSeparation(polyB, xfB, polyA, xfA)
	if separationB > totalRadius {
		return
	}

	poly1, poly2 := polyA, polyB // reference, incident
	xf1, xf2 := xfA, xfB
	edge1 := edgeA
	m.Type = ManifoldFaceA
	flip := false

	const tol = 0.1 * common.LinearSlop
	if separationB > separationA+tol {
		poly1, poly2 = polyB, polyA
		xf1, xf2 = xfB, xfA
		edge1 = edgeB
		m.Type = ManifoldFaceB
		flip = true
	}

	incidentEdge := findIncidentEdge(poly1, xf1, edge1, poly2, xf2)

	iv1 := edge1
	iv2 := (edge1 + 1) % poly1.count
	v11 := poly1.vertices[iv1]
	v12 := poly1.vertices[iv2]

	localTangent := v12.Sub(v11).Normalized()
	localNormal := localTangent.CrossScalar(1)
	planePoint := v11.Add(v12).Mul(0.5)

	tangent := xf1.Q.Apply(localTangent)
	normal := tangent.CrossScalar(1)

	v11 = xf1.Apply(v11)
	v12 = xf1.Apply(v12)

	frontOffset := normal.Dot(v11)

	// Side offsets, extended by the polygon skin.
	sideOffset1 := -tangent.Dot(v11) + totalRadius
	sideOffset2 := tangent.Dot(v12) + totalRadius

	var clipPoints1, clipPoints2 [2]ClipVertex
	if clipSegmentToLine(&clipPoints1, incidentEdge, tangent.Neg(), sideOffset1, iv1) < 2 {
		return
	}
	if clipSegmentToLine(&clipPoints2, clipPoints1, tangent, sideOffset2, iv2) < 2 {
		return
	}

	m.LocalNormal = localNormal
	m.LocalPoint = planePoint

	pointCount := 0
	for i := 0; i < common.MaxManifoldPoints; i++ {
		separation := normal.Dot(clipPoints2[i].V) - frontOffset
		if separation > totalRadius {
			continue
		}
		cp := &m.Points[pointCount]
		cp.LocalPoint = xf2.ApplyT(clipPoints2[i].V)
		cp.ID = clipPoints2[i].ID
		if flip {
			cp.ID = cp.ID.swapped()
		}
		pointCount++
	}
	m.PointCount = pointCount
}

// CollideEdgeAndCircle computes edge versus circle contact using the
// Voronoi regions of the edge. Ghost vertices suppress contacts that belong
// to a neighbouring edge.
func CollideEdgeAndCircle(m *Manifold, edgeA *EdgeShape, xfA common.Transform, circleB *CircleShape, xfB common.Transform) {
	m.PointCount = 0

	// Circle in the frame of the edge.
	q := xfA.ApplyT(xfB.Apply(circleB.P))

	a := edgeA.Vertex1
	b := edgeA.Vertex2
	e := b.Sub(a)

	// Barycentric coordinates.
	u := e.Dot(b.Sub(q))
	v := e.Dot(q.Sub(a))

	radius := common.PolygonRadius + circleB.radius

	vertexContact := func(p common.Vec2, index uint8) {
		m.PointCount = 1
		m.Type = ManifoldCircles
		m.LocalNormal = common.Vec2Zero
		m.LocalPoint = p
		m.Points[0].ID = ContactID{IndexA: index, TypeA: FeatureVertex, TypeB: FeatureVertex}
		m.Points[0].LocalPoint = circleB.P
	}

	// Region A
	if v <= 0 {
		if q.DistanceSquared(a) > radius*radius {
			return
		}
		// Is the circle in region AB of the previous edge?
		if edgeA.HasVertex0 {
			e1 := a.Sub(edgeA.Vertex0)
			if e1.Dot(a.Sub(q)) > 0 {
				return
			}
		}
		vertexContact(a, 0)
		return
	}

	// Region B
	if u <= 0 {
		if q.DistanceSquared(b) > radius*radius {
			return
		}
		// Is the circle in region AB of the next edge?
		if edgeA.HasVertex3 {
			e2 := edgeA.Vertex3.Sub(b)
			if e2.Dot(q.Sub(b)) > 0 {
				return
			}
		}
		vertexContact(b, 1)
		return
	}

	// Region AB
	den := e.Dot(e)
	common.Assert(den > 0)
	p := a.Mul(u).Add(b.Mul(v)).Mul(1.0 / den)
	if q.DistanceSquared(p) > radius*radius {
		return
	}

	n := common.MakeVec2(-e.Y, e.X)
	if n.Dot(q.Sub(a)) < 0 {
		n = n.Neg()
	}
	n.Normalize()

	m.PointCount = 1
	m.Type = ManifoldFaceA
	m.LocalNormal = n
	m.LocalPoint = a
	m.Points[0].ID = ContactID{IndexA: 0, TypeA: FeatureFace, TypeB: FeatureVertex}
	m.Points[0].LocalPoint = circleB.P
}

// CollideEdgeAndPolygon treats the edge as a two sided, two vertex polygon
// and runs the polygon clipper. Ghost vertices are not consulted, so boxes
// sliding along a chain can catch on interior vertices at high speed.
func CollideEdgeAndPolygon(m *Manifold, edgeA *EdgeShape, xfA common.Transform, polygonB *PolygonShape, xfB common.Transform) {
	var poly PolygonShape
	poly.count = 2
	poly.vertices[0] = edgeA.Vertex1
	poly.vertices[1] = edgeA.Vertex2
	e := edgeA.Vertex2.Sub(edgeA.Vertex1)
	if e.LengthSquared() <= common.Epsilon*common.Epsilon {
		m.PointCount = 0
		return
	}
	poly.normals[0] = e.CrossScalar(1).Normalized()
	poly.normals[1] = poly.normals[0].Neg()
	poly.centroid = edgeA.Vertex1.Add(edgeA.Vertex2).Mul(0.5)
	CollidePolygons(m, &poly, xfA, polygonB, xfB)
}
