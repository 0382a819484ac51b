package collision

import (
	"testing"

	"github.com/physkit/rigid2d/common"
)

func at(x, y float64) common.Transform {
	return common.MakeTransform(common.MakeVec2(x, y), 0)
}

func TestCollideCircles(t *testing.T) {
	a := NewCircle(common.Vec2Zero, 1)
	b := NewCircle(common.Vec2Zero, 1)

	var m Manifold
	CollideCircles(&m, a, at(0, 0), b, at(1.5, 0))
	if m.PointCount != 1 || m.Type != ManifoldCircles {
		t.Fatalf("overlapping circles: %+v", m)
	}

	var wm WorldManifold
	wm.Initialize(&m, at(0, 0), a.Radius(), at(1.5, 0), b.Radius())
	if !near(wm.Normal.X, 1, 1e-9) || !near(wm.Separations[0], -0.5, 1e-9) {
		t.Errorf("world manifold = %+v", wm)
	}
	if !near(wm.Points[0].X, 0.75, 1e-9) {
		t.Errorf("contact point = %v, want x=0.75", wm.Points[0])
	}

	CollideCircles(&m, a, at(0, 0), b, at(3, 0))
	if m.PointCount != 0 {
		t.Errorf("separated circles have %d points", m.PointCount)
	}
}

func TestCollidePolygonAndCircle(t *testing.T) {
	box := NewBox(1, 1)
	c := NewCircle(common.Vec2Zero, 0.5)

	var m Manifold
	CollidePolygonAndCircle(&m, box, at(0, 0), c, at(0, 1.4))
	if m.PointCount != 1 || m.Type != ManifoldFaceA {
		t.Fatalf("face contact: %+v", m)
	}
	if !near(m.LocalNormal.Y, 1, 1e-9) {
		t.Errorf("local normal = %v, want (0,1)", m.LocalNormal)
	}

	// Near a corner the normal points from the vertex to the center.
	CollidePolygonAndCircle(&m, box, at(0, 0), c, at(1.3, 1.3))
	if m.PointCount != 1 {
		t.Fatalf("corner contact missing: %+v", m)
	}
	if !near(m.LocalNormal.X, m.LocalNormal.Y, 1e-9) || m.LocalNormal.X <= 0 {
		t.Errorf("corner normal = %v, want diagonal", m.LocalNormal)
	}

	CollidePolygonAndCircle(&m, box, at(0, 0), c, at(1.5, 1.5))
	if m.PointCount != 0 {
		t.Errorf("distant circle has %d points", m.PointCount)
	}
}

func TestCollidePolygons(t *testing.T) {
	a := NewBox(1, 1)
	b := NewBox(1, 1)

	var m Manifold
	CollidePolygons(&m, a, at(0, 0), b, at(0, 1.9))
	if m.PointCount != 2 {
		t.Fatalf("stacked boxes have %d points, want 2", m.PointCount)
	}

	var wm WorldManifold
	wm.Initialize(&m, at(0, 0), a.Radius(), at(0, 1.9), b.Radius())
	if !near(wm.Normal.X, 0, 1e-9) || !near(wm.Normal.Y, 1, 1e-9) {
		t.Errorf("normal = %v, want (0,1)", wm.Normal)
	}
	for i := 0; i < m.PointCount; i++ {
		if wm.Separations[i] >= 0 {
			t.Errorf("separation %d = %v, want overlap", i, wm.Separations[i])
		}
	}
	if m.Points[0].ID.Key() == m.Points[1].ID.Key() {
		t.Error("manifold points share a feature id")
	}

	CollidePolygons(&m, a, at(0, 0), b, at(0, 2.1))
	if m.PointCount != 0 {
		t.Errorf("separated boxes have %d points", m.PointCount)
	}
}

func TestCollideEdgeAndCircle(t *testing.T) {
	edge := NewEdge(common.MakeVec2(-2, 0), common.MakeVec2(2, 0))
	c := NewCircle(common.Vec2Zero, 0.5)

	var m Manifold
	CollideEdgeAndCircle(&m, edge, at(0, 0), c, at(0, 0.4))
	if m.PointCount != 1 {
		t.Fatalf("circle on edge has %d points", m.PointCount)
	}
	var wm WorldManifold
	wm.Initialize(&m, at(0, 0), edge.Radius(), at(0, 0.4), c.Radius())
	if !near(wm.Normal.Y, 1, 1e-9) {
		t.Errorf("normal = %v, want (0,1)", wm.Normal)
	}

	CollideEdgeAndCircle(&m, edge, at(0, 0), c, at(3, 0.3))
	if m.PointCount != 0 {
		t.Errorf("circle past the edge end has %d points", m.PointCount)
	}
}

func TestCollideEdgeAndPolygon(t *testing.T) {
	edge := NewEdge(common.MakeVec2(-5, 0), common.MakeVec2(5, 0))
	box := NewBox(0.5, 0.5)

	var m Manifold
	CollideEdgeAndPolygon(&m, edge, at(0, 0), box, at(0, 0.45))
	if m.PointCount != 2 {
		t.Fatalf("box on edge has %d points, want 2", m.PointCount)
	}
	var wm WorldManifold
	wm.Initialize(&m, at(0, 0), edge.Radius(), at(0, 0.45), box.Radius())
	if !near(wm.Normal.Y, 1, 1e-9) {
		t.Errorf("normal = %v, want (0,1)", wm.Normal)
	}

	CollideEdgeAndPolygon(&m, edge, at(0, 0), box, at(0, 1))
	if m.PointCount != 0 {
		t.Errorf("box above the edge has %d points", m.PointCount)
	}
}

func TestGetPointStates(t *testing.T) {
	var m1, m2 Manifold
	m1.PointCount = 2
	m1.Points[0].ID = ContactID{IndexA: 0, IndexB: 1, TypeA: FeatureFace, TypeB: FeatureVertex}
	m1.Points[1].ID = ContactID{IndexA: 0, IndexB: 2, TypeA: FeatureFace, TypeB: FeatureVertex}
	m2.PointCount = 2
	m2.Points[0].ID = m1.Points[1].ID
	m2.Points[1].ID = ContactID{IndexA: 3, IndexB: 1, TypeA: FeatureFace, TypeB: FeatureVertex}

	s1, s2 := GetPointStates(&m1, &m2)
	if s1[0] != RemoveState || s1[1] != PersistState {
		t.Errorf("state1 = %v", s1)
	}
	if s2[0] != PersistState || s2[1] != AddState {
		t.Errorf("state2 = %v", s2)
	}
}

func TestTestOverlap(t *testing.T) {
	box := NewBox(1, 1)
	c := NewCircle(common.Vec2Zero, 0.5)
	if !TestOverlap(box, 0, c, 0, at(0, 0), at(1.2, 0)) {
		t.Error("box and circle should overlap")
	}
	if TestOverlap(box, 0, c, 0, at(0, 0), at(2, 0)) {
		t.Error("box and circle should not overlap")
	}
}
