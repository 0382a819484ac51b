package collision

import (
	"errors"
	"math"
	"testing"

	"github.com/physkit/rigid2d/common"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestBoxMass(t *testing.T) {
	box := NewBox(1, 1)
	md := box.ComputeMass(1)
	if !near(md.Mass, 4, 1e-9) {
		t.Errorf("mass = %v, want 4", md.Mass)
	}
	if !near(md.Center.X, 0, 1e-9) || !near(md.Center.Y, 0, 1e-9) {
		t.Errorf("center = %v, want origin", md.Center)
	}
	if want := 4 * 2.0 / 3.0; !near(md.I, want, 1e-9) {
		t.Errorf("I = %v, want %v", md.I, want)
	}
}

func TestCircleMass(t *testing.T) {
	c := NewCircle(common.MakeVec2(1, 0), 0.5)
	md := c.ComputeMass(2)
	mass := 2 * math.Pi * 0.25
	if !near(md.Mass, mass, 1e-9) {
		t.Errorf("mass = %v, want %v", md.Mass, mass)
	}
	if want := mass * (0.5*0.25 + 1); !near(md.I, want, 1e-9) {
		t.Errorf("I = %v, want %v", md.I, want)
	}
}

func TestZeroMassShapes(t *testing.T) {
	edge := NewEdge(common.MakeVec2(0, 0), common.MakeVec2(1, 0))
	if md := edge.ComputeMass(5); md.Mass != 0 || md.I != 0 {
		t.Errorf("edge mass data = %+v, want zero", md)
	}
	chain, err := NewChain([]common.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if md := chain.ComputeMass(5); md.Mass != 0 {
		t.Errorf("chain mass = %v, want 0", md.Mass)
	}
}

func TestNewPolygonHull(t *testing.T) {
	pts := []common.Vec2{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 0, Y: 0}, {X: 1, Y: 1}, {X: -1, Y: 1},
	}
	p, err := NewPolygon(pts)
	if err != nil {
		t.Fatal(err)
	}
	if p.Count() != 4 {
		t.Fatalf("hull has %d vertices, want 4", p.Count())
	}
	if !p.Validate() {
		t.Error("hull is not convex")
	}
	c := p.Centroid()
	if !near(c.X, 0, 1e-9) || !near(c.Y, 0, 1e-9) {
		t.Errorf("centroid = %v, want origin", c)
	}
	for i, n := range p.Normals() {
		if !near(n.Length(), 1, 1e-9) {
			t.Errorf("normal %d = %v is not unit length", i, n)
		}
	}
}

func TestNewPolygonErrors(t *testing.T) {
	cases := map[string][]common.Vec2{
		"too few":   {{X: 0, Y: 0}, {X: 1, Y: 0}},
		"collinear": {{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}},
		"welded":    {{X: 0, Y: 0}, {X: 0.001, Y: 0}, {X: 0, Y: 0.001}},
		"too many": {
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 0},
			{X: 5, Y: 0}, {X: 6, Y: 0}, {X: 7, Y: 0}, {X: 8, Y: 0},
		},
	}
	for name, pts := range cases {
		if _, err := NewPolygon(pts); !errors.Is(err, ErrInvalidPolygon) {
			t.Errorf("%s: err = %v, want ErrInvalidPolygon", name, err)
		}
	}
}

func TestChainConstruction(t *testing.T) {
	if _, err := NewChain([]common.Vec2{{X: 0, Y: 0}}); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("single vertex chain: err = %v, want ErrInvalidChain", err)
	}
	if _, err := NewLoop([]common.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}}); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("two vertex loop: err = %v, want ErrInvalidChain", err)
	}

	square := []common.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	loop, err := NewLoop(square)
	if err != nil {
		t.Fatal(err)
	}
	if loop.ChildCount() != 4 {
		t.Fatalf("loop child count = %d, want 4", loop.ChildCount())
	}
	first := loop.ChildEdge(0)
	if !first.HasVertex0 || first.Vertex0 != square[3] {
		t.Errorf("first edge ghost = %v (%v), want %v", first.Vertex0, first.HasVertex0, square[3])
	}
	last := loop.ChildEdge(3)
	if !last.HasVertex3 || last.Vertex3 != square[1] {
		t.Errorf("last edge ghost = %v (%v), want %v", last.Vertex3, last.HasVertex3, square[1])
	}

	clone := loop.Clone().(*ChainShape)
	clone.Vertices()[0] = common.MakeVec2(9, 9)
	if loop.Vertices()[0] != square[0] {
		t.Error("Clone shares vertex storage with the original")
	}
}

func TestComputeAABB(t *testing.T) {
	xf := common.MakeTransform(common.MakeVec2(2, 3), 0)
	bb := NewBox(1, 0.5).ComputeAABB(xf, 0)
	r := common.PolygonRadius
	if !near(bb.LowerBound.X, 1-r, 1e-9) || !near(bb.LowerBound.Y, 2.5-r, 1e-9) ||
		!near(bb.UpperBound.X, 3+r, 1e-9) || !near(bb.UpperBound.Y, 3.5+r, 1e-9) {
		t.Errorf("box AABB = %+v", bb)
	}

	cb := NewCircle(common.MakeVec2(1, 0), 0.5).ComputeAABB(xf, 0)
	if !near(cb.LowerBound.X, 2.5, 1e-9) || !near(cb.UpperBound.Y, 3.5, 1e-9) {
		t.Errorf("circle AABB = %+v", cb)
	}
}

func TestTestPoint(t *testing.T) {
	xf := common.MakeTransform(common.MakeVec2(5, 0), math.Pi/4)
	box := NewBox(1, 1)
	if !box.TestPoint(xf, common.MakeVec2(5.1, 0.1)) {
		t.Error("box should contain a point near its center")
	}
	if box.TestPoint(xf, common.MakeVec2(6.5, 0)) {
		t.Error("box should not contain a point past its corner")
	}
	c := NewCircle(common.Vec2Zero, 1)
	if !c.TestPoint(xf, common.MakeVec2(5.5, 0.5)) || c.TestPoint(xf, common.MakeVec2(6.5, 0)) {
		t.Error("circle containment is wrong")
	}
}

func TestShapeRayCast(t *testing.T) {
	in := RayCastInput{P1: common.MakeVec2(-3, 0.5), P2: common.MakeVec2(3, 0.5), MaxFraction: 1}

	out, hit := NewBox(1, 1).RayCast(in, common.TransformIdentity, 0)
	if !hit {
		t.Fatal("ray missed the box")
	}
	if !near(out.Fraction, 1.0/3.0, 1e-9) || !near(out.Normal.X, -1, 1e-9) {
		t.Errorf("box hit = %+v", out)
	}

	in.P1.Y, in.P2.Y = 0, 0
	out, hit = NewCircle(common.Vec2Zero, 1).RayCast(in, common.TransformIdentity, 0)
	if !hit {
		t.Fatal("ray missed the circle")
	}
	if !near(out.Fraction, 1.0/3.0, 1e-9) || !near(out.Normal.X, -1, 1e-9) {
		t.Errorf("circle hit = %+v", out)
	}

	in.MaxFraction = 0.2
	if _, hit := NewCircle(common.Vec2Zero, 1).RayCast(in, common.TransformIdentity, 0); hit {
		t.Error("ray clipped by max fraction should miss")
	}

	edge := NewEdge(common.MakeVec2(0, -1), common.MakeVec2(0, 1))
	in.MaxFraction = 1
	out, hit = edge.RayCast(in, common.TransformIdentity, 0)
	if !hit || !near(out.Fraction, 0.5, 1e-9) {
		t.Errorf("edge hit = %+v, %v", out, hit)
	}
}

func TestComputeDistance(t *testing.T) {
	box := NewBox(1, 1)
	d, n := box.ComputeDistance(common.TransformIdentity, common.MakeVec2(3, 0), 0)
	if !near(d, 2, 1e-9) || !near(n.X, 1, 1e-9) {
		t.Errorf("box distance = %v normal %v, want 2 (1,0)", d, n)
	}
	c := NewCircle(common.Vec2Zero, 1)
	d, _ = c.ComputeDistance(common.TransformIdentity, common.MakeVec2(0, 4), 0)
	if !near(d, 3, 1e-9) {
		t.Errorf("circle distance = %v, want 3", d)
	}
}
