package collision

import (
	"testing"

	"github.com/physkit/rigid2d/common"
)

func TestDistance(t *testing.T) {
	a := NewBox(1, 1)
	b := NewBox(1, 1)
	input := DistanceInput{
		ProxyA:     MakeDistanceProxy(a, 0),
		ProxyB:     MakeDistanceProxy(b, 0),
		TransformA: at(0, 0),
		TransformB: at(4, 0.5),
	}
	var cache SimplexCache
	out := Distance(&cache, &input)
	if !near(out.Distance, 2, 1e-9) {
		t.Errorf("core distance = %v, want 2", out.Distance)
	}
	if !near(out.PointA.X, 1, 1e-9) || !near(out.PointB.X, 3, 1e-9) {
		t.Errorf("witness points = %v, %v", out.PointA, out.PointB)
	}

	// The warm started call must agree.
	again := Distance(&cache, &input)
	if !near(again.Distance, out.Distance, 1e-9) {
		t.Errorf("cached distance = %v, want %v", again.Distance, out.Distance)
	}

	input.UseRadii = true
	cache = SimplexCache{}
	out = Distance(&cache, &input)
	if want := 2 - 2*common.PolygonRadius; !near(out.Distance, want, 1e-9) {
		t.Errorf("distance with radii = %v, want %v", out.Distance, want)
	}
}

func TestDistanceCircles(t *testing.T) {
	input := DistanceInput{
		ProxyA:     MakeDistanceProxy(NewCircle(common.Vec2Zero, 1), 0),
		ProxyB:     MakeDistanceProxy(NewCircle(common.Vec2Zero, 1), 0),
		TransformA: at(0, 0),
		TransformB: at(3, 4),
		UseRadii:   true,
	}
	var cache SimplexCache
	out := Distance(&cache, &input)
	if !near(out.Distance, 3, 1e-9) {
		t.Errorf("distance = %v, want 3", out.Distance)
	}
	if !near(out.PointA.X, 0.6, 1e-9) || !near(out.PointA.Y, 0.8, 1e-9) {
		t.Errorf("point on A = %v, want (0.6,0.8)", out.PointA)
	}
}

func TestTimeOfImpact(t *testing.T) {
	input := TOIInput{
		ProxyA: MakeDistanceProxy(NewBox(1, 1), 0),
		ProxyB: MakeDistanceProxy(NewCircle(common.Vec2Zero, 0.5), 0),
		SweepB: common.Sweep{C0: common.MakeVec2(-5, 0), C: common.MakeVec2(5, 0)},
		TMax:   1,
	}
	out := TimeOfImpact(&input)
	if out.State != TOITouching {
		t.Fatalf("state = %v, want touching", out.State)
	}
	// Touching leaves a gap of about the target separation.
	target := 0.5 + common.PolygonRadius - 3*common.LinearSlop
	want := (-1 - target + 5) / 10
	if !near(out.T, want, 1e-3) {
		t.Errorf("t = %v, want about %v", out.T, want)
	}

	input.SweepB = common.Sweep{C0: common.MakeVec2(-5, 3), C: common.MakeVec2(5, 3)}
	out = TimeOfImpact(&input)
	if out.State != TOISeparated || out.T != 1 {
		t.Errorf("passing sweep = %+v, want separated at 1", out)
	}

	input.SweepB = common.Sweep{C0: common.MakeVec2(0.5, 0), C: common.MakeVec2(0.5, 0)}
	out = TimeOfImpact(&input)
	if out.State != TOIOverlapped {
		t.Errorf("initially overlapping sweep = %+v, want overlapped", out)
	}
}
