package dynamics

import (
	"testing"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

func TestFilterShouldCollide(t *testing.T) {
	tests := []struct {
		name string
		a, b Filter
		want bool
	}{
		{"defaults", DefaultFilter(), DefaultFilter(), true},
		{"masked out", Filter{CategoryBits: 2, MaskBits: 0xFFFF}, Filter{CategoryBits: 1, MaskBits: 1}, false},
		{"positive group wins", Filter{CategoryBits: 2, MaskBits: 0, GroupIndex: 3}, Filter{CategoryBits: 1, MaskBits: 0, GroupIndex: 3}, true},
		{"negative group wins", Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -3}, Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -3}, false},
		{"different groups use masks", Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -3}, Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.shouldCollide(tt.b); got != tt.want {
				t.Fatalf("shouldCollide = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMixingLaws(t *testing.T) {
	if got := mixFriction(0.25, 0.64); !near(got, 0.4, 1e-12) {
		t.Fatalf("mixFriction = %v, want 0.4", got)
	}
	if got := mixRestitution(0.1, 0.7); got != 0.7 {
		t.Fatalf("mixRestitution = %v, want 0.7", got)
	}
}

func TestSetFilterDropsAndRestoresContact(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	a := mustBody(t, w, DynamicBody, 0, 0)
	fa := mustFixture(t, a, collision.NewBox(1, 1), 1)
	b := mustBody(t, w, DynamicBody, 1.5, 0)
	fb := mustFixture(t, b, collision.NewBox(1, 1), 1)

	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d, want 1", w.ContactCount())
	}

	apart := Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -1}
	fa.SetFilter(apart)
	fb.SetFilter(apart)
	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 0 {
		t.Fatalf("ContactCount = %d after filtering, want 0", w.ContactCount())
	}

	fa.SetFilter(DefaultFilter())
	stepN(t, w, 1)
	if w.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d after restoring the filter, want 1", w.ContactCount())
	}
}

type contactCounter struct{ begin, end int }

func (c *contactCounter) BeginContact(*Contact)                  { c.begin++ }
func (c *contactCounter) EndContact(*Contact)                    { c.end++ }
func (c *contactCounter) PreSolve(*Contact, *collision.Manifold) {}
func (c *contactCounter) PostSolve(*Contact, *ContactImpulse)    {}

func TestSensorReportsButDoesNotPush(t *testing.T) {
	w := newTestWorld(t)
	counter := &contactCounter{}
	w.SetContactListener(counter)

	ground := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, ground, collision.NewBox(10, 0.5), 0)

	ghost := mustBody(t, w, DynamicBody, 0, 2)
	def := DefaultFixtureDef(collision.NewBox(0.5, 0.5))
	def.Density = 1
	def.IsSensor = true
	if _, err := ghost.CreateFixture(&def); err != nil {
		t.Fatal(err)
	}

	stepN(t, w, 90)
	if y := ghost.Position().Y; y > -1 {
		t.Fatalf("sensor body stopped at y = %v", y)
	}
	if counter.begin != 1 || counter.end != 1 {
		t.Fatalf("begin %d end %d, want one of each", counter.begin, counter.end)
	}
}

func TestSetSensorWakesBody(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	f := mustFixture(t, b, collision.NewCircle(common.Vec2Zero, 1), 1)
	b.SetAwake(false)
	f.SetSensor(true)
	if !b.IsAwake() || !f.IsSensor() {
		t.Fatalf("awake %v sensor %v", b.IsAwake(), f.IsSensor())
	}
}

func TestFixtureQueries(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	b := mustBody(t, w, StaticBody, 2, 0)
	f := mustFixture(t, b, collision.NewBox(1, 1), 0)

	if !f.TestPoint(common.MakeVec2(2.5, 0.5)) || f.TestPoint(common.MakeVec2(0, 0)) {
		t.Fatal("TestPoint ignores the body transform")
	}
	out, hit := f.RayCast(collision.RayCastInput{P1: common.MakeVec2(-5, 0), P2: common.MakeVec2(5, 0), MaxFraction: 1}, 0)
	if !hit || !near(out.Fraction, 0.6, 1e-9) {
		t.Fatalf("ray hit %v at %v, want fraction 0.6", hit, out.Fraction)
	}
	if err := f.SetDensity(-1); err == nil {
		t.Fatal("negative density accepted")
	}
}

func TestSetSensorOnDestroyedFixture(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)
	f := mustFixture(t, b, collision.NewCircle(common.MakeVec2(0, 3), 0.5), 1)
	if err := b.DestroyFixture(f); err != nil {
		t.Fatal(err)
	}
	b.SetAwake(false)

	f.SetSensor(true)
	if f.IsSensor() || b.IsAwake() {
		t.Fatalf("destroyed fixture still acts on its body: sensor %v awake %v", f.IsSensor(), b.IsAwake())
	}
}
