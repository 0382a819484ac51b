package dynamics

import (
	"errors"
	"math"
	"testing"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func newTestWorld(t *testing.T, opts ...Option) *World {
	t.Helper()
	return NewWorld(common.MakeVec2(0, -10), opts...)
}

func mustBody(t *testing.T, w *World, typ BodyType, x, y float64) *Body {
	t.Helper()
	def := DefaultBodyDef()
	def.Type = typ
	def.Position = common.MakeVec2(x, y)
	b, err := w.CreateBody(&def)
	if err != nil {
		t.Fatalf("CreateBody: %v", err)
	}
	return b
}

func mustFixture(t *testing.T, b *Body, shape collision.Shape, density float64) *Fixture {
	t.Helper()
	f, err := b.CreateShapeFixture(shape, density)
	if err != nil {
		t.Fatalf("CreateShapeFixture: %v", err)
	}
	return f
}

func TestNonDynamicBodiesHaveZeroInverseMass(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	if !near(b.Mass(), 4, 1e-9) {
		t.Fatalf("dynamic mass = %v, want 4", b.Mass())
	}

	for _, typ := range []BodyType{StaticBody, KinematicBody, StaticBody, DynamicBody, KinematicBody} {
		if err := b.SetType(typ); err != nil {
			t.Fatalf("SetType(%v): %v", typ, err)
		}
		b.ResetMassData()
		if typ == DynamicBody {
			if b.InvMass() <= 0 || b.InvInertia() <= 0 {
				t.Fatalf("dynamic body lost its mass: invMass %v invI %v", b.InvMass(), b.InvInertia())
			}
			continue
		}
		if b.InvMass() != 0 || b.InvInertia() != 0 {
			t.Fatalf("%v body: invMass %v invI %v, want 0", typ, b.InvMass(), b.InvInertia())
		}
		if !b.LinearVelocity().IsZero() && typ == StaticBody {
			t.Fatalf("static body kept velocity %v", b.LinearVelocity())
		}
	}
}

func TestResetMassDataWeightsFixtures(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewOrientedBox(0.5, 0.5, common.MakeVec2(1, 0), 0), 2)
	mustFixture(t, b, collision.NewOrientedBox(0.5, 0.5, common.MakeVec2(-1, 0), 0), 1)

	if !near(b.Mass(), 3, 1e-9) {
		t.Fatalf("mass = %v, want 3", b.Mass())
	}
	c := b.LocalCenter()
	if !near(c.X, 1.0/3.0, 1e-9) || !near(c.Y, 0, 1e-9) {
		t.Fatalf("local center = %v, want (1/3, 0)", c)
	}
	if b.Inertia() <= 0 {
		t.Fatalf("inertia = %v, want > 0", b.Inertia())
	}
}

func TestZeroDensityFixtureKeepsMass(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)
	before := b.MassData()

	mustFixture(t, b, collision.NewCircle(common.MakeVec2(3, 0), 0.5), 0)
	after := b.MassData()
	if before != after {
		t.Fatalf("mass data changed from %+v to %+v", before, after)
	}

	// With no positive density at all the mass floor applies.
	lone := mustBody(t, w, DynamicBody, 5, 0)
	mustFixture(t, lone, collision.NewCircle(common.Vec2Zero, 1), 0)
	if lone.Mass() != 1 || lone.InvMass() != 1 {
		t.Fatalf("mass floor: mass %v invMass %v, want 1", lone.Mass(), lone.InvMass())
	}
}

func TestSetAwakeIsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	b.sleepTime = 0.3
	b.SetAwake(true)
	if b.SleepTime() != 0.3 {
		t.Fatalf("SetAwake(true) on an awake body reset the timer to %v", b.SleepTime())
	}

	b.SetLinearVelocity(common.MakeVec2(1, 2))
	b.SetAngularVelocity(3)
	b.ApplyForceToCenter(common.MakeVec2(4, 5))
	b.ApplyTorque(6)

	for i := 0; i < 2; i++ {
		b.SetAwake(false)
		if b.IsAwake() {
			t.Fatalf("pass %d: still awake", i)
		}
		if !b.LinearVelocity().IsZero() || b.AngularVelocity() != 0 ||
			!b.Force().IsZero() || b.Torque() != 0 || b.SleepTime() != 0 {
			t.Fatalf("pass %d: state not zeroed: v %v w %v f %v t %v", i,
				b.LinearVelocity(), b.AngularVelocity(), b.Force(), b.Torque())
		}
	}

	b.ApplyForce(common.MakeVec2(1, 0), b.WorldCenter())
	if !b.IsAwake() {
		t.Fatal("ApplyForce did not wake the body")
	}
}

func TestApplyToStaticBodyIsIgnored(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	b.ApplyForceToCenter(common.MakeVec2(10, 0))
	b.ApplyLinearImpulse(common.MakeVec2(10, 0), b.WorldCenter())
	b.SetLinearVelocity(common.MakeVec2(1, 0))
	if !b.Force().IsZero() || !b.LinearVelocity().IsZero() {
		t.Fatalf("static body changed: force %v velocity %v", b.Force(), b.LinearVelocity())
	}
}

func TestBodyDefValidation(t *testing.T) {
	w := newTestWorld(t)
	tests := []struct {
		name string
		edit func(*BodyDef)
	}{
		{"negative linear damping", func(d *BodyDef) { d.LinearDamping = -1 }},
		{"negative angular damping", func(d *BodyDef) { d.AngularDamping = -0.5 }},
		{"negative gravity scale", func(d *BodyDef) { d.GravityScale = -1 }},
		{"nan position", func(d *BodyDef) { d.Position.X = math.NaN() }},
		{"infinite angle", func(d *BodyDef) { d.Angle = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := DefaultBodyDef()
			tt.edit(&def)
			if _, err := w.CreateBody(&def); !errors.Is(err, ErrInvalidDef) {
				t.Fatalf("err = %v, want ErrInvalidDef", err)
			}
		})
	}
	if w.BodyCount() != 0 {
		t.Fatalf("BodyCount = %d after rejected definitions", w.BodyCount())
	}
}

func TestSetTransformMovesProxies(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	f := mustFixture(t, b, collision.NewBox(0.5, 0.5), 1)

	if err := b.SetTransform(common.MakeVec2(10, 0), 0); err != nil {
		t.Fatal(err)
	}
	aabb := f.AABB(0)
	if !near(aabb.Center().X, 10, 1e-9) {
		t.Fatalf("proxy AABB center = %v, want x = 10", aabb.Center())
	}
	if !near(b.WorldCenter().X, 10, 1e-9) {
		t.Fatalf("world center = %v", b.WorldCenter())
	}
}

func TestPointAndVectorTransforms(t *testing.T) {
	w := newTestWorld(t)
	def := DefaultBodyDef()
	def.Type = DynamicBody
	def.Position = common.MakeVec2(1, 2)
	def.Angle = math.Pi / 2
	b, err := w.CreateBody(&def)
	if err != nil {
		t.Fatal(err)
	}

	p := b.WorldPoint(common.MakeVec2(1, 0))
	if !near(p.X, 1, 1e-9) || !near(p.Y, 3, 1e-9) {
		t.Fatalf("WorldPoint = %v, want (1, 3)", p)
	}
	back := b.LocalPoint(p)
	if !near(back.X, 1, 1e-9) || !near(back.Y, 0, 1e-9) {
		t.Fatalf("LocalPoint = %v, want (1, 0)", back)
	}
	v := b.WorldVector(common.MakeVec2(0, 1))
	if !near(v.X, -1, 1e-9) || !near(v.Y, 0, 1e-9) {
		t.Fatalf("WorldVector = %v, want (-1, 0)", v)
	}

	b.SetAngularVelocity(2)
	vp := b.LinearVelocityFromLocalPoint(common.MakeVec2(1, 0))
	if !near(vp.X, -2, 1e-9) || !near(vp.Y, 0, 1e-9) {
		t.Fatalf("velocity at point = %v, want (-2, 0)", vp)
	}
}

func TestFixedRotationDropsInertia(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)
	b.SetAngularVelocity(1)

	b.SetFixedRotation(true)
	if b.InvInertia() != 0 || b.AngularVelocity() != 0 {
		t.Fatalf("fixed rotation: invI %v w %v", b.InvInertia(), b.AngularVelocity())
	}
	b.SetFixedRotation(false)
	if b.InvInertia() == 0 {
		t.Fatal("inertia not restored")
	}
}

func TestDestroyFixtureRemovesContacts(t *testing.T) {
	w := newTestWorld(t)
	a := mustBody(t, w, DynamicBody, 0, 0)
	fa := mustFixture(t, a, collision.NewBox(1, 1), 1)
	mustFixture(t, a, collision.NewCircle(common.MakeVec2(0, 5), 0.5), 1)
	b := mustBody(t, w, DynamicBody, 1.5, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	if err := w.Step(0, 8, 3); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d, want 1", w.ContactCount())
	}

	if err := a.DestroyFixture(fa); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 0 || len(a.ContactEdges()) != 0 || len(b.ContactEdges()) != 0 {
		t.Fatalf("contacts left: world %d a %d b %d", w.ContactCount(), len(a.ContactEdges()), len(b.ContactEdges()))
	}
	if len(a.Fixtures()) != 1 {
		t.Fatalf("fixtures = %d, want 1", len(a.Fixtures()))
	}
	if err := a.DestroyFixture(fa); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("second destroy: err = %v, want ErrInvalidDef", err)
	}
}

func TestDestroyedBodyRejectsMutation(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, ground, collision.NewBox(10, 0.5), 0)
	ghost := mustBody(t, w, DynamicBody, 0, 1)
	f := mustFixture(t, ghost, collision.NewBox(0.5, 0.5), 1)

	if err := w.DestroyBody(ghost); err != nil {
		t.Fatal(err)
	}
	proxies := w.ProxyCount()

	_, createErr := ghost.CreateShapeFixture(collision.NewBox(0.5, 0.5), 1)
	errs := map[string]error{
		"CreateFixture":  createErr,
		"DestroyFixture": ghost.DestroyFixture(f),
		"SetMassData":    ghost.SetMassData(collision.MassData{Mass: 2, I: 1}),
		"SetTransform":   ghost.SetTransform(common.MakeVec2(0, 0.5), 0),
		"SetType":        ghost.SetType(StaticBody),
		"SetActive":      ghost.SetActive(true),
	}
	for name, err := range errs {
		if !errors.Is(err, ErrInvalidDef) {
			t.Errorf("%s on destroyed body: err = %v, want ErrInvalidDef", name, err)
		}
	}

	for range 10 {
		if err := w.Step(1.0/60.0, 8, 3); err != nil {
			t.Fatal(err)
		}
	}
	if w.ProxyCount() != proxies || w.ContactCount() != 0 {
		t.Fatalf("destroyed body came back: proxies %d (was %d) contacts %d",
			w.ProxyCount(), proxies, w.ContactCount())
	}
}
