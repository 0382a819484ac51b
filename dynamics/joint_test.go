package dynamics

import (
	"errors"
	"math"
	"testing"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

func mustJoint(t *testing.T, w *World, def JointDefinition) Joint {
	t.Helper()
	j, err := w.CreateJoint(def)
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}
	return j
}

func TestDistanceJointKeepsLength(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 10)
	bob := mustBody(t, w, DynamicBody, 3, 10)
	mustFixture(t, bob, collision.NewCircle(common.Vec2Zero, 0.25), 1)

	def := DefaultDistanceJointDef()
	def.Initialize(ground, bob, common.MakeVec2(0, 10), common.MakeVec2(3, 10))
	j := mustJoint(t, w, &def).(*DistanceJoint)
	if !near(j.Length(), 3, 1e-12) {
		t.Fatalf("Length = %v, want 3", j.Length())
	}

	lowest := bob.Position().Y
	for i := 0; i < 120; i++ {
		stepN(t, w, 1)
		if d := j.AnchorB().Sub(j.AnchorA()).Length(); !near(d, 3, 0.05) {
			t.Fatalf("step %d: anchor distance %v, want 3", i, d)
		}
		lowest = min(lowest, bob.Position().Y)
	}
	if lowest > 8 {
		t.Fatalf("bob did not swing, lowest y %v", lowest)
	}
}

func TestRevoluteJointKeepsAnchorsTogether(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 5)
	arm := mustBody(t, w, DynamicBody, 2, 5)
	mustFixture(t, arm, collision.NewBox(1, 0.1), 1)

	def := &RevoluteJointDef{}
	def.Initialize(ground, arm, common.MakeVec2(0, 5))
	j := mustJoint(t, w, def).(*RevoluteJoint)

	for i := 0; i < 120; i++ {
		stepN(t, w, 1)
		if gap := j.AnchorB().Sub(j.AnchorA()).Length(); gap > 0.02 {
			t.Fatalf("step %d: anchors drifted %v apart", i, gap)
		}
	}
	if j.JointAngle() > -0.5 {
		t.Fatalf("arm did not swing down, angle %v", j.JointAngle())
	}
}

func TestRevoluteJointLimit(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 5)
	arm := mustBody(t, w, DynamicBody, 2, 5)
	mustFixture(t, arm, collision.NewBox(1, 0.1), 1)

	def := &RevoluteJointDef{EnableLimit: true, LowerAngle: -0.25, UpperAngle: 0.25}
	def.Initialize(ground, arm, common.MakeVec2(0, 5))
	j := mustJoint(t, w, def).(*RevoluteJoint)

	stepN(t, w, 120)
	if a := j.JointAngle(); a < -0.25-0.05 || a > -0.2 {
		t.Fatalf("joint angle %v, want it resting on the lower limit", a)
	}

	if err := j.SetLimits(1, -1); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("SetLimits(1, -1): err = %v, want ErrInvalidDef", err)
	}
	if j.LowerLimit() != -0.25 || j.UpperLimit() != 0.25 {
		t.Fatalf("failed SetLimits changed the limits to [%v, %v]", j.LowerLimit(), j.UpperLimit())
	}
}

func TestRevoluteJointMotor(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	ground := mustBody(t, w, StaticBody, 0, 0)
	wheel := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, wheel, collision.NewCircle(common.Vec2Zero, 1), 1)

	def := &RevoluteJointDef{EnableMotor: true, MotorSpeed: 2, MaxMotorTorque: 1000}
	def.Initialize(ground, wheel, common.Vec2Zero)
	j := mustJoint(t, w, def).(*RevoluteJoint)

	stepN(t, w, 30)
	if s := j.JointSpeed(); !near(s, 2, 1e-6) {
		t.Fatalf("JointSpeed = %v, want 2", s)
	}
	if tq := j.MotorTorque(60); math.Abs(tq) > 1e-6 {
		t.Fatalf("steady motor torque %v, want 0 with nothing resisting", tq)
	}
}

func TestWeldJointHoldsCantilever(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 5)
	beam := mustBody(t, w, DynamicBody, 1, 5)
	mustFixture(t, beam, collision.NewBox(1, 0.1), 1)

	def := &WeldJointDef{}
	def.Initialize(ground, beam, common.MakeVec2(0, 5))
	j := mustJoint(t, w, def).(*WeldJoint)

	stepN(t, w, 60)
	if a := beam.Angle(); math.Abs(a) > 0.05 {
		t.Fatalf("beam rotated to %v", a)
	}
	if gap := j.AnchorB().Sub(j.AnchorA()).Length(); gap > 0.02 {
		t.Fatalf("weld anchors %v apart", gap)
	}
	if j.ReactionForce(60).Y <= 0 {
		t.Fatalf("weld reaction %v does not hold the beam up", j.ReactionForce(60))
	}
}

func TestMouseJointReachesTarget(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	ground := mustBody(t, w, StaticBody, 0, 0)
	box := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, box, collision.NewBox(0.5, 0.5), 1)

	def := DefaultMouseJointDef()
	def.BodyA = ground
	def.BodyB = box
	def.Target = box.Position()
	def.MaxForce = 1000 * box.Mass()
	j := mustJoint(t, w, &def).(*MouseJoint)

	box.SetAwake(false)
	j.SetTarget(common.MakeVec2(5, 0))
	if !box.IsAwake() {
		t.Fatal("SetTarget did not wake the body")
	}

	stepN(t, w, 180)
	if p := box.Position(); !near(p.X, 5, 0.05) || !near(p.Y, 0, 0.05) {
		t.Fatalf("box at %v, want near (5, 0)", p)
	}
}

func TestMouseJointValidation(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	ground := mustBody(t, w, StaticBody, 0, 0)
	box := mustBody(t, w, DynamicBody, 0, 0)

	def := DefaultMouseJointDef()
	def.BodyA, def.BodyB = ground, box
	def.MaxForce = -1
	if _, err := w.CreateJoint(&def); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("err = %v, want ErrInvalidDef", err)
	}
	if w.JointCount() != 0 {
		t.Fatal("invalid joint was added")
	}
}

func TestFrictionJointStopsSlide(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	ground := mustBody(t, w, StaticBody, 0, 0)
	box := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, box, collision.NewBox(0.5, 0.5), 1)
	box.SetLinearVelocity(common.MakeVec2(5, 0))

	def := &FrictionJointDef{MaxForce: 10, MaxTorque: 10}
	def.Initialize(ground, box, box.WorldCenter())
	j := mustJoint(t, w, def).(*FrictionJoint)

	stepN(t, w, 6)
	// Mass 1 under a 10 N friction force loses 1 m/s in 6 steps.
	if vx := box.LinearVelocity().X; !near(vx, 4, 1e-6) {
		t.Fatalf("vx after 0.1s = %v, want 4", vx)
	}
	stepN(t, w, 60)
	if v := box.LinearVelocity(); v.Length() > 1e-6 {
		t.Fatalf("box still sliding at %v", v)
	}

	j.SetMaxForce(-1)
	if j.MaxForce() != 10 {
		t.Fatalf("negative max force accepted: %v", j.MaxForce())
	}
}

func TestCreateJointRejectsBadBodies(t *testing.T) {
	w := newTestWorld(t)
	a := mustBody(t, w, DynamicBody, 0, 0)
	other := newTestWorld(t)
	foreign := mustBody(t, other, DynamicBody, 0, 0)

	tests := []struct {
		name string
		a, b *Body
	}{
		{"same body", a, a},
		{"nil body", a, nil},
		{"foreign body", a, foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &WeldJointDef{}
			def.BodyA, def.BodyB = tt.a, tt.b
			if _, err := w.CreateJoint(def); !errors.Is(err, ErrInvalidDef) {
				t.Fatalf("err = %v, want ErrInvalidDef", err)
			}
		})
	}
}

func TestJointWithoutCollisionFiltersContacts(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	a := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, a, collision.NewBox(1, 1), 1)
	b := mustBody(t, w, DynamicBody, 1.5, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d, want 1", w.ContactCount())
	}

	def := &RevoluteJointDef{}
	def.Initialize(a, b, common.MakeVec2(0.75, 0))
	j := mustJoint(t, w, def)
	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 0 {
		t.Fatalf("ContactCount = %d after joining the bodies, want 0", w.ContactCount())
	}

	if err := w.DestroyJoint(j); err != nil {
		t.Fatal(err)
	}
	if len(a.JointEdges()) != 0 || len(b.JointEdges()) != 0 {
		t.Fatal("joint edges survived DestroyJoint")
	}
	if err := w.DestroyJoint(j); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("second DestroyJoint: err = %v, want ErrInvalidDef", err)
	}
}

func TestDestroyJointKeepsOthersIndexed(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	var joints []Joint
	for i := 0; i < 3; i++ {
		b := mustBody(t, w, DynamicBody, float64(i+1), 0)
		def := DefaultDistanceJointDef()
		def.Initialize(ground, b, common.Vec2Zero, b.Position())
		joints = append(joints, mustJoint(t, w, &def))
	}

	if err := w.DestroyJoint(joints[0]); err != nil {
		t.Fatal(err)
	}
	for _, j := range joints[1:] {
		if err := w.DestroyJoint(j); err != nil {
			t.Fatalf("destroy after swap-remove: %v", err)
		}
	}
	if w.JointCount() != 0 || len(ground.JointEdges()) != 0 {
		t.Fatalf("joints %d ground edges %d, want 0", w.JointCount(), len(ground.JointEdges()))
	}
}

func TestPrismaticJointSlidesToLimit(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	slider := mustBody(t, w, DynamicBody, 0, 5)
	mustFixture(t, slider, collision.NewBox(0.5, 0.5), 1)

	def := DefaultPrismaticJointDef()
	def.Initialize(ground, slider, common.MakeVec2(0, 5), common.MakeVec2(1, 0))
	def.EnableLimit = true
	def.LowerTranslation, def.UpperTranslation = -1, 1
	def.EnableMotor = true
	def.MotorSpeed = 2
	def.MaxMotorForce = 100
	j := mustJoint(t, w, &def).(*PrismaticJoint)

	stepN(t, w, 120)

	if y := slider.Position().Y; !near(y, 5, 0.02) {
		t.Fatalf("slider left its axis: y = %v", y)
	}
	if a := slider.Angle(); math.Abs(a) > 0.01 {
		t.Fatalf("slider rotated to %v", a)
	}
	if tr := j.JointTranslation(); tr < 0.9 || tr > 1.05 {
		t.Fatalf("translation = %v, want the upper limit 1", tr)
	}

	if err := j.SetLimits(2, 1); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("SetLimits(2, 1): err = %v, want ErrInvalidDef", err)
	}
	bad := DefaultPrismaticJointDef()
	bad.Initialize(ground, slider, common.MakeVec2(0, 5), common.Vec2Zero)
	if _, err := w.CreateJoint(&bad); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("zero axis: err = %v, want ErrInvalidDef", err)
	}
}

func TestWheelJointSuspensionAndMotor(t *testing.T) {
	w := newTestWorld(t)
	chassis := mustBody(t, w, StaticBody, 0, 2)
	wheel := mustBody(t, w, DynamicBody, 0, 1)
	mustFixture(t, wheel, collision.NewCircle(common.Vec2Zero, 0.5), 1)

	def := DefaultWheelJointDef()
	def.Initialize(chassis, wheel, common.MakeVec2(0, 1), common.MakeVec2(0, 1))
	def.FrequencyHz = 4
	def.DampingRatio = 0.7
	def.EnableMotor = true
	def.MotorSpeed = -10
	def.MaxMotorTorque = 50
	j := mustJoint(t, w, &def).(*WheelJoint)

	stepN(t, w, 120)

	if x := wheel.Position().X; math.Abs(x) > 0.01 {
		t.Fatalf("wheel left its axis: x = %v", x)
	}
	// Static sag of a 4 Hz spring is g/omega^2, about 0.016.
	if tr := j.JointTranslation(); tr > -0.005 || tr < -0.05 {
		t.Fatalf("suspension translation = %v, want a small sag", tr)
	}
	if s := j.JointAngularSpeed(); !near(s, -10, 0.1) {
		t.Fatalf("wheel speed = %v, want -10", s)
	}
}

func TestPulleyJointConservesRope(t *testing.T) {
	w := newTestWorld(t)
	light := mustBody(t, w, DynamicBody, -2, 5)
	mustFixture(t, light, collision.NewBox(0.5, 0.5), 1)
	heavy := mustBody(t, w, DynamicBody, 2, 5)
	mustFixture(t, heavy, collision.NewBox(0.5, 0.5), 2)

	def := DefaultPulleyJointDef()
	def.Initialize(light, heavy,
		common.MakeVec2(-2, 10), common.MakeVec2(2, 10),
		light.Position(), heavy.Position(), 1)
	j := mustJoint(t, w, &def).(*PulleyJoint)

	for i := 0; i < 60; i++ {
		stepN(t, w, 1)
		if total := j.CurrentLengthA() + j.CurrentLengthB(); !near(total, 10, 0.05) {
			t.Fatalf("step %d: rope length %v, want 10", i, total)
		}
	}
	if heavy.Position().Y > 4.5 || light.Position().Y < 5.5 {
		t.Fatalf("heavy y %v light y %v, want the heavy side to drop", heavy.Position().Y, light.Position().Y)
	}

	if err := w.ShiftOrigin(common.MakeVec2(1, 1)); err != nil {
		t.Fatal(err)
	}
	if g := j.GroundAnchorA(); g != common.MakeVec2(-3, 9) {
		t.Fatalf("ground anchor after shift = %v", g)
	}
}

func TestMotorJointReachesOffset(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	ground := mustBody(t, w, StaticBody, 0, 0)
	b := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, b, collision.NewBox(0.5, 0.5), 1)

	def := DefaultMotorJointDef()
	def.Initialize(ground, b)
	def.MaxForce = 5000
	def.MaxTorque = 5000
	j := mustJoint(t, w, &def).(*MotorJoint)
	j.SetLinearOffset(common.MakeVec2(2, 1))
	j.SetAngularOffset(0.5)

	stepN(t, w, 120)

	if p := b.Position(); !near(p.X, 2, 0.05) || !near(p.Y, 1, 0.05) {
		t.Fatalf("position = %v, want (2, 1)", p)
	}
	if a := b.Angle(); !near(a, 0.5, 0.02) {
		t.Fatalf("angle = %v, want 0.5", a)
	}

	bad := DefaultMotorJointDef()
	bad.Initialize(ground, b)
	bad.CorrectionFactor = 2
	if _, err := w.CreateJoint(&bad); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("correction factor 2: err = %v, want ErrInvalidDef", err)
	}
}

func TestRopeJointLimitsOnlyStretch(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 10)
	bob := mustBody(t, w, DynamicBody, 1, 10)
	mustFixture(t, bob, collision.NewCircle(common.Vec2Zero, 0.25), 1)

	def := DefaultRopeJointDef()
	def.MaxLength = 3
	def.Initialize(ground, bob, common.MakeVec2(0, 10), common.MakeVec2(1, 10))
	j := mustJoint(t, w, &def).(*RopeJoint)

	stepN(t, w, 1)
	if d := j.AnchorB().Sub(j.AnchorA()).Length(); d > 1.1 {
		t.Fatalf("slack rope pulled the bob out to %v", d)
	}

	longest := 0.0
	for i := 0; i < 120; i++ {
		stepN(t, w, 1)
		longest = max(longest, j.AnchorB().Sub(j.AnchorA()).Length())
	}
	if longest > 3.05 {
		t.Fatalf("rope stretched to %v, max 3", longest)
	}
	if d := j.AnchorB().Sub(j.AnchorA()).Length(); d < 2.9 {
		t.Fatalf("swinging bob at %v, want the rope taut near 3", d)
	}
}

func TestGearJointCouplesRevolutes(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	ground := mustBody(t, w, StaticBody, 0, 0)
	gear1 := mustBody(t, w, DynamicBody, 0, 5)
	mustFixture(t, gear1, collision.NewCircle(common.Vec2Zero, 1), 1)
	gear2 := mustBody(t, w, DynamicBody, 3, 5)
	mustFixture(t, gear2, collision.NewCircle(common.Vec2Zero, 1), 1)

	r1 := &RevoluteJointDef{}
	r1.Initialize(ground, gear1, gear1.Position())
	j1 := mustJoint(t, w, r1)
	r2 := &RevoluteJointDef{}
	r2.Initialize(ground, gear2, gear2.Position())
	j2 := mustJoint(t, w, r2)

	def := DefaultGearJointDef()
	def.Initialize(j1, j2, 2)
	g := mustJoint(t, w, &def).(*GearJoint)
	if g.BodyA() != gear1 || g.BodyB() != gear2 {
		t.Fatal("gear does not join the driven bodies")
	}

	gear1.SetAngularVelocity(1)
	stepN(t, w, 60)

	a1, a2 := gear1.Angle(), gear2.Angle()
	if math.Abs(a1) < 0.1 {
		t.Fatalf("gear1 barely turned: %v", a1)
	}
	if c := a1 + 2*a2; math.Abs(c) > 0.01 {
		t.Fatalf("angle1 + 2*angle2 = %v, want 0", c)
	}

	if err := w.DestroyJoint(j1); err != nil {
		t.Fatal(err)
	}
	if w.JointCount() != 1 || w.Joints()[0] != j2 {
		t.Fatalf("gear survived its child joint: %d joints", w.JointCount())
	}

	dd := DefaultDistanceJointDef()
	dd.Initialize(ground, gear1, ground.Position(), gear1.Position())
	dj := mustJoint(t, w, &dd)
	bad := DefaultGearJointDef()
	bad.Initialize(dj, j2, 1)
	if _, err := w.CreateJoint(&bad); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("distance child: err = %v, want ErrInvalidDef", err)
	}
}
