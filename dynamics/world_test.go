package dynamics

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

const (
	testDt      = 1.0 / 60.0
	testVelIter = 8
	testPosIter = 3
)

func stepN(t *testing.T, w *World, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := w.Step(testDt, testVelIter, testPosIter); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestFreeFallOneStep(t *testing.T) {
	w := newTestWorld(t)
	a := mustBody(t, w, DynamicBody, 0, 10)
	mustFixture(t, a, collision.NewCircle(common.Vec2Zero, 0.5), 1)
	b := mustBody(t, w, DynamicBody, 5, 10)
	mustFixture(t, b, collision.NewCircle(common.Vec2Zero, 0.5), 1)

	stepN(t, w, 1)

	wantV := -10.0 * testDt
	for _, body := range []*Body{a, b} {
		v := body.LinearVelocity()
		if !near(v.Y, wantV, 1e-12) || v.X != 0 {
			t.Fatalf("velocity = %v, want (0, %v)", v, wantV)
		}
		if !near(body.Position().Y, 10+wantV*testDt, 1e-12) {
			t.Fatalf("y = %v, want %v", body.Position().Y, 10+wantV*testDt)
		}
		if body.PreviousTransform().P.Y != 10 {
			t.Fatalf("previous y = %v, want 10", body.PreviousTransform().P.Y)
		}
	}
}

func TestDampingUsesPadeApproximation(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	def := DefaultBodyDef()
	def.Type = DynamicBody
	def.LinearVelocity = common.MakeVec2(10, 0)
	def.LinearDamping = 0.5
	b, err := w.CreateBody(&def)
	if err != nil {
		t.Fatal(err)
	}
	mustFixture(t, b, collision.NewCircle(common.Vec2Zero, 0.5), 1)

	stepN(t, w, 1)
	want := 10.0 / (1.0 + testDt*0.5)
	if got := b.LinearVelocity().X; !near(got, want, 1e-12) {
		t.Fatalf("vx = %v, want %v", got, want)
	}
}

// lockedMutator tries every topology change from inside a callback and
// checks that none of them took effect.
type lockedMutator struct {
	w      *World
	box    *Body
	joint  Joint
	began  bool
	errs   map[string]error
	broken []string
}

func (m *lockedMutator) BeginContact(c *Contact) {
	if m.began {
		return
	}
	m.began = true
	w, box := m.w, m.box

	fixtures := len(box.Fixtures())
	xf := box.Transform()
	mass := box.Mass()
	proxies := w.ProxyCount()
	bodies, joints := w.BodyCount(), w.JointCount()

	m.errs = make(map[string]error)
	def := DefaultBodyDef()
	_, m.errs["CreateBody"] = w.CreateBody(&def)
	m.errs["DestroyBody"] = w.DestroyBody(c.FixtureA().Body())
	m.errs["Step"] = w.Step(testDt, 1, 1)

	jd := &WeldJointDef{}
	jd.Initialize(c.FixtureA().Body(), c.FixtureB().Body(), common.Vec2Zero)
	_, m.errs["CreateJoint"] = w.CreateJoint(jd)
	m.errs["DestroyJoint"] = w.DestroyJoint(m.joint)

	_, m.errs["CreateFixture"] = box.CreateShapeFixture(collision.NewCircle(common.Vec2Zero, 2), 5)
	m.errs["DestroyFixture"] = box.DestroyFixture(box.Fixtures()[0])
	m.errs["SetTransform"] = box.SetTransform(common.MakeVec2(7, 7), 1)
	m.errs["SetMassData"] = box.SetMassData(collision.MassData{Mass: 50, I: 3})
	m.errs["SetType"] = box.SetType(StaticBody)
	m.errs["SetActive"] = box.SetActive(false)
	m.errs["ShiftOrigin"] = w.ShiftOrigin(common.MakeVec2(3, 3))

	check := func(name string, ok bool) {
		if !ok {
			m.broken = append(m.broken, name)
		}
	}
	check("fixture count", len(box.Fixtures()) == fixtures)
	check("transform", box.Transform() == xf)
	check("mass", box.Mass() == mass)
	check("proxy count", w.ProxyCount() == proxies)
	check("body type", box.Type() == DynamicBody)
	check("active", box.IsActive())
	check("body count", w.BodyCount() == bodies)
	check("joint count", w.JointCount() == joints)
}

func (m *lockedMutator) EndContact(*Contact)                    {}
func (m *lockedMutator) PreSolve(*Contact, *collision.Manifold) {}
func (m *lockedMutator) PostSolve(*Contact, *ContactImpulse)    {}

func TestMutationWhileLockedFails(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, ground, collision.NewBox(10, 0.5), 0)
	box := mustBody(t, w, DynamicBody, 0, 1.5)
	mustFixture(t, box, collision.NewBox(0.5, 0.5), 1)

	// A joint far from the contact for DestroyJoint to target.
	anchor := mustBody(t, w, StaticBody, 50, 10)
	bob := mustBody(t, w, DynamicBody, 52, 10)
	dd := DefaultDistanceJointDef()
	dd.Initialize(anchor, bob, anchor.Position(), bob.Position())
	j, err := w.CreateJoint(&dd)
	if err != nil {
		t.Fatal(err)
	}

	m := &lockedMutator{w: w, box: box, joint: j}
	w.SetContactListener(m)

	for i := 0; i < 120 && !m.began; i++ {
		stepN(t, w, 1)
	}
	if !m.began {
		t.Fatal("box never touched the ground")
	}

	want := []string{
		"CreateBody", "DestroyBody", "Step", "CreateJoint", "DestroyJoint",
		"CreateFixture", "DestroyFixture", "SetTransform", "SetMassData",
		"SetType", "SetActive", "ShiftOrigin",
	}
	for _, name := range want {
		err := m.errs[name]
		if !errors.Is(err, ErrLocked) {
			t.Errorf("%s: err = %v, want ErrLocked", name, err)
			continue
		}
		if !strings.HasPrefix(err.Error(), name+":") {
			t.Errorf("%s: error %q does not name the operation", name, err)
		}
	}
	if len(m.broken) > 0 {
		t.Fatalf("state changed while locked: %v", m.broken)
	}
	if w.BodyCount() != 4 || w.JointCount() != 1 {
		t.Fatalf("lists changed while locked: bodies %d joints %d", w.BodyCount(), w.JointCount())
	}
	if w.IsLocked() {
		t.Fatal("world still locked after Step")
	}
}

func TestBulletDoesNotTunnel(t *testing.T) {
	build := func(continuous bool) *Body {
		w := NewWorld(common.Vec2Zero, WithContinuousPhysics(continuous))
		wall := mustBody(t, w, StaticBody, 0, 0)
		mustFixture(t, wall, collision.NewBox(0.1, 5), 0)

		def := DefaultBodyDef()
		def.Type = DynamicBody
		def.Bullet = true
		def.Position = common.MakeVec2(-1, 0)
		def.LinearVelocity = common.MakeVec2(100, 0)
		b, err := w.CreateBody(&def)
		if err != nil {
			t.Fatal(err)
		}
		mustFixture(t, b, collision.NewCircle(common.Vec2Zero, 0.1), 1)

		stepN(t, w, 1)
		return b
	}

	if x := build(false).Position().X; x < 0.2 {
		t.Fatalf("discrete step: x = %v, expected the body to pass the wall", x)
	}

	b := build(true)
	if x := b.Position().X; x >= 0 {
		t.Fatalf("continuous step: x = %v, body tunneled through the wall", x)
	}
	touching := false
	for _, ce := range b.ContactEdges() {
		touching = touching || ce.Contact.IsTouching()
	}
	if !touching {
		t.Fatal("no touching contact with the wall after the TOI event")
	}
}

func TestSubSteppingResolvesOneEventPerStep(t *testing.T) {
	w := NewWorld(common.Vec2Zero, WithSubStepping(true))
	wall := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, wall, collision.NewBox(0.1, 5), 0)

	def := DefaultBodyDef()
	def.Type = DynamicBody
	def.Bullet = true
	def.Position = common.MakeVec2(-1, 0)
	def.LinearVelocity = common.MakeVec2(100, 0)
	b, err := w.CreateBody(&def)
	if err != nil {
		t.Fatal(err)
	}
	mustFixture(t, b, collision.NewCircle(common.Vec2Zero, 0.1), 1)

	stepN(t, w, 1)
	if w.stepComplete {
		t.Fatal("step completed although a TOI event was pending")
	}
	if x := b.Position().X; x >= 0 {
		t.Fatalf("x = %v, body tunneled through the wall", x)
	}

	// The next call only continues TOI resolution, so forces are dropped
	// instead of integrated.
	vy := b.LinearVelocity().Y
	b.ApplyForceToCenter(common.MakeVec2(0, 10))
	stepN(t, w, 1)
	if dv := b.LinearVelocity().Y - vy; math.Abs(dv) > 1e-6 {
		t.Fatalf("velocity integrated during a sub-step: dv.y = %v", dv)
	}
	if x := b.Position().X; x >= 0 {
		t.Fatalf("x = %v after sub-step, body tunneled through the wall", x)
	}

	for i := 0; i <= common.MaxSubSteps && !w.stepComplete; i++ {
		stepN(t, w, 1)
	}
	if !w.stepComplete {
		t.Fatal("sub-stepping never completed the step")
	}
}

func TestRestingBoxSleepsAndWakes(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, ground, collision.NewBox(10, 0.5), 0)
	box := mustBody(t, w, DynamicBody, 0, 1)
	mustFixture(t, box, collision.NewBox(0.5, 0.5), 1)

	stepN(t, w, 300)
	if box.IsAwake() {
		t.Fatalf("box still awake after 5s: v %v w %v", box.LinearVelocity(), box.AngularVelocity())
	}

	box.ApplyForceToCenter(common.MakeVec2(0, 50))
	if !box.IsAwake() {
		t.Fatal("force did not wake the box")
	}
	stepN(t, w, 1)
	if !box.IsAwake() {
		t.Fatal("box fell asleep again right after waking")
	}
}

func TestStaticBodiesDoNotJoinIslands(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, ground, collision.NewBox(20, 0.5), 0)

	resting := mustBody(t, w, DynamicBody, -10, 1)
	mustFixture(t, resting, collision.NewBox(0.5, 0.5), 1)

	restless := mustBody(t, w, DynamicBody, 10, 1)
	mustFixture(t, restless, collision.NewBox(0.5, 0.5), 1)
	restless.SetSleepingAllowed(false)

	stepN(t, w, 300)
	if resting.IsAwake() {
		t.Fatal("a body that cannot sleep kept another awake through the ground")
	}
	if !restless.IsAwake() {
		t.Fatal("body with sleeping disallowed fell asleep")
	}
}

func TestIslandSleepsAllOrNothing(t *testing.T) {
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	mustFixture(t, ground, collision.NewBox(20, 0.5), 0)

	bottom := mustBody(t, w, DynamicBody, 0, 1)
	mustFixture(t, bottom, collision.NewBox(0.5, 0.5), 1)
	top := mustBody(t, w, DynamicBody, 0, 2)
	mustFixture(t, top, collision.NewBox(0.5, 0.5), 1)
	top.SetSleepingAllowed(false)

	for i := 0; i < 300; i++ {
		stepN(t, w, 1)
		if bottom.IsAwake() != top.IsAwake() {
			t.Fatalf("step %d: stacked bodies disagree: bottom %v top %v", i, bottom.IsAwake(), top.IsAwake())
		}
	}
	if !bottom.IsAwake() {
		t.Fatal("island slept although one body may not sleep")
	}
}

type goodbyes struct {
	fixtures []*Fixture
	joints   []Joint
}

func (g *goodbyes) SayGoodbyeToFixture(f *Fixture) { g.fixtures = append(g.fixtures, f) }
func (g *goodbyes) SayGoodbyeToJoint(j Joint)      { g.joints = append(g.joints, j) }

func TestDestroyBodyCascades(t *testing.T) {
	w := newTestWorld(t)
	listener := &goodbyes{}
	w.SetDestructionListener(listener)

	a := mustBody(t, w, DynamicBody, 0, 0)
	fa := mustFixture(t, a, collision.NewBox(1, 1), 1)
	b := mustBody(t, w, DynamicBody, 1.5, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)
	c := mustBody(t, w, DynamicBody, 20, 0)

	jd := &RevoluteJointDef{}
	jd.CollideConnected = true
	jd.Initialize(a, c, common.MakeVec2(10, 0))
	j, err := w.CreateJoint(jd)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	if w.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d, want 1", w.ContactCount())
	}

	if err := w.DestroyBody(a); err != nil {
		t.Fatal(err)
	}

	if w.ContactCount() != 0 || len(b.ContactEdges()) != 0 {
		t.Fatalf("contacts survived: world %d, b edges %d", w.ContactCount(), len(b.ContactEdges()))
	}
	if w.JointCount() != 0 || len(c.JointEdges()) != 0 {
		t.Fatalf("joints survived: world %d, c edges %d", w.JointCount(), len(c.JointEdges()))
	}
	if len(listener.joints) != 1 || listener.joints[0] != j {
		t.Fatalf("joint goodbyes = %v", listener.joints)
	}
	if len(listener.fixtures) != 1 || listener.fixtures[0] != fa {
		t.Fatalf("fixture goodbyes = %v", listener.fixtures)
	}
	if got := w.Bodies(); len(got) != 2 || got[0] != b || got[1] != c {
		t.Fatalf("bodies after destroy = %v", got)
	}
	if w.ProxyCount() != 1 {
		t.Fatalf("ProxyCount = %d, want 1", w.ProxyCount())
	}
	if err := w.DestroyBody(a); !errors.Is(err, ErrInvalidDef) {
		t.Fatalf("second destroy: err = %v, want ErrInvalidDef", err)
	}
}

func poolStat(w *World, a, b collision.ShapeType) ContactPoolStat {
	for _, s := range w.ContactPoolStats() {
		if s.TypeA == a && s.TypeB == b {
			return s
		}
	}
	return ContactPoolStat{}
}

func TestContactPoolReuse(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	a := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, a, collision.NewBox(1, 1), 1)
	b := mustBody(t, w, DynamicBody, 1.5, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	s := poolStat(w, collision.ShapePolygon, collision.ShapePolygon)
	if s.Created != 1 || s.Free != 0 {
		t.Fatalf("after create: %+v", s)
	}

	if err := w.DestroyBody(b); err != nil {
		t.Fatal(err)
	}
	s = poolStat(w, collision.ShapePolygon, collision.ShapePolygon)
	if s.Created != 1 || s.Free != 1 {
		t.Fatalf("after destroy: %+v", s)
	}

	c := mustBody(t, w, DynamicBody, -1.5, 0)
	mustFixture(t, c, collision.NewBox(1, 1), 1)
	if err := w.Step(0, testVelIter, testPosIter); err != nil {
		t.Fatal(err)
	}
	s = poolStat(w, collision.ShapePolygon, collision.ShapePolygon)
	if s.Created != 1 || s.Free != 0 {
		t.Fatalf("after reuse: %+v", s)
	}
	if w.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d, want 1", w.ContactCount())
	}
}

func TestNoDuplicateContacts(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	a := mustBody(t, w, DynamicBody, 0, 0)
	mustFixture(t, a, collision.NewBox(1, 1), 1)
	b := mustBody(t, w, DynamicBody, 1.5, 0)
	mustFixture(t, b, collision.NewBox(1, 1), 1)

	for i := 0; i < 10; i++ {
		// Touching both proxies makes the broad-phase report the pair again.
		a.touchProxies()
		b.touchProxies()
		if err := w.Step(0, testVelIter, testPosIter); err != nil {
			t.Fatal(err)
		}
		w.contactManager.findNewContacts()
	}
	if w.ContactCount() != 1 || len(a.ContactEdges()) != 1 || len(b.ContactEdges()) != 1 {
		t.Fatalf("contacts: world %d a %d b %d, want 1", w.ContactCount(), len(a.ContactEdges()), len(b.ContactEdges()))
	}
}

func TestOptionsAreObservable(t *testing.T) {
	w := NewWorld(common.MakeVec2(1, 2),
		WithAllowSleep(false),
		WithWarmStarting(false),
		WithContinuousPhysics(false),
		WithSubStepping(true),
		WithAutoClearForces(false),
	)
	if w.AllowSleeping() || w.WarmStarting() || w.ContinuousPhysics() || !w.SubStepping() || w.AutoClearForces() {
		t.Fatalf("options not applied: sleep %v warm %v ccd %v sub %v clear %v",
			w.AllowSleeping(), w.WarmStarting(), w.ContinuousPhysics(), w.SubStepping(), w.AutoClearForces())
	}
	if g := w.Gravity(); g != common.MakeVec2(1, 2) {
		t.Fatalf("gravity = %v", g)
	}

	d := NewWorld(common.Vec2Zero)
	if !d.AllowSleeping() || !d.WarmStarting() || !d.ContinuousPhysics() || d.SubStepping() || !d.AutoClearForces() {
		t.Fatal("unexpected defaults")
	}
}

func TestDisallowSleepingWakesBodies(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 0, 0)
	b.SetAwake(false)
	w.SetAllowSleeping(false)
	if !b.IsAwake() {
		t.Fatal("SetAllowSleeping(false) left a body asleep")
	}
}

func TestAutoClearForces(t *testing.T) {
	for _, auto := range []bool{true, false} {
		w := NewWorld(common.Vec2Zero, WithAutoClearForces(auto))
		b := mustBody(t, w, DynamicBody, 0, 0)
		mustFixture(t, b, collision.NewCircle(common.Vec2Zero, 1), 1)
		b.ApplyForceToCenter(common.MakeVec2(1, 0))
		stepN(t, w, 1)
		if cleared := b.Force().IsZero(); cleared != auto {
			t.Fatalf("auto %v: force after step = %v", auto, b.Force())
		}
	}
}

func TestQueryAABB(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	here := mustBody(t, w, StaticBody, 0, 0)
	fNear := mustFixture(t, here, collision.NewBox(1, 1), 0)
	far := mustBody(t, w, StaticBody, 50, 0)
	mustFixture(t, far, collision.NewBox(1, 1), 0)

	var found []*Fixture
	box := collision.AABB{LowerBound: common.MakeVec2(-0.5, -0.5), UpperBound: common.MakeVec2(0.5, 0.5)}
	w.QueryAABB(func(f *Fixture) bool {
		found = append(found, f)
		return true
	}, box)

	if len(found) != 1 || found[0] != fNear {
		t.Fatalf("query found %v, want only the near fixture", found)
	}
}

func TestRayCastClosest(t *testing.T) {
	w := NewWorld(common.Vec2Zero)
	for _, x := range []float64{5, 10, 15} {
		b := mustBody(t, w, StaticBody, x, 0)
		mustFixture(t, b, collision.NewBox(1, 1), 0)
	}

	var closest *Fixture
	var point, normal common.Vec2
	w.RayCast(func(f *Fixture, p, n common.Vec2, fraction float64) float64 {
		closest, point, normal = f, p, n
		return fraction
	}, common.MakeVec2(0, 0), common.MakeVec2(20, 0))

	if closest == nil {
		t.Fatal("ray missed every box")
	}
	if got := closest.Body().Position().X; got != 5 {
		t.Fatalf("closest body at x = %v, want 5", got)
	}
	if !near(point.X, 4, 1e-9) || !near(normal.X, -1, 1e-9) {
		t.Fatalf("hit point %v normal %v, want (4, 0) and (-1, 0)", point, normal)
	}
}

func TestShiftOrigin(t *testing.T) {
	w := newTestWorld(t)
	b := mustBody(t, w, DynamicBody, 100, 50)
	f := mustFixture(t, b, collision.NewBox(1, 1), 1)

	if err := w.ShiftOrigin(common.MakeVec2(100, 50)); err != nil {
		t.Fatal(err)
	}
	if p := b.Position(); !near(p.X, 0, 1e-9) || !near(p.Y, 0, 1e-9) {
		t.Fatalf("position = %v, want origin", p)
	}
	var hit bool
	w.QueryAABB(func(g *Fixture) bool {
		hit = hit || g == f
		return true
	}, collision.AABB{LowerBound: common.MakeVec2(-0.1, -0.1), UpperBound: common.MakeVec2(0.1, 0.1)})
	if !hit {
		t.Fatal("broad-phase was not shifted")
	}
}

// buildStack is a small scene used by trace tests.
func buildStack(t *testing.T) (*World, []*Body) {
	t.Helper()
	w := newTestWorld(t)
	ground := mustBody(t, w, StaticBody, 0, 0)
	edge := collision.NewEdge(common.MakeVec2(-20, 0), common.MakeVec2(20, 0))
	mustFixture(t, ground, edge, 0)

	bodies := []*Body{ground}
	for i := 0; i < 4; i++ {
		b := mustBody(t, w, DynamicBody, 0.1*float64(i), 0.6+1.1*float64(i))
		def := DefaultFixtureDef(collision.NewBox(0.5, 0.5))
		def.Density = 1
		def.Friction = 0.6
		if _, err := b.CreateFixture(&def); err != nil {
			t.Fatal(err)
		}
		bodies = append(bodies, b)
	}
	ball := mustBody(t, w, DynamicBody, -3, 4)
	mustFixture(t, ball, collision.NewCircle(common.Vec2Zero, 0.4), 2)
	ball.SetLinearVelocity(common.MakeVec2(4, 0))
	bodies = append(bodies, ball)
	return w, bodies
}

func trace(t *testing.T, w *World, bodies []*Body, steps int) string {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < steps; i++ {
		stepN(t, w, 1)
		for k, b := range bodies {
			p := b.Position()
			fmt.Fprintf(&sb, "%v(%02d): %4.3f %4.3f %4.3f\n", i, k, p.X, p.Y, b.Angle())
		}
	}
	return sb.String()
}

func TestDeterministicTrace(t *testing.T) {
	w1, b1 := buildStack(t)
	w2, b2 := buildStack(t)

	expected := trace(t, w1, b1, 120)
	output := trace(t, w2, b2, 120)

	if output != expected {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(expected),
			B:        difflib.SplitLines(output),
			FromFile: "First",
			ToFile:   "Second",
			Context:  0,
		}
		text, _ := difflib.GetUnifiedDiffString(diff)
		t.Fatalf("identical worlds diverged:\n%s", text)
	}
}

func TestStackSettles(t *testing.T) {
	w, bodies := buildStack(t)
	stepN(t, w, 240)
	for k, b := range bodies[1:5] {
		if y := b.Position().Y; y < 0.4 || y > 5 {
			t.Fatalf("box %d at y = %v, fell through or flew away", k, y)
		}
	}
	if w.ContactCount() == 0 {
		t.Fatal("no contacts in a resting stack")
	}
	if p := w.Profile(); p.Step < 0 || p.Collide < 0 {
		t.Fatalf("bad profile %+v", p)
	}
}
