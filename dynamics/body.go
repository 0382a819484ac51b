package dynamics

import (
	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

// BodyType selects how a body moves.
type BodyType uint8

const (
	// StaticBody has zero mass and zero velocity and is moved only by hand.
	StaticBody BodyType = iota
	// KinematicBody has zero mass and moves with the velocity it is given.
	KinematicBody
	// DynamicBody has positive mass and responds to forces and contacts.
	DynamicBody
)

func (t BodyType) String() string {
	switch t {
	case StaticBody:
		return "static"
	case KinematicBody:
		return "kinematic"
	case DynamicBody:
		return "dynamic"
	}
	return "unknown"
}

// BodyDef holds everything needed to construct a body. Reuse one definition
// for many bodies if you like.
type BodyDef struct {
	Type     BodyType
	Position common.Vec2
	Angle    float64 // radians

	LinearVelocity  common.Vec2 // of the body origin
	AngularVelocity float64

	// Damping reduces velocity without regard to contacts. Zero is no damping.
	LinearDamping  float64
	AngularDamping float64

	// AllowSleep false keeps the body, and its island, awake forever.
	AllowSleep bool
	Awake      bool
	// FixedRotation prevents rotation, useful for characters.
	FixedRotation bool
	// Bullet enables continuous collision against other dynamic bodies.
	// Use it sparingly for fast small bodies.
	Bullet bool
	Active bool

	GravityScale float64
	UserData     any
}

// DefaultBodyDef returns an awake, active static body at the origin that may
// sleep.
func DefaultBodyDef() BodyDef {
	return BodyDef{
		AllowSleep:   true,
		Awake:        true,
		Active:       true,
		GravityScale: 1,
	}
}

func (def *BodyDef) validate() error {
	switch {
	case def.Type > DynamicBody:
		return invalidDef("body type %d", def.Type)
	case !def.Position.IsValid():
		return invalidDef("body position %v", def.Position)
	case !common.IsValid(def.Angle):
		return invalidDef("body angle %v", def.Angle)
	case !def.LinearVelocity.IsValid():
		return invalidDef("body linear velocity %v", def.LinearVelocity)
	case !common.IsValid(def.AngularVelocity):
		return invalidDef("body angular velocity %v", def.AngularVelocity)
	case !common.IsValid(def.LinearDamping) || def.LinearDamping < 0:
		return invalidDef("body linear damping %v", def.LinearDamping)
	case !common.IsValid(def.AngularDamping) || def.AngularDamping < 0:
		return invalidDef("body angular damping %v", def.AngularDamping)
	case !common.IsValid(def.GravityScale) || def.GravityScale < 0:
		return invalidDef("body gravity scale %v", def.GravityScale)
	}
	return nil
}

type bodyFlags uint8

const (
	bodyIsland bodyFlags = 1 << iota
	bodyAwake
	bodyAutoSleep
	bodyBullet
	bodyFixedRotation
	bodyActive
	bodyTOI
)

func (f bodyFlags) has(m bodyFlags) bool { return f&m != 0 }
func (f *bodyFlags) set(m bodyFlags)     { *f |= m }
func (f *bodyFlags) clear(m bodyFlags)   { *f &^= m }

// Body is a rigid body. Create bodies with World.CreateBody.
type Body struct {
	typ   BodyType
	flags bodyFlags

	world *World
	// index in world.bodies; islandIndex while being solved.
	index       int
	islandIndex int

	xf     common.Transform // body origin
	prevXf common.Transform // xf before the last discrete solve
	sweep  common.Sweep     // center of mass motion

	linearVelocity  common.Vec2
	angularVelocity float64

	force  common.Vec2
	torque float64

	fixtures     []*Fixture
	contactEdges []ContactEdge
	jointEdges   []JointEdge

	mass, invMass float64
	// Rotational inertia about the center of mass.
	inertia, invI float64

	linearDamping  float64
	angularDamping float64
	gravityScale   float64

	sleepTime float64

	userData any
}

func newBody(def *BodyDef, w *World) *Body {
	b := &Body{
		typ:             def.Type,
		world:           w,
		xf:              common.MakeTransform(def.Position, def.Angle),
		linearVelocity:  def.LinearVelocity,
		angularVelocity: def.AngularVelocity,
		linearDamping:   def.LinearDamping,
		angularDamping:  def.AngularDamping,
		gravityScale:    def.GravityScale,
		userData:        def.UserData,
	}
	b.prevXf = b.xf

	if def.Bullet {
		b.flags.set(bodyBullet)
	}
	if def.FixedRotation {
		b.flags.set(bodyFixedRotation)
	}
	if def.AllowSleep {
		b.flags.set(bodyAutoSleep)
	}
	if def.Awake {
		b.flags.set(bodyAwake)
	}
	if def.Active {
		b.flags.set(bodyActive)
	}

	b.sweep.C0 = b.xf.P
	b.sweep.C = b.xf.P
	b.sweep.A0 = def.Angle
	b.sweep.A = def.Angle

	if b.typ == DynamicBody {
		b.mass = 1
		b.invMass = 1
	}
	return b
}

// checkMutable gates topology changes: the world must be idle and still own
// the body.
func (b *Body) checkMutable(op string) error {
	if err := b.world.requireIdle(op); err != nil {
		return err
	}
	if !b.world.owns(b) {
		return invalidDef("%s: body was destroyed", op)
	}
	return nil
}

// CreateFixture attaches a new fixture. A positive density updates the
// body mass. Contacts for the fixture are found at the start of the next
// step.
func (b *Body) CreateFixture(def *FixtureDef) (*Fixture, error) {
	if err := b.checkMutable("CreateFixture"); err != nil {
		return nil, err
	}
	if err := def.validate(); err != nil {
		return nil, err
	}

	f := newFixture(b, def)
	if b.flags.has(bodyActive) {
		f.createProxies(b.world.contactManager.broadPhase, b.xf)
	}
	b.fixtures = append(b.fixtures, f)

	if f.density > 0 {
		b.ResetMassData()
	}

	// Let the world know we have a new fixture. This will cause new
	// contacts to be created at the beginning of the next time step.
	b.world.newFixture = true
	return f, nil
}

// CreateShapeFixture is a shortcut for CreateFixture with default material
// and the given density.
func (b *Body) CreateShapeFixture(shape collision.Shape, density float64) (*Fixture, error) {
	def := DefaultFixtureDef(shape)
	def.Density = density
	return b.CreateFixture(&def)
}

// DestroyFixture removes f and its contacts and resets the body mass. The
// destruction listener is not called.
func (b *Body) DestroyFixture(f *Fixture) error {
	if err := b.checkMutable("DestroyFixture"); err != nil {
		return err
	}
	if f == nil || f.body != b {
		return invalidDef("fixture does not belong to this body")
	}

	idx := -1
	for i, g := range b.fixtures {
		if g == f {
			idx = i
			break
		}
	}
	common.Assert(idx >= 0)
	b.fixtures = append(b.fixtures[:idx], b.fixtures[idx+1:]...)

	// Destroy any contacts associated with the fixture. destroy swaps the
	// last edge into slot i, so i only advances past survivors.
	cm := b.world.contactManager
	for i := 0; i < len(b.contactEdges); {
		c := b.contactEdges[i].Contact
		if c.fixtureA == f || c.fixtureB == f {
			cm.destroy(c)
			continue
		}
		i++
	}

	if b.flags.has(bodyActive) {
		f.destroyProxies(cm.broadPhase)
	}
	f.body = nil

	b.ResetMassData()
	return nil
}

// ResetMassData recomputes mass, center of mass and inertia from the
// fixtures. Static and kinematic bodies get zero mass.
func (b *Body) ResetMassData() {
	b.mass = 0
	b.invMass = 0
	b.inertia = 0
	b.invI = 0
	b.sweep.LocalCenter = common.Vec2Zero

	if b.typ != DynamicBody {
		b.sweep.C0 = b.xf.P
		b.sweep.C = b.xf.P
		b.sweep.A0 = b.sweep.A
		return
	}

	// Accumulate mass over all fixtures.
	localCenter := common.Vec2Zero
	for _, f := range b.fixtures {
		if f.density == 0 {
			continue
		}
		md := f.MassData()
		b.mass += md.Mass
		localCenter = localCenter.Add(md.Center.Mul(md.Mass))
		b.inertia += md.I
	}

	if b.mass > 0 {
		b.invMass = 1 / b.mass
		localCenter = localCenter.Mul(b.invMass)
	} else {
		// Force all dynamic bodies to have a positive mass.
		b.mass = 1
		b.invMass = 1
	}

	b.setInertia(b.inertia, localCenter)
	b.moveCenter(localCenter)
}

// setInertia shifts inertia about the body origin to the center of mass.
// A non-positive result or a fixed rotation leaves the body unable to rotate.
func (b *Body) setInertia(originInertia float64, localCenter common.Vec2) {
	b.inertia = 0
	b.invI = 0
	if originInertia > 0 && !b.flags.has(bodyFixedRotation) {
		if i := originInertia - b.mass*localCenter.Dot(localCenter); i > 0 {
			b.inertia = i
			b.invI = 1 / i
		}
	}
}

// moveCenter moves the center of mass and keeps the velocity of the old
// center unchanged.
func (b *Body) moveCenter(localCenter common.Vec2) {
	oldCenter := b.sweep.C
	b.sweep.LocalCenter = localCenter
	b.sweep.C = b.xf.Apply(localCenter)
	b.sweep.C0 = b.sweep.C

	b.linearVelocity = b.linearVelocity.Add(common.CrossSV(b.angularVelocity, b.sweep.C.Sub(oldCenter)))
}

// SetMassData overrides the mass properties of a dynamic body. Other body
// types ignore it. A non-positive mass becomes 1.
func (b *Body) SetMassData(md collision.MassData) error {
	if err := b.checkMutable("SetMassData"); err != nil {
		return err
	}
	if b.typ != DynamicBody {
		return nil
	}

	b.mass = md.Mass
	if b.mass <= 0 {
		b.mass = 1
	}
	b.invMass = 1 / b.mass

	b.setInertia(md.I, md.Center)
	b.moveCenter(md.Center)
	return nil
}

// MassData returns mass, local center and inertia about the body origin.
func (b *Body) MassData() collision.MassData {
	return collision.MassData{
		Mass:   b.mass,
		Center: b.sweep.LocalCenter,
		I:      b.Inertia(),
	}
}

// SetTransform teleports the body. Proxies are moved immediately; contacts
// are updated on the next step.
func (b *Body) SetTransform(position common.Vec2, angle float64) error {
	if err := b.checkMutable("SetTransform"); err != nil {
		return err
	}
	if !position.IsValid() || !common.IsValid(angle) {
		return invalidDef("transform %v %v", position, angle)
	}

	b.xf = common.MakeTransform(position, angle)
	b.sweep.C = b.xf.Apply(b.sweep.LocalCenter)
	b.sweep.A = angle
	b.sweep.C0 = b.sweep.C
	b.sweep.A0 = angle

	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		f.synchronize(bp, b.xf, b.xf)
	}
	return nil
}

// SetType changes the body type. Mass is reset, contacts touching the body
// are destroyed and rebuilt on the next step.
func (b *Body) SetType(t BodyType) error {
	if err := b.checkMutable("SetType"); err != nil {
		return err
	}
	if t > DynamicBody {
		return invalidDef("body type %d", t)
	}
	if b.typ == t {
		return nil
	}
	b.typ = t

	b.ResetMassData()

	if b.typ == StaticBody {
		b.linearVelocity = common.Vec2Zero
		b.angularVelocity = 0
		b.sweep.A0 = b.sweep.A
		b.sweep.C0 = b.sweep.C
		b.synchronizeFixtures()
	}

	b.SetAwake(true)

	b.force = common.Vec2Zero
	b.torque = 0

	b.destroyContacts()

	// Touch the proxies so that new contacts will be created.
	b.touchProxies()
	return nil
}

// SetActive adds the body to or removes it from the simulation. Inactive
// bodies keep their fixtures and joints but have no proxies or contacts.
func (b *Body) SetActive(active bool) error {
	if err := b.checkMutable("SetActive"); err != nil {
		return err
	}
	if active == b.IsActive() {
		return nil
	}

	bp := b.world.contactManager.broadPhase
	if active {
		b.flags.set(bodyActive)
		for _, f := range b.fixtures {
			f.createProxies(bp, b.xf)
		}
		// Contacts are created the next time step.
		b.world.newFixture = true
		return nil
	}

	b.flags.clear(bodyActive)
	for _, f := range b.fixtures {
		f.destroyProxies(bp)
	}
	b.destroyContacts()
	return nil
}

// SetAwake wakes the body, or puts it to sleep and zeroes its velocity and
// forces. The solver is what puts whole islands to sleep; putting a single
// body to sleep only lasts until something touches it.
func (b *Body) SetAwake(awake bool) {
	if awake {
		if !b.flags.has(bodyAwake) {
			b.flags.set(bodyAwake)
			b.sleepTime = 0
		}
		return
	}
	b.flags.clear(bodyAwake)
	b.sleepTime = 0
	b.linearVelocity = common.Vec2Zero
	b.angularVelocity = 0
	b.force = common.Vec2Zero
	b.torque = 0
}

// SetFixedRotation resets the mass data.
func (b *Body) SetFixedRotation(fixed bool) {
	if fixed == b.IsFixedRotation() {
		return
	}
	if fixed {
		b.flags.set(bodyFixedRotation)
	} else {
		b.flags.clear(bodyFixedRotation)
	}
	b.angularVelocity = 0
	b.ResetMassData()
}

// SetSleepingAllowed false also wakes the body.
func (b *Body) SetSleepingAllowed(allowed bool) {
	if allowed {
		b.flags.set(bodyAutoSleep)
		return
	}
	b.flags.clear(bodyAutoSleep)
	b.SetAwake(true)
}

func (b *Body) SetBullet(bullet bool) {
	if bullet {
		b.flags.set(bodyBullet)
	} else {
		b.flags.clear(bodyBullet)
	}
}

// ApplyForce applies a world force at a world point, waking the body.
// Non-dynamic bodies ignore it.
func (b *Body) ApplyForce(force, point common.Vec2) {
	if b.typ != DynamicBody {
		return
	}
	b.SetAwake(true)
	b.force = b.force.Add(force)
	b.torque += point.Sub(b.sweep.C).Cross(force)
}

// ApplyForceToCenter applies a world force at the center of mass.
func (b *Body) ApplyForceToCenter(force common.Vec2) {
	if b.typ != DynamicBody {
		return
	}
	b.SetAwake(true)
	b.force = b.force.Add(force)
}

func (b *Body) ApplyTorque(torque float64) {
	if b.typ != DynamicBody {
		return
	}
	b.SetAwake(true)
	b.torque += torque
}

// ApplyLinearImpulse changes the velocity immediately.
func (b *Body) ApplyLinearImpulse(impulse, point common.Vec2) {
	if b.typ != DynamicBody {
		return
	}
	b.SetAwake(true)
	b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
	b.angularVelocity += b.invI * point.Sub(b.sweep.C).Cross(impulse)
}

func (b *Body) ApplyAngularImpulse(impulse float64) {
	if b.typ != DynamicBody {
		return
	}
	b.SetAwake(true)
	b.angularVelocity += b.invI * impulse
}

// SetLinearVelocity wakes the body for non-zero velocities. Static bodies
// ignore it.
func (b *Body) SetLinearVelocity(v common.Vec2) {
	if b.typ == StaticBody {
		return
	}
	if v.Dot(v) > 0 {
		b.SetAwake(true)
	}
	b.linearVelocity = v
}

func (b *Body) SetAngularVelocity(w float64) {
	if b.typ == StaticBody {
		return
	}
	if w*w > 0 {
		b.SetAwake(true)
	}
	b.angularVelocity = w
}

func (b *Body) Type() BodyType { return b.typ }
func (b *Body) World() *World  { return b.world }

func (b *Body) Transform() common.Transform { return b.xf }

// PreviousTransform is the transform before the last discrete solve, for
// render interpolation.
func (b *Body) PreviousTransform() common.Transform { return b.prevXf }

func (b *Body) Position() common.Vec2    { return b.xf.P }
func (b *Body) Angle() float64           { return b.sweep.A }
func (b *Body) WorldCenter() common.Vec2 { return b.sweep.C }
func (b *Body) LocalCenter() common.Vec2 { return b.sweep.LocalCenter }

func (b *Body) LinearVelocity() common.Vec2 { return b.linearVelocity }
func (b *Body) AngularVelocity() float64    { return b.angularVelocity }
func (b *Body) Force() common.Vec2          { return b.force }
func (b *Body) Torque() float64             { return b.torque }

func (b *Body) Mass() float64    { return b.mass }
func (b *Body) InvMass() float64 { return b.invMass }

// Inertia is the rotational inertia about the body origin.
func (b *Body) Inertia() float64 {
	return b.inertia + b.mass*b.sweep.LocalCenter.Dot(b.sweep.LocalCenter)
}

func (b *Body) InvInertia() float64 { return b.invI }

func (b *Body) LinearDamping() float64      { return b.linearDamping }
func (b *Body) SetLinearDamping(d float64)  { b.linearDamping = d }
func (b *Body) AngularDamping() float64     { return b.angularDamping }
func (b *Body) SetAngularDamping(d float64) { b.angularDamping = d }
func (b *Body) GravityScale() float64       { return b.gravityScale }
func (b *Body) SetGravityScale(s float64)   { b.gravityScale = s }

func (b *Body) IsAwake() bool           { return b.flags.has(bodyAwake) }
func (b *Body) IsActive() bool          { return b.flags.has(bodyActive) }
func (b *Body) IsBullet() bool          { return b.flags.has(bodyBullet) }
func (b *Body) IsFixedRotation() bool   { return b.flags.has(bodyFixedRotation) }
func (b *Body) IsSleepingAllowed() bool { return b.flags.has(bodyAutoSleep) }

// SleepTime is how long the body has been resting.
func (b *Body) SleepTime() float64 { return b.sleepTime }

// Fixtures returns the body's fixtures in creation order. Do not modify
// the slice.
func (b *Body) Fixtures() []*Fixture { return b.fixtures }

// ContactEdges returns the contacts touching the body. The slice is
// invalidated by the next step or topology change.
func (b *Body) ContactEdges() []ContactEdge { return b.contactEdges }

// JointEdges returns the joints attached to the body.
func (b *Body) JointEdges() []JointEdge { return b.jointEdges }

func (b *Body) UserData() any        { return b.userData }
func (b *Body) SetUserData(data any) { b.userData = data }

// WorldPoint maps a point in body coordinates to world coordinates.
func (b *Body) WorldPoint(local common.Vec2) common.Vec2 { return b.xf.Apply(local) }

// WorldVector rotates a body vector into world coordinates.
func (b *Body) WorldVector(local common.Vec2) common.Vec2 { return b.xf.Q.Apply(local) }

func (b *Body) LocalPoint(world common.Vec2) common.Vec2  { return b.xf.ApplyT(world) }
func (b *Body) LocalVector(world common.Vec2) common.Vec2 { return b.xf.Q.ApplyT(world) }

// LinearVelocityFromWorldPoint is the velocity of a world point attached to
// the body.
func (b *Body) LinearVelocityFromWorldPoint(p common.Vec2) common.Vec2 {
	return b.linearVelocity.Add(common.CrossSV(b.angularVelocity, p.Sub(b.sweep.C)))
}

func (b *Body) LinearVelocityFromLocalPoint(p common.Vec2) common.Vec2 {
	return b.LinearVelocityFromWorldPoint(b.WorldPoint(p))
}

func (b *Body) markIsland()    { b.flags.set(bodyIsland) }
func (b *Body) clearIsland()   { b.flags.clear(bodyIsland) }
func (b *Body) inIsland() bool { return b.flags.has(bodyIsland) }

// synchronizeFixtures moves the proxies to cover the sweep from its start
// to the current transform.
func (b *Body) synchronizeFixtures() {
	var xf1 common.Transform
	xf1.Q = common.MakeRot(b.sweep.A0)
	xf1.P = b.sweep.C0.Sub(xf1.Q.Apply(b.sweep.LocalCenter))

	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		f.synchronize(bp, xf1, b.xf)
	}
}

func (b *Body) synchronizeTransform() {
	b.xf.Q = common.MakeRot(b.sweep.A)
	b.xf.P = b.sweep.C.Sub(b.xf.Q.Apply(b.sweep.LocalCenter))
}

// advance moves the body to the safe time alpha of its sweep.
func (b *Body) advance(alpha float64) {
	b.sweep.Advance(alpha)
	b.sweep.C = b.sweep.C0
	b.sweep.A = b.sweep.A0
	b.synchronizeTransform()
}

// shouldCollide requires at least one dynamic body and no joint between
// them that disables collision.
func (b *Body) shouldCollide(other *Body) bool {
	if b.typ != DynamicBody && other.typ != DynamicBody {
		return false
	}
	for _, je := range b.jointEdges {
		if je.Other == other && !je.Joint.CollideConnected() {
			return false
		}
	}
	return true
}

func (b *Body) touchProxies() {
	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		for i := 0; i < f.proxyCount; i++ {
			bp.TouchProxy(f.proxies[i].proxyID)
		}
	}
}

func (b *Body) destroyContacts() {
	cm := b.world.contactManager
	for n := len(b.contactEdges); n > 0; n = len(b.contactEdges) {
		cm.destroy(b.contactEdges[n-1].Contact)
	}
}

func (b *Body) addContactEdge(e ContactEdge) int {
	b.contactEdges = append(b.contactEdges, e)
	return len(b.contactEdges) - 1
}

// removeContactEdge swap-removes edge i and fixes the back index of the
// edge that moved.
func (b *Body) removeContactEdge(i int) {
	last := len(b.contactEdges) - 1
	if i != last {
		moved := b.contactEdges[last]
		b.contactEdges[i] = moved
		if c := moved.Contact; c.fixtureA.body == b {
			c.edgeA = i
		} else {
			c.edgeB = i
		}
	}
	b.contactEdges[last] = ContactEdge{}
	b.contactEdges = b.contactEdges[:last]
}

func (b *Body) addJointEdge(e JointEdge) int {
	b.jointEdges = append(b.jointEdges, e)
	return len(b.jointEdges) - 1
}

func (b *Body) removeJointEdge(i int) {
	last := len(b.jointEdges) - 1
	if i != last {
		moved := b.jointEdges[last]
		b.jointEdges[i] = moved
		if jb := moved.Joint.base(); jb.bodyA == b {
			jb.edgeA = i
		} else {
			jb.edgeB = i
		}
	}
	b.jointEdges[last] = JointEdge{}
	b.jointEdges = b.jointEdges[:last]
}
