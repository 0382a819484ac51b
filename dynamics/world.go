package dynamics

import (
	"fmt"
	"slices"
	"time"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

type worldState uint8

const (
	worldIdle worldState = iota
	worldStepping
)

// World owns bodies, joints and contacts and advances them in time.
// A World is not safe for concurrent use.
type World struct {
	state      worldState
	newFixture bool

	contactManager *contactManager

	bodies []*Body
	joints []Joint

	gravity common.Vec2

	allowSleep        bool
	warmStarting      bool
	continuousPhysics bool
	subStepping       bool
	autoClearForces   bool

	// stepComplete is false while sub-stepping has TOI events left.
	stepComplete bool

	// invDt0 is the inverse of the last positive time step.
	invDt0 float64

	destructionListener DestructionListener

	profile Profile

	island    island
	toiIsland island
	stack     common.Stack[*Body]
}

// NewWorld creates an empty world with the given gravity.
func NewWorld(gravity common.Vec2, opts ...Option) *World {
	w := &World{
		gravity:           gravity,
		contactManager:    newContactManager(),
		allowSleep:        true,
		warmStarting:      true,
		continuousPhysics: true,
		autoClearForces:   true,
		stepComplete:      true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// requireIdle rejects topology changes made from inside Step.
func (w *World) requireIdle(op string) error {
	if w.state == worldIdle {
		return nil
	}
	Logger().Warn("mutation rejected while stepping", "op", op)
	return fmt.Errorf("%s: %w", op, ErrLocked)
}

// IsLocked reports whether the world is in the middle of a step.
func (w *World) IsLocked() bool { return w.state == worldStepping }

// CreateBody adds a body built from def. Bodies start without fixtures.
func (w *World) CreateBody(def *BodyDef) (*Body, error) {
	if err := w.requireIdle("CreateBody"); err != nil {
		return nil, err
	}
	if err := def.validate(); err != nil {
		return nil, err
	}

	b := newBody(def, w)
	b.index = len(w.bodies)
	w.bodies = append(w.bodies, b)

	Logger().Debug("body created", "index", b.index, "type", b.typ)
	return b, nil
}

// DestroyBody removes b along with its joints, contacts and fixtures.
// The destruction listener hears about the joints and fixtures.
func (w *World) DestroyBody(b *Body) error {
	if err := w.requireIdle("DestroyBody"); err != nil {
		return err
	}
	if !w.owns(b) {
		return invalidDef("DestroyBody: body does not belong to this world")
	}

	for n := len(b.jointEdges); n > 0; n = len(b.jointEdges) {
		j := b.jointEdges[n-1].Joint
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeToJoint(j)
		}
		w.destroyJoint(j)
	}

	b.destroyContacts()

	bp := w.contactManager.broadPhase
	for _, f := range b.fixtures {
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeToFixture(f)
		}
		f.destroyProxies(bp)
	}
	clear(b.fixtures)
	b.fixtures = b.fixtures[:0]

	i := b.index
	w.bodies = slices.Delete(w.bodies, i, i+1)
	for k := i; k < len(w.bodies); k++ {
		w.bodies[k].index = k
	}
	b.index = -1

	Logger().Debug("body destroyed", "index", i)
	return nil
}

func (w *World) owns(b *Body) bool {
	return b != nil && b.world == w && b.index >= 0 && b.index < len(w.bodies) && w.bodies[b.index] == b
}

// CreateJoint connects two bodies. When the joint does not let its bodies
// collide, existing contacts between them are dropped on the next step.
func (w *World) CreateJoint(def JointDefinition) (Joint, error) {
	if err := w.requireIdle("CreateJoint"); err != nil {
		return nil, err
	}
	jd := def.jointDef()
	switch {
	case jd.BodyA == nil || jd.BodyB == nil:
		return nil, invalidDef("CreateJoint: nil body")
	case jd.BodyA == jd.BodyB:
		return nil, invalidDef("CreateJoint: body joined to itself")
	case !w.owns(jd.BodyA) || !w.owns(jd.BodyB):
		return nil, invalidDef("CreateJoint: body does not belong to this world")
	}
	if v, ok := def.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}

	j := def.create()
	jb := j.base()
	jb.index = len(w.joints)
	w.joints = append(w.joints, j)

	bodyA, bodyB := jb.bodyA, jb.bodyB
	jb.edgeA = bodyA.addJointEdge(JointEdge{Other: bodyB, Joint: j})
	jb.edgeB = bodyB.addJointEdge(JointEdge{Other: bodyA, Joint: j})

	if !jb.collideConnected {
		flagContactsBetween(bodyA, bodyB)
	}

	Logger().Debug("joint created", "type", jb.typ, "index", jb.index)
	return j, nil
}

// DestroyJoint removes j and wakes both of its bodies.
func (w *World) DestroyJoint(j Joint) error {
	if err := w.requireIdle("DestroyJoint"); err != nil {
		return err
	}
	if j == nil {
		return invalidDef("DestroyJoint: nil joint")
	}
	jb := j.base()
	if jb.index < 0 || jb.index >= len(w.joints) || w.joints[jb.index] != j {
		return invalidDef("DestroyJoint: joint does not belong to this world")
	}
	w.destroyJoint(j)
	return nil
}

func (w *World) destroyJoint(j Joint) {
	jb := j.base()
	bodyA, bodyB := jb.bodyA, jb.bodyB

	last := len(w.joints) - 1
	moved := w.joints[last]
	w.joints[jb.index] = moved
	moved.base().index = jb.index
	w.joints[last] = nil
	w.joints = w.joints[:last]

	bodyA.SetAwake(true)
	bodyB.SetAwake(true)

	bodyA.removeJointEdge(jb.edgeA)
	bodyB.removeJointEdge(jb.edgeB)
	jb.index, jb.edgeA, jb.edgeB = -1, -1, -1

	if !jb.collideConnected {
		flagContactsBetween(bodyA, bodyB)
	}

	Logger().Debug("joint destroyed", "type", jb.typ)

	// A gear cannot outlive the joints it couples.
	var gears []Joint
	for _, other := range w.joints {
		if g, ok := other.(*GearJoint); ok && (g.joint1 == j || g.joint2 == j) {
			gears = append(gears, g)
		}
	}
	for _, g := range gears {
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeToJoint(g)
		}
		w.destroyJoint(g)
	}
}

func flagContactsBetween(a, b *Body) {
	for _, ce := range b.contactEdges {
		if ce.Other == a {
			ce.Contact.flagForFiltering()
		}
	}
}

// Step advances the world by dt seconds. Contacts are updated, islands are
// solved with the given iteration counts and, with continuous physics,
// time of impact events are resolved.
func (w *World) Step(dt float64, velocityIterations, positionIterations int) error {
	if err := w.requireIdle("Step"); err != nil {
		return err
	}
	if !common.IsValid(dt) || dt < 0 || velocityIterations < 0 || positionIterations < 0 {
		return invalidDef("Step: dt %v, iterations %d/%d", dt, velocityIterations, positionIterations)
	}
	stepStart := time.Now()

	// Fixtures added since the last step need their contacts now.
	if w.newFixture {
		w.contactManager.findNewContacts()
		w.newFixture = false
	}

	w.state = worldStepping
	defer func() { w.state = worldIdle }()

	step := timeStep{
		dt:                 dt,
		velocityIterations: velocityIterations,
		positionIterations: positionIterations,
		dtRatio:            w.invDt0 * dt,
		warmStarting:       w.warmStarting,
	}
	if dt > 0 {
		step.invDt = 1.0 / dt
	}

	start := time.Now()
	w.contactManager.collide()
	w.profile.Collide = millis(time.Since(start))

	if w.stepComplete && step.dt > 0 {
		start = time.Now()
		w.solve(step)
		w.profile.Solve = millis(time.Since(start))
	}

	if w.continuousPhysics && step.dt > 0 {
		start = time.Now()
		w.solveTOI(step)
		w.profile.SolveTOI = millis(time.Since(start))
	}

	if step.dt > 0 {
		w.invDt0 = step.invDt
	}

	if w.autoClearForces {
		w.ClearForces()
	}

	w.profile.Step = millis(time.Since(stepStart))
	return nil
}

// solve finds the islands of awake bodies and solves each one.
func (w *World) solve(step timeStep) {
	w.profile.SolveInit = 0
	w.profile.SolveVelocity = 0
	w.profile.SolvePosition = 0

	for _, b := range w.bodies {
		b.prevXf = b.xf
		b.clearIsland()
	}
	for _, c := range w.contactManager.contacts {
		c.flags.clear(contactIsland)
	}
	for _, j := range w.joints {
		j.base().islandFlag = false
	}

	is := &w.island
	is.listener = w.contactManager.listener
	stack := &w.stack

	for _, seed := range w.bodies {
		if seed.inIsland() || !seed.IsAwake() || !seed.IsActive() || seed.typ == StaticBody {
			continue
		}

		is.clear()
		stack.Reset()
		stack.Push(seed)
		seed.markIsland()

		// Depth first search over the constraint graph.
		for {
			b, ok := stack.Pop()
			if !ok {
				break
			}
			common.Assert(b.IsActive())
			is.addBody(b)
			b.SetAwake(true)

			// Static bodies join islands but do not connect them.
			if b.typ == StaticBody {
				continue
			}

			for _, ce := range b.contactEdges {
				c := ce.Contact
				if c.flags.has(contactIsland) {
					continue
				}
				if !c.IsEnabled() || !c.IsTouching() {
					continue
				}
				if c.fixtureA.isSensor || c.fixtureB.isSensor {
					continue
				}

				is.addContact(c)
				c.flags.set(contactIsland)

				if other := ce.Other; !other.inIsland() {
					stack.Push(other)
					other.markIsland()
				}
			}

			for _, je := range b.jointEdges {
				jb := je.Joint.base()
				if jb.islandFlag {
					continue
				}
				other := je.Other
				if !other.IsActive() || !je.Joint.IsActive() {
					continue
				}

				is.addJoint(je.Joint)
				jb.islandFlag = true

				if !other.inIsland() {
					stack.Push(other)
					other.markIsland()
				}
			}
		}

		var profile Profile
		is.solve(&profile, step, w.gravity, w.allowSleep)
		w.profile.SolveInit += profile.SolveInit
		w.profile.SolveVelocity += profile.SolveVelocity
		w.profile.SolvePosition += profile.SolvePosition

		if len(is.bodies) > 0 && !is.bodies[0].IsAwake() {
			Logger().Debug("island asleep", "bodies", len(is.bodies))
		}

		// Static bodies may take part in other islands.
		for _, b := range is.bodies {
			if b.typ == StaticBody {
				b.clearIsland()
			}
		}
	}
	is.clear()

	start := time.Now()
	for _, b := range w.bodies {
		// Only bodies that were in an island moved.
		if !b.inIsland() || b.typ == StaticBody {
			continue
		}
		b.synchronizeFixtures()
	}
	w.contactManager.findNewContacts()
	w.profile.BroadPhase = millis(time.Since(start))
}

// toiSubStepPositionIterations is the position iteration count of a TOI
// sub-step. TOI events only push two bodies apart, so they converge fast
// but need accuracy.
const toiSubStepPositionIterations = 20

// solveTOI resolves time of impact events one at a time, earliest first.
func (w *World) solveTOI(step timeStep) {
	is := &w.toiIsland
	is.listener = w.contactManager.listener
	listener := w.contactManager.listener

	if w.stepComplete {
		for _, b := range w.bodies {
			b.clearIsland()
			b.sweep.Alpha0 = 0
		}
		for _, c := range w.contactManager.contacts {
			c.flags.clear(contactTOI | contactIsland)
			c.toiCount = 0
			c.toi = 1
		}
	}

	for {
		minContact, minAlpha := w.findMinTOI()

		if minContact == nil || 1.0-10.0*common.Epsilon < minAlpha {
			// No more TOI events.
			w.stepComplete = true
			break
		}

		bA := minContact.fixtureA.body
		bB := minContact.fixtureB.body
		backupA, backupB := bA.sweep, bB.sweep

		bA.advance(minAlpha)
		bB.advance(minAlpha)

		// The TOI contact likely has some new contact points.
		minContact.update(listener)
		minContact.flags.clear(contactTOI)
		minContact.toiCount++

		// Is the contact solid?
		if !minContact.IsEnabled() || !minContact.IsTouching() {
			// Restore the sweeps.
			minContact.SetEnabled(false)
			bA.sweep, bB.sweep = backupA, backupB
			bA.synchronizeTransform()
			bB.synchronizeTransform()
			continue
		}

		bA.SetAwake(true)
		bB.SetAwake(true)

		is.clear()
		is.addBody(bA)
		is.addBody(bB)
		is.addContact(minContact)

		bA.markIsland()
		bB.markIsland()
		minContact.flags.set(contactIsland)

		for _, body := range [2]*Body{bA, bB} {
			if body.typ == DynamicBody {
				w.gatherTOINeighbors(body, minAlpha)
			}
		}

		subStep := timeStep{
			dt:                 (1.0 - minAlpha) * step.dt,
			dtRatio:            1,
			positionIterations: toiSubStepPositionIterations,
			velocityIterations: step.velocityIterations,
		}
		subStep.invDt = 1.0 / subStep.dt
		is.solveTOI(subStep, bA.islandIndex, bB.islandIndex)

		Logger().Debug("toi event", "alpha", minAlpha, "bodies", len(is.bodies))

		// Reset island flags and synchronize broad-phase proxies.
		for _, body := range is.bodies {
			body.clearIsland()
			if body.typ != DynamicBody {
				continue
			}
			body.synchronizeFixtures()

			// Invalidate all contact TOIs on this displaced body.
			for _, ce := range body.contactEdges {
				ce.Contact.flags.clear(contactTOI | contactIsland)
			}
		}

		// Also look for new contacts so the next event is not missed.
		w.contactManager.findNewContacts()

		if w.subStepping {
			w.stepComplete = false
			break
		}
	}
	is.clear()
}

// findMinTOI computes missing TOIs and returns the earliest contact.
func (w *World) findMinTOI() (*Contact, float64) {
	var minContact *Contact
	minAlpha := 1.0

	for _, c := range w.contactManager.contacts {
		if !c.IsEnabled() {
			continue
		}
		// Prevent excessive sub-stepping.
		if c.toiCount > common.MaxSubSteps {
			continue
		}

		alpha := 1.0
		if c.flags.has(contactTOI) {
			// This contact has a valid cached TOI.
			alpha = c.toi
		} else {
			fA, fB := c.fixtureA, c.fixtureB
			if fA.isSensor || fB.isSensor {
				continue
			}

			bA, bB := fA.body, fB.body
			typeA, typeB := bA.typ, bB.typ
			common.Assert(typeA == DynamicBody || typeB == DynamicBody)

			activeA := bA.IsAwake() && typeA != StaticBody
			activeB := bB.IsAwake() && typeB != StaticBody
			if !activeA && !activeB {
				continue
			}

			collideA := bA.IsBullet() || typeA != DynamicBody
			collideB := bB.IsBullet() || typeB != DynamicBody
			// Dynamic bodies only sweep against non-dynamic bodies or bullets.
			if !collideA && !collideB {
				continue
			}

			// Put the sweeps onto the same time interval.
			alpha0 := bA.sweep.Alpha0
			if bA.sweep.Alpha0 < bB.sweep.Alpha0 {
				alpha0 = bB.sweep.Alpha0
				bA.sweep.Advance(alpha0)
			} else if bB.sweep.Alpha0 < bA.sweep.Alpha0 {
				alpha0 = bA.sweep.Alpha0
				bB.sweep.Advance(alpha0)
			}
			common.Assert(alpha0 < 1)

			input := collision.TOIInput{
				ProxyA: collision.MakeDistanceProxy(fA.shape, c.childA),
				ProxyB: collision.MakeDistanceProxy(fB.shape, c.childB),
				SweepA: bA.sweep,
				SweepB: bB.sweep,
				TMax:   1,
			}
			out := collision.TimeOfImpact(&input)

			// beta is the fraction of the remaining portion of the step.
			if out.State == collision.TOITouching {
				alpha = min(alpha0+(1.0-alpha0)*out.T, 1.0)
			}

			c.toi = alpha
			c.flags.set(contactTOI)
		}

		if alpha < minAlpha {
			minContact = c
			minAlpha = alpha
		}
	}
	return minContact, minAlpha
}

// gatherTOINeighbors adds the touching static, kinematic and bullet
// neighbors of body to the TOI island, advanced to alpha.
func (w *World) gatherTOINeighbors(body *Body, alpha float64) {
	is := &w.toiIsland
	listener := w.contactManager.listener

	for _, ce := range body.contactEdges {
		if len(is.bodies) == 2*common.MaxTOIContacts || len(is.contacts) == common.MaxTOIContacts {
			break
		}

		c := ce.Contact
		if c.flags.has(contactIsland) {
			continue
		}

		// Only add static, kinematic, or bullet bodies.
		other := ce.Other
		if other.typ == DynamicBody && !body.IsBullet() && !other.IsBullet() {
			continue
		}
		if c.fixtureA.isSensor || c.fixtureB.isSensor {
			continue
		}

		// Tentatively advance the body to the TOI.
		backup := other.sweep
		if !other.inIsland() {
			other.advance(alpha)
		}

		c.update(listener)

		if !c.IsEnabled() || !c.IsTouching() {
			other.sweep = backup
			other.synchronizeTransform()
			continue
		}

		c.flags.set(contactIsland)
		is.addContact(c)

		if other.inIsland() {
			continue
		}
		other.markIsland()
		if other.typ != StaticBody {
			other.SetAwake(true)
		}
		is.addBody(other)
	}
}

// ClearForces zeroes the accumulated force and torque of every body. Steps
// do this automatically unless auto clearing is off.
func (w *World) ClearForces() {
	for _, b := range w.bodies {
		b.force = common.Vec2Zero
		b.torque = 0
	}
}

// QueryAABB calls fn for every fixture whose fat AABB overlaps aabb until
// fn returns false.
func (w *World) QueryAABB(fn QueryCallback, aabb collision.AABB) {
	bp := w.contactManager.broadPhase
	bp.Query(func(proxyID int) bool {
		proxy := bp.UserData(proxyID).(*fixtureProxy)
		return fn(proxy.fixture)
	}, aabb)
}

// RayCast calls fn for every fixture the segment p1-p2 hits. fn controls
// the ray: return -1 to ignore the fixture, 0 to stop, the fraction to
// clip to this hit or 1 to continue.
func (w *World) RayCast(fn RayCastCallback, p1, p2 common.Vec2) {
	bp := w.contactManager.broadPhase
	input := collision.RayCastInput{P1: p1, P2: p2, MaxFraction: 1}
	bp.RayCast(func(input collision.RayCastInput, proxyID int) float64 {
		proxy := bp.UserData(proxyID).(*fixtureProxy)
		out, hit := proxy.fixture.RayCast(input, proxy.childIndex)
		if !hit {
			return input.MaxFraction
		}
		point := input.P1.Mul(1.0 - out.Fraction).Add(input.P2.Mul(out.Fraction))
		return fn(proxy.fixture, point, out.Normal, out.Fraction)
	}, input)
}

// ShiftOrigin moves the world origin to newOrigin. Every position is
// translated by -newOrigin.
func (w *World) ShiftOrigin(newOrigin common.Vec2) error {
	if err := w.requireIdle("ShiftOrigin"); err != nil {
		return err
	}
	for _, b := range w.bodies {
		b.xf.P = b.xf.P.Sub(newOrigin)
		b.prevXf.P = b.prevXf.P.Sub(newOrigin)
		b.sweep.C0 = b.sweep.C0.Sub(newOrigin)
		b.sweep.C = b.sweep.C.Sub(newOrigin)
	}
	for _, j := range w.joints {
		j.ShiftOrigin(newOrigin)
	}
	w.contactManager.broadPhase.ShiftOrigin(newOrigin)
	return nil
}

func (w *World) Gravity() common.Vec2           { return w.gravity }
func (w *World) SetGravity(gravity common.Vec2) { w.gravity = gravity }

// Profile returns the timings of the last step.
func (w *World) Profile() Profile { return w.profile }

// ContactPoolStats reports the recycled contacts per shape pair.
func (w *World) ContactPoolStats() []ContactPoolStat {
	return w.contactManager.registers.stats()
}

func (w *World) AllowSleeping() bool { return w.allowSleep }

// SetAllowSleeping turns sleeping on or off. Turning it off wakes every body.
func (w *World) SetAllowSleeping(allow bool) {
	if allow == w.allowSleep {
		return
	}
	w.allowSleep = allow
	if !allow {
		for _, b := range w.bodies {
			b.SetAwake(true)
		}
	}
}

func (w *World) WarmStarting() bool                   { return w.warmStarting }
func (w *World) SetWarmStarting(enabled bool)         { w.warmStarting = enabled }
func (w *World) ContinuousPhysics() bool              { return w.continuousPhysics }
func (w *World) SetContinuousPhysics(enabled bool)    { w.continuousPhysics = enabled }
func (w *World) SubStepping() bool                    { return w.subStepping }
func (w *World) SetSubStepping(enabled bool)          { w.subStepping = enabled }
func (w *World) AutoClearForces() bool                { return w.autoClearForces }
func (w *World) SetAutoClearForces(enabled bool)      { w.autoClearForces = enabled }
func (w *World) SetContactListener(l ContactListener) { w.contactManager.listener = l }
func (w *World) SetContactFilter(f ContactFilter)     { w.contactManager.filter = f }

func (w *World) SetDestructionListener(l DestructionListener) {
	w.destructionListener = l
}

// Bodies returns the bodies in creation order. The slice is owned by the
// world and is only valid until the next topology change.
func (w *World) Bodies() []*Body { return w.bodies }

// Joints returns the joints. The slice is owned by the world.
func (w *World) Joints() []Joint { return w.joints }

// Contacts returns the current contacts, touching or not. The slice is
// owned by the world.
func (w *World) Contacts() []*Contact { return w.contactManager.contacts }

func (w *World) BodyCount() int    { return len(w.bodies) }
func (w *World) JointCount() int   { return len(w.joints) }
func (w *World) ContactCount() int { return len(w.contactManager.contacts) }

func (w *World) ProxyCount() int      { return w.contactManager.broadPhase.ProxyCount() }
func (w *World) TreeHeight() int      { return w.contactManager.broadPhase.TreeHeight() }
func (w *World) TreeBalance() int     { return w.contactManager.broadPhase.TreeBalance() }
func (w *World) TreeQuality() float64 { return w.contactManager.broadPhase.TreeQuality() }
