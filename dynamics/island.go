package dynamics

import (
	"math"
	"time"

	"github.com/physkit/rigid2d/common"
)

// island is the scratch set of bodies, contacts and joints that form one
// connected component of the awake constraint graph. The world keeps one
// for discrete solves and one for TOI sub-steps and reuses them.
type island struct {
	listener ContactListener

	bodies   []*Body
	contacts []*Contact
	joints   []Joint

	positions  []position
	velocities []velocity

	solver contactSolver
}

func (is *island) clear() {
	clear(is.bodies)
	clear(is.contacts)
	clear(is.joints)
	is.bodies = is.bodies[:0]
	is.contacts = is.contacts[:0]
	is.joints = is.joints[:0]
}

func (is *island) addBody(b *Body) {
	b.islandIndex = len(is.bodies)
	is.bodies = append(is.bodies, b)
}

func (is *island) addContact(c *Contact) { is.contacts = append(is.contacts, c) }
func (is *island) addJoint(j Joint)      { is.joints = append(is.joints, j) }

// grow sizes the solver buffers for the current bodies. Capacity is kept.
func (is *island) grow() {
	is.positions = resize(is.positions, len(is.bodies))
	is.velocities = resize(is.velocities, len(is.bodies))
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n, max(n, 2*cap(s)))
	}
	return s[:n]
}

// solve integrates the island over one step and puts it to sleep when
// every body has rested long enough.
func (is *island) solve(profile *Profile, step timeStep, gravity common.Vec2, allowSleep bool) {
	h := step.dt
	is.grow()

	for i, b := range is.bodies {
		c, a := b.sweep.C, b.sweep.A
		v, w := b.linearVelocity, b.angularVelocity

		b.sweep.C0 = b.sweep.C
		b.sweep.A0 = b.sweep.A

		if b.typ == DynamicBody {
			v = v.Add(gravity.Mul(b.gravityScale).Add(b.force.Mul(b.invMass)).Mul(h))
			w += h * b.invI * b.torque

			// Pade approximation of exp(-damping*h), stable for large
			// damping and time steps.
			v = v.Mul(1.0 / (1.0 + h*b.linearDamping))
			w *= 1.0 / (1.0 + h*b.angularDamping)
		}

		is.positions[i] = position{c, a}
		is.velocities[i] = velocity{v, w}
	}

	start := time.Now()
	data := &solverData{step: step, positions: is.positions, velocities: is.velocities}

	cs := &is.solver
	cs.init(step, is.contacts, is.positions, is.velocities)
	cs.initializeVelocityConstraints()
	if step.warmStarting {
		cs.warmStart()
	}
	for _, j := range is.joints {
		j.initVelocityConstraints(data)
	}
	profile.SolveInit = millis(time.Since(start))

	start = time.Now()
	for range step.velocityIterations {
		for _, j := range is.joints {
			j.solveVelocityConstraints(data)
		}
		cs.solveVelocityConstraints()
	}
	cs.storeImpulses()
	profile.SolveVelocity = millis(time.Since(start))

	is.integratePositions(h)

	start = time.Now()
	positionSolved := false
	for range step.positionIterations {
		contactsOK := cs.solvePositionConstraints()
		jointsOK := true
		for _, j := range is.joints {
			jointsOK = j.solvePositionConstraints(data) && jointsOK
		}
		if contactsOK && jointsOK {
			positionSolved = true
			break
		}
	}

	for i, b := range is.bodies {
		b.sweep.C = is.positions[i].c
		b.sweep.A = is.positions[i].a
		b.linearVelocity = is.velocities[i].v
		b.angularVelocity = is.velocities[i].w
		b.synchronizeTransform()
	}
	profile.SolvePosition = millis(time.Since(start))

	is.report()

	if !allowSleep {
		return
	}

	minSleepTime := common.MaxFloat
	const linTolSqr = common.LinearSleepTolerance * common.LinearSleepTolerance
	const angTolSqr = common.AngularSleepTolerance * common.AngularSleepTolerance

	for _, b := range is.bodies {
		if b.typ == StaticBody {
			continue
		}
		if !b.flags.has(bodyAutoSleep) ||
			b.angularVelocity*b.angularVelocity > angTolSqr ||
			b.linearVelocity.LengthSquared() > linTolSqr {
			b.sleepTime = 0
			minSleepTime = 0
		} else {
			b.sleepTime += h
			minSleepTime = min(minSleepTime, b.sleepTime)
		}
	}

	if minSleepTime >= common.TimeToSleep && positionSolved {
		for _, b := range is.bodies {
			b.SetAwake(false)
		}
	}
}

// solveTOI resolves the TOI pair at indices toiA and toiB by pushing them
// out of overlap, then integrates the island over the remaining sub-step.
// Only the two TOI bodies are moved by the position solve.
func (is *island) solveTOI(subStep timeStep, toiA, toiB int) {
	common.Assert(toiA < len(is.bodies) && toiB < len(is.bodies))
	is.grow()

	for i, b := range is.bodies {
		is.positions[i] = position{b.sweep.C, b.sweep.A}
		is.velocities[i] = velocity{b.linearVelocity, b.angularVelocity}
	}

	cs := &is.solver
	cs.init(subStep, is.contacts, is.positions, is.velocities)

	for range subStep.positionIterations {
		if cs.solveTOIPositionConstraints(toiA, toiB) {
			break
		}
	}

	// The TOI bodies restart their sweeps from the solved pose.
	for _, i := range [2]int{toiA, toiB} {
		b := is.bodies[i]
		b.sweep.C0 = is.positions[i].c
		b.sweep.A0 = is.positions[i].a
	}

	// No warm starting: the sub-step impulses are unrelated to the last step.
	cs.initializeVelocityConstraints()
	for range subStep.velocityIterations {
		cs.solveVelocityConstraints()
	}

	is.integratePositions(subStep.dt)

	for i, b := range is.bodies {
		b.sweep.C = is.positions[i].c
		b.sweep.A = is.positions[i].a
		b.linearVelocity = is.velocities[i].v
		b.angularVelocity = is.velocities[i].w
		b.synchronizeTransform()
	}

	is.report()
}

// integratePositions advances the solver positions by h, first clamping
// velocities that would move a body too far in one step.
func (is *island) integratePositions(h float64) {
	for i := range is.bodies {
		c, a := is.positions[i].c, is.positions[i].a
		v, w := is.velocities[i].v, is.velocities[i].w

		translation := v.Mul(h)
		if translation.LengthSquared() > common.MaxTranslationSquared {
			v = v.Mul(common.MaxTranslation / translation.Length())
		}

		rotation := h * w
		if rotation*rotation > common.MaxRotationSquared {
			w *= common.MaxRotation / math.Abs(rotation)
		}

		is.positions[i] = position{c.Add(v.Mul(h)), a + h*w}
		is.velocities[i] = velocity{v, w}
	}
}

func (is *island) report() {
	if is.listener == nil {
		return
	}
	for i, c := range is.contacts {
		vc := &is.solver.velocityConstraints[i]
		impulse := ContactImpulse{Count: vc.pointCount}
		for j := 0; j < vc.pointCount; j++ {
			impulse.NormalImpulses[j] = vc.points[j].normalImpulse
			impulse.TangentImpulses[j] = vc.points[j].tangentImpulse
		}
		is.listener.PostSolve(c, &impulse)
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
