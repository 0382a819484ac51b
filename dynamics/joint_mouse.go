package dynamics

import "github.com/physkit/rigid2d/common"

// MouseJointDef drags a point on body B toward a world target with a soft
// spring. BodyA is only used as the anchor for the joint graph and is
// usually a static ground body.
type MouseJointDef struct {
	JointDef
	// Target is the initial world point. The local anchor on B is taken
	// from it.
	Target       common.Vec2
	MaxForce     float64
	FrequencyHz  float64
	DampingRatio float64
}

// DefaultMouseJointDef returns a 5 Hz, 0.7 damped definition.
func DefaultMouseJointDef() MouseJointDef {
	return MouseJointDef{FrequencyHz: 5, DampingRatio: 0.7}
}

func (d *MouseJointDef) validate() error {
	switch {
	case !d.Target.IsValid():
		return invalidDef("mouse joint target %v", d.Target)
	case !common.IsValid(d.MaxForce) || d.MaxForce < 0:
		return invalidDef("mouse joint max force %v", d.MaxForce)
	case !common.IsValid(d.FrequencyHz) || d.FrequencyHz < 0:
		return invalidDef("mouse joint frequency %v", d.FrequencyHz)
	case !common.IsValid(d.DampingRatio) || d.DampingRatio < 0:
		return invalidDef("mouse joint damping ratio %v", d.DampingRatio)
	}
	return nil
}

func (d *MouseJointDef) create() Joint {
	return &MouseJoint{
		jointBase:    newJointBase(MouseJointType, &d.JointDef),
		target:       d.Target,
		localAnchorB: d.BodyB.xf.ApplyT(d.Target),
		maxForce:     d.MaxForce,
		frequencyHz:  d.FrequencyHz,
		dampingRatio: d.DampingRatio,
	}
}

// MouseJoint pulls body B toward its target.
//
//	C = p - m
//	Cdot = v + cross(w, r)
//	J = [I r_skew]
type MouseJoint struct {
	jointBase
	solverBodies

	localAnchorB              common.Vec2
	target                    common.Vec2
	frequencyHz, dampingRatio float64
	maxForce                  float64

	beta, gamma float64
	impulse     common.Vec2

	rB   common.Vec2
	mass common.Mat22
	c    common.Vec2
}

func (j *MouseJoint) Target() common.Vec2 { return j.target }

// SetTarget moves the target and wakes body B if it changed.
func (j *MouseJoint) SetTarget(target common.Vec2) {
	if target != j.target {
		j.bodyB.SetAwake(true)
		j.target = target
	}
}

func (j *MouseJoint) MaxForce() float64              { return j.maxForce }
func (j *MouseJoint) SetMaxForce(force float64)      { j.maxForce = force }
func (j *MouseJoint) Frequency() float64             { return j.frequencyHz }
func (j *MouseJoint) SetFrequency(hz float64)        { j.frequencyHz = hz }
func (j *MouseJoint) DampingRatio() float64          { return j.dampingRatio }
func (j *MouseJoint) SetDampingRatio(r float64)      { j.dampingRatio = r }
func (j *MouseJoint) AnchorA() common.Vec2           { return j.target }
func (j *MouseJoint) AnchorB() common.Vec2           { return j.bodyB.WorldPoint(j.localAnchorB) }
func (j *MouseJoint) ReactionTorque(float64) float64 { return 0 }

func (j *MouseJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.impulse.Mul(invDt)
}

func (j *MouseJoint) ShiftOrigin(newOrigin common.Vec2) {
	j.target = j.target.Sub(newOrigin)
}

func (j *MouseJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w
	qB := common.MakeRot(aB)

	var rate float64
	j.gamma, rate = softness(j.bodyB.mass, j.frequencyHz, j.dampingRatio, data.step.dt)
	j.beta = rate

	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	rB := j.rB

	k := common.MakeMat22(
		j.invMassB+j.invIB*rB.Y*rB.Y+j.gamma, -j.invIB*rB.X*rB.Y,
		-j.invIB*rB.X*rB.Y, j.invMassB+j.invIB*rB.X*rB.X+j.gamma,
	)
	j.mass = k.Inverse()

	j.c = cB.Add(rB).Sub(j.target).Mul(j.beta)

	// A little extra angular damping keeps a dragged body from spinning up.
	wB *= 0.98

	if data.step.warmStarting {
		j.impulse = j.impulse.Mul(data.step.dtRatio)
		vB = vB.Add(j.impulse.Mul(j.invMassB))
		wB += j.invIB * rB.Cross(j.impulse)
	} else {
		j.impulse = common.Vec2Zero
	}

	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *MouseJoint) solveVelocityConstraints(data *solverData) {
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	cdot := vB.Add(common.CrossSV(wB, j.rB))
	impulse := j.mass.MulVec(cdot.Add(j.c).Add(j.impulse.Mul(j.gamma))).Neg()

	old := j.impulse
	j.impulse = j.impulse.Add(impulse)
	maxImpulse := data.step.dt * j.maxForce
	if j.impulse.LengthSquared() > maxImpulse*maxImpulse {
		j.impulse = j.impulse.Mul(maxImpulse / j.impulse.Length())
	}
	impulse = j.impulse.Sub(old)

	vB = vB.Add(impulse.Mul(j.invMassB))
	wB += j.invIB * j.rB.Cross(impulse)

	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *MouseJoint) solvePositionConstraints(*solverData) bool { return true }
