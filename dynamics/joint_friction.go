package dynamics

import "github.com/physkit/rigid2d/common"

// FrictionJointDef resists relative motion of two bodies up to a maximum
// force and torque. It is useful for top-down friction.
type FrictionJointDef struct {
	JointDef
	LocalAnchorA common.Vec2
	LocalAnchorB common.Vec2
	MaxForce     float64 // N
	MaxTorque    float64 // N*m
}

// Initialize sets the bodies and anchors from a world anchor.
func (d *FrictionJointDef) Initialize(bA, bB *Body, anchor common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchor)
	d.LocalAnchorB = bB.LocalPoint(anchor)
}

func (d *FrictionJointDef) create() Joint {
	return &FrictionJoint{
		jointBase:    newJointBase(FrictionJointType, &d.JointDef),
		localAnchorA: d.LocalAnchorA,
		localAnchorB: d.LocalAnchorB,
		maxForce:     d.MaxForce,
		maxTorque:    d.MaxTorque,
	}
}

type FrictionJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	maxForce, maxTorque        float64

	linearImpulse  common.Vec2
	angularImpulse float64

	rA, rB      common.Vec2
	linearMass  common.Mat22
	angularMass float64
}

func (j *FrictionJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *FrictionJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *FrictionJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *FrictionJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }
func (j *FrictionJoint) MaxForce() float64         { return j.maxForce }
func (j *FrictionJoint) MaxTorque() float64        { return j.maxTorque }

// SetMaxForce ignores negative values.
func (j *FrictionJoint) SetMaxForce(force float64) {
	if common.IsValid(force) && force >= 0 {
		j.maxForce = force
	}
}

// SetMaxTorque ignores negative values.
func (j *FrictionJoint) SetMaxTorque(torque float64) {
	if common.IsValid(torque) && torque >= 0 {
		j.maxTorque = torque
	}
}

func (j *FrictionJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.linearImpulse.Mul(invDt)
}

func (j *FrictionJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.angularImpulse
}

func (j *FrictionJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	aA := data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	aB := data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	j.rA, j.rB = rA, rB

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	k := common.MakeMat22(
		mA+mB+iA*rA.Y*rA.Y+iB*rB.Y*rB.Y, -iA*rA.X*rA.Y-iB*rB.X*rB.Y,
		-iA*rA.X*rA.Y-iB*rB.X*rB.Y, mA+mB+iA*rA.X*rA.X+iB*rB.X*rB.X,
	)
	j.linearMass = k.Inverse()

	j.angularMass = iA + iB
	if j.angularMass > 0 {
		j.angularMass = 1.0 / j.angularMass
	}

	if data.step.warmStarting {
		j.linearImpulse = j.linearImpulse.Mul(data.step.dtRatio)
		j.angularImpulse *= data.step.dtRatio

		p := j.linearImpulse
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (rA.Cross(p) + j.angularImpulse)
		vB = vB.Add(p.Mul(mB))
		wB += iB * (rB.Cross(p) + j.angularImpulse)
	} else {
		j.linearImpulse = common.Vec2Zero
		j.angularImpulse = 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *FrictionJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB
	h := data.step.dt

	// angular
	{
		impulse := -j.angularMass * (wB - wA)
		old := j.angularImpulse
		maxImpulse := h * j.maxTorque
		j.angularImpulse = common.Clamp(j.angularImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.angularImpulse - old

		wA -= iA * impulse
		wB += iB * impulse
	}

	// linear
	{
		cdot := vB.Add(common.CrossSV(wB, j.rB)).Sub(vA).Sub(common.CrossSV(wA, j.rA))
		impulse := j.linearMass.MulVec(cdot).Neg()
		old := j.linearImpulse
		j.linearImpulse = j.linearImpulse.Add(impulse)

		maxImpulse := h * j.maxForce
		if j.linearImpulse.LengthSquared() > maxImpulse*maxImpulse {
			j.linearImpulse.Normalize()
			j.linearImpulse = j.linearImpulse.Mul(maxImpulse)
		}
		impulse = j.linearImpulse.Sub(old)

		vA = vA.Sub(impulse.Mul(mA))
		wA -= iA * j.rA.Cross(impulse)
		vB = vB.Add(impulse.Mul(mB))
		wB += iB * j.rB.Cross(impulse)
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *FrictionJoint) solvePositionConstraints(*solverData) bool { return true }
