package dynamics

import "github.com/physkit/rigid2d/common"

// MotorJointDef drives body B towards a position and angle relative to body
// A, with bounded force and torque. It is typically used to animate a
// dynamic body relative to the ground.
type MotorJointDef struct {
	JointDef
	// LinearOffset is the target position of B in A's frame.
	LinearOffset common.Vec2
	// AngularOffset is the target angleB - angleA, radians.
	AngularOffset float64
	MaxForce      float64
	MaxTorque     float64
	// CorrectionFactor is the fraction of the offset error removed per
	// step, in [0, 1].
	CorrectionFactor float64
}

// DefaultMotorJointDef returns unit force and torque limits and a 0.3
// correction factor.
func DefaultMotorJointDef() MotorJointDef {
	return MotorJointDef{MaxForce: 1, MaxTorque: 1, CorrectionFactor: 0.3}
}

// Initialize sets the bodies and takes the offsets from their current
// placement.
func (d *MotorJointDef) Initialize(bA, bB *Body) {
	d.BodyA = bA
	d.BodyB = bB
	d.LinearOffset = bA.LocalPoint(bB.Position())
	d.AngularOffset = bB.Angle() - bA.Angle()
}

func (d *MotorJointDef) validate() error {
	switch {
	case !common.IsValid(d.MaxForce) || d.MaxForce < 0:
		return invalidDef("motor joint: max force %v", d.MaxForce)
	case !common.IsValid(d.MaxTorque) || d.MaxTorque < 0:
		return invalidDef("motor joint: max torque %v", d.MaxTorque)
	case !common.IsValid(d.CorrectionFactor) || d.CorrectionFactor < 0 || d.CorrectionFactor > 1:
		return invalidDef("motor joint: correction factor %v outside [0, 1]", d.CorrectionFactor)
	}
	return nil
}

func (d *MotorJointDef) create() Joint {
	return &MotorJoint{
		jointBase:        newJointBase(MotorJointType, &d.JointDef),
		linearOffset:     d.LinearOffset,
		angularOffset:    d.AngularOffset,
		maxForce:         d.MaxForce,
		maxTorque:        d.MaxTorque,
		correctionFactor: d.CorrectionFactor,
	}
}

// MotorJoint controls the relative motion of two bodies through velocity
// constraints biased by the offset error. It has no position correction.
//
//	Cdot = vB + cross(wB, rB) - vA - cross(wA, rA) + correction*invDt*linearError
//	Cdot = wB - wA + correction*invDt*angularError
type MotorJoint struct {
	jointBase
	solverBodies

	linearOffset     common.Vec2
	angularOffset    float64
	linearImpulse    common.Vec2
	angularImpulse   float64
	maxForce         float64
	maxTorque        float64
	correctionFactor float64

	rA, rB       common.Vec2
	linearError  common.Vec2
	angularError float64
	linearMass   common.Mat22
	angularMass  float64
}

func (j *MotorJoint) AnchorA() common.Vec2 { return j.bodyA.Position() }
func (j *MotorJoint) AnchorB() common.Vec2 { return j.bodyB.Position() }

func (j *MotorJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.linearImpulse.Mul(invDt)
}

func (j *MotorJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.angularImpulse
}

func (j *MotorJoint) LinearOffset() common.Vec2 { return j.linearOffset }

func (j *MotorJoint) SetLinearOffset(offset common.Vec2) {
	if offset != j.linearOffset {
		j.wakeBodies()
		j.linearOffset = offset
	}
}

func (j *MotorJoint) AngularOffset() float64 { return j.angularOffset }

func (j *MotorJoint) SetAngularOffset(offset float64) {
	if offset != j.angularOffset {
		j.wakeBodies()
		j.angularOffset = offset
	}
}

func (j *MotorJoint) MaxForce() float64         { return j.maxForce }
func (j *MotorJoint) MaxTorque() float64        { return j.maxTorque }
func (j *MotorJoint) CorrectionFactor() float64 { return j.correctionFactor }

// SetMaxForce ignores negative values.
func (j *MotorJoint) SetMaxForce(force float64) {
	if common.IsValid(force) && force >= 0 {
		j.maxForce = force
	}
}

// SetMaxTorque ignores negative values.
func (j *MotorJoint) SetMaxTorque(torque float64) {
	if common.IsValid(torque) && torque >= 0 {
		j.maxTorque = torque
	}
}

// SetCorrectionFactor ignores values outside [0, 1].
func (j *MotorJoint) SetCorrectionFactor(factor float64) {
	if common.IsValid(factor) && factor >= 0 && factor <= 1 {
		j.correctionFactor = factor
	}
}

func (j *MotorJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	j.rA = qA.Apply(j.localCenterA.Neg())
	j.rB = qB.Apply(j.localCenterB.Neg())

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB
	rA, rB := j.rA, j.rB

	k := common.MakeMat22(
		mA+mB+iA*rA.Y*rA.Y+iB*rB.Y*rB.Y, -iA*rA.X*rA.Y-iB*rB.X*rB.Y,
		-iA*rA.X*rA.Y-iB*rB.X*rB.Y, mA+mB+iA*rA.X*rA.X+iB*rB.X*rB.X,
	)
	j.linearMass = k.Inverse()

	j.angularMass = iA + iB
	if j.angularMass > 0 {
		j.angularMass = 1.0 / j.angularMass
	}

	j.linearError = cB.Add(rB).Sub(cA).Sub(rA).Sub(qA.Apply(j.linearOffset))
	j.angularError = aB - aA - j.angularOffset

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

func (j *MotorJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB
	h, invH := data.step.dt, data.step.invDt

	// Angular.
	{
		cdot := wB - wA + invH*j.correctionFactor*j.angularError
		impulse := -j.angularMass * cdot
		old := j.angularImpulse
		maxImpulse := h * j.maxTorque
		j.angularImpulse = common.Clamp(j.angularImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.angularImpulse - old

		wA -= iA * impulse
		wB += iB * impulse
	}

	// Linear.
	{
		cdot := vB.Add(common.CrossSV(wB, j.rB)).Sub(vA).Sub(common.CrossSV(wA, j.rA)).
			Add(j.linearError.Mul(invH * j.correctionFactor))
		impulse := j.linearMass.MulVec(cdot).Neg()
		old := j.linearImpulse
		j.linearImpulse = j.linearImpulse.Add(impulse)

		maxImpulse := h * j.maxForce
		if j.linearImpulse.LengthSquared() > maxImpulse*maxImpulse {
			j.linearImpulse = j.linearImpulse.Normalized().Mul(maxImpulse)
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

func (j *MotorJoint) solvePositionConstraints(*solverData) bool { return true }
