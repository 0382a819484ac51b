package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// RevoluteJointDef pins two bodies together at a shared anchor. The
// relative rotation may be limited and driven by a motor.
type RevoluteJointDef struct {
	JointDef
	LocalAnchorA common.Vec2
	LocalAnchorB common.Vec2
	// ReferenceAngle is angleB - angleA in the reference state, radians.
	ReferenceAngle float64

	EnableLimit bool
	LowerAngle  float64
	UpperAngle  float64

	EnableMotor    bool
	MotorSpeed     float64
	MaxMotorTorque float64
}

// Initialize sets the bodies, anchors and reference angle from a world anchor.
func (d *RevoluteJointDef) Initialize(bA, bB *Body, anchor common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchor)
	d.LocalAnchorB = bB.LocalPoint(anchor)
	d.ReferenceAngle = bB.Angle() - bA.Angle()
}

func (d *RevoluteJointDef) create() Joint {
	return &RevoluteJoint{
		jointBase:      newJointBase(RevoluteJointType, &d.JointDef),
		localAnchorA:   d.LocalAnchorA,
		localAnchorB:   d.LocalAnchorB,
		referenceAngle: d.ReferenceAngle,
		enableLimit:    d.EnableLimit,
		lowerAngle:     d.LowerAngle,
		upperAngle:     d.UpperAngle,
		enableMotor:    d.EnableMotor,
		motorSpeed:     d.MotorSpeed,
		maxMotorTorque: d.MaxMotorTorque,
	}
}

// RevoluteJoint is a hinge.
//
//	J = [-I -r1_skew I r2_skew]
//	    [ 0       -1 0       1]
type RevoluteJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	referenceAngle             float64

	impulse      common.Vec3
	motorImpulse float64

	enableMotor    bool
	maxMotorTorque float64
	motorSpeed     float64

	enableLimit            bool
	lowerAngle, upperAngle float64
	limitState             limitState

	rA, rB    common.Vec2
	mass      common.Mat33 // effective mass for point-to-point and limit
	motorMass float64      // effective mass for motor and limit
}

func (j *RevoluteJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *RevoluteJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *RevoluteJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *RevoluteJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }
func (j *RevoluteJoint) ReferenceAngle() float64   { return j.referenceAngle }

func (j *RevoluteJoint) ReactionForce(invDt float64) common.Vec2 {
	return common.MakeVec2(j.impulse.X, j.impulse.Y).Mul(invDt)
}

func (j *RevoluteJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse.Z
}

// JointAngle is the current angle of B relative to A, less the reference.
func (j *RevoluteJoint) JointAngle() float64 {
	return j.bodyB.sweep.A - j.bodyA.sweep.A - j.referenceAngle
}

func (j *RevoluteJoint) JointSpeed() float64 {
	return j.bodyB.angularVelocity - j.bodyA.angularVelocity
}

func (j *RevoluteJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *RevoluteJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.wakeBodies()
		j.enableMotor = flag
	}
}

func (j *RevoluteJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *RevoluteJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.wakeBodies()
		j.motorSpeed = speed
	}
}

func (j *RevoluteJoint) MaxMotorTorque() float64 { return j.maxMotorTorque }

func (j *RevoluteJoint) SetMaxMotorTorque(torque float64) {
	if torque != j.maxMotorTorque {
		j.wakeBodies()
		j.maxMotorTorque = torque
	}
}

// MotorTorque is the motor torque applied during the last step, in N*m.
func (j *RevoluteJoint) MotorTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *RevoluteJoint) IsLimitEnabled() bool { return j.enableLimit }

func (j *RevoluteJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.wakeBodies()
		j.enableLimit = flag
		j.impulse.Z = 0
	}
}

func (j *RevoluteJoint) LowerLimit() float64 { return j.lowerAngle }
func (j *RevoluteJoint) UpperLimit() float64 { return j.upperAngle }

// SetLimits changes the angle range. It fails when lower > upper.
func (j *RevoluteJoint) SetLimits(lower, upper float64) error {
	if lower > upper {
		return invalidDef("revolute limits: lower %v above upper %v", lower, upper)
	}
	if lower != j.lowerAngle || upper != j.upperAngle {
		j.wakeBodies()
		j.impulse.Z = 0
		j.lowerAngle = lower
		j.upperAngle = upper
	}
	return nil
}

func (j *RevoluteJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	aA := data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	aB := data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	j.rA = qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB
	rA, rB := j.rA, j.rB
	fixedRotation := iA+iB == 0

	j.mass = pointAngleMass(mA, mB, iA, iB, rA, rB)

	j.motorMass = iA + iB
	if j.motorMass > 0 {
		j.motorMass = 1.0 / j.motorMass
	}

	if !j.enableMotor || fixedRotation {
		j.motorImpulse = 0
	}

	if j.enableLimit && !fixedRotation {
		angle := aB - aA - j.referenceAngle
		switch {
		case math.Abs(j.upperAngle-j.lowerAngle) < 2.0*common.AngularSlop:
			j.limitState = equalLimits
		case angle <= j.lowerAngle:
			if j.limitState != atLowerLimit {
				j.impulse.Z = 0
			}
			j.limitState = atLowerLimit
		case angle >= j.upperAngle:
			if j.limitState != atUpperLimit {
				j.impulse.Z = 0
			}
			j.limitState = atUpperLimit
		default:
			j.limitState = inactiveLimit
			j.impulse.Z = 0
		}
	} else {
		j.limitState = inactiveLimit
	}

	if data.step.warmStarting {
		j.impulse = j.impulse.Mul(data.step.dtRatio)
		j.motorImpulse *= data.step.dtRatio

		p := common.MakeVec2(j.impulse.X, j.impulse.Y)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (rA.Cross(p) + j.motorImpulse + j.impulse.Z)
		vB = vB.Add(p.Mul(mB))
		wB += iB * (rB.Cross(p) + j.motorImpulse + j.impulse.Z)
	} else {
		j.impulse = common.Vec3{}
		j.motorImpulse = 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *RevoluteJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB
	fixedRotation := iA+iB == 0

	if j.enableMotor && j.limitState != equalLimits && !fixedRotation {
		cdot := wB - wA - j.motorSpeed
		impulse := -j.motorMass * cdot
		old := j.motorImpulse
		maxImpulse := data.step.dt * j.maxMotorTorque
		j.motorImpulse = common.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - old

		wA -= iA * impulse
		wB += iB * impulse
	}

	cdot1 := vB.Add(common.CrossSV(wB, j.rB)).Sub(vA).Sub(common.CrossSV(wA, j.rA))

	if j.enableLimit && j.limitState != inactiveLimit && !fixedRotation {
		cdot := common.MakeVec3(cdot1.X, cdot1.Y, wB-wA)
		impulse := j.mass.Solve33(cdot).Neg()

		// A one-sided limit that would pull is replaced by the
		// point-to-point solution with the limit impulse removed.
		newImpulse := j.impulse.Z + impulse.Z
		if (j.limitState == atLowerLimit && newImpulse < 0) ||
			(j.limitState == atUpperLimit && newImpulse > 0) {
			rhs := cdot1.Neg().Add(common.MakeVec2(j.mass.Ez.X, j.mass.Ez.Y).Mul(j.impulse.Z))
			reduced := j.mass.Solve22(rhs)
			impulse = common.MakeVec3(reduced.X, reduced.Y, -j.impulse.Z)
			j.impulse.X += reduced.X
			j.impulse.Y += reduced.Y
			j.impulse.Z = 0
		} else {
			j.impulse = j.impulse.Add(impulse)
		}

		p := common.MakeVec2(impulse.X, impulse.Y)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (j.rA.Cross(p) + impulse.Z)
		vB = vB.Add(p.Mul(mB))
		wB += iB * (j.rB.Cross(p) + impulse.Z)
	} else {
		impulse := j.mass.Solve22(cdot1.Neg())
		j.impulse.X += impulse.X
		j.impulse.Y += impulse.Y

		vA = vA.Sub(impulse.Mul(mA))
		wA -= iA * j.rA.Cross(impulse)
		vB = vB.Add(impulse.Mul(mB))
		wB += iB * j.rB.Cross(impulse)
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *RevoluteJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	var angularError, positionError float64
	fixedRotation := j.invIA+j.invIB == 0

	if j.enableLimit && j.limitState != inactiveLimit && !fixedRotation {
		angle := aB - aA - j.referenceAngle
		var limitImpulse float64

		switch j.limitState {
		case equalLimits:
			c := common.Clamp(angle-j.lowerAngle, -common.MaxAngularCorrection, common.MaxAngularCorrection)
			limitImpulse = -j.motorMass * c
			angularError = math.Abs(c)
		case atLowerLimit:
			c := angle - j.lowerAngle
			angularError = -c
			c = common.Clamp(c+common.AngularSlop, -common.MaxAngularCorrection, 0)
			limitImpulse = -j.motorMass * c
		case atUpperLimit:
			c := angle - j.upperAngle
			angularError = c
			c = common.Clamp(c-common.AngularSlop, 0, common.MaxAngularCorrection)
			limitImpulse = -j.motorMass * c
		}

		aA -= j.invIA * limitImpulse
		aB += j.invIB * limitImpulse
	}

	{
		qA, qB := common.MakeRot(aA), common.MakeRot(aB)
		rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
		rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))

		c := cB.Add(rB).Sub(cA).Sub(rA)
		positionError = c.Length()

		mA, mB := j.invMassA, j.invMassB
		iA, iB := j.invIA, j.invIB

		k := common.MakeMat22(
			mA+mB+iA*rA.Y*rA.Y+iB*rB.Y*rB.Y, -iA*rA.X*rA.Y-iB*rB.X*rB.Y,
			-iA*rA.X*rA.Y-iB*rB.X*rB.Y, mA+mB+iA*rA.X*rA.X+iB*rB.X*rB.X,
		)
		impulse := k.Solve(c).Neg()

		cA = cA.Sub(impulse.Mul(mA))
		aA -= iA * rA.Cross(impulse)
		cB = cB.Add(impulse.Mul(mB))
		aB += iB * rB.Cross(impulse)
	}

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return positionError <= common.LinearSlop && angularError <= common.AngularSlop
}
