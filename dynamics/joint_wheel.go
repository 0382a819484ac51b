package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// WheelJointDef lets body B travel along an axis fixed in body A and rotate
// freely. A spring along the axis acts as suspension and a motor drives the
// rotation.
type WheelJointDef struct {
	JointDef
	LocalAnchorA common.Vec2
	LocalAnchorB common.Vec2
	LocalAxisA   common.Vec2

	EnableMotor    bool
	MaxMotorTorque float64
	MotorSpeed     float64

	// FrequencyHz is the suspension frequency. Zero makes the axis rigid.
	FrequencyHz  float64
	DampingRatio float64
}

// DefaultWheelJointDef has a 2 Hz suspension along body A's x axis.
func DefaultWheelJointDef() WheelJointDef {
	return WheelJointDef{
		LocalAxisA:   common.MakeVec2(1, 0),
		FrequencyHz:  2,
		DampingRatio: 0.7,
	}
}

// Initialize sets the bodies, anchors and axis from a world anchor and a
// world axis.
func (d *WheelJointDef) Initialize(bA, bB *Body, anchor, axis common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchor)
	d.LocalAnchorB = bB.LocalPoint(anchor)
	d.LocalAxisA = bA.LocalVector(axis)
}

func (d *WheelJointDef) validate() error {
	if d.LocalAxisA.LengthSquared() < common.Epsilon*common.Epsilon {
		return invalidDef("wheel joint: zero axis")
	}
	if d.FrequencyHz < 0 || d.DampingRatio < 0 {
		return invalidDef("wheel joint: negative spring %v Hz ratio %v", d.FrequencyHz, d.DampingRatio)
	}
	return nil
}

func (d *WheelJointDef) create() Joint {
	axis := d.LocalAxisA.Normalized()
	return &WheelJoint{
		jointBase:      newJointBase(WheelJointType, &d.JointDef),
		localAnchorA:   d.LocalAnchorA,
		localAnchorB:   d.LocalAnchorB,
		localXAxisA:    axis,
		localYAxisA:    common.CrossSV(1, axis),
		enableMotor:    d.EnableMotor,
		maxMotorTorque: d.MaxMotorTorque,
		motorSpeed:     d.MotorSpeed,
		frequencyHz:    d.FrequencyHz,
		dampingRatio:   d.DampingRatio,
	}
}

// WheelJoint is a point-to-line constraint with a rotational motor and a
// linear spring.
//
//	Point to line:
//	C = dot(ay, d)
//	J = [-ay, -cross(d + rA, ay), ay, cross(rB, ay)]
//
//	Spring:
//	J = [-ax, -cross(d + rA, ax), ax, cross(rB, ax)]
//
//	Motor:
//	J = [0 0 -1 0 0 1]
type WheelJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	localXAxisA, localYAxisA   common.Vec2

	impulse, motorImpulse, springImpulse float64

	enableMotor    bool
	maxMotorTorque float64
	motorSpeed     float64

	frequencyHz, dampingRatio float64

	ax, ay   common.Vec2
	sAx, sBx float64
	sAy, sBy float64

	mass, motorMass, springMass float64
	bias, gamma                 float64
}

func (j *WheelJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *WheelJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *WheelJoint) LocalAxisA() common.Vec2   { return j.localXAxisA }
func (j *WheelJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *WheelJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *WheelJoint) SpringFrequency() float64        { return j.frequencyHz }
func (j *WheelJoint) SetSpringFrequency(hz float64)   { j.frequencyHz = hz }
func (j *WheelJoint) SpringDampingRatio() float64     { return j.dampingRatio }
func (j *WheelJoint) SetSpringDampingRatio(r float64) { j.dampingRatio = r }

func (j *WheelJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.ay.Mul(j.impulse).Add(j.ax.Mul(j.springImpulse)).Mul(invDt)
}

func (j *WheelJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

// JointTranslation is the anchor separation along the axis.
func (j *WheelJoint) JointTranslation() float64 {
	d := j.AnchorB().Sub(j.AnchorA())
	return d.Dot(j.bodyA.WorldVector(j.localXAxisA))
}

// JointAngle is the rotation of B relative to A.
func (j *WheelJoint) JointAngle() float64 {
	return j.bodyB.sweep.A - j.bodyA.sweep.A
}

func (j *WheelJoint) JointAngularSpeed() float64 {
	return j.bodyB.angularVelocity - j.bodyA.angularVelocity
}

func (j *WheelJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *WheelJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.wakeBodies()
		j.enableMotor = flag
	}
}

func (j *WheelJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *WheelJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.wakeBodies()
		j.motorSpeed = speed
	}
}

func (j *WheelJoint) MaxMotorTorque() float64 { return j.maxMotorTorque }

func (j *WheelJoint) SetMaxMotorTorque(torque float64) {
	if torque != j.maxMotorTorque {
		j.wakeBodies()
		j.maxMotorTorque = torque
	}
}

func (j *WheelJoint) MotorTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *WheelJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Add(rB).Sub(cA).Sub(rA)

	j.ay = qA.Apply(j.localYAxisA)
	j.sAy = d.Add(rA).Cross(j.ay)
	j.sBy = rB.Cross(j.ay)
	j.mass = mA + mB + iA*j.sAy*j.sAy + iB*j.sBy*j.sBy
	if j.mass > 0 {
		j.mass = 1.0 / j.mass
	}

	j.springMass, j.bias, j.gamma = 0, 0, 0
	if j.frequencyHz > 0 {
		j.ax = qA.Apply(j.localXAxisA)
		j.sAx = d.Add(rA).Cross(j.ax)
		j.sBx = rB.Cross(j.ax)
		invMass := mA + mB + iA*j.sAx*j.sAx + iB*j.sBx*j.sBx
		if invMass > 0 {
			var rate float64
			j.gamma, rate = softness(1.0/invMass, j.frequencyHz, j.dampingRatio, data.step.dt)
			j.bias = d.Dot(j.ax) * rate
			j.springMass = invMass + j.gamma
			if j.springMass > 0 {
				j.springMass = 1.0 / j.springMass
			}
		}
	} else {
		j.springImpulse = 0
	}

	if j.enableMotor {
		j.motorMass = iA + iB
		if j.motorMass > 0 {
			j.motorMass = 1.0 / j.motorMass
		}
	} else {
		j.motorMass = 0
		j.motorImpulse = 0
	}

	if data.step.warmStarting {
		j.impulse *= data.step.dtRatio
		j.springImpulse *= data.step.dtRatio
		j.motorImpulse *= data.step.dtRatio

		p := j.ay.Mul(j.impulse).Add(j.ax.Mul(j.springImpulse))
		lA := j.impulse*j.sAy + j.springImpulse*j.sAx + j.motorImpulse
		lB := j.impulse*j.sBy + j.springImpulse*j.sBx + j.motorImpulse

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA
		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	} else {
		j.impulse, j.springImpulse, j.motorImpulse = 0, 0, 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *WheelJoint) solveVelocityConstraints(data *solverData) {
	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	// Spring.
	{
		cdot := j.ax.Dot(vB.Sub(vA)) + j.sBx*wB - j.sAx*wA
		impulse := -j.springMass * (cdot + j.bias + j.gamma*j.springImpulse)
		j.springImpulse += impulse

		p := j.ax.Mul(impulse)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * impulse * j.sAx
		vB = vB.Add(p.Mul(mB))
		wB += iB * impulse * j.sBx
	}

	// Motor.
	{
		cdot := wB - wA - j.motorSpeed
		impulse := -j.motorMass * cdot
		old := j.motorImpulse
		maxImpulse := data.step.dt * j.maxMotorTorque
		j.motorImpulse = common.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - old

		wA -= iA * impulse
		wB += iB * impulse
	}

	// Point to line.
	{
		cdot := j.ay.Dot(vB.Sub(vA)) + j.sBy*wB - j.sAy*wA
		impulse := -j.mass * cdot
		j.impulse += impulse

		p := j.ay.Mul(impulse)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * impulse * j.sAy
		vB = vB.Add(p.Mul(mB))
		wB += iB * impulse * j.sBy
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *WheelJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Sub(cA).Add(rB).Sub(rA)

	ay := qA.Apply(j.localYAxisA)
	sAy := d.Add(rA).Cross(ay)
	sBy := rB.Cross(ay)
	c := d.Dot(ay)

	k := j.invMassA + j.invMassB + j.invIA*sAy*sAy + j.invIB*sBy*sBy
	var impulse float64
	if k != 0 {
		impulse = -c / k
	}

	p := ay.Mul(impulse)
	cA = cA.Sub(p.Mul(j.invMassA))
	aA -= j.invIA * impulse * sAy
	cB = cB.Add(p.Mul(j.invMassB))
	aB += j.invIB * impulse * sBy

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return math.Abs(c) <= common.LinearSlop
}
