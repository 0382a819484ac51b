package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// WeldJointDef glues two bodies together. A positive FrequencyHz softens the
// angular part.
type WeldJointDef struct {
	JointDef
	LocalAnchorA   common.Vec2
	LocalAnchorB   common.Vec2
	ReferenceAngle float64
	FrequencyHz    float64
	DampingRatio   float64
}

// Initialize sets the bodies, anchors and reference angle from a world anchor.
func (d *WeldJointDef) Initialize(bA, bB *Body, anchor common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchor)
	d.LocalAnchorB = bB.LocalPoint(anchor)
	d.ReferenceAngle = bB.Angle() - bA.Angle()
}

func (d *WeldJointDef) create() Joint {
	return &WeldJoint{
		jointBase:      newJointBase(WeldJointType, &d.JointDef),
		localAnchorA:   d.LocalAnchorA,
		localAnchorB:   d.LocalAnchorB,
		referenceAngle: d.ReferenceAngle,
		frequencyHz:    d.FrequencyHz,
		dampingRatio:   d.DampingRatio,
	}
}

type WeldJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	referenceAngle             float64
	frequencyHz, dampingRatio  float64

	bias, gamma float64
	impulse     common.Vec3

	rA, rB common.Vec2
	mass   common.Mat33
}

func (j *WeldJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *WeldJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *WeldJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *WeldJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }
func (j *WeldJoint) ReferenceAngle() float64   { return j.referenceAngle }
func (j *WeldJoint) Frequency() float64        { return j.frequencyHz }
func (j *WeldJoint) SetFrequency(hz float64)   { j.frequencyHz = hz }
func (j *WeldJoint) DampingRatio() float64     { return j.dampingRatio }
func (j *WeldJoint) SetDampingRatio(r float64) { j.dampingRatio = r }

func (j *WeldJoint) ReactionForce(invDt float64) common.Vec2 {
	return common.MakeVec2(j.impulse.X, j.impulse.Y).Mul(invDt)
}

func (j *WeldJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse.Z
}

func (j *WeldJoint) initVelocityConstraints(data *solverData) {
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

	k := pointAngleMass(mA, mB, iA, iB, j.rA, j.rB)

	switch {
	case j.frequencyHz > 0:
		j.mass = k.Inverse22()

		invM := iA + iB
		var m float64
		if invM > 0 {
			m = 1.0 / invM
		}

		var rate float64
		j.gamma, rate = softness(m, j.frequencyHz, j.dampingRatio, data.step.dt)
		j.bias = (aB - aA - j.referenceAngle) * rate

		invM += j.gamma
		j.mass.Ez.Z = 0
		if invM != 0 {
			j.mass.Ez.Z = 1.0 / invM
		}
	case k.Ez.Z == 0:
		j.mass = k.Inverse22()
		j.gamma, j.bias = 0, 0
	default:
		j.mass = k.SymInverse33()
		j.gamma, j.bias = 0, 0
	}

	if data.step.warmStarting {
		j.impulse = j.impulse.Mul(data.step.dtRatio)

		p := common.MakeVec2(j.impulse.X, j.impulse.Y)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (j.rA.Cross(p) + j.impulse.Z)
		vB = vB.Add(p.Mul(mB))
		wB += iB * (j.rB.Cross(p) + j.impulse.Z)
	} else {
		j.impulse = common.Vec3{}
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *WeldJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	if j.frequencyHz > 0 {
		cdot2 := wB - wA
		impulse2 := -j.mass.Ez.Z * (cdot2 + j.bias + j.gamma*j.impulse.Z)
		j.impulse.Z += impulse2

		wA -= iA * impulse2
		wB += iB * impulse2

		cdot1 := vB.Add(common.CrossSV(wB, j.rB)).Sub(vA).Sub(common.CrossSV(wA, j.rA))
		impulse1 := j.mass.MulVec2(cdot1).Neg()
		j.impulse.X += impulse1.X
		j.impulse.Y += impulse1.Y

		vA = vA.Sub(impulse1.Mul(mA))
		wA -= iA * j.rA.Cross(impulse1)
		vB = vB.Add(impulse1.Mul(mB))
		wB += iB * j.rB.Cross(impulse1)
	} else {
		cdot1 := vB.Add(common.CrossSV(wB, j.rB)).Sub(vA).Sub(common.CrossSV(wA, j.rA))
		cdot := common.MakeVec3(cdot1.X, cdot1.Y, wB-wA)

		impulse := j.mass.MulVec(cdot).Neg()
		j.impulse = j.impulse.Add(impulse)

		p := common.MakeVec2(impulse.X, impulse.Y)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * (j.rA.Cross(p) + impulse.Z)
		vB = vB.Add(p.Mul(mB))
		wB += iB * (j.rB.Cross(p) + impulse.Z)
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *WeldJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	k := pointAngleMass(mA, mB, iA, iB, rA, rB)
	c1 := cB.Add(rB).Sub(cA).Sub(rA)
	positionError := c1.Length()
	var angularError float64

	var impulse common.Vec3
	if j.frequencyHz > 0 {
		p := k.Solve22(c1).Neg()
		impulse = common.MakeVec3(p.X, p.Y, 0)
	} else {
		c2 := aB - aA - j.referenceAngle
		angularError = math.Abs(c2)

		if k.Ez.Z > 0 {
			impulse = k.Solve33(common.MakeVec3(c1.X, c1.Y, c2)).Neg()
		} else {
			p := k.Solve22(c1).Neg()
			impulse = common.MakeVec3(p.X, p.Y, 0)
		}
	}

	p := common.MakeVec2(impulse.X, impulse.Y)
	cA = cA.Sub(p.Mul(mA))
	aA -= iA * (rA.Cross(p) + impulse.Z)
	cB = cB.Add(p.Mul(mB))
	aB += iB * (rB.Cross(p) + impulse.Z)

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return positionError <= common.LinearSlop && angularError <= common.AngularSlop
}
