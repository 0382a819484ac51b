package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// PulleyJointDef hangs two bodies from fixed ground anchors on a rope of
// constant total length:
//
//	lengthA + ratio*lengthB = constant
//
// The ratio makes one side a block and tackle.
type PulleyJointDef struct {
	JointDef
	GroundAnchorA common.Vec2
	GroundAnchorB common.Vec2
	LocalAnchorA  common.Vec2
	LocalAnchorB  common.Vec2
	LengthA       float64
	LengthB       float64
	Ratio         float64
}

// DefaultPulleyJointDef returns a unit-ratio pulley whose bodies may collide.
func DefaultPulleyJointDef() PulleyJointDef {
	return PulleyJointDef{
		JointDef:      JointDef{CollideConnected: true},
		GroundAnchorA: common.MakeVec2(-1, 1),
		GroundAnchorB: common.MakeVec2(1, 1),
		LocalAnchorA:  common.MakeVec2(-1, 0),
		LocalAnchorB:  common.MakeVec2(1, 0),
		Ratio:         1,
	}
}

// Initialize sets the bodies, ground anchors, body anchors and ratio. The
// rope lengths are taken from the current configuration.
func (d *PulleyJointDef) Initialize(bA, bB *Body, groundA, groundB, anchorA, anchorB common.Vec2, ratio float64) {
	d.BodyA = bA
	d.BodyB = bB
	d.GroundAnchorA = groundA
	d.GroundAnchorB = groundB
	d.LocalAnchorA = bA.LocalPoint(anchorA)
	d.LocalAnchorB = bB.LocalPoint(anchorB)
	d.LengthA = anchorA.Sub(groundA).Length()
	d.LengthB = anchorB.Sub(groundB).Length()
	d.Ratio = ratio
}

func (d *PulleyJointDef) validate() error {
	if d.Ratio <= common.Epsilon {
		return invalidDef("pulley joint: ratio %v must be positive", d.Ratio)
	}
	return nil
}

func (d *PulleyJointDef) create() Joint {
	return &PulleyJoint{
		jointBase:     newJointBase(PulleyJointType, &d.JointDef),
		groundAnchorA: d.GroundAnchorA,
		groundAnchorB: d.GroundAnchorB,
		localAnchorA:  d.LocalAnchorA,
		localAnchorB:  d.LocalAnchorB,
		lengthA:       d.LengthA,
		lengthB:       d.LengthB,
		ratio:         d.Ratio,
		constant:      d.LengthA + d.Ratio*d.LengthB,
	}
}

// PulleyJoint keeps the weighted sum of both rope lengths constant.
//
//	C = constant - lengthA - ratio*lengthB
//	Cdot = -dot(uA, vA + cross(wA, rA)) - ratio*dot(uB, vB + cross(wB, rB))
//	J = -[uA cross(rA, uA) ratio*uB ratio*cross(rB, uB)]
type PulleyJoint struct {
	jointBase
	solverBodies

	groundAnchorA, groundAnchorB common.Vec2
	localAnchorA, localAnchorB   common.Vec2
	lengthA, lengthB             float64
	ratio, constant              float64

	impulse float64

	uA, uB, rA, rB common.Vec2
	mass           float64
}

func (j *PulleyJoint) AnchorA() common.Vec2       { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *PulleyJoint) AnchorB() common.Vec2       { return j.bodyB.WorldPoint(j.localAnchorB) }
func (j *PulleyJoint) GroundAnchorA() common.Vec2 { return j.groundAnchorA }
func (j *PulleyJoint) GroundAnchorB() common.Vec2 { return j.groundAnchorB }
func (j *PulleyJoint) LengthA() float64           { return j.lengthA }
func (j *PulleyJoint) LengthB() float64           { return j.lengthB }
func (j *PulleyJoint) Ratio() float64             { return j.ratio }

// CurrentLengthA is the rope length from ground anchor A to body A.
func (j *PulleyJoint) CurrentLengthA() float64 { return j.AnchorA().Distance(j.groundAnchorA) }

// CurrentLengthB is the rope length from ground anchor B to body B.
func (j *PulleyJoint) CurrentLengthB() float64 { return j.AnchorB().Distance(j.groundAnchorB) }

func (j *PulleyJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.uB.Mul(invDt * j.impulse)
}

func (j *PulleyJoint) ReactionTorque(float64) float64 { return 0 }

func (j *PulleyJoint) ShiftOrigin(newOrigin common.Vec2) {
	j.groundAnchorA = j.groundAnchorA.Sub(newOrigin)
	j.groundAnchorB = j.groundAnchorB.Sub(newOrigin)
}

// ropeDirection normalizes u unless the rope is too short to have a
// direction.
func ropeDirection(u common.Vec2) (common.Vec2, float64) {
	length := u.Length()
	if length > 10.0*common.LinearSlop {
		return u.Mul(1.0 / length), length
	}
	return common.Vec2Zero, length
}

func (j *PulleyJoint) effectiveMass(rA, rB, uA, uB common.Vec2) float64 {
	ruA := rA.Cross(uA)
	ruB := rB.Cross(uB)
	mA := j.invMassA + j.invIA*ruA*ruA
	mB := j.invMassB + j.invIB*ruB*ruB
	mass := mA + j.ratio*j.ratio*mB
	if mass > 0 {
		mass = 1.0 / mass
	}
	return mass
}

func (j *PulleyJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	j.rA = qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	j.uA, _ = ropeDirection(cA.Add(j.rA).Sub(j.groundAnchorA))
	j.uB, _ = ropeDirection(cB.Add(j.rB).Sub(j.groundAnchorB))
	j.mass = j.effectiveMass(j.rA, j.rB, j.uA, j.uB)

	if data.step.warmStarting {
		j.impulse *= data.step.dtRatio

		pA := j.uA.Mul(-j.impulse)
		pB := j.uB.Mul(-j.ratio * j.impulse)
		vA = vA.Add(pA.Mul(j.invMassA))
		wA += j.invIA * j.rA.Cross(pA)
		vB = vB.Add(pB.Mul(j.invMassB))
		wB += j.invIB * j.rB.Cross(pB)
	} else {
		j.impulse = 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *PulleyJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	vpA := vA.Add(common.CrossSV(wA, j.rA))
	vpB := vB.Add(common.CrossSV(wB, j.rB))

	cdot := -j.uA.Dot(vpA) - j.ratio*j.uB.Dot(vpB)
	impulse := -j.mass * cdot
	j.impulse += impulse

	pA := j.uA.Mul(-impulse)
	pB := j.uB.Mul(-j.ratio * impulse)
	vA = vA.Add(pA.Mul(j.invMassA))
	wA += j.invIA * j.rA.Cross(pA)
	vB = vB.Add(pB.Mul(j.invMassB))
	wB += j.invIB * j.rB.Cross(pB)

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *PulleyJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))

	uA, lengthA := ropeDirection(cA.Add(rA).Sub(j.groundAnchorA))
	uB, lengthB := ropeDirection(cB.Add(rB).Sub(j.groundAnchorB))
	mass := j.effectiveMass(rA, rB, uA, uB)

	c := j.constant - lengthA - j.ratio*lengthB
	impulse := -mass * c

	pA := uA.Mul(-impulse)
	pB := uB.Mul(-j.ratio * impulse)
	cA = cA.Add(pA.Mul(j.invMassA))
	aA += j.invIA * rA.Cross(pA)
	cB = cB.Add(pB.Mul(j.invMassB))
	aB += j.invIB * rB.Cross(pB)

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return math.Abs(c) < common.LinearSlop
}
