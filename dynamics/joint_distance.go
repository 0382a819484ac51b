package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// DistanceJointDef holds two anchor points at a fixed distance. With a
// positive FrequencyHz the rod becomes a spring.
type DistanceJointDef struct {
	JointDef
	LocalAnchorA common.Vec2
	LocalAnchorB common.Vec2
	// Length is the rest length. Clamped to at least LinearSlop.
	Length       float64
	FrequencyHz  float64
	DampingRatio float64
}

// DefaultDistanceJointDef returns a rigid unit-length definition.
func DefaultDistanceJointDef() DistanceJointDef {
	return DistanceJointDef{Length: 1}
}

// Initialize sets the bodies and anchors from world points and uses their
// current separation as the rest length.
func (d *DistanceJointDef) Initialize(bA, bB *Body, anchorA, anchorB common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchorA)
	d.LocalAnchorB = bB.LocalPoint(anchorB)
	d.Length = anchorB.Sub(anchorA).Length()
}

func (d *DistanceJointDef) create() Joint {
	return &DistanceJoint{
		jointBase:    newJointBase(DistanceJointType, &d.JointDef),
		localAnchorA: d.LocalAnchorA,
		localAnchorB: d.LocalAnchorB,
		length:       max(d.Length, common.LinearSlop),
		frequencyHz:  d.FrequencyHz,
		dampingRatio: d.DampingRatio,
	}
}

// DistanceJoint keeps the anchors of two bodies at a set distance.
//
//	C = norm(pB - pA) - L
//	u = (pB - pA) / norm(pB - pA)
//	J = [-u -cross(rA, u) u cross(rB, u)]
type DistanceJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	length                     float64
	frequencyHz, dampingRatio  float64

	bias, gamma, impulse float64

	u, rA, rB common.Vec2
	mass      float64
}

func (j *DistanceJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *DistanceJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *DistanceJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *DistanceJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *DistanceJoint) Length() float64 { return j.length }

func (j *DistanceJoint) SetLength(length float64) {
	j.length = max(length, common.LinearSlop)
}

func (j *DistanceJoint) Frequency() float64             { return j.frequencyHz }
func (j *DistanceJoint) SetFrequency(hz float64)        { j.frequencyHz = hz }
func (j *DistanceJoint) DampingRatio() float64          { return j.dampingRatio }
func (j *DistanceJoint) SetDampingRatio(r float64)      { j.dampingRatio = r }
func (j *DistanceJoint) ReactionTorque(float64) float64 { return 0 }

func (j *DistanceJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.u.Mul(invDt * j.impulse)
}

func (j *DistanceJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	j.rA = qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	j.u = cB.Add(j.rB).Sub(cA).Sub(j.rA)

	length := j.u.Length()
	if length > common.LinearSlop {
		j.u = j.u.Mul(1.0 / length)
	} else {
		j.u = common.Vec2Zero
	}

	crAu := j.rA.Cross(j.u)
	crBu := j.rB.Cross(j.u)
	invMass := j.invMassA + j.invIA*crAu*crAu + j.invMassB + j.invIB*crBu*crBu
	j.mass = 0
	if invMass != 0 {
		j.mass = 1.0 / invMass
	}

	if j.frequencyHz > 0 {
		c := length - j.length
		var rate float64
		j.gamma, rate = softness(j.mass, j.frequencyHz, j.dampingRatio, data.step.dt)
		j.bias = c * rate

		invMass += j.gamma
		j.mass = 0
		if invMass != 0 {
			j.mass = 1.0 / invMass
		}
	} else {
		j.gamma = 0
		j.bias = 0
	}

	if data.step.warmStarting {
		j.impulse *= data.step.dtRatio
		p := j.u.Mul(j.impulse)
		vA = vA.Sub(p.Mul(j.invMassA))
		wA -= j.invIA * j.rA.Cross(p)
		vB = vB.Add(p.Mul(j.invMassB))
		wB += j.invIB * j.rB.Cross(p)
	} else {
		j.impulse = 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *DistanceJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	vpA := vA.Add(common.CrossSV(wA, j.rA))
	vpB := vB.Add(common.CrossSV(wB, j.rB))
	cdot := j.u.Dot(vpB.Sub(vpA))

	impulse := -j.mass * (cdot + j.bias + j.gamma*j.impulse)
	j.impulse += impulse

	p := j.u.Mul(impulse)
	vA = vA.Sub(p.Mul(j.invMassA))
	wA -= j.invIA * j.rA.Cross(p)
	vB = vB.Add(p.Mul(j.invMassB))
	wB += j.invIB * j.rB.Cross(p)

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *DistanceJoint) solvePositionConstraints(data *solverData) bool {
	// Soft constraints get no position correction.
	if j.frequencyHz > 0 {
		return true
	}

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	u := cB.Add(rB).Sub(cA).Sub(rA)

	length := u.Normalize()
	c := common.Clamp(length-j.length, -common.MaxLinearCorrection, common.MaxLinearCorrection)

	impulse := -j.mass * c
	p := u.Mul(impulse)
	cA = cA.Sub(p.Mul(j.invMassA))
	aA -= j.invIA * rA.Cross(p)
	cB = cB.Add(p.Mul(j.invMassB))
	aB += j.invIB * rB.Cross(p)

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return math.Abs(c) < common.LinearSlop
}
