package dynamics

import "github.com/physkit/rigid2d/common"

// RopeJointDef caps the distance between two anchor points. Unlike a
// distance joint the bodies may move closer freely.
type RopeJointDef struct {
	JointDef
	LocalAnchorA common.Vec2
	LocalAnchorB common.Vec2
	MaxLength    float64
}

// DefaultRopeJointDef returns anchors one unit either side of each body
// origin and no length yet.
func DefaultRopeJointDef() RopeJointDef {
	return RopeJointDef{
		LocalAnchorA: common.MakeVec2(-1, 0),
		LocalAnchorB: common.MakeVec2(1, 0),
	}
}

// Initialize sets the bodies and anchors from world points. The maximum
// length is the current separation unless it was already set.
func (d *RopeJointDef) Initialize(bA, bB *Body, anchorA, anchorB common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchorA)
	d.LocalAnchorB = bB.LocalPoint(anchorB)
	if d.MaxLength == 0 {
		d.MaxLength = anchorB.Sub(anchorA).Length()
	}
}

func (d *RopeJointDef) validate() error {
	if !common.IsValid(d.MaxLength) || d.MaxLength < common.LinearSlop {
		return invalidDef("rope joint: max length %v", d.MaxLength)
	}
	return nil
}

func (d *RopeJointDef) create() Joint {
	return &RopeJoint{
		jointBase:    newJointBase(RopeJointType, &d.JointDef),
		localAnchorA: d.LocalAnchorA,
		localAnchorB: d.LocalAnchorB,
		maxLength:    d.MaxLength,
	}
}

// RopeJoint is a one-sided distance limit.
//
//	C = norm(pB - pA) - L
//	u = (pB - pA) / norm(pB - pA)
//	J = [-u -cross(rA, u) u cross(rB, u)]
type RopeJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	maxLength, length          float64
	impulse                    float64
	state                      limitState

	u, rA, rB common.Vec2
	mass      float64
}

func (j *RopeJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *RopeJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *RopeJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *RopeJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }

func (j *RopeJoint) MaxLength() float64 { return j.maxLength }

// SetMaxLength is clamped to at least LinearSlop.
func (j *RopeJoint) SetMaxLength(length float64) {
	j.maxLength = max(length, common.LinearSlop)
}

// IsTaut reports whether the rope was at its limit in the last step.
func (j *RopeJoint) IsTaut() bool { return j.state == atUpperLimit }

func (j *RopeJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.u.Mul(invDt * j.impulse)
}

func (j *RopeJoint) ReactionTorque(float64) float64 { return 0 }

func (j *RopeJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	j.rA = qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	j.rB = qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	j.u = cB.Add(j.rB).Sub(cA).Sub(j.rA)
	j.length = j.u.Length()

	if j.length-j.maxLength > 0 {
		j.state = atUpperLimit
	} else {
		j.state = inactiveLimit
	}

	if j.length <= common.LinearSlop {
		j.u = common.Vec2Zero
		j.mass = 0
		j.impulse = 0
		return
	}
	j.u = j.u.Mul(1.0 / j.length)

	crA := j.rA.Cross(j.u)
	crB := j.rB.Cross(j.u)
	invMass := j.invMassA + j.invIA*crA*crA + j.invMassB + j.invIB*crB*crB
	j.mass = 0
	if invMass != 0 {
		j.mass = 1.0 / invMass
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

func (j *RopeJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	vpA := vA.Add(common.CrossSV(wA, j.rA))
	vpB := vB.Add(common.CrossSV(wB, j.rB))
	c := j.length - j.maxLength
	cdot := j.u.Dot(vpB.Sub(vpA))

	// Slack rope: let the bodies close the gap this step but no faster.
	if c < 0 {
		cdot += data.step.invDt * c
	}

	impulse := -j.mass * cdot
	old := j.impulse
	j.impulse = min(0, j.impulse+impulse)
	impulse = j.impulse - old

	p := j.u.Mul(impulse)
	vA = vA.Sub(p.Mul(j.invMassA))
	wA -= j.invIA * j.rA.Cross(p)
	vB = vB.Add(p.Mul(j.invMassB))
	wB += j.invIB * j.rB.Cross(p)

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *RopeJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	u := cB.Add(rB).Sub(cA).Sub(rA)

	length := u.Normalize()
	c := common.Clamp(length-j.maxLength, 0, common.MaxLinearCorrection)

	impulse := -j.mass * c
	p := u.Mul(impulse)
	cA = cA.Sub(p.Mul(j.invMassA))
	aA -= j.invIA * rA.Cross(p)
	cB = cB.Add(p.Mul(j.invMassB))
	aB += j.invIB * rB.Cross(p)

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return length-j.maxLength < common.LinearSlop
}
