package dynamics

import "github.com/physkit/rigid2d/common"

// GearJointDef couples two revolute or prismatic joints so that
//
//	coordinate1 + ratio*coordinate2 = constant
//
// Each child joint must attach a dynamic body (its body B) to another body,
// usually static (its body A). The gear joins the two B bodies. Destroying
// either child joint also destroys the gear.
type GearJointDef struct {
	JointDef
	Joint1, Joint2 Joint
	Ratio          float64
}

// DefaultGearJointDef returns a unit ratio and no joints.
func DefaultGearJointDef() GearJointDef {
	return GearJointDef{Ratio: 1}
}

// Initialize sets the child joints and the ratio. The gear connects the
// second body of each child.
func (d *GearJointDef) Initialize(joint1, joint2 Joint, ratio float64) {
	d.Joint1 = joint1
	d.Joint2 = joint2
	d.Ratio = ratio
	if joint1 != nil {
		d.BodyA = joint1.BodyB()
	}
	if joint2 != nil {
		d.BodyB = joint2.BodyB()
	}
}

func gearable(j Joint) bool {
	if j == nil || j.base().index < 0 {
		return false
	}
	t := j.Type()
	return t == RevoluteJointType || t == PrismaticJointType
}

func (d *GearJointDef) validate() error {
	switch {
	case !gearable(d.Joint1) || !gearable(d.Joint2):
		return invalidDef("gear joint: children must be live revolute or prismatic joints")
	case d.BodyA != d.Joint1.BodyB() || d.BodyB != d.Joint2.BodyB():
		return invalidDef("gear joint: bodies must be the children's second bodies")
	case !common.IsValid(d.Ratio) || d.Ratio == 0:
		return invalidDef("gear joint: ratio %v", d.Ratio)
	}
	return nil
}

// gearSide is one child joint seen from the gear: the driven body, the
// body it is attached to and the joint's frame.
type gearSide struct {
	typ         JointType
	ground      *Body
	localAnchor common.Vec2 // on the driven body
	groundPoint common.Vec2 // on the ground body
	localAxis   common.Vec2 // zero for revolute
	refAngle    float64
}

func newGearSide(j Joint) gearSide {
	s := gearSide{typ: j.Type(), ground: j.BodyA()}
	switch c := j.(type) {
	case *RevoluteJoint:
		s.groundPoint, s.localAnchor, s.refAngle = c.localAnchorA, c.localAnchorB, c.referenceAngle
	case *PrismaticJoint:
		s.groundPoint, s.localAnchor, s.refAngle = c.localAnchorA, c.localAnchorB, c.referenceAngle
		s.localAxis = c.localXAxisA
	}
	return s
}

// coordinate is the child joint's angle or translation.
func (s *gearSide) coordinate(body *Body) float64 {
	if s.typ == RevoluteJointType {
		return body.sweep.A - s.ground.sweep.A - s.refAngle
	}
	xfB, xfG := body.xf, s.ground.xf
	p := xfG.Q.ApplyT(xfB.Q.Apply(s.localAnchor).Add(xfB.P.Sub(xfG.P)))
	return p.Sub(s.groundPoint).Dot(s.localAxis)
}

func (d *GearJointDef) create() Joint {
	j := &GearJoint{
		jointBase: newJointBase(GearJointType, &d.JointDef),
		joint1:    d.Joint1,
		joint2:    d.Joint2,
		sideA:     newGearSide(d.Joint1),
		sideB:     newGearSide(d.Joint2),
		ratio:     d.Ratio,
	}
	j.constant = j.sideA.coordinate(j.bodyA) + j.ratio*j.sideB.coordinate(j.bodyB)
	return j
}

// GearJoint couples the coordinates of two child joints. Bodies C and D
// are the children's ground bodies.
//
//	C = coordinateA + ratio*coordinateB - constant
//	J = [JvAC JwA JvBD JwB -JvAC -JwC -JvBD -JwD]
type GearJoint struct {
	jointBase

	joint1, joint2 Joint
	sideA, sideB   gearSide
	ratio          float64
	constant       float64
	impulse        float64

	indexA, indexB, indexC, indexD int
	lcA, lcB, lcC, lcD             common.Vec2
	mA, mB, mC, mD                 float64
	iA, iB, iC, iD                 float64
	jvAC, jvBD                     common.Vec2
	jwA, jwB, jwC, jwD             float64
	mass                           float64
}

func (j *GearJoint) Joint1() Joint        { return j.joint1 }
func (j *GearJoint) Joint2() Joint        { return j.joint2 }
func (j *GearJoint) Ratio() float64       { return j.ratio }
func (j *GearJoint) AnchorA() common.Vec2 { return j.bodyA.WorldPoint(j.sideA.localAnchor) }
func (j *GearJoint) AnchorB() common.Vec2 { return j.bodyB.WorldPoint(j.sideB.localAnchor) }

// SetRatio ignores invalid values.
func (j *GearJoint) SetRatio(ratio float64) {
	if common.IsValid(ratio) && ratio != 0 {
		j.ratio = ratio
	}
}

// IsActive also needs both ground bodies, since the solver reads them.
func (j *GearJoint) IsActive() bool {
	return j.jointBase.IsActive() && j.sideA.ground.IsActive() && j.sideB.ground.IsActive()
}

func (j *GearJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.jvAC.Mul(invDt * j.impulse)
}

func (j *GearJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse * j.jwA
}

// jacobian fills one side's rows. Prismatic sides also return the
// coordinate measured from the given positions.
func (s *gearSide) jacobian(qX, qG common.Rot, cX, cG, lcX, lcG common.Vec2, mX, mG, iX, iG, scale float64) (jv common.Vec2, jwX, jwG, mass, coord float64) {
	if s.typ == RevoluteJointType {
		return common.Vec2Zero, scale, scale, scale * scale * (iX + iG), 0
	}
	u := qG.Apply(s.localAxis)
	rG := qG.Apply(s.groundPoint.Sub(lcG))
	rX := qX.Apply(s.localAnchor.Sub(lcX))
	jv = u.Mul(scale)
	jwG = scale * rG.Cross(u)
	jwX = scale * rX.Cross(u)
	mass = scale*scale*(mG+mX) + iG*jwG*jwG + iX*jwX*jwX

	pG := s.groundPoint.Sub(lcG)
	pX := qG.ApplyT(rX.Add(cX.Sub(cG)))
	coord = pX.Sub(pG).Dot(s.localAxis)
	return jv, jwX, jwG, mass, coord
}

func (j *GearJoint) load() {
	bC, bD := j.sideA.ground, j.sideB.ground
	j.indexA, j.indexB = j.bodyA.islandIndex, j.bodyB.islandIndex
	j.indexC, j.indexD = bC.islandIndex, bD.islandIndex
	j.lcA, j.lcB = j.bodyA.sweep.LocalCenter, j.bodyB.sweep.LocalCenter
	j.lcC, j.lcD = bC.sweep.LocalCenter, bD.sweep.LocalCenter
	j.mA, j.mB, j.mC, j.mD = j.bodyA.invMass, j.bodyB.invMass, bC.invMass, bD.invMass
	j.iA, j.iB, j.iC, j.iD = j.bodyA.invI, j.bodyB.invI, bC.invI, bD.invI
}

func (j *GearJoint) initVelocityConstraints(data *solverData) {
	j.load()

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	cC, aC := data.positions[j.indexC].c, data.positions[j.indexC].a
	cD, aD := data.positions[j.indexD].c, data.positions[j.indexD].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w
	vC, wC := data.velocities[j.indexC].v, data.velocities[j.indexC].w
	vD, wD := data.velocities[j.indexD].v, data.velocities[j.indexD].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	qC, qD := common.MakeRot(aC), common.MakeRot(aD)

	var massA, massB float64
	j.jvAC, j.jwA, j.jwC, massA, _ = j.sideA.jacobian(qA, qC, cA, cC, j.lcA, j.lcC, j.mA, j.mC, j.iA, j.iC, 1)
	j.jvBD, j.jwB, j.jwD, massB, _ = j.sideB.jacobian(qB, qD, cB, cD, j.lcB, j.lcD, j.mB, j.mD, j.iB, j.iD, j.ratio)
	j.mass = massA + massB
	if j.mass > 0 {
		j.mass = 1.0 / j.mass
	}

	if data.step.warmStarting {
		vA = vA.Add(j.jvAC.Mul(j.mA * j.impulse))
		wA += j.iA * j.impulse * j.jwA
		vB = vB.Add(j.jvBD.Mul(j.mB * j.impulse))
		wB += j.iB * j.impulse * j.jwB
		vC = vC.Sub(j.jvAC.Mul(j.mC * j.impulse))
		wC -= j.iC * j.impulse * j.jwC
		vD = vD.Sub(j.jvBD.Mul(j.mD * j.impulse))
		wD -= j.iD * j.impulse * j.jwD
	} else {
		j.impulse = 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
	data.velocities[j.indexC] = velocity{vC, wC}
	data.velocities[j.indexD] = velocity{vD, wD}
}

func (j *GearJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w
	vC, wC := data.velocities[j.indexC].v, data.velocities[j.indexC].w
	vD, wD := data.velocities[j.indexD].v, data.velocities[j.indexD].w

	cdot := j.jvAC.Dot(vA.Sub(vC)) + j.jvBD.Dot(vB.Sub(vD))
	cdot += (j.jwA*wA - j.jwC*wC) + (j.jwB*wB - j.jwD*wD)

	impulse := -j.mass * cdot
	j.impulse += impulse

	vA = vA.Add(j.jvAC.Mul(j.mA * impulse))
	wA += j.iA * impulse * j.jwA
	vB = vB.Add(j.jvBD.Mul(j.mB * impulse))
	wB += j.iB * impulse * j.jwB
	vC = vC.Sub(j.jvAC.Mul(j.mC * impulse))
	wC -= j.iC * impulse * j.jwC
	vD = vD.Sub(j.jvBD.Mul(j.mD * impulse))
	wD -= j.iD * impulse * j.jwD

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
	data.velocities[j.indexC] = velocity{vC, wC}
	data.velocities[j.indexD] = velocity{vD, wD}
}

func (j *GearJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	cC, aC := data.positions[j.indexC].c, data.positions[j.indexC].a
	cD, aD := data.positions[j.indexD].c, data.positions[j.indexD].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	qC, qD := common.MakeRot(aC), common.MakeRot(aD)

	jvAC, jwA, jwC, massA, coordA := j.sideA.jacobian(qA, qC, cA, cC, j.lcA, j.lcC, j.mA, j.mC, j.iA, j.iC, 1)
	jvBD, jwB, jwD, massB, coordB := j.sideB.jacobian(qB, qD, cB, cD, j.lcB, j.lcD, j.mB, j.mD, j.iB, j.iD, j.ratio)
	if j.sideA.typ == RevoluteJointType {
		coordA = aA - aC - j.sideA.refAngle
	}
	if j.sideB.typ == RevoluteJointType {
		coordB = aB - aD - j.sideB.refAngle
	}

	c := coordA + j.ratio*coordB - j.constant
	var impulse float64
	if mass := massA + massB; mass > 0 {
		impulse = -c / mass
	}

	cA = cA.Add(jvAC.Mul(j.mA * impulse))
	aA += j.iA * impulse * jwA
	cB = cB.Add(jvBD.Mul(j.mB * impulse))
	aB += j.iB * impulse * jwB
	cC = cC.Sub(jvAC.Mul(j.mC * impulse))
	aC -= j.iC * impulse * jwC
	cD = cD.Sub(jvBD.Mul(j.mD * impulse))
	aD -= j.iD * impulse * jwD

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}
	data.positions[j.indexC] = position{cC, aC}
	data.positions[j.indexD] = position{cD, aD}

	// The gear never blocks position convergence.
	return true
}
