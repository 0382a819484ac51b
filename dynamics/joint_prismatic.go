package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

// PrismaticJointDef lets body B slide along an axis fixed in body A with no
// relative rotation. The translation may be limited and driven by a motor.
type PrismaticJointDef struct {
	JointDef
	LocalAnchorA common.Vec2
	LocalAnchorB common.Vec2
	// LocalAxisA is the slide axis in body A's frame. It is normalized on
	// creation.
	LocalAxisA     common.Vec2
	ReferenceAngle float64

	EnableLimit      bool
	LowerTranslation float64
	UpperTranslation float64

	EnableMotor   bool
	MaxMotorForce float64
	MotorSpeed    float64
}

// DefaultPrismaticJointDef slides along body A's x axis.
func DefaultPrismaticJointDef() PrismaticJointDef {
	return PrismaticJointDef{LocalAxisA: common.MakeVec2(1, 0)}
}

// Initialize sets the bodies, anchors, axis and reference angle from a world
// anchor and a world axis.
func (d *PrismaticJointDef) Initialize(bA, bB *Body, anchor, axis common.Vec2) {
	d.BodyA = bA
	d.BodyB = bB
	d.LocalAnchorA = bA.LocalPoint(anchor)
	d.LocalAnchorB = bB.LocalPoint(anchor)
	d.LocalAxisA = bA.LocalVector(axis)
	d.ReferenceAngle = bB.Angle() - bA.Angle()
}

func (d *PrismaticJointDef) validate() error {
	if d.LocalAxisA.LengthSquared() < common.Epsilon*common.Epsilon {
		return invalidDef("prismatic joint: zero axis")
	}
	if d.EnableLimit && d.LowerTranslation > d.UpperTranslation {
		return invalidDef("prismatic joint: lower translation %v above upper %v", d.LowerTranslation, d.UpperTranslation)
	}
	return nil
}

func (d *PrismaticJointDef) create() Joint {
	axis := d.LocalAxisA.Normalized()
	return &PrismaticJoint{
		jointBase:        newJointBase(PrismaticJointType, &d.JointDef),
		localAnchorA:     d.LocalAnchorA,
		localAnchorB:     d.LocalAnchorB,
		localXAxisA:      axis,
		localYAxisA:      common.CrossSV(1, axis),
		referenceAngle:   d.ReferenceAngle,
		enableLimit:      d.EnableLimit,
		lowerTranslation: d.LowerTranslation,
		upperTranslation: d.UpperTranslation,
		enableMotor:      d.EnableMotor,
		maxMotorForce:    d.MaxMotorForce,
		motorSpeed:       d.MotorSpeed,
	}
}

// PrismaticJoint is a slider.
//
//	Linear constraint along the perpendicular:
//	Cdot = dot(perp, vB + cross(wB, rB) - vA - cross(wA, rA + d)) = 0
//	J = [-perp, -cross(d + rA, perp), perp, cross(rB, perp)]
//
//	Angular constraint:
//	Cdot = wB - wA = 0
//	J = [0 0 -1 0 0 1]
//
//	Limit and motor act along the axis with J = [-axis -a1 axis a2].
type PrismaticJoint struct {
	jointBase
	solverBodies

	localAnchorA, localAnchorB common.Vec2
	localXAxisA, localYAxisA   common.Vec2
	referenceAngle             float64

	impulse      common.Vec3
	motorImpulse float64

	enableLimit                        bool
	lowerTranslation, upperTranslation float64
	limitState                         limitState

	enableMotor   bool
	maxMotorForce float64
	motorSpeed    float64

	axis, perp common.Vec2
	s1, s2     float64
	a1, a2     float64
	k          common.Mat33
	motorMass  float64
}

func (j *PrismaticJoint) LocalAnchorA() common.Vec2 { return j.localAnchorA }
func (j *PrismaticJoint) LocalAnchorB() common.Vec2 { return j.localAnchorB }
func (j *PrismaticJoint) LocalAxisA() common.Vec2   { return j.localXAxisA }
func (j *PrismaticJoint) AnchorA() common.Vec2      { return j.bodyA.WorldPoint(j.localAnchorA) }
func (j *PrismaticJoint) AnchorB() common.Vec2      { return j.bodyB.WorldPoint(j.localAnchorB) }
func (j *PrismaticJoint) ReferenceAngle() float64   { return j.referenceAngle }

func (j *PrismaticJoint) ReactionForce(invDt float64) common.Vec2 {
	return j.perp.Mul(j.impulse.X).Add(j.axis.Mul(j.motorImpulse + j.impulse.Z)).Mul(invDt)
}

func (j *PrismaticJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse.Y
}

// JointTranslation is the anchor separation along the axis.
func (j *PrismaticJoint) JointTranslation() float64 {
	d := j.AnchorB().Sub(j.AnchorA())
	return d.Dot(j.bodyA.WorldVector(j.localXAxisA))
}

func (j *PrismaticJoint) JointSpeed() float64 {
	bA, bB := j.bodyA, j.bodyB
	rA := bA.xf.Q.Apply(j.localAnchorA.Sub(bA.sweep.LocalCenter))
	rB := bB.xf.Q.Apply(j.localAnchorB.Sub(bB.sweep.LocalCenter))
	d := bB.sweep.C.Add(rB).Sub(bA.sweep.C).Sub(rA)
	axis := bA.xf.Q.Apply(j.localXAxisA)

	vA, wA := bA.linearVelocity, bA.angularVelocity
	vB, wB := bB.linearVelocity, bB.angularVelocity
	rel := vB.Add(common.CrossSV(wB, rB)).Sub(vA).Sub(common.CrossSV(wA, rA))
	return d.Dot(common.CrossSV(wA, axis)) + axis.Dot(rel)
}

func (j *PrismaticJoint) IsLimitEnabled() bool { return j.enableLimit }

func (j *PrismaticJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.wakeBodies()
		j.enableLimit = flag
		j.impulse.Z = 0
	}
}

func (j *PrismaticJoint) LowerLimit() float64 { return j.lowerTranslation }
func (j *PrismaticJoint) UpperLimit() float64 { return j.upperTranslation }

// SetLimits changes the translation range. It fails when lower > upper.
func (j *PrismaticJoint) SetLimits(lower, upper float64) error {
	if lower > upper {
		return invalidDef("prismatic limits: lower %v above upper %v", lower, upper)
	}
	if lower != j.lowerTranslation || upper != j.upperTranslation {
		j.wakeBodies()
		j.lowerTranslation = lower
		j.upperTranslation = upper
		j.impulse.Z = 0
	}
	return nil
}

func (j *PrismaticJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *PrismaticJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.wakeBodies()
		j.enableMotor = flag
	}
}

func (j *PrismaticJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *PrismaticJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.wakeBodies()
		j.motorSpeed = speed
	}
}

func (j *PrismaticJoint) MaxMotorForce() float64 { return j.maxMotorForce }

func (j *PrismaticJoint) SetMaxMotorForce(force float64) {
	if force != j.maxMotorForce {
		j.wakeBodies()
		j.maxMotorForce = force
	}
}

// MotorForce is the motor force applied during the last step, in newtons.
func (j *PrismaticJoint) MotorForce(invDt float64) float64 {
	return invDt * j.motorImpulse
}

// sliderMass builds the effective mass of the perpendicular, angular and
// axial rows.
func sliderMass(mA, mB, iA, iB, s1, s2, a1, a2 float64) common.Mat33 {
	k11 := mA + mB + iA*s1*s1 + iB*s2*s2
	k12 := iA*s1 + iB*s2
	k13 := iA*s1*a1 + iB*s2*a2
	k22 := iA + iB
	if k22 == 0 {
		// For bodies with fixed rotation.
		k22 = 1
	}
	k23 := iA*a1 + iB*a2
	k33 := mA + mB + iA*a1*a1 + iB*a2*a2
	return common.Mat33{
		Ex: common.MakeVec3(k11, k12, k13),
		Ey: common.MakeVec3(k12, k22, k23),
		Ez: common.MakeVec3(k13, k23, k33),
	}
}

func (j *PrismaticJoint) initVelocityConstraints(data *solverData) {
	j.load(&j.jointBase)

	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Sub(cA).Add(rB).Sub(rA)

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	j.axis = qA.Apply(j.localXAxisA)
	j.a1 = d.Add(rA).Cross(j.axis)
	j.a2 = rB.Cross(j.axis)
	j.motorMass = mA + mB + iA*j.a1*j.a1 + iB*j.a2*j.a2
	if j.motorMass > 0 {
		j.motorMass = 1.0 / j.motorMass
	}

	j.perp = qA.Apply(j.localYAxisA)
	j.s1 = d.Add(rA).Cross(j.perp)
	j.s2 = rB.Cross(j.perp)
	j.k = sliderMass(mA, mB, iA, iB, j.s1, j.s2, j.a1, j.a2)

	if j.enableLimit {
		translation := j.axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2.0*common.LinearSlop:
			j.limitState = equalLimits
		case translation <= j.lowerTranslation:
			if j.limitState != atLowerLimit {
				j.limitState = atLowerLimit
				j.impulse.Z = 0
			}
		case translation >= j.upperTranslation:
			if j.limitState != atUpperLimit {
				j.limitState = atUpperLimit
				j.impulse.Z = 0
			}
		default:
			j.limitState = inactiveLimit
			j.impulse.Z = 0
		}
	} else {
		j.limitState = inactiveLimit
		j.impulse.Z = 0
	}

	if !j.enableMotor {
		j.motorImpulse = 0
	}

	if data.step.warmStarting {
		j.impulse = j.impulse.Mul(data.step.dtRatio)
		j.motorImpulse *= data.step.dtRatio

		axial := j.motorImpulse + j.impulse.Z
		p := j.perp.Mul(j.impulse.X).Add(j.axis.Mul(axial))
		lA := j.impulse.X*j.s1 + j.impulse.Y + axial*j.a1
		lB := j.impulse.X*j.s2 + j.impulse.Y + axial*j.a2

		vA = vA.Sub(p.Mul(mA))
		wA -= iA * lA
		vB = vB.Add(p.Mul(mB))
		wB += iB * lB
	} else {
		j.impulse = common.Vec3{}
		j.motorImpulse = 0
	}

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *PrismaticJoint) solveVelocityConstraints(data *solverData) {
	vA, wA := data.velocities[j.indexA].v, data.velocities[j.indexA].w
	vB, wB := data.velocities[j.indexB].v, data.velocities[j.indexB].w

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	if j.enableMotor && j.limitState != equalLimits {
		cdot := j.axis.Dot(vB.Sub(vA)) + j.a2*wB - j.a1*wA
		impulse := j.motorMass * (j.motorSpeed - cdot)
		old := j.motorImpulse
		maxImpulse := data.step.dt * j.maxMotorForce
		j.motorImpulse = common.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - old

		p := j.axis.Mul(impulse)
		vA = vA.Sub(p.Mul(mA))
		wA -= iA * impulse * j.a1
		vB = vB.Add(p.Mul(mB))
		wB += iB * impulse * j.a2
	}

	cdot1 := common.MakeVec2(j.perp.Dot(vB.Sub(vA))+j.s2*wB-j.s1*wA, wB-wA)

	var df common.Vec3
	if j.enableLimit && j.limitState != inactiveLimit {
		cdot2 := j.axis.Dot(vB.Sub(vA)) + j.a2*wB - j.a1*wA
		cdot := common.MakeVec3(cdot1.X, cdot1.Y, cdot2)

		f1 := j.impulse
		j.impulse = j.impulse.Add(j.k.Solve33(cdot.Neg()))

		switch j.limitState {
		case atLowerLimit:
			j.impulse.Z = max(j.impulse.Z, 0)
		case atUpperLimit:
			j.impulse.Z = min(j.impulse.Z, 0)
		}

		// f2(1:2) = invK(1:2,1:2) * (-Cdot(1:2) - K(1:2,3) * (f2(3) - f1(3))) + f1(1:2)
		b := cdot1.Neg().Sub(common.MakeVec2(j.k.Ez.X, j.k.Ez.Y).Mul(j.impulse.Z - f1.Z))
		f2r := j.k.Solve22(b).Add(common.MakeVec2(f1.X, f1.Y))
		j.impulse.X, j.impulse.Y = f2r.X, f2r.Y

		df = j.impulse.Sub(f1)
	} else {
		r := j.k.Solve22(cdot1.Neg())
		j.impulse.X += r.X
		j.impulse.Y += r.Y
		df = common.MakeVec3(r.X, r.Y, 0)
	}

	p := j.perp.Mul(df.X).Add(j.axis.Mul(df.Z))
	lA := df.X*j.s1 + df.Y + df.Z*j.a1
	lB := df.X*j.s2 + df.Y + df.Z*j.a2

	vA = vA.Sub(p.Mul(mA))
	wA -= iA * lA
	vB = vB.Add(p.Mul(mB))
	wB += iB * lB

	data.velocities[j.indexA] = velocity{vA, wA}
	data.velocities[j.indexB] = velocity{vB, wB}
}

func (j *PrismaticJoint) solvePositionConstraints(data *solverData) bool {
	cA, aA := data.positions[j.indexA].c, data.positions[j.indexA].a
	cB, aB := data.positions[j.indexB].c, data.positions[j.indexB].a

	qA, qB := common.MakeRot(aA), common.MakeRot(aB)
	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	rA := qA.Apply(j.localAnchorA.Sub(j.localCenterA))
	rB := qB.Apply(j.localAnchorB.Sub(j.localCenterB))
	d := cB.Add(rB).Sub(cA).Sub(rA)

	axis := qA.Apply(j.localXAxisA)
	a1 := d.Add(rA).Cross(axis)
	a2 := rB.Cross(axis)
	perp := qA.Apply(j.localYAxisA)
	s1 := d.Add(rA).Cross(perp)
	s2 := rB.Cross(perp)

	c1 := common.MakeVec2(perp.Dot(d), aB-aA-j.referenceAngle)
	linearError := math.Abs(c1.X)
	angularError := math.Abs(c1.Y)

	active := false
	var c2 float64
	if j.enableLimit {
		translation := axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2.0*common.LinearSlop:
			c2 = common.Clamp(translation, -common.MaxLinearCorrection, common.MaxLinearCorrection)
			linearError = max(linearError, math.Abs(translation))
			active = true
		case translation <= j.lowerTranslation:
			c2 = common.Clamp(translation-j.lowerTranslation+common.LinearSlop, -common.MaxLinearCorrection, 0)
			linearError = max(linearError, j.lowerTranslation-translation)
			active = true
		case translation >= j.upperTranslation:
			c2 = common.Clamp(translation-j.upperTranslation-common.LinearSlop, 0, common.MaxLinearCorrection)
			linearError = max(linearError, translation-j.upperTranslation)
			active = true
		}
	}

	k := sliderMass(mA, mB, iA, iB, s1, s2, a1, a2)
	var impulse common.Vec3
	if active {
		impulse = k.Solve33(common.MakeVec3(c1.X, c1.Y, c2).Neg())
	} else {
		r := k.Solve22(c1.Neg())
		impulse = common.MakeVec3(r.X, r.Y, 0)
	}

	p := perp.Mul(impulse.X).Add(axis.Mul(impulse.Z))
	lA := impulse.X*s1 + impulse.Y + impulse.Z*a1
	lB := impulse.X*s2 + impulse.Y + impulse.Z*a2

	cA = cA.Sub(p.Mul(mA))
	aA -= iA * lA
	cB = cB.Add(p.Mul(mB))
	aB += iB * lB

	data.positions[j.indexA] = position{cA, aA}
	data.positions[j.indexB] = position{cB, aB}

	return linearError <= common.LinearSlop && angularError <= common.AngularSlop
}
