package dynamics

import "github.com/physkit/rigid2d/common"

type JointType uint8

const (
	DistanceJointType JointType = iota + 1
	RevoluteJointType
	WeldJointType
	FrictionJointType
	MouseJointType
	PrismaticJointType
	WheelJointType
	PulleyJointType
	MotorJointType
	RopeJointType
	GearJointType
)

func (t JointType) String() string {
	switch t {
	case DistanceJointType:
		return "distance"
	case RevoluteJointType:
		return "revolute"
	case WeldJointType:
		return "weld"
	case FrictionJointType:
		return "friction"
	case MouseJointType:
		return "mouse"
	case PrismaticJointType:
		return "prismatic"
	case WheelJointType:
		return "wheel"
	case PulleyJointType:
		return "pulley"
	case MotorJointType:
		return "motor"
	case RopeJointType:
		return "rope"
	case GearJointType:
		return "gear"
	}
	return "unknown"
}

type limitState uint8

const (
	inactiveLimit limitState = iota
	atLowerLimit
	atUpperLimit
	equalLimits
)

// JointEdge links a body to a joint and the body on its other side.
type JointEdge struct {
	Other *Body
	Joint Joint
}

// Joint constrains two bodies. Joints are created with World.CreateJoint
// and the set of joint kinds is closed.
type Joint interface {
	Type() JointType
	BodyA() *Body
	BodyB() *Body

	// AnchorA and AnchorB are the anchor points in world coordinates.
	AnchorA() common.Vec2
	AnchorB() common.Vec2

	// ReactionForce is the force on body B at the anchor, in newtons.
	ReactionForce(invDt float64) common.Vec2
	// ReactionTorque is the torque on body B, in N*m.
	ReactionTorque(invDt float64) float64

	// CollideConnected reports whether the attached bodies may collide.
	CollideConnected() bool
	// IsActive is false when either body is inactive.
	IsActive() bool

	UserData() any
	SetUserData(data any)

	// ShiftOrigin adjusts any world coordinates the joint stores.
	ShiftOrigin(newOrigin common.Vec2)

	base() *jointBase
	initVelocityConstraints(data *solverData)
	solveVelocityConstraints(data *solverData)
	// solvePositionConstraints reports whether the error is within tolerance.
	solvePositionConstraints(data *solverData) bool
}

// JointDef holds the fields every joint definition shares.
type JointDef struct {
	BodyA, BodyB     *Body
	CollideConnected bool
	UserData         any
}

func (d *JointDef) jointDef() *JointDef { return d }

// JointDefinition is implemented by the definitions of each joint kind.
type JointDefinition interface {
	jointDef() *JointDef
	create() Joint
}

type jointBase struct {
	typ          JointType
	bodyA, bodyB *Body

	// index in world.joints; edgeA and edgeB index each body's jointEdges.
	index, edgeA, edgeB int

	islandFlag       bool
	collideConnected bool
	userData         any
}

func newJointBase(typ JointType, def *JointDef) jointBase {
	return jointBase{
		typ:              typ,
		bodyA:            def.BodyA,
		bodyB:            def.BodyB,
		index:            -1,
		edgeA:            -1,
		edgeB:            -1,
		collideConnected: def.CollideConnected,
		userData:         def.UserData,
	}
}

func (j *jointBase) base() *jointBase                  { return j }
func (j *jointBase) Type() JointType                   { return j.typ }
func (j *jointBase) BodyA() *Body                      { return j.bodyA }
func (j *jointBase) BodyB() *Body                      { return j.bodyB }
func (j *jointBase) CollideConnected() bool            { return j.collideConnected }
func (j *jointBase) UserData() any                     { return j.userData }
func (j *jointBase) SetUserData(data any)              { j.userData = data }
func (j *jointBase) ShiftOrigin(newOrigin common.Vec2) {}

func (j *jointBase) IsActive() bool {
	return j.bodyA.IsActive() && j.bodyB.IsActive()
}

// solverBodies caches per-step body data every joint needs.
type solverBodies struct {
	indexA, indexB             int
	localCenterA, localCenterB common.Vec2
	invMassA, invMassB         float64
	invIA, invIB               float64
}

func (sb *solverBodies) load(j *jointBase) {
	sb.indexA = j.bodyA.islandIndex
	sb.indexB = j.bodyB.islandIndex
	sb.localCenterA = j.bodyA.sweep.LocalCenter
	sb.localCenterB = j.bodyB.sweep.LocalCenter
	sb.invMassA = j.bodyA.invMass
	sb.invMassB = j.bodyB.invMass
	sb.invIA = j.bodyA.invI
	sb.invIB = j.bodyB.invI
}

func (j *jointBase) wakeBodies() {
	j.bodyA.SetAwake(true)
	j.bodyB.SetAwake(true)
}

// pointAngleMass is the inverse effective mass of a point-to-point
// constraint plus an angular one.
//
//	K = [ mA+rAy²iA+mB+rBy²iB  -rAy*iA*rAx-rBy*iB*rBx  -rAy*iA-rBy*iB ]
//	    [ -rAy*iA*rAx-rBy*iB*rBx  mA+rAx²iA+mB+rBx²iB   rAx*iA+rBx*iB ]
//	    [ -rAy*iA-rBy*iB          rAx*iA+rBx*iB         iA+iB         ]
func pointAngleMass(mA, mB, iA, iB float64, rA, rB common.Vec2) common.Mat33 {
	var k common.Mat33
	k.Ex.X = mA + mB + rA.Y*rA.Y*iA + rB.Y*rB.Y*iB
	k.Ey.X = -rA.Y*rA.X*iA - rB.Y*rB.X*iB
	k.Ez.X = -rA.Y*iA - rB.Y*iB
	k.Ex.Y = k.Ey.X
	k.Ey.Y = mA + mB + rA.X*rA.X*iA + rB.X*rB.X*iB
	k.Ez.Y = rA.X*iA + rB.X*iB
	k.Ex.Z = k.Ez.X
	k.Ey.Z = k.Ez.Y
	k.Ez.Z = iA + iB
	return k
}

// softness returns gamma and the bias factor of a spring of the given
// frequency and damping acting on effective mass m, for step h.
func softness(m, frequencyHz, dampingRatio, h float64) (gamma, biasRate float64) {
	omega := 2.0 * common.Pi * frequencyHz
	d := 2.0 * m * dampingRatio * omega
	k := m * omega * omega

	gamma = h * (d + h*k)
	if gamma != 0 {
		gamma = 1.0 / gamma
	}
	return gamma, h * k * gamma
}
