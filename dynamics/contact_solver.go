package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

// blockSolve enables the two point block solver.
const blockSolve = true

// maxConditionNumber bounds the condition of the block solver's mass matrix.
const maxConditionNumber = 1000.0

type velocityConstraintPoint struct {
	rA, rB         common.Vec2
	normalImpulse  float64
	tangentImpulse float64
	normalMass     float64
	tangentMass    float64
	velocityBias   float64
}

type contactVelocityConstraint struct {
	points             [common.MaxManifoldPoints]velocityConstraintPoint
	normal             common.Vec2
	normalMass         common.Mat22
	k                  common.Mat22
	indexA, indexB     int
	invMassA, invMassB float64
	invIA, invIB       float64
	friction           float64
	restitution        float64
	tangentSpeed       float64
	pointCount         int
	contactIndex       int
}

type contactPositionConstraint struct {
	localPoints                [common.MaxManifoldPoints]common.Vec2
	localNormal                common.Vec2
	localPoint                 common.Vec2
	indexA, indexB             int
	invMassA, invMassB         float64
	localCenterA, localCenterB common.Vec2
	invIA, invIB               float64
	typ                        collision.ManifoldType
	radiusA, radiusB           float64
	pointCount                 int
}

// contactSolver runs sequential impulses over the contacts of one island.
// Its constraint slices only ever grow.
type contactSolver struct {
	step                timeStep
	positions           []position
	velocities          []velocity
	contacts            []*Contact
	positionConstraints []contactPositionConstraint
	velocityConstraints []contactVelocityConstraint
}

// init sets up the position independent parts of the constraints.
func (s *contactSolver) init(step timeStep, contacts []*Contact, positions []position, velocities []velocity) {
	s.step = step
	s.contacts = contacts
	s.positions = positions
	s.velocities = velocities

	n := len(contacts)
	if cap(s.velocityConstraints) < n {
		s.velocityConstraints = make([]contactVelocityConstraint, n)
		s.positionConstraints = make([]contactPositionConstraint, n)
	}
	s.velocityConstraints = s.velocityConstraints[:n]
	s.positionConstraints = s.positionConstraints[:n]

	for i, c := range contacts {
		fixtureA := c.fixtureA
		fixtureB := c.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body
		m := &c.manifold

		pointCount := m.PointCount
		common.Assert(pointCount > 0)

		vc := &s.velocityConstraints[i]
		*vc = contactVelocityConstraint{
			friction:     c.friction,
			restitution:  c.restitution,
			tangentSpeed: c.tangentSpeed,
			indexA:       bodyA.islandIndex,
			indexB:       bodyB.islandIndex,
			invMassA:     bodyA.invMass,
			invMassB:     bodyB.invMass,
			invIA:        bodyA.invI,
			invIB:        bodyB.invI,
			contactIndex: i,
			pointCount:   pointCount,
		}

		pc := &s.positionConstraints[i]
		*pc = contactPositionConstraint{
			indexA:       bodyA.islandIndex,
			indexB:       bodyB.islandIndex,
			invMassA:     bodyA.invMass,
			invMassB:     bodyB.invMass,
			localCenterA: bodyA.sweep.LocalCenter,
			localCenterB: bodyB.sweep.LocalCenter,
			invIA:        bodyA.invI,
			invIB:        bodyB.invI,
			localNormal:  m.LocalNormal,
			localPoint:   m.LocalPoint,
			pointCount:   pointCount,
			radiusA:      fixtureA.shape.Radius(),
			radiusB:      fixtureB.shape.Radius(),
			typ:          m.Type,
		}

		for j := 0; j < pointCount; j++ {
			cp := &m.Points[j]
			vcp := &vc.points[j]
			if s.step.warmStarting {
				vcp.normalImpulse = s.step.dtRatio * cp.NormalImpulse
				vcp.tangentImpulse = s.step.dtRatio * cp.TangentImpulse
			}
			pc.localPoints[j] = cp.LocalPoint
		}
	}
}

func bodyTransform(c common.Vec2, a float64, localCenter common.Vec2) common.Transform {
	var xf common.Transform
	xf.Q = common.MakeRot(a)
	xf.P = c.Sub(xf.Q.Apply(localCenter))
	return xf
}

// initializeVelocityConstraints sets up the position dependent parts:
// anchors, effective masses, restitution bias and the block solver matrix.
func (s *contactSolver) initializeVelocityConstraints() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]
		pc := &s.positionConstraints[i]

		m := &s.contacts[vc.contactIndex].manifold

		mA, mB := vc.invMassA, vc.invMassB
		iA, iB := vc.invIA, vc.invIB

		cA := s.positions[vc.indexA].c
		aA := s.positions[vc.indexA].a
		vA := s.velocities[vc.indexA].v
		wA := s.velocities[vc.indexA].w

		cB := s.positions[vc.indexB].c
		aB := s.positions[vc.indexB].a
		vB := s.velocities[vc.indexB].v
		wB := s.velocities[vc.indexB].w

		common.Assert(m.PointCount > 0)

		xfA := bodyTransform(cA, aA, pc.localCenterA)
		xfB := bodyTransform(cB, aB, pc.localCenterB)

		var wm collision.WorldManifold
		wm.Initialize(m, xfA, pc.radiusA, xfB, pc.radiusB)

		vc.normal = wm.Normal
		tangent := vc.normal.CrossScalar(1)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			vcp.rA = wm.Points[j].Sub(cA)
			vcp.rB = wm.Points[j].Sub(cB)

			rnA := vcp.rA.Cross(vc.normal)
			rnB := vcp.rB.Cross(vc.normal)
			kNormal := mA + mB + iA*rnA*rnA + iB*rnB*rnB
			vcp.normalMass = 0
			if kNormal > 0 {
				vcp.normalMass = 1 / kNormal
			}

			rtA := vcp.rA.Cross(tangent)
			rtB := vcp.rB.Cross(tangent)
			kTangent := mA + mB + iA*rtA*rtA + iB*rtB*rtB
			vcp.tangentMass = 0
			if kTangent > 0 {
				vcp.tangentMass = 1 / kTangent
			}

			// Velocity bias for restitution.
			vcp.velocityBias = 0
			vRel := vc.normal.Dot(vB.Add(common.CrossSV(wB, vcp.rB)).Sub(vA).Sub(common.CrossSV(wA, vcp.rA)))
			if vRel < -common.VelocityThreshold {
				vcp.velocityBias = -vc.restitution * vRel
			}
		}

		// Prepare the block solver for two points.
		if vc.pointCount == 2 && blockSolve {
			vcp1 := &vc.points[0]
			vcp2 := &vc.points[1]

			rn1A := vcp1.rA.Cross(vc.normal)
			rn1B := vcp1.rB.Cross(vc.normal)
			rn2A := vcp2.rA.Cross(vc.normal)
			rn2B := vcp2.rB.Cross(vc.normal)

			k11 := mA + mB + iA*rn1A*rn1A + iB*rn1B*rn1B
			k22 := mA + mB + iA*rn2A*rn2A + iB*rn2B*rn2B
			k12 := mA + mB + iA*rn1A*rn2A + iB*rn1B*rn2B

			if k11*k11 < maxConditionNumber*(k11*k22-k12*k12) {
				// K is safe to invert.
				vc.k = common.MakeMat22(k11, k12, k12, k22)
				vc.normalMass = vc.k.Inverse()
			} else {
				// The constraints are redundant, just use one.
				vc.pointCount = 1
			}
		}
	}
}

func (s *contactSolver) warmStart() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]

		mA, mB := vc.invMassA, vc.invMassB
		iA, iB := vc.invIA, vc.invIB

		vA := s.velocities[vc.indexA].v
		wA := s.velocities[vc.indexA].w
		vB := s.velocities[vc.indexB].v
		wB := s.velocities[vc.indexB].w

		normal := vc.normal
		tangent := normal.CrossScalar(1)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]
			p := normal.Mul(vcp.normalImpulse).Add(tangent.Mul(vcp.tangentImpulse))
			wA -= iA * vcp.rA.Cross(p)
			vA = vA.Sub(p.Mul(mA))
			wB += iB * vcp.rB.Cross(p)
			vB = vB.Add(p.Mul(mB))
		}

		s.velocities[vc.indexA] = velocity{vA, wA}
		s.velocities[vc.indexB] = velocity{vB, wB}
	}
}

func (s *contactSolver) solveVelocityConstraints() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]

		mA, mB := vc.invMassA, vc.invMassB
		iA, iB := vc.invIA, vc.invIB
		pointCount := vc.pointCount

		vA := s.velocities[vc.indexA].v
		wA := s.velocities[vc.indexA].w
		vB := s.velocities[vc.indexB].v
		wB := s.velocities[vc.indexB].w

		normal := vc.normal
		tangent := normal.CrossScalar(1)
		friction := vc.friction

		common.Assert(pointCount == 1 || pointCount == 2)

		relativeVelocity := func(vcp *velocityConstraintPoint) common.Vec2 {
			return vB.Add(common.CrossSV(wB, vcp.rB)).Sub(vA).Sub(common.CrossSV(wA, vcp.rA))
		}

		// Solve tangent constraints first because non-penetration is more
		// important than friction.
		for j := 0; j < pointCount; j++ {
			vcp := &vc.points[j]

			vt := relativeVelocity(vcp).Dot(tangent) - vc.tangentSpeed
			lambda := vcp.tangentMass * -vt

			maxFriction := friction * vcp.normalImpulse
			newImpulse := common.Clamp(vcp.tangentImpulse+lambda, -maxFriction, maxFriction)
			lambda = newImpulse - vcp.tangentImpulse
			vcp.tangentImpulse = newImpulse

			p := tangent.Mul(lambda)
			vA = vA.Sub(p.Mul(mA))
			wA -= iA * vcp.rA.Cross(p)
			vB = vB.Add(p.Mul(mB))
			wB += iB * vcp.rB.Cross(p)
		}

		if pointCount == 1 || !blockSolve {
			for j := 0; j < pointCount; j++ {
				vcp := &vc.points[j]

				vn := relativeVelocity(vcp).Dot(normal)
				lambda := -vcp.normalMass * (vn - vcp.velocityBias)

				newImpulse := math.Max(vcp.normalImpulse+lambda, 0)
				lambda = newImpulse - vcp.normalImpulse
				vcp.normalImpulse = newImpulse

				p := normal.Mul(lambda)
				vA = vA.Sub(p.Mul(mA))
				wA -= iA * vcp.rA.Cross(p)
				vB = vB.Add(p.Mul(mB))
				wB += iB * vcp.rB.Cross(p)
			}
		} else {
			// Block solver for the two point LCP
			//
			//	vn = A * x + b, vn >= 0, x >= 0, vn_i * x_i = 0
			//
			// solved by total enumeration of the four complementary cases.
			// x is the total impulse, a the accumulated one, so b' = b - A*a.
			cp1 := &vc.points[0]
			cp2 := &vc.points[1]

			a := common.MakeVec2(cp1.normalImpulse, cp2.normalImpulse)
			common.Assert(a.X >= 0 && a.Y >= 0)

			vn1 := relativeVelocity(cp1).Dot(normal)
			vn2 := relativeVelocity(cp2).Dot(normal)

			b := common.MakeVec2(vn1-cp1.velocityBias, vn2-cp2.velocityBias)
			b = b.Sub(vc.k.MulVec(a))

			apply := func(x common.Vec2) {
				d := x.Sub(a)
				p1 := normal.Mul(d.X)
				p2 := normal.Mul(d.Y)
				vA = vA.Sub(p1.Add(p2).Mul(mA))
				wA -= iA * (cp1.rA.Cross(p1) + cp2.rA.Cross(p2))
				vB = vB.Add(p1.Add(p2).Mul(mB))
				wB += iB * (cp1.rB.Cross(p1) + cp2.rB.Cross(p2))
				cp1.normalImpulse = x.X
				cp2.normalImpulse = x.Y
			}

			for {
				// Case 1: vn = 0, x = -inv(A) * b'.
				x := vc.normalMass.MulVec(b).Neg()
				if x.X >= 0 && x.Y >= 0 {
					apply(x)
					break
				}

				// Case 2: vn1 = 0 and x2 = 0.
				x = common.MakeVec2(-cp1.normalMass*b.X, 0)
				vn2 = vc.k.Ex.Y*x.X + b.Y
				if x.X >= 0 && vn2 >= 0 {
					apply(x)
					break
				}

				// Case 3: vn2 = 0 and x1 = 0.
				x = common.MakeVec2(0, -cp2.normalMass*b.Y)
				vn1 = vc.k.Ey.X*x.Y + b.X
				if x.Y >= 0 && vn1 >= 0 {
					apply(x)
					break
				}

				// Case 4: x1 = x2 = 0.
				x = common.Vec2Zero
				vn1 = b.X
				vn2 = b.Y
				if vn1 >= 0 && vn2 >= 0 {
					apply(x)
					break
				}

				// No solution, give up. This is hit sometimes, but it
				// doesn't seem to matter.
				break
			}
		}

		s.velocities[vc.indexA] = velocity{vA, wA}
		s.velocities[vc.indexB] = velocity{vB, wB}
	}
}

// storeImpulses copies the accumulated impulses back to the manifolds for
// warm starting the next step.
func (s *contactSolver) storeImpulses() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]
		m := &s.contacts[vc.contactIndex].manifold
		for j := 0; j < vc.pointCount; j++ {
			m.Points[j].NormalImpulse = vc.points[j].normalImpulse
			m.Points[j].TangentImpulse = vc.points[j].tangentImpulse
		}
	}
}

// positionSolverManifold evaluates one manifold point at the positions being
// solved.
func positionSolverManifold(pc *contactPositionConstraint, xfA, xfB common.Transform, index int) (normal, point common.Vec2, separation float64) {
	common.Assert(pc.pointCount > 0)

	switch pc.typ {
	case collision.ManifoldCircles:
		pointA := xfA.Apply(pc.localPoint)
		pointB := xfB.Apply(pc.localPoints[0])
		normal = pointB.Sub(pointA).Normalized()
		point = pointA.Add(pointB).Mul(0.5)
		separation = pointB.Sub(pointA).Dot(normal) - pc.radiusA - pc.radiusB

	case collision.ManifoldFaceA:
		normal = xfA.Q.Apply(pc.localNormal)
		planePoint := xfA.Apply(pc.localPoint)
		clipPoint := xfB.Apply(pc.localPoints[index])
		separation = clipPoint.Sub(planePoint).Dot(normal) - pc.radiusA - pc.radiusB
		point = clipPoint

	case collision.ManifoldFaceB:
		normal = xfB.Q.Apply(pc.localNormal)
		planePoint := xfB.Apply(pc.localPoint)
		clipPoint := xfA.Apply(pc.localPoints[index])
		separation = clipPoint.Sub(planePoint).Dot(normal) - pc.radiusA - pc.radiusB
		point = clipPoint
		// Ensure normal points from A to B.
		normal = normal.Neg()
	}
	return normal, point, separation
}

// solvePositions runs one NGS pass. massOf supplies the inverse masses so
// the TOI variant can pin bodies that are not part of the event.
func (s *contactSolver) solvePositions(baumgarte float64, massOf func(pc *contactPositionConstraint) (mA, iA, mB, iB float64)) float64 {
	minSeparation := 0.0

	for i := range s.positionConstraints {
		pc := &s.positionConstraints[i]
		mA, iA, mB, iB := massOf(pc)

		cA := s.positions[pc.indexA].c
		aA := s.positions[pc.indexA].a
		cB := s.positions[pc.indexB].c
		aB := s.positions[pc.indexB].a

		for j := 0; j < pc.pointCount; j++ {
			xfA := bodyTransform(cA, aA, pc.localCenterA)
			xfB := bodyTransform(cB, aB, pc.localCenterB)

			normal, point, separation := positionSolverManifold(pc, xfA, xfB, j)

			rA := point.Sub(cA)
			rB := point.Sub(cB)

			minSeparation = math.Min(minSeparation, separation)

			// Prevent large corrections and allow slop.
			C := common.Clamp(baumgarte*(separation+common.LinearSlop), -common.MaxLinearCorrection, 0)

			rnA := rA.Cross(normal)
			rnB := rB.Cross(normal)
			K := mA + mB + iA*rnA*rnA + iB*rnB*rnB

			impulse := 0.0
			if K > 0 {
				impulse = -C / K
			}

			p := normal.Mul(impulse)
			cA = cA.Sub(p.Mul(mA))
			aA -= iA * rA.Cross(p)
			cB = cB.Add(p.Mul(mB))
			aB += iB * rB.Cross(p)
		}

		s.positions[pc.indexA] = position{cA, aA}
		s.positions[pc.indexB] = position{cB, aB}
	}
	return minSeparation
}

// solvePositionConstraints reports whether the overlap is within tolerance.
// Separation is never pushed above -LinearSlop, so the bound is looser.
func (s *contactSolver) solvePositionConstraints() bool {
	minSeparation := s.solvePositions(common.Baumgarte, func(pc *contactPositionConstraint) (float64, float64, float64, float64) {
		return pc.invMassA, pc.invIA, pc.invMassB, pc.invIB
	})
	return minSeparation >= -3*common.LinearSlop
}

// solveTOIPositionConstraints only moves the two bodies of the TOI event.
func (s *contactSolver) solveTOIPositionConstraints(toiIndexA, toiIndexB int) bool {
	minSeparation := s.solvePositions(common.TOIBaumgarte, func(pc *contactPositionConstraint) (mA, iA, mB, iB float64) {
		if pc.indexA == toiIndexA || pc.indexA == toiIndexB {
			mA, iA = pc.invMassA, pc.invIA
		}
		if pc.indexB == toiIndexA || pc.indexB == toiIndexB {
			mB, iB = pc.invMassB, pc.invIB
		}
		return mA, iA, mB, iB
	})
	return minSeparation >= -1.5*common.LinearSlop
}
