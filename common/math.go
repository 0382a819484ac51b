package common

import "math"

// IsValid reports whether x is neither NaN nor infinite.
func IsValid(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Clamp limits a to [low, high].
func Clamp(a, low, high float64) float64 {
	return math.Max(low, math.Min(a, high))
}

// Vec2 is a 2D column vector.
type Vec2 struct {
	X, Y float64
}

func MakeVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Vec2Zero is the origin.
var Vec2Zero = Vec2{}

func (v Vec2) Add(o Vec2) Vec2    { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2    { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Mul(s float64) Vec2 { return Vec2{s * v.X, s * v.Y} }
func (v Vec2) Neg() Vec2          { return Vec2{-v.X, -v.Y} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Abs() Vec2          { return Vec2{math.Abs(v.X), math.Abs(v.Y)} }
func (v Vec2) IsZero() bool       { return v.X == 0 && v.Y == 0 }
func (v Vec2) Length() float64    { return math.Sqrt(v.X*v.X + v.Y*v.Y) }
func (v Vec2) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Cross is the 2D cross product, a scalar.
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }

// CrossScalar is v x s.
func (v Vec2) CrossScalar(s float64) Vec2 { return Vec2{s * v.Y, -s * v.X} }

// CrossSV is s x v.
func CrossSV(s float64, v Vec2) Vec2 { return Vec2{-s * v.Y, s * v.X} }

// Skew returns the vector such that skew.Dot(o) == v.Cross(o).
func (v Vec2) Skew() Vec2 { return Vec2{-v.Y, v.X} }

func (v Vec2) IsValid() bool { return IsValid(v.X) && IsValid(v.Y) }

// Normalize scales v to unit length and returns the previous length.
// Vectors shorter than Epsilon are left alone and report 0.
func (v *Vec2) Normalize() float64 {
	length := v.Length()
	if length < Epsilon {
		return 0
	}
	inv := 1.0 / length
	v.X *= inv
	v.Y *= inv
	return length
}

// Normalized returns a unit copy of v.
func (v Vec2) Normalized() Vec2 {
	v.Normalize()
	return v
}

func (v Vec2) Distance(o Vec2) float64 { return v.Sub(o).Length() }

func (v Vec2) DistanceSquared(o Vec2) float64 {
	d := v.Sub(o)
	return d.Dot(d)
}

func MinVec2(a, b Vec2) Vec2 {
	return Vec2{math.Min(a.X, b.X), math.Min(a.Y, b.Y)}
}

func MaxVec2(a, b Vec2) Vec2 {
	return Vec2{math.Max(a.X, b.X), math.Max(a.Y, b.Y)}
}

// Vec3 is used by joints that solve 3x3 systems.
type Vec3 struct {
	X, Y, Z float64
}

func MakeVec3(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) Add(o Vec3) Vec3    { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3    { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Mul(s float64) Vec3 { return Vec3{s * v.X, s * v.Y, s * v.Z} }
func (v Vec3) Neg() Vec3          { return Vec3{-v.X, -v.Y, -v.Z} }
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{v.Y*o.Z - v.Z*o.Y, v.Z*o.X - v.X*o.Z, v.X*o.Y - v.Y*o.X}
}

// Mat22 is a 2x2 matrix stored by columns.
type Mat22 struct {
	Ex, Ey Vec2
}

func MakeMat22(a11, a12, a21, a22 float64) Mat22 {
	return Mat22{Ex: Vec2{a11, a21}, Ey: Vec2{a12, a22}}
}

func (m Mat22) Inverse() Mat22 {
	a, b, c, d := m.Ex.X, m.Ey.X, m.Ex.Y, m.Ey.Y
	det := a*d - b*c
	if det != 0 {
		det = 1.0 / det
	}
	return Mat22{
		Ex: Vec2{det * d, -det * c},
		Ey: Vec2{-det * b, det * a},
	}
}

// Solve returns x in m*x = b without forming the inverse.
func (m Mat22) Solve(b Vec2) Vec2 {
	a11, a12, a21, a22 := m.Ex.X, m.Ey.X, m.Ex.Y, m.Ey.Y
	det := a11*a22 - a12*a21
	if det != 0 {
		det = 1.0 / det
	}
	return Vec2{det * (a22*b.X - a12*b.Y), det * (a11*b.Y - a21*b.X)}
}

func (m Mat22) MulVec(v Vec2) Vec2 {
	return Vec2{m.Ex.X*v.X + m.Ey.X*v.Y, m.Ex.Y*v.X + m.Ey.Y*v.Y}
}

// MulTVec multiplies the transpose of m by v.
func (m Mat22) MulTVec(v Vec2) Vec2 {
	return Vec2{v.Dot(m.Ex), v.Dot(m.Ey)}
}

// Mat33 is a 3x3 matrix stored by columns.
type Mat33 struct {
	Ex, Ey, Ez Vec3
}

func (m Mat33) MulVec(v Vec3) Vec3 {
	return m.Ex.Mul(v.X).Add(m.Ey.Mul(v.Y)).Add(m.Ez.Mul(v.Z))
}

// MulVec2 multiplies the upper 2x2 block by v.
func (m Mat33) MulVec2(v Vec2) Vec2 {
	return Vec2{m.Ex.X*v.X + m.Ey.X*v.Y, m.Ex.Y*v.X + m.Ey.Y*v.Y}
}

func (m Mat33) Solve33(b Vec3) Vec3 {
	det := m.Ex.Dot(m.Ey.Cross(m.Ez))
	if det != 0 {
		det = 1.0 / det
	}
	return Vec3{
		det * b.Dot(m.Ey.Cross(m.Ez)),
		det * m.Ex.Dot(b.Cross(m.Ez)),
		det * m.Ex.Dot(m.Ey.Cross(b)),
	}
}

// Solve22 solves using only the upper 2x2 block.
func (m Mat33) Solve22(b Vec2) Vec2 {
	a11, a12, a21, a22 := m.Ex.X, m.Ey.X, m.Ex.Y, m.Ey.Y
	det := a11*a22 - a12*a21
	if det != 0 {
		det = 1.0 / det
	}
	return Vec2{det * (a22*b.X - a12*b.Y), det * (a11*b.Y - a21*b.X)}
}

// Inverse22 returns the inverse of the upper 2x2 block padded with zeros.
func (m Mat33) Inverse22() Mat33 {
	a, b, c, d := m.Ex.X, m.Ey.X, m.Ex.Y, m.Ey.Y
	det := a*d - b*c
	if det != 0 {
		det = 1.0 / det
	}
	return Mat33{
		Ex: Vec3{det * d, -det * c, 0},
		Ey: Vec3{-det * b, det * a, 0},
	}
}

// SymInverse33 returns the inverse of a symmetric matrix, or zero if singular.
func (m Mat33) SymInverse33() Mat33 {
	det := m.Ex.Dot(m.Ey.Cross(m.Ez))
	if det != 0 {
		det = 1.0 / det
	}
	a11, a12, a13 := m.Ex.X, m.Ey.X, m.Ez.X
	a22, a23 := m.Ey.Y, m.Ez.Y
	a33 := m.Ez.Z

	var r Mat33
	r.Ex.X = det * (a22*a33 - a23*a23)
	r.Ex.Y = det * (a13*a23 - a12*a33)
	r.Ex.Z = det * (a12*a23 - a13*a22)

	r.Ey.X = r.Ex.Y
	r.Ey.Y = det * (a11*a33 - a13*a13)
	r.Ey.Z = det * (a13*a12 - a11*a23)

	r.Ez.X = r.Ex.Z
	r.Ez.Y = r.Ey.Z
	r.Ez.Z = det * (a11*a22 - a12*a12)
	return r
}

// Rot is a rotation stored as sine and cosine.
type Rot struct {
	S, C float64
}

func MakeRot(angle float64) Rot {
	return Rot{S: math.Sin(angle), C: math.Cos(angle)}
}

var RotIdentity = Rot{S: 0, C: 1}

func (q Rot) Angle() float64 { return math.Atan2(q.S, q.C) }
func (q Rot) XAxis() Vec2    { return Vec2{q.C, q.S} }
func (q Rot) YAxis() Vec2    { return Vec2{-q.S, q.C} }

// Mul composes q*r.
func (q Rot) Mul(r Rot) Rot {
	return Rot{S: q.S*r.C + q.C*r.S, C: q.C*r.C - q.S*r.S}
}

// MulT composes transpose(q)*r.
func (q Rot) MulT(r Rot) Rot {
	return Rot{S: q.C*r.S - q.S*r.C, C: q.C*r.C + q.S*r.S}
}

// Apply rotates v.
func (q Rot) Apply(v Vec2) Vec2 {
	return Vec2{q.C*v.X - q.S*v.Y, q.S*v.X + q.C*v.Y}
}

// ApplyT inverse-rotates v.
func (q Rot) ApplyT(v Vec2) Vec2 {
	return Vec2{q.C*v.X + q.S*v.Y, -q.S*v.X + q.C*v.Y}
}

// Transform is the position and orientation of a rigid frame.
type Transform struct {
	P Vec2
	Q Rot
}

func MakeTransform(p Vec2, angle float64) Transform {
	return Transform{P: p, Q: MakeRot(angle)}
}

var TransformIdentity = Transform{Q: RotIdentity}

// Apply maps a local point to world space.
func (t Transform) Apply(v Vec2) Vec2 {
	return Vec2{
		(t.Q.C*v.X - t.Q.S*v.Y) + t.P.X,
		(t.Q.S*v.X + t.Q.C*v.Y) + t.P.Y,
	}
}

// ApplyT maps a world point to local space.
func (t Transform) ApplyT(v Vec2) Vec2 {
	px := v.X - t.P.X
	py := v.Y - t.P.Y
	return Vec2{t.Q.C*px + t.Q.S*py, -t.Q.S*px + t.Q.C*py}
}

func (t Transform) Mul(b Transform) Transform {
	return Transform{P: t.Q.Apply(b.P).Add(t.P), Q: t.Q.Mul(b.Q)}
}

// MulT returns inverse(t)*b.
func (t Transform) MulT(b Transform) Transform {
	return Transform{P: t.Q.ApplyT(b.P.Sub(t.P)), Q: t.Q.MulT(b.Q)}
}

// Sweep describes the motion of a body over a step for TOI computation.
// Shapes are defined relative to the body origin, which need not be the
// center of mass, but the center of mass is what gets interpolated.
type Sweep struct {
	LocalCenter Vec2
	C0, C       Vec2
	A0, A       float64

	// Alpha0 is the fraction of the step in [0,1] at which C0 and A0 hold.
	Alpha0 float64
}

// Transform interpolates the body transform at fraction beta of the step.
func (s Sweep) Transform(beta float64) Transform {
	var xf Transform
	xf.P = s.C0.Mul(1.0 - beta).Add(s.C.Mul(beta))
	xf.Q = MakeRot((1.0-beta)*s.A0 + beta*s.A)
	xf.P = xf.P.Sub(xf.Q.Apply(s.LocalCenter))
	return xf
}

// Advance moves the start of the sweep forward to alpha.
func (s *Sweep) Advance(alpha float64) {
	Assert(s.Alpha0 < 1.0)
	beta := (alpha - s.Alpha0) / (1.0 - s.Alpha0)
	s.C0 = s.C0.Add(s.C.Sub(s.C0).Mul(beta))
	s.A0 += beta * (s.A - s.A0)
	s.Alpha0 = alpha
}

// Normalize wraps the angles so A0 lies in [0, 2pi).
func (s *Sweep) Normalize() {
	twoPi := 2.0 * Pi
	d := twoPi * math.Floor(s.A0/twoPi)
	s.A0 -= d
	s.A -= d
}
