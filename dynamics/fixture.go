package dynamics

import (
	"math"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

// Filter holds collision filtering data. Two fixtures collide when each
// one's category is in the other's mask, unless they share a non-zero group:
// a positive group always collides and a negative one never does.
type Filter struct {
	CategoryBits uint16
	MaskBits     uint16
	GroupIndex   int16
}

// DefaultFilter is category 1 colliding with everything.
func DefaultFilter() Filter {
	return Filter{CategoryBits: 0x0001, MaskBits: 0xFFFF}
}

func (f Filter) shouldCollide(o Filter) bool {
	if f.GroupIndex == o.GroupIndex && f.GroupIndex != 0 {
		return f.GroupIndex > 0
	}
	return f.MaskBits&o.CategoryBits != 0 && f.CategoryBits&o.MaskBits != 0
}

// FixtureDef describes a fixture. The shape is cloned, so one definition
// can be reused for many fixtures.
type FixtureDef struct {
	Shape       collision.Shape
	UserData    any
	Friction    float64
	Restitution float64
	Density     float64 // kg/m^2
	IsSensor    bool
	Filter      Filter
}

// DefaultFixtureDef returns a definition with friction 0.2 and zero density.
func DefaultFixtureDef(shape collision.Shape) FixtureDef {
	return FixtureDef{
		Shape:    shape,
		Friction: 0.2,
		Filter:   DefaultFilter(),
	}
}

func (def *FixtureDef) validate() error {
	switch {
	case def.Shape == nil:
		return invalidDef("fixture has no shape")
	case !common.IsValid(def.Density) || def.Density < 0:
		return invalidDef("fixture density %v", def.Density)
	case !common.IsValid(def.Friction) || def.Friction < 0:
		return invalidDef("fixture friction %v", def.Friction)
	case !common.IsValid(def.Restitution) || def.Restitution < 0:
		return invalidDef("fixture restitution %v", def.Restitution)
	}
	return nil
}

// fixtureProxy connects one shape child to the broad-phase. Its address is
// the broad-phase user data, so the proxies slice never grows after creation.
type fixtureProxy struct {
	aabb       collision.AABB
	fixture    *Fixture
	childIndex int
	proxyID    int
}

const nullProxy = -1

// Fixture attaches a shape to a body and carries material properties.
// Fixtures are created with Body.CreateFixture.
type Fixture struct {
	body    *Body
	shape   collision.Shape
	proxies []fixtureProxy
	// proxyCount is zero while the body is inactive.
	proxyCount int

	density     float64
	friction    float64
	restitution float64
	isSensor    bool
	filter      Filter

	userData any
}

func newFixture(body *Body, def *FixtureDef) *Fixture {
	f := &Fixture{
		body:        body,
		shape:       def.Shape.Clone(),
		density:     def.Density,
		friction:    def.Friction,
		restitution: def.Restitution,
		isSensor:    def.IsSensor,
		filter:      def.Filter,
		userData:    def.UserData,
	}
	f.proxies = make([]fixtureProxy, f.shape.ChildCount())
	for i := range f.proxies {
		f.proxies[i].proxyID = nullProxy
	}
	return f
}

func (f *Fixture) Type() collision.ShapeType { return f.shape.Type() }

// Shape returns the fixture's own copy of the shape. Changing its geometry
// after creation is not supported.
func (f *Fixture) Shape() collision.Shape { return f.shape }
func (f *Fixture) Body() *Body            { return f.body }
func (f *Fixture) IsSensor() bool         { return f.isSensor }
func (f *Fixture) Filter() Filter         { return f.filter }
func (f *Fixture) UserData() any          { return f.userData }
func (f *Fixture) SetUserData(data any)   { f.userData = data }
func (f *Fixture) Density() float64       { return f.density }
func (f *Fixture) Friction() float64      { return f.friction }
func (f *Fixture) Restitution() float64   { return f.restitution }

// SetDensity changes the density. Call Body.ResetMassData afterwards for it
// to affect the body.
func (f *Fixture) SetDensity(density float64) error {
	if !common.IsValid(density) || density < 0 {
		return invalidDef("fixture density %v", density)
	}
	f.density = density
	return nil
}

// SetFriction does not change existing contacts until they are reset.
func (f *Fixture) SetFriction(friction float64) { f.friction = friction }

// SetRestitution does not change existing contacts until they are reset.
func (f *Fixture) SetRestitution(restitution float64) { f.restitution = restitution }

// SetSensor wakes the body when the flag changes.
func (f *Fixture) SetSensor(sensor bool) {
	if f.body == nil {
		return
	}
	if sensor != f.isSensor {
		f.body.SetAwake(true)
		f.isSensor = sensor
	}
}

// SetFilter replaces the filter data. Contacts are re-filtered on the next
// step.
func (f *Fixture) SetFilter(filter Filter) {
	f.filter = filter
	f.Refilter()
}

// Refilter flags the fixture's contacts for filtering and touches its proxies
// so pairs rejected before get another chance.
func (f *Fixture) Refilter() {
	if f.body == nil {
		return
	}
	for _, edge := range f.body.contactEdges {
		c := edge.Contact
		if c.fixtureA == f || c.fixtureB == f {
			c.flagForFiltering()
		}
	}
	w := f.body.world
	if w == nil {
		return
	}
	for i := 0; i < f.proxyCount; i++ {
		w.contactManager.broadPhase.TouchProxy(f.proxies[i].proxyID)
	}
}

// TestPoint reports whether the world point p is inside the shape.
func (f *Fixture) TestPoint(p common.Vec2) bool {
	return f.shape.TestPoint(f.body.xf, p)
}

// RayCast casts a ray against one shape child.
func (f *Fixture) RayCast(input collision.RayCastInput, childIndex int) (collision.RayCastOutput, bool) {
	return f.shape.RayCast(input, f.body.xf, childIndex)
}

// ComputeDistance returns the distance from p to the shape child and the
// direction of the gradient.
func (f *Fixture) ComputeDistance(p common.Vec2, childIndex int) (float64, common.Vec2) {
	return f.shape.ComputeDistance(f.body.xf, p, childIndex)
}

func (f *Fixture) MassData() collision.MassData {
	return f.shape.ComputeMass(f.density)
}

// AABB returns the broad-phase box of a child. It is only meaningful while
// the body is active.
func (f *Fixture) AABB(childIndex int) collision.AABB {
	common.Assert(0 <= childIndex && childIndex < f.proxyCount)
	return f.proxies[childIndex].aabb
}

func (f *Fixture) createProxies(bp collision.BroadPhase, xf common.Transform) {
	common.Assert(f.proxyCount == 0)
	f.proxyCount = f.shape.ChildCount()
	for i := 0; i < f.proxyCount; i++ {
		p := &f.proxies[i]
		p.aabb = f.shape.ComputeAABB(xf, i)
		p.fixture = f
		p.childIndex = i
		p.proxyID = bp.CreateProxy(p.aabb, p)
	}
}

func (f *Fixture) destroyProxies(bp collision.BroadPhase) {
	for i := 0; i < f.proxyCount; i++ {
		p := &f.proxies[i]
		bp.DestroyProxy(p.proxyID)
		p.proxyID = nullProxy
	}
	f.proxyCount = 0
}

// synchronize moves the proxies to cover the motion from xf1 to xf2.
func (f *Fixture) synchronize(bp collision.BroadPhase, xf1, xf2 common.Transform) {
	displacement := xf2.P.Sub(xf1.P)
	for i := 0; i < f.proxyCount; i++ {
		p := &f.proxies[i]
		aabb1 := f.shape.ComputeAABB(xf1, p.childIndex)
		aabb2 := f.shape.ComputeAABB(xf2, p.childIndex)
		p.aabb = aabb1.Combine(aabb2)
		bp.MoveProxy(p.proxyID, p.aabb, displacement)
	}
}

// mixFriction is the geometric mean, so zero friction on either side wins.
func mixFriction(f1, f2 float64) float64 {
	return math.Sqrt(f1 * f2)
}

// mixRestitution lets the bouncier fixture win.
func mixRestitution(r1, r2 float64) float64 {
	return max(r1, r2)
}
