package dynamics

import (
	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

// DestructionListener is told about joints and fixtures destroyed
// implicitly because their body went away.
type DestructionListener interface {
	SayGoodbyeToFixture(f *Fixture)
	SayGoodbyeToJoint(j Joint)
}

// ContactFilter decides whether two fixtures may collide. Install one with
// World.SetContactFilter; the default honours Filter data.
type ContactFilter interface {
	ShouldCollide(fixtureA, fixtureB *Fixture) bool
}

// DefaultContactFilter applies the category, mask and group rules of Filter.
type DefaultContactFilter struct{}

func (DefaultContactFilter) ShouldCollide(fixtureA, fixtureB *Fixture) bool {
	return fixtureA.filter.shouldCollide(fixtureB.filter)
}

// ContactImpulse reports the impulses the solver applied to a contact.
type ContactImpulse struct {
	NormalImpulses  [common.MaxManifoldPoints]float64
	TangentImpulses [common.MaxManifoldPoints]float64
	Count           int
}

// ContactListener receives contact events during World.Step. The world is
// locked for the duration of each call.
//
// BeginContact and EndContact are called when two fixtures start and stop
// touching. PreSolve runs after the manifold is updated and before solving;
// disabling the contact there skips it for this step. PostSolve reports
// the solver impulses of touching, enabled contacts.
type ContactListener interface {
	BeginContact(c *Contact)
	EndContact(c *Contact)
	PreSolve(c *Contact, oldManifold *collision.Manifold)
	PostSolve(c *Contact, impulse *ContactImpulse)
}

// QueryCallback is called for each fixture whose AABB overlaps a query box.
// Return false to stop the query.
type QueryCallback func(f *Fixture) bool

// RayCastCallback is called for each fixture a ray hits. The return value
// steers the cast: -1 ignores this fixture, 0 terminates, the hit fraction
// clips the ray to the closest hit so far, and 1 continues unchanged.
type RayCastCallback func(f *Fixture, point, normal common.Vec2, fraction float64) float64
