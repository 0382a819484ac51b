package dynamics

import (
	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
)

type contactFlags uint8

const (
	// Used when crawling the contact graph to form islands.
	contactIsland contactFlags = 1 << iota
	// The shapes overlap (sensor) or the manifold has points.
	contactTouching
	// Cleared by the user in PreSolve, reset on every update.
	contactEnabled
	// Filtering must be re-run before the next update.
	contactFilter
	// A bullet hit this contact during TOI.
	contactBulletHit
	// toi holds a valid time of impact.
	contactTOI
)

func (f contactFlags) has(m contactFlags) bool { return f&m != 0 }
func (f *contactFlags) set(m contactFlags)     { *f |= m }
func (f *contactFlags) clear(m contactFlags)   { *f &^= m }

// ContactEdge links a body to a contact and the body on its other side.
type ContactEdge struct {
	Other   *Body
	Contact *Contact
}

// Contact manages the contact between two shape children. It exists while
// their broad-phase boxes overlap, so a contact may exist without touching.
type Contact struct {
	flags contactFlags

	// index in the world contact slab; edgeA and edgeB index the
	// contactEdges of each body.
	index, edgeA, edgeB int

	fixtureA, fixtureB *Fixture
	childA, childB     int

	evaluate evaluateFunc
	manifold collision.Manifold

	toiCount int
	toi      float64

	friction     float64
	restitution  float64
	tangentSpeed float64
}

func (c *Contact) reset(fA *Fixture, indexA int, fB *Fixture, indexB int, evaluate evaluateFunc) {
	*c = Contact{
		flags:       contactEnabled,
		index:       -1,
		edgeA:       -1,
		edgeB:       -1,
		fixtureA:    fA,
		fixtureB:    fB,
		childA:      indexA,
		childB:      indexB,
		evaluate:    evaluate,
		friction:    mixFriction(fA.friction, fB.friction),
		restitution: mixRestitution(fA.restitution, fB.restitution),
	}
}

func (c *Contact) FixtureA() *Fixture { return c.fixtureA }
func (c *Contact) FixtureB() *Fixture { return c.fixtureB }
func (c *Contact) ChildIndexA() int   { return c.childA }
func (c *Contact) ChildIndexB() int   { return c.childB }

// Manifold returns the contact manifold. Do not modify it.
func (c *Contact) Manifold() *collision.Manifold { return &c.manifold }

// WorldManifold evaluates the manifold at the current body transforms.
func (c *Contact) WorldManifold() collision.WorldManifold {
	var wm collision.WorldManifold
	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	wm.Initialize(&c.manifold, bodyA.xf, c.fixtureA.shape.Radius(), bodyB.xf, c.fixtureB.shape.Radius())
	return wm
}

func (c *Contact) IsTouching() bool { return c.flags.has(contactTouching) }

// SetEnabled disables the contact for the current step when called from
// PreSolve.
func (c *Contact) SetEnabled(enabled bool) {
	if enabled {
		c.flags.set(contactEnabled)
	} else {
		c.flags.clear(contactEnabled)
	}
}

func (c *Contact) IsEnabled() bool { return c.flags.has(contactEnabled) }

func (c *Contact) Friction() float64         { return c.friction }
func (c *Contact) SetFriction(f float64)     { c.friction = f }
func (c *Contact) Restitution() float64      { return c.restitution }
func (c *Contact) SetRestitution(r float64)  { c.restitution = r }
func (c *Contact) TangentSpeed() float64     { return c.tangentSpeed }
func (c *Contact) SetTangentSpeed(s float64) { c.tangentSpeed = s }

// ResetFriction restores the mixed friction of the two fixtures.
func (c *Contact) ResetFriction() {
	c.friction = mixFriction(c.fixtureA.friction, c.fixtureB.friction)
}

// ResetRestitution restores the mixed restitution of the two fixtures.
func (c *Contact) ResetRestitution() {
	c.restitution = mixRestitution(c.fixtureA.restitution, c.fixtureB.restitution)
}

func (c *Contact) flagForFiltering() { c.flags.set(contactFilter) }

// otherBody returns the body across the contact from b.
func (c *Contact) otherBody(b *Body) *Body {
	if c.fixtureA.body == b {
		return c.fixtureB.body
	}
	return c.fixtureA.body
}

// update refreshes the manifold and touching state and fires the listener.
// Impulses of persisting points are carried over by feature id so the
// solver can warm start.
func (c *Contact) update(listener ContactListener) {
	oldManifold := c.manifold

	// Re-enable this contact.
	c.flags.set(contactEnabled)

	wasTouching := c.flags.has(contactTouching)
	touching := false

	sensor := c.fixtureA.isSensor || c.fixtureB.isSensor
	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	xfA := bodyA.xf
	xfB := bodyB.xf

	if sensor {
		touching = collision.TestOverlap(c.fixtureA.shape, c.childA, c.fixtureB.shape, c.childB, xfA, xfB)
		// Sensors don't generate manifolds.
		c.manifold.PointCount = 0
	} else {
		c.evaluate(c, &c.manifold, xfA, xfB)
		touching = c.manifold.PointCount > 0

		for i := 0; i < c.manifold.PointCount; i++ {
			mp2 := &c.manifold.Points[i]
			mp2.NormalImpulse = 0
			mp2.TangentImpulse = 0
			key := mp2.ID.Key()
			for j := 0; j < oldManifold.PointCount; j++ {
				mp1 := &oldManifold.Points[j]
				if mp1.ID.Key() == key {
					mp2.NormalImpulse = mp1.NormalImpulse
					mp2.TangentImpulse = mp1.TangentImpulse
					break
				}
			}
		}

		if touching != wasTouching {
			bodyA.SetAwake(true)
			bodyB.SetAwake(true)
		}
	}

	if touching {
		c.flags.set(contactTouching)
	} else {
		c.flags.clear(contactTouching)
	}

	if listener == nil {
		return
	}
	if !wasTouching && touching {
		listener.BeginContact(c)
	}
	if wasTouching && !touching {
		listener.EndContact(c)
	}
	if !sensor && touching {
		listener.PreSolve(c, &oldManifold)
	}
}

// evaluateFunc computes the manifold of a contact at the given transforms.
type evaluateFunc func(c *Contact, m *collision.Manifold, xfA, xfB common.Transform)

func evaluateCircles(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	collision.CollideCircles(m, c.fixtureA.shape.(*collision.CircleShape), xfA, c.fixtureB.shape.(*collision.CircleShape), xfB)
}

func evaluatePolygonAndCircle(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	collision.CollidePolygonAndCircle(m, c.fixtureA.shape.(*collision.PolygonShape), xfA, c.fixtureB.shape.(*collision.CircleShape), xfB)
}

func evaluatePolygons(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	collision.CollidePolygons(m, c.fixtureA.shape.(*collision.PolygonShape), xfA, c.fixtureB.shape.(*collision.PolygonShape), xfB)
}

func evaluateEdgeAndCircle(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	collision.CollideEdgeAndCircle(m, c.fixtureA.shape.(*collision.EdgeShape), xfA, c.fixtureB.shape.(*collision.CircleShape), xfB)
}

func evaluateEdgeAndPolygon(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	collision.CollideEdgeAndPolygon(m, c.fixtureA.shape.(*collision.EdgeShape), xfA, c.fixtureB.shape.(*collision.PolygonShape), xfB)
}

func evaluateChainAndCircle(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	edge := c.fixtureA.shape.(*collision.ChainShape).ChildEdge(c.childA)
	collision.CollideEdgeAndCircle(m, edge, xfA, c.fixtureB.shape.(*collision.CircleShape), xfB)
}

func evaluateChainAndPolygon(c *Contact, m *collision.Manifold, xfA, xfB common.Transform) {
	edge := c.fixtureA.shape.(*collision.ChainShape).ChildEdge(c.childA)
	collision.CollideEdgeAndPolygon(m, edge, xfA, c.fixtureB.shape.(*collision.PolygonShape), xfB)
}
