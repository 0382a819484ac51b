package dynamics

import "github.com/physkit/rigid2d/collision"

// contactManager turns broad-phase overlaps into contacts and keeps them
// up to date.
type contactManager struct {
	broadPhase collision.BroadPhase
	contacts   []*Contact
	filter     ContactFilter
	listener   ContactListener
	registers  *contactRegisters

	addPairFunc collision.PairCallback
}

func newContactManager() *contactManager {
	cm := &contactManager{
		broadPhase: collision.NewBroadPhase(),
		filter:     DefaultContactFilter{},
		registers:  newContactRegisters(),
	}
	cm.addPairFunc = cm.addPair
	return cm
}

// addPair is the broad-phase callback for a new overlap.
func (cm *contactManager) addPair(userDataA, userDataB any) {
	proxyA := userDataA.(*fixtureProxy)
	proxyB := userDataB.(*fixtureProxy)

	fixtureA, indexA := proxyA.fixture, proxyA.childIndex
	fixtureB, indexB := proxyB.fixture, proxyB.childIndex
	bodyA := fixtureA.body
	bodyB := fixtureB.body

	// Are the fixtures on the same body?
	if bodyA == bodyB {
		return
	}

	// Does a contact already exist?
	for _, edge := range bodyB.contactEdges {
		if edge.Other != bodyA {
			continue
		}
		c := edge.Contact
		fA, fB := c.fixtureA, c.fixtureB
		iA, iB := c.childA, c.childB
		if fA == fixtureA && fB == fixtureB && iA == indexA && iB == indexB {
			return
		}
		if fA == fixtureB && fB == fixtureA && iA == indexB && iB == indexA {
			return
		}
	}

	if !bodyB.shouldCollide(bodyA) {
		return
	}
	if cm.filter != nil && !cm.filter.ShouldCollide(fixtureA, fixtureB) {
		return
	}

	c := cm.registers.create(fixtureA, indexA, fixtureB, indexB)
	if c == nil {
		return
	}

	// The register may have swapped the fixtures.
	fixtureA, fixtureB = c.fixtureA, c.fixtureB
	bodyA, bodyB = fixtureA.body, fixtureB.body

	c.index = len(cm.contacts)
	cm.contacts = append(cm.contacts, c)
	c.edgeA = bodyA.addContactEdge(ContactEdge{Other: bodyB, Contact: c})
	c.edgeB = bodyB.addContactEdge(ContactEdge{Other: bodyA, Contact: c})

	if !fixtureA.isSensor && !fixtureB.isSensor {
		bodyA.SetAwake(true)
		bodyB.SetAwake(true)
	}
}

func (cm *contactManager) findNewContacts() {
	cm.broadPhase.UpdatePairs(cm.addPairFunc)
}

// destroy unlinks c from the world and both bodies and returns it to its
// pool.
func (cm *contactManager) destroy(c *Contact) {
	fixtureA := c.fixtureA
	fixtureB := c.fixtureB
	bodyA := fixtureA.body
	bodyB := fixtureB.body

	if cm.listener != nil && c.IsTouching() {
		cm.listener.EndContact(c)
	}

	// Swap remove from the world slab.
	last := len(cm.contacts) - 1
	moved := cm.contacts[last]
	cm.contacts[c.index] = moved
	moved.index = c.index
	cm.contacts[last] = nil
	cm.contacts = cm.contacts[:last]

	bodyA.removeContactEdge(c.edgeA)
	bodyB.removeContactEdge(c.edgeB)

	if c.manifold.PointCount > 0 && !fixtureA.isSensor && !fixtureB.isSensor {
		bodyA.SetAwake(true)
		bodyB.SetAwake(true)
	}

	cm.registers.release(c)
}

// collide is the narrow phase: re-filter flagged contacts, drop contacts
// whose fat boxes stopped overlapping and update the rest.
func (cm *contactManager) collide() {
	for i := 0; i < len(cm.contacts); {
		c := cm.contacts[i]
		fixtureA := c.fixtureA
		fixtureB := c.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body

		if c.flags.has(contactFilter) {
			if !bodyB.shouldCollide(bodyA) ||
				(cm.filter != nil && !cm.filter.ShouldCollide(fixtureA, fixtureB)) {
				// destroy swaps another contact into slot i.
				cm.destroy(c)
				continue
			}
			c.flags.clear(contactFilter)
		}

		activeA := bodyA.IsAwake() && bodyA.typ != StaticBody
		activeB := bodyB.IsAwake() && bodyB.typ != StaticBody

		// At least one body must be awake and it must be dynamic or kinematic.
		if !activeA && !activeB {
			i++
			continue
		}

		proxyIDA := fixtureA.proxies[c.childA].proxyID
		proxyIDB := fixtureB.proxies[c.childB].proxyID
		if !cm.broadPhase.TestOverlap(proxyIDA, proxyIDB) {
			cm.destroy(c)
			continue
		}

		c.update(cm.listener)
		i++
	}
}
