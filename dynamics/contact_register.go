package dynamics

import "github.com/physkit/rigid2d/collision"

// contactRegister is one cell of the shape pair dispatch table. Each
// unordered pair has one primary cell that owns the evaluate function and
// the pool; the mirrored cell only records that fixtures must be swapped.
type contactRegister struct {
	evaluate evaluateFunc
	primary  bool
	pool     []*Contact
	created  int
}

type contactRegisters [collision.ShapeTypeCount][collision.ShapeTypeCount]contactRegister

func newContactRegisters() *contactRegisters {
	r := &contactRegisters{}
	r.add(evaluateCircles, collision.ShapeCircle, collision.ShapeCircle)
	r.add(evaluatePolygonAndCircle, collision.ShapePolygon, collision.ShapeCircle)
	r.add(evaluatePolygons, collision.ShapePolygon, collision.ShapePolygon)
	r.add(evaluateEdgeAndCircle, collision.ShapeEdge, collision.ShapeCircle)
	r.add(evaluateEdgeAndPolygon, collision.ShapeEdge, collision.ShapePolygon)
	r.add(evaluateChainAndCircle, collision.ShapeChain, collision.ShapeCircle)
	r.add(evaluateChainAndPolygon, collision.ShapeChain, collision.ShapePolygon)
	return r
}

func (r *contactRegisters) add(fn evaluateFunc, typeA, typeB collision.ShapeType) {
	r[typeA][typeB] = contactRegister{evaluate: fn, primary: true}
	if typeA != typeB {
		r[typeB][typeA] = contactRegister{evaluate: fn, primary: false}
	}
}

// create returns a contact for the two children, reusing a pooled one when
// possible. The fixtures are swapped when the table says so. It returns nil
// for shape pairs that never collide, such as edge against chain.
func (r *contactRegisters) create(fA *Fixture, indexA int, fB *Fixture, indexB int) *Contact {
	typeA := fA.Type()
	typeB := fB.Type()

	reg := &r[typeA][typeB]
	if reg.evaluate == nil {
		return nil
	}
	if !reg.primary {
		fA, fB = fB, fA
		indexA, indexB = indexB, indexA
		reg = &r[typeB][typeA]
	}

	var c *Contact
	if n := len(reg.pool); n > 0 {
		c = reg.pool[n-1]
		reg.pool[n-1] = nil
		reg.pool = reg.pool[:n-1]
	} else {
		c = &Contact{}
		reg.created++
		Logger().Debug("contact pool grew",
			"typeA", fA.Type().String(), "typeB", fB.Type().String(), "created", reg.created)
	}
	c.reset(fA, indexA, fB, indexB, reg.evaluate)
	return c
}

// release returns c to its pool. The caller has already unlinked it.
func (r *contactRegisters) release(c *Contact) {
	reg := &r[c.fixtureA.Type()][c.fixtureB.Type()]
	*c = Contact{}
	reg.pool = append(reg.pool, c)
}

// ContactPoolStat describes the pool of one shape pair.
type ContactPoolStat struct {
	TypeA, TypeB collision.ShapeType
	// Created counts contacts ever allocated for the pair; Free counts those
	// waiting in the pool.
	Created int
	Free    int
}

func (r *contactRegisters) stats() []ContactPoolStat {
	var out []ContactPoolStat
	for a := range r {
		for b := range r[a] {
			reg := &r[a][b]
			if reg.evaluate == nil || !reg.primary {
				continue
			}
			out = append(out, ContactPoolStat{
				TypeA:   collision.ShapeType(a),
				TypeB:   collision.ShapeType(b),
				Created: reg.created,
				Free:    len(reg.pool),
			})
		}
	}
	return out
}
