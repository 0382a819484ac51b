package collision

import (
	"math"

	"github.com/physkit/rigid2d/common"
)

const nullNode = -1

// TreeQueryCallback is called for each leaf overlapping the query box.
// Returning false stops the query.
type TreeQueryCallback func(proxyID int) bool

// TreeRayCastCallback is called for each leaf the ray may hit. It returns
// the new max fraction: 0 stops, a value in (0,1) clips the ray, and the
// input max fraction continues unchanged. A negative value ignores the leaf.
type TreeRayCastCallback func(input RayCastInput, proxyID int) float64

type treeNode struct {
	aabb     AABB
	userData any

	// parent doubles as the free list link.
	parent int
	child1 int
	child2 int

	// leaf = 0, free node = -1
	height int
}

func (n *treeNode) isLeaf() bool { return n.child1 == nullNode }

// DynamicTree is a dynamic AABB tree. Leaves hold fattened AABBs so a proxy
// can move a little without a tree update. Internal nodes are balanced with
// AVL style rotations. Nodes are pooled and addressed by index.
type DynamicTree struct {
	root           int
	nodes          []treeNode
	nodeCount      int
	freeList       int
	insertionCount int
}

func NewDynamicTree() *DynamicTree {
	t := &DynamicTree{root: nullNode}
	t.grow(16)
	return t
}

// grow appends capacity free nodes and threads them onto the free list.
func (t *DynamicTree) grow(capacity int) {
	start := len(t.nodes)
	t.nodes = append(t.nodes, make([]treeNode, capacity)...)
	for i := start; i < len(t.nodes)-1; i++ {
		t.nodes[i].parent = i + 1
		t.nodes[i].height = -1
	}
	last := len(t.nodes) - 1
	t.nodes[last].parent = nullNode
	t.nodes[last].height = -1
	t.freeList = start
}

func (t *DynamicTree) allocateNode() int {
	if t.freeList == nullNode {
		common.Assert(t.nodeCount == len(t.nodes))
		t.grow(len(t.nodes))
	}
	id := t.freeList
	n := &t.nodes[id]
	t.freeList = n.parent
	*n = treeNode{parent: nullNode, child1: nullNode, child2: nullNode}
	t.nodeCount++
	return id
}

func (t *DynamicTree) freeNode(id int) {
	common.Assert(0 <= id && id < len(t.nodes))
	common.Assert(0 < t.nodeCount)
	t.nodes[id] = treeNode{parent: t.freeList, height: -1}
	t.freeList = id
	t.nodeCount--
}

// CreateProxy inserts a leaf with a fattened copy of aabb.
func (t *DynamicTree) CreateProxy(aabb AABB, userData any) int {
	id := t.allocateNode()
	r := common.MakeVec2(common.AABBExtension, common.AABBExtension)
	n := &t.nodes[id]
	n.aabb = AABB{LowerBound: aabb.LowerBound.Sub(r), UpperBound: aabb.UpperBound.Add(r)}
	n.userData = userData
	n.height = 0
	t.insertLeaf(id)
	return id
}

func (t *DynamicTree) DestroyProxy(id int) {
	common.Assert(0 <= id && id < len(t.nodes))
	common.Assert(t.nodes[id].isLeaf())
	t.removeLeaf(id)
	t.freeNode(id)
}

// MoveProxy reinserts the proxy if aabb left its fat box. The new fat box
// is extended along the displacement. It reports whether a reinsert happened.
func (t *DynamicTree) MoveProxy(id int, aabb AABB, displacement common.Vec2) bool {
	common.Assert(0 <= id && id < len(t.nodes))
	common.Assert(t.nodes[id].isLeaf())

	if t.nodes[id].aabb.Contains(aabb) {
		return false
	}
	t.removeLeaf(id)

	r := common.MakeVec2(common.AABBExtension, common.AABBExtension)
	b := AABB{LowerBound: aabb.LowerBound.Sub(r), UpperBound: aabb.UpperBound.Add(r)}

	// Predict motion.
	d := displacement.Mul(common.AABBMultiplier)
	if d.X < 0 {
		b.LowerBound.X += d.X
	} else {
		b.UpperBound.X += d.X
	}
	if d.Y < 0 {
		b.LowerBound.Y += d.Y
	} else {
		b.UpperBound.Y += d.Y
	}

	t.nodes[id].aabb = b
	t.insertLeaf(id)
	return true
}

func (t *DynamicTree) UserData(id int) any {
	return t.nodes[id].userData
}

func (t *DynamicTree) FatAABB(id int) AABB {
	return t.nodes[id].aabb
}

// Query reports every leaf whose fat box overlaps aabb.
func (t *DynamicTree) Query(callback TreeQueryCallback, aabb AABB) {
	var stack common.Stack[int]
	stack.Push(t.root)
	for stack.Len() > 0 {
		id, _ := stack.Pop()
		if id == nullNode {
			continue
		}
		n := &t.nodes[id]
		if !TestOverlapAABB(n.aabb, aabb) {
			continue
		}
		if n.isLeaf() {
			if !callback(id) {
				return
			}
		} else {
			stack.Push(n.child1)
			stack.Push(n.child2)
		}
	}
}

// RayCast walks the leaves the ray may hit, closest first is not
// guaranteed. The separating axis |dot(v, p1 - c)| > dot(|v|, h) culls
// nodes away from the ray, where v is the ray's perpendicular.
func (t *DynamicTree) RayCast(callback TreeRayCastCallback, input RayCastInput) {
	p1 := input.P1
	p2 := input.P2
	r := p2.Sub(p1)
	common.Assert(r.LengthSquared() > 0)
	r.Normalize()

	v := common.CrossSV(1, r)
	absV := v.Abs()

	maxFraction := input.MaxFraction
	segment := func() AABB {
		end := p1.Add(p2.Sub(p1).Mul(maxFraction))
		return AABB{LowerBound: common.MinVec2(p1, end), UpperBound: common.MaxVec2(p1, end)}
	}
	segmentAABB := segment()

	var stack common.Stack[int]
	stack.Push(t.root)
	for stack.Len() > 0 {
		id, _ := stack.Pop()
		if id == nullNode {
			continue
		}
		n := &t.nodes[id]
		if !TestOverlapAABB(n.aabb, segmentAABB) {
			continue
		}

		c := n.aabb.Center()
		h := n.aabb.Extents()
		if math.Abs(v.Dot(p1.Sub(c)))-absV.Dot(h) > 0 {
			continue
		}

		if n.isLeaf() {
			value := callback(RayCastInput{P1: input.P1, P2: input.P2, MaxFraction: maxFraction}, id)
			if value == 0 {
				return
			}
			if value > 0 {
				maxFraction = value
				segmentAABB = segment()
			}
		} else {
			stack.Push(n.child1)
			stack.Push(n.child2)
		}
	}
}

// insertLeaf descends by the surface area heuristic and then refits and
// rebalances the ancestors.
func (t *DynamicTree) insertLeaf(leaf int) {
	t.insertionCount++

	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	leafAABB := t.nodes[leaf].aabb
	index := t.root
	for !t.nodes[index].isLeaf() {
		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		area := t.nodes[index].aabb.Perimeter()
		combinedArea := t.nodes[index].aabb.Combine(leafAABB).Perimeter()

		// Cost of a new parent for this node and the leaf.
		cost := 2.0 * combinedArea
		// Minimum cost of pushing the leaf further down.
		inheritanceCost := 2.0 * (combinedArea - area)

		descendCost := func(child int) float64 {
			c := leafAABB.Combine(t.nodes[child].aabb).Perimeter()
			if t.nodes[child].isLeaf() {
				return c + inheritanceCost
			}
			return c - t.nodes[child].aabb.Perimeter() + inheritanceCost
		}
		cost1 := descendCost(child1)
		cost2 := descendCost(child2)

		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	newParent := t.allocateNode()
	np := &t.nodes[newParent]
	np.parent = oldParent
	np.aabb = leafAABB.Combine(t.nodes[sibling].aabb)
	np.height = t.nodes[sibling].height + 1
	np.child1 = sibling
	np.child2 = leaf

	if oldParent != nullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = newParent
		} else {
			t.nodes[oldParent].child2 = newParent
		}
	} else {
		t.root = newParent
	}
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	t.refit(t.nodes[leaf].parent)
}

// refit walks to the root fixing heights and boxes.
func (t *DynamicTree) refit(index int) {
	for index != nullNode {
		index = t.balance(index)

		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2
		common.Assert(child1 != nullNode && child2 != nullNode)

		t.nodes[index].height = 1 + max(t.nodes[child1].height, t.nodes[child2].height)
		t.nodes[index].aabb = t.nodes[child1].aabb.Combine(t.nodes[child2].aabb)
		index = t.nodes[index].parent
	}
}

func (t *DynamicTree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = nullNode
		return
	}

	parent := t.nodes[leaf].parent
	grandParent := t.nodes[parent].parent
	sibling := t.nodes[parent].child1
	if sibling == leaf {
		sibling = t.nodes[parent].child2
	}

	if grandParent == nullNode {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.freeNode(parent)
		return
	}

	// Destroy parent and connect sibling to grandParent.
	if t.nodes[grandParent].child1 == parent {
		t.nodes[grandParent].child1 = sibling
	} else {
		t.nodes[grandParent].child2 = sibling
	}
	t.nodes[sibling].parent = grandParent
	t.freeNode(parent)
	t.refit(grandParent)
}

// balance performs a left or right rotation if node iA is imbalanced and
// returns the new root of the subtree.
func (t *DynamicTree) balance(iA int) int {
	common.Assert(iA != nullNode)

	a := &t.nodes[iA]
	if a.isLeaf() || a.height < 2 {
		return iA
	}

	iB := a.child1
	iC := a.child2
	b := &t.nodes[iB]
	c := &t.nodes[iC]

	bal := c.height - b.height

	// Rotate C up.
	if bal > 1 {
		iF := c.child1
		iG := c.child2
		f := &t.nodes[iF]
		g := &t.nodes[iG]

		c.child1 = iA
		c.parent = a.parent
		a.parent = iC
		t.replaceChild(c.parent, iA, iC)

		if f.height > g.height {
			c.child2 = iF
			a.child2 = iG
			g.parent = iA
			a.aabb = b.aabb.Combine(g.aabb)
			c.aabb = a.aabb.Combine(f.aabb)
			a.height = 1 + max(b.height, g.height)
			c.height = 1 + max(a.height, f.height)
		} else {
			c.child2 = iG
			a.child2 = iF
			f.parent = iA
			a.aabb = b.aabb.Combine(f.aabb)
			c.aabb = a.aabb.Combine(g.aabb)
			a.height = 1 + max(b.height, f.height)
			c.height = 1 + max(a.height, g.height)
		}
		return iC
	}

	// Rotate B up.
	if bal < -1 {
		iD := b.child1
		iE := b.child2
		d := &t.nodes[iD]
		e := &t.nodes[iE]

		b.child1 = iA
		b.parent = a.parent
		a.parent = iB
		t.replaceChild(b.parent, iA, iB)

		if d.height > e.height {
			b.child2 = iD
			a.child1 = iE
			e.parent = iA
			a.aabb = c.aabb.Combine(e.aabb)
			b.aabb = a.aabb.Combine(d.aabb)
			a.height = 1 + max(c.height, e.height)
			b.height = 1 + max(a.height, d.height)
		} else {
			b.child2 = iE
			a.child1 = iD
			d.parent = iA
			a.aabb = c.aabb.Combine(d.aabb)
			b.aabb = a.aabb.Combine(e.aabb)
			a.height = 1 + max(c.height, d.height)
			b.height = 1 + max(a.height, e.height)
		}
		return iB
	}
	return iA
}

func (t *DynamicTree) replaceChild(parent, oldChild, newChild int) {
	if parent == nullNode {
		t.root = newChild
		return
	}
	if t.nodes[parent].child1 == oldChild {
		t.nodes[parent].child1 = newChild
	} else {
		common.Assert(t.nodes[parent].child2 == oldChild)
		t.nodes[parent].child2 = newChild
	}
}

// Height is the height of the root, 0 for an empty tree.
func (t *DynamicTree) Height() int {
	if t.root == nullNode {
		return 0
	}
	return t.nodes[t.root].height
}

// AreaRatio is the total perimeter of all nodes over the root perimeter.
func (t *DynamicTree) AreaRatio() float64 {
	if t.root == nullNode {
		return 0
	}
	rootArea := t.nodes[t.root].aabb.Perimeter()
	total := 0.0
	for i := range t.nodes {
		if t.nodes[i].height < 0 {
			continue
		}
		total += t.nodes[i].aabb.Perimeter()
	}
	return total / rootArea
}

// MaxBalance is the largest height difference between two siblings.
func (t *DynamicTree) MaxBalance() int {
	maxBalance := 0
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.height <= 1 {
			continue
		}
		bal := t.nodes[n.child2].height - t.nodes[n.child1].height
		if bal < 0 {
			bal = -bal
		}
		maxBalance = max(maxBalance, bal)
	}
	return maxBalance
}

// Validate checks parent links, heights and boxes of the whole tree and
// panics on corruption. Intended for tests.
func (t *DynamicTree) Validate() {
	t.validate(t.root)

	freeCount := 0
	for id := t.freeList; id != nullNode; id = t.nodes[id].parent {
		freeCount++
	}
	common.Assert(t.nodeCount+freeCount == len(t.nodes))
}

func (t *DynamicTree) validate(index int) {
	if index == nullNode {
		return
	}
	if index == t.root {
		common.Assert(t.nodes[index].parent == nullNode)
	}
	n := &t.nodes[index]
	if n.isLeaf() {
		common.Assert(n.child2 == nullNode && n.height == 0)
		return
	}
	c1, c2 := n.child1, n.child2
	common.Assert(t.nodes[c1].parent == index && t.nodes[c2].parent == index)
	common.Assert(n.height == 1+max(t.nodes[c1].height, t.nodes[c2].height))
	combined := t.nodes[c1].aabb.Combine(t.nodes[c2].aabb)
	common.Assert(combined == n.aabb)
	t.validate(c1)
	t.validate(c2)
}

// ShiftOrigin translates every box by -newOrigin.
func (t *DynamicTree) ShiftOrigin(newOrigin common.Vec2) {
	for i := range t.nodes {
		t.nodes[i].aabb.LowerBound = t.nodes[i].aabb.LowerBound.Sub(newOrigin)
		t.nodes[i].aabb.UpperBound = t.nodes[i].aabb.UpperBound.Sub(newOrigin)
	}
}
