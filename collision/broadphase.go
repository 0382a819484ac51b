package collision

import (
	"cmp"
	"slices"

	"github.com/physkit/rigid2d/common"
)

// PairCallback receives the user data of two proxies whose fat boxes
// started to overlap or whose proxies moved.
type PairCallback func(userDataA, userDataB any)

// BroadPhase tracks fattened proxy boxes and reports candidate pairs. The
// world only talks to this interface so another spatial index can be
// plugged in.
type BroadPhase interface {
	CreateProxy(aabb AABB, userData any) int
	DestroyProxy(proxyID int)
	// MoveProxy updates a proxy after its shape moved. displacement is
	// used to predict the fat box.
	MoveProxy(proxyID int, aabb AABB, displacement common.Vec2)
	// TouchProxy forces pair reporting for the proxy on the next update.
	TouchProxy(proxyID int)

	UserData(proxyID int) any
	FatAABB(proxyID int) AABB
	TestOverlap(proxyIDA, proxyIDB int) bool

	Query(callback TreeQueryCallback, aabb AABB)
	RayCast(callback TreeRayCastCallback, input RayCastInput)

	// UpdatePairs reports each overlapping pair involving a moved proxy
	// once, then clears the move buffer.
	UpdatePairs(callback PairCallback)

	ShiftOrigin(newOrigin common.Vec2)

	ProxyCount() int
	TreeHeight() int
	TreeBalance() int
	TreeQuality() float64
}

const nullProxy = -1

type proxyPair struct {
	a, b int
}

// DefaultBroadPhase is a BroadPhase backed by a DynamicTree.
type DefaultBroadPhase struct {
	tree       *DynamicTree
	proxyCount int

	moveBuffer []int
	pairBuffer []proxyPair

	queryProxyID int
	queryPairs   TreeQueryCallback
}

var _ BroadPhase = (*DefaultBroadPhase)(nil)

func NewBroadPhase() *DefaultBroadPhase {
	bp := &DefaultBroadPhase{
		tree:       NewDynamicTree(),
		moveBuffer: make([]int, 0, 16),
		pairBuffer: make([]proxyPair, 0, 16),
	}
	bp.queryPairs = bp.collectPair
	return bp
}

func (bp *DefaultBroadPhase) CreateProxy(aabb AABB, userData any) int {
	id := bp.tree.CreateProxy(aabb, userData)
	bp.proxyCount++
	bp.moveBuffer = append(bp.moveBuffer, id)
	return id
}

func (bp *DefaultBroadPhase) DestroyProxy(proxyID int) {
	bp.unbufferMove(proxyID)
	bp.proxyCount--
	bp.tree.DestroyProxy(proxyID)
}

func (bp *DefaultBroadPhase) MoveProxy(proxyID int, aabb AABB, displacement common.Vec2) {
	if bp.tree.MoveProxy(proxyID, aabb, displacement) {
		bp.moveBuffer = append(bp.moveBuffer, proxyID)
	}
}

func (bp *DefaultBroadPhase) TouchProxy(proxyID int) {
	bp.moveBuffer = append(bp.moveBuffer, proxyID)
}

func (bp *DefaultBroadPhase) unbufferMove(proxyID int) {
	for i, id := range bp.moveBuffer {
		if id == proxyID {
			bp.moveBuffer[i] = nullProxy
		}
	}
}

func (bp *DefaultBroadPhase) UserData(proxyID int) any { return bp.tree.UserData(proxyID) }
func (bp *DefaultBroadPhase) FatAABB(proxyID int) AABB { return bp.tree.FatAABB(proxyID) }

func (bp *DefaultBroadPhase) TestOverlap(proxyIDA, proxyIDB int) bool {
	return TestOverlapAABB(bp.tree.FatAABB(proxyIDA), bp.tree.FatAABB(proxyIDB))
}

func (bp *DefaultBroadPhase) Query(callback TreeQueryCallback, aabb AABB) {
	bp.tree.Query(callback, aabb)
}

func (bp *DefaultBroadPhase) RayCast(callback TreeRayCastCallback, input RayCastInput) {
	bp.tree.RayCast(callback, input)
}

func (bp *DefaultBroadPhase) UpdatePairs(callback PairCallback) {
	bp.pairBuffer = bp.pairBuffer[:0]

	for _, id := range bp.moveBuffer {
		if id == nullProxy {
			continue
		}
		bp.queryProxyID = id
		// Query with the fat box so pairs that may touch later are not missed.
		bp.tree.Query(bp.queryPairs, bp.tree.FatAABB(id))
	}
	bp.moveBuffer = bp.moveBuffer[:0]

	// Sorting exposes duplicates.
	slices.SortFunc(bp.pairBuffer, func(p, q proxyPair) int {
		if c := cmp.Compare(p.a, q.a); c != 0 {
			return c
		}
		return cmp.Compare(p.b, q.b)
	})
	pairs := slices.Compact(bp.pairBuffer)

	for _, p := range pairs {
		callback(bp.tree.UserData(p.a), bp.tree.UserData(p.b))
	}
}

// collectPair is the tree query callback used while gathering pairs.
func (bp *DefaultBroadPhase) collectPair(proxyID int) bool {
	if proxyID == bp.queryProxyID {
		return true
	}
	bp.pairBuffer = append(bp.pairBuffer, proxyPair{
		a: min(proxyID, bp.queryProxyID),
		b: max(proxyID, bp.queryProxyID),
	})
	return true
}

func (bp *DefaultBroadPhase) ShiftOrigin(newOrigin common.Vec2) { bp.tree.ShiftOrigin(newOrigin) }

func (bp *DefaultBroadPhase) ProxyCount() int      { return bp.proxyCount }
func (bp *DefaultBroadPhase) TreeHeight() int      { return bp.tree.Height() }
func (bp *DefaultBroadPhase) TreeBalance() int     { return bp.tree.MaxBalance() }
func (bp *DefaultBroadPhase) TreeQuality() float64 { return bp.tree.AreaRatio() }
