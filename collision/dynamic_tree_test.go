package collision

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/physkit/rigid2d/common"
)

func randomBox(r *rand.Rand) AABB {
	c := common.MakeVec2(r.Float64()*100-50, r.Float64()*100-50)
	h := common.MakeVec2(0.1+r.Float64()*2, 0.1+r.Float64()*2)
	return AABB{LowerBound: c.Sub(h), UpperBound: c.Add(h)}
}

func TestDynamicTreeQuery(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tree := NewDynamicTree()
	boxes := map[int]AABB{}
	for i := 0; i < 200; i++ {
		bb := randomBox(r)
		id := tree.CreateProxy(bb, i)
		boxes[id] = bb
	}
	tree.Validate()

	// Move half of them, some a long way.
	for id, bb := range boxes {
		if id%2 == 0 {
			continue
		}
		d := common.MakeVec2(r.Float64()*6-3, r.Float64()*6-3)
		moved := AABB{LowerBound: bb.LowerBound.Add(d), UpperBound: bb.UpperBound.Add(d)}
		tree.MoveProxy(id, moved, d)
		boxes[id] = moved
	}
	tree.Validate()

	for id, bb := range boxes {
		if !tree.FatAABB(id).Contains(bb) {
			t.Fatalf("fat AABB of %d does not contain its box", id)
		}
	}

	query := AABB{LowerBound: common.MakeVec2(-10, -10), UpperBound: common.MakeVec2(10, 10)}
	var got []int
	tree.Query(func(id int) bool {
		got = append(got, id)
		return true
	}, query)
	for _, id := range got {
		if !TestOverlapAABB(tree.FatAABB(id), query) {
			t.Errorf("query returned %d which does not overlap", id)
		}
	}
	want := 0
	for id := range boxes {
		if TestOverlapAABB(tree.FatAABB(id), query) {
			want++
		}
	}
	if len(got) != want {
		t.Errorf("query found %d proxies, brute force %d", len(got), want)
	}

	if b, h := tree.MaxBalance(), tree.Height(); b >= h {
		t.Errorf("max balance = %d with height %d", b, h)
	}
	if q := tree.AreaRatio(); q < 1 {
		t.Errorf("area ratio = %v, want >= 1", q)
	}

	for id := range boxes {
		tree.DestroyProxy(id)
	}
	tree.Validate()
	if h := tree.Height(); h != 0 {
		t.Errorf("empty tree height = %d", h)
	}
}

func TestDynamicTreeMoveInsideFatBox(t *testing.T) {
	tree := NewDynamicTree()
	bb := AABB{LowerBound: common.MakeVec2(0, 0), UpperBound: common.MakeVec2(1, 1)}
	id := tree.CreateProxy(bb, "a")
	small := common.MakeVec2(0.01, 0)
	nudged := AABB{LowerBound: bb.LowerBound.Add(small), UpperBound: bb.UpperBound.Add(small)}
	if tree.MoveProxy(id, nudged, small) {
		t.Error("a move within the fat box should not reinsert")
	}
	big := common.MakeVec2(1, 0)
	far := AABB{LowerBound: bb.LowerBound.Add(big), UpperBound: bb.UpperBound.Add(big)}
	if !tree.MoveProxy(id, far, big) {
		t.Fatal("a move out of the fat box should reinsert")
	}
	fat := tree.FatAABB(id)
	if want := far.UpperBound.X + common.AABBExtension + common.AABBMultiplier; !near(fat.UpperBound.X, want, 1e-9) {
		t.Errorf("predicted upper x = %v, want %v", fat.UpperBound.X, want)
	}
	if tree.UserData(id) != "a" {
		t.Errorf("user data = %v", tree.UserData(id))
	}
}

func TestDynamicTreeRayCast(t *testing.T) {
	tree := NewDynamicTree()
	for i := 0; i < 5; i++ {
		x := float64(i * 4)
		tree.CreateProxy(AABB{LowerBound: common.MakeVec2(x, -1), UpperBound: common.MakeVec2(x+1, 1)}, i)
	}
	input := RayCastInput{P1: common.MakeVec2(-5, 0), P2: common.MakeVec2(30, 0), MaxFraction: 1}

	var hits []int
	tree.RayCast(func(in RayCastInput, id int) float64 {
		hits = append(hits, tree.UserData(id).(int))
		return in.MaxFraction
	}, input)
	sort.Ints(hits)
	if len(hits) != 5 {
		t.Fatalf("ray hit %v, want all five", hits)
	}

	count := 0
	tree.RayCast(func(RayCastInput, int) float64 {
		count++
		return 0
	}, input)
	if count != 1 {
		t.Errorf("returning 0 visited %d leaves, want 1", count)
	}
}

func TestBroadPhasePairs(t *testing.T) {
	bp := NewBroadPhase()
	a := bp.CreateProxy(AABB{LowerBound: common.MakeVec2(0, 0), UpperBound: common.MakeVec2(1, 1)}, "a")
	b := bp.CreateProxy(AABB{LowerBound: common.MakeVec2(0.5, 0.5), UpperBound: common.MakeVec2(1.5, 1.5)}, "b")
	bp.CreateProxy(AABB{LowerBound: common.MakeVec2(10, 10), UpperBound: common.MakeVec2(11, 11)}, "c")

	if bp.ProxyCount() != 3 {
		t.Fatalf("proxy count = %d", bp.ProxyCount())
	}
	if !bp.TestOverlap(a, b) {
		t.Error("a and b should overlap")
	}

	var pairs [][2]any
	collect := func(ua, ub any) { pairs = append(pairs, [2]any{ua, ub}) }
	bp.UpdatePairs(collect)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %v, want exactly one", pairs)
	}
	got := map[any]bool{pairs[0][0]: true, pairs[0][1]: true}
	if !got["a"] || !got["b"] {
		t.Errorf("pair = %v, want a and b", pairs[0])
	}

	pairs = nil
	bp.UpdatePairs(collect)
	if len(pairs) != 0 {
		t.Errorf("no moves should report no pairs, got %v", pairs)
	}

	bp.TouchProxy(a)
	bp.UpdatePairs(collect)
	if len(pairs) != 1 {
		t.Errorf("touch should report the pair again, got %v", pairs)
	}

	pairs = nil
	bp.TouchProxy(b)
	bp.DestroyProxy(b)
	bp.UpdatePairs(collect)
	if len(pairs) != 0 {
		t.Errorf("destroyed proxy reported pairs %v", pairs)
	}
	if bp.ProxyCount() != 2 {
		t.Errorf("proxy count = %d, want 2", bp.ProxyCount())
	}
}
