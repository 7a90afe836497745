package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

var _ Partition = (*Tree)(nil)

type testItem struct {
	id       uint32
	position mgl64.Vec3
}

func (i *testItem) ItemID() uint32 {
	return i.id
}

func (i *testItem) ItemPosition() mgl64.Vec3 {
	return i.position
}

func containsItem(items []Item, id uint32) bool {
	for _, it := range items {
		if it.ItemID() == id {
			return true
		}
	}
	return false
}

func TestNewTree(t *testing.T) {
	tree := NewTree(rand.New(rand.NewSource(1)))

	require.Equal(t, 1, tree.Len())
	root := tree.Node(tree.Root())
	require.True(t, root.IsLeaf())
	require.True(t, root.Cell.IsWholeSphere())
	require.Equal(t, -1, root.Parent)

	info := tree.DebugInfo()
	require.Equal(t, 1, info.NodeCount)
	require.Equal(t, 1, info.LeafCount)
	require.Equal(t, 0, info.Depth)
}

func TestCreateChildren(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tree := NewTree(rng)

	children := tree.CreateChildren(tree.Root(), 8)
	require.Len(t, children, 8)

	t.Run("children tile the sphere", func(t *testing.T) {
		var area float64
		for _, c := range children {
			n := tree.Node(c)
			require.Equal(t, 1, n.Level)
			require.Equal(t, tree.Root(), n.Parent)
			require.False(t, n.Cell.IsEmpty())
			require.True(t, n.Cell.ContainsPoint(n.Cell.Generator))
			area += n.Cell.Area()
		}
		require.InDelta(t, 4*math.Pi, area, 1e-6)
	})

	t.Run("every point is covered", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			p := geometry.RandomPoint(rng)
			covered := false
			for _, c := range children {
				covered = covered || tree.Node(c).Cell.ContainsPoint(p)
			}
			require.True(t, covered)
		}
	})

	t.Run("subdividing twice panics", func(t *testing.T) {
		require.Panics(t, func() { tree.CreateChildren(tree.Root(), 4) })
	})

	t.Run("single child copies the parent", func(t *testing.T) {
		only := tree.CreateChildren(children[0], 1)
		require.Len(t, only, 1)
		require.InDelta(t, tree.Node(children[0]).Cell.Area(), tree.Node(only[0]).Cell.Area(), 1e-12)
	})
}

func TestSubdivide(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tree := NewTree(rng)
	tree.Subdivide(8, 5, 4)

	info := tree.DebugInfo()
	require.Equal(t, 8*5*4, info.LeafCount)
	require.Equal(t, 1+8+8*5+8*5*4, info.NodeCount)
	require.Equal(t, 3, info.Depth)

	for i := 0; i < tree.Len(); i++ {
		n := tree.Node(i)
		if n.IsLeaf() {
			continue
		}

		var area float64
		for _, c := range n.Children {
			child := tree.Node(c)
			require.Equal(t, n.Level+1, child.Level)
			area += child.Cell.Area()

			for _, v := range child.Cell.Vertices {
				require.True(t, n.Cell.ContainsPoint(v) || n.Cell.IsWholeSphere())
			}
		}
		require.InDelta(t, n.Cell.Area(), area, 1e-6, "node %d", i)
	}

	var area float64
	for _, c := range tree.ListCells() {
		area += c.Area()
	}
	require.InDelta(t, 4*math.Pi, area, 1e-5)
}

func TestLeaf(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	tree := NewTree(rng)
	tree.Subdivide(6, 4)

	for i := 0; i < 300; i++ {
		p := geometry.RandomPoint(rng)
		leaf := tree.Node(tree.Leaf(p))
		require.True(t, leaf.IsLeaf())
		require.True(t, leaf.Cell.ContainsPoint(p))
	}
}

func TestAddMoveRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tree := NewTree(rng)
	tree.Subdivide(8, 4)

	items := make([]*testItem, 200)
	for i := range items {
		items[i] = &testItem{id: uint32(i), position: geometry.RandomPoint(rng)}
		tree.Add(items[i])
	}
	require.Equal(t, 200, tree.DebugInfo().ItemCount)

	for round := 0; round < 5; round++ {
		for _, it := range items {
			require.True(t, containsItem(tree.List(it.position, 0), it.id), "item %d", it.id)
		}

		for _, it := range items {
			offset := geometry.PoseFromOffset(rng.NormFloat64(), rng.NormFloat64(), 4)
			it.position = geometry.PoseFromPoint(it.position).Mul(offset).Position()
			tree.Move(it)
		}
	}

	for _, it := range items[:100] {
		require.True(t, tree.Remove(it))
		require.False(t, containsItem(tree.List(it.position, math.Pi), it.id))
	}
	for _, it := range items[100:] {
		require.True(t, containsItem(tree.List(it.position, 0), it.id))
	}

	require.False(t, tree.Remove(items[0]))
	require.Equal(t, 100, tree.DebugInfo().ItemCount)
}

func TestAddTwiceKeepsOneCopy(t *testing.T) {
	tree := NewTree(rand.New(rand.NewSource(6)))
	tree.Subdivide(4)

	it := &testItem{id: 1, position: mgl64.Vec3{0, 0, 1}}
	tree.Add(it)
	tree.Add(it)

	require.Len(t, tree.List(it.position, math.Pi), 1)
}

func TestListRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := NewTree(rng)
	tree.Subdivide(8, 5)

	var items []Item
	for i := 0; i < 300; i++ {
		items = append(items, &testItem{id: uint32(i), position: geometry.RandomPoint(rng)})
	}
	tree.Rebuild(items)

	center := geometry.Normalize(mgl64.Vec3{0.2, -0.4, 0.8})
	radius := 0.5
	found := tree.List(center, radius)

	for _, it := range items {
		if geometry.AngularDistance(center, it.ItemPosition(), 1) <= radius {
			require.True(t, containsItem(found, it.ItemID()), "item %d", it.ItemID())
		}
	}
	require.Less(t, len(found), len(items))
	require.Len(t, tree.List(center, math.Pi), len(items))
}

func TestListEmpty(t *testing.T) {
	tree := NewTree(rand.New(rand.NewSource(8)))
	require.Empty(t, tree.List(mgl64.Vec3{0, 0, 1}, 0.1))

	tree.Subdivide(8, 4)
	require.Empty(t, tree.List(mgl64.Vec3{0, 0, 1}, 0.1))
	require.Empty(t, tree.List(mgl64.Vec3{1, 0, 0}, math.Pi))
}

func TestClearAndRebuild(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	tree := NewTree(rng)
	tree.Subdivide(5)

	var items []Item
	for i := 0; i < 50; i++ {
		items = append(items, &testItem{id: uint32(i), position: geometry.RandomPoint(rng)})
	}
	tree.Rebuild(items)
	require.Equal(t, 50, tree.DebugInfo().ItemCount)

	occupancy := 0
	for _, n := range tree.DebugInfo().Occupancy {
		occupancy += n
	}
	require.Equal(t, 50, occupancy)

	tree.Clear()
	require.Zero(t, tree.DebugInfo().ItemCount)
	require.Empty(t, tree.List(mgl64.Vec3{0, 0, 1}, math.Pi))
	require.Len(t, tree.ListCells(), 5)

	tree.Rebuild(items[:10])
	require.Len(t, tree.List(mgl64.Vec3{0, 0, 1}, math.Pi), 10)
}

func TestCreateChildrenMovesItems(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	tree := NewTree(rng)

	var items []*testItem
	for i := 0; i < 40; i++ {
		it := &testItem{id: uint32(i), position: geometry.RandomPoint(rng)}
		items = append(items, it)
		tree.Add(it)
	}

	tree.Subdivide(6, 3)
	require.Empty(t, tree.Node(tree.Root()).Items)
	require.Equal(t, 40, tree.DebugInfo().ItemCount)

	for _, it := range items {
		require.True(t, containsItem(tree.List(it.position, 0), it.id))
	}
}

func TestScatter(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	t.Run("whole sphere", func(t *testing.T) {
		points := Scatter(rng, voronoi.WholeSphere(), 20)
		require.Len(t, points, 20)
		for _, p := range points {
			require.InDelta(t, 1, p.Len(), 1e-12)
		}
	})

	t.Run("inside cell", func(t *testing.T) {
		cell := voronoi.NewCell(0, geometry.Normalize(mgl64.Vec3{1, 1, 1}), []mgl64.Vec3{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		})

		for _, p := range Scatter(rng, cell, 200) {
			require.InDelta(t, 1, p.Len(), 1e-12)
			require.True(t, cell.ContainsPoint(p))
		}
	})
}
