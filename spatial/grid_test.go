package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

var _ Partition = (*Grid)(nil)

func TestNewGrid(t *testing.T) {
	grid := NewGrid(0, 0)
	require.Equal(t, 1, grid.Rows)
	require.Equal(t, 1, grid.Cols)

	grid = NewGrid(6, 12)
	info := grid.DebugInfo()
	require.Equal(t, 72, info.LeafCount)
	require.Equal(t, 1, info.Depth)
	require.Zero(t, info.ItemCount)
}

func TestGridAddMoveRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	grid := NewGrid(8, 16)

	items := make([]*testItem, 200)
	for i := range items {
		items[i] = &testItem{id: uint32(i), position: geometry.RandomPoint(rng)}
		grid.Add(items[i])
	}
	require.Equal(t, len(items), grid.DebugInfo().ItemCount)

	for _, it := range items {
		require.True(t, containsItem(grid.List(it.position, 0), it.id))
	}

	for _, it := range items[:50] {
		it.position = geometry.RandomPoint(rng)
		grid.Move(it)
	}
	for _, it := range items {
		require.True(t, containsItem(grid.List(it.position, 0), it.id))
	}

	for _, it := range items[:100] {
		require.True(t, grid.Remove(it))
		require.False(t, grid.Remove(it))
	}
	require.Equal(t, 100, grid.DebugInfo().ItemCount)
	require.False(t, containsItem(grid.List(items[0].position, math.Pi), items[0].id))
}

func TestGridListRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	grid := NewGrid(9, 18)

	var items []Item
	for i := 0; i < 400; i++ {
		it := &testItem{id: uint32(i), position: geometry.RandomPoint(rng)}
		items = append(items, it)
		grid.Add(it)
	}

	for q := 0; q < 50; q++ {
		center := geometry.RandomPoint(rng)
		radius := rng.Float64() * 0.8
		found := grid.List(center, radius)

		for _, it := range items {
			if geometry.AngularDistance(center, it.ItemPosition(), 1) <= radius {
				require.True(t, containsItem(found, it.ItemID()), "query %d item %d", q, it.ItemID())
			}
		}
	}

	t.Run("caps holding a pole", func(t *testing.T) {
		found := grid.List(geometry.Normalize(mgl64.Vec3{0.1, 0, 1}), 0.3)
		for _, it := range items {
			if geometry.AngularDistance(geometry.Pole, it.ItemPosition(), 1) <= 0.2 {
				require.True(t, containsItem(found, it.ItemID()))
			}
		}
	})

	t.Run("whole sphere", func(t *testing.T) {
		require.Len(t, grid.List(mgl64.Vec3{1, 0, 0}, math.Pi), len(items))
	})
}

func TestGridClear(t *testing.T) {
	grid := NewGrid(4, 8)
	it := &testItem{id: 1, position: mgl64.Vec3{1, 0, 0}}
	grid.Add(it)
	grid.Add(it)
	require.Len(t, grid.List(it.position, math.Pi), 1)

	grid.Clear()
	require.Empty(t, grid.List(it.position, math.Pi))
	require.Zero(t, grid.DebugInfo().ItemCount)
}

func TestGridListCells(t *testing.T) {
	grid := NewGrid(4, 8)
	cells := grid.ListCells()
	require.Len(t, cells, 32)

	var area float64
	for _, c := range cells {
		area += c.Area()
	}
	require.InDelta(t, 4*math.Pi, area, 0.5)
}
