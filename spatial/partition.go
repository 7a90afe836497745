package spatial

import (
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
)

// Item is an entity that can be stored in a partition.
type Item interface {
	ItemID() uint32
	ItemPosition() mgl64.Vec3
}

type DebugInfo struct {
	NodeCount int
	LeafCount int
	Depth     int
	ItemCount int

	// Number of items in each leaf, in ListCells order.
	Occupancy []int
}

// Partition is a spatial index over items on the unit sphere.
type Partition interface {
	Add(item Item)
	Remove(item Item) bool
	Move(item Item)

	// List returns items that may lie within radius of position. Results
	// can contain items further away but never miss a closer one.
	List(position mgl64.Vec3, radius float64) []Item

	// Clear removes every item.
	Clear()

	// debug stuff:
	ListCells() []voronoi.Cell
	DebugInfo() DebugInfo
}
