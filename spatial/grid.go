package spatial

import (
	"math"

	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
)

// Regular Grid Spatial Partition
//
// A sphere uniformly sub-divided in latitude and longitude, implementing the
// Partition interface:
//   - rows split the polar angle from Pole, columns split the azimuth around
//     it.
//   - cells near the poles are smaller than cells near the equator, so the
//     grid suits evenly spread items that stay away from the poles.

// queryPadding widens queries so that items on a cell boundary are never
// missed because of rounding.
const queryPadding = 1e-9

type Grid struct {
	Rows int
	Cols int

	cells [][]Item
	slots map[uint32]int
}

// NewGrid returns a grid with the given number of rows and columns, at least
// one of each.
func NewGrid(rows, cols int) *Grid {
	rows = max(rows, 1)
	cols = max(cols, 1)

	return &Grid{
		Rows:  rows,
		Cols:  cols,
		cells: make([][]Item, rows*cols),
		slots: make(map[uint32]int),
	}
}

func (g *Grid) Add(item Item) {
	if _, ok := g.slots[item.ItemID()]; ok {
		g.Remove(item)
	}

	slot := g.slot(item.ItemPosition())
	g.cells[slot] = append(g.cells[slot], item)
	g.slots[item.ItemID()] = slot
}

func (g *Grid) Remove(item Item) bool {
	id := item.ItemID()
	slot, ok := g.slots[id]
	if !ok {
		return false
	}
	delete(g.slots, id)

	items := g.cells[slot]
	for i, it := range items {
		if it.ItemID() == id {
			last := len(items) - 1
			items[i] = items[last]
			items[last] = nil
			g.cells[slot] = items[:last]
			break
		}
	}
	return true
}

func (g *Grid) Move(item Item) {
	g.Remove(item)
	g.Add(item)
}

// List returns the items of every cell overlapping the cap of the given
// angular radius around position.
func (g *Grid) List(position mgl64.Vec3, radius float64) []Item {
	theta, phi := polar(position)
	radius += queryPadding

	rowMin := g.row(theta - radius)
	rowMax := g.row(theta + radius)

	// Longitude span of the cap, unbounded when it holds a pole.
	allCols := radius >= theta || radius >= math.Pi-theta
	var colMin, colMax int
	if !allCols {
		span := math.Asin(math.Min(1, math.Sin(radius)/math.Sin(theta)))
		colMin = int(math.Floor((phi - span) / (2 * math.Pi) * float64(g.Cols)))
		colMax = int(math.Floor((phi + span) / (2 * math.Pi) * float64(g.Cols)))
		allCols = colMax-colMin+1 >= g.Cols
	}
	if allCols {
		colMin, colMax = 0, g.Cols-1
	}

	var items []Item
	for r := rowMin; r <= rowMax; r++ {
		for c := colMin; c <= colMax; c++ {
			col := ((c % g.Cols) + g.Cols) % g.Cols
			items = append(items, g.cells[r*g.Cols+col]...)
		}
	}
	return items
}

// ListCells returns one cell per grid slot, row by row. Cell boundaries join
// the slot corners with great-circle arcs, so they only approximate the
// slots.
func (g *Grid) ListCells() []voronoi.Cell {
	cells := make([]voronoi.Cell, 0, len(g.cells))
	for r := 0; r < g.Rows; r++ {
		theta0 := float64(r) / float64(g.Rows) * math.Pi
		theta1 := float64(r+1) / float64(g.Rows) * math.Pi

		for c := 0; c < g.Cols; c++ {
			phi0 := float64(c) / float64(g.Cols) * 2 * math.Pi
			phi1 := float64(c+1) / float64(g.Cols) * 2 * math.Pi

			center := fromPolar((theta0+theta1)/2, (phi0+phi1)/2)
			cells = append(cells, voronoi.NewCell(r*g.Cols+c, center, []mgl64.Vec3{
				fromPolar(theta0, phi0),
				fromPolar(theta0, phi1),
				fromPolar(theta1, phi1),
				fromPolar(theta1, phi0),
			}))
		}
	}
	return cells
}

// Clear removes every item.
func (g *Grid) Clear() {
	for i := range g.cells {
		clear(g.cells[i])
		g.cells[i] = g.cells[i][:0]
	}
	clear(g.slots)
}

func (g *Grid) DebugInfo() DebugInfo {
	info := DebugInfo{
		NodeCount: len(g.cells),
		LeafCount: len(g.cells),
		Depth:     1,
		ItemCount: len(g.slots),
		Occupancy: make([]int, len(g.cells)),
	}
	for i, items := range g.cells {
		info.Occupancy[i] = len(items)
	}
	return info
}

func (g *Grid) slot(p mgl64.Vec3) int {
	theta, phi := polar(p)
	col := min(int(phi/(2*math.Pi)*float64(g.Cols)), g.Cols-1)
	return g.row(theta)*g.Cols + col
}

func (g *Grid) row(theta float64) int {
	r := int(math.Floor(theta / math.Pi * float64(g.Rows)))
	return min(max(r, 0), g.Rows-1)
}

// polar returns the angle of p from Pole and its azimuth in [0, 2π).
func polar(p mgl64.Vec3) (float64, float64) {
	p = geometry.Normalize(p)

	phi := math.Atan2(p.Y(), p.X())
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return geometry.ClampedAcos(p.Z()), phi
}

func fromPolar(theta, phi float64) mgl64.Vec3 {
	s := math.Sin(theta)
	return mgl64.Vec3{s * math.Cos(phi), s * math.Sin(phi), math.Cos(theta)}
}
