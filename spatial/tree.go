package spatial

import (
	"math"
	"math/rand"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/delaunay"
	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ErrTypeSubdivision tags panics raised when a cell cannot be
	// subdivided.
	ErrTypeSubdivision = "subdivision"

	DefaultSettleIterations = 10

	maxPartitionAttempts = 100
)

// Node is a cell of the tree. Only leaves hold items.
type Node struct {
	Cell     voronoi.Cell
	Level    int
	Parent   int
	Children []int
	Items    []Item

	// Farthest distance from the cell centroid of an item added below this
	// node since the last Clear.
	reach float64
}

func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Tree is a hierarchical spatial index made of recursively subdivided
// Voronoi cells. Nodes live in one arena and refer to each other by index.
// It is not safe for concurrent use.
type Tree struct {
	// Number of relaxation passes used to settle children into their parent.
	SettleIterations int

	rng    *rand.Rand
	nodes  []Node
	leaves map[uint32]int
}

// NewTree returns a tree whose root covers the whole sphere.
func NewTree(rng *rand.Rand) *Tree {
	return &Tree{
		SettleIterations: DefaultSettleIterations,
		rng:              rng,
		nodes: []Node{{
			Cell:   voronoi.WholeSphere(),
			Parent: -1,
		}},
		leaves: make(map[uint32]int),
	}
}

// Root returns the index of the root node.
func (t *Tree) Root() int {
	return 0
}

func (t *Tree) Node(i int) Node {
	return t.nodes[i]
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

// Subdivide builds a fixed-depth hierarchy under the current leaves, one
// level per branching factor. The root needs a branching factor of at least
// 4.
func (t *Tree) Subdivide(branching ...int) {
	for _, n := range branching {
		for _, leaf := range t.leafIndexes() {
			t.CreateChildren(leaf, n)
		}
	}
}

// CreateChildren tiles the cell of the given node with n child cells and
// returns their indexes. Items held by the node move down to the children.
func (t *Tree) CreateChildren(node int, n int) []int {
	if n < 1 {
		panic(errors.New("creating less than one child").
			WithType(ErrTypeSubdivision).
			WithTag("node", node).
			WithTag("count", n))
	}
	if !t.nodes[node].IsLeaf() {
		panic(errors.New("node already has children").
			WithType(ErrTypeSubdivision).
			WithTag("node", node))
	}

	parent := t.nodes[node]
	cells := t.partition(parent.Cell, n)

	children := make([]int, 0, len(cells))
	for _, c := range cells {
		children = append(children, len(t.nodes))
		t.nodes = append(t.nodes, Node{
			Cell:   c,
			Level:  parent.Level + 1,
			Parent: node,
		})
	}
	t.nodes[node].Children = children

	items := t.nodes[node].Items
	t.nodes[node].Items = nil
	for _, item := range items {
		delete(t.leaves, item.ItemID())
		t.Add(item)
	}
	return children
}

// partition scatters n sites in parent and relaxes them into a tiling.
// Scatters that cannot be triangulated are retried.
func (t *Tree) partition(parent voronoi.Cell, n int) []voronoi.Cell {
	if n == 1 {
		cell := parent
		cell.Site = 0
		return []voronoi.Cell{cell}
	}

	var err error
	for attempt := 0; attempt < maxPartitionAttempts; attempt++ {
		var cells []voronoi.Cell
		if cells, err = t.settle(parent, n); err == nil {
			return cells
		}

		logs.WithTag("attempt", attempt).
			WithTag("count", n).
			Debug(err)
	}

	panic(errors.New("partitioning cell failed").
		WithType(ErrTypeSubdivision).
		WithTag("count", n).
		WithTag("attempts", maxPartitionAttempts).
		Wrap(err))
}

// settle moves each site to the centroid of its clipped cell, repeatedly.
func (t *Tree) settle(parent voronoi.Cell, n int) ([]voronoi.Cell, error) {
	sites := Scatter(t.rng, parent, n)
	iterations := max(t.SettleIterations, 1)

	for i := 0; ; i++ {
		cells, err := t.tile(parent, sites)
		if err != nil {
			return nil, err
		}
		if i == iterations-1 {
			return cells, nil
		}

		for k, c := range cells {
			if !c.IsEmpty() {
				sites[k] = c.Centroid
			}
		}
	}
}

// tile returns the Voronoi cell of every site clipped against parent, in
// site order.
func (t *Tree) tile(parent voronoi.Cell, sites []mgl64.Vec3) ([]voronoi.Cell, error) {
	mesh := delaunay.New(t.rng)
	vertices := make([]int, len(sites))

	if parent.IsWholeSphere() {
		if err := mesh.InitializeWithPoints(sites); err != nil {
			return nil, err
		}
		for i, s := range sites {
			vertices[i] = mesh.NearestVertex(s)
		}
	} else {
		mesh.InitializeFacing(parent.Centroid)
		for i, s := range sites {
			vertices[i] = mesh.Insert(s)
		}
	}

	graph := make(map[int]voronoi.Cell, len(sites))
	for _, c := range mesh.VoronoiGraph() {
		graph[c.Site] = c
	}

	cells := make([]voronoi.Cell, len(sites))
	for i, s := range sites {
		c, ok := graph[vertices[i]]

		switch {
		case ok && parent.IsWholeSphere():
			cells[i] = voronoi.NewCell(i, s, c.Vertices)

		case ok && !t.bordersSeed(mesh, vertices[i]):
			cells[i] = voronoi.NewCell(i, s, voronoi.Clip(c.Vertices, parent))

		default:
			// Seed vertices take part in the Voronoi diagram, so the cell is
			// rebuilt from the bisectors with every other site.
			cells[i] = voronoi.NewCell(i, s, voronoi.ClipHalfSpaces(parent.Vertices, bisectors(sites, i)))
		}
	}
	return cells, nil
}

func (t *Tree) bordersSeed(mesh *delaunay.Triangulation, v int) bool {
	for _, n := range mesh.Neighbors(v) {
		if mesh.IsSeed(n) {
			return true
		}
	}
	return false
}

// bisectors returns the half-space normals holding the points closer to
// sites[i] than to any other site.
func bisectors(sites []mgl64.Vec3, i int) []mgl64.Vec3 {
	normals := make([]mgl64.Vec3, 0, len(sites)-1)
	for j, s := range sites {
		if j == i || geometry.IsDegenerate(sites[i].Sub(s)) {
			continue
		}
		normals = append(normals, geometry.Bisector(sites[i], s))
	}
	return normals
}

// Add stores item in the leaf reached by descending toward the nearest child
// cell center.
func (t *Tree) Add(item Item) {
	if _, ok := t.leaves[item.ItemID()]; ok {
		t.Remove(item)
	}

	p := geometry.Normalize(item.ItemPosition())
	node := t.descend(p, true)

	t.nodes[node].Items = append(t.nodes[node].Items, item)
	t.leaves[item.ItemID()] = node
}

// Remove deletes item from its leaf. It reports whether the item was found.
func (t *Tree) Remove(item Item) bool {
	id := item.ItemID()
	node, ok := t.leaves[id]
	if !ok {
		return false
	}
	delete(t.leaves, id)

	items := t.nodes[node].Items
	for i, it := range items {
		if it.ItemID() == id {
			last := len(items) - 1
			items[i] = items[last]
			items[last] = nil
			t.nodes[node].Items = items[:last]
			break
		}
	}
	return true
}

// Move re-inserts item at its current position.
func (t *Tree) Move(item Item) {
	t.Remove(item)
	t.Add(item)
}

// Leaf returns the index of the leaf an item at position would be stored
// in.
func (t *Tree) Leaf(position mgl64.Vec3) int {
	return t.descend(geometry.Normalize(position), false)
}

func (t *Tree) descend(p mgl64.Vec3, grow bool) int {
	node := t.Root()
	for {
		n := &t.nodes[node]
		if grow {
			n.reach = math.Max(n.reach, geometry.AngularDistance(n.Cell.Centroid, p, 1))
		}
		if n.IsLeaf() {
			return node
		}

		best := math.Inf(-1)
		next := n.Children[0]
		for _, c := range n.Children {
			if d := t.nodes[c].Cell.Generator.Dot(p); d > best {
				next, best = c, d
			}
		}
		node = next
	}
}

// List returns the items of every leaf whose bounds reach within radius of
// position. Radii are angular distances on the unit sphere.
func (t *Tree) List(position mgl64.Vec3, radius float64) []Item {
	var items []Item
	p := geometry.Normalize(position)

	var visit func(int)
	visit = func(node int) {
		n := &t.nodes[node]
		if !n.Cell.IsWholeSphere() {
			bound := math.Max(n.Cell.Radius, n.reach)
			if geometry.AngularDistance(n.Cell.Centroid, p, 1) > bound+radius {
				return
			}
		}

		if n.IsLeaf() {
			items = append(items, n.Items...)
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}

	visit(t.Root())
	return items
}

// ListCells returns the cell of every leaf.
func (t *Tree) ListCells() []voronoi.Cell {
	leaves := t.leafIndexes()
	cells := make([]voronoi.Cell, len(leaves))
	for i, l := range leaves {
		cells[i] = t.nodes[l].Cell
	}
	return cells
}

// Clear removes every item and keeps the cells.
func (t *Tree) Clear() {
	for i := range t.nodes {
		clear(t.nodes[i].Items)
		t.nodes[i].Items = t.nodes[i].Items[:0]
		t.nodes[i].reach = 0
	}
	clear(t.leaves)
}

// Rebuild clears the tree and adds items.
func (t *Tree) Rebuild(items []Item) {
	t.Clear()
	for _, item := range items {
		t.Add(item)
	}
}

func (t *Tree) DebugInfo() DebugInfo {
	leaves := t.leafIndexes()
	info := DebugInfo{
		NodeCount: len(t.nodes),
		LeafCount: len(leaves),
		ItemCount: len(t.leaves),
		Occupancy: make([]int, len(leaves)),
	}

	for i, l := range leaves {
		info.Occupancy[i] = len(t.nodes[l].Items)
		info.Depth = max(info.Depth, t.nodes[l].Level)
	}
	return info
}

func (t *Tree) leafIndexes() []int {
	var leaves []int
	for i, n := range t.nodes {
		if n.IsLeaf() {
			leaves = append(leaves, i)
		}
	}
	return leaves
}
