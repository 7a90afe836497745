package pathing

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/delaunay"
	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ErrTypeUnknownNode tags panics raised when a path is requested for a
	// node that was never added.
	ErrTypeUnknownNode = "unknown_node"

	DefaultMaxHops      = 100
	DefaultJitterFactor = 1
)

// NodeID identifies a node within its graph.
type NodeID int

// Node is a long-lived landmark snapped to its nearest mesh vertex.
type Node struct {
	ID       NodeID
	Vertex   int
	Position mgl64.Vec3
}

// Graph finds routes between landmarks across the edges of a triangulation.
type Graph struct {
	// Maximum number of edges a route may use before falling back.
	MaxHops int

	// Multiplied by the travel speed to get the distance under which the
	// final waypoint is dropped.
	JitterFactor float64

	// Whether routes that exceed MaxHops degrade to a single direct hop.
	// When false, an empty path is returned instead.
	DirectFallback bool

	vertices  []mgl64.Vec3
	adjacency [][]int
	nodes     []Node
}

// NewGraph returns a graph over a snapshot of the triangulation edges.
func NewGraph(mesh *delaunay.Triangulation) *Graph {
	vertices := make([]mgl64.Vec3, len(mesh.Vertices))
	copy(vertices, mesh.Vertices)

	return &Graph{
		MaxHops:        DefaultMaxHops,
		JitterFactor:   DefaultJitterFactor,
		DirectFallback: true,
		vertices:       vertices,
		adjacency:      mesh.Adjacency(),
	}
}

// AddNode registers a landmark at position and returns its id.
func (g *Graph) AddNode(position mgl64.Vec3) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		ID:       id,
		Vertex:   g.nearestVertex(position),
		Position: geometry.Normalize(position),
	})
	return id
}

func (g *Graph) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return Node{}, false
	}
	return g.nodes[id], true
}

func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Vertex returns the position of the i-th mesh vertex.
func (g *Graph) Vertex(i int) mgl64.Vec3 {
	return g.vertices[i]
}

// Path returns the route from one node to another, start first. speed is
// the angular distance travelled per tick.
func (g *Graph) Path(from, to NodeID, speed float64) Path {
	start, ok := g.Node(from)
	if !ok {
		panic(errors.New("path start node not found").
			WithType(ErrTypeUnknownNode).
			WithTag("node", from))
	}

	destination, ok := g.Node(to)
	if !ok {
		panic(errors.New("path destination node not found").
			WithType(ErrTypeUnknownNode).
			WithTag("node", to))
	}

	return g.route(start.Vertex, destination.Vertex, speed)
}

// PathFrom returns the route from the vertex nearest to position to the given
// node.
func (g *Graph) PathFrom(position mgl64.Vec3, to NodeID, speed float64) Path {
	destination, ok := g.Node(to)
	if !ok {
		panic(errors.New("path destination node not found").
			WithType(ErrTypeUnknownNode).
			WithTag("node", to))
	}
	return g.route(g.nearestVertex(position), destination.Vertex, speed)
}

func (g *Graph) route(start, destination int, speed float64) Path {
	vertices, found := g.search(start, destination)

	var path Path
	switch {
	case found:
		path.Waypoints = make([]mgl64.Vec3, len(vertices))
		for i, v := range vertices {
			path.Waypoints[i] = g.vertices[v]
		}

	case g.DirectFallback:
		logs.WithTag("start", start).
			WithTag("destination", destination).
			WithTag("max_hops", g.MaxHops).
			Debug("no route within hop bound, using direct path")

		path.Direct = true
		path.Waypoints = []mgl64.Vec3{g.vertices[start], g.vertices[destination]}

	default:
		return path
	}

	if n := len(path.Waypoints); n > 1 {
		last := path.Waypoints[n-1]
		if geometry.AngularDistance(path.Waypoints[0], last, 1) < speed*g.JitterFactor {
			path.Waypoints = path.Waypoints[:n-1]
		}
	}
	return path
}

// search runs a breadth first search bounded to MaxHops and returns the
// vertices from start to destination.
func (g *Graph) search(start, destination int) ([]int, bool) {
	distances := make([]int, len(g.vertices))
	for i := range distances {
		distances[i] = -1
	}
	distances[start] = 0

	queue := []int{start}
	for len(queue) > 0 && distances[destination] < 0 {
		v := queue[0]
		queue = queue[1:]

		if distances[v] >= g.MaxHops {
			continue
		}

		for _, n := range g.adjacency[v] {
			if distances[n] < 0 {
				distances[n] = distances[v] + 1
				queue = append(queue, n)
			}
		}
	}

	if distances[destination] < 0 {
		return nil, false
	}

	// Walk back along decreasing discovery distances.
	path := make([]int, distances[destination]+1)
	current := destination
	for d := distances[destination]; d >= 0; d-- {
		path[d] = current
		if d == 0 {
			break
		}
		for _, n := range g.adjacency[current] {
			if distances[n] == d-1 {
				current = n
				break
			}
		}
	}
	return path, true
}

func (g *Graph) nearestVertex(p mgl64.Vec3) int {
	nearest := -1
	best := -2.0
	p = geometry.Normalize(p)

	for i, v := range g.vertices {
		if d := p.Dot(v); d > best {
			nearest, best = i, d
		}
	}
	return nearest
}
