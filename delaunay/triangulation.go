package delaunay

import (
	"math"
	"math/rand"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ErrTypeDegenerateSeed is returned when the seed tetrahedron matched to
	// input points does not enclose the sphere center.
	ErrTypeDegenerateSeed = "degenerate_seed"

	// ErrTypeCorruptTopology tags panics raised when a triangulation
	// invariant no longer holds.
	ErrTypeCorruptTopology = "corrupt_topology"

	// ErrTypeNotEnoughPoints tags panics raised when seeding from fewer than
	// 4 points.
	ErrTypeNotEnoughPoints = "not_enough_points"

	// ErrTypePointLocation tags panics raised when a point cannot be located
	// after all nudges.
	ErrTypePointLocation = "point_location"

	maxLocateAttempts = 100
	nudgeAmount       = 1e-3
	windingEpsilon    = 1e-12
	duplicateEpsilon  = 1e-9

	// Below this many vertices, seed vertices are checked for being orphaned.
	smallGraphVertices = 64
)

// Edge is a directed edge between two vertex indices.
type Edge struct {
	From int
	To   int
}

func (e Edge) complement() Edge {
	return Edge{From: e.To, To: e.From}
}

// Triangle is a directed 3-cycle of edge indices, wound counter-clockwise
// when seen from outside the sphere.
type Triangle struct {
	Edges [3]int
}

type circle struct {
	center mgl64.Vec3
	radius float64
}

// Triangulation is an incremental Delaunay triangulation of points on the
// unit sphere. Vertices, edges and triangles refer to each other by index.
// It is not safe for concurrent use.
type Triangulation struct {
	Vertices  []mgl64.Vec3
	Edges     []Edge
	Triangles []Triangle

	rng          *rand.Rand
	seeds        int
	circles      []circle
	edgeIndex    map[Edge]int
	edgeTriangle []int
}

// New returns an empty triangulation drawing its randomness from rng.
func New(rng *rand.Rand) *Triangulation {
	return &Triangulation{
		rng:       rng,
		edgeIndex: make(map[Edge]int),
	}
}

// Initialize resets the triangulation to a regular tetrahedron inscribed in
// the unit sphere.
func (t *Triangulation) Initialize() {
	t.Vertices = []mgl64.Vec3{
		geometry.Normalize(mgl64.Vec3{1, 1, 1}),
		geometry.Normalize(mgl64.Vec3{1, -1, -1}),
		geometry.Normalize(mgl64.Vec3{-1, 1, -1}),
		geometry.Normalize(mgl64.Vec3{-1, -1, 1}),
	}
	t.seeds = len(t.Vertices)
	t.Edges = nil
	t.Triangles = nil
	t.circles = nil
	t.edgeIndex = make(map[Edge]int)
	t.edgeTriangle = nil

	faces := [4][3]int{
		{0, 1, 2},
		{0, 1, 3},
		{0, 2, 3},
		{1, 2, 3},
	}
	for _, f := range faces {
		a, b, c := f[0], f[1], f[2]
		if !geometry.OutwardFacing(t.Vertices[a], t.Vertices[b], t.Vertices[c]) {
			b, c = c, b
		}
		t.addTriangle(a, b, c)
	}
	t.reindex()
}

// InitializeFacing seeds the tetrahedron rotated so that one of its vertices
// is antipodal to direction, keeping the seeds away from the region around
// it.
func (t *Triangulation) InitializeFacing(direction mgl64.Vec3) {
	t.Initialize()

	rotation := geometry.PoseBetween(t.Vertices[0], direction.Mul(-1))
	for i, v := range t.Vertices {
		t.Vertices[i] = geometry.Normalize(rotation.Rotate(v))
	}
	t.refreshCircles()
}

// InitializeWithPoints seeds the tetrahedron, moves its seed vertices onto
// the nearest input points and inserts the remaining ones.
//
// Seeds are matched greedily, pair by closest pair. When the matched points
// do not enclose the sphere center an error of type ErrTypeDegenerateSeed is
// returned and the triangulation is left seeded but unusable.
func (t *Triangulation) InitializeWithPoints(points []mgl64.Vec3) error {
	if len(points) < 4 {
		panic(errors.New("seeding requires at least 4 points").
			WithType(ErrTypeNotEnoughPoints).
			WithTag("count", len(points)))
	}

	t.Initialize()

	used := make([]bool, len(points))
	var matched [4]bool

	for round := 0; round < 4; round++ {
		seed, point := -1, -1
		best := math.Inf(1)

		for s := range matched {
			if matched[s] {
				continue
			}
			for i, p := range points {
				if used[i] {
					continue
				}
				if d := geometry.AngularDistance(t.Vertices[s], p, 1); d < best {
					seed, point, best = s, i, d
				}
			}
		}

		t.Vertices[seed] = geometry.Normalize(points[point])
		matched[seed] = true
		used[point] = true
	}

	for _, tri := range t.Triangles {
		v := t.TriangleVertices(tri)
		if orient(t.Vertices[v[0]], t.Vertices[v[1]], t.Vertices[v[2]]) <= windingEpsilon {
			return errors.New("seed tetrahedron does not enclose the sphere center").
				WithType(ErrTypeDegenerateSeed).
				WithTag("points", len(points))
		}
	}

	t.seeds = 0
	t.refreshCircles()

	for i, p := range points {
		if !used[i] {
			t.Insert(p)
		}
	}
	return nil
}

// InsertRandom inserts a uniformly distributed random point.
func (t *Triangulation) InsertRandom() int {
	return t.Insert(geometry.RandomPoint(t.rng))
}

// Insert adds p to the triangulation and restores the Delaunay property. It
// returns the index of the new vertex, or of the existing vertex p
// coincides with.
func (t *Triangulation) Insert(p mgl64.Vec3) int {
	if len(t.Triangles) == 0 {
		t.Initialize()
	}

	p = geometry.Normalize(p)
	if v := t.NearestVertex(p); p.Sub(t.Vertices[v]).Len() < duplicateEpsilon {
		return v
	}
	container := t.locate(&p)

	bad, boundary := t.cavity(container, p)

	vertex := len(t.Vertices)
	t.Vertices = append(t.Vertices, p)

	badTriangles := make(map[int]bool, len(bad))
	for _, i := range bad {
		badTriangles[i] = true
	}

	// Edges whose complement is also inside the cavity are removed with it.
	badEdges := make(map[int]bool)
	for _, i := range bad {
		for _, e := range t.Triangles[i].Edges {
			if !t.isBoundary(e, badTriangles) {
				badEdges[e] = true
			}
		}
	}

	for _, e := range boundary {
		edge := t.Edges[e]
		a, b := t.Vertices[edge.From], t.Vertices[edge.To]
		if orient(a, b, p) < -windingEpsilon {
			panic(errors.New("new triangle winds inward").
				WithType(ErrTypeCorruptTopology).
				WithTag("from", edge.From).
				WithTag("to", edge.To).
				WithTag("vertex", vertex))
		}
		t.addTriangle(edge.From, edge.To, vertex)
	}

	t.compact(badTriangles, badEdges)
	t.validateTriangles()
	return vertex
}

// locate returns the triangle containing p. When floating point edge cases
// leave p outside every triangle, p is nudged toward the centroid of a
// random triangle and the search retried.
func (t *Triangulation) locate(p *mgl64.Vec3) int {
	for attempt := 0; attempt < maxLocateAttempts; attempt++ {
		for i, tri := range t.Triangles {
			if t.triangleContains(tri, *p) {
				return i
			}
		}

		target := t.Triangles[t.rng.Intn(len(t.Triangles))]
		*p = geometry.Lerp(*p, t.centroid(target), nudgeAmount)

		logs.WithTag("attempt", attempt).
			WithTag("point", *p).
			Debug("point location failed, nudging point")
	}

	panic(errors.New("point could not be located in any triangle").
		WithType(ErrTypePointLocation).
		WithTag("point", *p).
		WithTag("attempts", maxLocateAttempts))
}

func (t *Triangulation) triangleContains(tri Triangle, p mgl64.Vec3) bool {
	for _, e := range tri.Edges {
		edge := t.Edges[e]
		if orient(t.Vertices[edge.From], t.Vertices[edge.To], p) < 0 {
			return false
		}
	}
	return true
}

// cavity returns the triangles whose circumcircle contains p, as a
// connected region around container, and the edges bounding it.
//
// The region is shrunk until it can be fanned from p: every boundary edge
// faces p, the boundary is a single loop and no vertex is left inside.
func (t *Triangulation) cavity(container int, p mgl64.Vec3) ([]int, []int) {
	banned := make(map[int]bool)

	for {
		bad := t.floodBad(container, p, banned)
		badSet := make(map[int]bool, len(bad))
		for _, i := range bad {
			badSet[i] = true
		}

		var boundary []int
		for _, i := range bad {
			for _, e := range t.Triangles[i].Edges {
				if t.isBoundary(e, badSet) {
					boundary = append(boundary, e)
				}
			}
		}

		offender := t.cavityOffender(container, p, bad, badSet, boundary)
		if offender < 0 {
			return bad, boundary
		}
		banned[offender] = true
	}
}

// floodBad walks from container across edges into every triangle whose
// circumcircle contains p, in breadth first order.
func (t *Triangulation) floodBad(container int, p mgl64.Vec3, banned map[int]bool) []int {
	bad := []int{container}
	visited := map[int]bool{container: true}

	for i := 0; i < len(bad); i++ {
		for _, e := range t.Triangles[bad[i]].Edges {
			n := t.neighbor(e)
			if n < 0 || visited[n] || banned[n] {
				continue
			}
			visited[n] = true

			c := t.circles[n]
			if geometry.AngularDistance(p, c.center, 1) < c.radius {
				bad = append(bad, n)
			}
		}
	}
	return bad
}

// cavityOffender returns a triangle to drop from the cavity, or -1 when the
// cavity can be fanned from p as is. The containing triangle is never
// dropped.
func (t *Triangulation) cavityOffender(container int, p mgl64.Vec3, bad []int, badSet map[int]bool, boundary []int) int {
	last := func(match func(int) bool) int {
		for i := len(bad) - 1; i > 0; i-- {
			if match(bad[i]) {
				return bad[i]
			}
		}
		return -1
	}

	for _, e := range boundary {
		edge := t.Edges[e]
		if orient(t.Vertices[edge.From], t.Vertices[edge.To], p) > windingEpsilon {
			continue
		}
		if owner := t.edgeTriangle[e]; owner != container {
			return owner
		}
	}

	next := make(map[int]int, len(boundary))
	for _, e := range boundary {
		edge := t.Edges[e]
		if _, ok := next[edge.From]; ok {
			if offender := last(t.touches(edge.From)); offender >= 0 {
				return offender
			}
		}
		next[edge.From] = edge.To
	}

	for _, i := range bad {
		for _, v := range t.TriangleVertices(t.Triangles[i]) {
			if _, ok := next[v]; !ok {
				if offender := last(t.touches(v)); offender >= 0 {
					return offender
				}
			}
		}
	}

	if len(boundary) > 0 {
		start := t.Edges[boundary[0]].From
		steps := 0
		for v := next[start]; v != start && steps <= len(boundary); v = next[v] {
			steps++
		}
		if steps+1 != len(boundary) || len(bad) != len(boundary)-2 {
			return last(func(int) bool { return true })
		}
	}
	return -1
}

func (t *Triangulation) touches(v int) func(int) bool {
	return func(i int) bool {
		for _, u := range t.TriangleVertices(t.Triangles[i]) {
			if u == v {
				return true
			}
		}
		return false
	}
}

// isBoundary reports whether edge e separates a triangle of the set from
// one outside it.
func (t *Triangulation) isBoundary(e int, set map[int]bool) bool {
	n := t.neighbor(e)
	return n < 0 || !set[n]
}

// neighbor returns the triangle across edge e, or -1.
func (t *Triangulation) neighbor(e int) int {
	c, ok := t.edgeIndex[t.Edges[e].complement()]
	if !ok || c >= len(t.edgeTriangle) {
		return -1
	}
	return t.edgeTriangle[c]
}

func (t *Triangulation) addTriangle(a, b, c int) {
	tri := Triangle{Edges: [3]int{
		t.edge(a, b),
		t.edge(b, c),
		t.edge(c, a),
	}}
	t.Triangles = append(t.Triangles, tri)
	t.circles = append(t.circles, t.circumcircle(tri))
}

// edge returns the index of the directed edge from a to b, creating it when
// missing.
func (t *Triangulation) edge(a, b int) int {
	key := Edge{From: a, To: b}
	if i, ok := t.edgeIndex[key]; ok {
		return i
	}
	t.Edges = append(t.Edges, key)
	t.edgeIndex[key] = len(t.Edges) - 1
	return len(t.Edges) - 1
}

// compact drops the given triangles and edges and re-indexes every
// triangle to edge reference.
func (t *Triangulation) compact(badTriangles, badEdges map[int]bool) {
	remap := make([]int, len(t.Edges))
	edges := make([]Edge, 0, len(t.Edges)-len(badEdges))

	for i, e := range t.Edges {
		if badEdges[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(edges)
		edges = append(edges, e)
	}

	triangles := make([]Triangle, 0, len(t.Triangles)-len(badTriangles))
	circles := make([]circle, 0, cap(triangles))

	for i, tri := range t.Triangles {
		if badTriangles[i] {
			continue
		}
		for k, e := range tri.Edges {
			if remap[e] < 0 {
				panic(errors.New("triangle references a deleted edge").
					WithType(ErrTypeCorruptTopology).
					WithTag("triangle", i).
					WithTag("edge", e))
			}
			tri.Edges[k] = remap[e]
		}
		triangles = append(triangles, tri)
		circles = append(circles, t.circles[i])
	}

	t.Edges = edges
	t.Triangles = triangles
	t.circles = circles
	t.reindex()
}

func (t *Triangulation) reindex() {
	t.edgeIndex = make(map[Edge]int, len(t.Edges))
	for i, e := range t.Edges {
		t.edgeIndex[e] = i
	}

	t.edgeTriangle = make([]int, len(t.Edges))
	for i := range t.edgeTriangle {
		t.edgeTriangle[i] = -1
	}
	for i, tri := range t.Triangles {
		for _, e := range tri.Edges {
			t.edgeTriangle[e] = i
		}
	}
}

// validateTriangles panics when a triangle does not chain its edges through
// exactly 3 distinct vertices.
func (t *Triangulation) validateTriangles() {
	for i, tri := range t.Triangles {
		e0, e1, e2 := t.Edges[tri.Edges[0]], t.Edges[tri.Edges[1]], t.Edges[tri.Edges[2]]

		chained := e0.To == e1.From && e1.To == e2.From && e2.To == e0.From
		distinct := e0.From != e1.From && e1.From != e2.From && e2.From != e0.From
		if !chained || !distinct {
			panic(errors.New("triangle does not form a 3-cycle").
				WithType(ErrTypeCorruptTopology).
				WithTag("triangle", i).
				WithTag("edges", []Edge{e0, e1, e2}))
		}
	}
}

func (t *Triangulation) refreshCircles() {
	for i, tri := range t.Triangles {
		t.circles[i] = t.circumcircle(tri)
	}
}

func (t *Triangulation) circumcircle(tri Triangle) circle {
	v := t.TriangleVertices(tri)
	center, radius := geometry.Circumcenter(t.Vertices[v[0]], t.Vertices[v[1]], t.Vertices[v[2]])
	return circle{center: center, radius: radius}
}

func (t *Triangulation) centroid(tri Triangle) mgl64.Vec3 {
	v := t.TriangleVertices(tri)
	return geometry.Normalize(t.Vertices[v[0]].Add(t.Vertices[v[1]]).Add(t.Vertices[v[2]]))
}

// TriangleVertices returns the vertex indices of tri in winding order.
func (t *Triangulation) TriangleVertices(tri Triangle) [3]int {
	return [3]int{
		t.Edges[tri.Edges[0]].From,
		t.Edges[tri.Edges[1]].From,
		t.Edges[tri.Edges[2]].From,
	}
}

// Circumcircle returns the circumcenter and angular circumradius of the
// i-th triangle.
func (t *Triangulation) Circumcircle(i int) (mgl64.Vec3, float64) {
	c := t.circles[i]
	return c.center, c.radius
}

// IsSeed reports whether v is one of the tetrahedron vertices that were not
// replaced by input points.
func (t *Triangulation) IsSeed(v int) bool {
	return v < t.seeds
}

// NumUndirectedEdges returns the number of edges counting both directions
// once.
func (t *Triangulation) NumUndirectedEdges() int {
	return len(t.Edges) / 2
}

// Neighbors returns the targets of the outgoing edges of v.
func (t *Triangulation) Neighbors(v int) []int {
	var neighbors []int
	for _, e := range t.Edges {
		if e.From == v {
			neighbors = append(neighbors, e.To)
		}
	}
	return neighbors
}

// Adjacency returns the outgoing neighbors of every vertex.
func (t *Triangulation) Adjacency() [][]int {
	adjacency := make([][]int, len(t.Vertices))
	for _, e := range t.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}
	return adjacency
}

// NearestVertex returns the index of the vertex closest to p, or -1 when the
// triangulation is empty.
func (t *Triangulation) NearestVertex(p mgl64.Vec3) int {
	nearest := -1
	best := math.Inf(1)
	for i, v := range t.Vertices {
		if d := geometry.AngularDistance(p, v, 1); d < best {
			nearest, best = i, d
		}
	}
	return nearest
}

// NumRealVertices returns the number of vertices referenced by a triangle.
// Only small triangulations are checked for orphaned seed vertices.
func (t *Triangulation) NumRealVertices() int {
	return len(t.RealVertices())
}

// RealVertices returns the indices of vertices referenced by a triangle.
func (t *Triangulation) RealVertices() []int {
	vertices := make([]int, 0, len(t.Vertices))
	if len(t.Vertices) >= smallGraphVertices {
		for i := range t.Vertices {
			vertices = append(vertices, i)
		}
		return vertices
	}

	referenced := make([]bool, len(t.Vertices))
	for _, tri := range t.Triangles {
		for _, v := range t.TriangleVertices(tri) {
			referenced[v] = true
		}
	}
	for i, ok := range referenced {
		if ok {
			vertices = append(vertices, i)
		}
	}
	return vertices
}

// Validate checks the topological invariants of the triangulation: Euler
// counts for a sphere, 3-cycles, and one triangle on each side of every
// edge.
func (t *Triangulation) Validate() error {
	v := t.NumRealVertices()

	if len(t.Triangles) != 2*v-4 {
		return errors.New("triangle count does not match euler characteristic").
			WithType(ErrTypeCorruptTopology).
			WithTag("vertices", v).
			WithTag("triangles", len(t.Triangles))
	}

	if t.NumUndirectedEdges() != 3*v-6 || len(t.Edges)%2 != 0 {
		return errors.New("edge count does not match euler characteristic").
			WithType(ErrTypeCorruptTopology).
			WithTag("vertices", v).
			WithTag("edges", len(t.Edges))
	}

	owners := make([]int, len(t.Edges))
	for _, tri := range t.Triangles {
		for _, e := range tri.Edges {
			owners[e]++
		}
	}

	for i, e := range t.Edges {
		if owners[i] != 1 {
			return errors.New("edge is not owned by exactly one triangle").
				WithType(ErrTypeCorruptTopology).
				WithTag("edge", e).
				WithTag("owners", owners[i])
		}
		if _, ok := t.edgeIndex[e.complement()]; !ok {
			return errors.New("edge has no complement").
				WithType(ErrTypeCorruptTopology).
				WithTag("edge", e)
		}
	}

	for i, tri := range t.Triangles {
		tv := t.TriangleVertices(tri)
		if orient(t.Vertices[tv[0]], t.Vertices[tv[1]], t.Vertices[tv[2]]) < -windingEpsilon {
			return errors.New("triangle winds inward").
				WithType(ErrTypeCorruptTopology).
				WithTag("triangle", i)
		}
	}
	return nil
}

// orient is positive when p lies to the left of the great circle arc from a
// to b, seen from outside the sphere.
func orient(a, b, p mgl64.Vec3) float64 {
	return p.Dot(a.Cross(b))
}
