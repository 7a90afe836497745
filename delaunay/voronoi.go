package delaunay

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
)

// VoronoiGraph returns the dual Voronoi cell of every vertex with at least 3
// outgoing edges. Vertices with fewer are skipped.
func (t *Triangulation) VoronoiGraph() []voronoi.Cell {
	adjacency := t.Adjacency()
	cells := make([]voronoi.Cell, 0, len(t.Vertices))

	for v, neighbors := range adjacency {
		if len(neighbors) < 3 {
			continue
		}
		if cell, ok := t.voronoiCell(v, neighbors); ok {
			cells = append(cells, cell)
		}
	}
	return cells
}

// voronoiCell intersects the bisectors between v and each pair of
// consecutive neighbors.
func (t *Triangulation) voronoiCell(v int, neighbors []int) (voronoi.Cell, bool) {
	center := t.Vertices[v]

	points := make([]mgl64.Vec3, len(neighbors))
	for i, n := range neighbors {
		points[i] = t.Vertices[n]
	}
	voronoi.SortCounterClockwise(center, points)

	corners := make([]mgl64.Vec3, 0, len(points))
	for i, a := range points {
		b := points[(i+1)%len(points)]

		corner := geometry.Bisector(center, a).Cross(geometry.Bisector(center, b))
		if geometry.IsDegenerate(corner) {
			continue
		}
		corner = geometry.Normalize(corner)
		if corner.Dot(center.Add(a).Add(b)) < 0 {
			corner = corner.Mul(-1)
		}
		corners = append(corners, corner)
	}

	cell := voronoi.NewCell(v, center, corners)
	return cell, !cell.IsEmpty()
}

// LloydRelaxation returns every vertex moved to the area-weighted centroid of
// its Voronoi cell. Vertices without a cell keep their position.
func (t *Triangulation) LloydRelaxation() []mgl64.Vec3 {
	points := make([]mgl64.Vec3, len(t.Vertices))
	copy(points, t.Vertices)

	for _, cell := range t.VoronoiGraph() {
		points[cell.Site] = cell.Centroid
	}
	return points
}

// Relax runs n Lloyd relaxation steps, rebuilding the triangulation over the
// relaxed points after each one.
func (t *Triangulation) Relax(n int) error {
	for i := 0; i < n; i++ {
		points := t.LloydRelaxation()
		if err := t.InitializeWithPoints(points); err != nil {
			return errors.New("relaxing triangulation failed").
				WithTag("step", i).
				Wrap(err)
		}
	}
	return nil
}
