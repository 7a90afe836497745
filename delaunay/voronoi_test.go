package delaunay

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/stretchr/testify/require"
)

func randomTriangulation(seed int64, points int) *Triangulation {
	tr := New(rand.New(rand.NewSource(seed)))
	tr.Initialize()
	for i := 0; i < points; i++ {
		tr.InsertRandom()
	}
	return tr
}

func TestVoronoiGraph(t *testing.T) {
	t.Run("tetrahedron", func(t *testing.T) {
		tr := New(rand.New(rand.NewSource(1)))
		tr.Initialize()

		cells := tr.VoronoiGraph()
		require.Len(t, cells, 4)
		for _, c := range cells {
			require.Len(t, c.Vertices, 3)
			require.InDelta(t, math.Pi, c.Area(), 1e-9)
			require.True(t, c.Centroid.ApproxEqualThreshold(tr.Vertices[c.Site], 1e-9))
		}
	})

	t.Run("cells tile the sphere", func(t *testing.T) {
		tr := randomTriangulation(21, 100)
		cells := tr.VoronoiGraph()
		require.Len(t, cells, len(tr.Vertices))

		var area float64
		for _, c := range cells {
			area += c.Area()
		}
		require.InDelta(t, 4*math.Pi, area, 1e-6)
	})

	t.Run("cells contain their own centroid only", func(t *testing.T) {
		tr := randomTriangulation(22, 60)
		cells := tr.VoronoiGraph()

		for _, c := range cells {
			require.True(t, c.ContainsPoint(c.Centroid))
			require.True(t, c.ContainsPoint(c.Generator))

			for _, other := range cells {
				if other.Site == c.Site {
					continue
				}
				if geometry.AngularDistance(c.Centroid, other.Centroid, 1) > c.Radius+other.Radius {
					require.False(t, c.ContainsPoint(other.Centroid))
				}
			}
		}
	})

	t.Run("points belong to their nearest generator", func(t *testing.T) {
		rng := rand.New(rand.NewSource(23))
		tr := randomTriangulation(23, 50)
		cells := tr.VoronoiGraph()

		for i := 0; i < 200; i++ {
			p := geometry.RandomPoint(rng)
			nearest := tr.NearestVertex(p)

			for _, c := range cells {
				if c.Site == nearest {
					require.True(t, c.ContainsPoint(p))
				}
			}
		}
	})

	t.Run("radius bounds every corner", func(t *testing.T) {
		for _, c := range randomTriangulation(24, 40).VoronoiGraph() {
			for _, v := range c.Vertices {
				require.LessOrEqual(t, geometry.AngularDistance(c.Centroid, v, 1), c.Radius)
			}
		}
	})
}

func nearestCentroidVariance(cells []voronoi.Cell) float64 {
	distances := make([]float64, len(cells))
	for i, c := range cells {
		distances[i] = math.Inf(1)
		for j, o := range cells {
			if i != j {
				distances[i] = math.Min(distances[i], geometry.AngularDistance(c.Centroid, o.Centroid, 1))
			}
		}
	}

	var mean float64
	for _, d := range distances {
		mean += d
	}
	mean /= float64(len(distances))

	var variance float64
	for _, d := range distances {
		variance += (d - mean) * (d - mean)
	}
	return variance / float64(len(distances))
}

func TestLloydRelaxation(t *testing.T) {
	tr := randomTriangulation(31, 20)
	points := tr.LloydRelaxation()
	require.Len(t, points, len(tr.Vertices))

	for _, c := range tr.VoronoiGraph() {
		require.True(t, points[c.Site].ApproxEqualThreshold(c.Centroid, 1e-12))
		require.InDelta(t, 1, points[c.Site].Len(), 1e-9)
	}
}

func TestRelax(t *testing.T) {
	tr := randomTriangulation(32, 20)
	initial := nearestCentroidVariance(tr.VoronoiGraph())
	previous := initial

	for step := 0; step < 10; step++ {
		require.NoError(t, tr.Relax(1))
		require.Len(t, tr.Vertices, 24)
		require.NoError(t, tr.Validate())

		variance := nearestCentroidVariance(tr.VoronoiGraph())
		require.LessOrEqual(t, variance, previous+initial*0.1, "step %d", step)
		previous = variance
	}
	require.LessOrEqual(t, previous, initial)
}

func TestRelaxKeepsPointsOnSphere(t *testing.T) {
	tr := randomTriangulation(33, 40)
	require.NoError(t, tr.Relax(3))

	for _, v := range tr.Vertices {
		require.InDelta(t, 1, v.Len(), 1e-9)
	}
}
