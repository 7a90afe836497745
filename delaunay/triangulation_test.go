package delaunay

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func requireDelaunay(t *testing.T, tr *Triangulation) {
	for i, tri := range tr.Triangles {
		center, radius := tr.Circumcircle(i)
		own := tr.TriangleVertices(tri)

		for v, p := range tr.Vertices {
			if v == own[0] || v == own[1] || v == own[2] {
				continue
			}
			require.GreaterOrEqual(t, geometry.AngularDistance(center, p, 1), radius-1e-9,
				"vertex %d inside circumcircle of triangle %d", v, i)
		}
	}
}

func TestInitialize(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.Initialize()

	require.Len(t, tr.Vertices, 4)
	require.Len(t, tr.Edges, 12)
	require.Len(t, tr.Triangles, 4)
	require.Equal(t, 6, tr.NumUndirectedEdges())
	require.NoError(t, tr.Validate())
	require.Equal(t, 4, tr.NumRealVertices())

	for _, v := range tr.Vertices {
		require.InDelta(t, 1, v.Len(), 1e-12)
	}
	for v := range tr.Vertices {
		require.True(t, tr.IsSeed(v))
		require.Len(t, tr.Neighbors(v), 3)
	}
	requireDelaunay(t, tr)
}

func TestInsert(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := New(rng)
	tr.Initialize()

	for i := 0; i < 200; i++ {
		v := tr.InsertRandom()
		require.Equal(t, len(tr.Vertices)-1, v)

		n := len(tr.Vertices)
		require.Len(t, tr.Triangles, 2*n-4)
		require.Equal(t, 3*n-6, tr.NumUndirectedEdges())
		require.Len(t, tr.Edges, 2*(3*n-6))
		require.NoError(t, tr.Validate())

		if i%20 == 0 {
			requireDelaunay(t, tr)
		}
	}
	requireDelaunay(t, tr)
}

func TestInsertWithoutInitialize(t *testing.T) {
	tr := New(rand.New(rand.NewSource(3)))
	tr.Insert(mgl64.Vec3{0, 0, 1})

	require.Len(t, tr.Vertices, 5)
	require.NoError(t, tr.Validate())
}

func TestInsertDuplicate(t *testing.T) {
	tr := New(rand.New(rand.NewSource(3)))
	tr.Initialize()

	p := geometry.Normalize(mgl64.Vec3{0.3, -0.2, 0.9})
	v := tr.Insert(p)
	require.Equal(t, v, tr.Insert(p))
	require.Len(t, tr.Vertices, 5)
	require.NoError(t, tr.Validate())
}

func TestInsertClusteredPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	tr := New(rng)
	tr.InitializeFacing(geometry.Pole)

	for i := 0; i < 60; i++ {
		offset := geometry.PoseFromOffset(rng.Float64()*2-1, rng.Float64()*2-1, 10)
		tr.Insert(offset.Position())
		require.NoError(t, tr.Validate())
	}
	requireDelaunay(t, tr)
}

func TestInitializeFacing(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	direction := geometry.Normalize(mgl64.Vec3{0.2, 0.5, -0.3})
	tr.InitializeFacing(direction)

	require.True(t, tr.Vertices[0].ApproxEqualThreshold(direction.Mul(-1), 1e-9))
	require.NoError(t, tr.Validate())

	for _, v := range tr.Vertices {
		require.Greater(t, geometry.AngularDistance(v, direction, 1), math.Pi/3)
	}
	requireDelaunay(t, tr)
}

func TestInitializeWithPoints(t *testing.T) {
	t.Run("seeds move onto points", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		points := make([]mgl64.Vec3, 30)
		for i := range points {
			points[i] = geometry.RandomPoint(rng)
		}

		tr := New(rng)
		require.NoError(t, tr.InitializeWithPoints(points))
		require.Len(t, tr.Vertices, len(points))
		require.NoError(t, tr.Validate())
		require.False(t, tr.IsSeed(0))
		requireDelaunay(t, tr)

		for _, p := range points {
			v := tr.NearestVertex(p)
			require.Less(t, p.Sub(tr.Vertices[v]).Len(), 1e-9)
		}
	})

	t.Run("points in one hemisphere", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		points := make([]mgl64.Vec3, 10)
		for i := range points {
			points[i] = geometry.PoseFromOffset(rng.Float64(), rng.Float64(), 10).Position()
		}

		tr := New(rng)
		err := tr.InitializeWithPoints(points)
		require.Error(t, err)
		require.Equal(t, ErrTypeDegenerateSeed, errors.Type(err))
	})

	t.Run("fewer than 4 points", func(t *testing.T) {
		tr := New(rand.New(rand.NewSource(5)))
		require.Panics(t, func() {
			tr.InitializeWithPoints([]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
		})
	})
}

func TestNearestVertex(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	require.Equal(t, -1, tr.NearestVertex(geometry.Pole))

	tr.Initialize()
	require.Equal(t, 0, tr.NearestVertex(mgl64.Vec3{1, 1, 0.9}))
	require.Equal(t, 3, tr.NearestVertex(mgl64.Vec3{-1, -1, 1.1}))
}

func TestAdjacency(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	tr := New(rng)
	tr.Initialize()
	for i := 0; i < 20; i++ {
		tr.InsertRandom()
	}

	adjacency := tr.Adjacency()
	require.Len(t, adjacency, len(tr.Vertices))

	total := 0
	for v, neighbors := range adjacency {
		require.ElementsMatch(t, tr.Neighbors(v), neighbors)
		total += len(neighbors)
	}
	require.Equal(t, len(tr.Edges), total)
}
