package spatial

import (
	"math/rand"

	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
)

// Scatter returns n points inside cell. A triangle of the fan around the
// cell centroid is picked with probability proportional to its area, then a
// point is sampled inside it by folding the unit square onto the triangle.
func Scatter(rng *rand.Rand, cell voronoi.Cell, n int) []mgl64.Vec3 {
	points := make([]mgl64.Vec3, 0, n)

	if cell.IsWholeSphere() {
		for i := 0; i < n; i++ {
			points = append(points, geometry.RandomPoint(rng))
		}
		return points
	}

	if cell.IsEmpty() {
		for i := 0; i < n; i++ {
			points = append(points, cell.Centroid)
		}
		return points
	}

	vertices := cell.Vertices
	weights := make([]float64, len(vertices))
	var total float64
	for i, v := range vertices {
		total += geometry.SphericalTriangleArea(cell.Centroid, v, vertices[(i+1)%len(vertices)])
		weights[i] = total
	}

	for i := 0; i < n; i++ {
		pick := rng.Float64() * total
		k := 0
		for k < len(weights)-1 && weights[k] < pick {
			k++
		}

		u, v := rng.Float64(), rng.Float64()
		if u+v > 1 {
			u, v = 1-u, 1-v
		}

		a := cell.Centroid
		b := vertices[k]
		c := vertices[(k+1)%len(vertices)]
		points = append(points, geometry.Normalize(a.Add(b.Sub(a).Mul(u)).Add(c.Sub(a).Mul(v))))
	}
	return points
}
