package voronoi

import (
	"math"
	"sort"

	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/s2"
)

const (
	// radiusPadding keeps the bounding radius an upper bound despite rounding
	// in the distance computations.
	radiusPadding = 1e-9

	containsEpsilon = 1e-12
	dedupEpsilon    = 1e-12
)

// Cell is a convex polygon on the unit sphere, usually the Voronoi region of
// a generating point, possibly clipped against a parent region.
type Cell struct {
	// Index of the generating vertex in its triangulation, -1 when the cell
	// has none.
	Site      int
	Generator mgl64.Vec3

	// Boundary points, counter-clockwise when seen from outside the sphere.
	Vertices []mgl64.Vec3

	Centroid mgl64.Vec3

	// Conservative bounding radius: never smaller than the angular distance
	// from Centroid to any vertex.
	Radius float64
}

// WholeSphere returns the boundless cell covering the entire sphere.
func WholeSphere() Cell {
	return Cell{
		Site:      -1,
		Generator: geometry.Pole,
		Centroid:  geometry.Pole,
		Radius:    math.Pi,
	}
}

// NewCell builds a cell from an unordered set of boundary points.
func NewCell(site int, generator mgl64.Vec3, vertices []mgl64.Vec3) Cell {
	c := Cell{
		Site:      site,
		Generator: generator,
		Centroid:  generator,
	}

	vertices = dedup(vertices)
	if len(vertices) < 3 {
		return c
	}

	center := meanPoint(vertices)
	SortCounterClockwise(center, vertices)
	c.Vertices = vertices
	c.Centroid = AreaCentroid(center, vertices)

	for _, v := range vertices {
		c.Radius = math.Max(c.Radius, geometry.AngularDistance(c.Centroid, v, 1))
	}
	c.Radius += radiusPadding
	return c
}

// IsWholeSphere reports whether the cell has no boundary and covers the
// sphere.
func (c Cell) IsWholeSphere() bool {
	return len(c.Vertices) == 0 && c.Radius >= math.Pi
}

// IsEmpty reports whether the cell encloses no area.
func (c Cell) IsEmpty() bool {
	return len(c.Vertices) < 3 && !c.IsWholeSphere()
}

func (c Cell) ContainsPoint(p mgl64.Vec3) bool {
	if c.IsWholeSphere() {
		return true
	}
	if c.IsEmpty() {
		return false
	}

	p = geometry.Normalize(p)
	if p.Dot(c.Centroid) <= 0 {
		return false
	}

	for _, n := range c.EdgeNormals() {
		if p.Dot(n) < -containsEpsilon {
			return false
		}
	}
	return true
}

// EdgeNormals returns, for each boundary edge, the normal of its great circle
// oriented toward the inside of the cell.
func (c Cell) EdgeNormals() []mgl64.Vec3 {
	normals := make([]mgl64.Vec3, 0, len(c.Vertices))
	for i, v := range c.Vertices {
		n := v.Cross(c.Vertices[(i+1)%len(c.Vertices)])
		if geometry.IsDegenerate(n) {
			continue
		}
		normals = append(normals, geometry.Normalize(n))
	}
	return normals
}

func (c Cell) Area() float64 {
	if c.IsWholeSphere() {
		return 4 * math.Pi
	}
	if c.IsEmpty() {
		return 0
	}

	var area float64
	for i, v := range c.Vertices {
		area += geometry.SphericalTriangleArea(c.Centroid, v, c.Vertices[(i+1)%len(c.Vertices)])
	}
	return area
}

// Cap returns the bounding cap of the cell.
func (c Cell) Cap() s2.Cap {
	if c.IsWholeSphere() {
		return s2.FullCap()
	}
	return geometry.Cap(c.Centroid, c.Radius)
}

// Overlaps reports whether the bounding cap of the cell reaches within
// radius of p. Radii are in radians.
func (c Cell) Overlaps(p mgl64.Vec3, radius float64) bool {
	if c.IsWholeSphere() {
		return true
	}
	return geometry.AngularDistance(c.Centroid, p, 1) <= c.Radius+radius
}

// AreaCentroid returns the area-weighted centroid of the polygon, computed
// over the triangle fan rooted at center.
func AreaCentroid(center mgl64.Vec3, vertices []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for i, v := range vertices {
		next := vertices[(i+1)%len(vertices)]
		area := geometry.SphericalTriangleArea(center, v, next)
		sum = sum.Add(center.Add(v).Add(next).Mul(area))
	}

	if geometry.IsDegenerate(sum) {
		return geometry.Normalize(center)
	}
	return geometry.Normalize(sum)
}

// SortCounterClockwise orders points by azimuth around center, as seen from
// outside the sphere.
func SortCounterClockwise(center mgl64.Vec3, points []mgl64.Vec3) {
	center = geometry.Normalize(center)
	u, w := tangentBasis(center)

	sort.SliceStable(points, func(i, j int) bool {
		return azimuth(points[i], u, w) < azimuth(points[j], u, w)
	})
}

func tangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	ref := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.X()) > 0.9 {
		ref = mgl64.Vec3{0, 1, 0}
	}
	u := geometry.Normalize(ref.Sub(n.Mul(n.Dot(ref))))
	return u, n.Cross(u)
}

func azimuth(p, u, w mgl64.Vec3) float64 {
	return math.Atan2(p.Dot(w), p.Dot(u))
}

func meanPoint(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return geometry.Normalize(sum)
}

func dedup(points []mgl64.Vec3) []mgl64.Vec3 {
	result := make([]mgl64.Vec3, 0, len(points))
	for _, p := range points {
		duplicate := false
		for _, q := range result {
			if p.Sub(q).Len() < dedupEpsilon {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, p)
		}
	}
	return result
}
