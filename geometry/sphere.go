package geometry

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

func ToS2(v mgl64.Vec3) s2.Point {
	return s2.Point{Vector: r3.Vector{X: v[0], Y: v[1], Z: v[2]}}
}

func FromS2(p s2.Point) mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

// SphericalTriangleArea returns the area of the spherical triangle a, b, c on
// the unit sphere, in steradians.
func SphericalTriangleArea(a, b, c mgl64.Vec3) float64 {
	return s2.PointArea(ToS2(Normalize(a)), ToS2(Normalize(b)), ToS2(Normalize(c)))
}

// Cap returns the spherical cap centered on center with the given angular
// radius.
func Cap(center mgl64.Vec3, radius float64) s2.Cap {
	return s2.CapFromCenterAngle(ToS2(Normalize(center)), s1.Angle(radius))
}
