package geometry

import (
	"math"
	"math/rand"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ErrTypeDegenerateGeometry tags panics raised on zero-length or NaN
	// vectors.
	ErrTypeDegenerateGeometry = "degenerate_geometry"

	// circumTolerance is the maximum spread, in radians, accepted between the
	// three vertex distances of a circumcenter candidate.
	circumTolerance = 1e-4
)

// Pole is the reference point every pose rotates from.
var Pole = mgl64.Vec3{0, 0, 1}

func EqualWithEpsilon(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func InRangeWithEpsilon(value, min, max, epsilon float64) bool {
	return value+epsilon >= min && value-epsilon <= max
}

// Normalize returns v scaled to unit length. A zero-length or NaN vector is
// a programmer error and panics.
func Normalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		panic(errors.New("normalizing a degenerate vector").
			WithType(ErrTypeDegenerateGeometry).
			WithTag("vector", v))
	}
	return v.Mul(1 / l)
}

// IsDegenerate reports whether v cannot be normalized.
func IsDegenerate(v mgl64.Vec3) bool {
	l := v.Len()
	return l < 1e-15 || math.IsNaN(l) || math.IsInf(l, 0)
}

func ClampedAcos(v float64) float64 {
	return math.Acos(mgl64.Clamp(v, -1, 1))
}

// AngularDistance returns the great-circle arc between a and b, multiplied by
// scale.
func AngularDistance(a, b mgl64.Vec3, scale float64) float64 {
	return ClampedAcos(Normalize(a).Dot(Normalize(b))) * scale
}

// Bisector returns the normal of the great circle that perpendicularly
// bisects the arc from a to b. Points closer to a than to b have a positive
// dot product with it.
func Bisector(a, b mgl64.Vec3) mgl64.Vec3 {
	return Normalize(Normalize(a).Sub(Normalize(b)))
}

// Circumcenter returns the center of the circle through a, b and c on the
// unit sphere and its angular radius. The center is on the same side as the
// triangle itself.
//
// The three cross product formulations are equal in exact arithmetic. Each
// is checked against all three vertices and the first consistent one wins;
// when none is within tolerance the candidate with the smallest spread is
// used.
func Circumcenter(a, b, c mgl64.Vec3) (mgl64.Vec3, float64) {
	candidates := [3]mgl64.Vec3{
		b.Sub(a).Cross(c.Sub(a)),
		c.Sub(b).Cross(a.Sub(b)),
		a.Sub(c).Cross(b.Sub(c)),
	}
	side := a.Add(b).Add(c)

	var best mgl64.Vec3
	bestRadius := 0.0
	bestSpread := math.Inf(1)

	for _, n := range candidates {
		if IsDegenerate(n) {
			continue
		}

		center := Normalize(n)
		if center.Dot(side) < 0 {
			center = center.Mul(-1)
		}

		ra := ClampedAcos(center.Dot(a))
		rb := ClampedAcos(center.Dot(b))
		rc := ClampedAcos(center.Dot(c))
		spread := math.Max(ra, math.Max(rb, rc)) - math.Min(ra, math.Min(rb, rc))

		if spread < circumTolerance {
			return center, math.Max(ra, math.Max(rb, rc))
		}
		if spread < bestSpread {
			best = center
			bestRadius = math.Max(ra, math.Max(rb, rc))
			bestSpread = spread
		}
	}

	if math.IsInf(bestSpread, 1) {
		panic(errors.New("circumcenter of a degenerate triangle").
			WithType(ErrTypeDegenerateGeometry).
			WithTag("a", a).
			WithTag("b", b).
			WithTag("c", c))
	}
	return best, bestRadius
}

// OutwardFacing reports whether the triangle a, b, c winds counter-clockwise
// when seen from outside the sphere.
func OutwardFacing(a, b, c mgl64.Vec3) bool {
	return b.Sub(a).Cross(c.Sub(a)).Dot(a.Add(b).Add(c)) > 0
}

// RandomPoint returns a uniformly distributed point on the unit sphere.
func RandomPoint(rng *rand.Rand) mgl64.Vec3 {
	for {
		v := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		if v.Len() > 1e-9 {
			return Normalize(v)
		}
	}
}

// Lerp interpolates between a and b and projects the result back onto the
// sphere.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return Normalize(a.Mul(1 - t).Add(b.Mul(t)))
}
