package voronoi

import (
	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

const clipEpsilon = 1e-12

// Clip returns the part of the subject polygon that lies inside the clipper
// cell. Subject and clipper must both be convex.
func Clip(subject []mgl64.Vec3, clipper Cell) []mgl64.Vec3 {
	if clipper.IsWholeSphere() {
		return append([]mgl64.Vec3(nil), subject...)
	}
	if clipper.IsEmpty() {
		return nil
	}
	return ClipHalfSpaces(subject, clipper.EdgeNormals())
}

// ClipHalfSpaces clips a convex polygon against the hemispheres
// {p : p·n >= 0} of each normal, one great circle at a time.
func ClipHalfSpaces(subject []mgl64.Vec3, normals []mgl64.Vec3) []mgl64.Vec3 {
	output := append([]mgl64.Vec3(nil), subject...)

	for _, n := range normals {
		if len(output) < 3 {
			return nil
		}

		input := output
		output = make([]mgl64.Vec3, 0, len(input)+1)

		prev := input[len(input)-1]
		prevIn := prev.Dot(n) >= -clipEpsilon

		for _, cur := range input {
			curIn := cur.Dot(n) >= -clipEpsilon

			switch {
			case curIn && prevIn:
				output = append(output, cur)
			case curIn:
				output = append(output, intersect(prev, cur, n), cur)
			case prevIn:
				output = append(output, intersect(prev, cur, n))
			}

			prev, prevIn = cur, curIn
		}
		output = dedup(output)
	}

	if len(output) < 3 {
		return nil
	}
	return output
}

// ClipCell clips subject against clipper and rebuilds it as a cell keeping
// the subject's site and generator.
func ClipCell(subject Cell, clipper Cell) Cell {
	return NewCell(subject.Site, subject.Generator, Clip(subject.Vertices, clipper))
}

// intersect returns where the arc from s to e crosses the great circle of
// normal n. s and e lie on opposite sides of it.
func intersect(s, e, n mgl64.Vec3) mgl64.Vec3 {
	ds := s.Dot(n)
	de := e.Dot(n)

	// The chord point lies on the plane through the origin, so its projection
	// lies on the great circle too.
	t := ds / (ds - de)
	p := s.Add(e.Sub(s).Mul(t))
	if geometry.IsDegenerate(p) {
		return s
	}
	return geometry.Normalize(p)
}
