package collision

import (
	"math"

	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// Maximum excess, in radians, tolerated when checking that an intercept lies
// on the projectile trajectory.
const trajectoryTolerance = 1e-9

// Body is a moving object on the sphere. Velocity is the pose change applied
// in the body's local frame each tick.
type Body struct {
	Position geometry.Pose
	Velocity geometry.Pose

	// Collision radius in world units.
	Radius float64

	// Hull vertices in the body's local frame, as returned by PhysicsHull.
	Hull []geometry.Pose
}

// Hit is the result of a collision test.
type Hit struct {
	Success bool

	// Point of impact in world space.
	Point mgl64.Vec3

	// Distance travelled by the projectile before impact, in world units.
	Distance float64

	// Fraction of the tick at which the impact happens, in [0, 1).
	Time float64
}

// PhysicsHull maps a flat hull polygon, in world units around the origin,
// onto the sphere around Pole. It returns one pose per hull point.
func PhysicsHull(points []mgl64.Vec2, scale float64) []geometry.Pose {
	hull := make([]geometry.Pose, len(points))
	for i, p := range points {
		hull[i] = geometry.PoseFromOffset(p.X(), p.Y(), scale)
	}
	return hull
}

// RegularPolygon returns a flat polygon with the given number of sides and
// circumradius, counter-clockwise, with its first point on the +Y axis.
func RegularPolygon(sides int, radius float64) []mgl64.Vec2 {
	points := make([]mgl64.Vec2, sides)
	for i := range points {
		angle := math.Pi/2 + float64(i)*2*math.Pi/float64(sides)
		points[i] = mgl64.Vec2{radius * math.Cos(angle), radius * math.Sin(angle)}
	}
	return points
}

// ComputeIntercept returns the intersection of the great circles through a,
// b and through c, d. Of the two antipodal solutions, the one on the side of
// the arcs is returned. It returns false when either arc is degenerate or
// both lie on the same great circle.
func ComputeIntercept(a, b, c, d mgl64.Vec3) (mgl64.Vec3, bool) {
	n1 := a.Cross(b)
	n2 := c.Cross(d)
	if geometry.IsDegenerate(n1) || geometry.IsDegenerate(n2) {
		return mgl64.Vec3{}, false
	}

	i := n1.Cross(n2)
	if geometry.IsDegenerate(i) {
		return mgl64.Vec3{}, false
	}

	i = geometry.Normalize(i)
	if i.Dot(a.Add(b).Add(c).Add(d)) < 0 {
		i = i.Mul(-1)
	}
	return i, true
}

// CannonBallCollision tests the trajectory of projectile during one tick
// against every edge of the target hull and returns the earliest hit.
func CannonBallCollision(projectile, target Body, scale float64) Hit {
	if len(target.Hull) < 2 {
		return Hit{}
	}

	// Both ends of the trajectory are expressed in the target frame at the
	// same instant.
	targetEnd := target.Position.Mul(target.Velocity)
	projectileEnd := projectile.Position.Mul(projectile.Velocity)

	start := projectile.Position.RelativeTo(target.Position).Position()
	end := projectileEnd.RelativeTo(targetEnd).Position()

	travel := arc(start, end)
	if travel < trajectoryTolerance {
		return Hit{}
	}

	edgeTolerance := projectile.Radius / scale

	var hit Hit
	for i, h := range target.Hull {
		c := h.Position()
		d := target.Hull[(i+1)%len(target.Hull)].Position()

		point, ok := ComputeIntercept(start, end, c, d)
		if !ok {
			continue
		}

		if arc(c, point)+arc(point, d) > arc(c, d)+edgeTolerance {
			continue
		}
		if arc(start, point)+arc(point, end) > travel+trajectoryTolerance {
			continue
		}

		time := arc(start, point) / travel
		if time < 0 || time >= 1 {
			continue
		}
		if hit.Success && time >= hit.Time {
			continue
		}

		frame := target.Position.Slerp(targetEnd, time)
		hit = Hit{
			Success:  true,
			Point:    frame.Rotate(point),
			Distance: arc(start, point) * scale,
			Time:     time,
		}
	}
	return hit
}

// arc is the angle between unit vectors a and b, accurate for small angles.
func arc(a, b mgl64.Vec3) float64 {
	return math.Atan2(a.Cross(b).Len(), a.Dot(b))
}
