package collision

import (
	"math/rand"
	"testing"

	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

const scale = 1000.0

func hexagon(radius float64) []mgl64.Vec2 {
	return RegularPolygon(6, radius)
}

func TestRegularPolygon(t *testing.T) {
	points := RegularPolygon(4, 2)
	require.Len(t, points, 4)
	require.InDelta(t, 0, points[0].X(), 1e-12)
	require.InDelta(t, 2, points[0].Y(), 1e-12)
	require.InDelta(t, -2, points[1].X(), 1e-12)
	require.InDelta(t, 0, points[1].Y(), 1e-12)

	for _, p := range RegularPolygon(7, 3) {
		require.InDelta(t, 3, p.Len(), 1e-12)
	}
}

func TestPhysicsHull(t *testing.T) {
	points := hexagon(10)
	hull := PhysicsHull(points, scale)
	require.Len(t, hull, len(points))

	for i, h := range hull {
		require.InDelta(t, 10, geometry.AngularDistance(geometry.Pole, h.Position(), scale), 1e-9)
		require.InDelta(t, points[i].X(), h.Position().X()*scale, 1e-3)
		require.InDelta(t, points[i].Y(), h.Position().Y()*scale, 1e-3)
	}
}

func TestComputeIntercept(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		a := geometry.RandomPoint(rng)
		b := geometry.RandomPoint(rng)
		c := geometry.RandomPoint(rng)
		d := geometry.RandomPoint(rng)

		point, ok := ComputeIntercept(a, b, c, d)
		require.True(t, ok)
		require.InDelta(t, 1, point.Len(), 1e-12)
		require.InDelta(t, 0, point.Dot(geometry.Normalize(a.Cross(b))), 1e-9)
		require.InDelta(t, 0, point.Dot(geometry.Normalize(c.Cross(d))), 1e-9)
		require.GreaterOrEqual(t, point.Dot(a.Add(b).Add(c).Add(d)), 0.0)
	}

	t.Run("crossing arcs", func(t *testing.T) {
		point, ok := ComputeIntercept(
			geometry.Normalize(mgl64.Vec3{-1, 0, 1}),
			geometry.Normalize(mgl64.Vec3{1, 0, 1}),
			geometry.Normalize(mgl64.Vec3{0, -1, 1}),
			geometry.Normalize(mgl64.Vec3{0, 1, 1}),
		)
		require.True(t, ok)
		require.True(t, point.ApproxEqualThreshold(geometry.Pole, 1e-12))
	})

	t.Run("degenerate arcs", func(t *testing.T) {
		x := mgl64.Vec3{1, 0, 0}
		y := mgl64.Vec3{0, 1, 0}

		_, ok := ComputeIntercept(x, x, x, y)
		require.False(t, ok)

		_, ok = ComputeIntercept(x, y, y, x)
		require.False(t, ok)
	})
}

func TestCannonBallCollision(t *testing.T) {
	target := Body{
		Position: geometry.IdentityPose(),
		Velocity: geometry.IdentityPose(),
		Hull:     PhysicsHull(hexagon(10), scale),
	}

	t.Run("crossing trajectory hits the near edge", func(t *testing.T) {
		projectile := Body{
			Position: geometry.PoseFromOffset(-18.66, 0, scale),
			Velocity: geometry.PoseFromOffset(20, 0, scale),
			Radius:   0.5,
		}

		hit := CannonBallCollision(projectile, target, scale)
		require.True(t, hit.Success)
		require.GreaterOrEqual(t, hit.Time, 0.45)
		require.LessOrEqual(t, hit.Time, 0.55)
		require.InDelta(t, 10, hit.Distance, 0.05)
		require.InDelta(t, -8.66, hit.Point.X()*scale, 0.05)
		require.InDelta(t, 0, hit.Point.Y()*scale, 1e-6)
	})

	t.Run("moving frames", func(t *testing.T) {
		frame := geometry.PoseFromAxisAngle(0.8, mgl64.Vec3{1, 2, 0})
		drift := geometry.PoseFromOffset(0, 3, scale)

		moving := target
		moving.Position = frame
		moving.Velocity = drift

		// The projectile shares the target drift on top of its own motion.
		projectile := Body{
			Position: frame.Mul(geometry.PoseFromOffset(-18.66, 0, scale)),
			Velocity: geometry.PoseFromOffset(-18.66, 0, scale).Inverse().
				Mul(drift).
				Mul(geometry.PoseFromOffset(1.34, 0, scale)),
		}

		hit := CannonBallCollision(projectile, moving, scale)
		require.True(t, hit.Success)
		require.InDelta(t, 0.5, hit.Time, 0.05)
	})

	t.Run("trajectory too short", func(t *testing.T) {
		projectile := Body{
			Position: geometry.PoseFromOffset(-18.66, 0, scale),
			Velocity: geometry.PoseFromOffset(5, 0, scale),
		}
		require.False(t, CannonBallCollision(projectile, target, scale).Success)
	})

	t.Run("passing trajectory misses", func(t *testing.T) {
		projectile := Body{
			Position: geometry.PoseFromOffset(-18.66, 30, scale),
			Velocity: geometry.PoseFromOffset(40, 0, scale),
		}
		require.Equal(t, Hit{}, CannonBallCollision(projectile, target, scale))
	})

	t.Run("no relative motion", func(t *testing.T) {
		projectile := Body{
			Position: geometry.PoseFromOffset(-18.66, 0, scale),
			Velocity: geometry.IdentityPose(),
		}
		require.False(t, CannonBallCollision(projectile, target, scale).Success)
	})

	t.Run("target without hull", func(t *testing.T) {
		projectile := Body{
			Position: geometry.PoseFromOffset(-18.66, 0, scale),
			Velocity: geometry.PoseFromOffset(20, 0, scale),
		}
		require.False(t, CannonBallCollision(projectile, Body{Position: geometry.IdentityPose()}, scale).Success)
	})
}
