package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Targets closer than this to a pose, or to its antipode, have no defined
// great circle.
const towardEpsilon = 1e-12

// Pose is a rotation of the unit sphere away from Pole. Positions,
// orientations and their per-tick velocities are all poses.
type Pose struct {
	Q mgl64.Quat
}

func IdentityPose() Pose {
	return Pose{Q: mgl64.QuatIdent()}
}

func PoseFromAxisAngle(angle float64, axis mgl64.Vec3) Pose {
	return Pose{Q: mgl64.QuatRotate(angle, Normalize(axis))}
}

// PoseBetween returns the shortest rotation that takes a onto b.
func PoseBetween(a, b mgl64.Vec3) Pose {
	a = Normalize(a)
	b = Normalize(b)

	// mgl64 snaps nearly antipodal inputs to a half turn, so those go through
	// a perpendicular waypoint.
	if a.Dot(b) < -0.9 {
		m := b.Sub(a.Mul(a.Dot(b)))
		if IsDegenerate(m) {
			m = mgl64.Vec3{1, 0, 0}.Cross(a)
			if IsDegenerate(m) {
				m = mgl64.Vec3{0, 1, 0}.Cross(a)
			}
		}
		m = Normalize(m)
		return Pose{Q: mgl64.QuatBetweenVectors(m, b)}.Mul(Pose{Q: mgl64.QuatBetweenVectors(a, m)})
	}
	return Pose{Q: mgl64.QuatBetweenVectors(a, b)}
}

// PoseFromPoint returns the pose whose Position is p.
func PoseFromPoint(p mgl64.Vec3) Pose {
	return PoseBetween(Pole, p)
}

// PoseFromOffset maps a flat offset (x, y), in world units, from the pole's
// tangent plane onto the sphere of the given scale.
func PoseFromOffset(x, y, scale float64) Pose {
	r := math.Hypot(x, y)
	if r == 0 {
		return IdentityPose()
	}
	return PoseFromAxisAngle(r/scale, mgl64.Vec3{-y, x, 0})
}

// Mul composes p then o, o being expressed in p's local frame.
func (p Pose) Mul(o Pose) Pose {
	return Pose{Q: p.Q.Mul(o.Q)}
}

func (p Pose) Inverse() Pose {
	return Pose{Q: p.Q.Inverse()}
}

// RelativeTo expresses p in o's local frame.
func (p Pose) RelativeTo(o Pose) Pose {
	return o.Inverse().Mul(p)
}

func (p Pose) Rotate(v mgl64.Vec3) mgl64.Vec3 {
	return p.Q.Rotate(v)
}

// Position is the point on the unit sphere the pose moves Pole to.
func (p Pose) Position() mgl64.Vec3 {
	return p.Q.Rotate(Pole)
}

// Angle returns the rotation angle encoded by the pose, multiplied by scale.
func (p Pose) Angle(scale float64) float64 {
	return ClampedAcos(p.Q.W) * 2 * scale
}

func (p Pose) Normalize() Pose {
	return Pose{Q: p.Q.Normalize()}
}

func (p Pose) Slerp(o Pose, amount float64) Pose {
	return Pose{Q: mgl64.QuatSlerp(p.Q, o.Q, amount)}
}

func (p Pose) EqualWithEpsilon(o Pose, epsilon float64) bool {
	return p.Q.ApproxEqualThreshold(o.Q, epsilon)
}

// Toward returns the local velocity that moves p by angle toward target,
// along the great circle joining them. It is the identity when p is already
// at target.
func (p Pose) Toward(target mgl64.Vec3, angle float64) Pose {
	local := p.Inverse().Rotate(target)

	axis := Pole.Cross(local)
	if axis.Len() < towardEpsilon {
		if local.Z() > 0 {
			return IdentityPose()
		}
		axis = mgl64.Vec3{1, 0, 0}
	}
	return PoseFromAxisAngle(angle, axis)
}
