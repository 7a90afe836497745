package models

import (
	"sync"

	"github.com/aukilabs/orrery/collision"
	"github.com/aukilabs/orrery/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// EntityKind tells what an entity is and which modules handle it.
type EntityKind int

const (
	KindShip EntityKind = iota + 1
	KindProjectile
	KindLandmark
)

func (k EntityKind) String() string {
	switch k {
	case KindShip:
		return "ship"
	case KindProjectile:
		return "projectile"
	case KindLandmark:
		return "landmark"
	default:
		return "unknown"
	}
}

type Entity struct {
	ID      uint32
	Kind    EntityKind
	FleetID uint32

	// Landmark tier, such as kingdom or county.
	Label string

	// Collision radius in world units.
	Radius float64

	// Hull vertices in the entity local frame.
	Hull []geometry.Pose

	// Cruise speed in world units per tick.
	Speed float64

	mutex       sync.RWMutex
	pose        geometry.Pose
	velocity    geometry.Pose
	destination uint32
	ttl         int
}

// NewEntity returns an entity at the pole, at rest.
func NewEntity(id uint32, kind EntityKind) *Entity {
	return &Entity{
		ID:       id,
		Kind:     kind,
		pose:     geometry.IdentityPose(),
		velocity: geometry.IdentityPose(),
	}
}

func (e *Entity) SetPose(v geometry.Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = v
}

func (e *Entity) Pose() geometry.Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose
}

// SetVelocity sets the pose change applied to the entity every tick, in its
// local frame.
func (e *Entity) SetVelocity(v geometry.Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.velocity = v
}

func (e *Entity) Velocity() geometry.Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.velocity
}

// Position returns the point of the unit sphere the entity is at.
func (e *Entity) Position() mgl64.Vec3 {
	return e.Pose().Position()
}

// Advance applies one tick of velocity to the pose.
func (e *Entity) Advance() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = e.pose.Mul(e.velocity).Normalize()
}

// SetDestination sets the landmark the entity travels to. Zero means none.
func (e *Entity) SetDestination(landmarkID uint32) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.destination = landmarkID
}

func (e *Entity) Destination() uint32 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.destination
}

// SetTTL sets the number of ticks the entity has left to live.
func (e *Entity) SetTTL(ticks int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.ttl = ticks
}

// DecreaseTTL counts down one tick and reports whether the entity expired.
func (e *Entity) DecreaseTTL() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.ttl--
	return e.ttl <= 0
}

// BoundingRadius returns the angular radius, on the unit sphere, of a cap
// centered on the entity that holds its hull and collision radius.
func (e *Entity) BoundingRadius(scale float64) float64 {
	var radius float64
	for _, h := range e.Hull {
		radius = max(radius, h.Angle(1))
	}
	return radius + e.Radius/scale
}

// Body returns the entity as seen by collision tests.
func (e *Entity) Body() collision.Body {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return collision.Body{
		Position: e.pose,
		Velocity: e.velocity,
		Radius:   e.Radius,
		Hull:     e.Hull,
	}
}

func (e *Entity) ItemID() uint32 {
	return e.ID
}

func (e *Entity) ItemPosition() mgl64.Vec3 {
	return e.Position()
}
