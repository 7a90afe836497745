package navigation

import (
	"context"
	"fmt"
	"math"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/collision"
	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/models"
	"github.com/aukilabs/orrery/modules"
	"github.com/aukilabs/orrery/modules/landmarks"
	"github.com/aukilabs/orrery/pathing"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ModuleName = "navigation"

	DefaultShips      = 20
	DefaultFleets     = 2
	DefaultShipSpeed  = 5
	DefaultShipRadius = 1
)

// DefaultHull is a hexagonal hull of radius 10, in world units.
var DefaultHull = collision.RegularPolygon(6, 10)

// Module spawns ships on landmarks and steers them from landmark to
// landmark along the pathing graph.
type Module struct {
	// Number of ships spawned on init.
	Ships int

	// Number of fleets ships are spread into.
	Fleets int

	// Ship cruise speed, in world units per tick.
	ShipSpeed float64

	// Ship collision radius, in world units.
	ShipRadius float64

	// Flat ship hull, in world units around the ship center.
	Hull []mgl64.Vec2

	world     *models.World
	landmarks *landmarks.State
	paths     map[uint32]*pathing.Path
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Init(w *models.World) {
	m.world = w
	m.paths = make(map[uint32]*pathing.Path)
	m.setDefaults()

	state, ok := landmarks.StateFrom(w)
	if !ok {
		return
	}
	m.landmarks = state

	fleets := make([]*models.Fleet, m.Fleets)
	for i := range fleets {
		fleets[i] = w.NewFleet(fmt.Sprintf("fleet_%d", i+1))
	}

	hull := collision.PhysicsHull(m.Hull, w.Scale)
	for i := 0; i < m.Ships; i++ {
		home, ok := w.EntityByID(state.RandomLandmark(w.Rand))
		if !ok {
			return
		}

		ship := w.NewEntity(models.KindShip)
		ship.Speed = m.ShipSpeed
		ship.Radius = m.ShipRadius
		ship.Hull = hull
		ship.SetPose(home.Pose())

		fleets[i%len(fleets)].AddEntity(ship)
		w.AddEntity(ship)
	}

	logs.WithTag("world_id", w.ID).
		WithTag("ships", m.Ships).
		WithTag("fleets", m.Fleets).
		Info("ships spawned")
}

func (m *Module) setDefaults() {
	if m.Ships == 0 {
		m.Ships = DefaultShips
	}
	if m.Fleets < 1 {
		m.Fleets = DefaultFleets
	}
	if m.ShipSpeed == 0 {
		m.ShipSpeed = DefaultShipSpeed
	}
	if m.ShipRadius == 0 {
		m.ShipRadius = DefaultShipRadius
	}
	if len(m.Hull) == 0 {
		m.Hull = DefaultHull
	}
}

// HandleTick sets the velocity of every ship toward its next waypoint. Ships
// without a destination are sent to a random landmark.
func (m *Module) HandleTick(ctx context.Context) error {
	if m.landmarks == nil {
		return modules.MissingState(m.Name(), landmarks.ModuleName)
	}

	ships := m.world.Entities(models.KindShip)

	alive := make(map[uint32]struct{}, len(ships))
	for _, ship := range ships {
		alive[ship.ID] = struct{}{}
		m.steer(ship)
	}

	for id := range m.paths {
		if _, ok := alive[id]; !ok {
			delete(m.paths, id)
		}
	}
	return nil
}

// Path returns the remaining waypoints of a ship.
func (m *Module) Path(shipID uint32) (pathing.Path, bool) {
	path, ok := m.paths[shipID]
	if !ok {
		return pathing.Path{}, false
	}
	return *path, true
}

func (m *Module) steer(ship *models.Entity) {
	speed := ship.Speed / m.world.Scale

	path, ok := m.paths[ship.ID]
	if !ok || ship.Destination() == 0 {
		path = m.newPath(ship, speed)
		if path == nil {
			ship.SetVelocity(geometry.IdentityPose())
			return
		}
		m.paths[ship.ID] = path
	}

	position := ship.Position()
	for {
		target, ok := path.Peek()
		if !ok {
			ship.SetDestination(0)
			ship.SetVelocity(geometry.IdentityPose())
			delete(m.paths, ship.ID)
			return
		}

		distance := geometry.AngularDistance(position, target, 1)
		if distance <= speed/2 {
			path.Pop()
			continue
		}

		ship.SetVelocity(ship.Pose().Toward(target, math.Min(speed, distance)))
		return
	}
}

func (m *Module) newPath(ship *models.Entity, speed float64) *pathing.Path {
	destination := m.landmarks.RandomLandmark(m.world.Rand)
	node, ok := m.landmarks.Node(destination)
	if !ok {
		return nil
	}

	path := m.landmarks.Graph.PathFrom(ship.Position(), node, speed)
	if path.Empty() {
		logs.WithTag("ship_id", ship.ID).
			WithTag("destination", destination).
			Debug("no path to destination")
		return nil
	}

	ship.SetDestination(destination)
	return &path
}
