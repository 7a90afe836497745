package ballistics

import (
	"context"
	"math"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/collision"
	"github.com/aukilabs/orrery/featureflag"
	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/models"
	"github.com/aukilabs/orrery/spatial"
)

const (
	ModuleName = "ballistics"

	DefaultProjectileSpeed  = 20
	DefaultProjectileRadius = 0.5
	DefaultProjectileTTL    = 50
	DefaultFireRange        = 300
	DefaultReloadTicks      = 20
)

var DefaultBranching = []int{8, 4}

// HitHandler is called when a projectile hits a ship, before the projectile
// is removed from the world.
type HitHandler func(projectile, target *models.Entity, hit collision.Hit)

// Module moves ships and projectiles every tick. Ships fire at the nearest
// enemy in range, and projectiles are tested against the ships they may
// reach during the tick.
type Module struct {
	// Branching factors of the ship index.
	Branching []int

	// When positive, ships are indexed in a latitude and longitude grid with
	// this many rows and twice as many columns instead of a tree.
	GridRows int

	// Projectile speed, in world units per tick.
	ProjectileSpeed float64

	// Projectile collision radius, in world units.
	ProjectileRadius float64

	// Number of ticks a projectile flies before it is removed.
	ProjectileTTL int

	// Maximum distance, in world units, at which ships fire.
	FireRange float64

	// Number of ticks between two shots of a ship. A negative value
	// disables firing.
	ReloadTicks int

	FeatureFlags featureflag.FeatureFlag

	OnHit HitHandler

	world *models.World
	state *State
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Init(w *models.World) {
	m.world = w
	m.setDefaults()

	state, ok := StateFrom(w)
	if !ok {
		state = newState(m.newIndex(w))
		w.SetModuleState(m.Name(), state)
	}
	m.state = state
}

func (m *Module) newIndex(w *models.World) spatial.Partition {
	if m.GridRows > 0 {
		return spatial.NewGrid(m.GridRows, 2*m.GridRows)
	}

	tree := spatial.NewTree(w.Rand)
	tree.Subdivide(m.Branching...)
	return tree
}

func (m *Module) setDefaults() {
	if len(m.Branching) == 0 {
		m.Branching = DefaultBranching
	}
	if m.ProjectileSpeed == 0 {
		m.ProjectileSpeed = DefaultProjectileSpeed
	}
	if m.ProjectileRadius == 0 {
		m.ProjectileRadius = DefaultProjectileRadius
	}
	if m.ProjectileTTL == 0 {
		m.ProjectileTTL = DefaultProjectileTTL
	}
	if m.FireRange == 0 {
		m.FireRange = DefaultFireRange
	}
	if m.ReloadTicks == 0 {
		m.ReloadTicks = DefaultReloadTicks
	}
	if m.FeatureFlags == nil {
		m.FeatureFlags = featureflag.New(nil)
	}
}

func (m *Module) HandleTick(ctx context.Context) error {
	ships := m.world.Entities(models.KindShip)
	m.index(ships)

	if m.ReloadTicks >= 0 {
		m.fire(ships)
	}

	projectiles := m.world.Entities(models.KindProjectile)
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableCollisions, func() {
		projectiles = m.collide(projectiles, ships)
	})
	projectiles = m.expire(projectiles)

	for _, ship := range ships {
		ship.Advance()
	}
	for _, p := range projectiles {
		p.Advance()
	}

	m.reload(ships)
	return nil
}

func (m *Module) index(ships []*models.Entity) {
	m.state.Index.Clear()
	for _, ship := range ships {
		m.state.Index.Add(ship)
	}
}

func (m *Module) fire(ships []*models.Entity) {
	for _, ship := range ships {
		if m.state.reloads[ship.ID] > 0 {
			continue
		}

		target := m.nearestEnemy(ship)
		if target == nil {
			continue
		}

		pose := ship.Pose()
		p := m.world.NewEntity(models.KindProjectile)
		p.FleetID = ship.FleetID
		p.Radius = m.ProjectileRadius
		p.SetTTL(m.ProjectileTTL)
		p.SetPose(pose)
		p.SetVelocity(pose.Toward(target.Position(), m.ProjectileSpeed/m.world.Scale))
		m.world.AddEntity(p)

		m.state.owners[p.ID] = ship.ID
		m.state.reloads[ship.ID] = m.ReloadTicks
		m.state.fired.Add(1)
		instrumentFire()
	}
}

func (m *Module) nearestEnemy(ship *models.Entity) *models.Entity {
	position := ship.Position()
	reach := m.FireRange / m.world.Scale

	var nearest *models.Entity
	best := math.Inf(1)

	for _, item := range m.state.Index.List(position, reach) {
		target, ok := item.(*models.Entity)
		if !ok || !hostile(ship, target) {
			continue
		}

		d := geometry.AngularDistance(position, target.Position(), 1)
		if d > reach {
			continue
		}
		if d < best || (d == best && target.ID < nearest.ID) {
			nearest, best = target, d
		}
	}
	return nearest
}

// collide removes the projectiles that hit a ship during this tick and
// returns the others.
func (m *Module) collide(projectiles, ships []*models.Entity) []*models.Entity {
	var shipReach float64
	for _, ship := range ships {
		shipReach = max(shipReach, ship.BoundingRadius(m.world.Scale))
	}

	survivors := projectiles[:0]
	for _, p := range projectiles {
		reach := p.Velocity().Angle(1) + p.Radius/m.world.Scale + shipReach
		candidates := m.state.Index.List(p.Position(), reach)

		var target *models.Entity
		var best collision.Hit
		var tests int

		for _, item := range candidates {
			ship, ok := item.(*models.Entity)
			if !ok || !m.canHit(p, ship) {
				continue
			}

			tests++
			hit := collision.CannonBallCollision(p.Body(), ship.Body(), m.world.Scale)
			if hit.Success && (target == nil || hit.Time < best.Time) {
				target, best = ship, hit
			}
		}
		instrumentCollisionTests(tests)

		if target == nil {
			survivors = append(survivors, p)
			continue
		}
		m.hit(p, target, best)
	}
	return survivors
}

func (m *Module) canHit(projectile, ship *models.Entity) bool {
	if owner, ok := m.state.owners[projectile.ID]; ok && owner == ship.ID {
		return false
	}
	return hostile(projectile, ship)
}

func (m *Module) hit(projectile, target *models.Entity, hit collision.Hit) {
	m.state.hits.Add(1)
	instrumentHit()

	logs.WithTag("world_id", m.world.ID).
		WithTag("projectile_id", projectile.ID).
		WithTag("target_id", target.ID).
		WithTag("time", hit.Time).
		Debug("projectile hit")

	if m.OnHit != nil {
		m.OnHit(projectile, target, hit)
	}
	m.remove(projectile)
}

func (m *Module) expire(projectiles []*models.Entity) []*models.Entity {
	survivors := projectiles[:0]
	for _, p := range projectiles {
		if p.DecreaseTTL() {
			m.remove(p)
			continue
		}
		survivors = append(survivors, p)
	}
	return survivors
}

func (m *Module) remove(projectile *models.Entity) {
	delete(m.state.owners, projectile.ID)
	m.world.RemoveEntity(projectile)
}

func (m *Module) reload(ships []*models.Entity) {
	alive := make(map[uint32]struct{}, len(ships))
	for _, ship := range ships {
		alive[ship.ID] = struct{}{}
	}

	for id, ticks := range m.state.reloads {
		if _, ok := alive[id]; !ok || ticks <= 1 {
			delete(m.state.reloads, id)
			continue
		}
		m.state.reloads[id] = ticks - 1
	}
}

// hostile reports whether a may fire at or hit b. Entities without a fleet
// are hostile to everyone but themselves.
func hostile(a, b *models.Entity) bool {
	if a.ID == b.ID {
		return false
	}
	return a.FleetID == 0 || a.FleetID != b.FleetID
}
