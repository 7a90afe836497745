package ballistics

import (
	"sync/atomic"

	"github.com/aukilabs/orrery/models"
	"github.com/aukilabs/orrery/spatial"
)

// State represents the mobile side of a world: the index of ships rebuilt
// every tick and the bookkeeping of projectiles in flight.
type State struct {
	// Ships indexed by position. It is rebuilt at the start of every tick.
	Index spatial.Partition

	owners  map[uint32]uint32
	reloads map[uint32]int
	hits    atomic.Uint64
	fired   atomic.Uint64
}

func newState(index spatial.Partition) *State {
	return &State{
		Index:   index,
		owners:  make(map[uint32]uint32),
		reloads: make(map[uint32]int),
	}
}

// StateFrom returns the ballistics state of the given world.
func StateFrom(w *models.World) (*State, bool) {
	state, ok := w.ModuleState(ModuleName)
	if !ok {
		return nil, false
	}
	s, ok := state.(*State)
	return s, ok
}

// Hits returns the number of projectiles that hit a ship.
func (s *State) Hits() uint64 {
	return s.hits.Load()
}

// Fired returns the number of projectiles fired.
func (s *State) Fired() uint64 {
	return s.fired.Load()
}

// Owner returns the ship that fired a projectile.
func (s *State) Owner(projectileID uint32) (uint32, bool) {
	owner, ok := s.owners[projectileID]
	return owner, ok
}
