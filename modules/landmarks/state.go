package landmarks

import (
	"math/rand"
	"sync"

	"github.com/aukilabs/orrery/delaunay"
	"github.com/aukilabs/orrery/models"
	"github.com/aukilabs/orrery/pathing"
	"github.com/aukilabs/orrery/spatial"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/go-gl/mathgl/mgl64"
)

// State represents the static geography of a world: the hierarchy of
// regions, the navigation mesh and the landmarks placed on both.
type State struct {
	// Static hierarchy of regions. Landmarks are stored in it.
	Hierarchy *spatial.Tree

	// Navigation mesh the pathing graph was built from.
	Mesh *delaunay.Triangulation

	Graph *pathing.Graph

	mutex     sync.RWMutex
	landmarks []uint32
	nodes     map[uint32]pathing.NodeID
	regions   map[uint32]int
}

func newState() *State {
	return &State{
		nodes:   make(map[uint32]pathing.NodeID),
		regions: make(map[uint32]int),
	}
}

// StateFrom returns the landmarks state of the given world.
func StateFrom(w *models.World) (*State, bool) {
	state, ok := w.ModuleState(ModuleName)
	if !ok {
		return nil, false
	}
	s, ok := state.(*State)
	return s, ok
}

func (s *State) addLandmark(e *models.Entity, region int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.landmarks = append(s.landmarks, e.ID)
	s.nodes[e.ID] = s.Graph.AddNode(e.Position())
	s.regions[e.ID] = region
	s.Hierarchy.Add(e)
}

// Landmarks returns the ids of every landmark, in creation order.
func (s *State) Landmarks() []uint32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	landmarks := make([]uint32, len(s.landmarks))
	copy(landmarks, s.landmarks)
	return landmarks
}

// Node returns the pathing node of a landmark.
func (s *State) Node(landmarkID uint32) (pathing.NodeID, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	node, ok := s.nodes[landmarkID]
	return node, ok
}

// Region returns the index, in Hierarchy, of the region a landmark stands
// for. Terrain landmarks return the county they were scattered in.
func (s *State) Region(landmarkID uint32) (int, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	region, ok := s.regions[landmarkID]
	return region, ok
}

// RandomLandmark picks a landmark uniformly. It returns 0 when there are
// none.
func (s *State) RandomLandmark(rng *rand.Rand) uint32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.landmarks) == 0 {
		return 0
	}
	return s.landmarks[rng.Intn(len(s.landmarks))]
}

// Near returns the ids of the landmarks that may lie within radius, an
// angular distance, of position.
func (s *State) Near(position mgl64.Vec3, radius float64) []uint32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	items := s.Hierarchy.List(position, radius)
	ids := make([]uint32, len(items))
	for i, item := range items {
		ids[i] = item.ItemID()
	}
	return ids
}

// Cells returns the cells of the smallest regions.
func (s *State) Cells() []voronoi.Cell {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.Hierarchy.ListCells()
}
