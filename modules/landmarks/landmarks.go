package landmarks

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/delaunay"
	"github.com/aukilabs/orrery/featureflag"
	"github.com/aukilabs/orrery/geometry"
	"github.com/aukilabs/orrery/models"
	"github.com/aukilabs/orrery/pathing"
	"github.com/aukilabs/orrery/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ModuleName = "landmarks"

	DefaultNavigationPoints = 500
	DefaultRelaxationSteps  = 1
	DefaultTerrainPerRegion = 2

	// Label of the landmarks scattered inside the smallest regions.
	TerrainLabel = "terrain"
)

var (
	DefaultBranching = []int{8, 5, 4}

	// Labels of the region landmarks, from the largest regions down.
	Labels = []string{"kingdom", "duchy", "county"}
)

// Module generates the geography of a world when initialized. It places a
// landmark on every region of a static hierarchy, builds a navigation mesh
// and registers every landmark as a pathing node.
type Module struct {
	// Branching factor of each hierarchy level. The first one must be at
	// least 4.
	Branching []int

	// Number of random vertices of the navigation mesh.
	NavigationPoints int

	// Number of Lloyd relaxation steps applied to the navigation mesh. A
	// negative value disables relaxation.
	RelaxationSteps int

	// Number of terrain landmarks scattered in each of the smallest regions.
	// A negative value disables terrain.
	TerrainPerRegion int

	FeatureFlags featureflag.FeatureFlag

	world *models.World
	state *State
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Init(w *models.World) {
	m.world = w

	if state, ok := StateFrom(w); ok {
		m.state = state
		return
	}

	m.setDefaults()

	state := newState()
	state.Hierarchy = m.hierarchy(w.Rand)
	state.Mesh = m.navigationMesh(w.Rand)
	state.Graph = pathing.NewGraph(state.Mesh)
	m.FeatureFlags.IfSet(featureflag.FlagDisableDirectPathFallback, func() {
		state.Graph.DirectFallback = false
	})

	m.state = state
	m.placeLandmarks(w)
	w.SetModuleState(m.Name(), state)

	logs.WithTag("world_id", w.ID).
		WithTag("regions", state.Hierarchy.Len()-1).
		WithTag("landmarks", len(state.landmarks)).
		WithTag("mesh_vertices", len(state.Mesh.Vertices)).
		Info("landmarks generated")
}

// HandleTick does nothing, the geography is static.
func (m *Module) HandleTick(ctx context.Context) error {
	return nil
}

func (m *Module) setDefaults() {
	if len(m.Branching) == 0 {
		m.Branching = DefaultBranching
	}
	if m.NavigationPoints < 4 {
		m.NavigationPoints = DefaultNavigationPoints
	}
	if m.RelaxationSteps == 0 {
		m.RelaxationSteps = DefaultRelaxationSteps
	}
	if m.TerrainPerRegion == 0 {
		m.TerrainPerRegion = DefaultTerrainPerRegion
	}
	if m.FeatureFlags == nil {
		m.FeatureFlags = featureflag.New(nil)
	}
}

func (m *Module) hierarchy(rng *rand.Rand) *spatial.Tree {
	tree := spatial.NewTree(rng)
	tree.Subdivide(m.Branching...)
	return tree
}

func (m *Module) navigationMesh(rng *rand.Rand) *delaunay.Triangulation {
	mesh := delaunay.New(rng)
	mesh.Initialize()
	for len(mesh.Vertices) < m.NavigationPoints {
		mesh.InsertRandom()
	}

	if m.FeatureFlags.IsSet(featureflag.FlagDisableLloydRelaxation) || m.RelaxationSteps < 0 {
		return mesh
	}

	points := make([]mgl64.Vec3, len(mesh.Vertices))
	copy(points, mesh.Vertices)

	if err := mesh.Relax(m.RelaxationSteps); err != nil {
		logs.Warn(errors.New("navigation mesh relaxation failed, keeping random vertices").
			WithTag("steps", m.RelaxationSteps).
			Wrap(err))

		mesh = delaunay.New(rng)
		mesh.Initialize()
		for _, p := range points[4:] {
			mesh.Insert(p)
		}
	}
	return mesh
}

func (m *Module) placeLandmarks(w *models.World) {
	tree := m.state.Hierarchy

	for i := 1; i < tree.Len(); i++ {
		node := tree.Node(i)
		m.addLandmark(w, node.Cell.Generator, label(node.Level), i)

		if node.IsLeaf() && m.TerrainPerRegion > 0 {
			for _, p := range spatial.Scatter(w.Rand, node.Cell, m.TerrainPerRegion) {
				m.addLandmark(w, p, TerrainLabel, i)
			}
		}
	}
}

func (m *Module) addLandmark(w *models.World, position mgl64.Vec3, label string, region int) {
	e := w.NewEntity(models.KindLandmark)
	e.Label = label
	e.SetPose(geometry.PoseFromPoint(position))

	w.AddEntity(e)
	m.state.addLandmark(e, region)
}

func label(level int) string {
	if level >= 1 && level <= len(Labels) {
		return Labels[level-1]
	}
	return fmt.Sprintf("region_%d", level)
}
