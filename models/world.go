package models

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const DefaultFrameDuration = time.Millisecond * 100

// World holds the entities of a simulation and drives its ticks.
type World struct {
	ID string

	// World units per radian on the unit sphere.
	Scale float64

	// Source of every random decision taken during the simulation. Only
	// frame handlers may use it.
	Rand *rand.Rand

	fleetIDs   SequentialIDGenerator
	fleetMutex sync.RWMutex
	fleets     map[uint32]*Fleet

	entityIDs   SequentialIDGenerator
	entityMutex sync.RWMutex
	entities    map[uint32]*Entity

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.Mutex
	tick            atomic.Uint64

	closeOnce sync.Once
}

func NewWorld(seed int64, scale float64, frameDuration time.Duration) *World {
	return &World{
		ID:             uuid.New().String(),
		Scale:          scale,
		Rand:           rand.New(rand.NewSource(seed)),
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		fleets:         make(map[uint32]*Fleet),
		entities:       make(map[uint32]*Entity),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (w *World) Close() {
	w.closeOnce.Do(func() {
		w.frameTicker.Stop()
		w.closeFrameChan <- struct{}{}
	})
}

func (w *World) NewFleet(name string) *Fleet {
	w.fleetMutex.Lock()
	defer w.fleetMutex.Unlock()

	f := &Fleet{ID: w.fleetIDs.New(), Name: name}
	w.fleets[f.ID] = f
	return f
}

func (w *World) FleetByID(id uint32) (*Fleet, bool) {
	w.fleetMutex.RLock()
	defer w.fleetMutex.RUnlock()

	f, ok := w.fleets[id]
	return f, ok
}

func (w *World) NewEntityID() uint32 {
	return w.entityIDs.New()
}

// NewEntity creates an entity with a fresh id. It is not added to the world.
func (w *World) NewEntity(kind EntityKind) *Entity {
	return NewEntity(w.NewEntityID(), kind)
}

func (w *World) AddEntity(e *Entity) {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	if _, ok := w.entities[e.ID]; ok {
		return
	}
	w.entities[e.ID] = e

	instrumentIncreaseEntityGauge(e.Kind)
	instrumentCountEntity(e.Kind)
}

// RemoveEntity deletes the entity from the world and its fleet. Its id may
// be handed out again.
func (w *World) RemoveEntity(e *Entity) {
	w.entityMutex.Lock()
	defer w.entityMutex.Unlock()

	if _, ok := w.entities[e.ID]; !ok {
		return
	}
	delete(w.entities, e.ID)
	w.entityIDs.Reuse(e.ID)

	if f, ok := w.FleetByID(e.FleetID); ok {
		f.RemoveEntity(e)
	}

	instrumentDecreaseEntityGauge(e.Kind)
}

func (w *World) EntityByID(id uint32) (*Entity, bool) {
	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	e, ok := w.entities[id]
	return e, ok
}

// Entities returns the entities of the given kinds, or all of them when no
// kind is given, ordered by id.
func (w *World) Entities(kinds ...EntityKind) []*Entity {
	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	entities := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		if len(kinds) == 0 || containsKind(kinds, e.Kind) {
			entities = append(entities, e)
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
	return entities
}

func (w *World) EntityCount() int {
	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	return len(w.entities)
}

func (w *World) SetModuleState(moduleName string, state any) {
	w.moduleMutex.Lock()
	defer w.moduleMutex.Unlock()

	w.moduleStates[moduleName] = state
}

func (w *World) ModuleState(moduleName string) (any, bool) {
	w.moduleMutex.RLock()
	defer w.moduleMutex.RUnlock()

	state, ok := w.moduleStates[moduleName]
	return state, ok
}

// HandleFrame registers h to be called on every tick. Handlers run in
// registration order and must not register or cancel handlers themselves.
func (w *World) HandleFrame(h func()) (cancel func()) {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	id := w.frameHandlerIDs.New()
	w.frameHandlers[id] = h

	return func() {
		w.frameMutex.Lock()
		defer w.frameMutex.Unlock()

		delete(w.frameHandlers, id)
		w.frameHandlerIDs.Reuse(id)
	}
}

// Step runs one tick synchronously.
func (w *World) Step() {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	start := time.Now()

	ids := make([]uint32, 0, len(w.frameHandlers))
	for id := range w.frameHandlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		w.frameHandlers[id]()
	}
	w.tick.Add(1)

	instrumentTick(time.Since(start))
}

// Tick returns the number of ticks run so far.
func (w *World) Tick() uint64 {
	return w.tick.Load()
}

// StartDispatchFrames runs a tick every frame duration until the world is
// closed.
func (w *World) StartDispatchFrames() {
	w.startFrameOnce.Do(func() {
		for {
			select {
			case <-w.closeFrameChan:
				return

			case <-w.frameTicker.C:
				w.Step()
			}
		}
	})
}

func containsKind(kinds []EntityKind, k EntityKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
