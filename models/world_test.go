package models

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWorld(t *testing.T) {
	w := NewWorld(42, 1000, time.Second)
	defer w.Close()

	require.NotEmpty(t, w.ID)
	require.Equal(t, 1000.0, w.Scale)
	require.NotNil(t, w.Rand)
	require.Zero(t, w.Tick())

	t.Run("same seed draws the same numbers", func(t *testing.T) {
		other := NewWorld(42, 1000, time.Second)
		defer other.Close()

		require.NotEqual(t, w.ID, other.ID)
		require.Equal(t, w.Rand.Int63(), other.Rand.Int63())
	})
}

func TestWorldAddEntity(t *testing.T) {
	w := NewWorld(42, 1000, time.Second)
	defer w.Close()

	e := w.NewEntity(KindShip)
	require.NotZero(t, e.ID)

	w.AddEntity(e)
	w.AddEntity(e)
	require.Len(t, w.entities, 1)
	require.Equal(t, e, w.entities[e.ID])
	require.Equal(t, 1, w.EntityCount())
}

func TestWorldRemoveEntity(t *testing.T) {
	t.Run("remove entity", func(t *testing.T) {
		w := NewWorld(42, 1000, time.Second)
		defer w.Close()

		e := w.NewEntity(KindShip)
		w.AddEntity(e)
		w.RemoveEntity(e)
		require.Empty(t, w.entities)

		w.RemoveEntity(e)
		require.Empty(t, w.entities)
	})

	t.Run("entity id is reused", func(t *testing.T) {
		w := NewWorld(42, 1000, time.Second)
		defer w.Close()

		e := w.NewEntity(KindProjectile)
		w.AddEntity(e)
		w.RemoveEntity(e)
		require.Equal(t, e.ID, w.NewEntityID())
	})

	t.Run("entity leaves its fleet", func(t *testing.T) {
		w := NewWorld(42, 1000, time.Second)
		defer w.Close()

		f := w.NewFleet("red")
		e := w.NewEntity(KindShip)
		f.AddEntity(e)
		w.AddEntity(e)
		require.Equal(t, 1, f.Size())
		require.Equal(t, f.ID, e.FleetID)

		w.RemoveEntity(e)
		require.Zero(t, f.Size())
	})
}

func TestWorldEntityByID(t *testing.T) {
	w := NewWorld(42, 1000, time.Second)
	defer w.Close()

	t.Run("entity is returned", func(t *testing.T) {
		e := NewEntity(1, KindLandmark)
		w.AddEntity(e)

		rEntity, ok := w.EntityByID(e.ID)
		require.True(t, ok)
		require.Equal(t, e, rEntity)
	})

	t.Run("entity is not returned", func(t *testing.T) {
		rEntity, ok := w.EntityByID(2)
		require.False(t, ok)
		require.Nil(t, rEntity)
	})
}

func TestWorldEntities(t *testing.T) {
	w := NewWorld(42, 1000, time.Second)
	defer w.Close()

	kinds := []EntityKind{KindShip, KindLandmark, KindProjectile, KindShip, KindLandmark}
	for i := len(kinds); i > 0; i-- {
		w.AddEntity(NewEntity(uint32(i), kinds[i-1]))
	}

	t.Run("all entities are ordered by id", func(t *testing.T) {
		entities := w.Entities()
		require.Len(t, entities, len(kinds))
		for i, e := range entities {
			require.Equal(t, uint32(i+1), e.ID)
		}
	})

	t.Run("entities are filtered by kind", func(t *testing.T) {
		ships := w.Entities(KindShip)
		require.Len(t, ships, 2)
		require.Equal(t, uint32(1), ships[0].ID)
		require.Equal(t, uint32(4), ships[1].ID)

		require.Len(t, w.Entities(KindShip, KindProjectile), 3)
	})
}

func TestWorldFleets(t *testing.T) {
	w := NewWorld(42, 1000, time.Second)
	defer w.Close()

	red := w.NewFleet("red")
	blue := w.NewFleet("blue")
	require.NotEqual(t, red.ID, blue.ID)

	f, ok := w.FleetByID(blue.ID)
	require.True(t, ok)
	require.Equal(t, "blue", f.Name)

	_, ok = w.FleetByID(42)
	require.False(t, ok)
}

func TestWorldModuleState(t *testing.T) {
	t.Run("module state is found", func(t *testing.T) {
		w := NewWorld(42, 1000, time.Second)
		defer w.Close()

		stateA := 42
		w.SetModuleState("testModule", stateA)

		stateB, ok := w.ModuleState("testModule")
		require.True(t, ok)
		require.Equal(t, stateA, stateB)
	})

	t.Run("module state is not found", func(t *testing.T) {
		w := NewWorld(42, 1000, time.Second)
		defer w.Close()

		state, ok := w.ModuleState("testModule")
		require.False(t, ok)
		require.Nil(t, state)
	})
}

func TestWorldHandleFrame(t *testing.T) {
	w := NewWorld(42, 1000, time.Millisecond*5)
	defer w.Close()

	cancel := w.HandleFrame(func() {})
	require.Len(t, w.frameHandlers, 1)

	cancel()
	require.Empty(t, w.frameHandlers)
}

func TestWorldStep(t *testing.T) {
	w := NewWorld(42, 1000, time.Second)
	defer w.Close()

	var calls []int
	w.HandleFrame(func() { calls = append(calls, 1) })
	w.HandleFrame(func() { calls = append(calls, 2) })
	w.HandleFrame(func() { calls = append(calls, 3) })

	w.Step()
	w.Step()
	require.Equal(t, []int{1, 2, 3, 1, 2, 3}, calls)
	require.Equal(t, uint64(2), w.Tick())
}

func TestWorldStartDispatchFrames(t *testing.T) {
	w := NewWorld(42, 1000, time.Millisecond*5)

	var wg sync.WaitGroup
	wg.Add(1)

	var once sync.Once
	w.HandleFrame(func() {
		once.Do(wg.Done)
	})

	go w.StartDispatchFrames()

	wg.Wait()
	w.Close()
	require.NotZero(t, w.Tick())
}
