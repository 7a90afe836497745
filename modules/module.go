package modules

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/models"
)

const (
	// ErrTypeMissingState is the error type returned by modules that depend
	// on a state another module did not initialize.
	ErrTypeMissingState = "missing_module_state"
)

// Module is the interface that describes a system that runs on every tick of
// a world.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module. Modules that depend on the state of another
	// module must be initialized after it.
	Init(*models.World)

	// Runs one tick. Returned errors are logged and do not stop the other
	// modules.
	HandleTick(context.Context) error
}

// Attach initializes the given modules in order and runs them, in the same
// order, on every frame of the world. The returned function detaches them.
func Attach(ctx context.Context, w *models.World, modules ...Module) (cancel func()) {
	for _, m := range modules {
		m.Init(w)

		logs.WithTag("world_id", w.ID).
			WithTag("module", m.Name()).
			Debug("module initialized")
	}

	return w.HandleFrame(func() {
		for _, m := range modules {
			start := time.Now()
			err := m.HandleTick(ctx)
			instrumentModuleTick(m.Name(), time.Since(start), err)

			if err != nil {
				logs.WithTag("world_id", w.ID).
					WithTag("module", m.Name()).
					WithTag("tick", w.Tick()).
					Warn(err)
			}
		}
	})
}

// MissingState returns the error reported by a module whose dependency
// state is not set.
func MissingState(module, dependency string) error {
	return errors.New("module state not found").
		WithType(ErrTypeMissingState).
		WithTag("module", module).
		WithTag("dependency", dependency)
}

// Names returns the names of the given modules.
func Names(modules ...Module) []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name()
	}
	return names
}
