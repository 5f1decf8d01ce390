// Package engines wires the built-in engines into an engine registry.
package engines

import (
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/engines/baseline"
	"github.com/modelroom/modelroom/internal/engines/gitmodel"
	"github.com/modelroom/modelroom/internal/engines/linreg"
	"github.com/modelroom/modelroom/internal/engines/remote"
)

// Builtins returns one instance of every engine that ships with the
// host, in registration order.
func Builtins() []engine.Engine {
	return []engine.Engine{
		baseline.New(),
		linreg.New(),
		remote.New(),
		gitmodel.New(),
	}
}

// RegisterAll adds every built-in engine to the registry.
func RegisterAll(reg *engine.Registry) error {
	for _, e := range Builtins() {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}
