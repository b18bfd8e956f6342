package runtime

import (
	"context"

	"github.com/quaylabs/mooring/engine"
)

// Option configures an Environment at construction.
type Option func(*engine.Config)

// WithMemoryLimitPages caps guest linear memory for every runtime created
// from the environment, in 64KiB pages. 0 means the engine default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(cfg *engine.Config) { cfg.MemoryLimitPages = pages }
}

// WithStackSlotLimit caps the stack size a runtime may be created with.
// 0 means engine.DefaultStackSlotLimit.
func WithStackSlotLimit(slots uint32) Option {
	return func(cfg *engine.Config) { cfg.StackSlotLimit = slots }
}

// Environment is the shared compilation environment runtimes are created
// from. Modules are parsed against an environment and may only be loaded
// into runtimes created from that same one; the check is by pointer
// identity. Environments are cheap to share across runtimes and safe for
// concurrent use.
type Environment struct {
	eng *engine.Environment
}

// NewEnvironment creates an environment.
func NewEnvironment(opts ...Option) (*Environment, error) {
	var cfg engine.Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Environment{eng: engine.NewEnvironment(&cfg)}, nil
}

// NewRuntime creates an execution context backed by this environment,
// sized to stackSlots execution-stack slots.
func (e *Environment) NewRuntime(ctx context.Context, stackSlots uint32) (*Runtime, error) {
	return NewRuntime(ctx, e, stackSlots)
}

// ParseModule checks raw module bytes against this environment. Equivalent
// to the package-level ParseModule.
func (e *Environment) ParseModule(data []byte) (*ParsedModule, error) {
	return ParseModule(e, data)
}

// Close releases the environment's compilation cache. Idempotent. Runtimes
// already created from it remain usable.
func (e *Environment) Close(ctx context.Context) error {
	return e.eng.Close(ctx)
}
