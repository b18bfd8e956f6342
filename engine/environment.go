package engine

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
)

// Config holds configuration shared by every store created from one
// environment.
type Config struct {
	// MemoryLimitPages caps guest linear memory per store, in 64KiB pages.
	// 0 means the engine default (65536 pages = 4GiB).
	MemoryLimitPages uint32

	// StackSlotLimit caps the stack size accepted by NewStore, in abstract
	// execution-stack slots. 0 means DefaultStackSlotLimit.
	StackSlotLimit uint32
}

// DefaultStackSlotLimit bounds store stack sizing when the environment does
// not override it.
const DefaultStackSlotLimit = 1 << 26

// Environment is the shared compilation environment stores are created
// from. It carries the runtime configuration and a compilation cache, so a
// module compiles once per environment no matter how many stores load it.
// Environments are cheap to share across stores; identity is pointer
// identity.
type Environment struct {
	cfg    Config
	cache  wazero.CompilationCache
	closed atomic.Bool
}

// NewEnvironment creates an environment. A nil cfg uses defaults.
func NewEnvironment(cfg *Config) *Environment {
	env := &Environment{cache: wazero.NewCompilationCache()}
	if cfg != nil {
		env.cfg = *cfg
	}
	return env
}

// StackSlotLimit returns the effective stack-slot bound for stores created
// from this environment.
func (e *Environment) StackSlotLimit() uint32 {
	if e.cfg.StackSlotLimit > 0 {
		return e.cfg.StackSlotLimit
	}
	return DefaultStackSlotLimit
}

// runtimeConfig builds the engine configuration for a new store.
func (e *Environment) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	return rc
}

// Close releases the compilation cache. Idempotent. Stores already created
// from this environment remain usable.
func (e *Environment) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.cache.Close(ctx)
}
