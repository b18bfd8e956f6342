package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/quaylabs/mooring"
	"github.com/quaylabs/mooring/engine"
	"github.com/quaylabs/mooring/errors"
)

// Runtime is one execution context: it owns a native engine handle plus
// the registries that must outlive everything running inside it — the
// byte buffers of loaded modules and the pinned entries of linked host
// closures. Both registries are append-only; they are released only by
// Close, after the engine handle itself is gone.
//
// Runtime and every handle borrowed from it are not safe for concurrent
// use.
type Runtime struct {
	store    *engine.Store
	env      *Environment // nil when borrowed
	closures []*closure
	buffers  [][]byte
	closed   bool
}

// NewRuntime creates an execution context from env, sized to stackSlots
// execution-stack slots. Zero slots, or slots above the environment's
// limit, fail with an engine error carrying the allocation-failure status.
func NewRuntime(ctx context.Context, env *Environment, stackSlots uint32) (*Runtime, error) {
	store, st := engine.NewStore(ctx, env.eng, stackSlots)
	if err := errors.FromStatus(st); err != nil {
		return nil, err
	}
	Logger().Debug("runtime created", zap.Uint32("stack_slots", stackSlots))
	return &Runtime{store: store, env: env}, nil
}

// borrowed returns a view of the same execution context without ownership.
// Host closures see the runtime through such a view: loading modules is
// rejected and Close never releases the native handle.
func (r *Runtime) borrowed() *Runtime {
	return &Runtime{store: r.store}
}

// LoadModule loads a parsed module into this runtime, taking over its raw
// bytes. The module must have been parsed against this runtime's
// environment (errors.ErrModuleLoadEnvMismatch otherwise), and a borrowed
// runtime cannot load at all (errors.ErrRuntimeIsActive). On success the
// bytes join the runtime's buffer registry and a borrowed module handle is
// returned.
func (r *Runtime) LoadModule(ctx context.Context, parsed *ParsedModule) (*Module, error) {
	if r.env == nil {
		return nil, errors.ErrRuntimeIsActive
	}
	if parsed.Environment() != r.env {
		return nil, errors.ErrModuleLoadEnvMismatch
	}
	data := parsed.TakeData()
	mod, st := r.store.Load(ctx, data, "")
	if err := errors.FromStatus(st); err != nil {
		return nil, err
	}
	r.buffers = append(r.buffers, data)
	Logger().Debug("module loaded",
		zap.String("module", mod.Name()),
		zap.Int("bytes", len(data)))
	return &Module{rt: r, mod: mod}, nil
}

// ParseAndLoadModule parses raw bytes against this runtime's environment
// and loads the result. The first failure wins.
func (r *Runtime) ParseAndLoadModule(ctx context.Context, data []byte) (*Module, error) {
	if r.env == nil {
		return nil, errors.ErrRuntimeIsActive
	}
	parsed, err := ParseModule(r.env, data)
	if err != nil {
		return nil, err
	}
	return r.LoadModule(ctx, parsed)
}

// FindFunction resolves an exported function by name across every loaded
// module, in load order. A miss fails with errors.ErrFunctionNotFound; a
// hit whose type differs from sig fails with
// errors.ErrInvalidFunctionSignature.
func (r *Runtime) FindFunction(ctx context.Context, name string, sig Signature) (*Function, error) {
	fn, st := r.store.FindFunction(ctx, name)
	if err := errors.FromStatus(st); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.ErrFunctionNotFound
	}
	return newFunction(r, name, fn, sig)
}

// Module returns the handle of the loaded module with the given name, or
// errors.ErrModuleNotFound.
func (r *Runtime) Module(name string) (*Module, error) {
	mod := r.store.Module(name)
	if mod == nil {
		return nil, errors.ErrModuleNotFound
	}
	return &Module{rt: r, mod: mod}, nil
}

// Modules returns handles for every loaded module, in load order.
func (r *Runtime) Modules() []*Module {
	mods := r.store.Modules()
	out := make([]*Module, len(mods))
	for i, mod := range mods {
		out[i] = &Module{rt: r, mod: mod}
	}
	return out
}

// Memory returns the runtime's current linear memory as a live byte view,
// or a zero-length view when no loaded module has a memory. The view
// aliases engine storage: treat it as exclusive, and do not hold it across
// any call that can grow memory.
func (r *Runtime) Memory(ctx context.Context) []byte {
	return r.store.Memory(ctx)
}

// MemoryView returns the same region behind bounds-checked accessors. The
// view stays valid across memory growth because offsets resolve on every
// access.
func (r *Runtime) MemoryView(ctx context.Context) mooring.Memory {
	return r.store.MemoryView(ctx)
}

// LinkWASI makes wasi_snapshot_preview1 importable by modules in this
// runtime. Same linking window as host closures: before first lookup or
// call only.
func (r *Runtime) LinkWASI() error {
	if r.env == nil || r.store.Instantiated() {
		return errors.ErrRuntimeIsActive
	}
	return errors.FromStatus(r.store.LinkWASI())
}

// ErrorInfo returns detail text for the most recent engine failure, when
// the engine produced any. Error identity never depends on it.
func (r *Runtime) ErrorInfo() string { return r.store.ErrorInfo() }

// linkClosure pins a closure entry and registers its trampoline with the
// engine under the (module, name) import pair.
func (r *Runtime) linkClosure(module, name string, sig Signature, fn ClosureFn) error {
	if r.env == nil || r.store.Instantiated() {
		return errors.ErrRuntimeIsActive
	}
	params, ok := coreTypes(sig.Params)
	if !ok {
		return errors.ErrInvalidFunctionSignature
	}
	results, ok := coreTypes(sig.Results)
	if !ok {
		return errors.ErrInvalidFunctionSignature
	}
	entry := r.pushClosure(name, fn)
	st := r.store.LinkHostFunction(engine.HostFunc{
		Module:  module,
		Name:    name,
		Params:  params,
		Results: results,
		Fn:      entry.invoke,
	})
	return errors.FromStatus(st)
}

// pushClosure appends a closure entry to the registry and returns its
// stable address. Entries stay pinned until Close so the engine may call
// them for as long as the handle lives.
func (r *Runtime) pushClosure(name string, fn ClosureFn) *closure {
	entry := &closure{rt: r, name: name, fn: fn}
	r.closures = append(r.closures, entry)
	return entry
}

// Close tears the runtime down in dependency order: the native engine
// handle first, the buffer and closure registries after, since the engine
// may reference both until it is gone. Idempotent. Closing a borrowed
// runtime releases nothing.
func (r *Runtime) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.env != nil {
		err = r.store.Close(ctx)
	}
	r.buffers = nil
	r.closures = nil
	return err
}
