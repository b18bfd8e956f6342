package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// HostFunc describes one host function exposed to guest modules under an
// import (module, name) pair. Fn runs on the guest's call stack and works
// directly on raw stack slots.
type HostFunc struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Fn      api.GoModuleFunc
}

// Store owns one engine execution context: a native runtime handle, the
// modules loaded into it and the host functions linked into it. The store
// keeps the backing bytes of every loaded module registered until Close,
// because compiled code may borrow into them for as long as the module is
// linked.
//
// Loaded modules are instantiated lazily on the first lookup, call or
// memory access. That makes the load, then link host functions, then look
// up and call ordering legal: by the time anything executes, every linked
// host function exists as an importable module.
//
// Store is not safe for concurrent use.
type Store struct {
	runtime    wazero.Runtime
	stackSlots uint32
	hostFns    []HostFunc
	modules    []*StoreModule
	buffers    [][]byte
	wasi       bool
	hostBuilt  bool
	lastError  string
	closed     bool
}

// StoreModule is one module loaded into a store. Its instance stays nil
// until the store first instantiates.
type StoreModule struct {
	name     string
	compiled wazero.CompiledModule
	instance api.Module
}

// Name returns the module's registered name, which may come from the
// binary's name section when Load was not given one.
func (m *StoreModule) Name() string { return m.name }

// ExportedFunctions lists the module's exported functions keyed by export
// name.
func (m *StoreModule) ExportedFunctions() map[string]api.FunctionDefinition {
	return m.compiled.ExportedFunctions()
}

// NewStore creates an execution context sized to stackSlots abstract
// execution-stack slots. Zero slots, or slots above the environment's
// limit, fail with ErrMallocFailed.
func NewStore(ctx context.Context, env *Environment, stackSlots uint32) (*Store, *Status) {
	if stackSlots == 0 || stackSlots > env.StackSlotLimit() {
		return nil, ErrMallocFailed
	}
	r := wazero.NewRuntimeWithConfig(ctx, env.runtimeConfig())
	Logger().Debug("store created", zap.Uint32("stack_slots", stackSlots))
	return &Store{runtime: r, stackSlots: stackSlots}, nil
}

// StackSlots returns the stack size this store was created with.
func (s *Store) StackSlots() uint32 { return s.stackSlots }

// Load compiles a module and registers it together with its backing bytes.
// The store takes ownership of data; the caller must not reuse the slice.
// The module is not instantiated yet, so host functions linked after Load
// still resolve. An empty name falls back to the binary's own module name.
func (s *Store) Load(ctx context.Context, data []byte, name string) (*StoreModule, *Status) {
	compiled, err := s.runtime.CompileModule(ctx, data)
	if err != nil {
		s.lastError = err.Error()
		return nil, ErrModuleMalformed
	}
	if name == "" {
		name = compiled.Name()
	}
	mod := &StoreModule{name: name, compiled: compiled}
	s.modules = append(s.modules, mod)
	s.buffers = append(s.buffers, data)
	Logger().Debug("module loaded",
		zap.String("module", name),
		zap.Int("bytes", len(data)))
	return mod, nil
}

// LinkHostFunction registers a host function. All host functions must be
// linked before the store first instantiates; afterwards linking fails
// with ErrHostModuleFrozen.
func (s *Store) LinkHostFunction(fn HostFunc) *Status {
	if s.hostBuilt {
		return ErrHostModuleFrozen
	}
	s.hostFns = append(s.hostFns, fn)
	return nil
}

// LinkWASI makes wasi_snapshot_preview1 importable by modules in this
// store. Subject to the same freeze rule as LinkHostFunction.
func (s *Store) LinkWASI() *Status {
	if s.hostBuilt {
		return ErrHostModuleFrozen
	}
	s.wasi = true
	return nil
}

// Instantiated reports whether the store has built its host modules, after
// which the linked function set is frozen.
func (s *Store) Instantiated() bool { return s.hostBuilt }

// instantiate builds host modules from the registry, then instantiates
// every loaded module that has no instance yet, in load order.
func (s *Store) instantiate(ctx context.Context) *Status {
	if !s.hostBuilt {
		if s.wasi {
			if _, err := wasi_snapshot_preview1.Instantiate(ctx, s.runtime); err != nil {
				s.lastError = err.Error()
				return ErrModuleMalformed
			}
		}
		byModule := make(map[string][]HostFunc)
		var order []string
		for _, fn := range s.hostFns {
			if _, ok := byModule[fn.Module]; !ok {
				order = append(order, fn.Module)
			}
			byModule[fn.Module] = append(byModule[fn.Module], fn)
		}
		for _, name := range order {
			builder := s.runtime.NewHostModuleBuilder(name)
			for _, fn := range byModule[name] {
				builder.NewFunctionBuilder().
					WithGoModuleFunction(fn.Fn, fn.Params, fn.Results).
					Export(fn.Name)
			}
			if _, err := builder.Instantiate(ctx); err != nil {
				s.lastError = err.Error()
				return ErrModuleMalformed
			}
		}
		s.hostBuilt = true
	}

	for _, mod := range s.modules {
		if mod.instance != nil {
			continue
		}
		cfg := wazero.NewModuleConfig().WithName(mod.name).WithStartFunctions()
		inst, err := s.runtime.InstantiateModule(ctx, mod.compiled, cfg)
		if err != nil {
			s.lastError = err.Error()
			Logger().Warn("instantiation failed",
				zap.String("module", mod.name),
				zap.Error(err))
			return s.instantiateStatus(err)
		}
		mod.instance = inst
	}
	return nil
}

// instantiateStatus classifies an instantiation failure. A start-section
// trap maps to its trap status, unresolved imports to
// ErrFunctionImportMissing, anything else to ErrModuleMalformed.
func (s *Store) instantiateStatus(err error) *Status {
	if st := trapFromError(err); st != nil {
		return st
	}
	msg := err.Error()
	if strings.Contains(msg, "not exported in module") || strings.Contains(msg, "not instantiated") {
		return ErrFunctionImportMissing
	}
	return ErrModuleMalformed
}

// FindFunction resolves an exported function by name, searching loaded
// modules in load order. It triggers instantiation on first use.
func (s *Store) FindFunction(ctx context.Context, name string) (api.Function, *Status) {
	if st := s.instantiate(ctx); st != nil {
		return nil, st
	}
	for _, mod := range s.modules {
		if fn := mod.instance.ExportedFunction(name); fn != nil {
			return fn, nil
		}
	}
	return nil, ErrFunctionLookupFailed
}

// FindModuleFunction resolves an exported function within one loaded
// module, ignoring exports of every other module in the store. It triggers
// instantiation on first use.
func (s *Store) FindModuleFunction(ctx context.Context, mod *StoreModule, name string) (api.Function, *Status) {
	if st := s.instantiate(ctx); st != nil {
		return nil, st
	}
	if fn := mod.instance.ExportedFunction(name); fn != nil {
		return fn, nil
	}
	return nil, ErrFunctionLookupFailed
}

// Call invokes fn with raw stack values. Failures are reported as trap
// statuses; anything unrecognized collapses to the abort trap, with detail
// retained in ErrorInfo.
func (s *Store) Call(ctx context.Context, fn api.Function, args ...uint64) ([]uint64, *Status) {
	results, err := fn.Call(ctx, args...)
	if err != nil {
		s.lastError = err.Error()
		if st := trapFromError(err); st != nil {
			return nil, st
		}
		return nil, ErrTrapAbort
	}
	return results, nil
}

// trapFromError maps a call failure onto a trap status: a typed exit error
// becomes the exit trap, a *Status surfaced by a host function is returned
// by identity, and the engine's own trap messages are matched against the
// first line of the error text. Unrecognized failures map to nil.
func trapFromError(err error) *Status {
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		return ErrTrapExit
	}
	var st *Status
	if errors.As(err, &st) {
		return st
	}
	first, _, _ := strings.Cut(err.Error(), "\n")
	for _, ts := range callErrorStatuses {
		if strings.HasSuffix(first, ts.Error()) {
			return ts
		}
	}
	return nil
}

// Module returns the loaded module with the given name, or nil.
func (s *Store) Module(name string) *StoreModule {
	for _, mod := range s.modules {
		if mod.name == name {
			return mod
		}
	}
	return nil
}

// Modules returns the loaded modules in load order. The slice is the
// store's own registry; callers must not mutate it.
func (s *Store) Modules() []*StoreModule { return s.modules }

// Memory returns the current linear memory of the first loaded module that
// has one, as a live byte view. The view aliases engine storage: any call
// that can grow memory invalidates it. A store with no memory, or one the
// engine reports an invalid region for, yields a zero-length view.
func (s *Store) Memory(ctx context.Context) []byte {
	mem := s.findMemory(ctx)
	if mem == nil {
		return nil
	}
	view, ok := mem.Read(0, mem.Size())
	if !ok {
		return nil
	}
	return view
}

// MemoryView returns the same region behind bounds-checked accessors. The
// view stays valid across memory growth because offsets resolve on every
// access.
func (s *Store) MemoryView(ctx context.Context) *MemoryView {
	return &MemoryView{mem: s.findMemory(ctx)}
}

func (s *Store) findMemory(ctx context.Context) api.Memory {
	if st := s.instantiate(ctx); st != nil {
		return nil
	}
	for _, mod := range s.modules {
		if mem := mod.instance.Memory(); mem != nil {
			return mem
		}
	}
	return nil
}

// ErrorInfo returns detail text for the most recent failure, when the
// engine produced any. Status sentinels are static; this is the side
// channel for the dynamic part.
func (s *Store) ErrorInfo() string { return s.lastError }

// ClearErrorInfo resets the detail side channel.
func (s *Store) ClearErrorInfo() { s.lastError = "" }

// Close releases the native engine handle. Idempotent. Registered module
// buffers and host-function entries are dropped only after the handle is
// closed, since the engine may reference them up to that point.
func (s *Store) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.runtime.Close(ctx)
	s.modules = nil
	s.buffers = nil
	s.hostFns = nil
	return err
}
