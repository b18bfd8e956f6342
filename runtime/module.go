package runtime

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"

	"github.com/quaylabs/mooring/engine"
	"github.com/quaylabs/mooring/errors"
)

// ParsedModule is a module whose raw bytes passed the engine's structural
// pre-scan against one environment. It holds the bytes until a runtime
// takes them over at load.
type ParsedModule struct {
	env   *Environment
	data  []byte
	taken bool
}

// ParseModule pre-scans raw module bytes and records the environment they
// were checked against. It takes ownership of data; the caller must not
// reuse the slice. Truncated, malformed or wrong-version binaries fail
// here, before any runtime is involved.
func ParseModule(env *Environment, data []byte) (*ParsedModule, error) {
	if err := errors.FromStatus(engine.ScanModule(data)); err != nil {
		return nil, err
	}
	return &ParsedModule{env: env, data: data}, nil
}

// Environment returns the environment the module was parsed against.
func (p *ParsedModule) Environment() *Environment { return p.env }

// TakeData transfers the module's raw bytes out of the handle. The bytes
// can be taken exactly once; taking them again panics, because they now
// belong to whichever runtime loaded the module.
func (p *ParsedModule) TakeData() []byte {
	if p.taken {
		panic("runtime: module data already taken")
	}
	p.taken = true
	data := p.data
	p.data = nil
	return data
}

// Module is a handle to a module loaded into a runtime. The handle is
// borrowed from the runtime and stays valid until the runtime closes.
type Module struct {
	rt  *Runtime
	mod *engine.StoreModule
}

// Name returns the module's name: the one given at load, or the name
// embedded in the binary's name section when none was.
func (m *Module) Name() string { return m.mod.Name() }

// ExportedFunction describes one exported function with its core value
// types.
type ExportedFunction struct {
	Name    string
	Params  []string
	Results []string
}

// ExportedFunctions lists the module's exported functions sorted by name.
func (m *Module) ExportedFunctions() []ExportedFunction {
	defs := m.mod.ExportedFunctions()
	out := make([]ExportedFunction, 0, len(defs))
	for name, def := range defs {
		out = append(out, ExportedFunction{
			Name:    name,
			Params:  valueTypeNames(def.ParamTypes()),
			Results: valueTypeNames(def.ResultTypes()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func valueTypeNames(types []api.ValueType) []string {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

// FindFunction resolves an exported function within this module only,
// ignoring exports of other modules loaded into the same runtime. The
// declared signature is validated against the function's actual type;
// a mismatch fails with errors.ErrInvalidFunctionSignature.
func (m *Module) FindFunction(ctx context.Context, name string, sig Signature) (*Function, error) {
	fn, st := m.rt.store.FindModuleFunction(ctx, m.mod, name)
	if err := errors.FromStatus(st); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.ErrFunctionNotFound
	}
	return newFunction(m.rt, name, fn, sig)
}

// LinkClosure registers fn as a host function importable under the
// (module, name) pair by every module in the runtime. The closure receives
// a CallContext for memory and runtime access. Linking is only possible
// before the runtime first looks up or calls anything; afterwards it fails
// with errors.ErrRuntimeIsActive.
func (m *Module) LinkClosure(module, name string, sig Signature, fn ClosureFn) error {
	return m.rt.linkClosure(module, name, sig, fn)
}

// LinkFunction registers a plain host function that transforms raw stack
// slots without context access. Same linking window as LinkClosure.
func (m *Module) LinkFunction(module, name string, sig Signature, fn func(stack []uint64) error) error {
	return m.rt.linkClosure(module, name, sig, func(_ context.Context, _ *CallContext, stack []uint64) error {
		return fn(stack)
	})
}
