package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/quaylabs/mooring/errors"
)

// Function is an exported function resolved from a runtime. The handle is
// borrowed from the runtime and stays valid until the runtime closes.
type Function struct {
	rt   *Runtime
	name string
	fn   api.Function
	sig  Signature
}

// newFunction validates the declared signature against the function's
// actual core types before handing out a handle. A signature that does not
// lower to core types, or lowers to different ones than the function
// declares, fails with errors.ErrInvalidFunctionSignature.
func newFunction(rt *Runtime, name string, fn api.Function, sig Signature) (*Function, error) {
	params, ok := coreTypes(sig.Params)
	if !ok {
		return nil, errors.ErrInvalidFunctionSignature
	}
	results, ok := coreTypes(sig.Results)
	if !ok {
		return nil, errors.ErrInvalidFunctionSignature
	}
	def := fn.Definition()
	if !typesEqual(def.ParamTypes(), params) || !typesEqual(def.ResultTypes(), results) {
		return nil, errors.ErrInvalidFunctionSignature
	}
	return &Function{rt: rt, name: name, fn: fn, sig: sig}, nil
}

func typesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Name returns the export name the function was resolved under.
func (f *Function) Name() string { return f.name }

// Signature returns the declared signature. Marshaling layers above use
// its WIT types to interpret the raw slots.
func (f *Function) Signature() Signature { return f.sig }

// Call invokes the function. Arguments and results travel as raw 64-bit
// stack slots in the core encoding of the signature's types. A guest
// failure surfaces as an errors.EngineError whose trap kind is recoverable
// with errors.AsTrap.
func (f *Function) Call(ctx context.Context, args ...uint64) ([]uint64, error) {
	results, st := f.rt.store.Call(ctx, f.fn, args...)
	if err := errors.FromStatus(st); err != nil {
		return nil, err
	}
	return results, nil
}
