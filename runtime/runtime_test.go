package runtime

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/quaylabs/mooring/engine"
	"github.com/quaylabs/mooring/errors"
	"github.com/quaylabs/mooring/internal/wasmtest"
)

func newTestRuntime(t *testing.T) (context.Context, *Runtime) {
	t.Helper()
	ctx := context.Background()
	env, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	rt, err := env.NewRuntime(ctx, 1024)
	if err != nil {
		t.Fatalf("NewRuntime() failed: %v", err)
	}
	t.Cleanup(func() {
		rt.Close(ctx)
		env.Close(ctx)
	})
	return ctx, rt
}

func loadModule(t *testing.T, ctx context.Context, rt *Runtime, data []byte) *Module {
	t.Helper()
	mod, err := rt.ParseAndLoadModule(ctx, data)
	if err != nil {
		t.Fatalf("ParseAndLoadModule() failed: %v (%s)", err, rt.ErrorInfo())
	}
	return mod
}

func TestNewRuntimeStackSizing(t *testing.T) {
	ctx := context.Background()

	env, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	defer env.Close(ctx)
	if _, err := env.NewRuntime(ctx, 0); !errors.Is(err, engine.ErrMallocFailed) {
		t.Errorf("NewRuntime(0) error = %v, want allocation failure", err)
	}

	limited, err := NewEnvironment(WithStackSlotLimit(16), WithMemoryLimitPages(2))
	if err != nil {
		t.Fatalf("NewEnvironment(opts) failed: %v", err)
	}
	defer limited.Close(ctx)
	if _, err := limited.NewRuntime(ctx, 17); !errors.Is(err, engine.ErrMallocFailed) {
		t.Errorf("NewRuntime(17) error = %v, want allocation failure", err)
	}
	rt, err := limited.NewRuntime(ctx, 16)
	if err != nil {
		t.Fatalf("NewRuntime(16) failed: %v", err)
	}
	rt.Close(ctx)
}

func TestParseModule(t *testing.T) {
	env, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	defer env.Close(context.Background())

	badMagic := wasmtest.Header()
	badMagic[1] = 'x'
	futureVersion := wasmtest.Header()
	futureVersion[4] = 2

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated header", wasmtest.Header()[:4], engine.ErrModuleUnderrun},
		{"bad magic", badMagic, engine.ErrModuleMalformed},
		{"future version", futureVersion, engine.ErrIncompatibleVersion},
		{"valid", wasmtest.MathModule(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseModule(env, tt.data)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("ParseModule() failed: %v", err)
				}
				if parsed.Environment() != env {
					t.Error("Environment() is not the parse environment")
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseModule() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTakeDataTwicePanics(t *testing.T) {
	env, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	defer env.Close(context.Background())

	parsed, err := ParseModule(env, wasmtest.MathModule())
	if err != nil {
		t.Fatalf("ParseModule() failed: %v", err)
	}
	if data := parsed.TakeData(); len(data) == 0 {
		t.Fatal("TakeData() returned no bytes")
	}
	defer func() {
		if recover() == nil {
			t.Error("second TakeData() did not panic")
		}
	}()
	parsed.TakeData()
}

func TestLoadModuleEnvMismatch(t *testing.T) {
	ctx := context.Background()
	env1, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	defer env1.Close(ctx)
	env2, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	defer env2.Close(ctx)

	rt, err := env1.NewRuntime(ctx, 1024)
	if err != nil {
		t.Fatalf("NewRuntime() failed: %v", err)
	}
	defer rt.Close(ctx)

	parsed, err := env2.ParseModule(wasmtest.MathModule())
	if err != nil {
		t.Fatalf("ParseModule() failed: %v", err)
	}
	if _, err := rt.LoadModule(ctx, parsed); !errors.Is(err, errors.ErrModuleLoadEnvMismatch) {
		t.Fatalf("LoadModule() error = %v, want %v", err, errors.ErrModuleLoadEnvMismatch)
	}

	// The mismatch is detected before the bytes are taken, so the parsed
	// module still loads into a matching runtime.
	rt2, err := env2.NewRuntime(ctx, 1024)
	if err != nil {
		t.Fatalf("NewRuntime() failed: %v", err)
	}
	defer rt2.Close(ctx)
	if _, err := rt2.LoadModule(ctx, parsed); err != nil {
		t.Fatalf("LoadModule() into the right runtime failed: %v", err)
	}
}

func TestModuleName(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	mod := loadModule(t, ctx, rt, wasmtest.Concat(wasmtest.MathModule(), wasmtest.NameSection("calc")))

	if got := mod.Name(); got != "calc" {
		t.Errorf("Name() = %q, want %q", got, "calc")
	}
	byName, err := rt.Module("calc")
	if err != nil {
		t.Fatalf("Module(calc) failed: %v", err)
	}
	if byName.Name() != "calc" {
		t.Errorf("Module(calc).Name() = %q, want %q", byName.Name(), "calc")
	}
	if _, err := rt.Module("ghost"); !errors.Is(err, errors.ErrModuleNotFound) {
		t.Errorf("Module(ghost) error = %v, want %v", err, errors.ErrModuleNotFound)
	}
	if got := len(rt.Modules()); got != 1 {
		t.Errorf("len(Modules()) = %d, want 1", got)
	}
}

func TestExportedFunctions(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	mod := loadModule(t, ctx, rt, wasmtest.MathModule())

	got := mod.ExportedFunctions()
	if len(got) != 3 {
		t.Fatalf("len(ExportedFunctions()) = %d, want 3", len(got))
	}
	// Sorted by name.
	for i, name := range []string{"add", "crash", "div"} {
		if got[i].Name != name {
			t.Errorf("ExportedFunctions()[%d].Name = %q, want %q", i, got[i].Name, name)
		}
	}
	add := got[0]
	if len(add.Params) != 2 || add.Params[0] != "i32" || add.Params[1] != "i32" {
		t.Errorf("add params = %v, want [i32 i32]", add.Params)
	}
	if len(add.Results) != 1 || add.Results[0] != "i32" {
		t.Errorf("add results = %v, want [i32]", add.Results)
	}
	crash := got[1]
	if len(crash.Params) != 0 || len(crash.Results) != 0 {
		t.Errorf("crash types = (%v, %v), want none", crash.Params, crash.Results)
	}
}

func TestFindFunctionAndCall(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	loadModule(t, ctx, rt, wasmtest.MathModule())
	sig := mustParseSig(t, "func(a: s32, b: s32) -> s32")

	if _, err := rt.FindFunction(ctx, "pow", sig); !errors.Is(err, errors.ErrFunctionNotFound) {
		t.Errorf("FindFunction(pow) error = %v, want %v", err, errors.ErrFunctionNotFound)
	}

	wide := mustParseSig(t, "func(a: s64, b: s64) -> s64")
	if _, err := rt.FindFunction(ctx, "add", wide); !errors.Is(err, errors.ErrInvalidFunctionSignature) {
		t.Errorf("FindFunction(add, s64 sig) error = %v, want %v", err, errors.ErrInvalidFunctionSignature)
	}

	// A declaration that does not lower to core types matches nothing.
	lossy := Signature{Params: []wit.Type{wit.String{}, wit.String{}}, Results: []wit.Type{wit.S32{}}}
	if _, err := rt.FindFunction(ctx, "add", lossy); !errors.Is(err, errors.ErrInvalidFunctionSignature) {
		t.Errorf("FindFunction(add, string sig) error = %v, want %v", err, errors.ErrInvalidFunctionSignature)
	}

	fn, err := rt.FindFunction(ctx, "add", sig)
	if err != nil {
		t.Fatalf("FindFunction(add) failed: %v", err)
	}
	if got := fn.Name(); got != "add" {
		t.Errorf("Name() = %q, want %q", got, "add")
	}
	if got := fn.Signature().String(); got != "func(s32, s32) -> s32" {
		t.Errorf("Signature() = %q, want %q", got, "func(s32, s32) -> s32")
	}
	out, err := fn.Call(ctx, 3, 4)
	if err != nil {
		t.Fatalf("Call(3, 4) failed: %v", err)
	}
	if len(out) != 1 || out[0] != 7 {
		t.Errorf("add(3, 4) = %v, want [7]", out)
	}
}

func TestModuleScopedLookup(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	calc := loadModule(t, ctx, rt, wasmtest.MathModule())
	loadModule(t, ctx, rt, wasmtest.MemModule())

	sigPeek := mustParseSig(t, "func(addr: s32) -> s32")

	// The runtime-wide lookup sees every module; a module handle only
	// its own exports.
	if _, err := rt.FindFunction(ctx, "peek", sigPeek); err != nil {
		t.Fatalf("FindFunction(peek) failed: %v", err)
	}
	if _, err := calc.FindFunction(ctx, "peek", sigPeek); !errors.Is(err, errors.ErrFunctionNotFound) {
		t.Errorf("calc.FindFunction(peek) error = %v, want %v", err, errors.ErrFunctionNotFound)
	}
}

func TestTwoModulesDistinct(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	m1 := loadModule(t, ctx, rt, wasmtest.MemModule())
	m2 := loadModule(t, ctx, rt, wasmtest.MemModule())

	if got := len(rt.buffers); got != 2 {
		t.Fatalf("len(buffers) = %d, want 2", got)
	}

	sigPoke := mustParseSig(t, "func(addr: s32, value: s32)")
	sigPeek := mustParseSig(t, "func(addr: s32) -> s32")

	poke1, err := m1.FindFunction(ctx, "poke", sigPoke)
	if err != nil {
		t.Fatalf("m1.FindFunction(poke) failed: %v", err)
	}
	poke2, err := m2.FindFunction(ctx, "poke", sigPoke)
	if err != nil {
		t.Fatalf("m2.FindFunction(poke) failed: %v", err)
	}
	if _, err := poke1.Call(ctx, 64, 111); err != nil {
		t.Fatalf("poke1 failed: %v", err)
	}
	if _, err := poke2.Call(ctx, 64, 222); err != nil {
		t.Fatalf("poke2 failed: %v", err)
	}

	peek1, err := m1.FindFunction(ctx, "peek", sigPeek)
	if err != nil {
		t.Fatalf("m1.FindFunction(peek) failed: %v", err)
	}
	peek2, err := m2.FindFunction(ctx, "peek", sigPeek)
	if err != nil {
		t.Fatalf("m2.FindFunction(peek) failed: %v", err)
	}
	out1, err := peek1.Call(ctx, 64)
	if err != nil {
		t.Fatalf("peek1 failed: %v", err)
	}
	out2, err := peek2.Call(ctx, 64)
	if err != nil {
		t.Fatalf("peek2 failed: %v", err)
	}
	if out1[0] != 111 || out2[0] != 222 {
		t.Errorf("peek = (%d, %d), want (111, 222): instances share memory", out1[0], out2[0])
	}
}

func TestCallTraps(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	loadModule(t, ctx, rt, wasmtest.MathModule())
	loadModule(t, ctx, rt, wasmtest.RecurseModule())
	loadModule(t, ctx, rt, wasmtest.MemModule())

	tests := []struct {
		name   string
		export string
		sig    string
		args   []uint64
		want   errors.TrapKind
	}{
		{"divide by zero", "div", "func(a: s32, b: s32) -> s32", []uint64{7, 0}, errors.TrapDivisionByZero},
		{"unreachable", "crash", "func()", nil, errors.TrapUnreachable},
		{"stack exhaustion", "recurse", "func()", nil, errors.TrapStackOverflow},
		{"memory out of bounds", "oob", "func() -> s32", nil, errors.TrapOutOfBoundsMemoryAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := rt.FindFunction(ctx, tt.export, mustParseSig(t, tt.sig))
			if err != nil {
				t.Fatalf("FindFunction(%s) failed: %v", tt.export, err)
			}
			_, err = fn.Call(ctx, tt.args...)
			if err == nil {
				t.Fatalf("Call(%s) did not fail", tt.export)
			}
			trap, ok := errors.AsTrap(err)
			if !ok || trap != tt.want {
				t.Errorf("AsTrap() = (%v, %v), want (%v, true)", trap, ok, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Is(err, %v) = false, want true", tt.want)
			}
			if rt.ErrorInfo() == "" {
				t.Error("ErrorInfo() is empty after a trap")
			}
		})
	}
}

func TestLinkClosure(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	mod := loadModule(t, ctx, rt, wasmtest.HostCallModule("env", "mul"))

	sig := mustParseSig(t, "func(a: s32, b: s32) -> s32")
	var observed []uint64
	err := mod.LinkClosure("env", "mul", sig,
		func(_ context.Context, _ *CallContext, stack []uint64) error {
			observed = append(observed, stack[0], stack[1])
			stack[0] = stack[0] * stack[1]
			return nil
		})
	if err != nil {
		t.Fatalf("LinkClosure() failed: %v", err)
	}

	fn, err := mod.FindFunction(ctx, "call_host", sig)
	if err != nil {
		t.Fatalf("FindFunction(call_host) failed: %v", err)
	}
	out, err := fn.Call(ctx, 6, 7)
	if err != nil {
		t.Fatalf("Call(6, 7) failed: %v (%s)", err, rt.ErrorInfo())
	}
	if out[0] != 42 {
		t.Errorf("call_host(6, 7) = %d, want 42", out[0])
	}
	if len(observed) != 2 || observed[0] != 6 || observed[1] != 7 {
		t.Errorf("closure observed %v, want [6 7]", observed)
	}
	if got := len(rt.closures); got != 1 {
		t.Errorf("len(closures) = %d, want 1", got)
	}
}

func TestLinkFunction(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	mod := loadModule(t, ctx, rt, wasmtest.HostCallModule("env", "sum"))

	sig := mustParseSig(t, "func(a: s32, b: s32) -> s32")
	err := mod.LinkFunction("env", "sum", sig, func(stack []uint64) error {
		stack[0] = stack[0] + stack[1]
		return nil
	})
	if err != nil {
		t.Fatalf("LinkFunction() failed: %v", err)
	}

	fn, err := mod.FindFunction(ctx, "call_host", sig)
	if err != nil {
		t.Fatalf("FindFunction(call_host) failed: %v", err)
	}
	out, err := fn.Call(ctx, 30, 12)
	if err != nil {
		t.Fatalf("Call(30, 12) failed: %v", err)
	}
	if out[0] != 42 {
		t.Errorf("call_host(30, 12) = %d, want 42", out[0])
	}
}

func TestCallContext(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	mod := loadModule(t, ctx, rt, wasmtest.HostMemModule("env", "readback"))

	var (
		rawLen   int
		loadErr  error
		borrowed *Runtime
	)
	sig := mustParseSig(t, "func(addr: s32) -> s32")
	err := mod.LinkClosure("env", "readback", sig,
		func(_ context.Context, call *CallContext, stack []uint64) error {
			rawLen = len(call.RawMemory())
			borrowed = call.Runtime()
			_, loadErr = borrowed.ParseAndLoadModule(call.Context(), wasmtest.MathModule())

			b, err := call.Memory().ReadU8(uint32(stack[0]))
			if err != nil {
				return err
			}
			stack[0] = uint64(b)
			return nil
		})
	if err != nil {
		t.Fatalf("LinkClosure() failed: %v", err)
	}

	fn, err := mod.FindFunction(ctx, "call_host", sig)
	if err != nil {
		t.Fatalf("FindFunction(call_host) failed: %v", err)
	}
	out, err := fn.Call(ctx, 1)
	if err != nil {
		t.Fatalf("Call(1) failed: %v (%s)", err, rt.ErrorInfo())
	}
	if out[0] != 'e' {
		t.Errorf("call_host(1) = %d, want %d ('e' from the data segment)", out[0], 'e')
	}

	if rawLen != 65536 {
		t.Errorf("RawMemory() length = %d, want 65536", rawLen)
	}
	if !errors.Is(loadErr, errors.ErrRuntimeIsActive) {
		t.Errorf("load inside a call error = %v, want %v", loadErr, errors.ErrRuntimeIsActive)
	}
	if borrowed == nil || borrowed.store != rt.store {
		t.Error("CallContext runtime does not share the owning runtime's store")
	}
}

func TestClosureErrors(t *testing.T) {
	tests := []struct {
		name     string
		ret      error
		want     errors.TrapKind
		wantIs   error
		wantInfo string
	}{
		{
			name:   "trap kind propagates by identity",
			ret:    errors.TrapTableIndexOutOfRange,
			want:   errors.TrapTableIndexOutOfRange,
			wantIs: engine.ErrTrapTableIndexOutOfRange,
		},
		{
			name:   "engine error propagates by identity",
			ret:    errors.NewEngineError(engine.ErrTrapIntegerConversion),
			want:   errors.TrapIntegerConversion,
			wantIs: engine.ErrTrapIntegerConversion,
		},
		{
			name: "semantic error collapses to abort",
			ret:  errors.ErrModuleNotFound,
			want: errors.TrapAbort,
		},
		{
			name:     "plain error collapses to abort",
			ret:      fmt.Errorf("kaboom"),
			want:     errors.TrapAbort,
			wantInfo: "kaboom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, rt := newTestRuntime(t)
			mod := loadModule(t, ctx, rt, wasmtest.HostCallModule("env", "boom"))

			sig := mustParseSig(t, "func(a: s32, b: s32) -> s32")
			err := mod.LinkClosure("env", "boom", sig,
				func(context.Context, *CallContext, []uint64) error {
					return tt.ret
				})
			if err != nil {
				t.Fatalf("LinkClosure() failed: %v", err)
			}

			fn, err := mod.FindFunction(ctx, "call_host", sig)
			if err != nil {
				t.Fatalf("FindFunction(call_host) failed: %v", err)
			}
			_, err = fn.Call(ctx, 1, 2)
			if err == nil {
				t.Fatal("Call() did not fail")
			}
			trap, ok := errors.AsTrap(err)
			if !ok || trap != tt.want {
				t.Errorf("AsTrap() = (%v, %v), want (%v, true)", trap, ok, tt.want)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Is(err, %v) = false, want true", tt.wantIs)
			}
			if tt.wantInfo != "" && !strings.Contains(rt.ErrorInfo(), tt.wantInfo) {
				t.Errorf("ErrorInfo() = %q, want %q in it", rt.ErrorInfo(), tt.wantInfo)
			}
		})
	}
}

func TestLinkAfterFirstUse(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	mod := loadModule(t, ctx, rt, wasmtest.MathModule())

	sig := mustParseSig(t, "func(a: s32, b: s32) -> s32")
	fn, err := rt.FindFunction(ctx, "add", sig)
	if err != nil {
		t.Fatalf("FindFunction(add) failed: %v", err)
	}

	noop := func(context.Context, *CallContext, []uint64) error { return nil }
	if err := mod.LinkClosure("env", "late", sig, noop); !errors.Is(err, errors.ErrRuntimeIsActive) {
		t.Errorf("LinkClosure() error = %v, want %v", err, errors.ErrRuntimeIsActive)
	}
	if err := mod.LinkFunction("env", "late", sig, func([]uint64) error { return nil }); !errors.Is(err, errors.ErrRuntimeIsActive) {
		t.Errorf("LinkFunction() error = %v, want %v", err, errors.ErrRuntimeIsActive)
	}
	if err := rt.LinkWASI(); !errors.Is(err, errors.ErrRuntimeIsActive) {
		t.Errorf("LinkWASI() error = %v, want %v", err, errors.ErrRuntimeIsActive)
	}

	// The runtime stays usable after the rejections.
	if out, err := fn.Call(ctx, 20, 22); err != nil || out[0] != 42 {
		t.Errorf("Call(20, 22) = (%v, %v), want ([42], nil)", out, err)
	}
}

func TestLinkWASIExit(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	if err := rt.LinkWASI(); err != nil {
		t.Fatalf("LinkWASI() failed: %v", err)
	}
	mod := loadModule(t, ctx, rt, wasmtest.ProcExitModule(3))

	fn, err := mod.FindFunction(ctx, "start_exit", mustParseSig(t, "func()"))
	if err != nil {
		t.Fatalf("FindFunction(start_exit) failed: %v", err)
	}
	_, err = fn.Call(ctx)
	trap, ok := errors.AsTrap(err)
	if !ok || trap != errors.TrapExit {
		t.Errorf("AsTrap() = (%v, %v), want (%v, true)", trap, ok, errors.TrapExit)
	}
}

func TestMemory(t *testing.T) {
	ctx, rt := newTestRuntime(t)

	// Before any module there is no memory, only the zero-length view.
	if got := rt.Memory(ctx); len(got) != 0 {
		t.Fatalf("Memory() before any module = %d bytes, want none", len(got))
	}
	if _, err := rt.MemoryView(ctx).ReadU8(0); err == nil {
		t.Error("ReadU8(0) on an empty view did not fail")
	}

	loadModule(t, ctx, rt, wasmtest.MemModule())
	raw := rt.Memory(ctx)
	if len(raw) != 65536 {
		t.Fatalf("len(Memory()) = %d, want 65536", len(raw))
	}
	if got := string(raw[:5]); got != "hello" {
		t.Errorf("Memory()[:5] = %q, want %q", got, "hello")
	}

	view := rt.MemoryView(ctx)
	if got, err := view.ReadU32(0); err != nil || got != 0x6c6c6568 {
		t.Errorf("ReadU32(0) = (%#x, %v), want (0x6c6c6568, nil)", got, err)
	}
	if err := view.WriteU16(32, 0xbeef); err != nil {
		t.Fatalf("WriteU16(32) failed: %v", err)
	}
	if got, _ := view.ReadU16(32); got != 0xbeef {
		t.Errorf("ReadU16(32) = %#x, want 0xbeef", got)
	}
	if _, err := view.ReadU8(65536); err == nil {
		t.Error("ReadU8(65536) did not fail")
	}
}

func TestBorrowedRuntime(t *testing.T) {
	ctx, rt := newTestRuntime(t)
	loadModule(t, ctx, rt, wasmtest.MathModule())

	b := rt.borrowed()
	if _, err := b.ParseAndLoadModule(ctx, wasmtest.MemModule()); !errors.Is(err, errors.ErrRuntimeIsActive) {
		t.Errorf("borrowed ParseAndLoadModule() error = %v, want %v", err, errors.ErrRuntimeIsActive)
	}

	parsed, err := ParseModule(rt.env, wasmtest.MemModule())
	if err != nil {
		t.Fatalf("ParseModule() failed: %v", err)
	}
	if _, err := b.LoadModule(ctx, parsed); !errors.Is(err, errors.ErrRuntimeIsActive) {
		t.Errorf("borrowed LoadModule() error = %v, want %v", err, errors.ErrRuntimeIsActive)
	}

	// The rejection happens before the bytes are taken and closing the
	// borrowed view releases nothing.
	if err := b.Close(ctx); err != nil {
		t.Fatalf("borrowed Close() failed: %v", err)
	}
	if _, err := rt.LoadModule(ctx, parsed); err != nil {
		t.Fatalf("owning LoadModule() after borrowed close failed: %v", err)
	}
	fn, err := rt.FindFunction(ctx, "add", mustParseSig(t, "func(a: s32, b: s32) -> s32"))
	if err != nil {
		t.Fatalf("FindFunction(add) after borrowed close failed: %v", err)
	}
	if out, err := fn.Call(ctx, 1, 2); err != nil || out[0] != 3 {
		t.Errorf("Call(1, 2) = (%v, %v), want ([3], nil)", out, err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	env, err := NewEnvironment()
	if err != nil {
		t.Fatalf("NewEnvironment() failed: %v", err)
	}
	defer env.Close(ctx)

	rt, err := env.NewRuntime(ctx, 64)
	if err != nil {
		t.Fatalf("NewRuntime() failed: %v", err)
	}
	loadModule(t, ctx, rt, wasmtest.MathModule())

	if err := rt.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := rt.Close(ctx); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
	if rt.buffers != nil || rt.closures != nil {
		t.Error("registries not released after Close")
	}
}
