// Package runtime provides the high-level API for executing WebAssembly
// modules: environments, runtimes, modules and functions as owned handles
// with explicit lifetimes.
//
// # Quick Start
//
//	ctx := context.Background()
//	env, err := runtime.NewEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close(ctx)
//
//	rt, err := env.NewRuntime(ctx, 1024)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.ParseAndLoadModule(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sig, _ := runtime.ParseSignature("func(a: s32, b: s32) -> s32")
//	fn, err := rt.FindFunction(ctx, "add", sig)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := fn.Call(ctx, 3, 4)
//	fmt.Println(out[0]) // 7
//
// # Loading Modules
//
// Modules move through two stages. ParseModule pre-scans raw bytes against
// an environment and produces a ParsedModule still holding them;
// Runtime.LoadModule takes the bytes over and keeps them registered for
// the life of the runtime. A module parsed against one environment cannot
// be loaded into a runtime built from another. ParseAndLoadModule does
// both steps in one call.
//
// # Host Functions
//
// Go functions become guest-importable through a loaded module handle:
//
//	sig, _ := runtime.ParseSignature("func(x: s32) -> s32")
//	err := mod.LinkClosure("env", "double", sig,
//	    func(ctx context.Context, call *runtime.CallContext, stack []uint64) error {
//	        stack[0] = stack[0] * 2
//	        return nil
//	    })
//
// Closures receive the raw stack slots plus a CallContext for memory and
// runtime access. All linking must happen before the runtime's first
// lookup or call; afterwards it fails with errors.ErrRuntimeIsActive.
// LinkWASI links a WASI preview1 host the same way.
//
// # Signatures
//
// Functions are resolved against a declared Signature in WIT notation,
// scalars only:
//
//	func(a: s32, b: s32) -> s32
//	func(s64) -> (s32, f64)
//
// Lookup validates the declaration against the function's actual type and
// fails with errors.ErrInvalidFunctionSignature on any mismatch, so a
// handle you hold is always safe to call with its declared layout.
//
// # Thread Safety
//
// Environment is safe to share. Runtime and every handle borrowed from it
// (Module, Function, CallContext, memory views) are confined to one
// goroutine at a time.
//
// # Resource Management
//
// Closing a runtime tears down the native engine handle first and releases
// module buffers and pinned closures after it, never before. Close is
// idempotent. Environments close independently; runtimes created from a
// closed environment's cache keep working.
package runtime
