// Package mooring keeps WebAssembly engine handles alive and turns engine
// failures into typed, inspectable errors.
//
// It is the lifetime- and error-management layer between a host application
// and an embedded WASM engine: execution contexts, loaded modules and
// compiled functions are wrapped as owned handles with well-defined teardown
// order, and every engine failure surfaces either as one of ten trap kinds,
// as an opaque engine error, or as a binding-level semantic error.
//
// # Architecture Overview
//
// The library is organized into a small number of packages with distinct
// responsibilities:
//
//	mooring/             Root package with the Memory accessor interfaces
//	├── runtime/         High-level API: Environment, Runtime, Module, Function
//	├── engine/          Native engine boundary: wazero integration and status sentinels
//	└── errors/          Trap kinds, engine errors and the binding error taxonomy
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
// # Error Model
//
// Engine failures are identified by sentinel identity, never by message
// text. A call that traps yields an errors.EngineError whose sentinel maps
// onto one of the ten errors.TrapKind variants:
//
//	if trap, ok := errors.AsTrap(err); ok && trap == errors.TrapDivisionByZero {
//	    // handle the divide
//	}
//
// Failures raised by this layer itself (function not found, signature
// mismatch, cross-environment loads) are plain sentinel errors matched with
// errors.Is.
//
// # Thread Safety
//
// Environment is safe to share across runtimes. Runtime and every handle
// borrowed from it (Module, Function, memory views) are NOT thread-safe:
// one goroutine at a time, or external synchronization. Memory views are
// additionally invalidated by any call that can grow guest memory.
//
// # Memory Model
//
// Guest linear memory can only grow, never shrink. Module byte buffers and
// registered host closures are pinned for the whole life of the runtime
// that owns them and are released only at Close, after the engine handle
// itself has been torn down.
package mooring
