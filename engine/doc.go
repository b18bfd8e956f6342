// Package engine is the native boundary to the embedded WebAssembly
// engine.
//
// Everything above this package treats the engine as opaque: fallible
// operations return *Status alongside their results, where nil means
// success and every non-nil value is one of the fixed sentinel statuses
// declared here. Statuses carry no dynamic state; detail text for the most
// recent failure is available separately through Store.ErrorInfo.
//
// # Status Sentinels
//
// Statuses are identity values. Comparing a returned *Status against the
// package sentinels with == is the supported way to classify a failure;
// message text exists for display only and is not guaranteed unique across
// sentinels.
//
// # Stores
//
// A Store owns one execution context. Modules load eagerly but instantiate
// lazily on the first lookup, call or memory access. Host functions and
// WASI must therefore be linked between Load and the first executing
// operation; once the store instantiates, the linked set is frozen and
// further linking fails with ErrHostModuleFrozen.
//
// # Memory
//
// Store.Memory returns a live view aliasing engine storage. Any call that
// can grow guest memory may move the region and invalidate the view, so
// callers must not hold it across calls. Store.MemoryView returns checked
// accessors that re-resolve on every access and stay valid across growth.
//
// # Thread Safety
//
// Environment is safe to share. Store and everything reached through it is
// not thread-safe: one goroutine at a time.
//
// # Logging
//
// The package logs nothing by default. SetLogger installs a zap logger for
// hosts that want engine-level debug output.
package engine
