// Package errors defines the error taxonomy for the mooring library.
//
// Errors come from two sources. The engine reports failures as static
// status sentinels ([engine.Status] pointers); this package wraps each
// non-nil sentinel in an [EngineError], which compares by sentinel
// identity and never by message text. The binding layer itself raises a
// small set of semantic errors (function not found, signature mismatch,
// and so on) that are plain constants with no engine status behind them.
//
// [FromStatus] is the single translation rule between the two worlds:
// every engine call's status goes through it, so callers only ever see
// nil, a semantic error, or an EngineError.
//
// Recognized execution failures are classified by [TrapKind]:
//
//	if trap, ok := errors.AsTrap(err); ok && trap == errors.TrapDivisionByZero {
//		// guest divided by zero
//	}
//
// A TrapKind is itself an error value, so errors.Is(err, errors.TrapExit)
// also works. [IntoTrap] collapses any error, engine or not, to a kind,
// with TrapAbort as the catch-all.
//
// All errors support the standard errors.Is/As; this package re-exports
// both so callers need only one import.
package errors
