package errors

import (
	stderrors "errors"

	"github.com/quaylabs/mooring/engine"
)

// TrapKind identifies a recognized category of runtime execution failure
// raised by the engine. Each kind corresponds 1:1 to one of the engine's
// static trap sentinels; the correspondence is by sentinel identity, never
// by message text.
type TrapKind uint8

const (
	TrapOutOfBoundsMemoryAccess TrapKind = iota
	TrapDivisionByZero
	TrapIntegerOverflow
	TrapIntegerConversion
	TrapIndirectCallTypeMismatch
	TrapTableIndexOutOfRange
	TrapExit
	TrapAbort
	TrapUnreachable
	TrapStackOverflow
)

// trapStatuses maps each kind to its engine sentinel. The table is the
// single source of the kind/sentinel correspondence in both directions.
var trapStatuses = [...]*engine.Status{
	TrapOutOfBoundsMemoryAccess:  engine.ErrTrapOutOfBoundsMemoryAccess,
	TrapDivisionByZero:           engine.ErrTrapDivisionByZero,
	TrapIntegerOverflow:          engine.ErrTrapIntegerOverflow,
	TrapIntegerConversion:        engine.ErrTrapIntegerConversion,
	TrapIndirectCallTypeMismatch: engine.ErrTrapIndirectCallTypeMismatch,
	TrapTableIndexOutOfRange:     engine.ErrTrapTableIndexOutOfRange,
	TrapExit:                     engine.ErrTrapExit,
	TrapAbort:                    engine.ErrTrapAbort,
	TrapUnreachable:              engine.ErrTrapUnreachable,
	TrapStackOverflow:            engine.ErrTrapStackOverflow,
}

var statusTraps = func() map[*engine.Status]TrapKind {
	m := make(map[*engine.Status]TrapKind, len(trapStatuses))
	for kind, st := range trapStatuses {
		m[st] = TrapKind(kind)
	}
	return m
}()

// Status returns the engine sentinel identifying this trap kind. Kinds
// outside the defined range map to the abort sentinel.
func (k TrapKind) Status() *engine.Status {
	if int(k) < len(trapStatuses) {
		return trapStatuses[k]
	}
	return engine.ErrTrapAbort
}

// String reads the sentinel's message at call time.
func (k TrapKind) String() string { return k.Status().Error() }

// Error makes a TrapKind usable directly as an error value.
func (k TrapKind) Error() string { return "trap: " + k.String() }

// TrapFromStatus resolves an engine sentinel to its trap kind. Sentinels
// that are not one of the ten trap sentinels yield TrapAbort; there is no
// unknown-trap kind.
func TrapFromStatus(st *engine.Status) TrapKind {
	if k, ok := statusTraps[st]; ok {
		return k
	}
	return TrapAbort
}

// EngineError wraps one engine status sentinel as an error value. The zero
// value is not meaningful: a nil status means success and is never
// represented by this type. EngineError is a small copyable value; two of
// them are equal iff they wrap the same sentinel.
type EngineError struct {
	st *engine.Status
}

// NewEngineError wraps a non-nil engine status.
func NewEngineError(st *engine.Status) EngineError {
	return EngineError{st: st}
}

// Status returns the wrapped sentinel.
func (e EngineError) Status() *engine.Status { return e.st }

// Error reads the sentinel's message at call time.
func (e EngineError) Error() string { return e.st.Error() }

// IsTrap reports whether the wrapped sentinel is the one identifying kind.
func (e EngineError) IsTrap(kind TrapKind) bool { return e.st == kind.Status() }

// Is lets errors.Is match an EngineError against another EngineError, a
// raw engine sentinel, or a TrapKind, in every case by sentinel identity.
func (e EngineError) Is(target error) bool {
	switch t := target.(type) {
	case EngineError:
		return e.st == t.st
	case *engine.Status:
		return e.st == t
	case TrapKind:
		return e.st == t.Status()
	}
	return false
}

// bindingError is a semantic error raised by this layer itself rather than
// the engine. The message is the whole value, so these are constants.
type bindingError string

func (e bindingError) Error() string { return string(e) }

// Errors raised by the binding layer. Match with Is; none of them wraps an
// engine status.
const (
	// ErrInvalidFunctionSignature reports a function that was found but
	// whose signature did not match the expected one.
	ErrInvalidFunctionSignature = bindingError("the found function had an unexpected signature")

	// ErrFunctionNotFound reports a function lookup that found nothing.
	ErrFunctionNotFound = bindingError("the function could not be found")

	// ErrModuleNotFound reports a module lookup that found nothing.
	ErrModuleNotFound = bindingError("the module could not be found")

	// ErrModuleLoadEnvMismatch reports a module parsed against one
	// environment being loaded into a runtime built from another.
	ErrModuleLoadEnvMismatch = bindingError("the module and runtime environments were not the same")

	// ErrRuntimeIsActive reports an attempt to modify a runtime's module
	// or host-function set while the runtime does not allow it, either
	// because it is mid-execution or because execution has started.
	ErrRuntimeIsActive = bindingError("the runtime is active and running, and modules can not be linked to it")
)

// FromStatus translates an engine status into this package's error
// taxonomy. It is the one conversion rule applied to every engine call:
// nil is success, the function-lookup sentinel becomes ErrFunctionNotFound
// so callers can match lookup failure directly, and every other sentinel
// is wrapped as an EngineError.
func FromStatus(st *engine.Status) error {
	switch st {
	case nil:
		return nil
	case engine.ErrFunctionLookupFailed:
		return ErrFunctionNotFound
	default:
		return EngineError{st: st}
	}
}

// AsTrap extracts the trap kind from an error that carries an EngineError.
// The second result is false when no engine error is present in the chain;
// when it is true the kind may still be TrapAbort for engine errors whose
// sentinel is not one of the ten trap sentinels.
func AsTrap(err error) (TrapKind, bool) {
	var e EngineError
	if stderrors.As(err, &e) {
		return TrapFromStatus(e.st), true
	}
	return TrapAbort, false
}

// IntoTrap collapses any error to a trap kind. An EngineError in the chain
// resolves through its sentinel; everything else, including every binding
// error, becomes TrapAbort. The conversion is total and deliberately
// lossy.
func IntoTrap(err error) TrapKind {
	if k, ok := AsTrap(err); ok {
		return k
	}
	return TrapAbort
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
