package engine

// Status is an engine status sentinel. Every fallible engine operation
// reports failure as one of the fixed set of statuses declared in this
// package; a nil *Status means success. Statuses are compared by pointer
// identity, never by text: two distinct statuses may carry identical
// messages and must still compare unequal.
type Status struct {
	s string
}

func newStatus(text string) *Status { return &Status{s: text} }

// Error implements the error interface, reading the sentinel's message at
// call time.
func (s *Status) Error() string { return s.s }

// Trap statuses. Each identifies one recognized category of runtime
// execution failure.
var (
	ErrTrapOutOfBoundsMemoryAccess  = newStatus("out of bounds memory access")
	ErrTrapDivisionByZero           = newStatus("integer divide by zero")
	ErrTrapIntegerOverflow          = newStatus("integer overflow")
	ErrTrapIntegerConversion        = newStatus("invalid conversion to integer")
	ErrTrapIndirectCallTypeMismatch = newStatus("indirect call type mismatch")
	ErrTrapTableIndexOutOfRange     = newStatus("invalid table access")
	ErrTrapExit                     = newStatus("module exited")
	ErrTrapAbort                    = newStatus("abort")
	ErrTrapUnreachable              = newStatus("unreachable")
	ErrTrapStackOverflow            = newStatus("stack overflow")
)

// Non-trap statuses.
var (
	ErrMallocFailed          = newStatus("memory allocation failed")
	ErrFunctionLookupFailed  = newStatus("function lookup failed")
	ErrModuleMalformed       = newStatus("malformed module")
	ErrModuleUnderrun        = newStatus("module data underrun")
	ErrIncompatibleVersion   = newStatus("incompatible module version")
	ErrFunctionImportMissing = newStatus("missing imported function")
	ErrHostModuleFrozen      = newStatus("host functions cannot be linked after instantiation")
)

// callErrorStatuses are the trap statuses whose message text matches what
// the underlying engine reports for the corresponding failure. Exit is
// absent because it arrives as a typed exit error, and abort is absent
// because it is the fallback for everything unrecognized.
var callErrorStatuses = [...]*Status{
	ErrTrapOutOfBoundsMemoryAccess,
	ErrTrapDivisionByZero,
	ErrTrapIntegerOverflow,
	ErrTrapIntegerConversion,
	ErrTrapIndirectCallTypeMismatch,
	ErrTrapTableIndexOutOfRange,
	ErrTrapUnreachable,
	ErrTrapStackOverflow,
}
