package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/quaylabs/mooring"
	"github.com/quaylabs/mooring/engine"
	"github.com/quaylabs/mooring/errors"
)

// ClosureFn is a host function body. It runs on the guest's call stack:
// stack holds the raw argument slots on entry and receives the result
// slots before returning. Returning a non-nil error unwinds the guest
// call; an errors.TrapKind or errors.EngineError in the chain reaches the
// original caller by sentinel identity, any other error collapses to the
// abort trap with its text retained in ErrorInfo.
type ClosureFn func(ctx context.Context, call *CallContext, stack []uint64) error

// CallContext gives a host closure scoped access to the execution context
// it was called from. It is valid only for the duration of the call.
type CallContext struct {
	ctx context.Context
	rt  *Runtime
	mod api.Module
}

// Context returns the context the guest call was made with.
func (c *CallContext) Context() context.Context { return c.ctx }

// Memory returns the calling module's linear memory behind bounds-checked
// accessors. A module without memory yields a view that reports every
// access as out of bounds.
func (c *CallContext) Memory() mooring.Memory {
	return engine.WrapMemory(c.mod.Memory())
}

// RawMemory returns the calling module's linear memory as a live byte
// view, or a zero-length view when it has none. The same exclusivity
// contract as Runtime.Memory applies.
func (c *CallContext) RawMemory() []byte {
	mem := c.mod.Memory()
	if mem == nil {
		return nil
	}
	view, ok := mem.Read(0, mem.Size())
	if !ok {
		return nil
	}
	return view
}

// Runtime returns a borrowed view of the runtime the call is executing in.
// Lookups and calls work through it; loading modules or linking does not.
func (c *CallContext) Runtime() *Runtime { return c.rt }

// closure is one pinned host-closure registry entry. Its address is handed
// to the engine as the trampoline receiver and must stay stable until the
// runtime closes.
type closure struct {
	rt   *Runtime
	name string
	fn   ClosureFn
}

// invoke adapts the closure to the engine's host calling convention. A
// recognized error is converted to its engine status and thrown so the
// guest call unwinds; the engine maps the status back by identity on the
// way out. Unrecognized errors are thrown as they are and collapse to the
// abort trap.
func (c *closure) invoke(ctx context.Context, mod api.Module, stack []uint64) {
	call := &CallContext{ctx: ctx, rt: c.rt.borrowed(), mod: mod}
	err := c.fn(ctx, call, stack)
	if err == nil {
		return
	}
	var e errors.EngineError
	if errors.As(err, &e) {
		panic(e.Status())
	}
	var kind errors.TrapKind
	if errors.As(err, &kind) {
		panic(kind.Status())
	}
	panic(err)
}
