// File: api/fault.go
// Author: momentics <momentics@gmail.com>
//
// Fault sink contract: the single escape hatch for errors raised inside
// loop-driven callbacks. Nothing that happens inside the reactor loop may
// kill the loop goroutine; it lands here instead.

package api

import "fmt"

// FaultSink receives every fault captured by the reactor loop: panics
// recovered from scheduled callbacks and errors returned by the poller
// wait. At most one sink is active per loop (last write wins) and OnFault
// is always invoked from the loop goroutine.
type FaultSink interface {
	OnFault(err error)
}

// FaultFunc adapts a plain function to the FaultSink interface.
type FaultFunc func(err error)

// OnFault implements FaultSink.
func (f FaultFunc) OnFault(err error) { f(err) }

// PanicError wraps a panic recovered inside a loop-driven callback so it
// can be routed to a FaultSink as an ordinary error value.
type PanicError struct {
	Value any    // the value passed to panic
	Stack []byte // stack trace captured at recovery time
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("callback panic: %v", e.Value)
}
