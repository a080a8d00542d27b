// File: reactor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-eio/api"
	"github.com/momentics/hioload-eio/internal/logging"
)

// minWait floors the poll timeout so a deadline a few hundred nanoseconds
// out does not degenerate into a busy spin against the poller.
const minWait = time.Millisecond

const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

// closedChan is returned by Done before the first Start.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

type sinkBox struct {
	s api.FaultSink
}

// Loop is the single-goroutine dispatch core. The goroutine started by
// Start alternately runs due scheduled actions and parks in the poller
// until the next deadline or an I/O event. Every public method except the
// internal run path is safe for concurrent use from any goroutine,
// including from callbacks executing on the loop itself.
type Loop struct {
	poller api.Poller
	reg    registry

	state atomic.Int32
	mu    sync.Mutex // serializes Start/Stop transitions
	done  chan struct{}

	sink       atomic.Pointer[sinkBox]
	clock      func() time.Time
	lockThread bool
	log        *zap.Logger
}

// New builds a stopped loop around the poller. The poller is owned by the
// caller; the loop parks in it and wakes it but never closes it.
func New(p api.Poller, opts ...Option) *Loop {
	if p == nil {
		panic("reactor: nil poller")
	}
	l := &Loop{
		poller: p,
		clock:  time.Now,
		log:    logging.L().Named("reactor"),
	}
	l.sink.Store(&sinkBox{s: LogSink(l.log)})
	l.done = closedChan
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start launches the loop goroutine. It fails with api.ErrAlreadyRunning
// if the loop is running or still winding down from a previous Stop; a
// fully stopped loop can be started again.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Load() != stateStopped {
		return api.ErrAlreadyRunning
	}
	l.done = make(chan struct{})
	l.state.Store(stateRunning)
	go l.run(l.done)
	return nil
}

// Stop asks the loop goroutine to exit and wakes it if parked. It does not
// wait: Stop is safe to call from a callback running on the loop itself.
// Use Done to join. Pending scheduled actions survive a stop and run if
// the loop is started again and they come due.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.CompareAndSwap(stateRunning, stateStopping) {
		return api.ErrNotRunning
	}
	l.poller.Wakeup()
	return nil
}

// Done returns a channel closed when the loop goroutine has fully exited.
// Before the first Start it is already closed.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Running reports whether the loop goroutine is live (running or stopping).
func (l *Loop) Running() bool { return l.state.Load() != stateStopped }

func (l *Loop) run(done chan struct{}) {
	if l.lockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer func() {
		l.state.Store(stateStopped)
		close(done)
	}()
	l.log.Debug("loop started")
	for l.state.Load() == stateRunning {
		l.runDue()
		if l.state.Load() != stateRunning {
			break
		}
		l.await()
	}
	l.log.Debug("loop stopped")
}

// runDue executes every action whose due time has arrived, in (due, seq)
// order, skipping cancelled entries.
func (l *Loop) runDue() {
	for {
		due, ok := l.reg.peekTime()
		if !ok || due.After(l.clock()) {
			return
		}
		a := l.reg.pop()
		if a == nil || a.Cancelled() {
			continue
		}
		l.invoke(a.fn)
	}
}

// invoke runs one callback with panic isolation. A panicking callback is
// converted to *api.PanicError and routed to the fault sink; the loop
// carries on with the next action.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			l.fault(&api.PanicError{Value: v, Stack: debug.Stack()})
		}
	}()
	fn()
}

// await parks in the poller until the next deadline, an I/O event, or a
// wakeup. With nothing scheduled it blocks indefinitely; Schedule and Stop
// interrupt it through the poller's wakeup channel.
//
// Readiness handlers run inside Poll on this goroutine, so the parked half
// of the iteration carries the same fault boundary as invoke: a panic
// unwinding out of an observer or codec becomes a *api.PanicError in the
// sink and the loop keeps running.
func (l *Loop) await() {
	defer func() {
		if v := recover(); v != nil {
			l.fault(&api.PanicError{Value: v, Stack: debug.Stack()})
		}
	}()
	timeout := time.Duration(-1)
	if due, ok := l.reg.peekTime(); ok {
		timeout = due.Sub(l.clock())
		if timeout < minWait {
			timeout = minWait
		}
	}
	if _, err := l.poller.Poll(timeout); err != nil {
		l.fault(fmt.Errorf("poller wait: %w", err))
	}
}

func (l *Loop) fault(err error) {
	l.sink.Load().s.OnFault(err)
}

// Schedule registers fn to run on the loop goroutine after delay and
// returns a handle for cancellation. A zero or negative delay makes it due
// immediately. The loop may be stopped; the action waits for the next run.
func (l *Loop) Schedule(delay time.Duration, fn func()) *Action {
	return l.queue(l.clock().Add(delay), fn)
}

// ScheduleAt registers fn to run on the loop goroutine at the absolute
// time at.
func (l *Loop) ScheduleAt(at time.Time, fn func()) *Action {
	return l.queue(at, fn)
}

// Post registers fn to run on the loop goroutine as soon as possible. It
// is the bridge for off-loop goroutines to touch loop-owned state.
func (l *Loop) Post(fn func()) *Action {
	return l.Schedule(0, fn)
}

func (l *Loop) queue(at time.Time, fn func()) *Action {
	if fn == nil {
		panic("reactor: nil action func")
	}
	a := &Action{fn: fn, due: at, loop: l}
	l.reg.push(a)
	// The loop may be parked on an older (or absent) deadline.
	l.poller.Wakeup()
	return a
}

// NextEventTime returns the due time of the earliest registered action and
// false when none is registered. The head entry may be cancelled and still
// reported: lazy cancellation leaves it in place until the loop polls it,
// and this reflects the deadline the loop actually sleeps toward.
func (l *Loop) NextEventTime() (time.Time, bool) {
	return l.reg.peekTime()
}

// QueueSize counts pending actions, cancelled-but-unpolled entries
// included.
func (l *Loop) QueueSize() int { return l.reg.size() }

// SetFaultSink replaces the sink receiving callback panics and poller
// errors. Takes effect for faults raised after the call.
func (l *Loop) SetFaultSink(s api.FaultSink) {
	if s == nil {
		panic("reactor: nil fault sink")
	}
	l.sink.Store(&sinkBox{s: s})
}

// Sink returns the current fault sink.
func (l *Loop) Sink() api.FaultSink { return l.sink.Load().s }

// Poller exposes the poller the loop parks in, for wiring channels to the
// same readiness source the loop drains.
func (l *Loop) Poller() api.Poller { return l.poller }
