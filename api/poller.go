// File: api/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll-mode multiplexer contract: readiness registration, bounded blocking
// waits, and the cross-goroutine wakeup primitive the reactor loop rests on.

package api

import "time"

// ReadyHandler receives readiness callbacks for one registered channel.
// All methods are invoked on the goroutine calling Poller.Poll; with a
// reactor loop attached that is the loop goroutine, which is what makes
// handler implementations lock-free by construction.
type ReadyHandler interface {
	// OnReadable fires when the channel has bytes (or EOF) to read.
	OnReadable()

	// OnWritable fires when the channel can accept outbound bytes and write
	// interest is armed.
	OnWritable()

	// OnHangup fires when the peer hung up or the channel failed. err
	// carries the platform reason when known; nil means a plain hangup.
	OnHangup(err error)
}

// Poller multiplexes readiness over a set of channels. It is the runtime's
// only suspension point: the reactor loop parks inside Poll, and every
// producer-side mutation (schedule, cancel, socket write) calls Wakeup to
// interrupt the park.
type Poller interface {
	// Register adds a channel to the interest set with no readiness armed;
	// callers arm read and write interest through Mod. Hangup conditions
	// are always delivered.
	Register(ch Channel, h ReadyHandler) error

	// Mod rearms the interest set of a registered channel.
	Mod(ch Channel, read, write bool) error

	// Deregister removes the channel from the interest set.
	Deregister(ch Channel) error

	// Poll dispatches pending readiness to registered handlers and returns
	// the number of channels dispatched. timeout < 0 blocks until readiness
	// or Wakeup; timeout == 0 never blocks; otherwise Poll blocks at most
	// the given duration.
	Poll(timeout time.Duration) (int, error)

	// Wakeup interrupts an in-progress Poll, or primes the next Poll to
	// return immediately. Callable from any goroutine, never blocks, and is
	// a harmless no-op when nothing is parked.
	Wakeup()

	// Close releases the poller. Subsequent operations fail with
	// ErrPollerClosed.
	Close() error
}
