// File: api/observer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// SocketObserver receives the lifecycle and packet stream of one socket.
//
// All callbacks run on the reactor loop goroutine, in event order, and never
// concurrently. One documented exception: opened/closed events that
// occurred before the observer was attached are replayed, still in order,
// synchronously on the goroutine calling Socket.Listen.
type SocketObserver interface {
	// OnOpened fires once, when the socket transitions to OPEN.
	OnOpened()

	// OnPacket delivers one decoded inbound packet. The slice is owned by
	// the observer; the runtime never reuses it.
	OnPacket(p []byte)

	// OnClosed fires once, when the socket reaches CLOSED. reason is nil for
	// a clean close (CloseAfterWrite drain or explicit Close) and carries
	// the I/O or codec error for an abrupt one.
	OnClosed(reason error)
}
