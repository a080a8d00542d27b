// File: api/errors.go
// Package api defines the shared error surface of hioload-eio.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "errors"

// Sentinel errors reported by the runtime. Callers test for them with
// errors.Is; call sites wrap them with fmt.Errorf("...: %w", err) to add
// context.
var (
	// ErrWouldBlock is returned by a Channel when the operation cannot make
	// progress without blocking: readers receive it when no bytes are
	// available, writers when the outbound buffer is full.
	ErrWouldBlock = errors.New("operation would block")

	// ErrAlreadyRunning is returned by Loop.Start while the loop is RUNNING
	// or still draining a previous Stop.
	ErrAlreadyRunning = errors.New("loop already running")

	// ErrNotRunning is returned by Loop.Stop when the loop is STOPPED.
	ErrNotRunning = errors.New("loop is not running")

	// ErrAlreadyListening is returned by Socket.Listen on the second and any
	// later attempt to attach an observer.
	ErrAlreadyListening = errors.New("socket observer already attached")

	// ErrNotRegistered is returned by a Poller for operations on a channel
	// that was never registered or was already deregistered.
	ErrNotRegistered = errors.New("channel not registered")

	// ErrPollerClosed is returned by Poller operations after Close.
	ErrPollerClosed = errors.New("poller is closed")

	// ErrPacketTooLarge is returned by packet codecs when a declared or
	// accumulated payload exceeds the configured maximum.
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")

	// ErrShutdown is returned by runtime operations after Shutdown has
	// begun.
	ErrShutdown = errors.New("runtime is shut down")
)
