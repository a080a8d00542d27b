// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-goroutine dispatch loop at the core of
// hioload-eio: due scheduled actions are drained first, then the loop parks
// in the I/O poller with a wait bounded by the next action deadline. All
// user-visible callbacks (scheduled actions, socket observers, packet
// codecs) execute serially on the loop goroutine.
package reactor
