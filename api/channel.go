// File: api/channel.go
// Author: momentics <momentics@gmail.com>
//
// Byte-stream channel abstraction consumed by the poller and socket layers.

package api

import "io"

// Channel is a non-blocking byte stream, usually a connected network socket.
//
// Read fills p with immediately available bytes. It returns ErrWouldBlock
// when nothing is buffered and io.EOF once the peer has shut down the
// stream. Write transmits as many bytes of p as currently possible and
// returns the count; it returns ErrWouldBlock when nothing can be written.
// Both may transfer fewer bytes than requested.
//
// Channels are driven from the reactor loop goroutine; implementations need
// to tolerate one concurrent reader/writer plus Close, nothing more.
type Channel interface {
	io.ReadWriteCloser
}

// Fder is the optional capability fd-based pollers require from a Channel.
type Fder interface {
	Fd() uintptr
}
