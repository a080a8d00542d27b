// File: socket/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import "github.com/momentics/hioload-eio/api"

// Option configures a Socket at Attach time.
type Option func(*Socket)

// WithMaxQueueSize bounds the outbound queue to n bytes; n < 1 leaves it
// unbounded (the default).
func WithMaxQueueSize(n int64) Option {
	return func(s *Socket) {
		s.maxQueue = n
	}
}

// WithReadBufferSize sizes the scratch buffer used for each channel read.
// Values < 1 keep DefaultReadBuffer.
func WithReadBufferSize(n int) Option {
	return func(s *Socket) {
		if n >= 1 {
			s.readBufSize = n
		}
	}
}

// WithPacketReader selects the inbound framing strategy. The default is
// codec.RawReader, which treats every read chunk as one packet.
func WithPacketReader(r api.PacketReader) Option {
	return func(s *Socket) {
		if r == nil {
			panic("socket: nil packet reader")
		}
		s.reader = r
	}
}

// WithPacketWriter selects the outbound framing strategy. The default is
// codec.RawWriter, which transmits packets unframed.
func WithPacketWriter(w api.PacketWriter) Option {
	return func(s *Socket) {
		if w == nil {
			panic("socket: nil packet writer")
		}
		s.writer = w
	}
}

// WithCloseFunc registers a hook invoked on the loop goroutine after the
// socket reaches StateClosed, following the observer notification. Hooks
// accumulate: each one runs after those registered before it. The facade
// registers one to drop its tracking entry.
func WithCloseFunc(fn func(*Socket)) Option {
	return func(s *Socket) {
		if prev := s.closeFn; prev != nil {
			s.closeFn = func(sk *Socket) {
				prev(sk)
				fn(sk)
			}
			return
		}
		s.closeFn = fn
	}
}
