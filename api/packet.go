// File: api/packet.go
// Author: momentics <momentics@gmail.com>
//
// Pluggable packet framing: the strategies that delimit discrete
// application packets within a continuous byte stream.

package api

// PacketReader decodes discrete packets out of the inbound byte stream.
//
// Unpack inspects buf, which always starts at a packet boundary, and
// extracts at most one complete packet, reporting how many bytes of buf it
// consumed. When buf does not yet hold a complete packet it returns
// (nil, 0, nil) and the socket retries after more bytes arrive. The returned
// packet must not alias buf: the socket reuses that memory.
//
// A non-nil error marks the stream unrecoverable; the socket closes abruptly
// with the error as the observer's close reason.
//
// Readers run exclusively on the reactor loop goroutine and need not be safe
// for concurrent use.
type PacketReader interface {
	Unpack(buf []byte) (packet []byte, n int, err error)
}

// PacketWriter encodes one outbound packet into its wire form.
//
// Frame returns the byte sequence to transmit for packet. Partial
// transmission is resumed by the socket, which keeps an offset into the
// framed buffer, so Frame is called exactly once per packet.
//
// Writers run exclusively on the reactor loop goroutine.
type PacketWriter interface {
	Frame(packet []byte) ([]byte, error)
}
