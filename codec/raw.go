// File: codec/raw.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import "github.com/momentics/hioload-eio/api"

// RawReader treats every non-empty read chunk as one packet. Boundaries
// follow the transport's delivery, so it suits datagram-like traffic or
// protocols that carry their own structure.
type RawReader struct{}

var _ api.PacketReader = RawReader{}

// Unpack returns the whole buffer as a single packet.
func (RawReader) Unpack(buf []byte) ([]byte, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	p := make([]byte, len(buf))
	copy(p, buf)
	return p, len(buf), nil
}

// RawWriter sends packets unframed.
type RawWriter struct{}

var _ api.PacketWriter = RawWriter{}

// Frame returns the packet unchanged.
func (RawWriter) Frame(packet []byte) ([]byte, error) {
	return packet, nil
}
