// File: codec/varint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/momentics/hioload-eio/api"
)

// Varint frames packets with a protobuf varint byte-count prefix, wire
// compatible with length-delimited protobuf streams.
type Varint struct {
	maxPayload int
}

var (
	_ api.PacketReader = Varint{}
	_ api.PacketWriter = Varint{}
)

// NewVarint builds a varint-prefixed codec. maxPayload bounds accepted
// packet sizes; values < 1 select DefaultMaxPayload.
func NewVarint(maxPayload int) Varint {
	if maxPayload < 1 {
		maxPayload = DefaultMaxPayload
	}
	return Varint{maxPayload: maxPayload}
}

// Unpack extracts one varint-prefixed packet. A truncated prefix or body
// reports incomplete; a malformed or oversized prefix is a framing error.
func (c Varint) Unpack(buf []byte) ([]byte, int, error) {
	size, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		err := protowire.ParseError(n)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("codec: bad varint prefix: %w", err)
	}
	if size > uint64(c.maxPayload) {
		return nil, 0, fmt.Errorf("codec: declared payload %d exceeds max %d: %w",
			size, c.maxPayload, api.ErrPacketTooLarge)
	}
	total := n + int(size)
	if len(buf) < total {
		return nil, 0, nil
	}
	p := make([]byte, size)
	copy(p, buf[n:total])
	return p, total, nil
}

// Frame prepends the varint length.
func (c Varint) Frame(packet []byte) ([]byte, error) {
	if len(packet) > c.maxPayload {
		return nil, fmt.Errorf("codec: payload %d exceeds max %d: %w",
			len(packet), c.maxPayload, api.ErrPacketTooLarge)
	}
	out := make([]byte, 0, protowire.SizeVarint(uint64(len(packet)))+len(packet))
	out = protowire.AppendVarint(out, uint64(len(packet)))
	return append(out, packet...), nil
}
