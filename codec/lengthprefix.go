// File: codec/lengthprefix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"fmt"

	"github.com/momentics/hioload-eio/api"
)

// DefaultMaxPayload caps packet payloads when no explicit limit is given.
const DefaultMaxPayload = 1 << 20 // 1 MiB

// LengthPrefix frames packets with a fixed-width big-endian byte-count
// header of 1 to 4 bytes. The zero-length packet is legal and round-trips
// as a bare header.
type LengthPrefix struct {
	headerSize int
	maxPayload int
}

var (
	_ api.PacketReader = LengthPrefix{}
	_ api.PacketWriter = LengthPrefix{}
)

// NewLengthPrefix builds a codec with the given header width in bytes
// (1..4). maxPayload bounds accepted packet sizes; values < 1 select
// DefaultMaxPayload. The effective bound is additionally clamped to what
// the header width can represent.
func NewLengthPrefix(headerSize, maxPayload int) LengthPrefix {
	if headerSize < 1 || headerSize > 4 {
		panic(fmt.Sprintf("codec: header size %d out of range 1..4", headerSize))
	}
	if maxPayload < 1 {
		maxPayload = DefaultMaxPayload
	}
	if ceil := headerCeiling(headerSize); maxPayload > ceil {
		maxPayload = ceil
	}
	return LengthPrefix{headerSize: headerSize, maxPayload: maxPayload}
}

// headerCeiling is the largest length a header of the given width encodes.
func headerCeiling(headerSize int) int {
	if headerSize >= 4 {
		return 1<<31 - 1
	}
	return 1<<(8*headerSize) - 1
}

// Unpack extracts one length-prefixed packet. It reports an incomplete
// buffer with (nil, 0, nil) and a header exceeding the payload bound with
// api.ErrPacketTooLarge.
func (c LengthPrefix) Unpack(buf []byte) ([]byte, int, error) {
	if len(buf) < c.headerSize {
		return nil, 0, nil
	}
	// Accumulated as int64: a 4-byte header with the high bit set must not
	// wrap negative on 32-bit ints and slip past the bound check.
	var declared int64
	for _, b := range buf[:c.headerSize] {
		declared = declared<<8 | int64(b)
	}
	if declared > int64(c.maxPayload) {
		return nil, 0, fmt.Errorf("codec: declared payload %d exceeds max %d: %w",
			declared, c.maxPayload, api.ErrPacketTooLarge)
	}
	size := int(declared)
	if len(buf) < c.headerSize+size {
		return nil, 0, nil
	}
	p := make([]byte, size)
	copy(p, buf[c.headerSize:c.headerSize+size])
	return p, c.headerSize + size, nil
}

// Frame prepends the big-endian length header. Packets beyond the payload
// bound fail with api.ErrPacketTooLarge.
func (c LengthPrefix) Frame(packet []byte) ([]byte, error) {
	if len(packet) > c.maxPayload {
		return nil, fmt.Errorf("codec: payload %d exceeds max %d: %w",
			len(packet), c.maxPayload, api.ErrPacketTooLarge)
	}
	out := make([]byte, c.headerSize+len(packet))
	size := len(packet)
	for i := c.headerSize - 1; i >= 0; i-- {
		out[i] = byte(size)
		size >>= 8
	}
	copy(out[c.headerSize:], packet)
	return out, nil
}
