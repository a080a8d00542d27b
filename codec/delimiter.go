// File: codec/delimiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"bytes"
	"fmt"

	"github.com/momentics/hioload-eio/api"
)

// Delimiter frames packets with a trailing sentinel byte, in the style of
// newline-terminated text protocols. The delimiter is stripped from
// unpacked packets and appended by the writer; packet contents are not
// inspected for embedded delimiters.
type Delimiter struct {
	delim     byte
	maxPacket int
}

var (
	_ api.PacketReader = Delimiter{}
	_ api.PacketWriter = Delimiter{}
)

// NewDelimiter builds a codec splitting on delim. maxPacket bounds how far
// the reader scans for a delimiter before treating the stream as corrupt;
// values < 1 select DefaultMaxPayload.
func NewDelimiter(delim byte, maxPacket int) Delimiter {
	if maxPacket < 1 {
		maxPacket = DefaultMaxPayload
	}
	return Delimiter{delim: delim, maxPacket: maxPacket}
}

// NewLineCodec is the common case: newline-delimited packets bounded by
// DefaultMaxPayload.
func NewLineCodec() Delimiter {
	return NewDelimiter('\n', 0)
}

// Unpack extracts one delimited packet, excluding the delimiter itself.
// A buffer growing past the packet bound without a delimiter fails with
// api.ErrPacketTooLarge.
func (c Delimiter) Unpack(buf []byte) ([]byte, int, error) {
	i := bytes.IndexByte(buf, c.delim)
	if i < 0 {
		if len(buf) > c.maxPacket {
			return nil, 0, fmt.Errorf("codec: no delimiter within %d bytes: %w",
				c.maxPacket, api.ErrPacketTooLarge)
		}
		return nil, 0, nil
	}
	if i > c.maxPacket {
		return nil, 0, fmt.Errorf("codec: packet %d exceeds max %d: %w",
			i, c.maxPacket, api.ErrPacketTooLarge)
	}
	p := make([]byte, i)
	copy(p, buf[:i])
	return p, i + 1, nil
}

// Frame appends the delimiter.
func (c Delimiter) Frame(packet []byte) ([]byte, error) {
	if len(packet) > c.maxPacket {
		return nil, fmt.Errorf("codec: packet %d exceeds max %d: %w",
			len(packet), c.maxPacket, api.ErrPacketTooLarge)
	}
	out := make([]byte, 0, len(packet)+1)
	out = append(out, packet...)
	out = append(out, c.delim)
	return out, nil
}
