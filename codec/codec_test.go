// File: codec/codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/hioload-eio/api"
	"github.com/momentics/hioload-eio/codec"
)

func TestRawReaderCopiesWholeBuffer(t *testing.T) {
	r := codec.RawReader{}

	buf := []byte("chunk")
	p, n, err := r.Unpack(buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if n != len(buf) || !bytes.Equal(p, buf) {
		t.Fatalf("got packet %q consumed %d, want %q consumed %d", p, n, buf, len(buf))
	}

	buf[0] = 'X'
	if p[0] == 'X' {
		t.Fatal("packet aliases the input buffer")
	}

	if p, n, err := r.Unpack(nil); p != nil || n != 0 || err != nil {
		t.Fatalf("empty buffer: got (%v, %d, %v), want (nil, 0, nil)", p, n, err)
	}
}

func TestRawWriterPassesThrough(t *testing.T) {
	w := codec.RawWriter{}
	in := []byte("payload")
	out, err := w.Frame(in)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("got %q, want %q", out, in)
	}
}

func TestLengthPrefixUnpack(t *testing.T) {
	c := codec.NewLengthPrefix(2, 0)

	cases := []struct {
		name    string
		buf     []byte
		packet  []byte
		n       int
		partial bool
	}{
		{name: "empty", buf: nil, partial: true},
		{name: "partial header", buf: []byte{0x00}, partial: true},
		{name: "partial payload", buf: []byte{0x00, 0x03, 'a', 'b'}, partial: true},
		{name: "exact", buf: []byte{0x00, 0x03, 'a', 'b', 'c'}, packet: []byte("abc"), n: 5},
		{name: "trailing data", buf: []byte{0x00, 0x02, 'h', 'i', 'z'}, packet: []byte("hi"), n: 4},
		{name: "zero length", buf: []byte{0x00, 0x00, 'x'}, packet: []byte{}, n: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, n, err := c.Unpack(tc.buf)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if tc.partial {
				if p != nil || n != 0 {
					t.Fatalf("got (%v, %d), want incomplete", p, n)
				}
				return
			}
			if !bytes.Equal(p, tc.packet) || n != tc.n {
				t.Fatalf("got packet %q consumed %d, want %q consumed %d", p, n, tc.packet, tc.n)
			}
		})
	}
}

func TestLengthPrefixHeaderWidths(t *testing.T) {
	payload := []byte("roundtrip")
	for width := 1; width <= 4; width++ {
		c := codec.NewLengthPrefix(width, 0)
		framed, err := c.Frame(payload)
		if err != nil {
			t.Fatalf("width %d: Frame: %v", width, err)
		}
		if len(framed) != width+len(payload) {
			t.Fatalf("width %d: framed %d bytes, want %d", width, len(framed), width+len(payload))
		}
		p, n, err := c.Unpack(framed)
		if err != nil {
			t.Fatalf("width %d: Unpack: %v", width, err)
		}
		if !bytes.Equal(p, payload) || n != len(framed) {
			t.Fatalf("width %d: got %q consumed %d", width, p, n)
		}
	}
}

func TestLengthPrefixOversize(t *testing.T) {
	c := codec.NewLengthPrefix(2, 8)

	if _, _, err := c.Unpack([]byte{0x01, 0x00}); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("Unpack oversized header: got %v, want ErrPacketTooLarge", err)
	}
	if _, err := c.Frame(make([]byte, 9)); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("Frame oversized packet: got %v, want ErrPacketTooLarge", err)
	}

	// 4-byte headers with the high bit set must be rejected on every
	// platform; accumulating the length in a 32-bit int would wrap them
	// negative and skip the bound check.
	wide := codec.NewLengthPrefix(4, 0)
	for _, hdr := range [][]byte{
		{0x80, 0x00, 0x00, 0x00},
		{0xff, 0xff, 0xff, 0xff},
	} {
		if _, _, err := wide.Unpack(hdr); !errors.Is(err, api.ErrPacketTooLarge) {
			t.Fatalf("Unpack header % x: got %v, want ErrPacketTooLarge", hdr, err)
		}
	}
}

func TestLengthPrefixNarrowHeaderClampsBound(t *testing.T) {
	// A 1-byte header cannot express more than 255 bytes regardless of the
	// requested bound.
	c := codec.NewLengthPrefix(1, 1<<20)
	if _, err := c.Frame(make([]byte, 256)); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("got %v, want ErrPacketTooLarge", err)
	}
	if _, err := c.Frame(make([]byte, 255)); err != nil {
		t.Fatalf("255-byte packet under 1-byte header: %v", err)
	}
}

func TestLengthPrefixBadHeaderSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for header size 5")
		}
	}()
	codec.NewLengthPrefix(5, 0)
}

func TestDelimiterUnpack(t *testing.T) {
	c := codec.NewLineCodec()

	if p, n, err := c.Unpack([]byte("no newline yet")); p != nil || n != 0 || err != nil {
		t.Fatalf("got (%v, %d, %v), want incomplete", p, n, err)
	}

	p, n, err := c.Unpack([]byte("first\nsecond\n"))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if string(p) != "first" || n != 6 {
		t.Fatalf("got packet %q consumed %d, want %q consumed 6", p, n, "first")
	}

	// Empty line is a legal empty packet.
	p, n, err = c.Unpack([]byte("\nrest"))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(p) != 0 || p == nil || n != 1 {
		t.Fatalf("empty line: got (%v, %d), want (empty, 1)", p, n)
	}
}

func TestDelimiterRunawayStream(t *testing.T) {
	c := codec.NewDelimiter('\n', 4)
	if _, _, err := c.Unpack([]byte("toolong")); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("got %v, want ErrPacketTooLarge", err)
	}
}

func TestDelimiterFrame(t *testing.T) {
	c := codec.NewLineCodec()
	out, err := c.Frame([]byte("hello"))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("got %q, want %q", out, "hello\n")
	}
}

func TestVarintRoundTrip(t *testing.T) {
	c := codec.NewVarint(0)
	payload := bytes.Repeat([]byte{0xAB}, 300) // forces a 2-byte varint prefix

	framed, err := c.Frame(payload)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(framed) != 2+len(payload) {
		t.Fatalf("framed %d bytes, want %d", len(framed), 2+len(payload))
	}

	p, n, err := c.Unpack(framed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(p, payload) || n != len(framed) {
		t.Fatalf("got %d bytes consumed %d, want %d consumed %d", len(p), n, len(payload), len(framed))
	}
}

func TestVarintIncomplete(t *testing.T) {
	c := codec.NewVarint(0)

	// Continuation bit set with no following byte: prefix itself truncated.
	if p, n, err := c.Unpack([]byte{0x80}); p != nil || n != 0 || err != nil {
		t.Fatalf("truncated prefix: got (%v, %d, %v), want incomplete", p, n, err)
	}
	// Complete prefix, truncated body.
	if p, n, err := c.Unpack([]byte{0x05, 'a', 'b'}); p != nil || n != 0 || err != nil {
		t.Fatalf("truncated body: got (%v, %d, %v), want incomplete", p, n, err)
	}
}

func TestVarintOversize(t *testing.T) {
	c := codec.NewVarint(16)
	framed, err := codec.NewVarint(0).Frame(make([]byte, 17))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if _, _, err := c.Unpack(framed); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("Unpack: got %v, want ErrPacketTooLarge", err)
	}
	if _, err := c.Frame(make([]byte, 17)); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Fatalf("Frame: got %v, want ErrPacketTooLarge", err)
	}
}

func TestUnpackDoesNotAliasInput(t *testing.T) {
	codecs := map[string]api.PacketReader{
		"raw":          codec.RawReader{},
		"lengthprefix": codec.NewLengthPrefix(2, 0),
		"delimiter":    codec.NewLineCodec(),
		"varint":       codec.NewVarint(0),
	}
	buffers := map[string][]byte{
		"raw":          []byte("datadata"),
		"lengthprefix": {0x00, 0x04, 'd', 'a', 't', 'a'},
		"delimiter":    []byte("data\n"),
		"varint":       {0x04, 'd', 'a', 't', 'a'},
	}
	for name, r := range codecs {
		buf := buffers[name]
		p, _, err := r.Unpack(buf)
		if err != nil {
			t.Fatalf("%s: Unpack: %v", name, err)
		}
		want := string(p)
		for i := range buf {
			buf[i] = 0xFF
		}
		if string(p) != want {
			t.Fatalf("%s: packet mutated with input buffer", name)
		}
	}
}
