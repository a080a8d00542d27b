// File: fake/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"bytes"
	"io"
	"net"
	"sync"

	"github.com/momentics/hioload-eio/api"
)

// Channel is a scriptable in-memory api.Channel. Tests feed inbound bytes
// with FeedRead, signal peer shutdown with FeedEOF, inspect outbound bytes
// with Written, and inject faults with the Set hooks. All methods are safe
// for concurrent use.
type Channel struct {
	mu       sync.Mutex
	pending  bytes.Buffer
	eof      bool
	readErr  error
	wrote    bytes.Buffer
	writeErr error
	// writeLimit caps bytes accepted per Write call to force partial
	// writes; 0 means unlimited.
	writeLimit   int
	writeBlocked bool
	closed       bool
	poller       *Poller
}

var _ api.Channel = (*Channel)(nil)

func NewChannel() *Channel {
	return &Channel{}
}

// Read drains previously fed bytes, then reports EOF if fed, otherwise
// api.ErrWouldBlock. An injected read error is returned once, first.
func (c *Channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.readErr != nil {
		err := c.readErr
		c.readErr = nil
		return 0, err
	}
	if c.pending.Len() > 0 {
		n, _ := c.pending.Read(p)
		return n, nil
	}
	if c.eof {
		return 0, io.EOF
	}
	return 0, api.ErrWouldBlock
}

// Write records the bytes, honoring the configured per-call limit and any
// injected blocking or error state.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.writeErr != nil {
		err := c.writeErr
		c.writeErr = nil
		return 0, err
	}
	if c.writeBlocked {
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.wrote.Write(p[:n])
	return n, nil
}

// Close marks the channel closed. Further reads and writes fail with
// net.ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.notify()
	return nil
}

// FeedRead appends inbound bytes for subsequent Reads and marks the
// channel readable.
func (c *Channel) FeedRead(p []byte) {
	c.mu.Lock()
	c.pending.Write(p)
	c.mu.Unlock()
	c.notify()
}

// FeedEOF makes Read report io.EOF once buffered bytes are drained.
func (c *Channel) FeedEOF() {
	c.mu.Lock()
	c.eof = true
	c.mu.Unlock()
	c.notify()
}

// SetReadErr injects a one-shot error returned by the next Read.
func (c *Channel) SetReadErr(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
	c.notify()
}

// SetWriteErr injects a one-shot error returned by the next Write.
func (c *Channel) SetWriteErr(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
	c.notify()
}

// SetWriteLimit caps bytes accepted per Write call; 0 removes the cap.
func (c *Channel) SetWriteLimit(n int) {
	c.mu.Lock()
	c.writeLimit = n
	c.mu.Unlock()
}

// SetWriteBlocked toggles api.ErrWouldBlock on Write and suppresses write
// readiness while set.
func (c *Channel) SetWriteBlocked(blocked bool) {
	c.mu.Lock()
	c.writeBlocked = blocked
	c.mu.Unlock()
	c.notify()
}

// Written returns a copy of every byte accepted so far.
func (c *Channel) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.wrote.Len())
	copy(out, c.wrote.Bytes())
	return out
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) readReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.pending.Len() > 0 || c.eof || c.readErr != nil
}

func (c *Channel) writeReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return !c.writeBlocked
}

func (c *Channel) attach(p *Poller) {
	c.mu.Lock()
	c.poller = p
	c.mu.Unlock()
}

func (c *Channel) detach() {
	c.mu.Lock()
	c.poller = nil
	c.mu.Unlock()
}

func (c *Channel) notify() {
	c.mu.Lock()
	p := c.poller
	c.mu.Unlock()
	if p != nil {
		p.notify()
	}
}
