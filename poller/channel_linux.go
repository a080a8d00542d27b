//go:build linux

// File: poller/channel_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poller

import (
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-eio/api"
)

// FDChannel adapts a raw file descriptor to api.Channel. The constructor
// switches the descriptor to non-blocking mode and the channel owns it
// from then on: Close releases it.
type FDChannel struct {
	fd     int
	closed atomic.Bool
}

var (
	_ api.Channel = (*FDChannel)(nil)
	_ api.Fder    = (*FDChannel)(nil)
)

// NewFDChannel wraps fd, forcing it non-blocking.
func NewFDChannel(fd int) (*FDChannel, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock fd %d: %w", fd, err)
	}
	return &FDChannel{fd: fd}, nil
}

// Fd implements api.Fder.
func (c *FDChannel) Fd() uintptr { return uintptr(c.fd) }

// Read fills p with available bytes. No pending bytes map to
// api.ErrWouldBlock, a zero-byte read to io.EOF.
func (c *FDChannel) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("read fd %d: %w", c.fd, err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

// Write transmits as many bytes of p as the kernel accepts. A full socket
// buffer maps to api.ErrWouldBlock.
func (c *FDChannel) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("write fd %d: %w", c.fd, err)
		default:
			return n, nil
		}
	}
}

// Close releases the descriptor. Idempotent.
func (c *FDChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(c.fd)
}
