//go:build linux

// File: poller/poller_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Exercises the epoll poller against real descriptors: Unix socket pairs
// for data readiness and the eventfd wakeup path.

package poller_test

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-eio/api"
	"github.com/momentics/hioload-eio/fake"
	"github.com/momentics/hioload-eio/poller"
)

type recorder struct {
	mu       sync.Mutex
	readable int
	writable int
	hangups  []error
}

func (r *recorder) OnReadable() {
	r.mu.Lock()
	r.readable++
	r.mu.Unlock()
}

func (r *recorder) OnWritable() {
	r.mu.Lock()
	r.writable++
	r.mu.Unlock()
}

func (r *recorder) OnHangup(err error) {
	r.mu.Lock()
	r.hangups = append(r.hangups, err)
	r.mu.Unlock()
}

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readable, r.writable, len(r.hangups)
}

func newPoller(t *testing.T) api.Poller {
	t.Helper()
	p, err := poller.NewBatch(8)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// newPair returns both ends of a Unix stream socket pair as FDChannels.
func newPair(t *testing.T) (*poller.FDChannel, *poller.FDChannel) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	a, err := poller.NewFDChannel(fds[0])
	if err != nil {
		t.Fatalf("wrap fd: %v", err)
	}
	b, err := poller.NewFDChannel(fds[1])
	if err != nil {
		t.Fatalf("wrap fd: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestPollDispatchesReadable(t *testing.T) {
	p := newPoller(t)
	local, peer := newPair(t)
	rec := &recorder{}

	if err := p.Register(local, rec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Registration arms nothing: pending bytes stay invisible.
	if _, err := peer.Write([]byte("hi")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	if n, err := p.Poll(20 * time.Millisecond); err != nil || n != 0 {
		t.Fatalf("Poll before arming = (%d, %v), want (0, nil)", n, err)
	}

	if err := p.Mod(local, true, false); err != nil {
		t.Fatalf("Mod: %v", err)
	}
	if n, err := p.Poll(time.Second); err != nil || n != 1 {
		t.Fatalf("Poll = (%d, %v), want (1, nil)", n, err)
	}
	if r, _, _ := rec.counts(); r != 1 {
		t.Fatalf("OnReadable fired %d times, want 1", r)
	}

	buf := make([]byte, 16)
	n, err := local.Read(buf)
	if err != nil || string(buf[:n]) != "hi" {
		t.Fatalf("Read = (%q, %v), want (hi, nil)", buf[:n], err)
	}

	// Level-triggered and drained: nothing further to report.
	if n, err := p.Poll(20 * time.Millisecond); err != nil || n != 0 {
		t.Fatalf("Poll after drain = (%d, %v), want (0, nil)", n, err)
	}
}

func TestPollDispatchesWritable(t *testing.T) {
	p := newPoller(t)
	local, _ := newPair(t)
	rec := &recorder{}

	if err := p.Register(local, rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Mod(local, false, true); err != nil {
		t.Fatalf("Mod: %v", err)
	}

	// An idle stream socket has send buffer to spare.
	if n, err := p.Poll(time.Second); err != nil || n != 1 {
		t.Fatalf("Poll = (%d, %v), want (1, nil)", n, err)
	}
	if _, w, _ := rec.counts(); w != 1 {
		t.Fatalf("OnWritable fired %d times, want 1", w)
	}
}

func TestWakeupInterruptsParkedPoll(t *testing.T) {
	p := newPoller(t)

	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(-1)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Wakeup()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("interrupted Poll returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wakeup did not interrupt the parked Poll")
	}
}

func TestWakeupPrimesNextPoll(t *testing.T) {
	p := newPoller(t)
	p.Wakeup()

	start := time.Now()
	if n, err := p.Poll(-1); err != nil || n != 0 {
		t.Fatalf("Poll = (%d, %v), want (0, nil)", n, err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("primed Poll did not return promptly")
	}

	// The wakeup token is consumed with the event.
	start = time.Now()
	if n, err := p.Poll(40 * time.Millisecond); err != nil || n != 0 {
		t.Fatalf("second Poll = (%d, %v), want timeout", n, err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("second Poll returned after %v, want the timeout honored", elapsed)
	}
}

func TestPollTimeout(t *testing.T) {
	p := newPoller(t)

	start := time.Now()
	n, err := p.Poll(40 * time.Millisecond)
	if err != nil || n != 0 {
		t.Fatalf("Poll = (%d, %v), want (0, nil)", n, err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("Poll returned after %v, want ~40ms", elapsed)
	}
}

func TestPeerCloseDeliversHangup(t *testing.T) {
	p := newPoller(t)
	local, peer := newPair(t)
	rec := &recorder{}

	if err := p.Register(local, rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := peer.Close(); err != nil {
		t.Fatalf("peer close: %v", err)
	}

	// Hangup delivery does not depend on armed interest.
	if n, err := p.Poll(time.Second); err != nil || n != 1 {
		t.Fatalf("Poll = (%d, %v), want (1, nil)", n, err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.hangups) != 1 {
		t.Fatalf("OnHangup fired %d times, want 1", len(rec.hangups))
	}
	// A plain peer shutdown carries no socket error.
	if rec.hangups[0] != nil {
		t.Fatalf("hangup reason = %v, want nil", rec.hangups[0])
	}
}

func TestDeregisterStopsDispatch(t *testing.T) {
	p := newPoller(t)
	local, peer := newPair(t)
	rec := &recorder{}

	if err := p.Register(local, rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Mod(local, true, false); err != nil {
		t.Fatalf("Mod: %v", err)
	}
	if _, err := peer.Write([]byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	if err := p.Deregister(local); err != nil {
		t.Fatalf("Deregister: %v", err)
	}

	if n, err := p.Poll(30 * time.Millisecond); err != nil || n != 0 {
		t.Fatalf("Poll after Deregister = (%d, %v), want (0, nil)", n, err)
	}
	if err := p.Mod(local, true, false); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("Mod after Deregister: %v, want api.ErrNotRegistered", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	p := newPoller(t)
	local, _ := newPair(t)
	rec := &recorder{}

	// Descriptor-less channels cannot be epoll-polled.
	if err := p.Register(fake.NewChannel(), rec); err == nil {
		t.Fatal("Register accepted a channel without a descriptor")
	}

	if err := p.Register(local, rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(local, rec); err == nil {
		t.Fatal("duplicate Register succeeded")
	}
}

func TestClosedPollerFailsFast(t *testing.T) {
	p, err := poller.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v, want nil", err)
	}

	if _, err := p.Poll(0); !errors.Is(err, api.ErrPollerClosed) {
		t.Fatalf("Poll on closed poller: %v, want api.ErrPollerClosed", err)
	}
	local, _ := newPair(t)
	if err := p.Register(local, &recorder{}); !errors.Is(err, api.ErrPollerClosed) {
		t.Fatalf("Register on closed poller: %v, want api.ErrPollerClosed", err)
	}
}

func TestFDChannelRoundTrip(t *testing.T) {
	local, peer := newPair(t)

	buf := make([]byte, 16)
	if _, err := local.Read(buf); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("Read on idle channel: %v, want api.ErrWouldBlock", err)
	}

	if n, err := peer.Write([]byte("hello")); err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	n, err := local.Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Read = (%q, %v), want (hello, nil)", buf[:n], err)
	}

	if err := peer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := local.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("Read after peer close: %v, want io.EOF", err)
	}
	if err := peer.Close(); err != nil {
		t.Fatalf("repeat Close: %v, want nil", err)
	}
}
