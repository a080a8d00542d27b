// File: facade/eio_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-eio/api"
	"github.com/momentics/hioload-eio/control"
	"github.com/momentics/hioload-eio/facade"
	"github.com/momentics/hioload-eio/fake"
	"github.com/momentics/hioload-eio/socket"
)

func newRuntime(t *testing.T, cfg *control.Config) *facade.Runtime {
	t.Helper()
	rt, err := facade.NewWithPoller(cfg, fake.NewPoller())
	if err != nil {
		t.Fatalf("NewWithPoller: %v", err)
	}
	return rt
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestRuntimeLifecycle(t *testing.T) {
	rt := newRuntime(t, nil)

	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rt.Start(); !errors.Is(err, api.ErrAlreadyRunning) {
		t.Fatalf("second Start: %v, want api.ErrAlreadyRunning", err)
	}

	ch := fake.NewChannel()
	s, err := rt.Attach(ch)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	obs := fake.NewObserver()
	if err := s.Listen(obs); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if n := rt.SocketCount(); n != 1 {
		t.Fatalf("SocketCount = %d, want 1", n)
	}

	ch.FeedRead([]byte("ping"))
	waitFor(t, func() bool { return len(obs.Packets()) == 1 }, "inbound packet")

	stats := rt.Stats()
	if got := stats["sockets_open"]; got != 1 {
		t.Errorf("sockets_open = %v, want 1", got)
	}
	if got := stats["loop_running"]; got != true {
		t.Errorf("loop_running = %v, want true", got)
	}
	if got := stats["bytes_read_total"]; got != int64(4) {
		t.Errorf("bytes_read_total = %v, want int64(4)", got)
	}
	if got := stats["sockets_attached"]; got != int64(1) {
		t.Errorf("sockets_attached = %v, want int64(1)", got)
	}

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !obs.Closed() {
		t.Fatal("socket not closed by Shutdown")
	}
	if err := obs.Reason(); err != nil {
		t.Fatalf("shutdown close reason = %v, want nil", err)
	}
	if n := rt.SocketCount(); n != 0 {
		t.Fatalf("SocketCount = %d after Shutdown, want 0", n)
	}
	select {
	case <-rt.Loop().Done():
	default:
		t.Fatal("loop still live after Shutdown")
	}

	// The byte totals move from live sums to the closed-socket counters.
	if got := rt.Stats()["bytes_read_total"]; got != int64(4) {
		t.Errorf("bytes_read_total after close = %v, want int64(4)", got)
	}

	// The runtime is spent: restarts and attaches are refused, repeat
	// shutdowns are no-ops.
	if err := rt.Start(); !errors.Is(err, api.ErrShutdown) {
		t.Fatalf("Start after Shutdown: %v, want api.ErrShutdown", err)
	}
	if _, err := rt.Attach(fake.NewChannel()); !errors.Is(err, api.ErrShutdown) {
		t.Fatalf("Attach after Shutdown: %v, want api.ErrShutdown", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("repeat Shutdown: %v", err)
	}
}

func TestConfigDefaultsFlowIntoSockets(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.MaxQueueSize = 10
	rt := newRuntime(t, cfg)
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = rt.Shutdown(context.Background()) }()

	s, err := rt.Attach(fake.NewChannel())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if got := s.MaxQueueSize(); got != 10 {
		t.Fatalf("socket max queue = %d, want the config's 10", got)
	}

	// Per-socket options are applied after the config-derived ones and win.
	s2, err := rt.Attach(fake.NewChannel(), socket.WithMaxQueueSize(5))
	if err != nil {
		t.Fatalf("Attach with option: %v", err)
	}
	if got := s2.MaxQueueSize(); got != 5 {
		t.Fatalf("socket max queue = %d, want the option's 5", got)
	}
}

func TestNewWithPollerRejectsInvalidConfig(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.PollBatch = 0
	if _, err := facade.NewWithPoller(cfg, fake.NewPoller()); err == nil {
		t.Fatal("invalid config accepted")
	}
}

func TestAttachBeforeStart(t *testing.T) {
	rt := newRuntime(t, nil)

	ch := fake.NewChannel()
	s, err := rt.Attach(ch)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if st := s.State(); st != socket.StateCreated {
		t.Fatalf("state %v before Start, want created", st)
	}

	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = rt.Shutdown(context.Background()) }()

	waitFor(t, func() bool { return s.State() == socket.StateOpen }, "socket open after Start")
}

func TestShutdownHonorsContextDeadline(t *testing.T) {
	rt := newRuntime(t, nil)
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Occupy the loop so it cannot exit within the shutdown window.
	started := make(chan struct{})
	rt.Loop().Post(func() {
		close(started)
		time.Sleep(300 * time.Millisecond)
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rt.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown = %v, want context.DeadlineExceeded", err)
	}

	// The loop still winds down once the blocking action finishes.
	select {
	case <-rt.Loop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop never exited after delayed shutdown")
	}
}
