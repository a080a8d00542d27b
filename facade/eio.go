// File: facade/eio.go
// Unified facade layer for the hioload-eio runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime aggregates the runtime components (platform poller, reactor
// loop, metrics registry, attached socket set) behind a single facade
// built from an immutable control.Config. It owns the
// start/shutdown lifecycle and publishes runtime figures through the
// metrics registry.

package facade

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-eio/api"
	"github.com/momentics/hioload-eio/control"
	"github.com/momentics/hioload-eio/internal/logging"
	"github.com/momentics/hioload-eio/poller"
	"github.com/momentics/hioload-eio/reactor"
	"github.com/momentics/hioload-eio/socket"
)

// Runtime is the main facade type.
type Runtime struct {
	cfg     *control.Config
	poller  api.Poller
	ownPoll bool
	loop    *reactor.Loop
	metrics *control.MetricsRegistry
	log     *zap.Logger

	mu      sync.Mutex
	sockets map[uint64]*socket.Socket
	shut    bool
}

// Runtime winds down through the unified shutdown contract.
var _ api.GracefulShutdown = (*Runtime)(nil)

// New constructs a Runtime over the platform poller. A nil cfg selects
// control.DefaultConfig. It fails on platforms without a poller
// implementation; such hosts use NewWithPoller.
func New(cfg *control.Config) (*Runtime, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := poller.NewBatch(cfg.PollBatch)
	if err != nil {
		return nil, fmt.Errorf("create poller: %w", err)
	}
	r := newRuntime(cfg, p)
	r.ownPoll = true
	return r, nil
}

// NewWithPoller constructs a Runtime over an injected poller, the seam
// tests and unsupported platforms use. The caller keeps ownership: the
// poller is not closed at Shutdown.
func NewWithPoller(cfg *control.Config, p api.Poller) (*Runtime, error) {
	if p == nil {
		panic("facade: nil poller")
	}
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newRuntime(cfg, p), nil
}

func newRuntime(cfg *control.Config, p api.Poller) *Runtime {
	var opts []reactor.Option
	if cfg.LockOSThread {
		opts = append(opts, reactor.WithLockOSThread())
	}
	return &Runtime{
		cfg:     cfg,
		poller:  p,
		loop:    reactor.New(p, opts...),
		metrics: control.NewMetricsRegistry(),
		log:     logging.L().Named("facade"),
		sockets: make(map[uint64]*socket.Socket),
	}
}

// Start launches the reactor loop. It fails with api.ErrAlreadyRunning if
// the loop is already live and with api.ErrShutdown after Shutdown.
func (r *Runtime) Start() error {
	r.mu.Lock()
	if r.shut {
		r.mu.Unlock()
		return api.ErrShutdown
	}
	r.mu.Unlock()
	if err := r.loop.Start(); err != nil {
		return err
	}
	r.log.Debug("runtime started")
	return nil
}

// Shutdown winds the runtime down: every attached socket is closed, the
// loop is stopped after those closes have been dispatched, and a poller
// the Runtime built itself is released. The context
// bounds the wait for the loop goroutine to exit; on expiry the poller is
// still released and the context error returned. Idempotent.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.shut {
		r.mu.Unlock()
		return nil
	}
	r.shut = true
	socks := make([]*socket.Socket, 0, len(r.sockets))
	for _, s := range r.sockets {
		socks = append(socks, s)
	}
	r.mu.Unlock()

	var err error
	if r.loop.Running() {
		for _, s := range socks {
			s.Close()
		}
		// The stop is posted behind the closes so they finalize on the
		// loop before it exits.
		r.loop.Post(func() { _ = r.loop.Stop() })
		select {
		case <-r.loop.Done():
		case <-ctx.Done():
			err = fmt.Errorf("shutdown wait: %w", ctx.Err())
		}
	}
	if r.ownPoll {
		if cerr := r.poller.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close poller: %w", cerr)
		}
	}
	r.log.Debug("runtime shut down", zap.Error(err))
	return err
}

// Attach wraps ch in a Socket bound to the runtime's loop, applying the
// config-derived queue bound and read buffer size before opts, and tracks
// it until it closes. Sockets may be attached before Start; they open when
// the loop first runs.
func (r *Runtime) Attach(ch api.Channel, opts ...socket.Option) (*socket.Socket, error) {
	r.mu.Lock()
	if r.shut {
		r.mu.Unlock()
		return nil, api.ErrShutdown
	}
	r.mu.Unlock()

	all := make([]socket.Option, 0, len(opts)+3)
	all = append(all,
		socket.WithMaxQueueSize(r.cfg.MaxQueueSize),
		socket.WithReadBufferSize(r.cfg.ReadBufferSize),
		socket.WithCloseFunc(r.release),
	)
	all = append(all, opts...)
	s := socket.Attach(r.loop, ch, all...)

	r.mu.Lock()
	r.sockets[s.ID()] = s
	r.mu.Unlock()
	r.metrics.Counter("sockets_attached").Inc()
	// The socket may have opened and already closed on the loop before the
	// tracking entry existed; drop it again rather than hold it forever.
	if s.State() == socket.StateClosed {
		r.mu.Lock()
		delete(r.sockets, s.ID())
		r.mu.Unlock()
	}
	return s, nil
}

// release runs on the loop goroutine when a tracked socket reaches
// StateClosed.
func (r *Runtime) release(s *socket.Socket) {
	r.mu.Lock()
	delete(r.sockets, s.ID())
	r.mu.Unlock()
	r.metrics.Counter("sockets_closed").Inc()
	r.metrics.Counter("bytes_read_total").Add(s.BytesRead())
	r.metrics.Counter("bytes_written_total").Add(s.BytesWritten())
}

// SocketCount returns the number of attached, not-yet-closed sockets.
func (r *Runtime) SocketCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets)
}

// Stats returns a snapshot of runtime figures: the registry's counters and
// gauges plus live loop and socket state. Byte totals include bytes moved
// by still-open sockets.
func (r *Runtime) Stats() map[string]any {
	out := r.metrics.GetSnapshot()

	var liveRead, liveWritten int64
	r.mu.Lock()
	open := len(r.sockets)
	for _, s := range r.sockets {
		liveRead += s.BytesRead()
		liveWritten += s.BytesWritten()
	}
	r.mu.Unlock()

	out["sockets_open"] = open
	out["loop_running"] = r.loop.Running()
	out["loop_queue_size"] = r.loop.QueueSize()
	out["bytes_read_total"] = r.metrics.Counter("bytes_read_total").Value() + liveRead
	out["bytes_written_total"] = r.metrics.Counter("bytes_written_total").Value() + liveWritten
	return out
}

// Loop exposes the reactor loop for scheduling work onto the runtime's
// dispatch goroutine.
func (r *Runtime) Loop() *reactor.Loop { return r.loop }

// Poller exposes the I/O multiplexer the loop drains.
func (r *Runtime) Poller() api.Poller { return r.poller }

// Metrics exposes the runtime metrics registry.
func (r *Runtime) Metrics() *control.MetricsRegistry { return r.metrics }

// Config returns the immutable configuration the Runtime was built from.
func (r *Runtime) Config() *control.Config { return r.cfg }
