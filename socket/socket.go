// File: socket/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-eio/api"
	"github.com/momentics/hioload-eio/codec"
	"github.com/momentics/hioload-eio/internal/logging"
	"github.com/momentics/hioload-eio/reactor"
)

// DefaultReadBuffer sizes the per-socket read scratch buffer.
const DefaultReadBuffer = 64 * 1024

// State is the lifecycle phase of a Socket.
type State int32

const (
	// StateCreated covers the window between Attach and the loop running
	// the open action. Writes are accepted and queued.
	StateCreated State = iota

	// StateOpen is the steady state: registered with the poller, reads
	// flowing once an observer is attached, writes queued and drained.
	StateOpen

	// StateClosing drains the already-accepted outbound queue; new writes
	// are rejected. Entered by CloseAfterWrite.
	StateClosing

	// StateClosed is terminal: the channel is closed, the queue discarded,
	// and the observer has been (or will be, at Listen) told.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var nextID atomic.Uint64

// Socket is the asynchronous façade over one Channel.
//
// Lock order, outermost first: emitMu, mu, then poller internals. emitMu
// serializes observer delivery between the loop goroutine and Listen's
// replay so events always arrive in lifecycle order; mu guards the queue,
// counters, state, and interest cache. The packet codecs, the inbound
// buffer, and the in-flight outbound frame are touched only on the loop
// goroutine and need no lock.
type Socket struct {
	id     uint64
	loop   *reactor.Loop
	poller api.Poller
	ch     api.Channel
	log    *zap.Logger

	// emitMu is held around every observer callback.
	emitMu sync.Mutex

	mu            sync.Mutex
	st            State
	outq          *queue.Queue // of []byte packets, not yet framed
	queued        int64        // bytes in outq, excluding the draining frame
	maxQueue      int64        // < 1 means unbounded
	registered    bool
	readArmed     bool
	writeArmed    bool
	drainActive   bool
	observer      api.SocketObserver
	pendingOpened bool
	pendingClosed bool
	pendingReason error
	openedAt      time.Time
	closedAt      time.Time
	closeFn       func(*Socket)

	listened atomic.Bool

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64

	// Loop-goroutine state.
	reader      api.PacketReader
	writer      api.PacketWriter
	readBufSize int
	scratch     []byte
	inbuf       []byte
	draining    []byte // current frame being transmitted, nil when idle
	drainOff    int
}

var _ api.ReadyHandler = (*Socket)(nil)

// Attach builds a Socket over ch and posts its registration onto the loop.
// The socket starts in StateCreated; once the loop runs the posted action
// it registers the channel with the loop's poller and transitions to
// StateOpen (delivering or buffering the opened event). The loop may be
// stopped at Attach time: the socket opens when the loop next runs.
//
// The channel must be non-blocking per the api.Channel contract and, for
// fd-based pollers, implement api.Fder.
func Attach(l *reactor.Loop, ch api.Channel, opts ...Option) *Socket {
	if l == nil {
		panic("socket: nil loop")
	}
	if ch == nil {
		panic("socket: nil channel")
	}
	s := &Socket{
		id:          nextID.Add(1),
		loop:        l,
		poller:      l.Poller(),
		ch:          ch,
		log:         logging.L().Named("socket"),
		outq:        queue.New(),
		reader:      codec.RawReader{},
		writer:      codec.RawWriter{},
		readBufSize: DefaultReadBuffer,
	}
	for _, o := range opts {
		o(s)
	}
	s.scratch = make([]byte, s.readBufSize)
	l.Post(s.open)
	return s
}

// ID returns the process-unique socket id.
func (s *Socket) ID() uint64 { return s.id }

// Channel returns the underlying byte stream. Reading or writing it
// directly bypasses framing and accounting and leaves the socket in an
// undefined state.
func (s *Socket) Channel() api.Channel { return s.ch }

// State returns the current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Write queues packet for asynchronous transmission and reports whether it
// was accepted. The packet is rejected (discarded whole, never partially
// queued) when the socket is closing or closed, or when a configured
// maximum queue size would be exceeded by queued bytes plus the packet.
// Accepted packets are copied, so the caller may reuse the slice.
//
// Write never blocks and is safe from any goroutine. Backpressure is
// signaled only through the return value.
func (s *Socket) Write(packet []byte) bool {
	s.mu.Lock()
	if s.st != StateCreated && s.st != StateOpen {
		s.mu.Unlock()
		return false
	}
	if s.maxQueue >= 1 && s.queued+int64(len(packet)) > s.maxQueue {
		s.mu.Unlock()
		return false
	}
	cp := make([]byte, len(packet))
	copy(cp, packet)
	s.outq.Add(cp)
	s.queued += int64(len(cp))
	s.syncInterestLocked()
	s.mu.Unlock()
	// A loop parked with no deadline re-evaluates readiness interest.
	s.poller.Wakeup()
	return true
}

// WriteQueueSize returns the byte total of queued packets, excluding the
// frame currently being transmitted.
func (s *Socket) WriteQueueSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

// MaxQueueSize returns the configured queue bound; values < 1 mean the
// queue is unbounded.
func (s *Socket) MaxQueueSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxQueue
}

// SetMaxQueueSize bounds the outbound queue to n bytes; n < 1 removes the
// bound. Already-queued packets are never evicted, only new writes are
// checked.
func (s *Socket) SetMaxQueueSize(n int64) {
	s.mu.Lock()
	s.maxQueue = n
	s.mu.Unlock()
}

// Listen attaches the observer. At most one observer may ever be attached;
// the second and any later call fails with api.ErrAlreadyListening. Opened
// and closed events that occurred before attachment are replayed in their
// original order, synchronously on the calling goroutine, before Listen
// returns. Attaching the observer also arms read interest: inbound packets
// start flowing only once someone is listening.
func (s *Socket) Listen(obs api.SocketObserver) error {
	if obs == nil {
		panic("socket: nil observer")
	}
	if !s.listened.CompareAndSwap(false, true) {
		return api.ErrAlreadyListening
	}
	// The unlock is deferred so a panicking replay callback cannot strand
	// the emit lock and deadlock the loop's next delivery.
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.observer = obs
	opened := s.pendingOpened
	closed := s.pendingClosed
	reason := s.pendingReason
	s.pendingOpened, s.pendingClosed, s.pendingReason = false, false, nil
	s.syncInterestLocked()
	s.mu.Unlock()
	if opened {
		obs.OnOpened()
	}
	if closed {
		obs.OnClosed(reason)
	}
	s.poller.Wakeup()
	return nil
}

// CloseAfterWrite transitions the socket to StateClosing: packets already
// accepted continue to drain, every subsequent Write is rejected, and once
// the queue is empty the socket closes cleanly and the observer receives
// OnClosed(nil).
func (s *Socket) CloseAfterWrite() {
	s.mu.Lock()
	if s.st == StateClosing || s.st == StateClosed {
		s.mu.Unlock()
		return
	}
	s.st = StateClosing
	// Arming write interest nudges the loop even when the queue is already
	// empty, so the CLOSING -> CLOSED finalization happens promptly.
	s.syncInterestLocked()
	s.mu.Unlock()
	s.poller.Wakeup()
}

// Close tears the socket down promptly: queued packets are discarded, the
// channel is closed on the loop goroutine, and the observer receives
// OnClosed(nil). Safe from any goroutine and idempotent.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.st == StateClosed {
		s.mu.Unlock()
		return
	}
	// Reject writes immediately; the terminal transition and notification
	// happen on the loop so they serialize with in-flight callbacks.
	if s.st != StateClosing {
		s.st = StateClosing
	}
	s.outq = queue.New()
	s.queued = 0
	s.mu.Unlock()
	s.loop.Post(func() { s.finalize(nil) })
}

// SetPacketReader replaces the inbound framing strategy. Call it before
// the socket is attached to a running loop, or from the loop goroutine;
// the reader is invoked only there.
func (s *Socket) SetPacketReader(r api.PacketReader) {
	if r == nil {
		panic("socket: nil packet reader")
	}
	s.reader = r
}

// SetPacketWriter replaces the outbound framing strategy, under the same
// goroutine constraint as SetPacketReader.
func (s *Socket) SetPacketWriter(w api.PacketWriter) {
	if w == nil {
		panic("socket: nil packet writer")
	}
	s.writer = w
}

// BytesRead returns the cumulative count of raw bytes read from the
// channel since open.
func (s *Socket) BytesRead() int64 { return s.bytesRead.Load() }

// BytesWritten returns the cumulative count of wire bytes transmitted,
// framing included.
func (s *Socket) BytesWritten() int64 { return s.bytesWritten.Load() }

// TimeOpen returns how long the socket has been open: zero before the OPEN
// transition, the live elapsed time while open, and the final open
// duration once closed.
func (s *Socket) TimeOpen() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openedAt.IsZero() {
		return 0
	}
	if s.st == StateClosed {
		return s.closedAt.Sub(s.openedAt)
	}
	return time.Since(s.openedAt)
}

// syncInterestLocked reconciles the poller's interest set with what the
// socket currently needs: reads while an observer is attached and the
// socket is not closed, writes while a frame is draining, packets are
// queued, or a CLOSING finalization is pending. Caller holds mu.
func (s *Socket) syncInterestLocked() {
	if !s.registered {
		return
	}
	read := s.observer != nil && s.st != StateClosed
	write := s.st != StateClosed &&
		(s.drainActive || s.outq.Length() > 0 || s.st == StateClosing)
	if read == s.readArmed && write == s.writeArmed {
		return
	}
	s.readArmed, s.writeArmed = read, write
	if err := s.poller.Mod(s.ch, read, write); err != nil {
		s.log.Debug("interest update failed",
			zap.Uint64("socket", s.id), zap.Error(err))
	}
}
