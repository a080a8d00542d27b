// File: socket/ready.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop-goroutine half of the socket: poller registration, readiness
// dispatch, packet framing, and the terminal transition. Nothing here is
// called from producer goroutines.

package socket

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-eio/api"
)

// open registers the channel with the poller and moves the socket to
// StateOpen. It runs as a posted action, so it executes on the loop
// goroutine strictly before any readiness callback for the channel.
func (s *Socket) open() {
	if err := s.tryOpen(); err != nil {
		s.finalize(err)
	}
}

// tryOpen holds emitMu for the whole transition so a concurrent Listen
// replay cannot interleave with the OnOpened emit; the deferred unlock
// keeps the lock from being stranded when the observer panics.
func (s *Socket) tryOpen() error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.st == StateClosed {
		s.mu.Unlock()
		return nil
	}
	if err := s.poller.Register(s.ch, s); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("register channel: %w", err)
	}
	s.registered = true
	if s.st == StateCreated {
		s.st = StateOpen
	}
	s.openedAt = time.Now()
	obs := s.observer
	if obs == nil {
		s.pendingOpened = true
	}
	s.syncInterestLocked()
	s.mu.Unlock()
	if obs != nil {
		obs.OnOpened()
	}
	s.log.Debug("socket open", zap.Uint64("socket", s.id))
	return nil
}

// OnReadable drains the channel into the inbound buffer and unpacks
// complete packets. EOF and read faults finish with an abrupt close after
// any packets completed by the final bytes are delivered.
func (s *Socket) OnReadable() {
	for {
		n, err := s.ch.Read(s.scratch)
		if n > 0 {
			s.bytesRead.Add(int64(n))
			s.inbuf = append(s.inbuf, s.scratch[:n]...)
		}
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				s.deliver()
				return
			}
			s.deliver()
			if errors.Is(err, io.EOF) {
				s.finalize(io.EOF)
			} else {
				s.finalize(fmt.Errorf("read channel: %w", err))
			}
			return
		}
		if n == 0 {
			// A (0, nil) read makes no progress; treat the channel as
			// drained rather than spinning.
			s.deliver()
			return
		}
	}
}

// deliver unpacks as many complete packets as the inbound buffer holds and
// hands them to the observer. A framing error closes the socket abruptly
// with that error as the reason.
func (s *Socket) deliver() {
	for len(s.inbuf) > 0 {
		pkt, n, err := s.reader.Unpack(s.inbuf)
		if err != nil {
			s.finalize(fmt.Errorf("unpack stream: %w", err))
			return
		}
		if n == 0 {
			return // incomplete packet, wait for more bytes
		}
		s.inbuf = s.inbuf[:copy(s.inbuf, s.inbuf[n:])]
		if pkt == nil {
			continue
		}
		s.emitPacket(pkt)
	}
}

func (s *Socket) emitPacket(p []byte) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	obs := s.observer
	s.mu.Unlock()
	if obs != nil {
		obs.OnPacket(p)
	}
}

// OnWritable flushes the in-flight frame, then frames and transmits queued
// packets until the channel would block or the queue empties. An empty
// queue on a CLOSING socket completes the close.
func (s *Socket) OnWritable() {
	for {
		if s.draining == nil {
			if !s.nextFrame() {
				return
			}
		}
		for s.drainOff < len(s.draining) {
			n, err := s.ch.Write(s.draining[s.drainOff:])
			if n > 0 {
				s.drainOff += n
				s.bytesWritten.Add(int64(n))
			}
			if err != nil {
				if errors.Is(err, api.ErrWouldBlock) {
					// Write interest stays armed; transmission resumes at
					// the current offset on the next readiness.
					return
				}
				s.finalize(fmt.Errorf("write channel: %w", err))
				return
			}
		}
		s.draining, s.drainOff = nil, 0
		s.mu.Lock()
		s.drainActive = false
		s.mu.Unlock()
	}
}

// nextFrame pops the next queued packet and frames it for transmission.
// It reports false when there is nothing to send (after disarming write
// interest and, on a CLOSING socket, completing the close) or when
// framing fails.
func (s *Socket) nextFrame() bool {
	s.mu.Lock()
	if s.outq.Length() == 0 {
		closing := s.st == StateClosing
		s.syncInterestLocked()
		s.mu.Unlock()
		if closing {
			s.finalize(nil)
		}
		return false
	}
	pkt := s.outq.Remove().([]byte)
	// queued counts waiting packets only; the one being dispatched leaves it here.
	s.queued -= int64(len(pkt))
	s.drainActive = true
	s.mu.Unlock()

	framed, err := s.writer.Frame(pkt)
	if err != nil {
		s.finalize(fmt.Errorf("frame packet: %w", err))
		return false
	}
	s.draining, s.drainOff = framed, 0
	return true
}

// OnHangup closes the socket abruptly. A nil platform reason is reported
// as io.EOF: the peer went away without an error the poller could name.
func (s *Socket) OnHangup(err error) {
	if err == nil {
		err = io.EOF
	}
	s.finalize(err)
}

// finalize performs the terminal CLOSED transition exactly once: it
// discards the queue, deregisters and closes the channel, and notifies (or
// buffers for replay) the closed event. reason nil marks a clean close.
// Runs only on the loop goroutine.
func (s *Socket) finalize(reason error) {
	// Close hooks run after emitMu is released, whether OnClosed returns or
	// panics: the deferred unlock below fires first, then this wrapper.
	var closeFn func(*Socket)
	defer func() {
		if closeFn != nil {
			closeFn(s)
		}
	}()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.st == StateClosed {
		s.mu.Unlock()
		return
	}
	s.st = StateClosed
	s.closedAt = time.Now()
	s.outq = queue.New()
	s.queued = 0
	s.drainActive = false
	registered := s.registered
	s.registered = false
	s.readArmed, s.writeArmed = false, false
	obs := s.observer
	if obs == nil {
		s.pendingClosed = true
		s.pendingReason = reason
	}
	closeFn = s.closeFn
	s.mu.Unlock()

	s.draining, s.drainOff = nil, 0
	s.inbuf = nil
	if registered {
		if err := s.poller.Deregister(s.ch); err != nil {
			s.log.Debug("deregister failed",
				zap.Uint64("socket", s.id), zap.Error(err))
		}
	}
	_ = s.ch.Close()
	s.log.Debug("socket closed",
		zap.Uint64("socket", s.id), zap.Error(reason))
	if obs != nil {
		obs.OnClosed(reason)
	}
}
