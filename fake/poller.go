// File: fake/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package fake provides in-memory test doubles for the api interfaces:
// a deterministic poller, a scriptable channel, and recording observers
// and fault sinks. Tests drive readiness explicitly instead of standing
// up real sockets.
package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-eio/api"
)

type entry struct {
	ch      *Channel
	handler api.ReadyHandler
	read    bool
	write   bool
	hup     bool
	hupErr  error
}

// Poller is a level-triggered api.Poller over fake Channels. Readiness is
// derived from channel state: buffered inbound bytes or EOF make a channel
// readable, an unblocked channel is writable. Poll dispatches in
// registration order so tests stay deterministic.
type Poller struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[*Channel]*entry
	order   []*Channel
	wake    bool
	closed  bool
}

var _ api.Poller = (*Poller)(nil)

func NewPoller() *Poller {
	p := &Poller{entries: make(map[*Channel]*entry)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Register adds the channel with no interest armed; use Mod to arm.
// Only fake Channels are accepted.
func (p *Poller) Register(ch api.Channel, h api.ReadyHandler) error {
	fc, ok := ch.(*Channel)
	if !ok {
		return fmt.Errorf("fake: poller accepts only fake channels, got %T", ch)
	}
	if h == nil {
		return fmt.Errorf("fake: nil ready handler")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrPollerClosed
	}
	if _, dup := p.entries[fc]; dup {
		return fmt.Errorf("fake: channel already registered")
	}
	p.entries[fc] = &entry{ch: fc, handler: h}
	p.order = append(p.order, fc)
	fc.attach(p)
	return nil
}

// Mod arms or disarms read and write interest for the channel.
func (p *Poller) Mod(ch api.Channel, read, write bool) error {
	fc, ok := ch.(*Channel)
	if !ok {
		return api.ErrNotRegistered
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[fc]
	if !ok {
		return api.ErrNotRegistered
	}
	e.read = read
	e.write = write
	// Arming interest can make a parked Poll immediately ready.
	p.cond.Broadcast()
	return nil
}

// Deregister removes the channel.
func (p *Poller) Deregister(ch api.Channel) error {
	fc, ok := ch.(*Channel)
	if !ok {
		return api.ErrNotRegistered
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[fc]; !ok {
		return api.ErrNotRegistered
	}
	delete(p.entries, fc)
	for i, c := range p.order {
		if c == fc {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	fc.detach()
	return nil
}

// Hangup queues a one-shot hangup event for the channel, delivered on the
// next Poll regardless of armed interest.
func (p *Poller) Hangup(ch api.Channel, err error) {
	fc, ok := ch.(*Channel)
	if !ok {
		return
	}
	p.mu.Lock()
	if e, ok := p.entries[fc]; ok {
		e.hup = true
		e.hupErr = err
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Poll blocks until at least one armed channel is ready, a wakeup is
// pending, or the timeout expires. timeout < 0 blocks indefinitely,
// timeout == 0 performs a single non-blocking pass. Returns the number of
// channels dispatched.
//
// Handlers run with the poller lock released and no unlock deferred across
// them: a panicking handler unwinds out of Poll as an ordinary panic and
// leaves the poller usable.
func (p *Poller) Poll(timeout time.Duration) (int, error) {
	calls, n, err := p.wait(timeout)
	if err != nil {
		return 0, err
	}
	for _, fn := range calls {
		fn()
	}
	return n, nil
}

// wait holds the poller lock until readiness, a wake token, closure, or the
// timeout, and returns the snapshot of handler calls to dispatch.
func (p *Poller) wait(timeout time.Duration) ([]func(), int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var timedOut bool
	if timeout > 0 {
		t := time.AfterFunc(timeout, func() {
			p.mu.Lock()
			timedOut = true
			p.mu.Unlock()
			p.cond.Broadcast()
		})
		defer t.Stop()
	}

	for {
		if p.closed {
			return nil, 0, api.ErrPollerClosed
		}
		if p.wake {
			p.wake = false
			return nil, 0, nil
		}
		if calls, n := p.collectLocked(); n > 0 {
			return calls, n, nil
		}
		if timeout == 0 || timedOut {
			return nil, 0, nil
		}
		p.cond.Wait()
	}
}

// collectLocked snapshots handler callbacks for every ready channel in
// registration order. Hangups are consumed here so each fires once.
func (p *Poller) collectLocked() ([]func(), int) {
	var calls []func()
	n := 0
	for _, ch := range p.order {
		e := p.entries[ch]
		any := false
		if e.read && e.ch.readReady() {
			h := e.handler
			calls = append(calls, h.OnReadable)
			any = true
		}
		if e.write && e.ch.writeReady() {
			h := e.handler
			calls = append(calls, h.OnWritable)
			any = true
		}
		if e.hup {
			h, err := e.handler, e.hupErr
			e.hup, e.hupErr = false, nil
			calls = append(calls, func() { h.OnHangup(err) })
			any = true
		}
		if any {
			n++
		}
	}
	return calls, n
}

// Wakeup latches a wake token; the next (or a currently parked) Poll
// consumes it and returns immediately.
func (p *Poller) Wakeup() {
	p.mu.Lock()
	p.wake = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Close fails all current and future Polls with api.ErrPollerClosed.
func (p *Poller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

// Registered reports whether the channel is currently registered.
func (p *Poller) Registered(ch api.Channel) bool {
	fc, ok := ch.(*Channel)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok = p.entries[fc]
	return ok
}

// Interest reports the armed read/write flags for the channel.
func (p *Poller) Interest(ch api.Channel) (read, write bool) {
	fc, ok := ch.(*Channel)
	if !ok {
		return false, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[fc]; ok {
		return e.read, e.write
	}
	return false, false
}

// notify wakes parked Polls after a channel state change.
func (p *Poller) notify() {
	p.cond.Broadcast()
}
