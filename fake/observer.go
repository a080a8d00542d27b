// File: fake/observer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"

	"github.com/momentics/hioload-eio/api"
)

// Observer records socket lifecycle callbacks for assertions. Packets are
// copied at delivery.
type Observer struct {
	mu     sync.Mutex
	opened int
	pkts   [][]byte
	closed bool
	reason error
}

var _ api.SocketObserver = (*Observer)(nil)

func NewObserver() *Observer {
	return &Observer{}
}

func (o *Observer) OnOpened() {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
}

func (o *Observer) OnPacket(p []byte) {
	cp := make([]byte, len(p))
	copy(cp, p)
	o.mu.Lock()
	o.pkts = append(o.pkts, cp)
	o.mu.Unlock()
}

func (o *Observer) OnClosed(reason error) {
	o.mu.Lock()
	o.closed = true
	o.reason = reason
	o.mu.Unlock()
}

// OpenedCount returns how many times OnOpened fired.
func (o *Observer) OpenedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// Packets returns the delivered packets in order.
func (o *Observer) Packets() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]byte, len(o.pkts))
	copy(out, o.pkts)
	return out
}

// Closed reports whether OnClosed fired.
func (o *Observer) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Reason returns the error passed to OnClosed.
func (o *Observer) Reason() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}
