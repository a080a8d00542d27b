// File: fake/sink.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"

	"github.com/momentics/hioload-eio/api"
)

// Sink records faults routed out of a loop.
type Sink struct {
	mu     sync.Mutex
	faults []error
}

var _ api.FaultSink = (*Sink)(nil)

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) OnFault(err error) {
	s.mu.Lock()
	s.faults = append(s.faults, err)
	s.mu.Unlock()
}

// Faults returns the recorded faults in arrival order.
func (s *Sink) Faults() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.faults))
	copy(out, s.faults)
	return out
}

// Count returns the number of recorded faults.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.faults)
}
