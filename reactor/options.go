// File: reactor/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"time"

	"github.com/momentics/hioload-eio/api"
)

// Option configures a Loop at construction.
type Option func(*Loop)

// WithFaultSink installs the initial fault sink, replacing the default
// zap-backed sink.
func WithFaultSink(s api.FaultSink) Option {
	return func(l *Loop) {
		if s == nil {
			panic("reactor: nil fault sink")
		}
		l.sink.Store(&sinkBox{s: s})
	}
}

// WithClock substitutes the time source. Tests use it to drive deadlines
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now == nil {
			panic("reactor: nil clock")
		}
		l.clock = now
	}
}

// WithLockOSThread pins the loop goroutine to its OS thread for the
// lifetime of the run. Useful when the deployment pairs loops with CPU
// affinity.
func WithLockOSThread() Option {
	return func(l *Loop) {
		l.lockThread = true
	}
}
