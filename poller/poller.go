// File: poller/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poller

import "github.com/momentics/hioload-eio/api"

// DefaultBatch is the readiness events dispatched per Poll call when no
// explicit batch size is configured.
const DefaultBatch = 128

// New returns the platform poller with the default event batch size. It
// fails on platforms without a poll-mode multiplexer implementation.
func New() (api.Poller, error) {
	return NewBatch(DefaultBatch)
}

// NewBatch returns the platform poller dispatching at most batch readiness
// events per Poll call. Values < 1 select DefaultBatch.
func NewBatch(batch int) (api.Poller, error) {
	if batch < 1 {
		batch = DefaultBatch
	}
	return newPlatform(batch)
}
