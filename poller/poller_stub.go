//go:build !linux

// File: poller/poller_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub factory for platforms without a poll-mode multiplexer. Hosts on
// these platforms inject their own api.Poller (tests use fake.Poller).

package poller

import (
	"errors"

	"github.com/momentics/hioload-eio/api"
)

func newPlatform(int) (api.Poller, error) {
	return nil, errors.New("poller: this platform is not supported")
}
