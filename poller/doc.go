// File: poller/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package poller provides the I/O multiplexer implementations behind the
// api.Poller contract. On Linux it is epoll with an eventfd carrying the
// cross-goroutine wakeup signal; other platforms get a constructor error
// and can drive the runtime with an injected poller (see package fake).
//
// FDChannel adapts a raw non-blocking file descriptor to api.Channel for
// use with the fd-based poller.
package poller
