// File: socket/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package socket provides the per-connection asynchronous façade of
// hioload-eio: packet-oriented writes with bounded-queue backpressure over
// a raw byte Channel, pluggable packet framing, observer lifecycle
// delivery with pre-attachment replay, and cumulative transfer metrics.
//
// A Socket lives on exactly one reactor loop. Producer goroutines call the
// thread-safe surface (Write, CloseAfterWrite, Close, Listen, the queue and
// metric accessors); everything that touches the Channel or a packet codec
// runs on the loop goroutine, serialized with every other callback of the
// runtime.
package socket
