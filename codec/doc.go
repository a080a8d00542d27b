// File: codec/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package codec provides packet framing strategies for async sockets:
// raw pass-through, fixed-width big-endian length prefixes, single-byte
// delimiters, and protobuf varint length prefixes.
//
// Readers consume from a growing inbound buffer and extract at most one
// packet per call; writers frame one outbound packet into its on-wire
// form. Both sides of a connection must agree on the strategy.
package codec
