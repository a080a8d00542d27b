// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration and metrics layer of hioload-eio.
//
// Config is the typed, YAML-loadable parameter set the facade builds the
// runtime from; MetricsRegistry is the concurrent-safe telemetry store the
// facade publishes loop and socket figures through. Both are small,
// dependency-light, and usable standalone.
package control
