// File: api/shutdown.go
// Package api defines the unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// GracefulShutdown is implemented by components that wind down in-flight
// work before releasing resources. The context bounds how long the wind-down
// may take; on expiry the component releases what it can and returns the
// context error.
type GracefulShutdown interface {
	Shutdown(ctx context.Context) error
}
