// File: reactor/sink.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"

	"go.uber.org/zap"

	"github.com/momentics/hioload-eio/api"
)

// LogSink adapts a zap logger into a fault sink. Callback panics carry
// their stack; other faults log as plain errors. The loop installs one of
// these by default so an unconfigured runtime never swallows a panic.
func LogSink(log *zap.Logger) api.FaultSink {
	return api.FaultFunc(func(err error) {
		var pe *api.PanicError
		if errors.As(err, &pe) {
			log.Error("callback panic",
				zap.Any("value", pe.Value),
				zap.ByteString("stack", pe.Stack),
			)
			return
		}
		log.Error("loop fault", zap.Error(err))
	})
}
