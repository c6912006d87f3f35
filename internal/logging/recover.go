package logging

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover logs a panic in a background goroutine instead of taking the
// process down. Use as `defer logging.Recover(logger, "device reader")`.
// The recovered value is returned through onPanic when non-nil.
func Recover(logger *slog.Logger, what string, onPanic ...func(error)) {
	v := recover()
	if v == nil {
		return
	}
	err := fmt.Errorf("panic in %s: %v", what, v)
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("recovered panic", "goroutine", what, "panic", fmt.Sprint(v), "stack", string(debug.Stack()))
	for _, fn := range onPanic {
		fn(err)
	}
}
