package utils

import "log/slog"

// LogAndPanic reports a fatal startup error and stops the process. Deferred
// cleanups still run while the panic unwinds, so Sentry gets flushed.
func LogAndPanic(logger *slog.Logger, err error, msg string) {
	logger.Error(msg, slog.String("error", err.Error()))
	CaptureError(err)
	panic(err)
}
