// Package logger builds the zap loggers used by the CLI and the HTTP server.
//
// New reads the "log" section of the configuration. Level selects the minimum
// level (debug, info, warn, error); Format selects json output for machines or
// a colored console encoder for terminals. The debug level also switches to
// zap's development preset. Console output drops stack traces.
//
// Adapters and the reconcile engine receive the logger from the command and
// attach their own fields (adapter, run_id, destination) with With.
//
// Inside HTTP handlers, WithRayID tags every entry with the request id set by
// the request-id middleware:
//
//	l := logger.WithRayID(log, c)
//	l.Error("Sync request failed", zap.Error(err))
package logger
