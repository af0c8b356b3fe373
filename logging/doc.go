// Package logging provides a minimal logging interface and adapters for toolchat.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, registry and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building json, text or colored console (tint) handlers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "console", false)
//	eng := engine.New(m, registry, store, func(o *engine.Options) { o.Logger = logger })
//
// Log messages are dotted event names (engine.run.start, tool.call.error)
// followed by slog style key/value pairs.
package logging
