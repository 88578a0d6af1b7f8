// Package logging provides structured logging for Armlink.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - service and version fields on every entry
//   - Level filtering (debug, info, warn, error)
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("bridge").Info("subscribed", "topic", topic)
//
// Per-sample telemetry is logged at debug level only; at info level the hub
// logs connects, disconnects and shutdown.
package logging
