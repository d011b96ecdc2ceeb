// Package logging provides structured logging for the react service.
//
// It wraps log/slog so that every component logs with the same shape:
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
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
//	engineLog := logger.Component("engine")
//	engineLog.Info("run finished", "workflow_id", id, "run_id", runID)
//
// Domain packages never import this package directly. They declare a
// small Logger interface (Debug/Info/Warn/Error) which *Logger satisfies.
package logging
