// Package logging provides structured logging for Lumen Core.
//
// It wraps the standard log/slog package so every component logs
// through the same handler with consistent default fields.
//
// # Features
//
//   - JSON output for production, text for development
//   - Default fields (service, version) on every entry
//   - Level-based filtering (debug, info, warn, error)
//   - Safe for concurrent use
//
// # Configuration
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("listening", "port", 8080)
//	logger.Error("store unavailable", "error", err)
//
// Never log secrets, tokens, password hashes, or device keys.
package logging
