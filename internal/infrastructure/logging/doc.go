// Package logging provides structured logging for DigiHome Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "./logs/digihome.log"
//	    max_size: 10     # megabytes before rotation
//
// File output is rotated by lumberjack; call Close on shutdown.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 5000)
//	logger.Error("failed to connect", "error", err)
//
//	gwLog := logger.Component("gateway") // adds component=gateway
//
// Never log push tokens, JWTs, or broker passwords.
package logging
