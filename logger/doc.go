// Package logger provides structured logging for stream clients using
// zerolog.
//
// Loggers carry their own level, so two clients with different LogLevel
// settings can share one output. The special level "none" disables output.
//
// # Configuration
//
//	logging:
//	  level: "warn"
//	  format: "console"
//
// # Usage
//
//	log := logger.NewDefault("streamkit").WithComponent("sse")
//	log.Warn("reconnect scheduled", logger.Fields("attempt", 2, "delay_ms", 2100))
package logger
