// Package logging provides structured logging for Doorlink Core.
//
// It wraps the standard library's log/slog with:
//   - Configuration-driven format (JSON or text) and level filtering
//   - Default fields (service name, version) on every record
//   - A Default() logger for use before configuration is loaded
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("mqtt connected", "broker", addr)
//
//	engineLog := log.With("component", "reconcile")
//	engineLog.Warn("payload dropped", "topic", topic)
package logging
