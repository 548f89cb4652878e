// Package logging builds the structured slog logger used across
// Terminal Core.
//
// Every entry carries service and version fields so site log
// aggregation can separate core output from the other terminal
// services. Subsystems get tagged child loggers via With:
//
//	log := logging.New(cfg.Logging, version)
//	pollLog := log.With("component", "poller")
//	pollLog.Info("polling layer started", "devices", 14)
//
// Configured from the logging section of config.yaml:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "json"   # json, or text for bench work
//	  output: "stdout" # stdout, stderr
//
// Never log broker credentials or the InfluxDB token.
package logging
