// Package logger provides structured logging for ctckit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. Training components tag
// themselves with WithComponent ("expert", "runner", "dataset", ...) and
// attach run metadata with WithRun.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.WithComponent("runner")
//	log.Info("epoch finished", logger.Fields("split", "dev", "loss", 1.7))
package logger
