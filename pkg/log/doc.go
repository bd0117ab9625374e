// Package log provides the logging abstraction used across wardsync.
//
// Components depend on the Logger interface only. A zerolog backend and a
// no-op logger are provided; embedders can plug in any other library.
//
//	logger := log.NewZerologAdapter()
//	logger.Info("queue drained", log.Int("processed", 3))
//
// Scoped loggers carry fields into every message:
//
//	qlog := logger.With(log.String("component", "queue"))
package log
