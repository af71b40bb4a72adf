// Package logging provides structured logging configuration for protomock.
//
// This package wraps log/slog so every component logs the same way. Levels
// and formats are configurable; components that need a logger accept a
// *slog.Logger via constructor or setter and fall back to logging.Nop().
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("server started", "port", 50051)
package logging
