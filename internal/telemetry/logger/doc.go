// Package logger provides structured logging for SaveKeep.
//
// It wraps the standard library log/slog:
//
//   - logger.go: Logger interface, handler setup, dynamic level
//   - context.go: context propagation of the logger and operation ID
//   - attrs.go: error attributes rendered with their pipeline error code
//
// Output is JSON by default, text when configured.
package logger
