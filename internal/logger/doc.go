// Package logger wraps zap with a context-scoped sugared logger.
//
// Commands store a named logger in the context (WithName, WithKV) and every
// service below them logs through the package-level helpers (Info, InfoKV,
// ErrorKV, ...) which pick the logger back up with FromContext.
package logger
