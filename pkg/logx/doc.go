// Package logx is a thin zerolog wrapper with hot-swappable sinks.
//
// The Service owns the root zerolog logger and can re-apply sink/level
// configuration at runtime; Loggers handed out earlier keep following the
// current root. The zero Logger is a safe no-op.
package logx
