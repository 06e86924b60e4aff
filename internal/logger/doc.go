// Package logger wraps zap and carries a sugared logger through context.Context.
//
// Services never reach for a global logger directly: they call the helpers in
// this package with their context, so names and key-value pairs attached
// upstream (studio, role, transmitter) end up on every line.
package logger
