// Package logger provides the process-wide structured logger used by all services and handlers.
package logger

import "go.uber.org/zap"

// L is the process-wide sugared logger. It defaults to zap's production configuration and can be replaced by Init
// before any service starts.
var L *zap.SugaredLogger //nolint:gochecknoglobals // single logger for the whole process

//nolint:gochecknoinits // the logger must be usable from package init code and tests without setup
func init() {
	l, _ := zap.NewProduction()
	L = l.Sugar()
}

// Init replaces the process logger, e.g. with a development config for local runs.
func Init(l *zap.Logger) {
	L = l.Sugar()
}
