// Package logger wraps logrus with context-scoped structured fields, mirroring
// the contextual logger idiom used throughout the ingestion and answer pipelines
// (pipeline stage/action logging, per-request field accumulation).
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// FromContext returns the *logrus.Entry attached to ctx, or a fresh entry on
// the package-level logger if none was attached.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(std)
}

// GetLogger is an alias for FromContext, kept for call sites that prefer the
// logger.GetLogger(ctx) spelling.
func GetLogger(ctx context.Context) *logrus.Entry {
	return FromContext(ctx)
}

// WithFields returns a new context carrying a logger entry with fields merged
// on top of whatever entry was already attached.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	entry := FromContext(ctx).WithFields(fields)
	return context.WithValue(ctx, ctxKey{}, entry)
}

// CloneContext detaches the logger entry from ctx's deadline/cancellation so
// it can be reused by a best-effort background task after the originating
// request context is done.
func CloneContext(ctx context.Context) context.Context {
	entry := FromContext(ctx)
	return context.WithValue(context.Background(), ctxKey{}, entry)
}

var std = logrus.New()

// Configure sets the package-level logger's level and formatter once at
// process startup.
func Configure(level logrus.Level, json bool) {
	std.SetLevel(level)
	if json {
		std.SetFormatter(&logrus.JSONFormatter{})
	} else {
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func Info(ctx context.Context, msg string, kv ...interface{})  { logWith(ctx, logrus.InfoLevel, msg, kv) }
func Warn(ctx context.Context, msg string, kv ...interface{})  { logWith(ctx, logrus.WarnLevel, msg, kv) }
func Error(ctx context.Context, msg string, kv ...interface{}) { logWith(ctx, logrus.ErrorLevel, msg, kv) }

func logWith(ctx context.Context, level logrus.Level, msg string, kv []interface{}) {
	entry := FromContext(ctx)
	if len(kv) > 0 {
		fields := make(logrus.Fields, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			fields[key] = kv[i+1]
		}
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}

// Errorf and Infof are printf-style helpers that log through ctx's entry.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Errorf(format, args...)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Infof(format, args...)
}
