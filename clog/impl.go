package clog

import (
	"context"
	"log/slog"
)

// logger 基于 slog 的 Logger 实现。
// namespace 在每条日志输出时附加，避免层级扩展产生重复字段。
type logger struct {
	slog      *slog.Logger
	namespace string
}

func (l *logger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if l.namespace != "" {
		fields = append(fields, slog.String("namespace", l.namespace))
	}
	l.slog.LogAttrs(ctx, level, msg, fields...)
}

func (l *logger) Debug(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelDebug, msg, fields)
}

func (l *logger) Info(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelInfo, msg, fields)
}

func (l *logger) Warn(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelWarn, msg, fields)
}

func (l *logger) Error(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelError, msg, fields)
}

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *logger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &logger{slog: l.slog.With(args...), namespace: l.namespace}
}

func (l *logger) WithNamespace(parts ...string) Logger {
	ns := l.namespace
	for _, p := range parts {
		if p == "" {
			continue
		}
		if ns == "" {
			ns = p
		} else {
			ns = ns + "." + p
		}
	}
	if ns == l.namespace {
		return l
	}
	return &logger{slog: l.slog, namespace: ns}
}
