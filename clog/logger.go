// Package clog 为 beacon 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 支持层级命名空间，各组件在注入的 Logger 上追加自己的命名空间
//   - 采用函数式选项模式，与 beacon 其他组件一致
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("service registered", clog.String("service", "user-service"))
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能。
//
// 创建子 Logger：
//
//	childLogger := logger.With(clog.String("module", "registry"))
//	namespacedLogger := logger.WithNamespace("registry")
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// 带 Context 的版本，便于接入链路追踪等上下文处理
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger，预设字段出现在所有日志中
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger，
	// 命名空间以 "." 连接并作为日志的 namespace 字段输出
	WithNamespace(parts ...string) Logger
}
