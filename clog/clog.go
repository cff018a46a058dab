package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Option 函数式选项，用于配置 Logger 实例
type Option func(*options)

// options 内部选项结构
type options struct {
	namespaceParts []string
	writer         io.Writer // 测试用，覆盖 Output
}

// WithNamespace 设置日志命名空间，支持多级命名空间。
//
// 命名空间会以 "." 连接，作为日志中的 namespace 字段：
//
//	clog.WithNamespace("order-service", "api") // => "order-service.api"
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithWriter 指定输出 Writer，优先于 Config.Output，主要用于测试。
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// New 创建一个新的 Logger 实例。
//
// config 为 nil 时使用默认配置（info/console/stdout）。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	w, err := resolveWriter(config.Output, o)
	if err != nil {
		return nil, err
	}

	level, _ := parseLevel(config.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	l := &logger{slog: slog.New(handler)}
	if len(o.namespaceParts) > 0 {
		return l.WithNamespace(o.namespaceParts...), nil
	}
	return l, nil
}

// Discard 返回丢弃所有日志的 Logger，组件在未注入 Logger 时使用。
func Discard() Logger {
	return &logger{slog: slog.New(slog.DiscardHandler)}
}

func resolveWriter(output string, o *options) (io.Writer, error) {
	if o.writer != nil {
		return o.writer, nil
	}
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return f, nil
	}
}
