package bootstrap

import "github.com/ceyewan/beacon/clog"

// Option 加载器初始化选项
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入日志记录器，自动追加 bootstrap 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("bootstrap")
		}
	}
}
