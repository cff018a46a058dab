package configcenter

import (
	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 选项结构
type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "configcenter" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("configcenter")
		}
	}
}

// WithMeter 注入指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// Format 配置内容格式
type Format string

const (
	// FormatAuto 按内容自动识别（JSON 优先）
	FormatAuto Format = "auto"
	// FormatJSON JSON 格式
	FormatJSON Format = "json"
	// FormatYAML YAML 格式
	FormatYAML Format = "yaml"
)

// ConfigOption 单次配置操作的可选参数
type ConfigOption func(*configQuery)

type configQuery struct {
	group  string
	format Format
}

func newConfigQuery(opts []ConfigOption) configQuery {
	q := configQuery{
		group:  nacos.DefaultGroup,
		format: FormatAuto,
	}
	for _, o := range opts {
		o(&q)
	}
	return q
}

// WithGroup 指定分组，默认 DEFAULT_GROUP
func WithGroup(group string) ConfigOption {
	return func(q *configQuery) {
		if group != "" {
			q.group = group
		}
	}
}

// WithFormat 指定 GetConfigMap 的解析格式，默认自动识别
//
// SetConfig 时该格式会作为配置类型上报给服务端。
func WithFormat(format Format) ConfigOption {
	return func(q *configQuery) {
		if format != "" {
			q.format = format
		}
	}
}
