package discovery

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
// 组件内部会自动追加 "discovery" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("discovery")
		}
	}
}

// WithMeter 注入指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// QueryOption 单次查询的可选参数
type QueryOption func(*query)

// query 单次查询的过滤条件
type query struct {
	group       string
	clusters    []string
	healthyOnly bool
}

func newQuery(opts []QueryOption) query {
	q := query{
		group:       nacos.DefaultGroup,
		healthyOnly: true,
	}
	for _, o := range opts {
		o(&q)
	}
	return q
}

// WithGroup 指定分组，默认 DEFAULT_GROUP
func WithGroup(group string) QueryOption {
	return func(q *query) {
		if group != "" {
			q.group = group
		}
	}
}

// WithClusters 指定集群列表，默认不过滤
func WithClusters(clusters ...string) QueryOption {
	return func(q *query) {
		q.clusters = clusters
	}
}

// WithHealthyOnly 是否只返回健康实例，默认 true
func WithHealthyOnly(healthyOnly bool) QueryOption {
	return func(q *query) {
		q.healthyOnly = healthyOnly
	}
}
