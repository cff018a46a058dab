// Package metrics 为 beacon 提供基于 Prometheus 的轻量指标组件。
//
// 组件通过 Meter 创建计数器和仪表，关闭时（Enabled=false 或 Meter 为 nil）
// 所有操作都是空操作，不影响调用方逻辑。
//
// 基本使用：
//
//	meter, _ := metrics.New(&metrics.Config{Enabled: true, Namespace: "beacon"})
//	beats, _ := meter.Counter("heartbeat_failures_total", "Heartbeat failures", "service")
//	beats.Inc(ctx, metrics.L("service", "user-service"))
//	http.Handle("/metrics", meter.Handler())
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceyewan/beacon/xerrors"
)

// Label 指标标签
type Label struct {
	Key   string
	Value string
}

// L 创建标签（简写）
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// Counter 只增计数器
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, delta float64, labels ...Label)
}

// Gauge 可增减仪表
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Meter 指标工厂。
// 同名指标重复创建会返回错误，组件应在构造时一次性创建所需指标。
type Meter interface {
	Counter(name, help string, labelNames ...string) (Counter, error)
	Gauge(name, help string, labelNames ...string) (Gauge, error)

	// Handler 返回 Prometheus 抓取端点的 http.Handler
	Handler() http.Handler
}

// Config 指标配置
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Namespace 指标名前缀，默认 "beacon"
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// New 创建 Meter。cfg 为 nil 时返回 noop Meter。
func New(cfg *Config) (Meter, error) {
	if cfg == nil || !cfg.Enabled {
		return Noop(), nil
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "beacon"
	}
	return &promMeter{
		namespace: ns,
		registry:  prometheus.NewRegistry(),
	}, nil
}

type promMeter struct {
	namespace string
	registry  *prometheus.Registry
}

func (m *promMeter) Counter(name, help string, labelNames ...string) (Counter, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, labelNames)
	if err := m.registry.Register(vec); err != nil {
		return nil, xerrors.Wrapf(err, "register counter %s", name)
	}
	return &promCounter{vec: vec, labelNames: labelNames}, nil
}

func (m *promMeter) Gauge(name, help string, labelNames ...string) (Gauge, error) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, labelNames)
	if err := m.registry.Register(vec); err != nil {
		return nil, xerrors.Wrapf(err, "register gauge %s", name)
	}
	return &promGauge{vec: vec, labelNames: labelNames}, nil
}

func (m *promMeter) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// toValues 按声明顺序取标签值，缺失的标签填空串
func toValues(labelNames []string, labels []Label) []string {
	values := make([]string, len(labelNames))
	for i, name := range labelNames {
		for _, l := range labels {
			if l.Key == name {
				values[i] = l.Value
				break
			}
		}
	}
	return values
}

type promCounter struct {
	vec        *prometheus.CounterVec
	labelNames []string
}

func (c *promCounter) Inc(_ context.Context, labels ...Label) {
	c.vec.WithLabelValues(toValues(c.labelNames, labels)...).Inc()
}

func (c *promCounter) Add(_ context.Context, delta float64, labels ...Label) {
	c.vec.WithLabelValues(toValues(c.labelNames, labels)...).Add(delta)
}

type promGauge struct {
	vec        *prometheus.GaugeVec
	labelNames []string
}

func (g *promGauge) Set(_ context.Context, value float64, labels ...Label) {
	g.vec.WithLabelValues(toValues(g.labelNames, labels)...).Set(value)
}

func (g *promGauge) Inc(_ context.Context, labels ...Label) {
	g.vec.WithLabelValues(toValues(g.labelNames, labels)...).Inc()
}

func (g *promGauge) Dec(_ context.Context, labels ...Label) {
	g.vec.WithLabelValues(toValues(g.labelNames, labels)...).Dec()
}
