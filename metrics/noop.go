package metrics

import (
	"context"
	"net/http"
)

// Noop 返回空操作 Meter，指标关闭时使用。
func Noop() Meter {
	return noopMeter{}
}

type noopMeter struct{}

func (noopMeter) Counter(name, help string, labelNames ...string) (Counter, error) {
	return noopCounter{}, nil
}

func (noopMeter) Gauge(name, help string, labelNames ...string) (Gauge, error) {
	return noopGauge{}, nil
}

func (noopMeter) Handler() http.Handler {
	return http.NotFoundHandler()
}

type noopCounter struct{}

func (noopCounter) Inc(ctx context.Context, labels ...Label)                {}
func (noopCounter) Add(ctx context.Context, delta float64, labels ...Label) {}

type noopGauge struct{}

func (noopGauge) Set(ctx context.Context, value float64, labels ...Label) {}
func (noopGauge) Inc(ctx context.Context, labels ...Label)                {}
func (noopGauge) Dec(ctx context.Context, labels ...Label)                {}
