// Package testkit 提供 beacon 的测试工具：通用测试依赖与内存版 Nacos 服务端。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	t.Helper()
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  metrics.Noop(),
	}
}

// NewLogger 返回一个用于测试的 logger，输出到 stderr 便于本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(&clog.Config{Level: "debug", Format: "console", Output: "stderr"})
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 dataId、服务名后缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}
