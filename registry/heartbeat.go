package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
)

// HeartbeatState 实例心跳状态
type HeartbeatState int32

const (
	// StateUnregistered 未注册
	StateUnregistered HeartbeatState = iota
	// StateRegistered 已注册，心跳尚未开始
	StateRegistered
	// StateHeartbeating 心跳正常
	StateHeartbeating
	// StateFailed 连续失败达到阈值，正在退避重试
	StateFailed
	// StateStopped 已停止（注销或关闭）
	StateStopped
)

// String 返回状态的可读名称
func (s HeartbeatState) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateRegistered:
		return "REGISTERED"
	case StateHeartbeating:
		return "HEARTBEATING"
	case StateFailed:
		return "FAILED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// HeartbeatEvent 心跳状态流转事件
type HeartbeatEvent struct {
	InstanceID string         // 实例 ID
	State      HeartbeatState // 流转后的状态
	Failures   int            // 当前连续失败次数
	Err        error          // 触发流转的错误（成功恢复时为 nil）
	Time       time.Time      // 事件时间
}

// heartbeatWorker 单个实例的心跳协程
//
// failures 与退避间隔仅由 run 协程访问，无需加锁。
type heartbeatWorker struct {
	reg      *nacosRegistry
	instance *ServiceInstance
	id       string
	key      nacos.InstanceKey
	state    atomic.Int32
	failures int
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newHeartbeatWorker(reg *nacosRegistry, instance *ServiceInstance) *heartbeatWorker {
	w := &heartbeatWorker{
		reg:      reg,
		instance: instance,
		id:       instance.InstanceID(),
		key:      instance.key(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.state.Store(int32(StateRegistered))
	return w
}

func (w *heartbeatWorker) currentState() HeartbeatState {
	return HeartbeatState(w.state.Load())
}

func (w *heartbeatWorker) setState(s HeartbeatState) {
	w.state.Store(int32(s))
}

// halt 停止心跳协程并等待其退出
//
// 返回后保证不会再发出任何心跳请求。
func (w *heartbeatWorker) halt() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *heartbeatWorker) run() {
	defer close(w.done)

	interval := w.reg.cfg.HeartbeatInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			w.setState(StateStopped)
			return
		case <-timer.C:
		}

		interval = w.beatOnce()
		timer.Reset(interval)
	}
}

// beatOnce 发送一次心跳并返回下次心跳的间隔
func (w *heartbeatWorker) beatOnce() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), w.reg.cfg.HeartbeatInterval+w.reg.cfg.MaxRetryInterval)
	defer cancel()

	result, err := w.reg.client.SendBeat(ctx, w.key, w.instance.toBeat())
	if err == nil && result.Code == nacos.CodeResourceNotFound {
		// 服务端丢失了临时实例（如服务端重启），自动重新注册
		w.reg.logger.Warn("instance missing on server, re-registering",
			clog.String("instance_id", w.id))
		if regErr := w.reg.client.RegisterInstance(ctx, w.instance.toWire()); regErr != nil {
			err = regErr
		} else {
			w.emit(StateRegistered, nil)
		}
	}

	if err != nil {
		return w.onFailure(ctx, err)
	}
	return w.onSuccess(ctx)
}

func (w *heartbeatWorker) onSuccess(ctx context.Context) time.Duration {
	if w.reg.beatSuccess != nil {
		w.reg.beatSuccess.Inc(ctx, metrics.L("service", w.instance.ServiceName))
	}

	recovered := w.currentState() == StateFailed
	w.failures = 0
	w.setState(StateHeartbeating)
	if recovered {
		w.reg.logger.Info("heartbeat recovered", clog.String("instance_id", w.id))
		w.emit(StateHeartbeating, nil)
	}
	return w.reg.cfg.HeartbeatInterval
}

func (w *heartbeatWorker) onFailure(ctx context.Context, err error) time.Duration {
	if w.reg.beatFailure != nil {
		w.reg.beatFailure.Inc(ctx, metrics.L("service", w.instance.ServiceName))
	}

	w.failures++
	w.reg.logger.Warn("heartbeat failed",
		clog.String("instance_id", w.id),
		clog.Int("failures", w.failures),
		clog.Error(err))

	if w.failures < w.reg.cfg.FailureThreshold {
		return w.reg.cfg.HeartbeatInterval
	}

	if w.currentState() != StateFailed {
		w.setState(StateFailed)
		w.reg.logger.Error("heartbeat entered failed state",
			clog.String("instance_id", w.id),
			clog.Int("failures", w.failures))
	}
	w.emit(StateFailed, err)

	// 达到阈值后按 2 倍指数退避，封顶 MaxRetryInterval，永不放弃
	exceeded := w.failures - w.reg.cfg.FailureThreshold
	backoff := w.reg.cfg.HeartbeatInterval
	for i := 0; i < exceeded && backoff < w.reg.cfg.MaxRetryInterval; i++ {
		backoff *= 2
	}
	if backoff > w.reg.cfg.MaxRetryInterval {
		backoff = w.reg.cfg.MaxRetryInterval
	}
	return backoff
}

// emit 投递心跳事件，通道满时丢弃
func (w *heartbeatWorker) emit(state HeartbeatState, err error) {
	event := HeartbeatEvent{
		InstanceID: w.id,
		State:      state,
		Failures:   w.failures,
		Err:        err,
		Time:       time.Now(),
	}
	select {
	case w.reg.events <- event:
	default:
	}
}
