package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/xerrors"
)

// New 创建 Registry 实例（基于 Nacos）
// 这是标准的工厂函数，支持在不依赖 Client 的情况下独立实例化
//
// 参数:
//   - conn: Nacos 连接器
//   - cfg: Registry 配置，nil 时使用默认配置
//   - opts: 可选参数 (Logger, Meter)
//
// 使用示例:
//
//	nacosConn, _ := connector.NewNacos(nacosConfig)
//	reg, _ := registry.New(nacosConn, &registry.Config{
//	    HeartbeatInterval: 5 * time.Second,
//	}, registry.WithLogger(logger))
func New(conn connector.NacosConnector, cfg *Config, opts ...Option) (Registry, error) {
	if conn == nil {
		return nil, xerrors.New("nacos connector is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	if opt.logger == nil {
		opt.logger = clog.Discard()
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.New("nacos client cannot be nil")
	}

	r := &nacosRegistry{
		client:  client,
		cfg:     cfg,
		logger:  opt.logger,
		workers: make(map[string]*heartbeatWorker),
		events:  make(chan HeartbeatEvent, cfg.EventBufferSize),
	}

	if opt.meter != nil {
		var err error
		r.beatSuccess, err = opt.meter.Counter(
			"registry_heartbeat_success_total",
			"Number of successful heartbeats",
			"service",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create heartbeat success counter")
		}
		r.beatFailure, err = opt.meter.Counter(
			"registry_heartbeat_failure_total",
			"Number of failed heartbeats",
			"service",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create heartbeat failure counter")
		}
	}

	return r, nil
}

// nacosRegistry 基于 Nacos 的服务注册实现
type nacosRegistry struct {
	client *nacos.Client
	cfg    *Config
	logger clog.Logger

	beatSuccess metrics.Counter
	beatFailure metrics.Counter

	workers map[string]*heartbeatWorker // instanceID -> worker
	events  chan HeartbeatEvent
	mu      sync.Mutex
	closed  uint32
}

func (r *nacosRegistry) isClosed() bool {
	return atomic.LoadUint32(&r.closed) == 1
}

// Register 注册服务实例并启动心跳保活
func (r *nacosRegistry) Register(ctx context.Context, service *ServiceInstance) (string, error) {
	if r.isClosed() {
		return "", ErrRegistryClosed
	}
	if service == nil {
		return "", ErrInvalidServiceInstance
	}
	service.setDefaults()
	if err := service.validate(); err != nil {
		return "", xerrors.Wrap(ErrInvalidServiceInstance, err.Error())
	}

	instanceID := service.InstanceID()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Close 可能在上面的快速检查之后完成，持锁后必须再确认一次，
	// 否则新 worker 会在事件通道关闭后继续发送
	if r.isClosed() {
		return "", ErrRegistryClosed
	}

	// 幂等：同一实例重复注册直接返回
	if _, exists := r.workers[instanceID]; exists {
		return instanceID, nil
	}

	if err := r.client.RegisterInstance(ctx, service.toWire()); err != nil {
		r.logger.Error("failed to register instance",
			clog.String("instance_id", instanceID),
			clog.Error(err))
		return "", err
	}

	w := newHeartbeatWorker(r, service)
	r.workers[instanceID] = w
	go w.run()

	r.logger.Info("service registered",
		clog.String("instance_id", instanceID),
		clog.String("service_name", service.ServiceName),
		clog.Duration("heartbeat_interval", r.cfg.HeartbeatInterval))

	return instanceID, nil
}

// Deregister 注销服务实例
func (r *nacosRegistry) Deregister(ctx context.Context, instanceID string) (bool, error) {
	if r.isClosed() {
		return false, ErrRegistryClosed
	}
	key, err := parseInstanceID(instanceID)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	w := r.workers[instanceID]
	delete(r.workers, instanceID)
	r.mu.Unlock()

	// 先停心跳再删实例，保证返回后不会有心跳把实例"复活"
	if w != nil {
		w.halt()
	}

	removed, err := r.client.DeregisterInstance(ctx, key)
	if err != nil {
		// 服务端本来就没有这个实例：目标状态已达成，不算失败
		if xerrors.Is(err, nacos.ErrInstanceNotFound) {
			return false, nil
		}
		r.logger.Error("failed to deregister instance",
			clog.String("instance_id", instanceID),
			clog.Error(err))
		return false, err
	}

	r.logger.Info("service deregistered",
		clog.String("instance_id", instanceID),
		clog.Bool("removed", removed))
	return removed, nil
}

// State 返回实例当前的心跳状态
func (r *nacosRegistry) State(instanceID string) HeartbeatState {
	r.mu.Lock()
	w := r.workers[instanceID]
	r.mu.Unlock()
	if w == nil {
		return StateUnregistered
	}
	return w.currentState()
}

// Events 返回心跳事件通道
func (r *nacosRegistry) Events() <-chan HeartbeatEvent {
	return r.events
}

// Close 停止所有心跳协程并注销全部实例
func (r *nacosRegistry) Close() error {
	if !atomic.CompareAndSwapUint32(&r.closed, 0, 1) {
		return nil
	}

	r.mu.Lock()
	workers := make([]*heartbeatWorker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.workers = make(map[string]*heartbeatWorker)
	r.mu.Unlock()

	var errs []error
	for _, w := range workers {
		w.halt()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := r.client.DeregisterInstance(ctx, w.key); err != nil && !xerrors.Is(err, nacos.ErrInstanceNotFound) {
			r.logger.Warn("failed to deregister instance on close",
				clog.String("instance_id", w.id),
				clog.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	close(r.events)
	r.logger.Info("registry closed", clog.Int("instances", len(workers)))
	return xerrors.Combine(errs...)
}
