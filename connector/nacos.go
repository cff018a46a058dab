package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/xerrors"
)

type nacosConnector struct {
	cfg                   *NacosConfig
	client                *nacos.Client
	logger                clog.Logger
	meter                 metrics.Meter
	healthy               atomic.Bool
	connected             atomic.Bool
	mu                    sync.RWMutex
	totalConnections      metrics.Counter
	successfulConnections metrics.Counter
	failedConnections     metrics.Counter
	activeConnections     metrics.Gauge
}

// NewNacos 创建 Nacos 连接器
func NewNacos(cfg *NacosConfig, opts ...Option) (NacosConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrapf(ErrConfig, "nil config")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid nacos config")
	}

	opt := &options{logger: clog.Discard()}
	for _, o := range opts {
		o(opt)
	}

	c := &nacosConnector{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("connector", "nacos"), clog.String("name", cfg.Name)),
		meter:  opt.meter,
	}

	if c.meter != nil {
		var err error
		c.totalConnections, err = c.meter.Counter(
			"connector_nacos_total_connections",
			"Total number of Nacos connection attempts",
			"connector",
		)
		if err != nil {
			return nil, xerrors.Wrapf(err, "create total connections counter")
		}

		c.successfulConnections, err = c.meter.Counter(
			"connector_nacos_successful_connections",
			"Number of successful Nacos connections",
			"connector",
		)
		if err != nil {
			return nil, xerrors.Wrapf(err, "create successful connections counter")
		}

		c.failedConnections, err = c.meter.Counter(
			"connector_nacos_failed_connections",
			"Number of failed Nacos connections",
			"connector",
		)
		if err != nil {
			return nil, xerrors.Wrapf(err, "create failed connections counter")
		}

		c.activeConnections, err = c.meter.Gauge(
			"connector_nacos_active_connections",
			"Number of active Nacos connections",
			"connector",
		)
		if err != nil {
			return nil, xerrors.Wrapf(err, "create active connections gauge")
		}
	}

	client, err := nacos.NewClient(cfg.toClientConfig(), nacos.WithLogger(c.logger))
	if err != nil {
		return nil, xerrors.Wrapf(err, "nacos connector[%s]: create client failed", cfg.Name)
	}

	c.client = client
	return c, nil
}

// Connect 建立连接
func (c *nacosConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return ErrAlreadyClosed
	}
	if c.connected.Load() {
		return nil
	}

	if c.totalConnections != nil {
		c.totalConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
	}

	c.logger.Info("attempting to connect to nacos", clog.Any("servers", c.cfg.ServerAddresses))

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	status, err := c.client.ServerStatus(probeCtx)
	if err != nil {
		if c.failedConnections != nil {
			c.failedConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
		}
		c.logger.Error("failed to connect to nacos", clog.Error(err))
		return xerrors.Wrapf(err, "nacos connector[%s]: connect failed", c.cfg.Name)
	}

	if c.successfulConnections != nil {
		c.successfulConnections.Inc(ctx, metrics.L("connector", c.cfg.Name))
	}
	if c.activeConnections != nil {
		c.activeConnections.Set(ctx, float64(1), metrics.L("connector", c.cfg.Name))
	}

	c.connected.Store(true)
	c.healthy.Store(true)
	c.logger.Info("successfully connected to nacos",
		clog.Any("servers", c.cfg.ServerAddresses), clog.String("status", status))
	return nil
}

// Close 关闭连接
func (c *nacosConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("closing nacos connection")

	c.healthy.Store(false)
	c.connected.Store(false)

	if c.activeConnections != nil {
		c.activeConnections.Set(context.Background(), float64(0), metrics.L("connector", c.cfg.Name))
	}

	// 底层客户端无持久连接，置空即可阻止后续使用
	c.client = nil
	return nil
}

// HealthCheck 检查连接健康状态
func (c *nacosConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return ErrClientNil
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	status, err := client.ServerStatus(probeCtx)
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("nacos health check failed", clog.Error(err))
		return xerrors.Wrapf(err, "nacos connector[%s]: health check failed", c.cfg.Name)
	}
	if status != "UP" {
		c.healthy.Store(false)
		c.logger.Warn("nacos server reports degraded status", clog.String("status", status))
		return xerrors.Wrapf(ErrHealthCheck, "nacos connector[%s]: server status %s", c.cfg.Name, status)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *nacosConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *nacosConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Nacos 客户端
func (c *nacosConnector) GetClient() *nacos.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
