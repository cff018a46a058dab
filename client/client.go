// Package client 是 Beacon 的应用入口，把连接器和三个治理组件装配成一个客户端。
//
// client 负责：
// - 创建并持有 Nacos 连接器（唯一的连接所有者）
// - 装配 registry、discovery、configcenter 三个组件，共享同一个连接器
// - Start 时建立连接并注册配置声明的服务实例
// - Stop/Close 时注销实例并按 LIFO 顺序释放资源
// - Run 提供带信号处理的运行模式，收到 SIGINT/SIGTERM 自动优雅退出
//
// ## 基本使用
//
//	app, err := client.New(&client.Config{
//		Nacos: connector.NacosConfig{
//			ServerAddresses: []string{"127.0.0.1:8848"},
//		},
//		Instances: []*registry.ServiceInstance{
//			{ServiceName: "user-service", IP: "192.168.1.10", Port: 8080},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 阻塞运行直到收到退出信号
//	if err := app.Run(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// 或者手动控制生命周期：
//
//	if err := app.Start(ctx); err != nil { ... }
//	defer app.Close()
//
//	instance, _ := app.Discovery().ChooseOne(ctx, "order-service", discovery.StrategyWeightRandom)
//	content, _, _ := app.ConfigCenter().GetConfig(ctx, "app.yaml")
package client

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/configcenter"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/discovery"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/registry"
	"github.com/ceyewan/beacon/xerrors"
)

// Client Beacon 客户端
type Client struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter

	conn         connector.NacosConnector
	registry     registry.Registry
	discovery    discovery.Discovery
	configCenter configcenter.ConfigCenter

	instanceIDs []string
	started     uint32
	closed      uint32
}

// Option 客户端初始化选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 注入外部日志记录器，覆盖 Config.Log
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeter 注入外部指标收集器，覆盖 Config.Metrics
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// New 创建客户端并装配全部组件，不发起网络请求
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, xerrors.New("client config required")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid client config")
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}

	logger := opt.logger
	if logger == nil {
		logCfg := cfg.Log
		if logCfg == nil {
			logCfg = &clog.Config{Level: "info", Format: "console", Output: "stdout"}
		}
		var err error
		logger, err = clog.New(logCfg)
		if err != nil {
			return nil, xerrors.Wrap(err, "create logger")
		}
	}

	meter := opt.meter
	if meter == nil {
		var err error
		meter, err = metrics.New(cfg.Metrics)
		if err != nil {
			return nil, xerrors.Wrap(err, "create meter")
		}
	}

	c := &Client{
		cfg:    cfg,
		logger: logger.WithNamespace("beacon"),
		meter:  meter,
	}

	conn, err := connector.NewNacos(&cfg.Nacos,
		connector.WithLogger(c.logger), connector.WithMeter(meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "create nacos connector")
	}
	c.conn = conn

	reg, err := registry.New(conn, cfg.Registry,
		registry.WithLogger(c.logger), registry.WithMeter(meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "create registry")
	}
	c.registry = reg

	disc, err := discovery.New(conn, cfg.Discovery,
		discovery.WithLogger(c.logger), discovery.WithMeter(meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "create discovery")
	}
	c.discovery = disc

	cc, err := configcenter.New(conn, cfg.ConfigCenter,
		configcenter.WithLogger(c.logger), configcenter.WithMeter(meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "create configcenter")
	}
	c.configCenter = cc

	return c, nil
}

// Start 建立连接并注册配置中声明的服务实例
//
// 幂等，重复调用直接返回 nil。任一实例注册失败会回滚已注册的实例。
func (c *Client) Start(ctx context.Context) error {
	if atomic.LoadUint32(&c.closed) == 1 {
		return xerrors.New("client is closed")
	}
	if !atomic.CompareAndSwapUint32(&c.started, 0, 1) {
		return nil
	}

	if err := c.conn.Connect(ctx); err != nil {
		atomic.StoreUint32(&c.started, 0)
		return err
	}

	for _, instance := range c.cfg.Instances {
		id, err := c.registry.Register(ctx, instance)
		if err != nil {
			c.logger.Error("failed to register configured instance",
				clog.String("service_name", instance.ServiceName),
				clog.Error(err))
			c.rollbackInstances(ctx)
			atomic.StoreUint32(&c.started, 0)
			return xerrors.Wrapf(err, "register instance %s", instance.ServiceName)
		}
		c.instanceIDs = append(c.instanceIDs, id)
	}

	c.logger.Info("client started",
		clog.Int("instances", len(c.instanceIDs)))
	return nil
}

func (c *Client) rollbackInstances(ctx context.Context) {
	for _, id := range c.instanceIDs {
		if _, err := c.registry.Deregister(ctx, id); err != nil {
			c.logger.Warn("rollback deregister failed",
				clog.String("instance_id", id),
				clog.Error(err))
		}
	}
	c.instanceIDs = nil
}

// Run 启动客户端并阻塞，直到 ctx 取消或收到 SIGINT/SIGTERM，然后优雅退出
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		c.logger.Info("context cancelled, shutting down")
	case sig := <-sigCh:
		c.logger.Info("signal received, shutting down",
			clog.String("signal", sig.String()))
	}
	return c.Close()
}

// Close 注销实例并按 LIFO 顺序释放全部资源
//
// 幂等，重复调用直接返回 nil。
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil
	}

	var errs []error

	// 组件先于连接器关闭：configcenter -> discovery -> registry -> connector
	// registry.Close 会注销包括 Instances 在内的全部实例
	if err := c.configCenter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.discovery.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("client closed")
	return xerrors.Combine(errs...)
}

// Registry 返回服务注册组件
func (c *Client) Registry() registry.Registry {
	return c.registry
}

// Discovery 返回服务发现组件
func (c *Client) Discovery() discovery.Discovery {
	return c.discovery
}

// ConfigCenter 返回配置中心组件
func (c *Client) ConfigCenter() configcenter.ConfigCenter {
	return c.configCenter
}

// Connector 返回底层 Nacos 连接器
func (c *Client) Connector() connector.NacosConnector {
	return c.conn
}

// Logger 返回客户端日志记录器
func (c *Client) Logger() clog.Logger {
	return c.logger
}

// Meter 返回指标收集器
func (c *Client) Meter() metrics.Meter {
	return c.meter
}
