package discovery

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/registry"
	"github.com/ceyewan/beacon/xerrors"
)

// New 创建 Discovery 实例（基于 Nacos）
//
// 参数:
//   - conn: Nacos 连接器
//   - cfg: Discovery 配置，nil 时使用默认配置
//   - opts: 可选参数 (Logger, Meter)
func New(conn connector.NacosConnector, cfg *Config, opts ...Option) (Discovery, error) {
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

	cache, err := otter.New(&otter.Options[string, []*registry.ServiceInstance]{
		MaximumSize:      cfg.CacheCapacity,
		ExpiryCalculator: otter.ExpiryWriting[string, []*registry.ServiceInstance](cfg.CacheTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build instance cache")
	}

	d := &nacosDiscovery{
		client: client,
		cfg:    cfg,
		logger: opt.logger,
		cache:  cache,
	}

	if opt.meter != nil {
		d.cacheHits, err = opt.meter.Counter(
			"discovery_cache_hits_total",
			"Number of instance list cache hits",
			"service",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create cache hits counter")
		}
		d.cacheMisses, err = opt.meter.Counter(
			"discovery_cache_misses_total",
			"Number of instance list cache misses",
			"service",
		)
		if err != nil {
			return nil, xerrors.Wrap(err, "create cache misses counter")
		}
	}

	return d, nil
}

// nacosDiscovery 基于 Nacos 的服务发现实现
type nacosDiscovery struct {
	client *nacos.Client
	cfg    *Config
	logger clog.Logger

	cache       *otter.Cache[string, []*registry.ServiceInstance]
	cacheHits   metrics.Counter
	cacheMisses metrics.Counter

	// 轮询计数器按 service+group 维度隔离
	roundRobins sync.Map // cacheKey prefix -> *roundRobinBalancer
	closed      uint32
}

func (d *nacosDiscovery) isClosed() bool {
	return atomic.LoadUint32(&d.closed) == 1
}

// GetInstances 查询服务实例列表
func (d *nacosDiscovery) GetInstances(ctx context.Context, serviceName string, opts ...QueryOption) ([]*registry.ServiceInstance, error) {
	if d.isClosed() {
		return nil, ErrDiscoveryClosed
	}
	if serviceName == "" {
		return nil, ErrInvalidServiceName
	}
	q := newQuery(opts)
	key := cacheKey(serviceName, q)

	if instances, ok := d.cache.GetIfPresent(key); ok {
		if d.cacheHits != nil {
			d.cacheHits.Inc(ctx, metrics.L("service", serviceName))
		}
		return instances, nil
	}
	if d.cacheMisses != nil {
		d.cacheMisses.Inc(ctx, metrics.L("service", serviceName))
	}

	return d.fetch(ctx, serviceName, q, key)
}

// Refresh 绕过缓存强制查询服务端
func (d *nacosDiscovery) Refresh(ctx context.Context, serviceName string, opts ...QueryOption) ([]*registry.ServiceInstance, error) {
	if d.isClosed() {
		return nil, ErrDiscoveryClosed
	}
	if serviceName == "" {
		return nil, ErrInvalidServiceName
	}
	q := newQuery(opts)
	return d.fetch(ctx, serviceName, q, cacheKey(serviceName, q))
}

// ChooseOne 按负载均衡策略选取一个实例
func (d *nacosDiscovery) ChooseOne(ctx context.Context, serviceName string, strategy Strategy, opts ...QueryOption) (*registry.ServiceInstance, error) {
	q := newQuery(opts)
	b, err := d.balancerFor(strategy, serviceName, q)
	if err != nil {
		return nil, err
	}

	instances, err := d.GetInstances(ctx, serviceName, opts...)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	return b.pick(instances), nil
}

// Close 清空缓存并释放资源
func (d *nacosDiscovery) Close() error {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return nil
	}
	d.cache.InvalidateAll()
	d.logger.Info("discovery closed")
	return nil
}

// fetch 查询服务端并整体替换缓存条目
func (d *nacosDiscovery) fetch(ctx context.Context, serviceName string, q query, key string) ([]*registry.ServiceInstance, error) {
	hosts, err := d.client.SelectInstances(ctx, nacos.InstanceQuery{
		ServiceName: serviceName,
		GroupName:   q.group,
		Clusters:    q.clusters,
		HealthyOnly: q.healthyOnly,
	})
	if err != nil {
		d.logger.Error("failed to fetch instances",
			clog.String("service_name", serviceName),
			clog.String("group", q.group),
			clog.Error(err))
		return nil, err
	}

	instances := make([]*registry.ServiceInstance, 0, len(hosts))
	for _, host := range hosts {
		// 个别服务端实现对 healthyOnly 不过滤 enabled，这里兜底
		if q.healthyOnly && !(host.Healthy && host.Enabled) {
			continue
		}
		instances = append(instances, fromWire(host, q.group))
	}

	d.cache.Set(key, instances)
	d.logger.Debug("instance list refreshed",
		clog.String("service_name", serviceName),
		clog.String("group", q.group),
		clog.Int("count", len(instances)))
	return instances, nil
}

// balancerFor 返回策略对应的均衡器，未知策略报错
func (d *nacosDiscovery) balancerFor(strategy Strategy, serviceName string, q query) (balancer, error) {
	switch strategy {
	case StrategyRandom:
		return randomBalancer{}, nil
	case StrategyWeightRandom:
		return weightRandomBalancer{}, nil
	case StrategyRoundRobin:
		key := q.group + "@@" + serviceName
		if v, ok := d.roundRobins.Load(key); ok {
			return v.(*roundRobinBalancer), nil
		}
		v, _ := d.roundRobins.LoadOrStore(key, &roundRobinBalancer{})
		return v.(*roundRobinBalancer), nil
	default:
		return nil, xerrors.Wrapf(ErrUnknownStrategy, "strategy %q", strategy)
	}
}

// fromWire 把服务端返回的实例转换为领域对象
func fromWire(host nacos.Instance, group string) *registry.ServiceInstance {
	serviceName := host.ServiceName
	if g, s, ok := strings.Cut(serviceName, "@@"); ok {
		if group == "" {
			group = g
		}
		serviceName = s
	}
	if host.GroupName != "" {
		group = host.GroupName
	}
	cluster := host.ClusterName
	if cluster == "" {
		cluster = nacos.DefaultCluster
	}
	return &registry.ServiceInstance{
		ServiceName: serviceName,
		IP:          host.IP,
		Port:        host.Port,
		GroupName:   group,
		ClusterName: cluster,
		Weight:      host.Weight,
		Metadata:    host.Metadata,
		Healthy:     host.Healthy,
		Enabled:     host.Enabled,
	}
}

// cacheKey 按查询维度构造缓存键
func cacheKey(serviceName string, q query) string {
	var b strings.Builder
	b.WriteString(q.group)
	b.WriteString("@@")
	b.WriteString(serviceName)
	b.WriteString("@@")
	b.WriteString(strings.Join(q.clusters, ","))
	if q.healthyOnly {
		b.WriteString("@@healthy")
	}
	return b.String()
}
