package configcenter

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/xerrors"
)

// New 创建 ConfigCenter 实例（基于 Nacos）
//
// 参数:
//   - conn: Nacos 连接器
//   - cfg: ConfigCenter 配置，nil 时使用默认配置
//   - opts: 可选参数 (Logger, Meter)
func New(conn connector.NacosConnector, cfg *Config, opts ...Option) (ConfigCenter, error) {
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

	watchCtx, watchCancel := context.WithCancel(context.Background())
	c := &nacosConfigCenter{
		client:      client,
		cfg:         cfg,
		logger:      opt.logger,
		cache:       make(map[nacos.ConfigKey]string),
		listeners:   make(map[string]*listenerEntry),
		order:       make(map[nacos.ConfigKey][]string),
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
		watchWake:   make(chan struct{}, 1),
	}

	if opt.meter != nil {
		var err error
		c.changeEvents, err = opt.meter.Counter(
			"configcenter_change_events_total",
			"Number of config change events dispatched",
			"data_id",
		)
		if err != nil {
			watchCancel()
			return nil, xerrors.Wrap(err, "create change events counter")
		}
	}

	return c, nil
}

// listenerEntry 单个监听器
type listenerEntry struct {
	id  string
	key nacos.ConfigKey
	fn  Listener
}

// nacosConfigCenter 基于 Nacos 的配置中心实现
type nacosConfigCenter struct {
	client *nacos.Client
	cfg    *Config
	logger clog.Logger

	changeEvents metrics.Counter

	mu        sync.RWMutex
	cache     map[nacos.ConfigKey]string        // 本地配置缓存
	listeners map[string]*listenerEntry         // listenerID -> entry
	order     map[nacos.ConfigKey][]string      // 配置键 -> 注册顺序的 listenerID

	watchCtx    context.Context
	watchCancel context.CancelFunc
	watchWake   chan struct{}
	watchOnce   sync.Once
	wg          sync.WaitGroup
	closed      uint32
}

func (c *nacosConfigCenter) isClosed() bool {
	return atomic.LoadUint32(&c.closed) == 1
}

// GetConfig 读取配置内容
func (c *nacosConfigCenter) GetConfig(ctx context.Context, dataID string, opts ...ConfigOption) (string, bool, error) {
	if c.isClosed() {
		return "", false, ErrCenterClosed
	}
	if dataID == "" {
		return "", false, ErrInvalidDataID
	}
	q := newConfigQuery(opts)
	key := nacos.ConfigKey{DataID: dataID, Group: q.group}

	c.mu.RLock()
	content, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return content, true, nil
	}

	content, err := c.client.GetConfig(ctx, key)
	if err != nil {
		if xerrors.Is(err, nacos.ErrConfigNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	c.mu.Lock()
	c.cache[key] = content
	c.mu.Unlock()
	return content, true, nil
}

// GetConfigMap 读取配置并解析为键值结构
func (c *nacosConfigCenter) GetConfigMap(ctx context.Context, dataID string, opts ...ConfigOption) (map[string]any, error) {
	q := newConfigQuery(opts)
	content, found, err := c.GetConfig(ctx, dataID, opts...)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Wrapf(ErrConfigNotFound, "dataId %q group %q", dataID, q.group)
	}
	return parseContent(content, q.format)
}

// SetConfig 发布配置，成功后同步更新本地缓存
func (c *nacosConfigCenter) SetConfig(ctx context.Context, dataID, content string, opts ...ConfigOption) error {
	if c.isClosed() {
		return ErrCenterClosed
	}
	if dataID == "" {
		return ErrInvalidDataID
	}
	q := newConfigQuery(opts)
	key := nacos.ConfigKey{DataID: dataID, Group: q.group}

	contentType := string(q.format)
	if q.format == FormatAuto {
		contentType = "text"
	}

	ok, err := c.client.PublishConfig(ctx, key, content, contentType)
	if err != nil {
		c.logger.Error("failed to publish config",
			clog.String("data_id", dataID),
			clog.String("group", q.group),
			clog.Error(err))
		return err
	}
	if !ok {
		return xerrors.Newf(xerrors.CodeConfig, "server rejected config publish: %s/%s", q.group, dataID)
	}

	c.mu.Lock()
	changed := c.cache[key] != content
	c.cache[key] = content
	c.mu.Unlock()
	if changed {
		c.notifyLocal(key, content)
	}

	c.logger.Info("config published",
		clog.String("data_id", dataID),
		clog.String("group", q.group))
	return nil
}

// DeleteConfig 删除配置，成功后移除本地缓存
func (c *nacosConfigCenter) DeleteConfig(ctx context.Context, dataID string, opts ...ConfigOption) (bool, error) {
	if c.isClosed() {
		return false, ErrCenterClosed
	}
	if dataID == "" {
		return false, ErrInvalidDataID
	}
	q := newConfigQuery(opts)
	key := nacos.ConfigKey{DataID: dataID, Group: q.group}

	ok, err := c.client.DeleteConfig(ctx, key)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	_, had := c.cache[key]
	delete(c.cache, key)
	c.mu.Unlock()
	if had {
		c.notifyLocal(key, "")
	}

	c.logger.Info("config deleted",
		clog.String("data_id", dataID),
		clog.String("group", q.group))
	return ok, nil
}

// AddListener 注册配置变更监听器
func (c *nacosConfigCenter) AddListener(dataID string, listener Listener, opts ...ConfigOption) (string, error) {
	if c.isClosed() {
		return "", ErrCenterClosed
	}
	if dataID == "" {
		return "", ErrInvalidDataID
	}
	if listener == nil {
		return "", ErrNilListener
	}
	q := newConfigQuery(opts)
	key := nacos.ConfigKey{DataID: dataID, Group: q.group}

	entry := &listenerEntry{
		id:  uuid.NewString(),
		key: key,
		fn:  listener,
	}

	c.mu.Lock()
	c.listeners[entry.id] = entry
	c.order[key] = append(c.order[key], entry.id)
	c.mu.Unlock()

	c.watchOnce.Do(func() {
		c.wg.Add(1)
		go c.watchLoop()
	})
	c.wake()

	c.logger.Debug("listener added",
		clog.String("data_id", dataID),
		clog.String("group", q.group),
		clog.String("listener_id", entry.id))
	return entry.id, nil
}

// RemoveListener 按 ID 移除监听器
func (c *nacosConfigCenter) RemoveListener(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.listeners[id]
	if !ok {
		return false
	}
	delete(c.listeners, id)

	ids := c.order[entry.key]
	for i, lid := range ids {
		if lid == id {
			c.order[entry.key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(c.order[entry.key]) == 0 {
		delete(c.order, entry.key)
	}
	return true
}

// Close 停止监听协程、清空缓存并释放资源
func (c *nacosConfigCenter) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil
	}

	c.watchCancel()
	c.wg.Wait()

	c.mu.Lock()
	c.cache = make(map[nacos.ConfigKey]string)
	c.listeners = make(map[string]*listenerEntry)
	c.order = make(map[nacos.ConfigKey][]string)
	c.mu.Unlock()

	c.logger.Info("configcenter closed")
	return nil
}

// parseContent 按格式解析配置内容
func parseContent(content string, format Format) (map[string]any, error) {
	if format == FormatAuto {
		trimmed := strings.TrimSpace(content)
		if strings.HasPrefix(trimmed, "{") {
			format = FormatJSON
		} else {
			format = FormatYAML
		}
	}

	result := make(map[string]any)
	switch format {
	case FormatJSON:
		if err := json.Unmarshal([]byte(content), &result); err != nil {
			return nil, xerrors.WithCode(xerrors.Wrap(err, "parse json config"), xerrors.CodeConfigParse)
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(content), &result); err != nil {
			return nil, xerrors.WithCode(xerrors.Wrap(err, "parse yaml config"), xerrors.CodeConfigParse)
		}
	default:
		return nil, xerrors.Newf(xerrors.CodeConfigParse, "unsupported config format %q", format)
	}
	return result, nil
}
