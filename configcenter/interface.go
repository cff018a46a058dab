// Package configcenter 提供了基于 Nacos 的配置中心组件，支持本地缓存、写穿透与变更监听。
//
// configcenter 组件在 Nacos 连接器的基础上提供了：
// - 配置读取，优先命中本地缓存
// - 配置发布与删除，写操作同步更新本地缓存（写穿透）
// - 结构化配置解析（JSON/YAML）
// - 配置变更监听，后台长轮询感知远端变更并回调通知
// - 与 L0 基础组件（日志、指标、错误）的深度集成
//
// ## 基本使用
//
//	conn, _ := connector.NewNacos(&cfg.Nacos, connector.WithLogger(logger))
//	defer conn.Close()
//	conn.Connect(ctx)
//
//	cc, _ := configcenter.New(conn, nil, configcenter.WithLogger(logger))
//	defer cc.Close()
//
//	// 读取配置
//	content, found, err := cc.GetConfig(ctx, "app.yaml")
//
//	// 发布配置
//	err = cc.SetConfig(ctx, "app.yaml", "timeout: 3s", configcenter.WithFormat(configcenter.FormatYAML))
//
//	// 监听变更
//	id, _ := cc.AddListener("app.yaml", func(event configcenter.ChangeEvent) {
//		log.Printf("config changed: %s", event.Content)
//	})
//	defer cc.RemoveListener(id)
//
// ## 缓存语义
//
// GetConfig 优先返回本地缓存的内容，未命中时查询服务端并回填。
// SetConfig/DeleteConfig 成功后同步更新缓存，同进程内读写不依赖远端往返。
// 存在监听器时，后台长轮询会把远端变更同步进缓存。
//
// ## 监听语义
//
// 全部监听键复用同一个长轮询协程。同一配置键上的事件按变更顺序
// 依次投递；单个监听器 panic 会被隔离，不影响其他监听器和轮询协程。
package configcenter

import "context"

// ConfigCenter 配置中心接口
type ConfigCenter interface {
	// GetConfig 读取配置内容
	//
	// 返回 (content, found, err)。配置不存在时 found 为 false，不视为错误。
	GetConfig(ctx context.Context, dataID string, opts ...ConfigOption) (string, bool, error)

	// GetConfigMap 读取配置并解析为键值结构
	//
	// 支持 JSON 和 YAML，默认按内容自动识别。
	// 配置不存在返回 ErrConfigNotFound，解析失败返回 CONFIG_PARSE 错误码。
	GetConfigMap(ctx context.Context, dataID string, opts ...ConfigOption) (map[string]any, error)

	// SetConfig 发布配置，成功后同步更新本地缓存
	SetConfig(ctx context.Context, dataID, content string, opts ...ConfigOption) error

	// DeleteConfig 删除配置，成功后移除本地缓存
	//
	// 配置本就不存在时返回 (true, nil)，删除是幂等的。
	DeleteConfig(ctx context.Context, dataID string, opts ...ConfigOption) (bool, error)

	// AddListener 注册配置变更监听器，返回监听器 ID
	//
	// 首个监听器注册时启动后台长轮询协程。
	AddListener(dataID string, listener Listener, opts ...ConfigOption) (string, error)

	// RemoveListener 按 ID 移除监听器，返回是否存在
	RemoveListener(id string) bool

	// Close 停止监听协程、清空缓存并释放资源
	Close() error
}

// ChangeEvent 配置变更事件
type ChangeEvent struct {
	DataID  string // 配置 ID
	Group   string // 分组
	Content string // 变更后的内容，配置被删除时为空串
}

// Listener 配置变更回调
//
// 回调在监听协程中同步执行，不应长时间阻塞。
type Listener func(event ChangeEvent)
