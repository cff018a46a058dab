// Package bootstrap 负责从本地来源装载 Beacon 客户端配置。
//
// 远端配置走 configcenter，bootstrap 解决的是"连上配置中心之前"的问题：
// 客户端自身的服务器地址、凭证、组件参数需要从文件和环境变量读出来。
// 基于 Viper 实现，支持多源加载和文件热更新。
//
// 配置优先级（高到低）：
//   - 环境变量（带 EnvPrefix 前缀，点号换下划线，如 BEACON_NACOS_NAMESPACE）
//   - .env 文件（通过 godotenv 注入环境变量）
//   - 环境特定配置文件（BEACON_ENV=dev 时加载 beacon.dev.yaml）
//   - 基础配置文件（beacon.yaml）
//
// 基本使用：
//
//	loader, err := bootstrap.New(&bootstrap.Config{
//		Paths: []string{"./config"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := loader.Load(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg, err := loader.ClientConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	app, err := client.New(cfg)
//
// 监听本地配置文件变化：
//
//	ch, _ := loader.Watch(ctx, "nacos.namespace")
//	for event := range ch {
//		fmt.Printf("%s: %v -> %v\n", event.Key, event.OldValue, event.Value)
//	}
package bootstrap

import (
	"context"
	"time"

	"github.com/ceyewan/beacon/client"
)

// Loader 本地配置加载器
type Loader interface {
	// Load 从文件、.env 和环境变量加载配置，并开始监听文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值，key 用点号分隔（如 "nacos.namespace"）
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 key 下的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// ClientConfig 将配置解析为 Beacon 客户端配置
	ClientConfig() (*client.Config, error)

	// Watch 监听指定 key 的变化，ctx 取消时停止监听并关闭通道
	Watch(ctx context.Context, key string) (<-chan Event, error)
}

// Event 本地配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Timestamp time.Time
}
