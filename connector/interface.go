// Package connector 为 Beacon 框架提供统一的连接管理能力。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 类型安全：通过 TypedConnector[T] 泛型接口确保编译时类型检查
//   - 健康检查：通过服务端状态探测验证连接可用性
//   - 并发安全：所有公开方法均为并发安全，支持多协程同时访问
//   - 资源管理：遵循"谁创建，谁负责释放"原则，Close() 应在应用层调用
//
// 设计理念：
//   - 接口优先：定义清晰的接口契约，实现细节可替换
//   - 显式依赖注入：通过构造函数注入依赖，避免全局状态
//   - 幂等连接：Connect() 方法可安全重复调用
//   - 延迟连接：NewNacos() 创建连接器但不立即建立连接，Connect() 时才探测
//
// 基本使用：
//
//	cfg := &connector.NacosConfig{
//		ServerAddresses: []string{"127.0.0.1:8848"},
//		Namespace:       "public",
//	}
//	conn, err := connector.NewNacos(cfg, connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	// 建立连接（幂等，可多次调用）
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//
//	// 获取类型安全的客户端
//	client := conn.GetClient()
//	content, err := client.GetConfig(ctx, key)
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期，应通过 defer 确保 Close() 被调用。
//	Component（如 registry、configcenter）仅借用 Connector，不应调用 Close()。
//	应用层应按照 LIFO 顺序释放资源：先关闭依赖 Connector 的组件，再关闭 Connector。
package connector

import (
	"context"

	"github.com/ceyewan/beacon/nacos"
)

// Connector 定义所有连接器的通用行为。
//
// 所有连接器必须实现此接口，确保一致的连接管理体验。
// 接口方法均为并发安全，可从多个协程同时调用。
type Connector interface {
	// Connect 建立连接。
	//
	// 此方法是幂等的，可安全多次调用。首次调用时探测服务端可用性，
	// 后续调用直接返回 nil。连接过程阻塞直到成功或失败。
	//
	// 返回错误：
	//   - ErrConnection: 连接建立失败
	//   - ErrConfig: 配置无效
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源。
	//
	// 此方法是幂等的，可安全多次调用。关闭后，
	// GetClient() 将返回 nil，HealthCheck() 将返回 ErrClientNil。
	//
	// 重要：应在应用层通过 defer 确保调用，遵循"谁创建，谁负责释放"原则。
	Close() error

	// HealthCheck 检查连接健康状态。
	//
	// 通过服务端状态探测验证连接可用性。此方法会更新内部健康状态缓存，
	// 可通过 IsHealthy() 快速读取。
	//
	// 返回错误：
	//   - ErrClientNil: 客户端未初始化或已关闭
	//   - ErrHealthCheck: 健康检查失败
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回缓存的健康状态。
	//
	// 此方法无阻塞，直接返回最后一次 HealthCheck() 的结果。
	// 对于实时健康检查，应使用 HealthCheck() 方法。
	IsHealthy() bool

	// Name 返回连接实例名称。
	//
	// 名称用于日志记录和指标标识，应在配置中唯一标识此连接器实例。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
//
// 此接口组合了 Connector 基础接口，并添加了 GetClient() 方法
// 用于获取特定类型的客户端。所有具体连接器接口都应基于此定义。
//
// 类型参数 T 是客户端类型，如 *nacos.Client。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例。
	//
	// 调用者应通过此客户端执行实际的远程操作。
	// 注意：在 Connect() 之前或 Close() 之后调用可能返回 nil。
	GetClient() T
}

// NacosConnector Nacos 连接器接口。
//
// 提供对 Nacos 服务端的连接管理，服务注册、服务发现与配置中心
// 组件共享同一个连接器实例，避免重复建连与重复鉴权。
type NacosConnector interface {
	TypedConnector[*nacos.Client]
}
