// Package discovery 提供了基于 Nacos 的服务发现组件，支持本地缓存与客户端负载均衡。
//
// discovery 组件在 Nacos 连接器的基础上提供了：
// - 服务实例列表查询，支持分组、集群、健康实例过滤
// - 本地 TTL 缓存，降低服务端查询压力
// - 多种负载均衡策略（随机、加权随机、轮询）
// - 与 L0 基础组件（日志、指标、错误）的深度集成
//
// ## 基本使用
//
//	conn, _ := connector.NewNacos(&cfg.Nacos, connector.WithLogger(logger))
//	defer conn.Close()
//	conn.Connect(ctx)
//
//	disc, _ := discovery.New(conn, &discovery.Config{
//		CacheTTL: 10 * time.Second,
//	}, discovery.WithLogger(logger))
//	defer disc.Close()
//
//	// 查询全部健康实例
//	instances, err := disc.GetInstances(ctx, "user-service")
//
//	// 按策略选取一个实例
//	instance, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyWeightRandom)
//	if instance == nil {
//		// 无可用实例
//	}
//
// ## 缓存语义
//
// GetInstances 优先命中本地缓存，未命中或过期时查询服务端并整体替换缓存条目。
// 空实例列表同样会被缓存，属于正常结果而非错误。需要强制刷新时使用 Refresh。
//
// ## 设计原则
//
// - **借用模型**：discovery 组件借用 Nacos 连接器的连接，不负责连接的生命周期
// - **显式依赖**：通过构造函数显式注入连接器和选项
// - **读多写少**：缓存条目整体替换，读取方拿到的切片不会被并发修改
package discovery

import (
	"context"

	"github.com/ceyewan/beacon/registry"
)

// Discovery 服务发现接口
type Discovery interface {
	// GetInstances 查询服务实例列表
	//
	// 优先读取本地缓存，缓存未命中或过期时查询服务端。
	// 服务不存在或无实例时返回空列表，不返回错误。
	GetInstances(ctx context.Context, serviceName string, opts ...QueryOption) ([]*registry.ServiceInstance, error)

	// Refresh 绕过缓存强制查询服务端，并用结果刷新缓存
	Refresh(ctx context.Context, serviceName string, opts ...QueryOption) ([]*registry.ServiceInstance, error)

	// ChooseOne 按负载均衡策略选取一个实例
	//
	// 无可用实例时返回 (nil, nil)。未知策略返回 ErrUnknownStrategy。
	ChooseOne(ctx context.Context, serviceName string, strategy Strategy, opts ...QueryOption) (*registry.ServiceInstance, error)

	// Close 清空缓存并释放资源
	Close() error
}
