// Package registry 提供了基于 Nacos 的服务注册组件，负责实例注册、注销与心跳保活。
//
// registry 组件是 Beacon 治理层的核心组件，它在 Nacos 连接器的基础上提供了：
// - 服务实例的注册与注销
// - 后台心跳协程，按固定间隔向服务端续约
// - 心跳失败的指数退避重试与自动重新注册
// - 心跳状态机与事件通知，便于应用感知实例存活状态
// - 与 L0 基础组件（日志、指标、错误）的深度集成
//
// ## 基本使用
//
//	conn, _ := connector.NewNacos(&cfg.Nacos, connector.WithLogger(logger))
//	defer conn.Close()
//	conn.Connect(ctx)
//
//	reg, _ := registry.New(conn, &registry.Config{
//		HeartbeatInterval: 5 * time.Second,
//	}, registry.WithLogger(logger))
//	defer reg.Close()
//
//	// 注册服务实例
//	instanceID, err := reg.Register(ctx, &registry.ServiceInstance{
//		ServiceName: "user-service",
//		IP:          "192.168.1.10",
//		Port:        8080,
//	})
//
//	// 优雅下线
//	ok, err := reg.Deregister(ctx, instanceID)
//
// ## 心跳状态机
//
// 每个注册的实例由独立的心跳协程维护，状态流转如下：
//
//	UNREGISTERED -> REGISTERED -> HEARTBEATING -> STOPPED (注销)
//	                                  |    ^
//	                                  v    | (恢复)
//	                                FAILED (连续失败达到阈值，指数退避重试)
//
// 服务端返回"实例不存在"业务码时（例如服务端重启丢失临时实例），
// 心跳协程会自动重新注册该实例。
//
// ## 设计原则
//
// - **借用模型**：registry 组件借用 Nacos 连接器的连接，不负责连接的生命周期
// - **显式依赖**：通过构造函数显式注入连接器和选项
// - **幂等注册**：对同一实例重复 Register 返回相同 ID，不产生多余心跳协程
// - **可观测性**：集成 clog 和 metrics，提供完整的日志和指标能力
package registry

import "context"

// Registry 服务注册接口
type Registry interface {
	// Register 注册服务实例并启动心跳保活
	//
	// 返回实例 ID（格式: ip#port#cluster#group@@service）。
	// 对同一实例重复调用是幂等的，返回相同 ID。
	Register(ctx context.Context, service *ServiceInstance) (string, error)

	// Deregister 注销服务实例
	//
	// 先停止心跳协程（返回后不会再发出任何心跳），再从服务端删除实例。
	// 实例不存在时返回 (false, nil)。
	Deregister(ctx context.Context, instanceID string) (bool, error)

	// State 返回实例当前的心跳状态
	//
	// 未注册的实例返回 StateUnregistered。
	State(instanceID string) HeartbeatState

	// Events 返回心跳事件通道
	//
	// 状态流转（失败、恢复、重新注册）会投递事件到此通道。
	// 通道缓冲满时事件被丢弃，消费方不应长时间阻塞。
	// Close() 后通道被关闭。
	Events() <-chan HeartbeatEvent

	// Close 停止所有心跳协程并注销全部实例
	Close() error
}
