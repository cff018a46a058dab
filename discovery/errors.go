package discovery

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = xerrors.New("invalid discovery config")

	// ErrInvalidServiceName 无效的服务名
	ErrInvalidServiceName = xerrors.New("invalid service name")

	// ErrUnknownStrategy 未知的负载均衡策略
	ErrUnknownStrategy = xerrors.New("unknown load balance strategy")

	// ErrDiscoveryClosed discovery 已关闭
	ErrDiscoveryClosed = xerrors.New("discovery is closed")
)
