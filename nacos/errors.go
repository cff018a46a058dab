package nacos

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrConfigNotFound 配置项在服务端不存在（正常结果，调用方转换为空值）
	ErrConfigNotFound = xerrors.New("config not found")

	// ErrInstanceNotFound 实例在服务端不存在
	ErrInstanceNotFound = xerrors.New("instance not found")

	// ErrNoServerAvailable 所有服务端地址都不可达
	ErrNoServerAvailable = xerrors.New("no server available")
)
