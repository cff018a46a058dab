package registry

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrInvalidServiceInstance 无效的服务实例
	ErrInvalidServiceInstance = xerrors.New("invalid service instance")

	// ErrInvalidInstanceID 无效的实例 ID
	ErrInvalidInstanceID = xerrors.New("invalid instance id")

	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = xerrors.New("invalid registry config")

	// ErrRegistryClosed registry 已关闭
	ErrRegistryClosed = xerrors.New("registry is closed")
)
