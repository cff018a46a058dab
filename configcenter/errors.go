package configcenter

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = xerrors.New("invalid configcenter config")

	// ErrInvalidDataID 无效的配置 ID
	ErrInvalidDataID = xerrors.New("invalid data id")

	// ErrNilListener 监听器不能为空
	ErrNilListener = xerrors.New("nil listener")

	// ErrConfigNotFound 配置不存在
	ErrConfigNotFound = xerrors.New("config not found")

	// ErrCenterClosed configcenter 已关闭
	ErrCenterClosed = xerrors.New("configcenter is closed")
)
