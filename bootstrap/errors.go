package bootstrap

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrEmptyConfig 加载后没有任何配置来源提供数据
	ErrEmptyConfig = xerrors.New("bootstrap: no configuration loaded")

	// ErrNotLoaded 在 Load 之前调用了读取方法
	ErrNotLoaded = xerrors.New("bootstrap: loader not loaded")
)
