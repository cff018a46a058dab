package registry

import "time"

// Config Registry 组件配置
type Config struct {
	// HeartbeatInterval 心跳发送间隔，默认 5s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval" mapstructure:"heartbeat_interval"`

	// FailureThreshold 连续失败多少次后进入 FAILED 状态，默认 3
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold" mapstructure:"failure_threshold"`

	// MaxRetryInterval 失败重试的最大退避间隔，默认 30s
	//
	// 进入 FAILED 状态后重试间隔按 2 倍指数退避，达到此上限后保持不变，
	// 重试永不放弃，直到心跳恢复或实例被注销。
	MaxRetryInterval time.Duration `yaml:"max_retry_interval" json:"max_retry_interval" mapstructure:"max_retry_interval"`

	// EventBufferSize 心跳事件通道缓冲大小，默认 16
	//
	// 通道满时新事件被丢弃，不会阻塞心跳协程。
	EventBufferSize int `yaml:"event_buffer_size" json:"event_buffer_size" mapstructure:"event_buffer_size"`
}

// validate 校验配置并补齐默认值
func (c *Config) validate() error {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.HeartbeatInterval < 0 {
		return ErrInvalidConfig
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.FailureThreshold < 0 {
		return ErrInvalidConfig
	}
	if c.MaxRetryInterval == 0 {
		c.MaxRetryInterval = 30 * time.Second
	}
	if c.MaxRetryInterval < c.HeartbeatInterval {
		c.MaxRetryInterval = c.HeartbeatInterval
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = 16
	}
	return nil
}
