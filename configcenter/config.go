package configcenter

import "time"

// Config ConfigCenter 组件配置
type Config struct {
	// RetryInterval 长轮询出错后的重试间隔，默认 1s
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval" mapstructure:"retry_interval"`
}

// validate 校验配置并补齐默认值
func (c *Config) validate() error {
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.RetryInterval < 0 {
		return ErrInvalidConfig
	}
	return nil
}
