package discovery

import "time"

// Config Discovery 组件配置
type Config struct {
	// CacheTTL 本地实例列表缓存的过期时间，默认 10s
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" mapstructure:"cache_ttl"`

	// CacheCapacity 缓存最大条目数（按查询维度计），默认 1024
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity" mapstructure:"cache_capacity"`
}

// validate 校验配置并补齐默认值
func (c *Config) validate() error {
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Second
	}
	if c.CacheTTL < 0 {
		return ErrInvalidConfig
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = 1024
	}
	if c.CacheCapacity < 0 {
		return ErrInvalidConfig
	}
	return nil
}
