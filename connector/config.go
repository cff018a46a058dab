package connector

import (
	"fmt"
	"time"

	"github.com/ceyewan/beacon/nacos"
)

// NacosConfig Nacos 连接配置
type NacosConfig struct {
	// 基础配置（可选，有默认值）
	Name            string        `mapstructure:"name"`              // 连接器名称 (默认: "default")
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`   // 连接探测超时 (默认: 5s)
	HealthCheckFreq time.Duration `mapstructure:"health_check_freq"` // 健康检查频率 (默认: 30s)

	// 核心配置
	ServerAddresses []string `mapstructure:"server_addresses"` // [必填] 服务端地址列表 "host:port"
	Namespace       string   `mapstructure:"namespace"`        // 命名空间 ID (默认: "")
	ContextPath     string   `mapstructure:"context_path"`     // 服务端上下文路径 (默认: "/nacos")

	// 鉴权配置（可选）
	Username  string `mapstructure:"username"`   // 用户名，与 Password 成对出现
	Password  string `mapstructure:"password"`   // 密码
	AccessKey string `mapstructure:"access_key"` // 阿里云 AK，与 SecretKey 成对出现
	SecretKey string `mapstructure:"secret_key"` // 阿里云 SK

	// 高级配置（可选，有默认值）
	Timeout           time.Duration `mapstructure:"timeout"`             // 单次请求超时 (默认: 5s)
	LongPollTimeout   time.Duration `mapstructure:"long_poll_timeout"`   // 配置监听长轮询时长 (默认: 30s)
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 客户端限流速率，0 表示不限流
	BreakerThreshold  uint32        `mapstructure:"breaker_threshold"`   // 单服务端熔断阈值 (默认: 5)
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`    // 熔断冷却时长 (默认: 10s)
}

// SetDefaults 设置默认值
func (c *NacosConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.HealthCheckFreq == 0 {
		c.HealthCheckFreq = 30 * time.Second
	}
	if c.ContextPath == "" {
		c.ContextPath = "/nacos"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.LongPollTimeout == 0 {
		c.LongPollTimeout = 30 * time.Second
	}
}

// Validate 校验配置合法性
func (c *NacosConfig) Validate() error {
	c.SetDefaults()
	if len(c.ServerAddresses) == 0 {
		return fmt.Errorf("服务端地址列表不能为空")
	}
	for _, addr := range c.ServerAddresses {
		if addr == "" {
			return fmt.Errorf("服务端地址不能为空字符串")
		}
	}
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("用户名和密码必须成对配置")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("AccessKey 和 SecretKey 必须成对配置")
	}
	return nil
}

// toClientConfig 转换为底层客户端配置
func (c *NacosConfig) toClientConfig() *nacos.Config {
	return &nacos.Config{
		ServerAddresses:   c.ServerAddresses,
		Namespace:         c.Namespace,
		ContextPath:       c.ContextPath,
		Username:          c.Username,
		Password:          c.Password,
		AccessKey:         c.AccessKey,
		SecretKey:         c.SecretKey,
		Timeout:           c.Timeout,
		LongPollTimeout:   c.LongPollTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		BreakerThreshold:  c.BreakerThreshold,
		BreakerCooldown:   c.BreakerCooldown,
	}
}
