package client

import (
	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/configcenter"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/discovery"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/registry"
)

// Config 客户端配置
//
// 只有 Nacos 是必填项，其余组件配置为 nil 时使用各自的默认值。
type Config struct {
	// Nacos 连接配置
	Nacos connector.NacosConfig `yaml:"nacos" json:"nacos" mapstructure:"nacos"`

	// Log 日志配置，nil 时输出 info 级别到 stdout
	Log *clog.Config `yaml:"log" json:"log" mapstructure:"log"`

	// Metrics 指标配置，nil 或 Enabled=false 时指标为空操作
	Metrics *metrics.Config `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Registry 服务注册组件配置
	Registry *registry.Config `yaml:"registry" json:"registry" mapstructure:"registry"`

	// Discovery 服务发现组件配置
	Discovery *discovery.Config `yaml:"discovery" json:"discovery" mapstructure:"discovery"`

	// ConfigCenter 配置中心组件配置
	ConfigCenter *configcenter.Config `yaml:"config_center" json:"config_center" mapstructure:"config_center"`

	// Instances Start 时自动注册、Stop 时自动注销的服务实例
	Instances []*registry.ServiceInstance `yaml:"instances" json:"instances" mapstructure:"instances"`
}

// validate 校验配置
func (c *Config) validate() error {
	return c.Nacos.Validate()
}
