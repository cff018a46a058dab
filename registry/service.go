package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ceyewan/beacon/nacos"
)

// ServiceInstance 代表一个待注册的服务实例
//
// 零值字段会在注册时补齐默认值：分组为 DEFAULT_GROUP，
// 集群为 DEFAULT，权重为 1.0。实例始终以临时实例（ephemeral）
// 身份注册，由客户端心跳维持存活。
type ServiceInstance struct {
	ServiceName string            `json:"service_name" yaml:"service_name" mapstructure:"service_name"` // [必填] 服务名称 (如 user-service)
	IP          string            `json:"ip" yaml:"ip" mapstructure:"ip"`           // [必填] 实例 IP
	Port        int               `json:"port" yaml:"port" mapstructure:"port"`         // [必填] 实例端口 (1~65535)
	GroupName   string            `json:"group_name" yaml:"group_name" mapstructure:"group_name"`   // 分组名 (默认: DEFAULT_GROUP)
	ClusterName string            `json:"cluster_name" yaml:"cluster_name" mapstructure:"cluster_name"` // 集群名 (默认: DEFAULT)
	Weight      float64           `json:"weight" yaml:"weight" mapstructure:"weight"`       // 负载均衡权重 (默认: 1.0)
	Metadata    map[string]string `json:"metadata" yaml:"metadata" mapstructure:"metadata"`     // 元数据 (Region, Zone, Version 等)

	// Healthy / Enabled 由服务发现结果填充；注册时忽略，
	// 临时实例总是以健康、启用状态上报
	Healthy bool `json:"healthy" yaml:"healthy" mapstructure:"healthy"`
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// setDefaults 设置默认值
func (s *ServiceInstance) setDefaults() {
	if s.GroupName == "" {
		s.GroupName = nacos.DefaultGroup
	}
	if s.ClusterName == "" {
		s.ClusterName = nacos.DefaultCluster
	}
	if s.Weight == 0 {
		s.Weight = 1.0
	}
}

// validate 校验实例合法性
func (s *ServiceInstance) validate() error {
	if s.ServiceName == "" {
		return fmt.Errorf("服务名称不能为空")
	}
	if s.IP == "" {
		return fmt.Errorf("实例 IP 不能为空")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("端口必须在 1~65535 之间: %d", s.Port)
	}
	if s.Weight < 0 {
		return fmt.Errorf("权重不能为负数: %f", s.Weight)
	}
	return nil
}

// InstanceID 返回实例的唯一标识
//
// 格式与 Nacos 服务端一致: ip#port#cluster#group@@service
func (s *ServiceInstance) InstanceID() string {
	return fmt.Sprintf("%s#%d#%s#%s@@%s", s.IP, s.Port, s.ClusterName, s.GroupName, s.ServiceName)
}

// key 返回实例的服务端定位键
func (s *ServiceInstance) key() nacos.InstanceKey {
	return nacos.InstanceKey{
		ServiceName: s.ServiceName,
		GroupName:   s.GroupName,
		IP:          s.IP,
		Port:        s.Port,
		ClusterName: s.ClusterName,
		Ephemeral:   true,
	}
}

// toWire 转换为注册接口的线上格式
func (s *ServiceInstance) toWire() *nacos.Instance {
	return &nacos.Instance{
		IP:          s.IP,
		Port:        s.Port,
		ServiceName: s.ServiceName,
		GroupName:   s.GroupName,
		ClusterName: s.ClusterName,
		Weight:      s.Weight,
		Healthy:     true,
		Enabled:     true,
		Ephemeral:   true,
		Metadata:    s.Metadata,
	}
}

// toBeat 转换为心跳包
func (s *ServiceInstance) toBeat() *nacos.BeatInfo {
	return &nacos.BeatInfo{
		IP:          s.IP,
		Port:        s.Port,
		ServiceName: s.ServiceName,
		Cluster:     s.ClusterName,
		Weight:      s.Weight,
		Metadata:    s.Metadata,
	}
}

// parseInstanceID 解析 InstanceID 为服务端定位键
func parseInstanceID(instanceID string) (nacos.InstanceKey, error) {
	parts := strings.SplitN(instanceID, "#", 4)
	if len(parts) != 4 {
		return nacos.InstanceKey{}, ErrInvalidInstanceID
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 {
		return nacos.InstanceKey{}, ErrInvalidInstanceID
	}
	group, service, ok := strings.Cut(parts[3], "@@")
	if !ok || group == "" || service == "" {
		return nacos.InstanceKey{}, ErrInvalidInstanceID
	}
	return nacos.InstanceKey{
		ServiceName: service,
		GroupName:   group,
		IP:          parts[0],
		Port:        port,
		ClusterName: parts[2],
		Ephemeral:   true,
	}, nil
}
