package nacos

// 服务与配置的默认分组/集群常量
const (
	DefaultGroup   = "DEFAULT_GROUP"
	DefaultCluster = "DEFAULT"
)

// Instance Nacos 实例的线上模型（open API JSON 字段）
type Instance struct {
	InstanceID  string            `json:"instanceId,omitempty"`
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	ServiceName string            `json:"serviceName,omitempty"`
	GroupName   string            `json:"groupName,omitempty"`
	ClusterName string            `json:"clusterName,omitempty"`
	Weight      float64           `json:"weight"`
	Healthy     bool              `json:"healthy"`
	Enabled     bool              `json:"enabled"`
	Ephemeral   bool              `json:"ephemeral"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// instanceListResp /ns/instance/list 的响应体
type instanceListResp struct {
	Name  string     `json:"name"`
	Hosts []Instance `json:"hosts"`
}

// InstanceQuery 实例列表查询参数
type InstanceQuery struct {
	ServiceName string
	GroupName   string
	Clusters    []string
	HealthyOnly bool
}

// InstanceKey 唯一标识一个实例（注销/心跳使用）
type InstanceKey struct {
	ServiceName string
	GroupName   string
	IP          string
	Port        int
	ClusterName string
	Ephemeral   bool
}

// BeatInfo 心跳载荷，随 beat 参数以 JSON 发送
type BeatInfo struct {
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	ServiceName string            `json:"serviceName"`
	Cluster     string            `json:"cluster,omitempty"`
	Weight      float64           `json:"weight,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BeatResult 心跳响应
type BeatResult struct {
	ClientBeatInterval int64 `json:"clientBeatInterval"`
	Code               int   `json:"code"`
	LightBeatEnabled   bool  `json:"lightBeatEnabled"`
}

// 服务端业务码
const (
	// CodeResourceNotFound 服务端已不认识该实例（租约过期），需要重新注册
	CodeResourceNotFound = 20404
)

// ConfigKey 唯一标识一个配置项
type ConfigKey struct {
	DataID string
	Group  string
	Tenant string // namespace
}

// ListenEntry 监听请求中的一项：key + 已知指纹（内容 MD5）
type ListenEntry struct {
	Key         ConfigKey
	Fingerprint string
}

// loginResp /auth/login 的响应体
type loginResp struct {
	AccessToken string `json:"accessToken"`
	TokenTTL    int64  `json:"tokenTtl"`
}
