package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/beacon/nacos"
)

// NacosServer 内存版 Nacos 服务端，实现 beacon 用到的 open API 子集。
// 用于单元测试，不依赖外部进程。所有方法并发安全。
type NacosServer struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	instances map[string]map[string]nacos.Instance // service key -> instance key -> instance
	beats     map[string]int                       // instance key -> 心跳次数
	configs   map[string]string                    // config key -> content

	down      bool
	failBeats bool

	username string
	password string
	token    string
}

// NewNacosServer 启动内存服务端，测试结束时自动关闭。
func NewNacosServer(t *testing.T) *NacosServer {
	t.Helper()
	s := &NacosServer{
		t:         t,
		instances: make(map[string]map[string]nacos.Instance),
		beats:     make(map[string]int),
		configs:   make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/nacos/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/nacos/v1/ns/instance", s.handleInstance)
	mux.HandleFunc("/nacos/v1/ns/instance/beat", s.handleBeat)
	mux.HandleFunc("/nacos/v1/ns/instance/list", s.handleList)
	mux.HandleFunc("/nacos/v1/ns/operator/metrics", s.handleMetrics)
	mux.HandleFunc("/nacos/v1/cs/configs", s.handleConfigs)
	mux.HandleFunc("/nacos/v1/cs/configs/listener", s.handleListener)

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

// Addr 返回服务端地址（host:port）
func (s *NacosServer) Addr() string {
	return strings.TrimPrefix(s.server.URL, "http://")
}

// ClientConfig 返回指向该服务端的客户端配置，超时按测试节奏调小。
func (s *NacosServer) ClientConfig() *nacos.Config {
	return &nacos.Config{
		ServerAddresses: []string{s.Addr()},
		Timeout:         2 * time.Second,
		LongPollTimeout: 200 * time.Millisecond,
		BreakerCooldown: 100 * time.Millisecond,
		Username:        s.username,
		Password:        s.password,
	}
}

// RequireAuth 开启用户名密码鉴权
func (s *NacosServer) RequireAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// SetDown 模拟服务端整体不可用（所有请求 500）
func (s *NacosServer) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetFailBeats 模拟心跳接口故障
func (s *NacosServer) SetFailBeats(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBeats = fail
}

// BeatCount 返回某实例收到的心跳次数
func (s *NacosServer) BeatCount(group, service, ip string, port int, cluster string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beats[instanceKey(ip, port, cluster)+"@"+serviceKey(group, service)]
}

// Instances 返回服务端视角下某服务的实例列表
func (s *NacosServer) Instances(group, service string) []nacos.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []nacos.Instance
	for _, inst := range s.instances[serviceKey(group, service)] {
		result = append(result, inst)
	}
	return result
}

// DropInstance 直接删除服务端记录的实例（模拟服务端重启丢失临时实例）
func (s *NacosServer) DropInstance(group, service, ip string, port int, cluster string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances[serviceKey(group, service)], instanceKey(ip, port, cluster))
}

// SetInstanceHealth 修改服务端记录的实例健康状态（模拟健康检查结果）
func (s *NacosServer) SetInstanceHealth(group, service, ip string, port int, cluster string, healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.instances[serviceKey(group, service)]
	if inst, ok := svc[instanceKey(ip, port, cluster)]; ok {
		inst.Healthy = healthy
		svc[instanceKey(ip, port, cluster)] = inst
	}
}

// PutConfig 直接写入服务端配置，模拟其他进程的外部变更
func (s *NacosServer) PutConfig(dataID, group, tenant, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[configKey(dataID, group, tenant)] = content
}

// ConfigContent 返回服务端保存的配置内容
func (s *NacosServer) ConfigContent(dataID, group, tenant string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.configs[configKey(dataID, group, tenant)]
	return content, ok
}

func serviceKey(group, service string) string {
	return group + "@@" + service
}

func instanceKey(ip string, port int, cluster string) string {
	return fmt.Sprintf("%s:%d:%s", ip, port, cluster)
}

func configKey(dataID, group, tenant string) string {
	return tenant + ":" + group + ":" + dataID
}

// unavailable 检查整体故障开关，已持锁时不可调用
func (s *NacosServer) unavailable(w http.ResponseWriter) bool {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		http.Error(w, "server is down", http.StatusInternalServerError)
	}
	return down
}

func (s *NacosServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	username, token := s.username, s.token
	s.mu.Unlock()
	if username == "" {
		return true
	}
	if r.FormValue("accessToken") != token || token == "" {
		http.Error(w, "unauthorized", http.StatusForbidden)
		return false
	}
	return true
}

func (s *NacosServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.FormValue("username") != s.username || r.FormValue("password") != s.password {
		http.Error(w, "unknown user", http.StatusForbidden)
		return
	}
	s.token = uuid.New().String()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accessToken": s.token,
		"tokenTtl":    18000,
	})
}

func (s *NacosServer) handleInstance(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) || !s.authorized(w, r) {
		return
	}

	group := formOr(r, "groupName", nacos.DefaultGroup)
	service := r.FormValue("serviceName")
	cluster := formOr(r, "clusterName", nacos.DefaultCluster)
	ip := r.FormValue("ip")
	port, _ := strconv.Atoi(r.FormValue("port"))

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		weight, _ := strconv.ParseFloat(formOr(r, "weight", "1"), 64)
		inst := nacos.Instance{
			InstanceID:  fmt.Sprintf("%s#%d#%s#%s", ip, port, cluster, serviceKey(group, service)),
			IP:          ip,
			Port:        port,
			ServiceName: serviceKey(group, service),
			ClusterName: cluster,
			Weight:      weight,
			Healthy:     true,
			Enabled:     formOr(r, "enabled", "true") == "true",
			Ephemeral:   formOr(r, "ephemeral", "true") == "true",
		}
		if meta := r.FormValue("metadata"); meta != "" {
			_ = json.Unmarshal([]byte(meta), &inst.Metadata)
		}
		sk := serviceKey(group, service)
		if s.instances[sk] == nil {
			s.instances[sk] = make(map[string]nacos.Instance)
		}
		s.instances[sk][instanceKey(ip, port, cluster)] = inst
		fmt.Fprint(w, "ok")

	case http.MethodDelete:
		sk := serviceKey(group, service)
		ik := instanceKey(ip, port, cluster)
		if _, ok := s.instances[sk][ik]; !ok {
			http.Error(w, "instance not found", http.StatusNotFound)
			return
		}
		delete(s.instances[sk], ik)
		fmt.Fprint(w, "ok")

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *NacosServer) handleBeat(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) || !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	failBeats := s.failBeats
	s.mu.Unlock()
	if failBeats {
		http.Error(w, "beat failure injected", http.StatusInternalServerError)
		return
	}

	var beat nacos.BeatInfo
	if err := json.Unmarshal([]byte(r.FormValue("beat")), &beat); err != nil {
		http.Error(w, "bad beat payload", http.StatusBadRequest)
		return
	}
	sk := r.FormValue("serviceName") // group@@service
	cluster := beat.Cluster
	if cluster == "" {
		cluster = nacos.DefaultCluster
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ik := instanceKey(beat.IP, beat.Port, cluster)
	if _, ok := s.instances[sk][ik]; !ok {
		_ = json.NewEncoder(w).Encode(nacos.BeatResult{Code: nacos.CodeResourceNotFound, ClientBeatInterval: 5000})
		return
	}
	s.beats[ik+"@"+sk]++
	_ = json.NewEncoder(w).Encode(nacos.BeatResult{Code: 10200, ClientBeatInterval: 5000, LightBeatEnabled: true})
}

func (s *NacosServer) handleList(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) || !s.authorized(w, r) {
		return
	}

	group := formOr(r, "groupName", nacos.DefaultGroup)
	service := r.FormValue("serviceName")
	healthyOnly := r.FormValue("healthyOnly") == "true"
	var clusters []string
	if cs := r.FormValue("clusters"); cs != "" {
		clusters = strings.Split(cs, ",")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hosts := []nacos.Instance{}
	for _, inst := range s.instances[serviceKey(group, service)] {
		if healthyOnly && (!inst.Healthy || !inst.Enabled) {
			continue
		}
		if len(clusters) > 0 && !contains(clusters, inst.ClusterName) {
			continue
		}
		hosts = append(hosts, inst)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":  serviceKey(group, service),
		"hosts": hosts,
	})
}

func (s *NacosServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "UP"})
}

func (s *NacosServer) handleConfigs(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) || !s.authorized(w, r) {
		return
	}

	key := configKey(r.FormValue("dataId"), formOr(r, "group", nacos.DefaultGroup), r.FormValue("tenant"))

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		content, ok := s.configs[key]
		if !ok {
			http.Error(w, "config data not exist", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, content)

	case http.MethodPost:
		s.configs[key] = r.FormValue("content")
		fmt.Fprint(w, "true")

	case http.MethodDelete:
		delete(s.configs, key)
		fmt.Fprint(w, "true")

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleListener 长轮询：有变更立即返回变更 key，否则挂起到超时后返回空。
func (s *NacosServer) handleListener(w http.ResponseWriter, r *http.Request) {
	if s.unavailable(w) || !s.authorized(w, r) {
		return
	}

	type watched struct {
		dataID, group, md5, tenant string
	}
	var entries []watched
	for _, line := range strings.Split(r.FormValue("Listening-Configs"), "\x01") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\x02")
		if len(parts) < 3 {
			continue
		}
		e := watched{dataID: parts[0], group: parts[1], md5: parts[2]}
		if len(parts) > 3 {
			e.tenant = parts[3]
		}
		entries = append(entries, e)
	}

	timeoutMs, _ := strconv.Atoi(r.Header.Get("Long-Pulling-Timeout"))
	if timeoutMs <= 0 {
		timeoutMs = 100
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	changed := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		var sb strings.Builder
		for _, e := range entries {
			// 不存在的配置指纹视为空串，与真实服务端行为一致
			fp := ""
			if content, ok := s.configs[configKey(e.dataID, e.group, e.tenant)]; ok {
				fp = nacos.Fingerprint(content)
			}
			if fp == e.md5 {
				continue
			}
			sb.WriteString(e.dataID)
			sb.WriteString("\x02")
			sb.WriteString(e.group)
			if e.tenant != "" {
				sb.WriteString("\x02")
				sb.WriteString(e.tenant)
			}
			sb.WriteString("\x01")
		}
		return sb.String()
	}

	for {
		if result := changed(); result != "" {
			fmt.Fprint(w, url.QueryEscape(result))
			return
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func formOr(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
