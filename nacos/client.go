// Package nacos 实现 Nacos open API (v1) 的底层 HTTP 客户端。
//
// 该包只负责线上协议：构造请求、鉴权、服务端地址轮换与熔断，不包含任何
// 缓存或后台任务。注册中心、服务发现与配置中心组件（registry、discovery、
// configcenter）借用同一个 Client 完成远端调用。
//
// 特性：
//   - 多地址故障转移：按顺序的 ServerAddresses，传输失败时切换下一个
//   - 每个服务端地址独立熔断（gobreaker），业务 4xx 不计入熔断
//   - 可选的客户端限流（golang.org/x/time/rate）
//   - 用户名/密码登录换取 accessToken，过期前自动刷新
//   - 所有请求都受 Context 和有界超时约束
package nacos

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/levigross/grequests"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/xerrors"
)

// Config 客户端连接参数。构造后只读，被所有上层组件共享。
type Config struct {
	// ServerAddresses 服务端地址列表（有序），如 "127.0.0.1:8848"
	ServerAddresses []string `json:"server_addresses" yaml:"server_addresses" mapstructure:"server_addresses"`
	// Namespace 命名空间 ID，空串为默认命名空间
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	// Username/Password 用户名密码鉴权（可选）
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	// AccessKey/SecretKey 云端 AK/SK 鉴权（可选）
	AccessKey string `json:"access_key" yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key" mapstructure:"secret_key"`
	// ContextPath 服务端上下文路径，默认 "/nacos"
	ContextPath string `json:"context_path" yaml:"context_path" mapstructure:"context_path"`
	// Timeout 单次请求超时，默认 5s
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// LongPollTimeout 配置监听长轮询的服务端挂起时长，默认 30s
	LongPollTimeout time.Duration `json:"long_poll_timeout" yaml:"long_poll_timeout" mapstructure:"long_poll_timeout"`
	// RequestsPerSecond 客户端请求限流，0 表示不限流
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// BreakerThreshold 单个服务端连续失败多少次后熔断，默认 5
	BreakerThreshold uint32 `json:"breaker_threshold" yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	// BreakerCooldown 熔断后的冷却时长，过后进入半开探测，默认 10s
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// SetDefaults 填充默认值
func (c *Config) SetDefaults() {
	if c.ContextPath == "" {
		c.ContextPath = "/nacos"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.LongPollTimeout == 0 {
		c.LongPollTimeout = 30 * time.Second
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = 10 * time.Second
	}
}

// Validate 校验连接参数
func (c *Config) Validate() error {
	if len(c.ServerAddresses) == 0 {
		return xerrors.New("server addresses required")
	}
	for _, addr := range c.ServerAddresses {
		if addr == "" {
			return xerrors.New("empty server address")
		}
	}
	return nil
}

// Option 客户端选项
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("nacos")
		}
	}
}

// Client Nacos open API 客户端
type Client struct {
	cfg    *Config
	logger clog.Logger

	breakers sync.Map // server addr -> *gobreaker.CircuitBreaker[*grequests.Response]
	limiter  *rate.Limiter
	current  atomic.Int64 // 最近一次成功的服务端下标

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient 创建客户端。不发起网络请求，首个请求才接触服务端。
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, xerrors.New("nacos config required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid nacos config")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}

	c := &Client{
		cfg:    cfg,
		logger: o.logger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}
	return c, nil
}

// Namespace 返回连接所属命名空间
func (c *Client) Namespace() string {
	return c.cfg.Namespace
}

// statusError 服务端返回的非 2xx 业务响应
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.status, strings.TrimSpace(e.body))
}

// isNotFound 判断错误是否为服务端 404
func isNotFound(err error) bool {
	var se *statusError
	return xerrors.As(err, &se) && se.status == 404
}

// api 执行一次 open API 调用，带鉴权、限流、地址故障转移与熔断。
// 返回响应体文本。传输失败与 5xx 会切换下一个地址；4xx 停止切换直接返回。
func (c *Client) api(ctx context.Context, method, path string, params map[string]string, headers map[string]string, timeout time.Duration) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", xerrors.WithCode(err, xerrors.CodeConnection)
		}
	}

	if params == nil {
		params = map[string]string{}
	}
	if headers == nil {
		headers = map[string]string{}
	}
	if err := c.attachAuth(ctx, params, headers); err != nil {
		return "", err
	}

	servers := c.cfg.ServerAddresses
	start := int(c.current.Load()) % len(servers)

	var lastErr error
	for i := 0; i < len(servers); i++ {
		idx := (start + i) % len(servers)
		addr := servers[idx]

		body, err := c.doOnce(ctx, addr, method, path, params, headers, timeout)
		if err == nil {
			c.current.Store(int64(idx))
			return body, nil
		}

		var se *statusError
		if xerrors.As(err, &se) && se.status < 500 {
			// 业务拒绝，切换服务端无意义
			return "", err
		}

		c.logger.Warn("nacos server unreachable, trying next",
			clog.String("server", addr),
			clog.String("path", path),
			clog.Error(err))
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrNoServerAvailable
	}
	return "", xerrors.WithCode(xerrors.Wrap(lastErr, "all nacos servers failed"), xerrors.CodeConnection)
}

// doOnce 向指定服务端发起一次请求，经过该地址的熔断器。
func (c *Client) doOnce(ctx context.Context, addr, method, path string, params, headers map[string]string, timeout time.Duration) (string, error) {
	cb := c.breakerFor(addr)

	res, err := cb.Execute(func() (*grequests.Response, error) {
		ro := &grequests.RequestOptions{
			Context:        ctx,
			RequestTimeout: timeout,
			DialTimeout:    c.cfg.Timeout,
			Headers:        headers,
		}
		// GET/DELETE 走查询串，POST/PUT 走表单
		if method == "GET" || method == "DELETE" {
			ro.Params = params
		} else {
			ro.Data = params
		}

		url := c.buildURL(addr, path)
		var res *grequests.Response
		var err error
		switch method {
		case "GET":
			res, err = grequests.Get(url, ro)
		case "POST":
			res, err = grequests.Post(url, ro)
		case "PUT":
			res, err = grequests.Put(url, ro)
		case "DELETE":
			res, err = grequests.Delete(url, ro)
		default:
			return nil, xerrors.Newf(xerrors.CodeConnection, "unsupported method %s", method)
		}
		if err != nil {
			return nil, xerrors.WithCode(err, xerrors.CodeConnection)
		}
		if res.StatusCode >= 500 {
			body := res.String()
			_ = res.Close()
			return nil, &statusError{status: res.StatusCode, body: body}
		}
		return res, nil
	})
	if err != nil {
		if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", xerrors.WithCode(err, xerrors.CodeConnection)
		}
		return "", err
	}

	defer func() { _ = res.Close() }()
	body := res.String()
	if res.StatusCode >= 300 {
		return "", &statusError{status: res.StatusCode, body: body}
	}
	return body, nil
}

func (c *Client) buildURL(addr, path string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr + c.cfg.ContextPath + path
}

// breakerFor 获取或创建指定地址的熔断器。
// 连续传输失败达到阈值后打开，冷却期过后进入半开试探。
func (c *Client) breakerFor(addr string) *gobreaker.CircuitBreaker[*grequests.Response] {
	if v, ok := c.breakers.Load(addr); ok {
		return v.(*gobreaker.CircuitBreaker[*grequests.Response])
	}

	cb := gobreaker.NewCircuitBreaker[*grequests.Response](gobreaker.Settings{
		Name:        addr,
		MaxRequests: 3,
		Timeout:     c.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("server breaker state changed",
				clog.String("server", name),
				clog.String("from", from.String()),
				clog.String("to", to.String()))
		},
	})
	actual, _ := c.breakers.LoadOrStore(addr, cb)
	return actual.(*gobreaker.CircuitBreaker[*grequests.Response])
}

// attachAuth 附加鉴权信息：accessToken 参数或 AK/SK 签名头。
func (c *Client) attachAuth(ctx context.Context, params, headers map[string]string) error {
	if c.cfg.Username != "" {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}
		params["accessToken"] = token
	}
	if c.cfg.AccessKey != "" {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		headers["Spas-AccessKey"] = c.cfg.AccessKey
		headers["timeStamp"] = ts
		headers["Spas-Signature"] = c.sign(ts)
	}
	return nil
}

// ensureToken 登录换取 accessToken，提前 1/3 生命周期刷新。
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	var lastErr error
	for _, addr := range c.cfg.ServerAddresses {
		res, err := grequests.Post(c.buildURL(addr, "/v1/auth/login"), &grequests.RequestOptions{
			Context:        ctx,
			RequestTimeout: c.cfg.Timeout,
			Data: map[string]string{
				"username": c.cfg.Username,
				"password": c.cfg.Password,
			},
		})
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode != 200 {
			body := res.String()
			_ = res.Close()
			lastErr = &statusError{status: res.StatusCode, body: body}
			// 凭证错误不可能在别的地址成功
			if res.StatusCode == 401 || res.StatusCode == 403 {
				break
			}
			continue
		}

		var lr loginResp
		err = json.Unmarshal(res.Bytes(), &lr)
		_ = res.Close()
		if err != nil {
			lastErr = xerrors.Wrap(err, "decode login response")
			continue
		}

		c.accessToken = lr.AccessToken
		ttl := time.Duration(lr.TokenTTL) * time.Second
		if ttl <= 0 {
			ttl = 5 * time.Second
		}
		c.tokenExpiry = time.Now().Add(ttl * 2 / 3)
		c.logger.Debug("nacos login ok", clog.String("server", addr))
		return c.accessToken, nil
	}

	return "", xerrors.WithCode(xerrors.Wrap(lastErr, "nacos login failed"), xerrors.CodeConnection)
}

// sign 计算 AK/SK 签名（HMAC-SHA1 over timestamp，base64 编码）
func (c *Client) sign(ts string) string {
	mac := hmac.New(sha1.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(ts))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ServerStatus 探测服务端可用性，返回状态字符串（如 "UP"）。
func (c *Client) ServerStatus(ctx context.Context) (string, error) {
	body, err := c.api(ctx, "GET", "/v1/ns/operator/metrics", nil, nil, c.cfg.Timeout)
	if err != nil {
		return "", err
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", xerrors.Wrap(err, "decode metrics response")
	}
	return resp.Status, nil
}
