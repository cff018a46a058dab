package nacos

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/beacon/xerrors"
)

// 长轮询协议的字段/条目分隔符
const (
	wordSeparator = "\x02"
	lineSeparator = "\x01"
)

// Fingerprint 计算配置内容的变更指纹（MD5 十六进制）。
// 空内容的指纹为 ""，与服务端"配置不存在"语义一致。
func Fingerprint(content string) string {
	if content == "" {
		return ""
	}
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// tenantFor 配置操作的租户：key 未指定时落到连接的命名空间
func (c *Client) tenantFor(key ConfigKey) string {
	if key.Tenant != "" {
		return key.Tenant
	}
	return c.cfg.Namespace
}

// GetConfig 获取配置内容。
// 配置不存在返回 ErrConfigNotFound；传输失败返回 CONNECTION 错误。
func (c *Client) GetConfig(ctx context.Context, key ConfigKey) (string, error) {
	params := map[string]string{
		"dataId": key.DataID,
		"group":  key.Group,
	}
	if tenant := c.tenantFor(key); tenant != "" {
		params["tenant"] = tenant
	}

	body, err := c.api(ctx, "GET", "/v1/cs/configs", params, map[string]string{}, c.cfg.Timeout)
	if err != nil {
		if isNotFound(err) {
			return "", ErrConfigNotFound
		}
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return "", err
		}
		return "", xerrors.WithCode(err, xerrors.CodeConfig)
	}
	return body, nil
}

// PublishConfig 发布（或覆盖）配置内容。contentType 可为空。
func (c *Client) PublishConfig(ctx context.Context, key ConfigKey, content, contentType string) (bool, error) {
	params := map[string]string{
		"dataId":  key.DataID,
		"group":   key.Group,
		"content": content,
	}
	if tenant := c.tenantFor(key); tenant != "" {
		params["tenant"] = tenant
	}
	if contentType != "" {
		params["type"] = contentType
	}

	body, err := c.api(ctx, "POST", "/v1/cs/configs", params, map[string]string{}, c.cfg.Timeout)
	if err != nil {
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return false, err
		}
		return false, xerrors.WithCode(err, xerrors.CodeConfig)
	}
	return strings.TrimSpace(body) == "true", nil
}

// DeleteConfig 删除配置。配置不存在也视为删除成功。
func (c *Client) DeleteConfig(ctx context.Context, key ConfigKey) (bool, error) {
	params := map[string]string{
		"dataId": key.DataID,
		"group":  key.Group,
	}
	if tenant := c.tenantFor(key); tenant != "" {
		params["tenant"] = tenant
	}

	body, err := c.api(ctx, "DELETE", "/v1/cs/configs", params, map[string]string{}, c.cfg.Timeout)
	if err != nil {
		if isNotFound(err) {
			return true, nil
		}
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return false, err
		}
		return false, xerrors.WithCode(err, xerrors.CodeConfig)
	}
	return strings.TrimSpace(body) == "true", nil
}

// ListenConfig 长轮询监听一批配置项。
// 服务端在 LongPollTimeout 内挂起请求；任一监听项的指纹与服务端不一致时
// 立即返回变更的 key 列表，全部一致则超时返回空列表。
func (c *Client) ListenConfig(ctx context.Context, entries []ListenEntry) ([]ConfigKey, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Key.DataID)
		sb.WriteString(wordSeparator)
		sb.WriteString(e.Key.Group)
		sb.WriteString(wordSeparator)
		sb.WriteString(e.Fingerprint)
		if tenant := c.tenantFor(e.Key); tenant != "" {
			sb.WriteString(wordSeparator)
			sb.WriteString(tenant)
		}
		sb.WriteString(lineSeparator)
	}

	headers := map[string]string{
		"Long-Pulling-Timeout": strconv.FormatInt(c.cfg.LongPollTimeout.Milliseconds(), 10),
	}
	params := map[string]string{
		"Listening-Configs": sb.String(),
	}

	// 请求超时要覆盖服务端挂起时长，留出网络余量
	timeout := c.cfg.LongPollTimeout + 10*time.Second
	body, err := c.api(ctx, "POST", "/v1/cs/configs/listener", params, headers, timeout)
	if err != nil {
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return nil, err
		}
		return nil, xerrors.WithCode(err, xerrors.CodeConfigListener)
	}

	return parseChangedKeys(body)
}

// parseChangedKeys 解析长轮询响应：URL 编码的 dataId^2group(^2tenant)^1 列表。
func parseChangedKeys(body string) ([]ConfigKey, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	decoded, err := url.QueryUnescape(body)
	if err != nil {
		return nil, xerrors.WithCode(xerrors.Wrap(err, "decode listener response"), xerrors.CodeConfigListener)
	}

	var keys []ConfigKey
	for _, line := range strings.Split(decoded, lineSeparator) {
		if line == "" {
			continue
		}
		parts := strings.Split(line, wordSeparator)
		if len(parts) < 2 {
			continue
		}
		key := ConfigKey{DataID: parts[0], Group: parts[1]}
		if len(parts) > 2 {
			key.Tenant = parts[2]
		}
		keys = append(keys, key)
	}
	return keys, nil
}
