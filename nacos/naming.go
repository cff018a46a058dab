package nacos

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ceyewan/beacon/xerrors"
)

// RegisterInstance 注册服务实例。
// 同一标识重复注册在服务端表现为更新（权重/元数据），不会产生重复实例。
func (c *Client) RegisterInstance(ctx context.Context, inst *Instance) error {
	params := map[string]string{
		"ip":          inst.IP,
		"port":        strconv.Itoa(inst.Port),
		"serviceName": inst.ServiceName,
		"groupName":   inst.GroupName,
		"clusterName": inst.ClusterName,
		"weight":      strconv.FormatFloat(inst.Weight, 'f', -1, 64),
		"enabled":     strconv.FormatBool(inst.Enabled),
		"healthy":     strconv.FormatBool(inst.Healthy),
		"ephemeral":   strconv.FormatBool(inst.Ephemeral),
	}
	if c.cfg.Namespace != "" {
		params["namespaceId"] = c.cfg.Namespace
	}
	if len(inst.Metadata) > 0 {
		meta, err := json.Marshal(inst.Metadata)
		if err != nil {
			return xerrors.WithCode(xerrors.Wrap(err, "marshal metadata"), xerrors.CodeRegistration)
		}
		params["metadata"] = string(meta)
	}

	body, err := c.api(ctx, "POST", "/v1/ns/instance", params, nil, c.cfg.Timeout)
	if err != nil {
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return err
		}
		return xerrors.WithCode(err, xerrors.CodeRegistration)
	}
	if strings.TrimSpace(body) != "ok" {
		return xerrors.Newf(xerrors.CodeRegistration, "unexpected register response: %s", body)
	}
	return nil
}

// DeregisterInstance 注销服务实例。
// 实例不存在返回 ErrInstanceNotFound；传输失败返回连接类错误。
func (c *Client) DeregisterInstance(ctx context.Context, key InstanceKey) (bool, error) {
	params := map[string]string{
		"ip":          key.IP,
		"port":        strconv.Itoa(key.Port),
		"serviceName": key.ServiceName,
		"groupName":   key.GroupName,
		"clusterName": key.ClusterName,
		"ephemeral":   strconv.FormatBool(key.Ephemeral),
	}
	if c.cfg.Namespace != "" {
		params["namespaceId"] = c.cfg.Namespace
	}

	body, err := c.api(ctx, "DELETE", "/v1/ns/instance", params, nil, c.cfg.Timeout)
	if err != nil {
		if isNotFound(err) {
			return false, xerrors.Wrapf(ErrInstanceNotFound, "%s:%d", key.IP, key.Port)
		}
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return false, err
		}
		return false, xerrors.WithCode(err, xerrors.CodeRegistration)
	}
	return strings.TrimSpace(body) == "ok", nil
}

// SendBeat 发送一次心跳。
// 返回的 BeatResult.Code 为 CodeResourceNotFound 时，服务端已经丢失该实例，
// 调用方应重新注册。
func (c *Client) SendBeat(ctx context.Context, key InstanceKey, beat *BeatInfo) (*BeatResult, error) {
	payload, err := json.Marshal(beat)
	if err != nil {
		return nil, xerrors.WithCode(xerrors.Wrap(err, "marshal beat"), xerrors.CodeHeartbeat)
	}

	params := map[string]string{
		"serviceName": key.GroupName + "@@" + key.ServiceName,
		"groupName":   key.GroupName,
		"ephemeral":   strconv.FormatBool(key.Ephemeral),
		"beat":        string(payload),
	}
	if c.cfg.Namespace != "" {
		params["namespaceId"] = c.cfg.Namespace
	}

	body, err := c.api(ctx, "PUT", "/v1/ns/instance/beat", params, nil, c.cfg.Timeout)
	if err != nil {
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return nil, err
		}
		return nil, xerrors.WithCode(err, xerrors.CodeHeartbeat)
	}

	var result BeatResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, xerrors.WithCode(xerrors.Wrap(err, "decode beat response"), xerrors.CodeHeartbeat)
	}
	return &result, nil
}

// SelectInstances 查询服务实例列表。
// 服务不存在或没有实例时返回空切片，不视为错误。
func (c *Client) SelectInstances(ctx context.Context, q InstanceQuery) ([]Instance, error) {
	params := map[string]string{
		"serviceName": q.ServiceName,
		"groupName":   q.GroupName,
		"healthyOnly": strconv.FormatBool(q.HealthyOnly),
	}
	if len(q.Clusters) > 0 {
		params["clusters"] = strings.Join(q.Clusters, ",")
	}
	if c.cfg.Namespace != "" {
		params["namespaceId"] = c.cfg.Namespace
	}

	body, err := c.api(ctx, "GET", "/v1/ns/instance/list", params, nil, c.cfg.Timeout)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		if xerrors.GetCode(err) == xerrors.CodeConnection {
			return nil, err
		}
		return nil, xerrors.WithCode(err, xerrors.CodeDiscovery)
	}

	var resp instanceListResp
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, xerrors.WithCode(xerrors.Wrap(err, "decode instance list"), xerrors.CodeDiscovery)
	}
	return resp.Hosts, nil
}
