package nacos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/testkit"
	"github.com/ceyewan/beacon/xerrors"
)

func newClient(t *testing.T, server *testkit.NacosServer) *nacos.Client {
	t.Helper()
	client, err := nacos.NewClient(server.ClientConfig(), nacos.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := nacos.NewClient(nil)
	assert.Error(t, err)

	_, err = nacos.NewClient(&nacos.Config{})
	assert.Error(t, err)

	_, err = nacos.NewClient(&nacos.Config{ServerAddresses: []string{""}})
	assert.Error(t, err)
}

func TestRegisterAndSelect(t *testing.T) {
	server := testkit.NewNacosServer(t)
	client := newClient(t, server)
	ctx := context.Background()

	err := client.RegisterInstance(ctx, &nacos.Instance{
		IP:          "10.0.0.1",
		Port:        8080,
		ServiceName: "user-service",
		GroupName:   nacos.DefaultGroup,
		ClusterName: nacos.DefaultCluster,
		Weight:      1,
		Enabled:     true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    map[string]string{"zone": "a"},
	})
	require.NoError(t, err)

	hosts, err := client.SelectInstances(ctx, nacos.InstanceQuery{
		ServiceName: "user-service",
		GroupName:   nacos.DefaultGroup,
	})
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "10.0.0.1", hosts[0].IP)
	assert.Equal(t, 8080, hosts[0].Port)
	assert.Equal(t, "a", hosts[0].Metadata["zone"])
}

func TestSelectUnknownServiceReturnsEmpty(t *testing.T) {
	server := testkit.NewNacosServer(t)
	client := newClient(t, server)

	hosts, err := client.SelectInstances(context.Background(), nacos.InstanceQuery{
		ServiceName: "ghost",
		GroupName:   nacos.DefaultGroup,
	})
	require.NoError(t, err)
	assert.Empty(t, hosts)
}

func TestDeregister(t *testing.T) {
	server := testkit.NewNacosServer(t)
	client := newClient(t, server)
	ctx := context.Background()

	key := nacos.InstanceKey{
		ServiceName: "user-service",
		GroupName:   nacos.DefaultGroup,
		IP:          "10.0.0.1",
		Port:        8080,
		ClusterName: nacos.DefaultCluster,
		Ephemeral:   true,
	}

	// 未注册的实例：返回明确的"实例不存在"错误
	ok, err := client.DeregisterInstance(ctx, key)
	assert.ErrorIs(t, err, nacos.ErrInstanceNotFound)
	assert.False(t, ok)

	require.NoError(t, client.RegisterInstance(ctx, &nacos.Instance{
		IP: key.IP, Port: key.Port, ServiceName: key.ServiceName,
		GroupName: key.GroupName, ClusterName: key.ClusterName,
		Weight: 1, Enabled: true, Ephemeral: true,
	}))

	ok, err = client.DeregisterInstance(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendBeat(t *testing.T) {
	server := testkit.NewNacosServer(t)
	client := newClient(t, server)
	ctx := context.Background()

	key := nacos.InstanceKey{
		ServiceName: "user-service", GroupName: nacos.DefaultGroup,
		IP: "10.0.0.1", Port: 8080, ClusterName: nacos.DefaultCluster, Ephemeral: true,
	}
	beat := &nacos.BeatInfo{IP: key.IP, Port: key.Port, ServiceName: key.ServiceName, Cluster: key.ClusterName}

	// 实例不存在：服务端返回 RESOURCE_NOT_FOUND 业务码
	result, err := client.SendBeat(ctx, key, beat)
	require.NoError(t, err)
	assert.Equal(t, nacos.CodeResourceNotFound, result.Code)

	require.NoError(t, client.RegisterInstance(ctx, &nacos.Instance{
		IP: key.IP, Port: key.Port, ServiceName: key.ServiceName,
		GroupName: key.GroupName, ClusterName: key.ClusterName,
		Weight: 1, Enabled: true, Ephemeral: true,
	}))

	result, err = client.SendBeat(ctx, key, beat)
	require.NoError(t, err)
	assert.NotEqual(t, nacos.CodeResourceNotFound, result.Code)
	assert.Equal(t, 1, server.BeatCount(key.GroupName, key.ServiceName, key.IP, key.Port, key.ClusterName))
}

func TestConfigRoundTrip(t *testing.T) {
	server := testkit.NewNacosServer(t)
	client := newClient(t, server)
	ctx := context.Background()

	key := nacos.ConfigKey{DataID: "app.yaml", Group: nacos.DefaultGroup}

	_, err := client.GetConfig(ctx, key)
	assert.ErrorIs(t, err, nacos.ErrConfigNotFound)

	ok, err := client.PublishConfig(ctx, key, "timeout: 3s", "yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	content, err := client.GetConfig(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "timeout: 3s", content)

	ok, err = client.DeleteConfig(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = client.GetConfig(ctx, key)
	assert.ErrorIs(t, err, nacos.ErrConfigNotFound)
}

func TestListenConfig(t *testing.T) {
	server := testkit.NewNacosServer(t)
	client := newClient(t, server)
	ctx := context.Background()

	key := nacos.ConfigKey{DataID: "app.yaml", Group: nacos.DefaultGroup}
	server.PutConfig(key.DataID, key.Group, "", "v1")

	// 指纹一致：挂起到超时，返回空
	changed, err := client.ListenConfig(ctx, []nacos.ListenEntry{
		{Key: key, Fingerprint: nacos.Fingerprint("v1")},
	})
	require.NoError(t, err)
	assert.Empty(t, changed)

	// 指纹过期：立即返回变更 key
	changed, err = client.ListenConfig(ctx, []nacos.ListenEntry{
		{Key: key, Fingerprint: nacos.Fingerprint("v0")},
	})
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, key.DataID, changed[0].DataID)
	assert.Equal(t, key.Group, changed[0].Group)
}

func TestLoginFlow(t *testing.T) {
	server := testkit.NewNacosServer(t)
	server.RequireAuth("nacos", "secret")

	cfg := server.ClientConfig()
	cfg.Username = "nacos"
	cfg.Password = "secret"
	client, err := nacos.NewClient(cfg)
	require.NoError(t, err)

	status, err := client.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UP", status)

	_, err = client.GetConfig(context.Background(), nacos.ConfigKey{DataID: "x", Group: nacos.DefaultGroup})
	assert.ErrorIs(t, err, nacos.ErrConfigNotFound) // 鉴权通过后才能拿到 404
}

func TestLoginRejected(t *testing.T) {
	server := testkit.NewNacosServer(t)
	server.RequireAuth("nacos", "secret")

	cfg := server.ClientConfig()
	cfg.Username = "nacos"
	cfg.Password = "wrong"
	client, err := nacos.NewClient(cfg)
	require.NoError(t, err)

	_, err = client.GetConfig(context.Background(), nacos.ConfigKey{DataID: "x", Group: nacos.DefaultGroup})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConnection, xerrors.GetCode(err))
}

func TestFailover(t *testing.T) {
	server := testkit.NewNacosServer(t)

	cfg := server.ClientConfig()
	// 第一个地址不可达，应自动切换到第二个
	cfg.ServerAddresses = []string{"127.0.0.1:1", server.Addr()}
	cfg.Timeout = 1 * time.Second
	client, err := nacos.NewClient(cfg, nacos.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	status, err := client.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UP", status)
}

func TestAllServersDown(t *testing.T) {
	server := testkit.NewNacosServer(t)
	server.SetDown(true)
	client := newClient(t, server)

	_, err := client.ServerStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConnection, xerrors.GetCode(err))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "", nacos.Fingerprint(""))
	assert.Equal(t, nacos.Fingerprint("v1"), nacos.Fingerprint("v1"))
	assert.NotEqual(t, nacos.Fingerprint("v1"), nacos.Fingerprint("v2"))
	assert.Len(t, nacos.Fingerprint("v1"), 32)
}
