package discovery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/discovery"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/testkit"
)

func newDiscovery(t *testing.T, server *testkit.NacosServer) discovery.Discovery {
	t.Helper()
	conn, err := connector.NewNacos(&connector.NacosConfig{
		ServerAddresses: []string{server.Addr()},
		Timeout:         2 * time.Second,
		BreakerCooldown: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	disc, err := discovery.New(conn, &discovery.Config{
		CacheTTL: time.Minute, // 测试内不过期，过期语义由 Refresh 显式验证
	}, discovery.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = disc.Close() })
	return disc
}

func registerInstances(t *testing.T, server *testkit.NacosServer, weights ...float64) {
	t.Helper()
	client, err := nacos.NewClient(server.ClientConfig())
	require.NoError(t, err)
	for i, weight := range weights {
		require.NoError(t, client.RegisterInstance(context.Background(), &nacos.Instance{
			IP:          "10.0.0.1",
			Port:        8080 + i,
			ServiceName: "user-service",
			GroupName:   nacos.DefaultGroup,
			ClusterName: nacos.DefaultCluster,
			Weight:      weight,
			Healthy:     true,
			Enabled:     true,
			Ephemeral:   true,
			Metadata:    map[string]string{"idx": string(rune('a' + i))},
		}))
	}
}

func TestGetInstances(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1, 2)
	disc := newDiscovery(t, server)

	instances, err := disc.GetInstances(context.Background(), "user-service")
	require.NoError(t, err)
	require.Len(t, instances, 2)
	for _, inst := range instances {
		assert.Equal(t, "user-service", inst.ServiceName)
		assert.Equal(t, nacos.DefaultGroup, inst.GroupName)
		assert.Equal(t, nacos.DefaultCluster, inst.ClusterName)
		assert.True(t, inst.Healthy)
		assert.NotEmpty(t, inst.Metadata["idx"])
	}
}

func TestGetInstancesEmpty(t *testing.T) {
	server := testkit.NewNacosServer(t)
	disc := newDiscovery(t, server)

	instances, err := disc.GetInstances(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, instances)

	_, err = disc.GetInstances(context.Background(), "")
	assert.ErrorIs(t, err, discovery.ErrInvalidServiceName)
}

func TestCacheAndRefresh(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	instances, err := disc.GetInstances(ctx, "user-service")
	require.NoError(t, err)
	require.Len(t, instances, 1)

	// 服务端实例消失后，缓存仍返回旧列表
	server.DropInstance(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster)
	instances, err = disc.GetInstances(ctx, "user-service")
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	// Refresh 绕过缓存并刷新条目
	instances, err = disc.Refresh(ctx, "user-service")
	require.NoError(t, err)
	assert.Empty(t, instances)

	instances, err = disc.GetInstances(ctx, "user-service")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestHealthyOnlyFilter(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1, 1)
	server.SetInstanceHealth(nacos.DefaultGroup, "user-service", "10.0.0.1", 8081, nacos.DefaultCluster, false)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	healthy, err := disc.GetInstances(ctx, "user-service")
	require.NoError(t, err)
	require.Len(t, healthy, 1)
	assert.Equal(t, 8080, healthy[0].Port)

	all, err := disc.GetInstances(ctx, "user-service", discovery.WithHealthyOnly(false))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDisabledInstanceFiltering(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1)
	wire, err := nacos.NewClient(server.ClientConfig())
	require.NoError(t, err)
	require.NoError(t, wire.RegisterInstance(context.Background(), &nacos.Instance{
		IP:          "10.0.0.1",
		Port:        9090,
		ServiceName: "user-service",
		GroupName:   nacos.DefaultGroup,
		ClusterName: nacos.DefaultCluster,
		Weight:      1,
		Healthy:     true,
		Enabled:     false,
		Ephemeral:   true,
	}))
	disc := newDiscovery(t, server)
	ctx := context.Background()

	// 默认只返回健康且启用的实例
	healthy, err := disc.GetInstances(ctx, "user-service")
	require.NoError(t, err)
	require.Len(t, healthy, 1)
	assert.Equal(t, 8080, healthy[0].Port)

	// 关闭过滤后能看到禁用实例，且 Enabled 标志如实透出
	all, err := disc.GetInstances(ctx, "user-service", discovery.WithHealthyOnly(false))
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, inst := range all {
		if inst.Port == 9090 {
			assert.False(t, inst.Enabled)
		} else {
			assert.True(t, inst.Enabled)
		}
	}
}

func TestChooseOne(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	inst, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyRandom)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "user-service", inst.ServiceName)

	// 无可用实例：nil 而非错误
	inst, err = disc.ChooseOne(ctx, "ghost", discovery.StrategyRandom)
	require.NoError(t, err)
	assert.Nil(t, inst)

	// 未知策略是调用方错误
	_, err = disc.ChooseOne(ctx, "user-service", discovery.Strategy("least_conn"))
	assert.ErrorIs(t, err, discovery.ErrUnknownStrategy)
}

func TestRandomCoversAllInstances(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1, 1, 1, 1)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	counts := make(map[int]int)
	for i := 0; i < 400; i++ {
		inst, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyRandom)
		require.NoError(t, err)
		counts[inst.Port]++
	}
	require.Len(t, counts, 4)
	for port, count := range counts {
		assert.Greater(t, count, 40, "port %d starved", port)
	}
}

func TestWeightRandomSkew(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 10, 0, 0, 0)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	// 只有第一个实例有权重，其余永远不会被选中
	for i := 0; i < 100; i++ {
		inst, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyWeightRandom)
		require.NoError(t, err)
		assert.Equal(t, 8080, inst.Port)
	}
}

func TestWeightRandomAllZeroDegradesToUniform(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 0, 0, 0)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	counts := make(map[int]int)
	for i := 0; i < 300; i++ {
		inst, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyWeightRandom)
		require.NoError(t, err)
		counts[inst.Port]++
	}
	assert.Len(t, counts, 3)
}

func TestWeightRandomUniformWeights(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1, 1, 1, 1)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	counts := make(map[int]int)
	for i := 0; i < 4000; i++ {
		inst, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyWeightRandom)
		require.NoError(t, err)
		counts[inst.Port]++
	}

	// 等权重应接近均匀分布，给随机波动留足余量
	require.Len(t, counts, 4)
	for port, count := range counts {
		assert.InDelta(t, 1000, count, 200, "port %d", port)
	}
}

func TestRoundRobinEvenDistribution(t *testing.T) {
	server := testkit.NewNacosServer(t)
	registerInstances(t, server, 1, 1, 1)
	disc := newDiscovery(t, server)
	ctx := context.Background()

	counts := make(map[int]int)
	for i := 0; i < 6; i++ {
		inst, err := disc.ChooseOne(ctx, "user-service", discovery.StrategyRoundRobin)
		require.NoError(t, err)
		counts[inst.Port]++
	}
	require.Len(t, counts, 3)
	for _, count := range counts {
		assert.Equal(t, 2, count)
	}
}

func TestClosed(t *testing.T) {
	server := testkit.NewNacosServer(t)
	disc := newDiscovery(t, server)
	require.NoError(t, disc.Close())
	require.NoError(t, disc.Close())

	_, err := disc.GetInstances(context.Background(), "user-service")
	assert.ErrorIs(t, err, discovery.ErrDiscoveryClosed)
}
