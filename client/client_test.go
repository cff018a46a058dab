package client_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/client"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/registry"
	"github.com/ceyewan/beacon/testkit"
)

func newConfig(server *testkit.NacosServer) *client.Config {
	return &client.Config{
		Nacos: connector.NacosConfig{
			ServerAddresses: []string{server.Addr()},
			Timeout:         2 * time.Second,
			LongPollTimeout: 200 * time.Millisecond,
			BreakerCooldown: 100 * time.Millisecond,
		},
		Registry: &registry.Config{
			HeartbeatInterval: 20 * time.Millisecond,
		},
	}
}

func TestNewValidation(t *testing.T) {
	_, err := client.New(nil)
	assert.Error(t, err)

	_, err = client.New(&client.Config{})
	assert.Error(t, err)
}

func TestStartRegistersInstances(t *testing.T) {
	server := testkit.NewNacosServer(t)
	cfg := newConfig(server)
	cfg.Instances = []*registry.ServiceInstance{
		{ServiceName: "user-service", IP: "10.0.0.1", Port: 8080},
		{ServiceName: "order-service", IP: "10.0.0.1", Port: 8081},
	}

	app, err := client.New(cfg, client.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Start(context.Background())) // 幂等

	assert.Len(t, server.Instances(nacos.DefaultGroup, "user-service"), 1)
	assert.Len(t, server.Instances(nacos.DefaultGroup, "order-service"), 1)
	assert.True(t, app.Connector().IsHealthy())

	// 组件通过同一个连接器工作
	instances, err := app.Discovery().GetInstances(context.Background(), "user-service")
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close()) // 幂等

	// 关闭时全部实例被注销
	assert.Empty(t, server.Instances(nacos.DefaultGroup, "user-service"))
	assert.Empty(t, server.Instances(nacos.DefaultGroup, "order-service"))
}

func TestStartFailsWhenServerDown(t *testing.T) {
	server := testkit.NewNacosServer(t)
	server.SetDown(true)

	app, err := client.New(newConfig(server), client.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer app.Close()

	assert.Error(t, app.Start(context.Background()))
}

func TestComponentsShareConnector(t *testing.T) {
	server := testkit.NewNacosServer(t)
	app, err := client.New(newConfig(server), client.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Start(context.Background()))

	// 配置中心写，另一个组件入口读，共享同一条连接
	require.NoError(t, app.ConfigCenter().SetConfig(context.Background(), "app.yaml", "timeout: 3s"))
	content, found, err := app.ConfigCenter().GetConfig(context.Background(), "app.yaml")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "timeout: 3s", content)

	assert.NotNil(t, app.Registry())
	assert.NotNil(t, app.Discovery())
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Meter())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	server := testkit.NewNacosServer(t)
	cfg := newConfig(server)
	cfg.Instances = []*registry.ServiceInstance{
		{ServiceName: "user-service", IP: "10.0.0.1", Port: 8080},
	}
	app, err := client.New(cfg, client.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(server.Instances(nacos.DefaultGroup, "user-service")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after context cancel")
	}
	assert.Empty(t, server.Instances(nacos.DefaultGroup, "user-service"))
}

func TestRunStopsOnSignal(t *testing.T) {
	server := testkit.NewNacosServer(t)
	app, err := client.New(newConfig(server), client.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	assert.Eventually(t, func() bool {
		return app.Connector().IsHealthy()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after signal")
	}
}
