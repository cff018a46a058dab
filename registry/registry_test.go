package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/registry"
	"github.com/ceyewan/beacon/testkit"
)

func newRegistry(t *testing.T, server *testkit.NacosServer) registry.Registry {
	t.Helper()
	conn := newConnector(t, server)
	reg, err := registry.New(conn, &registry.Config{
		HeartbeatInterval: 20 * time.Millisecond,
		FailureThreshold:  3,
		MaxRetryInterval:  100 * time.Millisecond,
	}, registry.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func newConnector(t *testing.T, server *testkit.NacosServer) connector.NacosConnector {
	t.Helper()
	conn, err := connector.NewNacos(&connector.NacosConfig{
		ServerAddresses: []string{server.Addr()},
		Timeout:         2 * time.Second,
		BreakerCooldown: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testInstance() *registry.ServiceInstance {
	return &registry.ServiceInstance{
		ServiceName: "user-service",
		IP:          "10.0.0.1",
		Port:        8080,
		Metadata:    map[string]string{"version": "1.0.0"},
	}
}

func TestNewValidation(t *testing.T) {
	server := testkit.NewNacosServer(t)
	conn := newConnector(t, server)

	_, err := registry.New(nil, nil)
	assert.Error(t, err)

	_, err = registry.New(conn, nil) // nil 配置使用默认值
	assert.NoError(t, err)
}

func TestRegisterStartsHeartbeat(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)

	id, err := reg.Register(context.Background(), testInstance())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1#8080#DEFAULT#DEFAULT_GROUP@@user-service", id)

	// 实例已出现在服务端
	instances := server.Instances(nacos.DefaultGroup, "user-service")
	require.Len(t, instances, 1)
	assert.Equal(t, 1.0, instances[0].Weight)
	assert.True(t, instances[0].Ephemeral)

	// 心跳开始流动
	assert.Eventually(t, func() bool {
		return server.BeatCount(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, registry.StateHeartbeating, reg.State(id))
}

func TestRegisterIdempotent(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)
	ctx := context.Background()

	id1, err := reg.Register(ctx, testInstance())
	require.NoError(t, err)
	id2, err := reg.Register(ctx, testInstance())
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	assert.Len(t, server.Instances(nacos.DefaultGroup, "user-service"), 1)
}

func TestRegisterValidation(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)
	ctx := context.Background()

	_, err := reg.Register(ctx, nil)
	assert.ErrorIs(t, err, registry.ErrInvalidServiceInstance)

	_, err = reg.Register(ctx, &registry.ServiceInstance{IP: "10.0.0.1", Port: 8080})
	assert.ErrorIs(t, err, registry.ErrInvalidServiceInstance)

	_, err = reg.Register(ctx, &registry.ServiceInstance{ServiceName: "s", IP: "10.0.0.1", Port: 70000})
	assert.ErrorIs(t, err, registry.ErrInvalidServiceInstance)

	_, err = reg.Register(ctx, &registry.ServiceInstance{ServiceName: "s", Port: 8080})
	assert.ErrorIs(t, err, registry.ErrInvalidServiceInstance)
}

func TestDeregisterStopsHeartbeat(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)
	ctx := context.Background()

	id, err := reg.Register(ctx, testInstance())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return server.BeatCount(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	ok, err := reg.Deregister(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, registry.StateUnregistered, reg.State(id))
	assert.Empty(t, server.Instances(nacos.DefaultGroup, "user-service"))

	// 注销返回后不再有任何心跳
	count := server.BeatCount(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, count, server.BeatCount(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster))
}

func TestDeregisterUnknown(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)

	ok, err := reg.Deregister(context.Background(), "10.0.0.9#9999#DEFAULT#DEFAULT_GROUP@@ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = reg.Deregister(context.Background(), "not-an-instance-id")
	assert.ErrorIs(t, err, registry.ErrInvalidInstanceID)
}

func TestHeartbeatFailureAndRecovery(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)
	ctx := context.Background()

	id, err := reg.Register(ctx, testInstance())
	require.NoError(t, err)

	server.SetFailBeats(true)
	assert.Eventually(t, func() bool {
		return reg.State(id) == registry.StateFailed
	}, 3*time.Second, 10*time.Millisecond)

	// 失败事件已投递
	var failed bool
	for !failed {
		select {
		case event := <-reg.Events():
			if event.State == registry.StateFailed {
				assert.Equal(t, id, event.InstanceID)
				assert.GreaterOrEqual(t, event.Failures, 3)
				assert.Error(t, event.Err)
				failed = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no failed event received")
		}
	}

	// 服务端恢复后心跳自动回到正常状态，重试永不放弃
	server.SetFailBeats(false)
	assert.Eventually(t, func() bool {
		return reg.State(id) == registry.StateHeartbeating
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReRegisterWhenServerForgets(t *testing.T) {
	server := testkit.NewNacosServer(t)
	reg := newRegistry(t, server)
	ctx := context.Background()

	_, err := reg.Register(ctx, testInstance())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return server.BeatCount(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// 服务端丢失临时实例（如重启），心跳协程应自动重新注册
	server.DropInstance(nacos.DefaultGroup, "user-service", "10.0.0.1", 8080, nacos.DefaultCluster)
	assert.Eventually(t, func() bool {
		return len(server.Instances(nacos.DefaultGroup, "user-service")) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestCloseDeregistersAll(t *testing.T) {
	server := testkit.NewNacosServer(t)
	conn := newConnector(t, server)
	reg, err := registry.New(conn, &registry.Config{
		HeartbeatInterval: 20 * time.Millisecond,
	}, registry.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	_, err = reg.Register(context.Background(), testInstance())
	require.NoError(t, err)
	second := testInstance()
	second.Port = 8081
	_, err = reg.Register(context.Background(), second)
	require.NoError(t, err)

	require.NoError(t, reg.Close())
	assert.Empty(t, server.Instances(nacos.DefaultGroup, "user-service"))

	// 关闭后 Events 通道被关闭
	_, open := <-reg.Events()
	for open {
		_, open = <-reg.Events()
	}

	_, err = reg.Register(context.Background(), testInstance())
	assert.ErrorIs(t, err, registry.ErrRegistryClosed)
}

func TestRegisterRacingClose(t *testing.T) {
	server := testkit.NewNacosServer(t)
	conn := newConnector(t, server)
	reg, err := registry.New(conn, &registry.Config{
		HeartbeatInterval: 20 * time.Millisecond,
	}, registry.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	// 注册与关闭并发进行：迟到的注册要么在关闭前完成并被注销，
	// 要么被拒绝，绝不能在事件通道关闭后留下活跃的心跳协程
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			inst := testInstance()
			inst.Port = 9000 + i
			if _, err := reg.Register(context.Background(), inst); err != nil {
				assert.ErrorIs(t, err, registry.ErrRegistryClosed)
				return
			}
		}
	}()
	require.NoError(t, reg.Close())
	<-done

	for range reg.Events() {
	}
	assert.Empty(t, server.Instances(nacos.DefaultGroup, "user-service"))
}
